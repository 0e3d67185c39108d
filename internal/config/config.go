// Package config provides environment configuration helpers for the
// Chronicles commands.
package config

import (
	"fmt"
	"os"
)

// Defaults for the live endpoint.
const (
	DefaultModel     = "gemini-2.5-flash-native-audio-preview"
	DefaultLanguage  = "en"
	DefaultDashPort  = "8181"
	DefaultCameraID  = 0
	DefaultMicDevice = "default"
)

// APIKey returns the Gemini API key from the environment.
// GEMINI_API_KEY is checked first, then VITE_GEMINI_API_KEY for
// compatibility with the web client's .env files.
func APIKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("VITE_GEMINI_API_KEY")
}

// APIKeyRequired returns the Gemini API key or exits with usage help.
func APIKeyRequired() string {
	key := APIKey()
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: GEMINI_API_KEY=... go run ./cmd/unspoken")
		os.Exit(1)
	}
	return key
}

// Model returns the live model from GEMINI_MODEL or the default.
func Model() string {
	if m := os.Getenv("GEMINI_MODEL"); m != "" {
		return m
	}
	return DefaultModel
}

// Language returns the session language ("en" or "pt") from GAME_LANG.
func Language() string {
	if l := os.Getenv("GAME_LANG"); l == "pt" || l == "en" {
		return l
	}
	return DefaultLanguage
}

// MicDevice returns the ALSA capture device from MIC_DEVICE or the default.
func MicDevice() string {
	if d := os.Getenv("MIC_DEVICE"); d != "" {
		return d
	}
	return DefaultMicDevice
}
