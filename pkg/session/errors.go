package session

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey indicates a session was configured without a key.
	ErrMissingAPIKey = errors.New("session: API key is required")

	// ErrMissingModel indicates a session was configured without a model.
	ErrMissingModel = errors.New("session: model is required")
)

// ConfigError reports a configuration problem detected before any device or
// network resource was touched.
type ConfigError struct {
	Field string
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("session: config %s: %v", e.Field, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// DeviceError reports a local media device failure: microphone, camera, or
// audio output.
type DeviceError struct {
	Device string
	Cause  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("session: %s device: %v", e.Device, e.Cause)
}

func (e *DeviceError) Unwrap() error { return e.Cause }
