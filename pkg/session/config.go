package session

import (
	"log/slog"
	"time"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/capture"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/playback"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/toolcall"
)

// OutputSampleRate is the PCM rate the model streams back.
const OutputSampleRate = 24000

// Config holds session manager configuration.
type Config struct {
	// APIKey authenticates with the live endpoint. Required.
	APIKey string

	// Model is the multimodal model to stream against. Required.
	Model string

	// Endpoint overrides the live endpoint URL. Tests use this.
	Endpoint string

	// KeepDeviceOnDisconnect keeps the microphone and camera open across
	// disconnects so a follow-up session starts without re-acquiring
	// hardware.
	KeepDeviceOnDisconnect bool

	// VideoInterval is the frame capture cadence.
	VideoInterval time.Duration

	// QueueSize bounds the outbound media queue shared by audio and video.
	QueueSize int

	// OpenMic acquires the microphone on first connect.
	OpenMic func() (capture.AudioSource, error)

	// OpenCamera acquires the camera on first connect. Nil disables video.
	OpenCamera func() (capture.VideoSource, error)

	// Output renders scheduled playback. Nil spawns an aplay sink on first
	// connect.
	Output playback.Output

	// Bridge routes tool calls. Nil creates an empty bridge.
	Bridge *toolcall.Bridge

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults. APIKey and Model
// must still be provided.
func DefaultConfig() *Config {
	return &Config{
		VideoInterval: capture.DefaultVideoInterval,
		QueueSize:     64,
		Logger:        slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return &ConfigError{Field: "api key", Cause: ErrMissingAPIKey}
	}
	if c.Model == "" {
		return &ConfigError{Field: "model", Cause: ErrMissingModel}
	}
	return nil
}

// Option is a functional option for configuring the session manager.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithEndpoint overrides the live endpoint URL.
func WithEndpoint(url string) Option {
	return func(c *Config) {
		c.Endpoint = url
	}
}

// WithKeepDeviceOnDisconnect keeps capture devices open across disconnects.
func WithKeepDeviceOnDisconnect(keep bool) Option {
	return func(c *Config) {
		c.KeepDeviceOnDisconnect = keep
	}
}

// WithVideoInterval sets the frame capture cadence.
func WithVideoInterval(d time.Duration) Option {
	return func(c *Config) {
		c.VideoInterval = d
	}
}

// WithQueueSize bounds the outbound media queue.
func WithQueueSize(n int) Option {
	return func(c *Config) {
		c.QueueSize = n
	}
}

// WithMic sets the microphone opener.
func WithMic(open func() (capture.AudioSource, error)) Option {
	return func(c *Config) {
		c.OpenMic = open
	}
}

// WithCamera sets the camera opener.
func WithCamera(open func() (capture.VideoSource, error)) Option {
	return func(c *Config) {
		c.OpenCamera = open
	}
}

// WithOutput sets the playback output.
func WithOutput(out playback.Output) Option {
	return func(c *Config) {
		c.Output = out
	}
}

// WithBridge sets the tool call bridge.
func WithBridge(b *toolcall.Bridge) Option {
	return func(c *Config) {
		c.Bridge = b
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}
