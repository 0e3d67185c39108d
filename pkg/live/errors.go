package live

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey indicates no API key was provided.
	ErrMissingAPIKey = errors.New("live: API key is required")

	// ErrNotConnected indicates an operation on a closed or never-opened
	// channel.
	ErrNotConnected = errors.New("live: not connected")

	// ErrAlreadyConnected indicates Connect on an open channel.
	ErrAlreadyConnected = errors.New("live: already connected")

	// ErrSetupRejected indicates the server answered the setup message
	// with something other than setup completion.
	ErrSetupRejected = errors.New("live: setup rejected by server")
)

// ChannelError wraps a transport failure on the live channel.
type ChannelError struct {
	Op        string
	Cause     error
	Retryable bool
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("live: %s: %v", e.Op, e.Cause)
}

func (e *ChannelError) Unwrap() error { return e.Cause }

// IsRetryable reports whether reconnecting may succeed.
func (e *ChannelError) IsRetryable() bool { return e.Retryable }

func newChannelError(op string, cause error, retryable bool) *ChannelError {
	return &ChannelError{Op: op, Cause: cause, Retryable: retryable}
}
