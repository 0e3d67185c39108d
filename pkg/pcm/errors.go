package pcm

import "fmt"

// CodecError indicates a malformed media payload. It is recoverable: the
// caller should skip the offending chunk and continue.
type CodecError struct {
	// Op is the operation that failed ("decode", "wire-text", ...).
	Op string

	// Reason describes what was wrong with the input.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pcm: %s: %s: %v", e.Op, e.Reason, e.Cause)
	}
	return fmt.Sprintf("pcm: %s: %s", e.Op, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *CodecError) Unwrap() error {
	return e.Cause
}

func newCodecError(op, reason string, cause error) *CodecError {
	return &CodecError{Op: op, Reason: reason, Cause: cause}
}
