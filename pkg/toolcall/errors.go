package toolcall

import "fmt"

// ProtocolError reports a failure in the call/response exchange itself, as
// opposed to a handler failure, which is reported back to the model inline.
type ProtocolError struct {
	Op    string
	Name  string
	Cause error
}

func (e *ProtocolError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("toolcall %s %q: %v", e.Op, e.Name, e.Cause)
	}
	return fmt.Sprintf("toolcall %s: %v", e.Op, e.Cause)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }
