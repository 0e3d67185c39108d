// Package toolcall bridges function calls emitted by the model to local
// handlers and guarantees every call receives exactly one response.
package toolcall

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
)

// Call is one function invocation requested by the model.
type Call struct {
	// ID correlates the response with the call.
	ID string `json:"id"`

	// Name is the declared function name.
	Name string `json:"name"`

	// Args carries the decoded JSON arguments.
	Args map[string]any `json:"args"`
}

// Response answers one Call.
type Response struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Result string `json:"result"`
}

// Handler processes one call and returns the result text sent back to the
// model. Returning "" acknowledges with a plain OK.
type Handler func(call Call) (string, error)

// Responder delivers a batch of responses back over the session channel.
type Responder interface {
	SendToolResponses(responses []Response) error
}

// Bridge routes incoming calls to registered handlers. Registration happens
// before the session starts; dispatch is serialized in arrival order.
type Bridge struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewBridge creates an empty bridge.
func NewBridge(logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		logger:   logger.With("component", "toolcall"),
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a function name, replacing any previous
// binding.
func (b *Bridge) Register(name string, h Handler) {
	b.mu.Lock()
	b.handlers[name] = h
	b.mu.Unlock()
}

// Dispatch runs every call in order and sends one response per call through
// r. An unknown name is answered with "unhandled: <name>" rather than
// dropped, and a handler error is answered with the error text; the model
// always hears back.
func (b *Bridge) Dispatch(calls []Call, r Responder) error {
	if len(calls) == 0 {
		return nil
	}

	responses := make([]Response, 0, len(calls))
	for _, call := range calls {
		responses = append(responses, Response{
			ID:     call.ID,
			Name:   call.Name,
			Result: b.run(call),
		})
	}

	if err := r.SendToolResponses(responses); err != nil {
		return &ProtocolError{Op: "respond", Name: calls[0].Name, Cause: err}
	}
	return nil
}

func (b *Bridge) run(call Call) string {
	b.mu.RLock()
	h, ok := b.handlers[call.Name]
	b.mu.RUnlock()

	if !ok {
		b.logger.Warn("no handler for tool call", "name", call.Name, "id", call.ID)
		return "unhandled: " + call.Name
	}

	result, err := h(call)
	if err != nil {
		b.logger.Error("tool handler failed", "name", call.Name, "error", err)
		return "error: " + err.Error()
	}
	if result == "" {
		return "OK"
	}
	return result
}

// Float reads a numeric argument. JSON numbers decode as float64 but
// models occasionally quote them, so strings are coerced too.
func Float(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Int reads an integer argument with the same coercions as Float.
func Int(args map[string]any, key string) (int, bool) {
	f, ok := Float(args, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// String reads a string argument, stringifying numbers and booleans.
func String(args map[string]any, key string) (string, bool) {
	switch v := args[key].(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// StringSlice reads a list-of-strings argument, accepting both a JSON array
// and a single bare string.
func StringSlice(args map[string]any, key string) ([]string, bool) {
	switch v := args[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				s = fmt.Sprintf("%v", item)
			}
			out = append(out, s)
		}
		return out, true
	case []string:
		return v, true
	case string:
		return []string{v}, true
	}
	return nil, false
}
