package toolcall

import (
	"errors"
	"reflect"
	"testing"
)

type recordingResponder struct {
	batches [][]Response
	err     error
}

func (r *recordingResponder) SendToolResponses(responses []Response) error {
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, responses)
	return nil
}

func TestBridgeDispatch(t *testing.T) {
	t.Run("known handler", func(t *testing.T) {
		b := NewBridge(nil)
		b.Register("set_timer", func(call Call) (string, error) {
			sec, _ := Int(call.Args, "seconds")
			if sec != 30 {
				t.Errorf("seconds = %d, want 30", sec)
			}
			return "timer set", nil
		})

		r := &recordingResponder{}
		err := b.Dispatch([]Call{{ID: "c1", Name: "set_timer", Args: map[string]any{"seconds": float64(30)}}}, r)
		if err != nil {
			t.Fatal(err)
		}
		want := []Response{{ID: "c1", Name: "set_timer", Result: "timer set"}}
		if !reflect.DeepEqual(r.batches[0], want) {
			t.Errorf("responses = %+v, want %+v", r.batches[0], want)
		}
	})

	t.Run("empty result becomes OK", func(t *testing.T) {
		b := NewBridge(nil)
		b.Register("noop", func(Call) (string, error) { return "", nil })

		r := &recordingResponder{}
		if err := b.Dispatch([]Call{{ID: "c2", Name: "noop"}}, r); err != nil {
			t.Fatal(err)
		}
		if got := r.batches[0][0].Result; got != "OK" {
			t.Errorf("result = %q, want OK", got)
		}
	})

	t.Run("unknown name is acknowledged", func(t *testing.T) {
		b := NewBridge(nil)
		r := &recordingResponder{}
		if err := b.Dispatch([]Call{{ID: "c3", Name: "launch_rocket"}}, r); err != nil {
			t.Fatal(err)
		}
		if got := r.batches[0][0].Result; got != "unhandled: launch_rocket" {
			t.Errorf("result = %q", got)
		}
	})

	t.Run("handler error is reported inline", func(t *testing.T) {
		b := NewBridge(nil)
		b.Register("broken", func(Call) (string, error) {
			return "", errors.New("state missing")
		})
		r := &recordingResponder{}
		if err := b.Dispatch([]Call{{ID: "c4", Name: "broken"}}, r); err != nil {
			t.Fatal(err)
		}
		if got := r.batches[0][0].Result; got != "error: state missing" {
			t.Errorf("result = %q", got)
		}
	})

	t.Run("batch preserves order", func(t *testing.T) {
		b := NewBridge(nil)
		var seen []string
		b.Register("a", func(c Call) (string, error) { seen = append(seen, c.ID); return "ra", nil })
		b.Register("b", func(c Call) (string, error) { seen = append(seen, c.ID); return "rb", nil })

		r := &recordingResponder{}
		calls := []Call{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}, {ID: "3", Name: "a"}}
		if err := b.Dispatch(calls, r); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(seen, []string{"1", "2", "3"}) {
			t.Errorf("handler order = %v", seen)
		}
		if len(r.batches) != 1 || len(r.batches[0]) != 3 {
			t.Fatalf("batches = %+v, want one batch of 3", r.batches)
		}
		for i, resp := range r.batches[0] {
			if resp.ID != calls[i].ID {
				t.Errorf("response %d has ID %q, want %q", i, resp.ID, calls[i].ID)
			}
		}
	})

	t.Run("responder failure wraps ProtocolError", func(t *testing.T) {
		b := NewBridge(nil)
		r := &recordingResponder{err: errors.New("channel closed")}
		err := b.Dispatch([]Call{{ID: "c5", Name: "x"}}, r)
		var perr *ProtocolError
		if !errors.As(err, &perr) {
			t.Fatalf("err = %v, want *ProtocolError", err)
		}
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		b := NewBridge(nil)
		r := &recordingResponder{err: errors.New("must not be called")}
		if err := b.Dispatch(nil, r); err != nil {
			t.Fatal(err)
		}
	})
}

func TestArgCoercion(t *testing.T) {
	args := map[string]any{
		"count":  float64(7),
		"ratio":  "2.5",
		"label":  "alpha",
		"num":    float64(3),
		"flag":   true,
		"wires":  []any{"red", "blue"},
		"single": "green",
	}

	if v, ok := Float(args, "ratio"); !ok || v != 2.5 {
		t.Errorf("Float(ratio) = %v, %v", v, ok)
	}
	if v, ok := Int(args, "count"); !ok || v != 7 {
		t.Errorf("Int(count) = %v, %v", v, ok)
	}
	if _, ok := Int(args, "missing"); ok {
		t.Error("Int(missing) should fail")
	}
	if v, ok := String(args, "label"); !ok || v != "alpha" {
		t.Errorf("String(label) = %v, %v", v, ok)
	}
	if v, ok := String(args, "num"); !ok || v != "3" {
		t.Errorf("String(num) = %v, %v", v, ok)
	}
	if v, ok := String(args, "flag"); !ok || v != "true" {
		t.Errorf("String(flag) = %v, %v", v, ok)
	}
	if v, ok := StringSlice(args, "wires"); !ok || !reflect.DeepEqual(v, []string{"red", "blue"}) {
		t.Errorf("StringSlice(wires) = %v, %v", v, ok)
	}
	if v, ok := StringSlice(args, "single"); !ok || !reflect.DeepEqual(v, []string{"green"}) {
		t.Errorf("StringSlice(single) = %v, %v", v, ok)
	}
}
