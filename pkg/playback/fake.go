package playback

import (
	"sync"
	"time"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/pcm"
)

// FakeClock is a manually advanced Clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *FakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Scheduled records one Start call on a FakeOutput.
type Scheduled struct {
	Buf     *pcm.Buffer
	StartAt time.Duration

	onDone  func()
	stopped bool
	done    bool
}

// FakeOutput records scheduled buffers and lets tests complete or inspect
// them. Completion callbacks fire from Complete, never from Start or Stop,
// matching the Output contract.
type FakeOutput struct {
	clock *FakeClock

	// StartErr, when set, is returned by the next Start call.
	StartErr error

	mu      sync.Mutex
	entries []*Scheduled
}

var _ Output = (*FakeOutput)(nil)

func NewFakeOutput(clock *FakeClock) *FakeOutput {
	return &FakeOutput{clock: clock}
}

func (o *FakeOutput) Clock() Clock { return o.clock }

func (o *FakeOutput) Start(buf *pcm.Buffer, startAt time.Duration, onDone func()) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.StartErr; err != nil {
		o.StartErr = nil
		return nil, err
	}
	e := &Scheduled{Buf: buf, StartAt: startAt, onDone: onDone}
	o.entries = append(o.entries, e)
	return &fakeHandle{out: o, e: e}, nil
}

// Complete fires completion for every entry that is neither stopped nor
// already completed.
func (o *FakeOutput) Complete() {
	o.mu.Lock()
	var pending []func()
	for _, e := range o.entries {
		if !e.stopped && !e.done {
			e.done = true
			pending = append(pending, e.onDone)
		}
	}
	o.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// StartTimes returns the start time of every Start call in order.
func (o *FakeOutput) StartTimes() []time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	times := make([]time.Duration, len(o.entries))
	for i, e := range o.entries {
		times[i] = e.StartAt
	}
	return times
}

// Stopped returns how many entries were stopped before completing.
func (o *FakeOutput) Stopped() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.entries {
		if e.stopped {
			n++
		}
	}
	return n
}

type fakeHandle struct {
	out *FakeOutput
	e   *Scheduled
}

func (h *fakeHandle) Stop() {
	h.out.mu.Lock()
	h.e.stopped = true
	h.out.mu.Unlock()
}
