package playback

import (
	"errors"
	"testing"
	"time"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/pcm"
)

const testRate = 24000

// chunk returns n samples of valid PCM16 wire data.
func chunk(n int) []byte {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i % 512)
	}
	return pcm.SamplesToBytes(samples)
}

func TestSchedulerGapless(t *testing.T) {
	clock := &FakeClock{}
	out := NewFakeOutput(clock)
	s := NewScheduler(out, testRate, nil)

	// Three chunks arriving in a burst must be laid out back to back.
	for i := 0; i < 3; i++ {
		if err := s.Enqueue(chunk(testRate / 10)); err != nil { // 100ms each
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	times := out.StartTimes()
	if len(times) != 3 {
		t.Fatalf("scheduled %d chunks, want 3", len(times))
	}
	want := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}
	for i, at := range times {
		if at != want[i] {
			t.Errorf("chunk %d starts at %v, want %v", i, at, want[i])
		}
	}
	if got := s.NextStart(); got != 300*time.Millisecond {
		t.Errorf("cursor = %v, want 300ms", got)
	}
}

func TestSchedulerStallRecovery(t *testing.T) {
	clock := &FakeClock{}
	out := NewFakeOutput(clock)
	s := NewScheduler(out, testRate, nil)

	if err := s.Enqueue(chunk(testRate / 10)); err != nil {
		t.Fatal(err)
	}

	// The stream stalls well past the end of the scheduled audio. The next
	// chunk must start at the current clock, not at the stale cursor.
	clock.Advance(2 * time.Second)
	if err := s.Enqueue(chunk(testRate / 10)); err != nil {
		t.Fatal(err)
	}

	times := out.StartTimes()
	if times[1] != 2*time.Second {
		t.Errorf("post-stall chunk starts at %v, want 2s", times[1])
	}
}

func TestSchedulerStartTimesNonDecreasing(t *testing.T) {
	clock := &FakeClock{}
	out := NewFakeOutput(clock)
	s := NewScheduler(out, testRate, nil)

	for i := 0; i < 20; i++ {
		if i%3 == 0 {
			clock.Advance(73 * time.Millisecond)
		}
		if err := s.Enqueue(chunk(testRate / 20)); err != nil {
			t.Fatal(err)
		}
	}

	times := out.StartTimes()
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			t.Fatalf("start time went backwards: %v after %v", times[i], times[i-1])
		}
	}
}

func TestSchedulerFlush(t *testing.T) {
	clock := &FakeClock{}
	out := NewFakeOutput(clock)
	s := NewScheduler(out, testRate, nil)

	for i := 0; i < 4; i++ {
		if err := s.Enqueue(chunk(testRate / 10)); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.ActiveCount(); got != 4 {
		t.Fatalf("active = %d before flush, want 4", got)
	}

	clock.Advance(50 * time.Millisecond)
	s.Flush()

	if got := s.ActiveCount(); got != 0 {
		t.Errorf("active = %d after flush, want 0", got)
	}
	if got := out.Stopped(); got != 4 {
		t.Errorf("stopped = %d, want 4", got)
	}
	if got, want := s.NextStart(), 50*time.Millisecond+FlushGuard; got != want {
		t.Errorf("cursor after flush = %v, want %v", got, want)
	}

	// The first chunk after a flush starts at the guarded cursor.
	if err := s.Enqueue(chunk(testRate / 10)); err != nil {
		t.Fatal(err)
	}
	times := out.StartTimes()
	if got := times[len(times)-1]; got != 50*time.Millisecond+FlushGuard {
		t.Errorf("post-flush chunk starts at %v", got)
	}
}

func TestSchedulerMalformedChunk(t *testing.T) {
	clock := &FakeClock{}
	out := NewFakeOutput(clock)
	s := NewScheduler(out, testRate, nil)

	if err := s.Enqueue(chunk(testRate / 10)); err != nil {
		t.Fatal(err)
	}
	before := s.NextStart()

	err := s.Enqueue([]byte{0x01}) // odd length: not PCM16
	var cerr *pcm.CodecError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *pcm.CodecError", err)
	}
	if got := s.NextStart(); got != before {
		t.Errorf("cursor moved on malformed chunk: %v -> %v", before, got)
	}
	if got := s.Stats().ChunksSkipped; got != 1 {
		t.Errorf("skipped = %d, want 1", got)
	}

	// The stream keeps going afterwards.
	if err := s.Enqueue(chunk(testRate / 10)); err != nil {
		t.Fatal(err)
	}
	if got := s.Stats().ChunksPlayed; got != 2 {
		t.Errorf("played = %d, want 2", got)
	}
}

func TestSchedulerStartError(t *testing.T) {
	clock := &FakeClock{}
	out := NewFakeOutput(clock)
	s := NewScheduler(out, testRate, nil)

	out.StartErr = errors.New("device gone")
	if err := s.Enqueue(chunk(testRate / 10)); err == nil {
		t.Fatal("want error from failed Start")
	}
	if got := s.NextStart(); got != 0 {
		t.Errorf("cursor moved on failed Start: %v", got)
	}
	if got := s.ActiveCount(); got != 0 {
		t.Errorf("active = %d, want 0", got)
	}
}

func TestSchedulerCompletionRemovesActive(t *testing.T) {
	clock := &FakeClock{}
	out := NewFakeOutput(clock)
	s := NewScheduler(out, testRate, nil)

	for i := 0; i < 3; i++ {
		if err := s.Enqueue(chunk(testRate / 10)); err != nil {
			t.Fatal(err)
		}
	}
	out.Complete()
	if got := s.ActiveCount(); got != 0 {
		t.Errorf("active = %d after completion, want 0", got)
	}

	// Flush after natural completion stops nothing.
	s.Flush()
	if got := out.Stopped(); got != 0 {
		t.Errorf("stopped = %d, want 0", got)
	}
}

func TestStreamOutputPanGains(t *testing.T) {
	o := NewStreamOutput(nopWriteCloser{}, testRate)

	tests := []struct {
		name      string
		pan       float64
		wantLeft  float64
		wantRight float64
	}{
		{"center", 0, 0.7071, 0.7071},
		{"hard left", -1, 1, 0},
		{"hard right", 1, 0, 1},
		{"clamped low", -5, 1, 0},
		{"clamped high", 5, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o.SetPan(tt.pan)
			l, r := o.gains()
			if diff(l, tt.wantLeft) > 1e-3 || diff(r, tt.wantRight) > 1e-3 {
				t.Errorf("gains(%v) = %.4f, %.4f, want %.4f, %.4f",
					tt.pan, l, r, tt.wantLeft, tt.wantRight)
			}
		})
	}
}

func TestStreamOutputInterleave(t *testing.T) {
	o := NewStreamOutput(nopWriteCloser{}, testRate)
	o.SetPan(-1) // hard left: right channel silent

	out := o.interleave([]int16{1000, -1000})
	if len(out) != 8 {
		t.Fatalf("len = %d, want 8", len(out))
	}
	samples := pcm.BytesToSamples(out)
	if samples[0] != 1000 || samples[2] != -1000 {
		t.Errorf("left channel = %d, %d", samples[0], samples[2])
	}
	if samples[1] != 0 || samples[3] != 0 {
		t.Errorf("right channel = %d, %d, want silence", samples[1], samples[3])
	}
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }
