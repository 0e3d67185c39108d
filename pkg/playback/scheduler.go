// Package playback renders decoded audio chunks, arriving over the network
// at irregular intervals, as continuous gapless output.
//
// The scheduler keeps a single cursor on the output clock: each chunk starts
// no earlier than the previous chunk's end and no earlier than "now", and
// the cursor advances by exactly the chunk's duration. That invariant is
// what produces audible continuity, and it self-corrects after a network
// stall (the next real chunk simply starts now instead of chasing a stale
// schedule).
package playback

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/pcm"
)

// FlushGuard is added to the cursor on interruption so the next chunk is
// never scheduled in the past relative to hardware latency.
const FlushGuard = 100 * time.Millisecond

// Clock reads the position of the output timeline.
type Clock interface {
	// Now returns the current position on the output clock.
	Now() time.Duration
}

// Handle is one scheduled, not-yet-finished playback.
type Handle interface {
	// Stop cancels the playback immediately. It must not invoke the
	// completion callback.
	Stop()
}

// Output schedules decoded buffers on an audio device.
//
// Implementations must invoke onDone asynchronously when playback finishes
// naturally, and never from inside Start or Stop.
type Output interface {
	// Start schedules buf to begin at startAt on the output clock.
	Start(buf *pcm.Buffer, startAt time.Duration, onDone func()) (Handle, error)

	// Clock returns the clock start times are measured against.
	Clock() Clock
}

// Panner is implemented by outputs that support local stereo panning.
type Panner interface {
	// SetPan positions output between hard left (-1) and hard right (+1).
	SetPan(value float64)
}

// Scheduler owns the schedule cursor and the set of active playbacks.
// All methods are safe for concurrent use; Flush may race chunk arrival
// without ever producing overlapping audio.
type Scheduler struct {
	out    Output
	rate   int
	logger *slog.Logger

	mu     sync.Mutex
	next   time.Duration
	seq    uint64
	active map[*entry]Handle

	chunksPlayed  atomic.Int64
	chunksSkipped atomic.Int64
	flushes       atomic.Int64
}

// entry carries a sequence number so each allocation is a distinct map key;
// a zero-size struct would make every *entry alias the same address.
type entry struct {
	seq uint64
}

// NewScheduler creates a scheduler for chunks arriving at rate Hz.
func NewScheduler(out Output, rate int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		out:    out,
		rate:   rate,
		logger: logger.With("component", "playback"),
		active: make(map[*entry]Handle),
	}
}

// Enqueue decodes one PCM16 chunk and schedules it after everything already
// scheduled. A malformed chunk returns a *pcm.CodecError and is skipped;
// the cursor does not move.
func (s *Scheduler) Enqueue(data []byte) error {
	buf, err := pcm.DecodeAudio(data, s.rate, s.rate)
	if err != nil {
		s.chunksSkipped.Add(1)
		return err
	}
	return s.schedule(buf)
}

func (s *Scheduler) schedule(buf *pcm.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	startAt := s.next
	if now := s.out.Clock().Now(); startAt < now {
		startAt = now
	}

	s.seq++
	e := &entry{seq: s.seq}
	h, err := s.out.Start(buf, startAt, func() {
		s.mu.Lock()
		delete(s.active, e)
		s.mu.Unlock()
	})
	if err != nil {
		s.chunksSkipped.Add(1)
		return err
	}

	s.active[e] = h
	s.next = startAt + buf.Duration()
	s.chunksPlayed.Add(1)
	return nil
}

// Flush stops every active playback immediately and resets the cursor to
// now plus a small guard interval. Used on barge-in.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for e, h := range s.active {
		h.Stop()
		delete(s.active, e)
	}
	s.next = s.out.Clock().Now() + FlushGuard
	s.flushes.Add(1)
}

// ActiveCount returns the number of scheduled-but-unfinished playbacks.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// NextStart returns the cursor: the earliest time the next chunk may begin.
func (s *Scheduler) NextStart() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Stats reports scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		ChunksPlayed:  s.chunksPlayed.Load(),
		ChunksSkipped: s.chunksSkipped.Load(),
		Flushes:       s.flushes.Load(),
	}
}

// Stats are cumulative playback counters.
type Stats struct {
	// ChunksPlayed is the number of chunks scheduled.
	ChunksPlayed int64 `json:"chunks_played"`

	// ChunksSkipped is the number of malformed or unschedulable chunks.
	ChunksSkipped int64 `json:"chunks_skipped"`

	// Flushes is the number of barge-in interruptions.
	Flushes int64 `json:"flushes"`
}
