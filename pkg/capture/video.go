package capture

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Video cadence bounds. The remote model consumes frames as sparse context,
// not motion, so the pipeline runs far below the camera's native rate.
const (
	DefaultVideoInterval = time.Second
	MinVideoInterval     = 500 * time.Millisecond
)

// VideoPipeline samples a VideoSource on a fixed timer and enqueues at most
// one frame per tick. Ticks with no new readable frame are no-ops: a stale
// or black frame tells the model nothing.
type VideoPipeline struct {
	source   VideoSource
	out      chan MediaFrame
	interval time.Duration
	logger   *slog.Logger

	lastSeq uint64
	primed  bool

	framesSent   atomic.Int64
	ticksSkipped atomic.Int64
}

// NewVideoPipeline creates a pipeline sampling source every interval.
// Intervals below MinVideoInterval are clamped; zero means the default.
func NewVideoPipeline(source VideoSource, out chan MediaFrame, interval time.Duration, logger *slog.Logger) *VideoPipeline {
	if interval <= 0 {
		interval = DefaultVideoInterval
	}
	if interval < MinVideoInterval {
		interval = MinVideoInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoPipeline{
		source:   source,
		out:      out,
		interval: interval,
		logger:   logger.With("component", "capture.video"),
	}
}

// Run ticks until ctx is cancelled.
func (p *VideoPipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick captures and enqueues one frame. Returns true if a frame was sent.
func (p *VideoPipeline) tick() bool {
	frame, seq, err := p.source.Capture()
	if err != nil {
		p.ticksSkipped.Add(1)
		p.logger.Warn("frame capture failed", "error", err)
		return false
	}
	if len(frame) == 0 {
		// Device not warmed up yet.
		p.ticksSkipped.Add(1)
		return false
	}
	if p.primed && seq == p.lastSeq {
		p.ticksSkipped.Add(1)
		return false
	}
	p.lastSeq = seq
	p.primed = true

	select {
	case p.out <- MediaFrame{MIME: JPEGMIME, Data: frame}:
		p.framesSent.Add(1)
		return true
	default:
		// The camera is rate-limited well below network capacity, so a
		// full queue means something upstream stalled. Skip this tick.
		p.ticksSkipped.Add(1)
		return false
	}
}

// Stats returns pipeline counters.
func (p *VideoPipeline) Stats() VideoStats {
	return VideoStats{
		FramesSent:   p.framesSent.Load(),
		TicksSkipped: p.ticksSkipped.Load(),
	}
}
