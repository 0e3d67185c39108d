package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/pcm"
)

// AudioPipeline pulls microphone blocks from an AudioSource, resamples them
// to the wire's fixed input rate, encodes them to PCM16 and enqueues them on
// the session's outbound queue. If the queue is saturated the oldest frame
// is dropped: brief gaps beat unbounded latency growth for live speech.
type AudioPipeline struct {
	source AudioSource
	out    chan MediaFrame
	logger *slog.Logger

	blocksSent    atomic.Int64
	blocksDropped atomic.Int64
}

// NewAudioPipeline creates a pipeline feeding out from source.
func NewAudioPipeline(source AudioSource, out chan MediaFrame, logger *slog.Logger) *AudioPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &AudioPipeline{
		source: source,
		out:    out,
		logger: logger.With("component", "capture.audio"),
	}
}

// Run captures until ctx is cancelled or the source is exhausted.
// It is intended to be called on its own goroutine.
func (p *AudioPipeline) Run(ctx context.Context) error {
	var pending []float32
	resampler := pcm.NewStreamResampler(p.source.Rate(), InputSampleRate)

	for {
		block, err := p.source.ReadBlock(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			p.logger.Error("microphone read failed", "error", err)
			return err
		}

		pending = append(pending, resampler.Write(block)...)

		for len(pending) >= BlockSize {
			data := pcm.EncodeFloat32(pending[:BlockSize])
			pending = append(pending[:0:0], pending[BlockSize:]...)
			p.enqueue(MediaFrame{MIME: AudioMIME, Data: data})
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// enqueue performs a non-blocking send with drop-oldest backpressure.
func (p *AudioPipeline) enqueue(frame MediaFrame) {
	select {
	case p.out <- frame:
		p.blocksSent.Add(1)
		return
	default:
	}

	// Queue full. Evict the oldest frame and retry once.
	select {
	case <-p.out:
		p.blocksDropped.Add(1)
	default:
	}
	select {
	case p.out <- frame:
		p.blocksSent.Add(1)
	default:
		p.blocksDropped.Add(1)
	}
}

// Stats returns pipeline counters.
func (p *AudioPipeline) Stats() AudioStats {
	return AudioStats{
		BlocksSent:    p.blocksSent.Load(),
		BlocksDropped: p.blocksDropped.Load(),
	}
}
