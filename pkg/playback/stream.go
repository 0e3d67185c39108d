package playback

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/pcm"
)

// StreamOutput plays buffers by writing interleaved stereo PCM16 to a raw
// audio sink such as an aplay stdin pipe. The sink's own device buffering
// provides pacing; StreamOutput serializes writes in schedule order and
// fires completion callbacks when each buffer's slot on the clock ends.
type StreamOutput struct {
	w     io.WriteCloser
	rate  int
	epoch time.Time

	panBits atomic.Uint64

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	cmd       *exec.Cmd
}

var _ Output = (*StreamOutput)(nil)
var _ Panner = (*StreamOutput)(nil)

// NewStreamOutput wraps w, which must accept interleaved stereo signed
// 16-bit little-endian PCM at rate Hz.
func NewStreamOutput(w io.WriteCloser, rate int) *StreamOutput {
	o := &StreamOutput{
		w:     w,
		rate:  rate,
		epoch: time.Now(),
	}
	o.panBits.Store(math.Float64bits(0))
	return o
}

// NewAplayOutput starts an aplay process reading raw stereo PCM at rate Hz
// from stdin and wraps it as a StreamOutput.
func NewAplayOutput(rate int) (*StreamOutput, error) {
	cmd := exec.Command("aplay", "-q",
		"-f", "S16_LE",
		"-r", fmt.Sprintf("%d", rate),
		"-c", "2",
		"-t", "raw",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("aplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start aplay: %w", err)
	}
	o := NewStreamOutput(stdin, rate)
	o.cmd = cmd
	return o, nil
}

// Clock returns a monotonic clock starting at zero when the output was
// created.
func (o *StreamOutput) Clock() Clock { return o }

// Now implements Clock.
func (o *StreamOutput) Now() time.Duration { return time.Since(o.epoch) }

// SetPan positions playback between hard left (-1) and hard right (+1)
// using constant-power gains. Takes effect on the next scheduled buffer.
func (o *StreamOutput) SetPan(value float64) {
	if value < -1 {
		value = -1
	} else if value > 1 {
		value = 1
	}
	o.panBits.Store(math.Float64bits(value))
}

func (o *StreamOutput) gains() (left, right float64) {
	pan := math.Float64frombits(o.panBits.Load())
	theta := (pan + 1) * math.Pi / 4
	return math.Cos(theta), math.Sin(theta)
}

// Start schedules buf to begin at startAt. The write happens on its own
// goroutine once the clock reaches startAt; Stop before then cancels the
// write entirely. Audio already handed to the sink cannot be recalled, so
// barge-in latency is bounded by chunk duration, not by Stop.
func (o *StreamOutput) Start(buf *pcm.Buffer, startAt time.Duration, onDone func()) (Handle, error) {
	h := &streamHandle{stop: make(chan struct{})}

	go func() {
		if wait := startAt - o.Now(); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-h.stop:
				return
			}
		} else {
			select {
			case <-h.stop:
				return
			default:
			}
		}

		o.writeMu.Lock()
		_, err := o.w.Write(o.interleave(buf.Samples))
		o.writeMu.Unlock()
		if err != nil {
			return
		}

		end := time.NewTimer(startAt + buf.Duration() - o.Now())
		defer end.Stop()
		select {
		case <-end.C:
			onDone()
		case <-h.stop:
		}
	}()

	return h, nil
}

// interleave expands mono samples to stereo with the current pan gains.
func (o *StreamOutput) interleave(samples []int16) []byte {
	left, right := o.gains()
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		l := int16(float64(s) * left)
		r := int16(float64(s) * right)
		binary.LittleEndian.PutUint16(out[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(out[i*4+2:], uint16(r))
	}
	return out
}

// Close closes the sink and, for process-backed outputs, waits for the
// player to exit.
func (o *StreamOutput) Close() error {
	o.closeOnce.Do(func() {
		o.closeErr = o.w.Close()
		if o.cmd != nil {
			if err := o.cmd.Wait(); err != nil && o.closeErr == nil {
				o.closeErr = err
			}
		}
	})
	return o.closeErr
}

type streamHandle struct {
	once sync.Once
	stop chan struct{}
}

func (h *streamHandle) Stop() {
	h.once.Do(func() { close(h.stop) })
}
