package capture

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// micBlockSamples is how many samples each ReadBlock delivers. It matches
// the outbound block size so the pipeline forwards blocks without buffering.
const micBlockSamples = BlockSize

// MicSource captures microphone audio by running arecord and reading raw
// S16LE frames from its stdout. It records directly at the wire's 16 kHz
// input rate, letting ALSA do the device-rate conversion.
type MicSource struct {
	device string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	closed bool
}

// OpenMic starts capturing from the given ALSA device ("default" for the
// system microphone). The device stays held until Close.
func OpenMic(device string) (*MicSource, error) {
	cmd := exec.Command("arecord",
		"-q",
		"-D", device,
		"-f", "S16_LE",
		"-r", fmt.Sprint(InputSampleRate),
		"-c", "1",
		"-t", "raw",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture: mic pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("capture: start arecord on %q: %w", device, err)
	}
	return &MicSource{device: device, cmd: cmd, stdout: stdout}, nil
}

// ReadBlock reads the next block of samples, blocking until a full block
// has been captured. Returns io.EOF once the source is closed.
func (m *MicSource) ReadBlock(ctx context.Context) ([]float32, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, io.EOF
	}
	stdout := m.stdout
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := make([]byte, micBlockSamples*2)
	if _, err := io.ReadFull(stdout, raw); err != nil {
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("capture: mic read: %w", err)
	}

	block := make([]float32, micBlockSamples)
	for i := range block {
		s := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		block[i] = float32(s) / 32768
	}
	return block, nil
}

// Rate returns the capture sample rate in Hz.
func (m *MicSource) Rate() int {
	return InputSampleRate
}

// Close stops arecord and releases the microphone. Safe to call more than
// once; any blocked ReadBlock returns io.EOF.
func (m *MicSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.stdout.Close()
	if m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
	}
	_ = m.cmd.Wait()
	return nil
}

var _ AudioSource = (*MicSource)(nil)
