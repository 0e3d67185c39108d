package capture

import (
	"context"
	"io"
	"sync"
)

// MockAudioSource is an AudioSource for tests. Blocks are queued up front
// and delivered in order; once drained, ReadBlock returns io.EOF.
type MockAudioSource struct {
	mu     sync.Mutex
	rate   int
	blocks [][]float32
	closed bool

	// ReadCalls counts ReadBlock invocations.
	ReadCalls int
}

// NewMockAudioSource creates a mock source reporting the given rate.
func NewMockAudioSource(rate int) *MockAudioSource {
	return &MockAudioSource{rate: rate}
}

// Queue appends a block to be returned by a later ReadBlock.
func (m *MockAudioSource) Queue(block []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, block)
}

// QueueSilence queues n blocks of the given length.
func (m *MockAudioSource) QueueSilence(n, samples int) {
	for i := 0; i < n; i++ {
		m.Queue(make([]float32, samples))
	}
}

// ReadBlock returns the next queued block, or io.EOF when drained or closed.
func (m *MockAudioSource) ReadBlock(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadCalls++

	if m.closed || len(m.blocks) == 0 {
		return nil, io.EOF
	}
	block := m.blocks[0]
	m.blocks = m.blocks[1:]
	return block, nil
}

// Rate returns the mock's configured sample rate.
func (m *MockAudioSource) Rate() int {
	return m.rate
}

// Close marks the source closed.
func (m *MockAudioSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockAudioSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockVideoSource is a VideoSource for tests. Capture keeps returning the
// current frame and sequence number until Advance installs a new one,
// mimicking a camera polled faster than it produces frames.
type MockVideoSource struct {
	mu     sync.Mutex
	frame  []byte
	seq    uint64
	closed bool

	// CaptureCalls counts Capture invocations.
	CaptureCalls int

	// CaptureErr, when set, is returned by every Capture.
	CaptureErr error

	// AutoAdvance makes every Capture return a fresh sequence number,
	// simulating a camera running far above the sampling cadence.
	AutoAdvance bool
}

// NewMockVideoSource creates a mock with no frame yet (warming up).
func NewMockVideoSource() *MockVideoSource {
	return &MockVideoSource{}
}

// Advance installs a new current frame and bumps the sequence number.
func (m *MockVideoSource) Advance(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = frame
	m.seq++
}

// Capture returns the current frame and sequence number.
func (m *MockVideoSource) Capture() ([]byte, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CaptureCalls++

	if m.CaptureErr != nil {
		return nil, m.seq, m.CaptureErr
	}
	if m.AutoAdvance && m.frame != nil {
		m.seq++
	}
	return m.frame, m.seq, nil
}

// Close marks the source closed.
func (m *MockVideoSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockVideoSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var (
	_ AudioSource = (*MockAudioSource)(nil)
	_ VideoSource = (*MockVideoSource)(nil)
)
