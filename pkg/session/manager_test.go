package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/capture"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/live"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/pcm"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/playback"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/toolcall"
)

// mockChannel is an in-memory Channel capturing outbound traffic and
// letting tests inject server events.
type mockChannel struct {
	mu        sync.Mutex
	connected bool
	closed    int
	params    live.SessionParams
	media     []capture.MediaFrame
	responses [][]toolcall.Response

	connectErr error

	onAudio        func(data []byte, mimeType string)
	onTranscript   func(role, text string)
	onToolCall     func(calls []toolcall.Call)
	onInterrupted  func()
	onTurnComplete func()
	onError        func(err error)
}

func (c *mockChannel) Connect(ctx context.Context, params live.SessionParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectErr != nil {
		return c.connectErr
	}
	c.connected = true
	c.params = params
	return nil
}

func (c *mockChannel) SendMedia(mimeType string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return live.ErrNotConnected
	}
	c.media = append(c.media, capture.MediaFrame{MIME: mimeType, Data: data})
	return nil
}

func (c *mockChannel) SendToolResponses(responses []toolcall.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, responses)
	return nil
}

func (c *mockChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *mockChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.closed++
	return nil
}

func (c *mockChannel) OnAudio(fn func(data []byte, mimeType string))  { c.onAudio = fn }
func (c *mockChannel) OnTranscript(fn func(role, text string))        { c.onTranscript = fn }
func (c *mockChannel) OnToolCall(fn func(calls []toolcall.Call))      { c.onToolCall = fn }
func (c *mockChannel) OnInterrupted(fn func())                        { c.onInterrupted = fn }
func (c *mockChannel) OnTurnComplete(fn func())                       { c.onTurnComplete = fn }
func (c *mockChannel) OnError(fn func(err error))                     { c.onError = fn }

func (c *mockChannel) mediaCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.media)
}

// newTestManager builds a manager wired to mock devices and a fake output.
// The returned channel pointer is filled on Connect.
func newTestManager(t *testing.T, opts ...Option) (*Manager, *mockChannel, *playback.FakeOutput) {
	t.Helper()

	clock := &playback.FakeClock{}
	out := playback.NewFakeOutput(clock)

	mic := capture.NewMockAudioSource(capture.InputSampleRate)
	base := []Option{
		WithAPIKey("test-key"),
		WithModel("test-model"),
		WithMic(func() (capture.AudioSource, error) { return mic, nil }),
		WithOutput(out),
	}
	m, err := NewManager(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}

	ch := &mockChannel{}
	m.newChannel = func(live.Config) (Channel, error) { return ch, nil }
	t.Cleanup(func() { m.Close() })
	return m, ch, out
}

func TestManagerValidation(t *testing.T) {
	if _, err := NewManager(WithModel("m")); err == nil {
		t.Error("missing key: want error")
	} else {
		var cerr *ConfigError
		if !errors.As(err, &cerr) {
			t.Errorf("err = %v, want *ConfigError", err)
		}
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("err = %v, want ErrMissingAPIKey", err)
		}
	}
	if _, err := NewManager(WithAPIKey("k")); !errors.Is(err, ErrMissingModel) {
		t.Errorf("missing model: err = %v", err)
	}
}

func TestManagerConnectLifecycle(t *testing.T) {
	m, ch, _ := newTestManager(t)

	var states []ConnectionState
	var stateMu sync.Mutex
	m.OnStateChange(func(s ConnectionState) {
		stateMu.Lock()
		states = append(states, s)
		stateMu.Unlock()
	})

	params := Parameters{
		Voice:        "Charon",
		Instructions: "interrogate",
		Tools:        []live.Tool{{Name: "updateInterrogation"}},
	}
	if err := m.Connect(context.Background(), params); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateConnected {
		t.Errorf("state = %v", m.State())
	}
	if m.SessionID() == "" {
		t.Error("session ID not assigned")
	}
	if ch.params.Voice != "Charon" || len(ch.params.Tools) != 1 {
		t.Errorf("channel params = %+v", ch.params)
	}

	if err := m.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateDisconnected {
		t.Errorf("state after disconnect = %v", m.State())
	}
	if ch.closed != 1 {
		t.Errorf("channel closed %d times, want 1", ch.closed)
	}

	stateMu.Lock()
	defer stateMu.Unlock()
	want := []ConnectionState{StateConnecting, StateConnected, StateDisconnected}
	if len(states) != len(want) {
		t.Fatalf("states = %v", states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state %d = %v, want %v", i, states[i], want[i])
		}
	}
}

func TestManagerDisconnectIdempotent(t *testing.T) {
	m, ch, _ := newTestManager(t)

	if err := m.Disconnect(); err != nil {
		t.Fatalf("disconnect when never connected: %v", err)
	}

	if err := m.Connect(context.Background(), Parameters{}); err != nil {
		t.Fatal(err)
	}
	if err := m.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := m.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
	if ch.closed != 1 {
		t.Errorf("channel closed %d times, want 1", ch.closed)
	}
}

func TestManagerReplacesActiveSession(t *testing.T) {
	m, _, _ := newTestManager(t)

	channels := []*mockChannel{{}, {}}
	i := 0
	m.newChannel = func(live.Config) (Channel, error) {
		ch := channels[i]
		i++
		return ch, nil
	}

	if err := m.Connect(context.Background(), Parameters{Voice: "Puck"}); err != nil {
		t.Fatal(err)
	}
	first := m.SessionID()

	if err := m.Connect(context.Background(), Parameters{Voice: "Kore"}); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateConnected {
		t.Errorf("state = %v", m.State())
	}
	if m.SessionID() == first {
		t.Error("session ID not rotated")
	}
	if channels[0].closed != 1 {
		t.Errorf("first channel closed %d times, want 1", channels[0].closed)
	}
	if !channels[1].IsConnected() {
		t.Error("second channel not connected")
	}
}

func TestManagerDeviceFailFast(t *testing.T) {
	clock := &playback.FakeClock{}
	m, err := NewManager(
		WithAPIKey("k"),
		WithModel("m"),
		WithMic(func() (capture.AudioSource, error) { return nil, errors.New("no such device") }),
		WithOutput(playback.NewFakeOutput(clock)),
	)
	if err != nil {
		t.Fatal(err)
	}
	dialed := false
	m.newChannel = func(live.Config) (Channel, error) {
		dialed = true
		return &mockChannel{}, nil
	}

	err = m.Connect(context.Background(), Parameters{})
	var derr *DeviceError
	if !errors.As(err, &derr) || derr.Device != "microphone" {
		t.Fatalf("err = %v, want microphone DeviceError", err)
	}
	if dialed {
		t.Error("dialed the endpoint despite device failure")
	}
	if m.State() != StateError {
		t.Errorf("state = %v", m.State())
	}
}

func TestManagerChannelConnectFailure(t *testing.T) {
	m, ch, _ := newTestManager(t)
	ch.connectErr = errors.New("handshake refused")

	if err := m.Connect(context.Background(), Parameters{}); err == nil {
		t.Fatal("want error")
	}
	if m.State() != StateError {
		t.Errorf("state = %v", m.State())
	}
}

func TestManagerConnectFailureReleasesDevices(t *testing.T) {
	t.Run("released by default", func(t *testing.T) {
		mic := capture.NewMockAudioSource(capture.InputSampleRate)
		m, ch, _ := newTestManager(t, WithMic(func() (capture.AudioSource, error) { return mic, nil }))
		ch.connectErr = errors.New("handshake refused")

		if err := m.Connect(context.Background(), Parameters{}); err == nil {
			t.Fatal("want error")
		}
		if !mic.Closed() {
			t.Error("microphone still held after failed connect")
		}
	})

	t.Run("kept when configured", func(t *testing.T) {
		mic := capture.NewMockAudioSource(capture.InputSampleRate)
		m, ch, _ := newTestManager(t,
			WithMic(func() (capture.AudioSource, error) { return mic, nil }),
			WithKeepDeviceOnDisconnect(true),
		)
		ch.connectErr = errors.New("handshake refused")

		if err := m.Connect(context.Background(), Parameters{}); err == nil {
			t.Fatal("want error")
		}
		if mic.Closed() {
			t.Error("mic closed despite keep flag")
		}
	})
}

func TestManagerChannelFailureMidSession(t *testing.T) {
	m, ch, _ := newTestManager(t)

	errCh := make(chan error, 1)
	m.OnError(func(err error) { errCh <- err })

	if err := m.Connect(context.Background(), Parameters{}); err != nil {
		t.Fatal(err)
	}

	ch.onError(&live.ChannelError{Op: "read", Cause: errors.New("connection reset"), Retryable: true})

	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("channel error never surfaced")
	}

	// Teardown runs off the read-loop path; wait for it to land.
	deadline := time.Now().Add(2 * time.Second)
	for m.State() != StateError {
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, want %v", m.State(), StateError)
		}
		time.Sleep(5 * time.Millisecond)
	}
	ch.mu.Lock()
	closed := ch.closed
	ch.mu.Unlock()
	if closed != 1 {
		t.Errorf("channel closed %d times, want 1", closed)
	}

	// The manager must be ready for a clean reconnect.
	if err := m.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if m.State() != StateDisconnected {
		t.Errorf("state after disconnect = %v", m.State())
	}
}

func TestManagerReplaceHonorsDevicePolicy(t *testing.T) {
	t.Run("reacquires by default", func(t *testing.T) {
		opens := 0
		m, _, _ := newTestManager(t, WithMic(func() (capture.AudioSource, error) {
			opens++
			return capture.NewMockAudioSource(capture.InputSampleRate), nil
		}))
		if err := m.Connect(context.Background(), Parameters{}); err != nil {
			t.Fatal(err)
		}
		if err := m.Connect(context.Background(), Parameters{}); err != nil {
			t.Fatal(err)
		}
		if opens != 2 {
			t.Errorf("mic opened %d times, want release and reacquire on replace", opens)
		}
	})

	t.Run("kept across levels", func(t *testing.T) {
		opens := 0
		m, _, _ := newTestManager(t,
			WithMic(func() (capture.AudioSource, error) {
				opens++
				return capture.NewMockAudioSource(capture.InputSampleRate), nil
			}),
			WithKeepDeviceOnDisconnect(true),
		)
		if err := m.Connect(context.Background(), Parameters{}); err != nil {
			t.Fatal(err)
		}
		if err := m.Connect(context.Background(), Parameters{}); err != nil {
			t.Fatal(err)
		}
		if opens != 1 {
			t.Errorf("mic opened %d times, want 1", opens)
		}
	})
}

func TestManagerUploadsCapturedAudio(t *testing.T) {
	mic := capture.NewMockAudioSource(capture.InputSampleRate)
	mic.QueueSilence(3, capture.BlockSize)

	clock := &playback.FakeClock{}
	m, err := NewManager(
		WithAPIKey("k"),
		WithModel("m"),
		WithMic(func() (capture.AudioSource, error) { return mic, nil }),
		WithOutput(playback.NewFakeOutput(clock)),
	)
	if err != nil {
		t.Fatal(err)
	}
	ch := &mockChannel{}
	m.newChannel = func(live.Config) (Channel, error) { return ch, nil }
	defer m.Close()

	if err := m.Connect(context.Background(), Parameters{}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for ch.mediaCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("uploaded %d frames, want 3", ch.mediaCount())
		case <-time.After(10 * time.Millisecond):
		}
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	for i, frame := range ch.media[:3] {
		if frame.MIME != capture.AudioMIME {
			t.Errorf("frame %d mime = %q", i, frame.MIME)
		}
		if len(frame.Data) != capture.BlockSize*2 {
			t.Errorf("frame %d size = %d", i, len(frame.Data))
		}
	}
}

func TestManagerAudioAndInterruption(t *testing.T) {
	m, ch, out := newTestManager(t)
	if err := m.Connect(context.Background(), Parameters{}); err != nil {
		t.Fatal(err)
	}

	samples := make([]int16, OutputSampleRate/10)
	ch.onAudio(pcm.SamplesToBytes(samples), "audio/pcm;rate=24000")
	ch.onAudio(pcm.SamplesToBytes(samples), "audio/pcm;rate=24000")

	if got := len(out.StartTimes()); got != 2 {
		t.Fatalf("scheduled %d chunks, want 2", got)
	}

	// Malformed audio is skipped without killing the session.
	errCh := make(chan error, 1)
	m.OnError(func(err error) { errCh <- err })
	ch.onAudio([]byte{0xFF}, "audio/pcm;rate=24000")
	select {
	case err := <-errCh:
		t.Errorf("codec error surfaced as session error: %v", err)
	default:
	}

	ch.onInterrupted()
	if got := m.Stats().Playback.Flushes; got != 1 {
		t.Errorf("flushes = %d", got)
	}
	if got := out.Stopped(); got != 2 {
		t.Errorf("stopped = %d, want 2", got)
	}
}

func TestManagerToolCallDispatch(t *testing.T) {
	bridge := toolcall.NewBridge(nil)
	bridge.Register("assessItem", func(call toolcall.Call) (string, error) {
		return "200 CR", nil
	})

	m, ch, _ := newTestManager(t, WithBridge(bridge))
	if err := m.Connect(context.Background(), Parameters{}); err != nil {
		t.Fatal(err)
	}

	ch.onToolCall([]toolcall.Call{{ID: "fc-9", Name: "assessItem"}})

	ch.mu.Lock()
	defer ch.mu.Unlock()
	if len(ch.responses) != 1 || len(ch.responses[0]) != 1 {
		t.Fatalf("responses = %+v", ch.responses)
	}
	if got := ch.responses[0][0].Result; got != "200 CR" {
		t.Errorf("result = %q", got)
	}
}

func TestManagerTranscriptForwarding(t *testing.T) {
	m, ch, _ := newTestManager(t)

	type entry struct{ role, text string }
	got := make(chan entry, 2)
	m.OnTranscript(func(role, text string) { got <- entry{role, text} })

	if err := m.Connect(context.Background(), Parameters{}); err != nil {
		t.Fatal(err)
	}
	ch.onTranscript(live.RoleUser, "mostra as mãos")

	select {
	case e := <-got:
		if e.role != live.RoleUser || e.text != "mostra as mãos" {
			t.Errorf("entry = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("transcript never forwarded")
	}
}

func TestManagerKeepDeviceOnDisconnect(t *testing.T) {
	mic := capture.NewMockAudioSource(capture.InputSampleRate)
	opens := 0
	openMic := func() (capture.AudioSource, error) {
		opens++
		return mic, nil
	}

	t.Run("kept", func(t *testing.T) {
		opens = 0
		m, _, _ := newTestManager(t, WithMic(openMic), WithKeepDeviceOnDisconnect(true))
		if err := m.Connect(context.Background(), Parameters{}); err != nil {
			t.Fatal(err)
		}
		if err := m.Disconnect(); err != nil {
			t.Fatal(err)
		}
		if mic.Closed() {
			t.Error("mic closed despite keep flag")
		}
		if err := m.Connect(context.Background(), Parameters{}); err != nil {
			t.Fatal(err)
		}
		if opens != 1 {
			t.Errorf("mic opened %d times, want 1", opens)
		}
	})

	t.Run("released", func(t *testing.T) {
		mic2 := capture.NewMockAudioSource(capture.InputSampleRate)
		m, _, _ := newTestManager(t, WithMic(func() (capture.AudioSource, error) { return mic2, nil }))
		if err := m.Connect(context.Background(), Parameters{}); err != nil {
			t.Fatal(err)
		}
		if err := m.Disconnect(); err != nil {
			t.Fatal(err)
		}
		if !mic2.Closed() {
			t.Error("mic not closed on disconnect")
		}
	})
}

func TestManagerSetAudioPan(t *testing.T) {
	// FakeOutput is not a Panner; the call must be a safe no-op.
	m, _, _ := newTestManager(t)
	m.SetAudioPan(-0.5)
}
