// Package session orchestrates one live conversation at a time: capture
// devices feeding the upload channel, model audio feeding the playback
// scheduler, and tool calls feeding the game bridge.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/capture"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/live"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/pcm"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/playback"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/toolcall"
)

// Channel is the live conversation transport. *live.Client is the
// production implementation.
type Channel interface {
	Connect(ctx context.Context, params live.SessionParams) error
	SendMedia(mimeType string, data []byte) error
	SendToolResponses(responses []toolcall.Response) error
	IsConnected() bool
	Close() error

	OnAudio(fn func(data []byte, mimeType string))
	OnTranscript(fn func(role, text string))
	OnToolCall(fn func(calls []toolcall.Call))
	OnInterrupted(fn func())
	OnTurnComplete(fn func())
	OnError(fn func(err error))
}

var _ Channel = (*live.Client)(nil)

// Parameters shape one session: the character voice, the system prompt,
// and the function declarations offered to the model.
type Parameters struct {
	Voice        string
	Instructions string
	Tools        []live.Tool
}

// Manager runs at most one live session. Connect on an active manager
// replaces the running session; Disconnect is idempotent and returns after
// every session goroutine has stopped.
type Manager struct {
	config *Config
	logger *slog.Logger
	bridge *toolcall.Bridge

	// newChannel is a construction seam so tests can substitute the
	// transport.
	newChannel func(cfg live.Config) (Channel, error)

	// opMu serializes Connect/Disconnect/Close.
	opMu sync.Mutex

	mu        sync.RWMutex
	state     ConnectionState
	sessionID string
	channel   Channel
	scheduler *playback.Scheduler
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
	audioPipe *capture.AudioPipeline
	videoPipe *capture.VideoPipeline

	mic       capture.AudioSource
	camera    capture.VideoSource
	output    playback.Output
	ownOutput bool

	cbMu          sync.RWMutex
	onStateChange func(state ConnectionState)
	onTranscript  func(role, text string)
	onError       func(err error)

	framesSent    atomic.Int64
	framesFailed  atomic.Int64
	interruptions atomic.Int64
}

// NewManager creates a manager from functional options.
func NewManager(opts ...Option) (*Manager, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	bridge := cfg.Bridge
	if bridge == nil {
		bridge = toolcall.NewBridge(cfg.Logger)
	}

	return &Manager{
		config: cfg,
		logger: cfg.Logger.With("component", "session"),
		bridge: bridge,
		output: cfg.Output,
		newChannel: func(lc live.Config) (Channel, error) {
			return live.NewClient(lc)
		},
		state: StateDisconnected,
	}, nil
}

// Bridge returns the tool call bridge so callers can register handlers
// before connecting.
func (m *Manager) Bridge() *toolcall.Bridge { return m.bridge }

// State returns the current lifecycle phase.
func (m *Manager) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SessionID returns the identifier of the current or most recent session.
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// Connect starts a session with the given parameters. If a session is
// already running it is torn down first; the manager never runs two at
// once. Device and configuration failures are reported before any network
// traffic.
func (m *Manager) Connect(ctx context.Context, params Parameters) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.State() != StateDisconnected {
		m.logger.Info("replacing active session")
		m.teardown(m.config.KeepDeviceOnDisconnect)
	}
	m.setState(StateConnecting)

	if err := m.ensureDevices(); err != nil {
		m.setState(StateError)
		return err
	}

	scheduler := playback.NewScheduler(m.output, OutputSampleRate, m.logger)

	ch, err := m.newChannel(live.Config{
		APIKey:   m.config.APIKey,
		Model:    m.config.Model,
		Endpoint: m.config.Endpoint,
		Logger:   m.config.Logger,
	})
	if err != nil {
		m.failConnect()
		return err
	}
	m.wireCallbacks(ch, scheduler)

	if err := ch.Connect(ctx, live.SessionParams{
		Voice:        params.Voice,
		Instructions: params.Instructions,
		Tools:        params.Tools,
	}); err != nil {
		_ = ch.Close()
		m.failConnect()
		return fmt.Errorf("session: connect: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	frames := make(chan capture.MediaFrame, m.config.QueueSize)
	wg := &sync.WaitGroup{}

	audioPipe := capture.NewAudioPipeline(m.mic, frames, m.config.Logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := audioPipe.Run(sessionCtx); err != nil {
			m.emitError(&DeviceError{Device: "microphone", Cause: err})
		}
	}()

	var videoPipe *capture.VideoPipeline
	if m.camera != nil {
		videoPipe = capture.NewVideoPipeline(m.camera, frames, m.config.VideoInterval, m.config.Logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := videoPipe.Run(sessionCtx); err != nil {
				m.emitError(&DeviceError{Device: "camera", Cause: err})
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		m.uploadFrames(sessionCtx, ch, frames)
	}()

	m.mu.Lock()
	m.channel = ch
	m.scheduler = scheduler
	m.cancel = cancel
	m.wg = wg
	m.audioPipe = audioPipe
	m.videoPipe = videoPipe
	m.sessionID = uuid.NewString()
	m.mu.Unlock()

	m.setState(StateConnected)
	m.logger.Info("session started",
		"session_id", m.SessionID(),
		"voice", params.Voice,
		"video", m.camera != nil,
	)
	return nil
}

// failConnect cleans up after a failed connect attempt. Devices acquired by
// ensureDevices are released unless the manager was configured to keep them.
func (m *Manager) failConnect() {
	if !m.config.KeepDeviceOnDisconnect {
		m.releaseDevices()
	}
	m.setState(StateError)
}

// failSession tears down the session after a fatal transport error. If the
// channel is no longer current, Disconnect or a replacement session already
// won the race and there is nothing left to do.
func (m *Manager) failSession(ch Channel) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	current := m.channel
	m.mu.RUnlock()
	if current != ch {
		return
	}

	m.logger.Warn("session lost")
	m.teardown(m.config.KeepDeviceOnDisconnect)
	m.setState(StateError)
}

// ensureDevices acquires the microphone and camera if not already held
// from a previous session.
func (m *Manager) ensureDevices() error {
	if m.mic == nil {
		open := m.config.OpenMic
		if open == nil {
			open = func() (capture.AudioSource, error) {
				return capture.OpenMic("default")
			}
		}
		mic, err := open()
		if err != nil {
			return &DeviceError{Device: "microphone", Cause: err}
		}
		m.mic = mic
	}

	if m.camera == nil && m.config.OpenCamera != nil {
		cam, err := m.config.OpenCamera()
		if err != nil {
			m.releaseDevices()
			return &DeviceError{Device: "camera", Cause: err}
		}
		m.camera = cam
	}

	if m.output == nil {
		out, err := playback.NewAplayOutput(OutputSampleRate)
		if err != nil {
			m.releaseDevices()
			return &DeviceError{Device: "output", Cause: err}
		}
		m.output = out
		m.ownOutput = true
	}
	return nil
}

func (m *Manager) releaseDevices() {
	if m.mic != nil {
		if err := m.mic.Close(); err != nil {
			m.logger.Warn("close microphone", "error", err)
		}
		m.mic = nil
	}
	if m.camera != nil {
		if err := m.camera.Close(); err != nil {
			m.logger.Warn("close camera", "error", err)
		}
		m.camera = nil
	}
}

// wireCallbacks connects channel events to playback, transcripts, and the
// tool bridge.
func (m *Manager) wireCallbacks(ch Channel, scheduler *playback.Scheduler) {
	ch.OnAudio(func(data []byte, mimeType string) {
		if err := scheduler.Enqueue(data); err != nil {
			var cerr *pcm.CodecError
			if errors.As(err, &cerr) {
				m.logger.Warn("skipping malformed audio chunk", "error", err)
				return
			}
			m.emitError(err)
		}
	})
	ch.OnInterrupted(func() {
		m.interruptions.Add(1)
		scheduler.Flush()
	})
	ch.OnToolCall(func(calls []toolcall.Call) {
		if err := m.bridge.Dispatch(calls, ch); err != nil {
			m.emitError(err)
		}
	})
	ch.OnTranscript(func(role, text string) {
		m.emitTranscript(role, text)
	})
	ch.OnTurnComplete(func() {
		m.logger.Debug("turn complete")
	})
	ch.OnError(func(err error) {
		m.emitError(err)
		var cerr *live.ChannelError
		if errors.As(err, &cerr) {
			// Fired from the channel's read loop; teardown must not run
			// inline there.
			go m.failSession(ch)
		}
	})
}

// uploadFrames drains the shared media queue into the channel.
func (m *Manager) uploadFrames(ctx context.Context, ch Channel, frames <-chan capture.MediaFrame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-frames:
			if err := ch.SendMedia(frame.MIME, frame.Data); err != nil {
				m.framesFailed.Add(1)
				if errors.Is(err, live.ErrNotConnected) {
					return
				}
				m.logger.Warn("send media failed", "mime", frame.MIME, "error", err)
				continue
			}
			m.framesSent.Add(1)
		}
	}
}

// Disconnect stops the current session. Safe to call when already
// disconnected. Capture devices stay open when the manager was configured
// to keep them.
func (m *Manager) Disconnect() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.State() == StateDisconnected {
		return nil
	}
	m.teardown(m.config.KeepDeviceOnDisconnect)
	m.setState(StateDisconnected)
	m.logger.Info("session stopped")
	return nil
}

// Close stops the session and releases every held resource.
func (m *Manager) Close() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.teardown(false)
	if m.ownOutput {
		if closer, ok := m.output.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				m.logger.Warn("close output", "error", err)
			}
		}
		m.output = nil
		m.ownOutput = false
	}
	m.setState(StateDisconnected)
	return nil
}

// teardown stops session goroutines and the channel. Runs at most once per
// session; callers hold opMu.
func (m *Manager) teardown(keepDevices bool) {
	m.mu.Lock()
	cancel := m.cancel
	wg := m.wg
	ch := m.channel
	scheduler := m.scheduler
	m.cancel = nil
	m.wg = nil
	m.channel = nil
	m.scheduler = nil
	m.audioPipe = nil
	m.videoPipe = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wg != nil {
		wg.Wait()
	}
	if ch != nil {
		if err := ch.Close(); err != nil {
			m.logger.Warn("close channel", "error", err)
		}
	}
	if scheduler != nil {
		scheduler.Flush()
	}
	if !keepDevices {
		m.releaseDevices()
	}
}

// SetAudioPan positions the session voice in the stereo field when the
// output supports it.
func (m *Manager) SetAudioPan(value float64) {
	if p, ok := m.output.(playback.Panner); ok {
		p.SetPan(value)
	}
}

// OnStateChange sets the lifecycle callback.
func (m *Manager) OnStateChange(fn func(state ConnectionState)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onStateChange = fn
}

// OnTranscript sets the transcript callback.
func (m *Manager) OnTranscript(fn func(role, text string)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onTranscript = fn
}

// OnError sets the error callback.
func (m *Manager) OnError(fn func(err error)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onError = fn
}

func (m *Manager) setState(s ConnectionState) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()

	if !changed {
		return
	}
	m.cbMu.RLock()
	fn := m.onStateChange
	m.cbMu.RUnlock()
	if fn != nil {
		fn(s)
	}
}

func (m *Manager) emitTranscript(role, text string) {
	m.cbMu.RLock()
	fn := m.onTranscript
	m.cbMu.RUnlock()
	if fn != nil {
		fn(role, text)
	}
}

func (m *Manager) emitError(err error) {
	m.cbMu.RLock()
	fn := m.onError
	m.cbMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Stats aggregates counters across the session's moving parts.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	audioPipe := m.audioPipe
	videoPipe := m.videoPipe
	scheduler := m.scheduler
	m.mu.RUnlock()

	s := Stats{
		FramesSent:    m.framesSent.Load(),
		FramesFailed:  m.framesFailed.Load(),
		Interruptions: m.interruptions.Load(),
	}
	if audioPipe != nil {
		s.Audio = audioPipe.Stats()
	}
	if videoPipe != nil {
		s.Video = videoPipe.Stats()
	}
	if scheduler != nil {
		s.Playback = scheduler.Stats()
	}
	return s
}

// Stats is a point-in-time snapshot of session counters.
type Stats struct {
	FramesSent    int64 `json:"frames_sent"`
	FramesFailed  int64 `json:"frames_failed"`
	Interruptions int64 `json:"interruptions"`

	Audio    capture.AudioStats `json:"audio"`
	Video    capture.VideoStats `json:"video"`
	Playback playback.Stats     `json:"playback"`
}
