// Package chronicle wires the full game runtime: session manager, game
// event bridge, and the monitor dashboard.
package chronicle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/internal/config"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/capture"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/game"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/monitor"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/session"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/toolcall"
)

// Config is the application configuration assembled from flags and
// environment.
type Config struct {
	APIKey string
	Model  string

	Level    game.Level
	Language game.Language

	CameraID  int
	MicDevice string
	NoVideo   bool

	DashPort string
	NoDash   bool

	VideoInterval time.Duration
	KeepDevices   bool

	Logger *slog.Logger
}

// DefaultConfig reads environment defaults.
func DefaultConfig() Config {
	return Config{
		APIKey:    config.APIKey(),
		Model:     config.Model(),
		Language:  game.Language(config.Language()),
		CameraID:  config.DefaultCameraID,
		MicDevice: config.MicDevice(),
		DashPort:  config.DefaultDashPort,
		Logger:    slog.Default(),
	}
}

// App is the assembled runtime.
type App struct {
	config  Config
	logger  *slog.Logger
	manager *session.Manager
	events  *game.Events
	dash    *monitor.Server
}

// New validates cfg and builds the runtime without touching devices or the
// network.
func New(cfg Config) (*App, error) {
	if !cfg.Level.Playable() {
		return nil, fmt.Errorf("chronicle: level %s is not playable", cfg.Level)
	}
	if !cfg.Language.Valid() {
		return nil, fmt.Errorf("chronicle: unsupported language %q", cfg.Language)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	app := &App{
		config: cfg,
		logger: cfg.Logger.With("component", "chronicle"),
		events: &game.Events{},
	}

	bridge := toolcall.NewBridge(cfg.Logger)
	app.events.Register(bridge)

	if !cfg.NoDash {
		app.dash = monitor.NewServer(cfg.DashPort, cfg.Logger)
	}

	opts := []session.Option{
		session.WithAPIKey(cfg.APIKey),
		session.WithModel(cfg.Model),
		session.WithBridge(bridge),
		session.WithLogger(cfg.Logger),
		session.WithKeepDeviceOnDisconnect(cfg.KeepDevices),
		session.WithMic(func() (capture.AudioSource, error) {
			return capture.OpenMic(cfg.MicDevice)
		}),
	}
	if cfg.VideoInterval > 0 {
		opts = append(opts, session.WithVideoInterval(cfg.VideoInterval))
	}
	if !cfg.NoVideo {
		opts = append(opts, session.WithCamera(app.openCamera))
	}

	manager, err := session.NewManager(opts...)
	if err != nil {
		return nil, err
	}
	app.manager = manager

	app.wire()
	return app, nil
}

// openCamera acquires the webcam, teeing captured frames to the dashboard
// preview when one is running.
func (a *App) openCamera() (capture.VideoSource, error) {
	cam, err := capture.OpenWebcam(a.config.CameraID)
	if err != nil {
		return nil, err
	}
	if a.dash == nil {
		return cam, nil
	}
	return &previewSource{VideoSource: cam, publish: a.dash.PublishFrame}, nil
}

// previewSource forwards captured frames to the dashboard camera feed.
type previewSource struct {
	capture.VideoSource
	publish func(jpeg []byte)
	lastSeq uint64
}

func (p *previewSource) Capture() ([]byte, uint64, error) {
	frame, seq, err := p.VideoSource.Capture()
	if err == nil && frame != nil && seq != p.lastSeq {
		p.lastSeq = seq
		p.publish(frame)
	}
	return frame, seq, err
}

// wire connects session and game events to the log and the dashboard.
func (a *App) wire() {
	level := a.config.Level

	a.manager.OnStateChange(func(s session.ConnectionState) {
		a.logger.Info("connection state", "state", s.String())
		a.updateDash(func(st *monitor.State) {
			st.Connection = s.String()
			st.SessionID = a.manager.SessionID()
		})
	})
	a.manager.OnTranscript(func(role, text string) {
		a.logger.Debug("transcript", "role", role, "text", text)
		if a.dash != nil {
			a.dash.AddTranscript(role, text)
		}
	})
	a.manager.OnError(func(err error) {
		a.logger.Error("session error", "error", err)
	})

	a.events.OnInterrogation(func(s game.InterrogationState) {
		a.logger.Info("suspect update",
			"stress", s.SuspectStress,
			"resistance", s.Resistance,
		)
		a.updateDash(func(st *monitor.State) { st.Interrogation = &s })
	})
	a.events.OnCyber(func(s game.CyberState) {
		a.logger.Info("firewall update", "integrity", s.FirewallIntegrity)
		a.updateDash(func(st *monitor.State) { st.Cyber = &s })
	})
	a.events.OnForensics(func(s game.ForensicsState) {
		a.logger.Info("forensics update",
			"corruption", s.CorruptionLevel,
			"evidence", len(s.EvidenceFound),
		)
		a.updateDash(func(st *monitor.State) { st.Forensics = &s })
	})
	a.events.OnMarket(func(s game.MarketState) {
		a.logger.Info("appraisal", "item", s.LastItem, "offer", s.LastOffer)
		a.updateDash(func(st *monitor.State) { st.Market = &s })
	})
	a.events.OnBomb(func(s game.BombState) {
		a.logger.Info("bomb update",
			"status", string(s.Status),
			"stability", s.Stability,
		)
		a.updateDash(func(st *monitor.State) { st.Bomb = &s })

		switch s.Status {
		case game.BombDefused:
			a.logger.Info("bomb defused")
		case game.BombExploded:
			a.logger.Warn("bomb exploded")
		}
	})

	a.updateDash(func(st *monitor.State) {
		st.Connection = session.StateDisconnected.String()
		st.Level = level.String()
		st.Language = string(a.config.Language)
	})
}

func (a *App) updateDash(update func(*monitor.State)) {
	if a.dash != nil {
		a.dash.UpdateState(update)
	}
}

// Init starts the dashboard.
func (a *App) Init() error {
	if a.dash != nil {
		a.dash.Stats = a.manager.Stats
		a.dash.StartAsync()
	}
	return nil
}

// Run connects the session for the configured level and blocks until ctx
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	instructions, err := game.Instruction(a.config.Level, a.config.Language)
	if err != nil {
		return err
	}

	params := session.Parameters{
		Voice:        a.config.Level.Voice(),
		Instructions: instructions,
		Tools:        game.Declarations(a.config.Level),
	}

	a.logger.Info("starting episode",
		"level", a.config.Level.String(),
		"character", a.config.Level.Character(),
		"language", string(a.config.Language),
	)
	if err := a.manager.Connect(ctx, params); err != nil {
		return err
	}

	<-ctx.Done()
	return a.manager.Disconnect()
}

// Shutdown releases every held resource.
func (a *App) Shutdown() {
	if err := a.manager.Close(); err != nil {
		a.logger.Warn("close session manager", "error", err)
	}
	if a.dash != nil {
		if err := a.dash.Shutdown(); err != nil {
			a.logger.Warn("stop dashboard", "error", err)
		}
	}
}
