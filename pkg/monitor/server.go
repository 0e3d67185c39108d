// Package monitor serves a local dashboard for a running session: live
// game state, the rolling transcript, session counters, and the camera
// preview feed.
package monitor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/game"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/hub"
	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/session"
)

// State is the dashboard's view of the running game.
type State struct {
	Connection string `json:"connection"`
	Level      string `json:"level"`
	Language   string `json:"language"`
	SessionID  string `json:"session_id"`

	Interrogation *game.InterrogationState `json:"interrogation,omitempty"`
	Cyber         *game.CyberState         `json:"cyber,omitempty"`
	Forensics     *game.ForensicsState     `json:"forensics,omitempty"`
	Market        *game.MarketState        `json:"market,omitempty"`
	Bomb          *game.BombState          `json:"bomb,omitempty"`
}

// TranscriptEntry is one spoken line.
type TranscriptEntry struct {
	Time string `json:"time"`
	Role string `json:"role"`
	Text string `json:"text"`
}

const transcriptLimit = 200

// Server is the dashboard HTTP and websocket server.
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	state   State
	stateMu sync.RWMutex

	transcript   []TranscriptEntry
	transcriptMu sync.RWMutex

	stateHub      *hub.Hub
	transcriptHub *hub.Hub
	cameraHub     *hub.Hub

	// Stats supplies session counters for /api/stats. Optional.
	Stats func() session.Stats
}

// NewServer creates a dashboard server listening on port.
func NewServer(port string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "monitor")

	s := &Server{
		port:          port,
		logger:        logger,
		transcript:    make([]TranscriptEntry, 0, transcriptLimit),
		stateHub:      hub.New("state", logger),
		transcriptHub: hub.New("transcript", logger),
		cameraHub:     hub.New("camera", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Unspoken Monitor",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/transcript", s.handleTranscript)
	api.Get("/stats", s.handleStats)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/transcript", websocket.New(s.handleTranscriptWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// Start runs the hubs and blocks serving HTTP.
func (s *Server) Start() error {
	go s.stateHub.Run()
	go s.transcriptHub.Run()
	go s.cameraHub.Run()

	s.logger.Info("dashboard listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs the server on a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("dashboard server failed", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// UpdateState mutates the dashboard state and broadcasts the result.
func (s *Server) UpdateState(update func(*State)) {
	s.stateMu.Lock()
	update(&s.state)
	state := s.state
	s.stateMu.Unlock()

	s.stateHub.BroadcastJSON(state)
}

// AddTranscript appends a spoken line and broadcasts it.
func (s *Server) AddTranscript(role, text string) {
	entry := TranscriptEntry{
		Time: time.Now().Format("15:04:05"),
		Role: role,
		Text: text,
	}

	s.transcriptMu.Lock()
	s.transcript = append(s.transcript, entry)
	if len(s.transcript) > transcriptLimit {
		s.transcript = s.transcript[1:]
	}
	s.transcriptMu.Unlock()

	s.transcriptHub.BroadcastJSON(entry)
}

// PublishFrame broadcasts a JPEG camera frame to preview clients.
func (s *Server) PublishFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
}

func (s *Server) handleState(c *fiber.Ctx) error {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return c.JSON(s.state)
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	s.transcriptMu.RLock()
	defer s.transcriptMu.RUnlock()
	return c.JSON(s.transcript)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	if s.Stats == nil {
		return c.JSON(session.Stats{})
	}
	return c.JSON(s.Stats())
}

func (s *Server) handleStateWS(c *websocket.Conn) {
	s.stateMu.RLock()
	state := s.state
	s.stateMu.RUnlock()
	c.WriteJSON(state)

	hub.NewClient(s.stateHub, c).Run()
}

func (s *Server) handleTranscriptWS(c *websocket.Conn) {
	s.transcriptMu.RLock()
	backlog := make([]TranscriptEntry, len(s.transcript))
	copy(backlog, s.transcript)
	s.transcriptMu.RUnlock()
	for _, entry := range backlog {
		c.WriteJSON(entry)
	}

	hub.NewClient(s.transcriptHub, c).Run()
}

func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
