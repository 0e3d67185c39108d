// Package live maintains the bidirectional websocket channel to the
// multimodal model endpoint: setup handshake, realtime media upload, and
// ordered dispatch of server events to callbacks.
package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tiagomatias930/Chronicles-of-the-Unspoken/pkg/toolcall"
)

const defaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// Transcript roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Config configures the live channel.
type Config struct {
	// APIKey authenticates with the service. Required.
	APIKey string

	// Model is the model resource to stream against. Required.
	Model string

	// Endpoint overrides the service URL. Tests point this at a local
	// server; production leaves it empty.
	Endpoint string

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration

	// SetupTimeout bounds the wait for setup completion after dialing.
	SetupTimeout time.Duration

	// Logger receives channel diagnostics.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults. APIKey and Model must still be
// filled in.
func DefaultConfig() Config {
	return Config{
		Endpoint:         defaultEndpoint,
		HandshakeTimeout: 10 * time.Second,
		SetupTimeout:     15 * time.Second,
	}
}

// SessionParams shape the conversation established at setup time.
type SessionParams struct {
	// Voice selects the prebuilt speech voice.
	Voice string

	// Instructions is the system prompt.
	Instructions string

	// Tools are the function declarations offered to the model.
	Tools []Tool
}

// Client is a live channel to the model. Callbacks fire on the read
// goroutine in server order; handlers must not block.
type Client struct {
	config Config
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc

	writeMu sync.Mutex

	onAudio        func(data []byte, mimeType string)
	onTranscript   func(role, text string)
	onToolCall     func(calls []toolcall.Call)
	onInterrupted  func()
	onTurnComplete func()
	onError        func(err error)

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
	audioChunks      atomic.Int64
}

var _ toolcall.Responder = (*Client)(nil)

// NewClient validates cfg and returns an unconnected client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("live: model is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.SetupTimeout <= 0 {
		cfg.SetupTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		config: cfg,
		logger: cfg.Logger.With("component", "live"),
	}, nil
}

// Connect dials the endpoint, performs the setup handshake, and starts the
// read loop. It returns only after the server confirms setup, so media sent
// afterwards is never dropped on an unconfigured session.
func (c *Client) Connect(ctx context.Context, params SessionParams) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	wsURL, err := url.Parse(c.config.Endpoint)
	if err != nil {
		return fmt.Errorf("live: invalid endpoint: %w", err)
	}
	q := wsURL.Query()
	q.Set("key", c.config.APIKey)
	wsURL.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	c.logger.Info("connecting to live endpoint", "model", c.config.Model)

	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return newChannelError(
				fmt.Sprintf("dial failed with status %d", resp.StatusCode),
				err,
				resp.StatusCode >= 500,
			)
		}
		return newChannelError("dial failed", err, true)
	}

	if err := c.handshake(conn, params); err != nil {
		conn.Close()
		return err
	}

	readCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.cancel = cancel
	c.mu.Unlock()

	go c.readLoop(readCtx, conn)

	c.logger.Info("live session established", "voice", params.Voice, "tools", len(params.Tools))
	return nil
}

// handshake sends the setup message and waits for the server's setup
// completion before any other traffic flows.
func (c *Client) handshake(conn *websocket.Conn, params SessionParams) error {
	setup := &setupPayload{
		Model: "models/" + c.config.Model,
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}
	if params.Voice != "" {
		setup.GenerationConfig.SpeechConfig = &speechConfig{
			VoiceConfig: &voiceConfig{
				PrebuiltVoiceConfig: &prebuiltVoiceConfig{VoiceName: params.Voice},
			},
		}
	}
	if params.Instructions != "" {
		setup.SystemInstruction = &content{Parts: []part{{Text: params.Instructions}}}
	}
	if len(params.Tools) > 0 {
		setup.Tools = []toolSet{{FunctionDeclarations: params.Tools}}
	}

	if err := c.writeJSON(conn, clientMessage{Setup: setup}); err != nil {
		return newChannelError("send setup", err, true)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.config.SetupTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var msg serverMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return newChannelError("await setup", err, true)
	}
	if msg.SetupComplete == nil {
		return ErrSetupRejected
	}
	c.messagesReceived.Add(1)
	return nil
}

// IsConnected reports whether the channel is open.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SendMedia uploads one media chunk (PCM block or JPEG frame) as realtime
// input.
func (c *Client) SendMedia(mimeType string, data []byte) error {
	conn, err := c.openConn()
	if err != nil {
		return err
	}
	msg := clientMessage{
		RealtimeInput: &realtimeInput{
			MediaChunks: []inlineData{{
				MIMEType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(data),
			}},
		},
	}
	if err := c.writeJSON(conn, msg); err != nil {
		return newChannelError("send media", err, true)
	}
	return nil
}

// SendToolResponses delivers function results back to the model. Implements
// toolcall.Responder.
func (c *Client) SendToolResponses(responses []toolcall.Response) error {
	conn, err := c.openConn()
	if err != nil {
		return err
	}
	payload := &toolResponsePayload{
		FunctionResponses: make([]functionResponse, 0, len(responses)),
	}
	for _, r := range responses {
		payload.FunctionResponses = append(payload.FunctionResponses, functionResponse{
			ID:       r.ID,
			Name:     r.Name,
			Response: map[string]any{"result": r.Result},
		})
	}
	if err := c.writeJSON(conn, clientMessage{ToolResponse: payload}); err != nil {
		return newChannelError("send tool responses", err, true)
	}
	return nil
}

func (c *Client) openConn() (*websocket.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected || c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *Client) writeJSON(conn *websocket.Conn, msg clientMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.messagesSent.Add(1)
	return nil
}

// Close shuts the channel down. Safe to call repeatedly and concurrently
// with the read loop.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The read loop clears connected when the transport fails; the
	// underlying conn still needs closing then.
	if !c.connected && c.conn == nil {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.logger.Info("live session closed")
	return nil
}

// Stats reports channel counters.
func (c *Client) Stats() Stats {
	return Stats{
		MessagesSent:     c.messagesSent.Load(),
		MessagesReceived: c.messagesReceived.Load(),
		AudioChunks:      c.audioChunks.Load(),
	}
}

// Stats are cumulative channel counters.
type Stats struct {
	MessagesSent     int64 `json:"messages_sent"`
	MessagesReceived int64 `json:"messages_received"`
	AudioChunks      int64 `json:"audio_chunks"`
}

// readLoop pumps server messages until the connection closes or the
// context is cancelled. Dispatch order matches wire order.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("live channel closed by server")
				return
			}
			c.logger.Error("live channel read failed", "error", err)
			c.emitError(newChannelError("read", err, true))
			return
		}
		c.messagesReceived.Add(1)

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("unparseable server message", "error", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg serverMessage) {
	switch {
	case msg.ServerContent != nil:
		c.handleContent(msg.ServerContent)

	case msg.ToolCall != nil:
		calls := make([]toolcall.Call, 0, len(msg.ToolCall.FunctionCalls))
		for _, fc := range msg.ToolCall.FunctionCalls {
			calls = append(calls, toolcall.Call{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		c.emitToolCall(calls)

	case msg.GoAway != nil:
		c.logger.Warn("server requested shutdown", "time_left", msg.GoAway.TimeLeft)
	}
}

// handleContent dispatches the parts of one server content message.
// Interruption is reported before any media in the same message so
// downstream flushes never discard fresh audio.
func (c *Client) handleContent(sc *serverContent) {
	if sc.Interrupted {
		c.emitInterrupted()
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		c.emitTranscript(RoleUser, sc.InputTranscription.Text)
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		c.emitTranscript(RoleModel, sc.OutputTranscription.Text)
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				c.logger.Warn("undecodable inline data", "error", err)
				continue
			}
			c.audioChunks.Add(1)
			c.emitAudio(audio, p.InlineData.MIMEType)
		}
	}
	if sc.TurnComplete {
		c.emitTurnComplete()
	}
}

// OnAudio sets the model audio callback.
func (c *Client) OnAudio(fn func(data []byte, mimeType string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAudio = fn
}

// OnTranscript sets the transcript callback.
func (c *Client) OnTranscript(fn func(role, text string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTranscript = fn
}

// OnToolCall sets the tool call callback.
func (c *Client) OnToolCall(fn func(calls []toolcall.Call)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onToolCall = fn
}

// OnInterrupted sets the barge-in callback.
func (c *Client) OnInterrupted(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInterrupted = fn
}

// OnTurnComplete sets the turn boundary callback.
func (c *Client) OnTurnComplete(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTurnComplete = fn
}

// OnError sets the channel error callback.
func (c *Client) OnError(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

func (c *Client) emitAudio(data []byte, mimeType string) {
	c.mu.RLock()
	fn := c.onAudio
	c.mu.RUnlock()
	if fn != nil {
		fn(data, mimeType)
	}
}

func (c *Client) emitTranscript(role, text string) {
	c.mu.RLock()
	fn := c.onTranscript
	c.mu.RUnlock()
	if fn != nil {
		fn(role, text)
	}
}

func (c *Client) emitToolCall(calls []toolcall.Call) {
	c.mu.RLock()
	fn := c.onToolCall
	c.mu.RUnlock()
	if fn != nil {
		fn(calls)
	}
}

func (c *Client) emitInterrupted() {
	c.mu.RLock()
	fn := c.onInterrupted
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) emitTurnComplete() {
	c.mu.RLock()
	fn := c.onTurnComplete
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) emitError(err error) {
	c.mu.RLock()
	fn := c.onError
	c.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}
