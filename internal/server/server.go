package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prepmate/prepmate/internal/bus"
	"github.com/prepmate/prepmate/internal/session"
)

// ErrNoClient means no browser page is connected
var ErrNoClient = errors.New("no client connected")

// Flow is the subset of the session controller driven by client messages
type Flow interface {
	Start(ctx context.Context, jobTitle, company string) error
	ToggleMode(mode session.InputMode)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	SubmitText(ctx context.Context, text string) error
	Repeat(ctx context.Context)
}

// Playback receives playback lifecycle reports from the browser
type Playback interface {
	HandlePlaybackStarted(utteranceID string)
	HandlePlaybackEnded(utteranceID string)
	HandlePlaybackFailed(utteranceID, message string)
}

// ChunkSink accumulates captured audio fragments
type ChunkSink interface {
	Append(chunk []byte)
}

// Server bridges the browser page and the session controller. It holds at
// most one client connection; a new page replaces the previous one. It also
// acts as the microphone capture source and the playback sink, forwarding
// both concerns to the connected page.
type Server struct {
	allowedOrigin string
	eventBus      *bus.EventBus
	logger        zerolog.Logger

	flow     Flow
	playback Playback
	chunks   ChunkSink

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewServer creates a server and subscribes it to controller events
func NewServer(allowedOrigin string, eventBus *bus.EventBus, logger zerolog.Logger) *Server {
	s := &Server{
		allowedOrigin: allowedOrigin,
		eventBus:      eventBus,
		logger:        logger,
	}
	s.subscribeEvents()
	return s
}

// Bind attaches the controller-side collaborators. Must be called before
// the first client connects.
func (s *Server) Bind(flow Flow, playback Playback, chunks ChunkSink) {
	s.flow = flow
	s.playback = playback
	s.chunks = chunks
}

// Router returns the HTTP surface: health check and the WebSocket endpoint
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/ws", s.handleWS)
	return r
}

// Acquire implements audio.CaptureSource by asking the page to start its
// MediaRecorder. Fails when no page is connected.
func (s *Server) Acquire(_ context.Context) error {
	s.mu.Lock()
	connected := s.conn != nil
	s.mu.Unlock()
	if !connected {
		return ErrNoClient
	}
	return s.send(ServerMessage{Type: MsgStartCapture})
}

// Release implements audio.CaptureSource
func (s *Server) Release() {
	if err := s.send(ServerMessage{Type: MsgStopCapture}); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to send stop_capture")
	}
}

// Play implements speech.Sink by shipping the synthesized audio to the page
func (s *Server) Play(_ context.Context, utteranceID string, audio []byte) error {
	return s.send(ServerMessage{
		Type:        MsgSpeak,
		UtteranceID: utteranceID,
		Audio:       base64.StdEncoding.EncodeToString(audio),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to accept WebSocket")
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			s.logger.Debug().Err(closeErr).Msg("Failed to close websocket")
		}
	}()

	s.register(ws)
	defer s.unregister(ws)

	s.logger.Info().Str("remote", r.RemoteAddr).Msg("Client connected")
	s.readLoop(r.Context(), ws)
	s.logger.Info().Str("remote", r.RemoteAddr).Msg("Client disconnected")
}

func (s *Server) originPatterns() []string {
	if s.allowedOrigin == "" || s.allowedOrigin == "*" {
		return []string{"*"}
	}
	return []string{s.allowedOrigin}
}

func (s *Server) register(ws *websocket.Conn) {
	s.mu.Lock()
	prev := s.conn
	s.conn = ws
	s.mu.Unlock()

	if prev != nil {
		_ = prev.Close(websocket.StatusPolicyViolation, "replaced by new client")
	}
}

func (s *Server) unregister(ws *websocket.Conn) {
	s.mu.Lock()
	if s.conn == ws {
		s.conn = nil
	}
	s.mu.Unlock()
}

// readLoop dispatches client messages in arrival order. Session operations
// run inline so a second click cannot overtake the first.
func (s *Server) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("Dropping malformed client message")
			continue
		}
		s.dispatch(ctx, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case MsgStartInterview:
		if err := s.flow.Start(ctx, msg.JobTitle, msg.Company); err != nil {
			s.logger.Warn().Err(err).Msg("Start interview rejected")
		}
	case MsgToggleMode:
		s.flow.ToggleMode(session.InputMode(msg.Mode))
	case MsgStartRecording:
		if err := s.flow.StartRecording(ctx); err != nil {
			s.logger.Debug().Err(err).Msg("Start recording rejected")
		}
	case MsgStopRecording:
		if err := s.flow.StopRecording(ctx); err != nil {
			s.logger.Debug().Err(err).Msg("Stop recording rejected")
		}
	case MsgAudioChunk:
		chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Dropping undecodable audio chunk")
			return
		}
		s.chunks.Append(chunk)
	case MsgTextAnswer:
		if err := s.flow.SubmitText(ctx, msg.Text); err != nil {
			s.logger.Debug().Err(err).Msg("Text answer rejected")
		}
	case MsgRepeat:
		s.flow.Repeat(ctx)
	case MsgPlaybackStarted:
		s.playback.HandlePlaybackStarted(msg.UtteranceID)
	case MsgPlaybackEnded:
		s.playback.HandlePlaybackEnded(msg.UtteranceID)
	case MsgPlaybackFailed:
		s.playback.HandlePlaybackFailed(msg.UtteranceID, msg.Error)
	default:
		s.logger.Warn().Str("type", msg.Type).Msg("Unknown client message type")
	}
}

// subscribeEvents forwards controller events to the connected page
func (s *Server) subscribeEvents() {
	s.eventBus.Subscribe(bus.EventTypeAvatarFrameChanged, func(e bus.Event) {
		s.forward(ServerMessage{
			Type:       MsgAvatarFrame,
			Expression: dataString(e, "expression"),
			Frame:      dataString(e, "frame"),
		})
	})
	s.eventBus.Subscribe(bus.EventTypeSessionQuestion, func(e bus.Event) {
		s.forward(ServerMessage{
			Type:     MsgQuestion,
			Question: dataString(e, "question"),
			Index:    dataInt(e, "index"),
			Total:    dataInt(e, "total"),
		})
	})
	s.eventBus.Subscribe(bus.EventTypeSessionLogEntry, func(e bus.Event) {
		msg := ServerMessage{Type: MsgLogEntry}
		if entry, ok := e.Data["entry"].(session.LogEntry); ok {
			msg.Entry = &entry
		}
		s.forward(msg)
	})
	s.eventBus.Subscribe(bus.EventTypeSessionDone, func(e bus.Event) {
		s.forward(ServerMessage{Type: MsgSessionDone, Message: dataString(e, "message")})
	})
	s.eventBus.Subscribe(bus.EventTypeSessionError, func(e bus.Event) {
		s.forward(ServerMessage{Type: MsgError, Error: dataString(e, "error")})
	})
	s.eventBus.Subscribe(bus.EventTypeRecordingError, func(e bus.Event) {
		s.forward(ServerMessage{Type: MsgRecordingError, Error: dataString(e, "error")})
	})
	s.eventBus.Subscribe(bus.EventTypeSessionControls, func(e bus.Event) {
		s.forward(ServerMessage{
			Type:          MsgControls,
			StartEnabled:  dataBool(e, "start_enabled"),
			RepeatEnabled: dataBool(e, "repeat_enabled"),
		})
	})
	s.eventBus.Subscribe(bus.EventTypeSessionMode, func(e bus.Event) {
		s.forward(ServerMessage{Type: MsgMode, Mode: dataString(e, "mode")})
	})
}

// forward sends a message when a client is connected, dropping it otherwise
func (s *Server) forward(msg ServerMessage) {
	if err := s.send(msg); err != nil && !errors.Is(err, ErrNoClient) {
		s.logger.Debug().Err(err).Str("type", msg.Type).Msg("Failed to forward event")
	}
}

func (s *Server) send(msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrNoClient
	}
	return s.conn.Write(context.Background(), websocket.MessageText, data)
}

func dataString(e bus.Event, key string) string {
	v, _ := e.Data[key].(string)
	return v
}

func dataInt(e bus.Event, key string) int {
	v, _ := e.Data[key].(int)
	return v
}

func dataBool(e bus.Event, key string) bool {
	v, _ := e.Data[key].(bool)
	return v
}
