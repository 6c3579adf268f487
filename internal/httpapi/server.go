package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/rpellerano/gondola/internal/audio"
	"github.com/rpellerano/gondola/internal/bridge"
	"github.com/rpellerano/gondola/internal/config"
	"github.com/rpellerano/gondola/internal/observability"
	"github.com/rpellerano/gondola/internal/protocol"
	"github.com/rpellerano/gondola/internal/session"
	"github.com/rpellerano/gondola/internal/tts"
)

// Bridge is the session façade the transport drives.
type Bridge interface {
	CreateSession(ctx context.Context) (string, error)
	SendMessage(sessionID, text, frame string) error
	SendMediaFrame(sessionID, frame string) error
	EndSession(ctx context.Context, sessionID string) bool
	Status() bridge.Status
	AttachSink(sessionID string, sink session.Sink) error
	DetachSink(sessionID string)
}

type Server struct {
	cfg      config.Config
	bridge   Bridge
	synth    tts.Synthesizer
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, b Bridge, synth tts.Synthesizer, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		bridge:  b,
		synth:   synth,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot drive a user's session.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/live/session", s.handleCreateSession)
	r.Post("/v1/live/session/{id}/end", s.handleEndSession)
	r.Get("/v1/live/session/ws", s.handleSessionWS)
	r.Get("/v1/live/status", s.handleStatus)
	r.Post("/v1/live/tts/preview", s.handlePreviewTTS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.bridge.CreateSession(r.Context())
	if err != nil {
		if errors.Is(err, bridge.ErrCreateTimeout) {
			respondError(w, http.StatusGatewayTimeout, "handshake_timeout", err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "handshake_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"session_id": id})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	ended := s.bridge.EndSession(r.Context(), id)
	respondJSON(w, http.StatusOK, map[string]any{"session_id": id, "ended": ended})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.bridge.Status())
}

func (s *Server) handlePreviewTTS(w http.ResponseWriter, r *http.Request) {
	if s.synth == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "synthesizer not configured")
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	data, format, err := s.synth.Synthesize(r.Context(), req.Text)
	if err != nil {
		s.metrics.ProviderErrors.WithLabelValues("tts", "preview").Inc()
		respondError(w, http.StatusBadGateway, "synthesis_failed", err.Error())
		return
	}

	contentType := "application/octet-stream"
	switch format {
	case "mp3":
		contentType = "audio/mpeg"
	case "ogg_opus":
		contentType = "audio/ogg"
	case "linear16", "pcm":
		data = audio.WrapPCM16LE(data, audio.DefaultSampleRate)
		contentType = "audio/wav"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// wsSink fans session events into a per-connection outbound queue. Deliver
// never blocks; a saturated queue drops the event and counts it.
type wsSink struct {
	out     chan any
	metrics *observability.Metrics
}

func (s *wsSink) Deliver(event any) {
	select {
	case s.out <- event:
	default:
		s.metrics.WSMessages.WithLabelValues("outbound", "drop_full").Inc()
	}
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}

	sink := &wsSink{out: make(chan any, 256), metrics: s.metrics}
	if err := s.bridge.AttachSink(sessionID, sink); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.bridge.DetachSink(sessionID)
		return
	}
	defer conn.Close()
	defer s.bridge.DetachSink(sessionID)

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-sink.out:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			sink.Deliver(s.errorEvent(sessionID, "invalid_client_message", err))
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		switch msg := parsed.(type) {
		case protocol.UserMessage:
			if msg.SessionID != sessionID {
				sink.Deliver(s.errorEvent(sessionID, "session_mismatch", errors.New("message session_id does not match connection")))
				continue
			}
			if err := s.bridge.SendMessage(sessionID, msg.Text, msg.Frame); err != nil {
				sink.Deliver(s.errorEvent(sessionID, sendErrorCode(err), err))
			}
		case protocol.MediaFrame:
			if msg.SessionID != sessionID {
				sink.Deliver(s.errorEvent(sessionID, "session_mismatch", errors.New("message session_id does not match connection")))
				continue
			}
			if err := s.bridge.SendMediaFrame(sessionID, msg.Frame); err != nil {
				sink.Deliver(s.errorEvent(sessionID, sendErrorCode(err), err))
			}
		case protocol.ClientControl:
			switch msg.Action {
			case "end":
				s.bridge.EndSession(ctx, sessionID)
			default:
				sink.Deliver(s.errorEvent(sessionID, "unsupported_action", errors.New("unknown control action: "+msg.Action)))
			}
		}
	}

	cancel()
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

func (s *Server) errorEvent(sessionID, code string, err error) protocol.ErrorEvent {
	return protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      code,
		Source:    "gateway",
		Retryable: errors.Is(err, session.ErrQueueFull),
		Detail:    err.Error(),
	}
}

func sendErrorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "session_not_found"
	case errors.Is(err, session.ErrDraining):
		return "session_ending"
	case errors.Is(err, session.ErrQueueFull):
		return "queue_full"
	default:
		return "send_failed"
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.UserMessage:
		return m.Type, true
	case protocol.MediaFrame:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	default:
		return "", false
	}
}
