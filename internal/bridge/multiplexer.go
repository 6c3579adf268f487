package bridge

import (
	"context"
	"encoding/base64"
	"log"
	"strings"
	"time"

	"github.com/rpellerano/gondola/internal/live"
	"github.com/rpellerano/gondola/internal/protocol"
	"github.com/rpellerano/gondola/internal/reliability"
	"github.com/rpellerano/gondola/internal/session"
	"github.com/rpellerano/gondola/internal/tools"
	"github.com/rpellerano/gondola/internal/tts"
)

// multiplexer is the single task that owns one session: it drains the
// inbound queue, drives the upstream stream, and fans results out to the
// session's sink. Nothing else advances the session's lifecycle.
type multiplexer struct {
	svc  *Service
	sess *session.Session
	conn live.Conn

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan error
}

// turnState is fresh per user turn.
type turnState struct {
	text              strings.Builder
	completionEmitted bool
	toolRan           bool
	audioSeq          int
}

func newMultiplexer(svc *Service, sess *session.Session) *multiplexer {
	ctx, cancel := context.WithCancel(context.Background())
	m := &multiplexer{
		svc:    svc,
		sess:   sess,
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan error, 1),
	}
	sess.SetCanceler(cancel)
	return m
}

func (m *multiplexer) run() {
	sess := m.sess
	active := false

	defer func() {
		m.svc.registry.Remove(sess.ID)
		if dropped := sess.DrainInbound(); dropped > 0 {
			log.Printf("[session %s] dropped %d queued events on shutdown", sess.ID, dropped)
		}
		if m.conn != nil {
			m.conn.Close()
		}
		sess.Advance(session.StateTerminated)
		if active {
			m.svc.metrics.ActiveSessions.Dec()
		}
		m.svc.metrics.SessionEvents.WithLabelValues("terminated").Inc()
		m.cancel()
		sess.Finish()
	}()

	sess.Advance(session.StateConnecting)
	dialCtx, dialCancel := context.WithTimeout(m.ctx, m.svc.opts.CreateSessionTimeout)
	conn, err := m.svc.dialer.Dial(dialCtx)
	dialCancel()
	if err != nil {
		log.Printf("[session %s] upstream handshake failed: %v", sess.ID, err)
		m.svc.metrics.ProviderErrors.WithLabelValues("upstream", "handshake").Inc()
		// Drop the registry entry before signalling so a failed create is
		// never visible to Status.
		m.svc.registry.Remove(sess.ID)
		m.ready <- err
		return
	}
	m.conn = conn
	// A blocked websocket read only returns once the socket closes, so the
	// forced-cancel hook has to tear down the stream as well as the context.
	sess.SetCanceler(func() {
		m.cancel()
		conn.Close()
	})
	sess.Advance(session.StateActive)
	active = true
	m.svc.metrics.ActiveSessions.Inc()
	m.svc.metrics.SessionEvents.WithLabelValues("created").Inc()
	m.ready <- nil

	for {
		select {
		case <-m.ctx.Done():
			sess.Advance(session.StateDraining)
			return
		case ev := <-sess.Inbound():
			switch ev.Kind {
			case session.InboundTerminate:
				sess.Advance(session.StateDraining)
				return
			case session.InboundMediaFrame:
				if err := m.conn.SendRealtime(m.ctx, live.Blob{MimeType: ev.MimeType, Data: ev.Frame}); err != nil {
					m.emitUpstreamError(err)
					return
				}
			case session.InboundUserMessage:
				if err := m.processTurn(ev); err != nil {
					return
				}
			}
		}
	}
}

// processTurn submits one user turn and consumes frames until the turn
// completes. Tool calls execute synchronously inside the loop so their
// responses reach the model before generation resumes.
func (m *multiplexer) processTurn(ev session.InboundEvent) error {
	turn := live.ClientTurn{Text: ev.Text}
	if len(ev.Frame) > 0 {
		turn.Blob = &live.Blob{MimeType: ev.MimeType, Data: ev.Frame}
	}
	if err := m.conn.SendTurn(m.ctx, turn); err != nil {
		m.emitUpstreamError(err)
		return err
	}

	state := &turnState{}
	for {
		frame, err := m.conn.Receive(m.ctx)
		if err != nil {
			if m.ctx.Err() != nil {
				return err
			}
			m.emitUpstreamError(err)
			return err
		}
		m.svc.metrics.UpstreamFrames.WithLabelValues(frameKind(frame)).Inc()

		switch f := frame.(type) {
		case live.TextFrame:
			state.text.WriteString(f.Text)
			m.deliver(protocol.TextDelta{
				Type:      protocol.TypeTextDelta,
				SessionID: m.sess.ID,
				Text:      f.Text,
			})
		case live.ToolCallFrame:
			if err := m.handleToolCall(f, state); err != nil {
				m.emitUpstreamError(err)
				return err
			}
		case live.AudioFrame:
			m.deliver(protocol.AudioChunk{
				Type:        protocol.TypeAudioChunk,
				SessionID:   m.sess.ID,
				Seq:         state.audioSeq,
				Format:      formatFromMime(f.MimeType),
				AudioBase64: base64.StdEncoding.EncodeToString(f.Data),
			})
			state.audioSeq++
		case live.TranscriptionFrame:
			m.deliver(protocol.Transcription{
				Type:      protocol.TypeTranscription,
				SessionID: m.sess.ID,
				Text:      f.Text,
				Speaker:   f.Speaker,
			})
		case live.TurnCompleteFrame:
			m.finishTurn(state)
			return nil
		case live.SetupCompleteFrame:
			// handshake acknowledgement, nothing to forward
		}
	}
}

// handleToolCall executes the first requested call; extra calls in the same
// frame are logged and skipped.
func (m *multiplexer) handleToolCall(f live.ToolCallFrame, state *turnState) error {
	if len(f.Calls) == 0 {
		return nil
	}
	if len(f.Calls) > 1 {
		log.Printf("[session %s] ignoring %d extra tool calls in one frame", m.sess.ID, len(f.Calls)-1)
	}
	call := f.Calls[0]
	state.toolRan = true

	res := m.svc.tools.Execute(m.ctx, call.Name, call.Args)
	outcome := "ok"
	if res.Err != nil {
		outcome = "error"
		log.Printf("[session %s] tool %s failed: %v", m.sess.ID, call.Name, res.Err)
	}
	m.svc.metrics.ToolCalls.WithLabelValues(call.Name, outcome).Inc()

	if call.Name == tools.SearchProducts && res.Err == nil {
		items := make([]protocol.ToolItem, 0, len(res.Items))
		for _, it := range res.Items {
			items = append(items, protocol.ToolItem{
				ID:          it.ID,
				Name:        it.Name,
				Description: it.Description,
				Price:       it.Price,
				ImageURL:    it.ImageURL,
				Aisle:       it.Aisle,
			})
		}
		m.deliver(protocol.ToolResult{
			Type:      protocol.TypeToolResult,
			SessionID: m.sess.ID,
			ToolName:  call.Name,
			Items:     items,
		})
		// The model may stay silent after a tool round-trip; give the
		// client its completion now rather than risking a hung turn.
		if !state.completionEmitted {
			state.completionEmitted = true
			m.deliver(protocol.ResponseComplete{
				Type:      protocol.TypeResponseComplete,
				SessionID: m.sess.ID,
				Text:      m.svc.opts.FallbackCompletionText,
			})
		}
	}

	return m.conn.SendToolResponse(m.ctx, live.ToolResponse{
		ID:       call.ID,
		Name:     call.Name,
		Response: res.Response,
	})
}

func (m *multiplexer) finishTurn(state *turnState) {
	if state.completionEmitted {
		return
	}
	state.completionEmitted = true
	text := state.text.String()
	completion := text
	if strings.TrimSpace(completion) == "" && state.toolRan {
		completion = m.svc.opts.FallbackCompletionText
	}
	m.deliver(protocol.ResponseComplete{
		Type:      protocol.TypeResponseComplete,
		SessionID: m.sess.ID,
		Text:      completion,
	})
	if strings.TrimSpace(text) != "" && m.svc.synth != nil {
		go m.synthesize(text)
	}
}

// synthesize streams TTS audio for a completed turn. Failures degrade to a
// text-only response.
func (m *multiplexer) synthesize(text string) {
	start := time.Now()
	audio, format, err := m.svc.synth.Synthesize(m.ctx, text)
	if err != nil {
		log.Printf("[session %s] synthesis failed: %v", m.sess.ID, err)
		m.svc.metrics.ProviderErrors.WithLabelValues("tts", "synthesize").Inc()
		return
	}
	m.svc.metrics.ObserveSynthesisLatency(time.Since(start))

	for i, chunk := range tts.Chunk(audio, m.svc.opts.AudioChunkSize) {
		m.deliver(protocol.AudioChunk{
			Type:        protocol.TypeAudioChunk,
			SessionID:   m.sess.ID,
			Seq:         i,
			Format:      format,
			AudioBase64: base64.StdEncoding.EncodeToString(chunk),
		})
	}
	m.deliver(protocol.AudioStreamEnd{
		Type:      protocol.TypeAudioStreamEnd,
		SessionID: m.sess.ID,
	})
}

func (m *multiplexer) emitUpstreamError(err error) {
	log.Printf("[session %s] upstream failure: %v", m.sess.ID, err)
	m.svc.metrics.ProviderErrors.WithLabelValues("upstream", "stream").Inc()
	m.deliver(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: m.sess.ID,
		Code:      "upstream_error",
		Source:    "upstream",
		Retryable: reliability.IsRetryable(err),
		Detail:    err.Error(),
	})
}

func (m *multiplexer) deliver(event any) {
	m.sess.Deliver(event)
	m.svc.metrics.WSMessages.WithLabelValues("outbound", eventType(event)).Inc()
}

func eventType(event any) string {
	switch event.(type) {
	case protocol.TextDelta:
		return string(protocol.TypeTextDelta)
	case protocol.ToolResult:
		return string(protocol.TypeToolResult)
	case protocol.AudioChunk:
		return string(protocol.TypeAudioChunk)
	case protocol.AudioStreamEnd:
		return string(protocol.TypeAudioStreamEnd)
	case protocol.Transcription:
		return string(protocol.TypeTranscription)
	case protocol.ResponseComplete:
		return string(protocol.TypeResponseComplete)
	case protocol.ErrorEvent:
		return string(protocol.TypeErrorEvent)
	default:
		return "unknown"
	}
}

func frameKind(frame live.ServerFrame) string {
	switch frame.(type) {
	case live.TextFrame:
		return "text"
	case live.ToolCallFrame:
		return "tool_call"
	case live.AudioFrame:
		return "audio"
	case live.TranscriptionFrame:
		return "transcription"
	case live.TurnCompleteFrame:
		return "turn_complete"
	case live.SetupCompleteFrame:
		return "setup_complete"
	default:
		return "unknown"
	}
}

func formatFromMime(mime string) string {
	switch {
	case strings.HasPrefix(mime, "audio/pcm"):
		return "pcm"
	case strings.HasPrefix(mime, "audio/mpeg"), strings.HasPrefix(mime, "audio/mp3"):
		return "mp3"
	case mime == "":
		return "pcm"
	default:
		return mime
	}
}
