package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rpellerano/gondola/internal/live"
	"github.com/rpellerano/gondola/internal/observability"
	"github.com/rpellerano/gondola/internal/session"
	"github.com/rpellerano/gondola/internal/tools"
	"github.com/rpellerano/gondola/internal/tts"
)

// ErrCreateTimeout is returned when the upstream handshake does not finish
// inside the create-session bound.
var ErrCreateTimeout = errors.New("session handshake timed out")

// Options bound the bridge's blocking operations.
type Options struct {
	CreateSessionTimeout   time.Duration
	EndSessionTimeout      time.Duration
	FallbackCompletionText string
	AudioChunkSize         int
}

func (o *Options) applyDefaults() {
	if o.CreateSessionTimeout <= 0 {
		o.CreateSessionTimeout = 10 * time.Second
	}
	if o.EndSessionTimeout <= 0 {
		o.EndSessionTimeout = 5 * time.Second
	}
	if o.FallbackCompletionText == "" {
		o.FallbackCompletionText = "Here you go!"
	}
	if o.AudioChunkSize <= 0 {
		o.AudioChunkSize = 4096
	}
}

// Service is the façade the transport layer talks to. It owns the scheduler
// and spawns one multiplexer per session.
type Service struct {
	opts     Options
	registry *session.Registry
	dialer   live.Dialer
	tools    *tools.Executor
	synth    tts.Synthesizer
	metrics  *observability.Metrics
	sched    *Scheduler
}

func NewService(
	opts Options,
	registry *session.Registry,
	dialer live.Dialer,
	executor *tools.Executor,
	synth tts.Synthesizer,
	metrics *observability.Metrics,
	sched *Scheduler,
) *Service {
	opts.applyDefaults()
	return &Service{
		opts:     opts,
		registry: registry,
		dialer:   dialer,
		tools:    executor,
		synth:    synth,
		metrics:  metrics,
		sched:    sched,
	}
}

// CreateSession registers a session and blocks until the upstream handshake
// succeeds or the bound expires. On failure nothing is left behind.
func (b *Service) CreateSession(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.CreateSessionTimeout)
	defer cancel()

	v, err := b.sched.Submit(ctx, func() (any, error) {
		sess := b.registry.Create()
		m := newMultiplexer(b, sess)
		go m.run()
		return m, nil
	})
	if err != nil {
		return "", fmt.Errorf("schedule session: %w", err)
	}
	m := v.(*multiplexer)

	select {
	case err := <-m.ready:
		if err != nil {
			return "", fmt.Errorf("session handshake: %w", err)
		}
		return m.sess.ID, nil
	case <-ctx.Done():
		// The handshake may still land after we give up; make sure a late
		// success does not leave an orphaned session running.
		go func() {
			if err := <-m.ready; err == nil {
				m.cancel()
			}
		}()
		return "", ErrCreateTimeout
	}
}

// SendMessage enqueues one user turn without blocking. The enqueue itself is
// the cross-domain handoff; a full queue or a draining session rejects the
// send synchronously.
func (b *Service) SendMessage(sessionID, text, frame string) error {
	sess, err := b.registry.Get(sessionID)
	if err != nil {
		return err
	}

	ev := session.InboundEvent{Kind: session.InboundUserMessage, Text: text}
	if frame != "" {
		data, mime, err := decodeDataURL(frame)
		if err != nil {
			return fmt.Errorf("invalid frame: %w", err)
		}
		ev.Frame, ev.MimeType = data, mime
	}

	if err := sess.Enqueue(ev); err != nil {
		return err
	}
	b.metrics.SessionEvents.WithLabelValues("user_message").Inc()
	return nil
}

// SendMediaFrame enqueues a mid-turn media frame (data-URL encoded).
func (b *Service) SendMediaFrame(sessionID, frame string) error {
	sess, err := b.registry.Get(sessionID)
	if err != nil {
		return err
	}

	data, mime, err := decodeDataURL(frame)
	if err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}
	if err := sess.Enqueue(session.InboundEvent{
		Kind:     session.InboundMediaFrame,
		Frame:    data,
		MimeType: mime,
	}); err != nil {
		return err
	}
	b.metrics.SessionEvents.WithLabelValues("media_frame").Inc()
	return nil
}

// EndSession requests an orderly teardown. The first call for a session
// returns true, later calls and unknown ids return false. The wait for the
// multiplexer is bounded; past the bound the task is cancelled and the
// cancellation itself is awaited.
func (b *Service) EndSession(ctx context.Context, sessionID string) bool {
	submitCtx, cancel := context.WithTimeout(ctx, b.opts.EndSessionTimeout)
	defer cancel()

	v, err := b.sched.Submit(submitCtx, func() (any, error) {
		sess, err := b.registry.Get(sessionID)
		if err != nil {
			return nil, err
		}
		if !sess.MarkEnding() {
			return nil, session.ErrDraining
		}
		// Best effort: a full queue is fine, the forced cancel below still
		// applies.
		_ = sess.Enqueue(session.InboundEvent{Kind: session.InboundTerminate})
		return sess, nil
	})
	if err != nil {
		return false
	}
	sess := v.(*session.Session)
	b.metrics.SessionEvents.WithLabelValues("end_requested").Inc()

	timer := time.NewTimer(b.opts.EndSessionTimeout)
	defer timer.Stop()
	select {
	case <-sess.Done():
	case <-timer.C:
		log.Printf("[session %s] teardown exceeded %s, forcing cancellation", sessionID, b.opts.EndSessionTimeout)
		sess.ForceCancel()
		<-sess.Done()
	}
	return true
}

// Status reports the live session ids and the total ever created.
type Status struct {
	ActiveSessionIDs []string `json:"active_session_ids"`
	TotalSessions    int      `json:"total_sessions"`
}

func (b *Service) Status() Status {
	return Status{
		ActiveSessionIDs: b.registry.ActiveIDs(),
		TotalSessions:    b.registry.TotalCreated(),
	}
}

// AttachSink points a session's outbound events at a transport connection.
func (b *Service) AttachSink(sessionID string, sink session.Sink) error {
	sess, err := b.registry.Get(sessionID)
	if err != nil {
		return err
	}
	sess.SetSink(sink)
	return nil
}

// DetachSink reverts a session to the discarding sink, typically when its
// websocket goes away.
func (b *Service) DetachSink(sessionID string) {
	if sess, err := b.registry.Get(sessionID); err == nil {
		sess.SetSink(session.NopSink{})
	}
}

// Shutdown ends every live session, bounded per session.
func (b *Service) Shutdown(ctx context.Context) {
	for _, id := range b.registry.ActiveIDs() {
		b.EndSession(ctx, id)
	}
}
