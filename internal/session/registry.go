package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a session lifecycle phase. Only the owning multiplexer task
// advances it; everything else may only read.
type State string

const (
	StateCreated    State = "created"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateDraining   State = "draining"
	StateTerminated State = "terminated"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrDraining  = errors.New("session draining")
	ErrQueueFull = errors.New("session inbound queue full")
)

// InboundKind tags client-originated events flowing into the streaming domain.
type InboundKind string

const (
	InboundUserMessage InboundKind = "user_message"
	InboundMediaFrame  InboundKind = "media_frame"
	InboundTerminate   InboundKind = "terminate"
)

// InboundEvent is one client-originated event. Media payloads arrive already
// decoded from their data-URL form.
type InboundEvent struct {
	Kind     InboundKind
	Text     string
	Frame    []byte
	MimeType string
}

// Sink delivers one event to the client(s) of a session. Implementations
// must be non-blocking and safe to call from the streaming domain.
type Sink interface {
	Deliver(event any)
}

// NopSink discards events; used before a transport attaches and after it
// detaches.
type NopSink struct{}

func (NopSink) Deliver(any) {}

// Session is one client's duplex conversation with the upstream service.
// The registry owns it; the multiplexer task holds a borrowed reference.
type Session struct {
	ID        string
	CreatedAt time.Time

	inbound chan InboundEvent
	done    chan struct{}

	mu       sync.Mutex
	state    State
	sink     Sink
	ending   bool
	canceler func()
}

func newSession(queueSize int) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		inbound:   make(chan InboundEvent, queueSize),
		done:      make(chan struct{}),
		state:     StateCreated,
		sink:      NopSink{},
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Advance moves the lifecycle forward. Reserved for the owning multiplexer.
func (s *Session) Advance(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// MarkEnding flips the ending flag exactly once; the first caller gets true.
func (s *Session) MarkEnding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ending {
		return false
	}
	s.ending = true
	return true
}

func (s *Session) Ending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ending
}

// Enqueue hands an event to the streaming domain without blocking. Sends are
// rejected once the session is draining or ending.
func (s *Session) Enqueue(ev InboundEvent) error {
	s.mu.Lock()
	state := s.state
	ending := s.ending
	s.mu.Unlock()

	if state == StateDraining || state == StateTerminated {
		return ErrDraining
	}
	if ending && ev.Kind != InboundTerminate {
		return ErrDraining
	}
	select {
	case s.inbound <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Inbound exposes the queue to the owning multiplexer.
func (s *Session) Inbound() <-chan InboundEvent { return s.inbound }

// DrainInbound discards queued events so a failed handshake leaves nothing
// behind. Returns the number dropped.
func (s *Session) DrainInbound() int {
	n := 0
	for {
		select {
		case <-s.inbound:
			n++
		default:
			return n
		}
	}
}

// Done is closed when the multiplexer task has fully released resources.
func (s *Session) Done() <-chan struct{} { return s.done }

// Finish marks the task complete. Called once by the multiplexer's cleanup.
func (s *Session) Finish() { close(s.done) }

// SetCanceler installs the hook a forced termination uses to abort the
// owning task. The task replaces it once the upstream stream exists so a
// forced cancel also closes the stream.
func (s *Session) SetCanceler(cancel func()) {
	s.mu.Lock()
	s.canceler = cancel
	s.mu.Unlock()
}

// ForceCancel aborts the owning task if a canceler is installed.
func (s *Session) ForceCancel() {
	s.mu.Lock()
	cancel := s.canceler
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) SetSink(sink Sink) {
	if sink == nil {
		sink = NopSink{}
	}
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *Session) Sink() Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink
}

// Deliver forwards one event to the currently attached sink.
func (s *Session) Deliver(event any) {
	s.Sink().Deliver(event)
}

// Registry is the process-wide session table. The mutex guards structural
// changes; per-session mutation goes through the session's own lock.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	totalCreated int
	queueSize    int
}

func NewRegistry(queueSize int) *Registry {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		queueSize: queueSize,
	}
}

// Create inserts a fresh session record in the Created state.
func (r *Registry) Create() *Session {
	s := newSession(r.queueSize)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.totalCreated++
	r.mu.Unlock()
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove deletes the registry entry. Called by the owning multiplexer during
// cleanup, never by external callers.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) ActiveIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) TotalCreated() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalCreated
}
