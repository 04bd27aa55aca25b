package transport

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sunthar/taskrelay/pkg/cerr"
)

// Session is one live SSE connection from an agent runtime. Responses
// queued through Push are drained by the SSE handler that owns the
// connection.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu     sync.Mutex
	out    chan *Response
	closed bool
}

func newSession() *Session {
	return &Session{
		ID:        ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String(),
		CreatedAt: time.Now(),
		out:       make(chan *Response, 16),
	}
}

// Push queues a response for delivery over the session's event stream.
// Pushing to a superseded session fails rather than blocks.
func (s *Session) Push(resp *Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return cerr.NewError(cerr.NotFound, "session is closed", nil)
	}
	select {
	case s.out <- resp:
		return nil
	default:
		return cerr.NewError(cerr.ResourceExhausted, "session event queue is full", nil)
	}
}

// Events exposes the delivery channel to the owning SSE handler.
func (s *Session) Events() <-chan *Response {
	return s.out
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

// Manager tracks the single active session. Opening a new session
// atomically supersedes and closes the previous one.
type Manager struct {
	mu     sync.Mutex
	active *Session
}

func NewManager() *Manager {
	return &Manager{}
}

// Open creates a new session and installs it as the active one. Any
// prior session is closed so its SSE handler unwinds.
func (m *Manager) Open() *Session {
	s := newSession()
	m.mu.Lock()
	prev := m.active
	m.active = s
	m.mu.Unlock()
	if prev != nil {
		prev.close()
	}
	return s
}

// Lookup returns the session with the given ID if it is still the active
// one. Stale IDs fail with NotFound.
func (m *Manager) Lookup(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.ID != id {
		return nil, cerr.NewError(cerr.NotFound, "session not found: "+id, nil)
	}
	return m.active, nil
}

// Release closes the session and clears it from the manager, unless it
// was already superseded by a newer one.
func (m *Manager) Release(s *Session) {
	m.mu.Lock()
	if m.active == s {
		m.active = nil
	}
	m.mu.Unlock()
	s.close()
}
