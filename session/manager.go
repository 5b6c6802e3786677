package session

import (
	"time"

	apierrors "redapid/errors"
)

// Manager allocates session ids and keeps the live session registry the
// dispatcher's session-group operations (create/expire/keep-alive) act on.
// Session ids are their own 16-bit space, separate from the object id
// space (§3: "Session: id (non-zero 16-bit)" is specified independently of
// ObjectId).
type Manager struct {
	sessions map[uint16]*Session
	nextID   uint16
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[uint16]*Session), nextID: 1}
}

// Create allocates a fresh session id and starts its lifetime timer.
// onExpire is invoked on the timer goroutine and must only hand off to the
// reactor, per Session.fire's contract.
func (m *Manager) Create(lifetime time.Duration, onExpire func(*Session)) (*Session, error) {
	id := m.allocate()
	if id == 0 {
		return nil, apierrors.New(apierrors.NoFreeSessionID, "session.create")
	}
	s := New(id, lifetime, onExpire)
	m.sessions[id] = s
	return s, nil
}

func (m *Manager) allocate() uint16 {
	start := m.nextID
	for {
		id := m.nextID
		m.nextID++
		if m.nextID == 0 {
			m.nextID = 1
		}
		if _, exists := m.sessions[id]; !exists {
			return id
		}
		if m.nextID == start {
			return 0 // exhausted; caller-visible as id 0, treated as "absent"
		}
	}
}

// Get resolves a session id, or nil if unknown.
func (m *Manager) Get(id uint16) *Session {
	return m.sessions[id]
}

// Expire tears down and forgets a session.
func (m *Manager) Expire(id uint16) error {
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	err := s.Expire()
	delete(m.sessions, id)
	return err
}

// Count returns the number of live sessions.
func (m *Manager) Count() int { return len(m.sessions) }
