package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager is the factory for sessions. It enforces the single-instance
// invariant: at most one live transport per authenticated user. Connect
// checks for an existing session before creating one, so a second call for
// the same user returns the first session instead of opening a second
// transport.
type Manager struct {
	addr string
	log  zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates a session manager for the given server address
func NewManager(addr string, log zerolog.Logger) *Manager {
	return &Manager{
		addr:     addr,
		log:      log,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Connect returns the live session for the user, creating and dialing one if
// none exists. Idempotent: a user with a live session gets it back unchanged.
// A previous session that was torn down is replaced, never duplicated.
func (m *Manager) Connect(userID uuid.UUID, token string) (*Session, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[userID]; ok {
		existing.mu.RLock()
		alive := !existing.closed
		existing.mu.RUnlock()
		if alive {
			m.mu.Unlock()
			return existing, nil
		}
		delete(m.sessions, userID)
	}

	s := newSession(userID, m.addr, token, m.log)
	m.sessions[userID] = s
	m.mu.Unlock()

	if err := s.connect(); err != nil {
		m.mu.Lock()
		delete(m.sessions, userID)
		m.mu.Unlock()
		return nil, fmt.Errorf("connect %s: %w", userID, err)
	}
	return s, nil
}

// Get returns the session for a user, or nil if none is live
func (m *Manager) Get(userID uuid.UUID) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

// Disconnect tears down the session for a user, if any
func (m *Manager) Disconnect(userID uuid.UUID) {
	m.mu.Lock()
	s := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if s != nil {
		s.Disconnect()
	}
}

// Shutdown tears down every live session
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Disconnect()
	}
}
