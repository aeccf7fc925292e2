package session

import (
	"context"
	"log/slog"
	"sync"

	"despesas/internal/identity"
	"despesas/internal/store"
)

// Manager opens a session when a user signs in and closes it when they sign
// out. It is the single place that holds live sessions, so request handlers
// look sessions up here by uid.
type Manager struct {
	st store.Store

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(st store.Store) *Manager {
	return &Manager{st: st, sessions: make(map[string]*Session)}
}

// Attach registers the manager on the identity service's auth events.
func (m *Manager) Attach(auth *identity.Service) {
	auth.OnAuthChange(func(u identity.User, signedIn bool) {
		if signedIn {
			if _, err := m.Open(context.Background(), u.UID); err != nil {
				slog.Error("Failed to open session", "uid", u.UID, "error", err)
			}
			return
		}
		m.Release(u.UID)
	})
}

// Open returns the existing session for uid or creates one.
func (m *Manager) Open(ctx context.Context, uid string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[uid]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := Open(ctx, m.st, uid)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[uid]; ok {
		// Lost the race to a concurrent sign-in; keep the first session.
		s.Close()
		return existing, nil
	}
	m.sessions[uid] = s
	return s, nil
}

// Get returns the live session for uid, if any.
func (m *Manager) Get(uid string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uid]
	return s, ok
}

// Release closes and forgets the session for uid.
func (m *Manager) Release(uid string) {
	m.mu.Lock()
	s, ok := m.sessions[uid]
	delete(m.sessions, uid)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Close shuts every session down.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
