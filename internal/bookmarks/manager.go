package bookmarks

import (
	"sync"

	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/store"
)

// Manager hands out one live session per owner, creating them lazily on first
// use and tearing them down on eviction or shutdown.
type Manager struct {
	store store.Store
	cfg   SessionConfig
	log   logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager(st store.Store, cfg SessionConfig, log logger.Logger) *Manager {
	return &Manager{
		store:    st,
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// Get returns the owner's session, creating it on first use.
func (m *Manager) Get(ownerID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[ownerID]; ok {
		return s
	}
	m.log.Info("starting bookmark session",
		logger.String("owner", ownerID))
	s := NewSession(ownerID, m.store, m.cfg, m.log)
	m.sessions[ownerID] = s
	return s
}

// Evict tears down the owner's session, if any. Used on sign-out.
func (m *Manager) Evict(ownerID string) {
	m.mu.Lock()
	s, ok := m.sessions[ownerID]
	delete(m.sessions, ownerID)
	m.mu.Unlock()

	if ok {
		m.log.Info("closing bookmark session",
			logger.String("owner", ownerID))
		s.Close()
	}
}

// Close tears down every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
