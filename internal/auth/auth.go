// Package auth provides session-based authentication for the REST API.
package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "ai-trader/internal/errors"
)

// Session is an authenticated session for one owner.
type Session struct {
	Token     string
	OwnerID   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Manager issues and validates session tokens. Sessions live in memory
// and expire after the configured TTL; expired sessions are pruned
// lazily on lookup.
type Manager struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager with the given token lifetime.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Login creates a session for ownerID and returns it.
func (m *Manager) Login(ownerID string) (*Session, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, apperrors.NewValidationError("owner_id", ownerID, "must not be empty")
	}

	now := m.now()
	s := &Session{
		Token:     uuid.New().String(),
		OwnerID:   ownerID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()

	return s, nil
}

// Validate resolves a token to its session. Unknown tokens return
// ErrNotAuthenticated; expired ones return ErrSessionExpired and are
// removed.
func (m *Manager) Validate(token string) (*Session, error) {
	if token == "" {
		return nil, apperrors.ErrNotAuthenticated
	}

	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrNotAuthenticated
	}

	if m.now().After(s.ExpiresAt) {
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		return nil, apperrors.ErrSessionExpired
	}

	return s, nil
}

// Logout removes a session. Removing an unknown token is a no-op.
func (m *Manager) Logout(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}
