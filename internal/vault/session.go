package vault

import (
	"sync"

	"superid/internal/domain"
)

// Session owns the derived key for one authenticated user. It exists between
// login and logout and is never serialized.
type Session struct {
	userID string

	mu     sync.RWMutex
	key    *Key
	closed bool
}

// NewSession takes ownership of key. Callers must not use key afterwards.
func NewSession(userID string, key *Key) *Session {
	return &Session{userID: userID, key: key}
}

// Unlock derives the key from the master password and opens a session.
func Unlock(userID string, password []byte, km domain.KeyMaterial) (*Session, error) {
	key, err := DeriveFromMaterial(password, km)
	if err != nil {
		return nil, err
	}
	return NewSession(userID, key), nil
}

func (s *Session) UserID() string {
	return s.userID
}

// withKey runs fn with the session key under the read lock, so Close waits
// for in-flight cipher work before wiping. fn must not retain the key.
func (s *Session) withKey(fn func(key *Key) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSessionClosed
	}
	return fn(s.key)
}

// Close wipes the key. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.key.Wipe()
	s.key = nil
}

func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Holder is a process-wide slot for the active session. Set is last-write-wins
// and closes whatever session it replaces.
type Holder struct {
	mu      sync.RWMutex
	current *Session
}

func (h *Holder) Set(s *Session) {
	h.mu.Lock()
	prev := h.current
	h.current = s
	h.mu.Unlock()

	if prev != nil && prev != s {
		prev.Close()
	}
}

// Current returns the active session or ErrSessionClosed when there is none.
func (h *Holder) Current() (*Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.current == nil || h.current.Closed() {
		return nil, ErrSessionClosed
	}
	return h.current, nil
}

// Clear closes and drops the active session.
func (h *Holder) Clear() {
	h.mu.Lock()
	prev := h.current
	h.current = nil
	h.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}
