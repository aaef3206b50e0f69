package session

import (
	"sync"
	"time"

	"github.com/hupe1980/chatflow/core"
)

// InMemoryStore is a volatile Store implementation keeping sessions in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo programs. Each returned session is cloned to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*Session)}
}

// Get returns an existing session (clone) or creates a new one lazily.
func (s *InMemoryStore) Get(sessionID string) (*Session, error) {
	s.mu.RLock()
	if sess, ok := s.sessions[sessionID]; ok {
		defer s.mu.RUnlock()
		return sess.Clone(), nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(sessionID).Clone(), nil
}

// Append adds messages to an existing or newly created session.
func (s *InMemoryStore) Append(sessionID string, msgs ...core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreateLocked(sessionID)
	sess.Messages = append(sess.Messages, core.CloneMessages(msgs)...)
	sess.UpdatedAt = time.Now()
	return nil
}

// Delete removes a session.
func (s *InMemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// getOrCreateLocked returns the stored session, allocating it if needed;
// caller must already hold the write lock.
func (s *InMemoryStore) getOrCreateLocked(sessionID string) *Session {
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = New(sessionID)
		s.sessions[sessionID] = sess
	}
	return sess
}
