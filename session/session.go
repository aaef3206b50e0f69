package session

import (
	"time"

	"github.com/hupe1980/chatflow/core"
)

// Session is one conversation history.
type Session struct {
	ID        string         `json:"id"`
	Messages  []core.Message `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// New creates an empty session.
func New(id string) *Session {
	now := time.Now()
	return &Session{ID: id, CreatedAt: now, UpdatedAt: now}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	return &Session{
		ID:        s.ID,
		Messages:  core.CloneMessages(s.Messages),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns a snapshot of the session, creating an empty one lazily.
	Get(sessionID string) (*Session, error)

	// Append adds messages to the end of the session history.
	Append(sessionID string, msgs ...core.Message) error

	// Delete removes the session. Deleting an unknown session is not an error.
	Delete(sessionID string) error
}
