// internal/session/session.go
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session: not found")

// Session is the server-side state behind the browser cookie.
// UserID 0 means anonymous.
type Session struct {
	ID        string
	UserID    int64
	Values    map[string]string
	ExpiresAt time.Time

	persisted bool
}

func (s *Session) Get(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	if s.Values == nil {
		s.Values = map[string]string{}
	}
	s.Values[key] = value
}

func (s *Session) Delete(key string) { delete(s.Values, key) }

// Authenticated reports whether a local user is logged in.
func (s *Session) Authenticated() bool { return s != nil && s.UserID != 0 }

// Persisted reports whether the session has been written to a Store.
func (s *Session) Persisted() bool { return s.persisted }

// Store persists sessions. Load returns ErrNotFound for unknown or expired ids.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// record is the serialized form shared by the stores.
type record struct {
	UserID    int64             `json:"user_id"`
	Values    map[string]string `json:"values"`
	ExpiresAt int64             `json:"expires_at"`
}
