package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process. Use it for tests and single node
// development only.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]record
	Now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]record{}, Now: time.Now}
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	exp := time.Unix(rec.ExpiresAt, 0)
	if !exp.After(s.now()) {
		delete(s.m, id)
		return nil, ErrNotFound
	}
	values := make(map[string]string, len(rec.Values))
	for k, v := range rec.Values {
		values[k] = v
	}
	return &Session{ID: id, UserID: rec.UserID, Values: values, ExpiresAt: exp, persisted: true}, nil
}

func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	values := make(map[string]string, len(sess.Values))
	for k, v := range sess.Values {
		values[k] = v
	}
	s.mu.Lock()
	s.m[sess.ID] = record{UserID: sess.UserID, Values: values, ExpiresAt: sess.ExpiresAt.Unix()}
	s.mu.Unlock()
	sess.persisted = true
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
	return nil
}

// Len reports how many sessions are held, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
