package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "lti:session:"

// RedisStore keeps each session as a JSON string that expires with the session.
type RedisStore struct {
	Client redis.UniversalClient
	Prefix string
	Now    func() time.Time
}

func NewRedisStore(c redis.UniversalClient) *RedisStore {
	return &RedisStore{Client: c, Prefix: DefaultRedisPrefix, Now: time.Now}
}

func (s *RedisStore) key(id string) string {
	p := s.Prefix
	if p == "" {
		p = DefaultRedisPrefix
	}
	return p + id
}

func (s *RedisStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := s.Client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	exp := time.Unix(rec.ExpiresAt, 0)
	if !exp.After(s.now()) {
		return nil, ErrNotFound
	}
	if rec.Values == nil {
		rec.Values = map[string]string{}
	}
	return &Session{ID: id, UserID: rec.UserID, Values: rec.Values, ExpiresAt: exp, persisted: true}, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, sess.ID)
	}
	raw, err := json.Marshal(record{UserID: sess.UserID, Values: sess.Values, ExpiresAt: sess.ExpiresAt.Unix()})
	if err != nil {
		return err
	}
	if err := s.Client.Set(ctx, s.key(sess.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	sess.persisted = true
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.Client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}
