package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-lti/internal/config"
	"github.com/mind-engage/mindengage-lti/internal/db"
	"github.com/mind-engage/mindengage-lti/internal/session"
)

func openDB(ctx context.Context) (*sql.DB, error) {
	d, err := db.Open(ctx, cfg.Driver(), cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	return d, nil
}

// newSessionStore returns the configured backend and a cleanup func.
func newSessionStore(ctx context.Context, d *sql.DB) (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case config.SessionRedis:
		c := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return session.NewRedisStore(c), func() { _ = c.Close() }, nil
	case config.SessionMemory:
		log.Warn().Msg("in-memory sessions are lost on restart and not shared between processes")
		return session.NewMemoryStore(), func() {}, nil
	default:
		return session.NewSQLStore(d), func() {}, nil
	}
}

func sessionKey() ([]byte, error) {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret), nil
	}
	log.Warn().Msg("LTI_SESSION_SECRET is not set; using a random key, sessions will not survive a restart")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
