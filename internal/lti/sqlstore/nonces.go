package sqlstore

import (
	"context"
	"fmt"
	"time"
)

// Use records (consumerKey, nonce) until now+ttl. An existing row is only
// overwritten once it has expired, so a zero row count means replay.
func (s *Store) Use(ctx context.Context, consumerKey, nonce string, ttl time.Duration) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_nonces (consumer_key,nonce,expires_at) VALUES ($1,$2,$3)
		ON CONFLICT (consumer_key,nonce) DO UPDATE SET expires_at=excluded.expires_at
		WHERE oauth_nonces.expires_at <= $4`,
		consumerKey, nonce, now.Add(ttl).Unix(), now.Unix())
	if err != nil {
		return false, fmt.Errorf("nonce: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PurgeNonces deletes expired nonces and reports how many went.
func (s *Store) PurgeNonces(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM oauth_nonces WHERE expires_at <= $1`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
