package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore keeps sessions in the lti_sessions table.
type SQLStore struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{DB: db, Now: time.Now} }

func (s *SQLStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SQLStore) Load(ctx context.Context, id string) (*Session, error) {
	var (
		userID  int64
		data    string
		expires int64
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT user_id, data_json, expires_at FROM lti_sessions WHERE id=$1`, id).
		Scan(&userID, &data, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	exp := time.Unix(expires, 0)
	if !exp.After(s.now()) {
		return nil, ErrNotFound
	}
	values := map[string]string{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &values); err != nil {
			return nil, fmt.Errorf("session: decode: %w", err)
		}
	}
	return &Session{ID: id, UserID: userID, Values: values, ExpiresAt: exp, persisted: true}, nil
}

func (s *SQLStore) Save(ctx context.Context, sess *Session) error {
	values := sess.Values
	if values == nil {
		values = map[string]string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO lti_sessions (id, user_id, data_json, expires_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET
		  user_id=excluded.user_id,
		  data_json=excluded.data_json,
		  expires_at=excluded.expires_at`,
		sess.ID, sess.UserID, string(data), sess.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	sess.persisted = true
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM lti_sessions WHERE id=$1`, id); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// PurgeExpired removes expired rows and reports how many were deleted.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM lti_sessions WHERE expires_at <= $1`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
