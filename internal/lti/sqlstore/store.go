// Package sqlstore persists consumers, contexts, resources, user identities
// and OAuth nonces in the schema created by internal/db.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-lti/internal/db"
	"github.com/mind-engage/mindengage-lti/internal/lti"
)

// Store implements lti.Store and oauth1.NonceStore.
type Store struct {
	db  *sql.DB
	Now func() time.Time
}

func New(d *sql.DB) *Store {
	return &Store{db: d, Now: time.Now}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Ping reports whether the database answers; used by readiness checks.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

/* ---------------- consumers ---------------- */

func (s *Store) Consumer(ctx context.Context, key int64) (lti.Consumer, error) {
	var c lti.Consumer
	err := s.db.QueryRowContext(ctx, `SELECT id,name,secret FROM lti_consumers WHERE id=$1`, key).
		Scan(&c.Key, &c.Name, &c.Secret)
	if errors.Is(err, sql.ErrNoRows) {
		return lti.Consumer{}, lti.ErrNotFound
	}
	if err != nil {
		return lti.Consumer{}, fmt.Errorf("consumer %d: %w", key, err)
	}
	return c, nil
}

// CreateConsumer registers a consumer under a fresh random secret. The
// generated id is the consumer's oauth_consumer_key.
func (s *Store) CreateConsumer(ctx context.Context, name string) (lti.Consumer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return lti.Consumer{}, errors.New("consumer name is required")
	}
	c := lti.Consumer{Name: name, Secret: uuid.NewString()}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO lti_consumers (name,secret,created_at) VALUES ($1,$2,$3) RETURNING id`,
		c.Name, c.Secret, s.now().Unix()).Scan(&c.Key)
	if err != nil {
		return lti.Consumer{}, fmt.Errorf("create consumer: %w", err)
	}
	return c, nil
}

func (s *Store) ListConsumers(ctx context.Context) ([]lti.Consumer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,secret FROM lti_consumers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []lti.Consumer
	for rows.Next() {
		var c lti.Consumer
		if err := rows.Scan(&c.Key, &c.Name, &c.Secret); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

/* ---------------- contexts & resources ---------------- */

func (s *Store) GetOrCreateResource(ctx context.Context, id, title string) (lti.Resource, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO lti_resources (resource_link_id,resource_link_title) VALUES ($1,$2)
		ON CONFLICT (resource_link_id) DO NOTHING`, id, title); err != nil {
		return lti.Resource{}, err
	}
	r := lti.Resource{ResourceLinkID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT id,resource_link_title FROM lti_resources WHERE resource_link_id=$1`, id).
		Scan(&r.ID, &r.Title)
	return r, err
}

func (s *Store) GetOrCreateContext(ctx context.Context, id, label string) (lti.Context, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO lti_contexts (context_id,context_label) VALUES ($1,$2)
		ON CONFLICT (context_id) DO NOTHING`, id, label); err != nil {
		return lti.Context{}, err
	}
	c := lti.Context{ContextID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT id,context_label FROM lti_contexts WHERE context_id=$1`, id).
		Scan(&c.ID, &c.Label)
	return c, err
}

/* ---------------- users ---------------- */

const identityColumns = `p.id,p.user_id,p.lti_user_id,p.lis_person_contact_email_primary,
	p.lis_person_name_family,p.lis_person_name_full,p.lis_person_name_given,p.attributes_json,
	u.username,u.first_name,u.last_name,u.email`

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (lti.User, lti.UserIdentity, error) {
	var (
		u     lti.User
		id    lti.UserIdentity
		attrs string
	)
	err := row.Scan(&id.ID, &id.UserID, &id.LTIUserID, &id.Email,
		&id.NameFamily, &id.NameFull, &id.NameGiven, &attrs,
		&u.Username, &u.FirstName, &u.LastName, &u.Email)
	if err != nil {
		return lti.User{}, lti.UserIdentity{}, err
	}
	u.ID = id.UserID
	id.Attributes = map[string]string{}
	if attrs != "" {
		if err := json.Unmarshal([]byte(attrs), &id.Attributes); err != nil {
			return lti.User{}, lti.UserIdentity{}, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return u, id, nil
}

// Authenticate finds the local user bound to ltiUserID. On first sight it
// provisions a user named after ltiUserID and links a new profile to it.
func (s *Store) Authenticate(ctx context.Context, ltiUserID string, seed lti.User) (u lti.User, id lti.UserIdentity, err error) {
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		const q = `SELECT ` + identityColumns + `
			FROM lti_user_profiles p JOIN users u ON u.id = p.user_id
			WHERE p.lti_user_id=$1`
		u, id, err = scanIdentity(tx.QueryRowContext(ctx, q, ltiUserID))
		if err == nil || !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		now := s.now().Unix()
		username := seed.Username
		if username == "" {
			username = ltiUserID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (username,first_name,last_name,email,created_at) VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (username) DO NOTHING`,
			username, seed.FirstName, seed.LastName, seed.Email, now); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		var userID int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username=$1`, username).Scan(&userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lti_user_profiles (user_id,lti_user_id,updated_at) VALUES ($1,$2,$3)
			ON CONFLICT (lti_user_id) DO NOTHING`, userID, ltiUserID, now); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		u, id, err = scanIdentity(tx.QueryRowContext(ctx, q, ltiUserID))
		return err
	})
	return u, id, err
}

func (s *Store) SaveIdentity(ctx context.Context, id lti.UserIdentity) error {
	attrs := id.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	buf, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE lti_user_profiles SET
		lis_person_contact_email_primary=$1,
		lis_person_name_family=$2,
		lis_person_name_full=$3,
		lis_person_name_given=$4,
		attributes_json=$5,
		updated_at=$6
		WHERE lti_user_id=$7`,
		id.Email, id.NameFamily, id.NameFull, id.NameGiven, string(buf), s.now().Unix(), id.LTIUserID)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return lti.ErrNotFound
	}
	return nil
}

func (s *Store) User(ctx context.Context, id int64) (lti.User, error) {
	u := lti.User{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT username,first_name,last_name,email FROM users WHERE id=$1`, id).
		Scan(&u.Username, &u.FirstName, &u.LastName, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return lti.User{}, lti.ErrNotFound
	}
	return u, err
}
