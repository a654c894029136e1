package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultCookieName = "lti_session"
	DefaultTTL        = 8 * time.Hour
)

// Manager binds Sessions to browsers through a signed cookie. The cookie is
// an HS256 JWT whose jti is the session id; all state lives in Store.
type Manager struct {
	Store      Store
	Key        []byte
	CookieName string
	TTL        time.Duration
	Secure     bool
	Now        func() time.Time
}

func NewManager(store Store, key []byte) *Manager {
	return &Manager{Store: store, Key: key, CookieName: DefaultCookieName, TTL: DefaultTTL, Secure: true, Now: time.Now}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) ttl() time.Duration {
	if m.TTL > 0 {
		return m.TTL
	}
	return DefaultTTL
}

func (m *Manager) cookieName() string {
	if m.CookieName != "" {
		return m.CookieName
	}
	return DefaultCookieName
}

// New returns an unsaved anonymous session.
func (m *Manager) New() *Session {
	return &Session{ID: uuid.NewString(), Values: map[string]string{}, ExpiresAt: m.now().Add(m.ttl())}
}

// Load returns the session referenced by r's cookie, or a fresh anonymous
// session when the cookie is missing, forged, expired or unknown. Only store
// failures are returned as errors.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.cookieName())
	if err != nil || c.Value == "" {
		return m.New(), nil
	}
	id, err := m.parse(c.Value)
	if err != nil {
		return m.New(), nil
	}
	s, err := m.Store.Load(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return m.New(), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Save extends the session, persists it and (re)issues the cookie.
func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	s.ExpiresAt = m.now().Add(m.ttl())
	if err := m.Store.Save(ctx, s); err != nil {
		return err
	}
	tok, err := m.issue(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(tok, s.ExpiresAt))
	return nil
}

// Login binds s to userID under a new session id, discarding the old one.
func (m *Manager) Login(ctx context.Context, w http.ResponseWriter, s *Session, userID int64) error {
	if s.persisted {
		if err := m.Store.Delete(ctx, s.ID); err != nil {
			return err
		}
	}
	s.ID = uuid.NewString()
	s.UserID = userID
	s.persisted = false
	return m.Save(ctx, w, s)
}

// Logout deletes the stored session, expires the cookie and returns a fresh
// anonymous session to continue the request with.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, s *Session) (*Session, error) {
	var err error
	if s != nil && s.persisted {
		err = m.Store.Delete(ctx, s.ID)
	}
	c := m.cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
	return m.New(), err
}

func (m *Manager) issue(s *Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		IssuedAt:  jwt.NewNumericDate(m.now()),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Key)
	if err != nil {
		return "", fmt.Errorf("session: sign cookie: %w", err)
	}
	return tok, nil
}

func (m *Manager) parse(value string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.Key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("session: cookie without jti")
	}
	return claims.ID, nil
}

func (m *Manager) cookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     m.cookieName(),
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	// LTI tools run inside the consumer's iframe.
	if m.Secure {
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}
