package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-lti/internal/db"
	"github.com/mind-engage/mindengage-lti/internal/session"
)

func newSQLStore(t *testing.T, name string) *session.SQLStore {
	t.Helper()
	d, err := db.Open(context.Background(), db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return session.NewSQLStore(d)
}

func newRedisStore(t *testing.T) (*session.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return session.NewRedisStore(c), mr
}

func exerciseStore(t *testing.T, st session.Store) {
	ctx := context.Background()

	_, err := st.Load(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)

	s := &session.Session{
		ID:        "sess-1",
		UserID:    42,
		Values:    map[string]string{"user_id": "u1", "roles": "Instructor"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, st.Save(ctx, s))
	assert.True(t, s.Persisted())

	got, err := st.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "u1", got.Values["user_id"])
	assert.True(t, got.Persisted())

	s.Delete("roles")
	s.UserID = 7
	require.NoError(t, st.Save(ctx, s))
	got, err = st.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	_, ok := got.Get("roles")
	assert.False(t, ok)

	require.NoError(t, st.Delete(ctx, "sess-1"))
	_, err = st.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSQLStore(t *testing.T) {
	exerciseStore(t, newSQLStore(t, "session_sql"))
}

func TestSQLStoreExpiry(t *testing.T) {
	st := newSQLStore(t, "session_sql_expiry")
	ctx := context.Background()
	now := time.Now()
	st.Now = func() time.Time { return now }

	require.NoError(t, st.Save(ctx, &session.Session{ID: "old", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, st.Save(ctx, &session.Session{ID: "new", ExpiresAt: now.Add(time.Hour)}))

	now = now.Add(2 * time.Minute)
	_, err := st.Load(ctx, "old")
	assert.ErrorIs(t, err, session.ErrNotFound)

	n, err := st.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = st.Load(ctx, "new")
	assert.NoError(t, err)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, session.NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	st, _ := newRedisStore(t)
	exerciseStore(t, st)
}

func TestRedisStoreKeyExpires(t *testing.T) {
	st, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, st.Save(ctx, &session.Session{ID: "s", ExpiresAt: time.Now().Add(time.Minute)}))
	assert.True(t, mr.Exists(session.DefaultRedisPrefix+"s"))
	assert.Greater(t, mr.TTL(session.DefaultRedisPrefix+"s"), time.Duration(0))

	mr.FastForward(2 * time.Minute)
	_, err := st.Load(ctx, "s")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", session.DefaultCookieName)
	return nil
}

func requestWith(c *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if c != nil {
		r.AddCookie(c)
	}
	return r
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := session.NewManager(newSQLStore(t, "session_manager"), []byte("test-key"))

	anon, err := m.Load(requestWith(nil))
	require.NoError(t, err)
	assert.False(t, anon.Authenticated())
	assert.False(t, anon.Persisted())

	anon.Set("user_id", "u1")
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(ctx, rec, anon))
	c := sessionCookie(t, rec)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)

	loaded, err := m.Load(requestWith(c))
	require.NoError(t, err)
	assert.Equal(t, anon.ID, loaded.ID)
	assert.Equal(t, "u1", loaded.Values["user_id"])

	oldID := loaded.ID
	rec = httptest.NewRecorder()
	require.NoError(t, m.Login(ctx, rec, loaded, 99))
	assert.NotEqual(t, oldID, loaded.ID)
	_, err = m.Store.Load(ctx, oldID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	c = sessionCookie(t, rec)
	authed, err := m.Load(requestWith(c))
	require.NoError(t, err)
	assert.True(t, authed.Authenticated())
	assert.Equal(t, int64(99), authed.UserID)

	rec = httptest.NewRecorder()
	fresh, err := m.Logout(ctx, rec, authed)
	require.NoError(t, err)
	assert.False(t, fresh.Authenticated())
	assert.Less(t, sessionCookie(t, rec).MaxAge, 0)

	again, err := m.Load(requestWith(c))
	require.NoError(t, err)
	assert.False(t, again.Authenticated())
	assert.NotEqual(t, authed.ID, again.ID)
}

func TestManagerRejectsForgedAndExpiredCookies(t *testing.T) {
	ctx := context.Background()
	store := newSQLStore(t, "session_manager_forged")
	m := session.NewManager(store, []byte("right-key"))
	m.Secure = false

	s := m.New()
	s.UserID = 1
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(ctx, rec, s))
	c := sessionCookie(t, rec)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	other := session.NewManager(store, []byte("wrong-key"))
	got, err := other.Load(requestWith(c))
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, got.ID)

	later := time.Now().Add(m.TTL + time.Hour)
	m.Now = func() time.Time { return later }
	got, err = m.Load(requestWith(c))
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, got.ID)
}
