package sqlstore_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-lti/internal/db"
	"github.com/mind-engage/mindengage-lti/internal/lti"
	"github.com/mind-engage/mindengage-lti/internal/lti/sqlstore"
	"github.com/mind-engage/mindengage-lti/pkg/oauth1"
)

var (
	_ lti.Store         = (*sqlstore.Store)(nil)
	_ oauth1.NonceStore = (*sqlstore.Store)(nil)
)

func newStore(t *testing.T, name string) *sqlstore.Store {
	t.Helper()
	s, _ := newStoreDB(t, name)
	return s
}

func newStoreDB(t *testing.T, name string) (*sqlstore.Store, *sql.DB) {
	t.Helper()
	d, err := db.Open(context.Background(), db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return sqlstore.New(d), d
}

func countRows(t *testing.T, d *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, d.QueryRow(query, args...).Scan(&n))
	return n
}

func TestConsumers(t *testing.T) {
	s := newStore(t, "sqlstore_consumers")
	ctx := context.Background()

	_, err := s.Consumer(ctx, 1)
	assert.ErrorIs(t, err, lti.ErrNotFound)

	a, err := s.CreateConsumer(ctx, "canvas")
	require.NoError(t, err)
	b, err := s.CreateConsumer(ctx, "edx")
	require.NoError(t, err)
	assert.Greater(t, b.Key, a.Key)
	assert.Len(t, a.Secret, 36)
	assert.NotEqual(t, a.Secret, b.Secret)

	got, err := s.Consumer(ctx, a.Key)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	all, err := s.ListConsumers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []lti.Consumer{a, b}, all)

	_, err = s.CreateConsumer(ctx, "  ")
	assert.Error(t, err)
}

func TestGetOrCreateKeepsFirstLabel(t *testing.T) {
	s := newStore(t, "sqlstore_contexts")
	ctx := context.Background()

	c1, err := s.GetOrCreateContext(ctx, "MITx/ODL_ENG/2014_T1", "first")
	require.NoError(t, err)
	c2, err := s.GetOrCreateContext(ctx, "MITx/ODL_ENG/2014_T1", "second")
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
	assert.Equal(t, "first", c2.Label)

	r1, err := s.GetOrCreateResource(ctx, "res-1", "Quiz")
	require.NoError(t, err)
	r2, err := s.GetOrCreateResource(ctx, "res-1", "")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
	assert.Equal(t, "Quiz", r2.Title)
}

func TestConcurrentFirstLaunches(t *testing.T) {
	s, d := newStoreDB(t, "sqlstore_concurrent")
	ctx := context.Background()
	const n = 20

	var (
		wg       sync.WaitGroup
		resIDs   = make([]int64, n)
		ctxIDs   = make([]int64, n)
		userIDs  = make([]int64, n)
		identIDs = make([]int64, n)
		errs     = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.GetOrCreateResource(ctx, "abc123", "Quiz")
			if err != nil {
				errs[i] = err
				return
			}
			c, err := s.GetOrCreateContext(ctx, "course-1", "C1")
			if err != nil {
				errs[i] = err
				return
			}
			u, id, err := s.Authenticate(ctx, "lti-user-1", lti.User{Username: "lti-user-1"})
			if err != nil {
				errs[i] = err
				return
			}
			resIDs[i], ctxIDs[i], userIDs[i], identIDs[i] = r.ID, c.ID, u.ID, id.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, resIDs[0], resIDs[i])
		assert.Equal(t, ctxIDs[0], ctxIDs[i])
		assert.Equal(t, userIDs[0], userIDs[i])
		assert.Equal(t, identIDs[0], identIDs[i])
	}
	assert.Equal(t, 1, countRows(t, d, `SELECT COUNT(*) FROM lti_resources WHERE resource_link_id=$1`, "abc123"))
	assert.Equal(t, 1, countRows(t, d, `SELECT COUNT(*) FROM lti_contexts WHERE context_id=$1`, "course-1"))
	assert.Equal(t, 1, countRows(t, d, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 1, countRows(t, d, `SELECT COUNT(*) FROM lti_user_profiles WHERE lti_user_id=$1`, "lti-user-1"))
}

func TestAuthenticateAndSaveIdentity(t *testing.T) {
	s := newStore(t, "sqlstore_users")
	ctx := context.Background()

	u, id, err := s.Authenticate(ctx, "lti-user-1", lti.User{Username: "lti-user-1", FirstName: "Gomer", LastName: "Pile"})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, u.ID, id.UserID)
	assert.Equal(t, "Gomer Pile", u.FullName())
	assert.Empty(t, id.Attributes)

	id.Apply("lis_person_contact_email_primary", "gomer@gmail.com")
	id.Apply("custom_canvas_user_id", "599")
	require.NoError(t, s.SaveIdentity(ctx, id))

	u2, id2, err := s.Authenticate(ctx, "lti-user-1", lti.User{Username: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, u, u2)
	assert.Equal(t, "gomer@gmail.com", id2.Email)
	assert.Equal(t, "599", id2.Attributes["custom_canvas_user_id"])

	got, err := s.User(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, got)

	_, err = s.User(ctx, 9999)
	assert.ErrorIs(t, err, lti.ErrNotFound)
	assert.ErrorIs(t, s.SaveIdentity(ctx, lti.UserIdentity{LTIUserID: "nobody"}), lti.ErrNotFound)
}

func TestNonces(t *testing.T) {
	s := newStore(t, "sqlstore_nonces")
	ctx := context.Background()
	now := time.Now()
	s.Now = func() time.Time { return now }

	ok, err := s.Use(ctx, "1", "n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Use(ctx, "1", "n1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Use(ctx, "2", "n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "nonces are scoped per consumer")

	now = now.Add(2 * time.Minute)
	ok, err = s.Use(ctx, "1", "n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired nonce may be reused")

	n, err := s.PurgeNonces(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
