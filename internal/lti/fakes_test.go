package lti_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-lti/internal/lti"
	"github.com/mind-engage/mindengage-lti/internal/session"
	"github.com/mind-engage/mindengage-lti/pkg/oauth1"
)

/* ---------------- In-memory fake that satisfies lti.Store ---------------- */

type fakeStore struct {
	mu          sync.Mutex
	consumers   map[int64]lti.Consumer
	users       map[int64]lti.User
	usernames   map[string]int64
	identities  map[string]lti.UserIdentity // key: lti user id
	contexts    map[string]lti.Context
	resources   map[string]lti.Resource
	seq         int64
	authErr     error
	savedIdents int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		consumers:  map[int64]lti.Consumer{},
		users:      map[int64]lti.User{},
		usernames:  map[string]int64{},
		identities: map[string]lti.UserIdentity{},
		contexts:   map[string]lti.Context{},
		resources:  map[string]lti.Resource{},
	}
}

func (s *fakeStore) next() int64 {
	s.seq++
	return s.seq
}

func (s *fakeStore) Consumer(_ context.Context, key int64) (lti.Consumer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consumers[key]
	if !ok {
		return lti.Consumer{}, lti.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) GetOrCreateResource(_ context.Context, id, title string) (lti.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.resources[id]; ok {
		return r, nil
	}
	r := lti.Resource{ID: s.next(), ResourceLinkID: id, Title: title}
	s.resources[id] = r
	return r, nil
}

func (s *fakeStore) GetOrCreateContext(_ context.Context, id, label string) (lti.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contexts[id]; ok {
		return c, nil
	}
	c := lti.Context{ID: s.next(), ContextID: id, Label: label}
	s.contexts[id] = c
	return c, nil
}

func (s *fakeStore) Authenticate(_ context.Context, ltiUserID string, seed lti.User) (lti.User, lti.UserIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authErr != nil {
		return lti.User{}, lti.UserIdentity{}, s.authErr
	}
	if id, ok := s.identities[ltiUserID]; ok {
		return s.users[id.UserID], id, nil
	}
	uid, ok := s.usernames[seed.Username]
	if !ok {
		seed.ID = s.next()
		s.users[seed.ID] = seed
		s.usernames[seed.Username] = seed.ID
		uid = seed.ID
	}
	ident := lti.UserIdentity{ID: s.next(), UserID: uid, LTIUserID: ltiUserID, Attributes: map[string]string{}}
	s.identities[ltiUserID] = ident
	return s.users[uid], ident, nil
}

func (s *fakeStore) SaveIdentity(_ context.Context, id lti.UserIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[id.LTIUserID] = id
	s.savedIdents++
	return nil
}

func (s *fakeStore) User(_ context.Context, id int64) (lti.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return lti.User{}, lti.ErrNotFound
	}
	return u, nil
}

/* ---------------- harness ---------------- */

const (
	toolHost       = "tool.example"
	consumerKey    = "1"
	consumerSecret = "11111111-2222-3333-4444-555555555555"
)

type harness struct {
	tool     *lti.Tool
	store    *fakeStore
	sessions *session.MemoryStore
}

func newHarness(t *testing.T, mutate ...func(*lti.Settings)) *harness {
	t.Helper()
	store := newFakeStore()
	store.consumers[1] = lti.Consumer{Key: 1, Name: "uvu-khansen", Secret: consumerSecret}

	settings := lti.DefaultSettings()
	settings.Properties = settings.Properties.With("custom_canvas_user_id", "custom_canvas_user_login_id")
	for _, m := range mutate {
		m(&settings)
	}

	mem := session.NewMemoryStore()
	mgr := session.NewManager(mem, []byte("test-session-key"))
	mgr.Secure = false

	tool := lti.NewTool(settings, store, mgr, oauth1.NewVerifier(oauth1.NewInMemoryNonces(0)), nil)
	return &harness{tool: tool, store: store, sessions: mem}
}

// launchParams mirrors an edX launch.
func launchParams(roles string) url.Values {
	return url.Values{
		"resource_link_id":               {"edge.edx.org-i4x-MITx-ODL_ENG-lti-94173d3e79d145fd8ec2e83f15836ac8"},
		"user_id":                        {"008437924c9852377e8994829aaac7a1"},
		"lis_result_sourcedid":           {"MITx/ODL_ENG/2014_T1:edge.edx.org-i4x-MITx-ODL_ENG-lti-94173d3e79d145fd8ec2e83f15836ac8:008437924c9852377e8994829aaac7a1"},
		"context_id":                     {"MITx/ODL_ENG/2014_T1"},
		"context_label":                  {"MITx/ODL_ENG/2014_T1"},
		"lti_version":                    {"LTI-1p0"},
		"launch_presentation_return_url": {"emptyhere"},
		"lis_outcome_service_url":        {"https://example.edu/courses/MITx/ODL_ENG/2014_T1/xblock/handler_noauth/grade_handler"},
		"lti_message_type":               {"basic-lti-launch-request"},
		"roles":                          {roles},
	}
}

// signedLaunch builds a body-signed POST the way a consumer would.
func signedLaunch(t *testing.T, path string, params url.Values, key, secret string) *http.Request {
	t.Helper()
	u := "http://" + toolHost + path
	signer := oauth1.Signer{Credentials: oauth1.Credentials{Key: key, Secret: secret}}
	form, err := signer.SignForm(http.MethodPost, u, params)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, u, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func withCookies(r *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			r.AddCookie(c)
		}
	}
	return r
}

// launch performs a successful initial launch and returns its recorder.
func (h *harness) launch(t *testing.T, params url.Values) (*lti.Launch, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	l, err := h.tool.Verify(rec, signedLaunch(t, "/lti/initial", params, consumerKey, consumerSecret), lti.Requirements{Mode: lti.ModeInitial})
	require.NoError(t, err)
	return l, rec
}
