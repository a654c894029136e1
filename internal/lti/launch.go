package lti

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mind-engage/mindengage-lti/internal/session"
	"github.com/mind-engage/mindengage-lti/pkg/oauth1"
)

type State int

const (
	StateUnverified State = iota
	StateVerifying
	StateVerified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnverified:
		return "unverified"
	case StateVerifying:
		return "verifying"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Launch is the LTI view of one request: the verified launch parameters held
// in the browser session plus the operations a tool performs with them.
// A Launch belongs to a single request.
type Launch struct {
	tool   *Tool
	w      http.ResponseWriter
	r      *http.Request
	req    Requirements
	sess   *session.Session
	state  State
	user   *User
	signed bool // this request's own signature verified
}

func (l *Launch) State() State { return l.state }

// Get returns a launch property stored in the session.
func (l *Launch) Get(prop string) (string, bool) {
	if l.sess == nil {
		return "", false
	}
	return l.sess.Get(prop)
}

func (l *Launch) value(prop string) string {
	v, _ := l.Get(prop)
	return v
}

// Values returns a copy of the launch properties in the session.
func (l *Launch) Values() map[string]string {
	out := map[string]string{}
	if l.sess == nil {
		return out
	}
	for _, p := range l.tool.Settings.Properties.Names() {
		if v, ok := l.sess.Get(p); ok {
			out[p] = v
		}
	}
	return out
}

func (l *Launch) UserID() string { return l.value("user_id") }

func (l *Launch) ResultSourcedID() string { return l.value("lis_result_sourcedid") }

// LocalUserID is the id of the logged in local user, 0 when anonymous.
func (l *Launch) LocalUserID() int64 {
	if l.sess == nil {
		return 0
	}
	return l.sess.UserID
}

// ConsumerKey is the oauth_consumer_key stored at launch. The request body
// is consulted only when this request carried a verified signature.
func (l *Launch) ConsumerKey() (int64, error) {
	k := l.value(oauth1.ParamConsumerKey)
	if k == "" && l.signed {
		k = l.r.PostFormValue(oauth1.ParamConsumerKey)
	}
	return parseConsumerKey(k)
}

// Roles splits the roles property. ext_roles carries institution-wide roles
// and never grants access in this course.
func (l *Launch) Roles() []string {
	var out []string
	for _, r := range strings.Split(l.value("roles"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// IsRole reports whether the launch holds any role URI mapped to name.
func (l *Launch) IsRole(name string) (bool, error) {
	return l.tool.Settings.Roles.Match(name, l.Roles())
}

// CheckRole returns ErrRole when the launch lacks name. An empty name or
// RoleAny always passes.
func (l *Launch) CheckRole(name string) error {
	if name == "" || name == RoleAny {
		return nil
	}
	ok, err := l.IsRole(name)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRole
	}
	return nil
}

func (l *Launch) IsInstructor() bool { return l.hasRole("instructor") }
func (l *Launch) IsStudent() bool    { return l.hasRole("student") }
func (l *Launch) IsAdmin() bool      { return l.hasRole("administrator") }

func (l *Launch) hasRole(name string) bool {
	ok, _ := l.IsRole(name)
	return ok
}

// Name is the best available greeting for the user.
func (l *Launch) Name(ctx context.Context) string {
	if u, err := l.User(ctx); err == nil {
		if n := u.FullName(); n != "" {
			return n
		}
	}
	for _, p := range []string{"lis_person_sourcedid", "lis_person_contact_email_primary", "user_id"} {
		if v, ok := l.Get(p); ok {
			return v
		}
	}
	return ""
}

// User loads the logged in local user.
func (l *Launch) User(ctx context.Context) (User, error) {
	if l.user != nil {
		return *l.user, nil
	}
	id := l.LocalUserID()
	if id == 0 {
		return User{}, ErrNotInSession
	}
	u, err := l.tool.Store.User(ctx, id)
	if err != nil {
		return User{}, err
	}
	l.user = &u
	return u, nil
}

// ResponseURL is lis_outcome_service_url with the configured URL fixes
// applied.
func (l *Launch) ResponseURL() (string, error) {
	u, ok := l.Get("lis_outcome_service_url")
	if !ok || u == "" {
		return "", ErrNoOutcomeService
	}
	return l.tool.Settings.URLFix.Apply(u), nil
}

// Resource returns the resource of the launch.
func (l *Launch) Resource(ctx context.Context) (Resource, error) {
	id, ok := l.Get("resource_link_id")
	if !ok {
		return Resource{}, ErrNotFound
	}
	return l.tool.Store.GetOrCreateResource(ctx, id, "")
}

// Context returns the context (course) of the launch.
func (l *Launch) Context(ctx context.Context) (Context, error) {
	id, ok := l.Get("context_id")
	if !ok {
		return Context{}, ErrNotFound
	}
	return l.tool.Store.GetOrCreateContext(ctx, id, "")
}

// Close ends the LTI session.
func (l *Launch) Close(ctx context.Context) error {
	err := l.scrubAndLogout(ctx)
	l.state = StateUnverified
	return err
}

func (l *Launch) scrub() {
	if l.sess == nil {
		return
	}
	for _, p := range l.tool.Settings.Properties.Names() {
		l.sess.Delete(p)
	}
}

func (l *Launch) scrubAndLogout(ctx context.Context) error {
	l.scrub()
	l.user = nil
	fresh, err := l.tool.Sessions.Logout(ctx, l.w, l.sess)
	l.sess = fresh
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	return nil
}
