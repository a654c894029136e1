package lti

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-lti/internal/session"
	"github.com/mind-engage/mindengage-lti/pkg/oauth1"
	"github.com/mind-engage/mindengage-lti/pkg/outcomes"
)

// Mode selects how a request must prove it belongs to an LTI launch.
type Mode string

const (
	// ModeSession accepts only requests from an already launched session.
	ModeSession Mode = "session"
	// ModeInitial requires a freshly signed launch.
	ModeInitial Mode = "initial"
	// ModeAny tries the session first and falls back to a signed launch.
	ModeAny Mode = "any"
)

// Requirements are what a protected handler demands of a request.
// Zero values mean ModeAny and RoleAny.
type Requirements struct {
	Mode Mode
	Role string
}

// Tool verifies launches and owns everything shared between requests.
type Tool struct {
	Settings Settings
	Store    Store
	Sessions *session.Manager
	Verifier *oauth1.Verifier
	Outcomes *outcomes.Client
}

func NewTool(settings Settings, store Store, sessions *session.Manager, verifier *oauth1.Verifier, oc *outcomes.Client) *Tool {
	if verifier == nil {
		verifier = oauth1.NewVerifier(nil)
	}
	if oc == nil {
		oc = outcomes.New(0)
	}
	return &Tool{Settings: settings, Store: store, Sessions: sessions, Verifier: verifier, Outcomes: oc}
}

// Verify runs the verification selected by req against r. The returned
// Launch is never nil; on error it is in StateFailed, the LTI properties have
// been scrubbed from the session and the session has been logged out.
func (t *Tool) Verify(w http.ResponseWriter, r *http.Request, req Requirements) (*Launch, error) {
	l := &Launch{tool: t, w: w, r: r, req: req}
	ctx := r.Context()
	l.state = StateVerifying

	err := l.verify(ctx)
	if err == nil {
		err = l.CheckRole(req.Role)
		if errors.Is(err, ErrRole) {
			log.Ctx(ctx).Debug().Str("role", req.Role).Strs("held", l.Roles()).Msg("lti.role.denied")
		}
	}
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("mode", string(req.Mode)).Msg("lti.verify.failed")
		if ferr := l.scrubAndLogout(ctx); ferr != nil {
			log.Ctx(ctx).Warn().Err(ferr).Msg("lti.logout.failed")
		}
		l.state = StateFailed
		return l, err
	}
	l.state = StateVerified
	return l, nil
}

func (l *Launch) verify(ctx context.Context) error {
	sess, err := l.tool.Sessions.Load(l.r)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	l.sess = sess

	mode := l.req.Mode
	if mode == "" {
		mode = ModeAny
	}
	switch mode {
	case ModeSession:
		return l.verifySession()
	case ModeInitial:
		return l.verifyRequest(ctx)
	case ModeAny:
		err := l.verifySession()
		if errors.Is(err, ErrNotInSession) {
			return l.verifyRequest(ctx)
		}
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRequestType, mode)
	}
}

func (l *Launch) verifySession() error {
	if !l.sess.Authenticated() {
		return ErrNotInSession
	}
	return nil
}

// verifyRequest checks the OAuth signature of a launch POST, records the
// resource, context and identity it describes and logs the user in.
func (l *Launch) verifyRequest(ctx context.Context) error {
	t, r := l.tool, l.r
	if r.Method != http.MethodPost {
		return &SignatureError{Err: fmt.Errorf("launch must be a POST, got %s", r.Method)}
	}
	if err := r.ParseForm(); err != nil {
		return &SignatureError{Err: fmt.Errorf("parse form: %w", err)}
	}
	form := r.PostForm

	key, err := parseConsumerKey(form.Get(oauth1.ParamConsumerKey))
	if err != nil {
		return &SignatureError{Err: err}
	}
	var secret string
	switch c, err := t.Store.Consumer(ctx, key); {
	case err == nil:
		secret = c.Secret
	case errors.Is(err, ErrNotFound):
		log.Ctx(ctx).Debug().Int64("consumer_key", key).Msg("lti.consumer.unknown")
	default:
		return fmt.Errorf("lookup consumer: %w", err)
	}

	in := oauth1.Request{Method: r.Method, URL: t.requestURL(r), Header: r.Header, Form: form}
	if err := t.Verifier.Verify(ctx, in, secret); err != nil {
		return &SignatureError{Err: err}
	}
	l.signed = true

	ltiUserID := form.Get("user_id")
	if ltiUserID == "" {
		return &SignatureError{Err: ErrMissingUserID}
	}

	if id := form.Get("resource_link_id"); id != "" {
		if _, err := t.Store.GetOrCreateResource(ctx, id, form.Get("resource_link_title")); err != nil {
			return fmt.Errorf("resource: %w", err)
		}
	}
	if id := form.Get("context_id"); id != "" {
		if _, err := t.Store.GetOrCreateContext(ctx, id, form.Get("context_label")); err != nil {
			return fmt.Errorf("context: %w", err)
		}
	}

	user, ident, err := t.Store.Authenticate(ctx, ltiUserID, User{
		Username:  ltiUserID,
		FirstName: form.Get("lis_person_name_given"),
		LastName:  form.Get("lis_person_name_family"),
		Email:     form.Get("lis_person_contact_email_primary"),
	})
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	// A new launch replaces whatever an earlier launch left behind.
	l.scrub()
	for _, p := range t.Settings.Properties.Names() {
		v := form.Get(p)
		if v == "" {
			continue
		}
		l.sess.Set(p, v)
		ident.Apply(p, v)
	}
	if err := t.Store.SaveIdentity(ctx, ident); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	if err := t.Sessions.Login(ctx, l.w, l.sess, user.ID); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	l.user = &user

	log.Ctx(ctx).Info().
		Int64("consumer_key", key).
		Str("user_id", ltiUserID).
		Int64("local_user", user.ID).
		Str("context_id", form.Get("context_id")).
		Msg("lti.launch.verified")
	return nil
}

// requestURL rebuilds the URL the consumer signed.
func (t *Tool) requestURL(r *http.Request) string {
	scheme := "http"
	switch {
	case r.TLS != nil, t.Settings.ForceHTTPS:
		scheme = "https"
	case t.Settings.TrustForwardedProto:
		proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			scheme = "https"
		}
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func parseConsumerKey(s string) (int64, error) {
	k, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidConsumerKey, s)
	}
	return k, nil
}
