package lti

import (
	"context"
	"errors"
	"net/http"
)

// Handler is an http handler that receives the verified launch.
type Handler func(w http.ResponseWriter, r *http.Request, l *Launch)

// ErrorHandler renders a failed verification. r is the original request,
// route parameters included.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type Options struct {
	Requirements
	Error ErrorHandler
}

func (o Options) errorHandler() ErrorHandler {
	if o.Error != nil {
		return o.Error
	}
	return DefaultError
}

// Protect verifies every request against opts before calling h.
func (t *Tool) Protect(opts Options, h Handler) http.Handler {
	onErr := opts.errorHandler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l, err := t.Verify(w, r, opts.Requirements)
		if err != nil {
			onErr(w, r, err)
			return
		}
		h(w, r.WithContext(WithLaunch(r.Context(), l)), l)
	})
}

// Require is Protect as router middleware; handlers read the launch with
// FromContext.
func (t *Tool) Require(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return t.Protect(opts, func(w http.ResponseWriter, r *http.Request, _ *Launch) {
			next.ServeHTTP(w, r)
		})
	}
}

type ctxKey struct{}

func WithLaunch(ctx context.Context, l *Launch) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func FromContext(ctx context.Context) (*Launch, bool) {
	l, ok := ctx.Value(ctxKey{}).(*Launch)
	return l, ok && l != nil
}

// DefaultError writes a plain text error page.
func DefaultError(w http.ResponseWriter, r *http.Request, err error) {
	http.Error(w, "There was an LTI communication error: "+err.Error(), StatusFor(err))
}

// StatusFor maps a verification error to an HTTP status.
func StatusFor(err error) int {
	var se *SignatureError
	switch {
	case errors.Is(err, ErrNotInSession), errors.As(err, &se):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRole):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
