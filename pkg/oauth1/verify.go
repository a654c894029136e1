// pkg/oauth1/verify.go
package oauth1

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSignature  = errors.New("oauth1: missing oauth_signature")
	ErrUnsupportedMethod = errors.New("oauth1: unsupported signature method")
	ErrUnsupportedVer    = errors.New("oauth1: unsupported oauth_version")
	ErrMissingNonce      = errors.New("oauth1: missing oauth_nonce")
	ErrBadTimestamp      = errors.New("oauth1: invalid or expired oauth_timestamp")
	ErrNonceReplay       = errors.New("oauth1: nonce already used")
	ErrNoSecret          = errors.New("oauth1: no valid secret for consumer")
	ErrInvalidSignature  = errors.New("oauth1: invalid signature")
)

// Request is the material a signature is computed over.
type Request struct {
	Method string
	// URL is the absolute request URL as the consumer saw it, query included.
	URL    string
	Header http.Header
	// Form holds the x-www-form-urlencoded body parameters only; query
	// parameters are read from URL.
	Form url.Values
}

// Verifier checks body- or header-signed HMAC-SHA1 requests.
type Verifier struct {
	Nonces   NonceStore
	MaxSkew  time.Duration
	NonceTTL time.Duration
	Now      func() time.Time
}

// NewVerifier returns a Verifier with LTI-friendly defaults: ten minutes of
// clock skew and nonces remembered for ninety minutes.
func NewVerifier(nonces NonceStore) *Verifier {
	if nonces == nil {
		nonces = NoopNonces{}
	}
	return &Verifier{Nonces: nonces, MaxSkew: 10 * time.Minute, NonceTTL: 90 * time.Minute, Now: time.Now}
}

// Params merges form parameters with oauth_* parameters from an
// Authorization: OAuth header.
func (r Request) Params() url.Values {
	out := url.Values{}
	for k, vs := range r.Form {
		out[k] = append(out[k], vs...)
	}
	if r.Header != nil {
		for k, v := range ParseAuthorization(r.Header.Get("Authorization")) {
			out.Set(k, v)
		}
	}
	return out
}

// Verify returns nil when req carries a valid signature for secret.
func (v *Verifier) Verify(ctx context.Context, req Request, secret string) error {
	params := req.Params()

	sig := params.Get(ParamSignature)
	if sig == "" {
		return ErrMissingSignature
	}
	if m := params.Get(ParamSignatureMethod); m != MethodHMACSHA1 {
		return fmt.Errorf("%w: %q", ErrUnsupportedMethod, m)
	}
	if ver := params.Get(ParamVersion); ver != "" && ver != Version {
		return fmt.Errorf("%w: %q", ErrUnsupportedVer, ver)
	}
	if secret == "" {
		return ErrNoSecret
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	ts, err := strconv.ParseInt(params.Get(ParamTimestamp), 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}
	if v.MaxSkew > 0 {
		d := now().Sub(time.Unix(ts, 0))
		if d < 0 {
			d = -d
		}
		if d > v.MaxSkew {
			return ErrBadTimestamp
		}
	}

	base, err := BaseString(req.Method, req.URL, params)
	if err != nil {
		return err
	}
	want := Sign(base, secret, "")
	if subtle.ConstantTimeCompare([]byte(want), []byte(sig)) != 1 {
		return ErrInvalidSignature
	}

	nonce := params.Get(ParamNonce)
	if nonce == "" {
		return ErrMissingNonce
	}
	if v.Nonces != nil {
		ok, err := v.Nonces.Use(ctx, params.Get(ParamConsumerKey), nonce, v.NonceTTL)
		if err != nil {
			return fmt.Errorf("oauth1: nonce check: %w", err)
		}
		if !ok {
			return ErrNonceReplay
		}
	}
	return nil
}

// ParseAuthorization extracts oauth_* parameters from an "OAuth ..." header.
func ParseAuthorization(h string) map[string]string {
	out := map[string]string{}
	h = strings.TrimSpace(h)
	if len(h) < 6 || !strings.EqualFold(h[:6], "OAuth ") {
		return out
	}
	for _, part := range strings.Split(h[6:], ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.HasPrefix(k, "oauth_") {
			continue
		}
		v = strings.Trim(v, `"`)
		if dv, err := url.PathUnescape(v); err == nil {
			v = dv
		}
		out[k] = v
	}
	return out
}
