// pkg/oauth1/sign.go
package oauth1

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Signer produces two-legged HMAC-SHA1 signatures for outbound requests.
type Signer struct {
	Credentials
	Now   func() time.Time
	Nonce func() string
}

func (s Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Signer) nonce() string {
	if s.Nonce != nil {
		return s.Nonce()
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s Signer) oauthParams() url.Values {
	p := url.Values{}
	p.Set(ParamConsumerKey, s.Key)
	p.Set(ParamNonce, s.nonce())
	p.Set(ParamSignatureMethod, MethodHMACSHA1)
	p.Set(ParamTimestamp, strconv.FormatInt(s.now().Unix(), 10))
	p.Set(ParamVersion, Version)
	return p
}

// SignForm returns a copy of form with the oauth_* parameters and the body
// signature added, ready to be POSTed as x-www-form-urlencoded. This is how
// LMS consumers sign basic launch requests.
func (s Signer) SignForm(method, rawURL string, form url.Values) (url.Values, error) {
	if s.Key == "" {
		return nil, errors.New("oauth1: consumer key is required")
	}
	out := url.Values{}
	for k, vs := range form {
		out[k] = append([]string(nil), vs...)
	}
	for k, vs := range s.oauthParams() {
		if out.Get(k) == "" {
			out[k] = vs
		}
	}
	out.Set(ParamCallback, "about:blank")
	base, err := BaseString(method, rawURL, out)
	if err != nil {
		return nil, err
	}
	out.Set(ParamSignature, Sign(base, s.Secret, ""))
	return out, nil
}

// SignRequest signs req in the Authorization header. body is the exact
// request payload; for non-form bodies its SHA-1 is sent as oauth_body_hash.
// The request body is (re)set from body.
func (s Signer) SignRequest(req *http.Request, body []byte) error {
	if s.Key == "" {
		return errors.New("oauth1: consumer key is required")
	}
	params := s.oauthParams()

	signed := url.Values{}
	for k, vs := range params {
		signed[k] = vs
	}
	ct := req.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return err
		}
		for k, vs := range form {
			signed[k] = append(signed[k], vs...)
		}
	} else {
		bh := BodyHash(body)
		params.Set(ParamBodyHash, bh)
		signed.Set(ParamBodyHash, bh)
	}

	base, err := BaseString(req.Method, req.URL.String(), signed)
	if err != nil {
		return err
	}
	params.Set(ParamSignature, Sign(base, s.Secret, ""))

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, `realm=""`)
	for _, k := range keys {
		parts = append(parts, k+`="`+Escape(params.Get(k))+`"`)
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(parts, ", "))

	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	return nil
}
