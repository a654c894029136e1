// pkg/oauth1/signature.go
package oauth1

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	MethodHMACSHA1 = "HMAC-SHA1"
	Version        = "1.0"

	ParamConsumerKey     = "oauth_consumer_key"
	ParamNonce           = "oauth_nonce"
	ParamSignature       = "oauth_signature"
	ParamSignatureMethod = "oauth_signature_method"
	ParamTimestamp       = "oauth_timestamp"
	ParamVersion         = "oauth_version"
	ParamBodyHash        = "oauth_body_hash"
	ParamCallback        = "oauth_callback"
)

// Credentials are the consumer key and shared secret.
type Credentials struct {
	Key    string
	Secret string
}

// Escape percent-encodes s per RFC 3986 section 2.1 as required by RFC 5849
// section 3.6: only unreserved characters pass through.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

// NormalizeURL returns the base string URI: lower-case scheme and host,
// default ports dropped, query and fragment removed.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("oauth1: parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("oauth1: url must be absolute")
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" {
		if !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") {
			host += ":" + port
		}
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return scheme + "://" + host + path, nil
}

// BaseString builds the signature base string from the HTTP method, the
// request URL (its query parameters are folded into params) and the
// remaining request parameters. oauth_signature and realm are excluded.
func BaseString(method, rawURL string, params url.Values) (string, error) {
	base, err := NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}
	u, _ := url.Parse(rawURL)

	all := url.Values{}
	for k, vs := range u.Query() {
		all[k] = append(all[k], vs...)
	}
	for k, vs := range params {
		all[k] = append(all[k], vs...)
	}
	delete(all, ParamSignature)
	delete(all, "realm")

	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(all))
	for k, vs := range all {
		ek := Escape(k)
		for _, v := range vs {
			pairs = append(pairs, pair{ek, Escape(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}

	return strings.ToUpper(method) + "&" + Escape(base) + "&" + Escape(strings.Join(parts, "&")), nil
}

// Sign computes the base64 HMAC-SHA1 signature of base.
func Sign(base, consumerSecret, tokenSecret string) string {
	key := Escape(consumerSecret) + "&" + Escape(tokenSecret)
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BodyHash is the oauth_body_hash value for body.
func BodyHash(body []byte) string {
	sum := sha1.Sum(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}
