/*
Package oauth1 implements the subset of OAuth 1.0a (RFC 5849) that LTI 1.x
uses: HMAC-SHA1 signatures over form-encoded launch bodies (inbound) and
header-signed requests carrying an oauth_body_hash (outbound grade passback).

Only two-legged flows are supported; the token secret is always empty.
*/
package oauth1
