package lti

import (
	"errors"
	"fmt"
)

var (
	ErrNotInSession       = errors.New("session expired or unavailable")
	ErrUnknownRole        = errors.New("unknown role")
	ErrRole               = errors.New("not authorized")
	ErrUnknownRequestType = errors.New("unknown request type")
	ErrInvalidConsumerKey = errors.New("invalid oauth_consumer_key")
	ErrMissingUserID      = errors.New("launch is missing user_id")
	ErrNoOutcomeService   = errors.New("no lis_outcome_service_url in session")

	// ErrNotFound is returned by Store lookups.
	ErrNotFound = errors.New("lti: not found")
)

// SignatureError reports a launch that failed OAuth verification or lacked
// the parameters needed to trust it.
type SignatureError struct {
	Err error
}

func (e *SignatureError) Error() string { return "OAuth error: " + e.Err.Error() }
func (e *SignatureError) Unwrap() error { return e.Err }

// PostMessageError reports a failed grade passback.
type PostMessageError struct {
	URL    string
	Status int
	Err    error
}

func (e *PostMessageError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("Post Message Failed: %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("Post Message Failed: %s: %v", e.URL, e.Err)
}

func (e *PostMessageError) Unwrap() error { return e.Err }

// IsProtocolError reports whether err is one of the LTI error kinds handed to
// an ErrorHandler, as opposed to an infrastructure failure.
func IsProtocolError(err error) bool {
	var se *SignatureError
	var pe *PostMessageError
	switch {
	case errors.As(err, &se), errors.As(err, &pe):
		return true
	case errors.Is(err, ErrNotInSession),
		errors.Is(err, ErrUnknownRole),
		errors.Is(err, ErrRole),
		errors.Is(err, ErrUnknownRequestType),
		errors.Is(err, ErrInvalidConsumerKey),
		errors.Is(err, ErrMissingUserID),
		errors.Is(err, ErrNoOutcomeService):
		return true
	}
	return false
}
