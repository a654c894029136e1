package lti

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mind-engage/mindengage-lti/pkg/oauth1"
	"github.com/mind-engage/mindengage-lti/pkg/outcomes"
)

// PostGrade reports score for the launch's lis_result_sourcedid using the
// LTI 1.1 replaceResult operation. A score outside [0, 1] is not sent and
// yields false with a nil error.
func (l *Launch) PostGrade(ctx context.Context, score float64) (bool, error) {
	if !outcomes.ValidScore(score) {
		return false, nil
	}
	endpoint, err := l.ResponseURL()
	if err != nil {
		return false, &PostMessageError{Err: err}
	}
	cred, err := l.credentials(ctx)
	if err != nil {
		return false, &PostMessageError{URL: endpoint, Err: err}
	}

	resp, err := l.tool.Outcomes.ReplaceResult(ctx, endpoint, cred, l.ResultSourcedID(), score)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("url", endpoint).Float64("score", score).Msg("lti.grade.failed")
		return false, postError(endpoint, err)
	}
	log.Ctx(ctx).Info().
		Str("url", endpoint).
		Float64("score", score).
		Str("description", resp.Description).
		Msg("lti.grade.posted")
	return true, nil
}

// PostGrade2 reports score through the LTI 2.0 Result service. user defaults
// to the launch's user_id.
func (l *Launch) PostGrade2(ctx context.Context, score float64, user, comment string) (bool, error) {
	if !outcomes.ValidScore(score) {
		return false, nil
	}
	if user == "" {
		user = l.UserID()
	}
	base, err := l.ResponseURL()
	if err != nil {
		return false, &PostMessageError{Err: err}
	}
	endpoint := strings.ReplaceAll(base, "/grade_handler", "/lti_2_0_result_rest_handler/user/"+url.PathEscape(user))
	cred, err := l.credentials(ctx)
	if err != nil {
		return false, &PostMessageError{URL: endpoint, Err: err}
	}

	if err := l.tool.Outcomes.PutResult(ctx, endpoint, cred, score, comment); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("url", endpoint).Float64("score", score).Msg("lti.grade2.failed")
		return false, postError(endpoint, err)
	}
	log.Ctx(ctx).Info().Str("url", endpoint).Float64("score", score).Msg("lti.grade2.posted")
	return true, nil
}

func (l *Launch) credentials(ctx context.Context) (oauth1.Credentials, error) {
	key, err := l.ConsumerKey()
	if err != nil {
		return oauth1.Credentials{}, err
	}
	c, err := l.tool.Store.Consumer(ctx, key)
	if err != nil {
		return oauth1.Credentials{}, fmt.Errorf("consumer %d: %w", key, err)
	}
	return oauth1.Credentials{Key: c.KeyString(), Secret: c.Secret}, nil
}

func postError(endpoint string, err error) *PostMessageError {
	pe := &PostMessageError{URL: endpoint, Err: err}
	var se *outcomes.StatusError
	if errors.As(err, &se) {
		pe.Status = se.StatusCode
	}
	return pe
}
