package outcomes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/mind-engage/mindengage-lti/pkg/oauth1"
)

// ErrNotSuccess is returned when the consumer answers a POX request with an
// imsx_codeMajor other than success.
var ErrNotSuccess = errors.New("outcomes: consumer did not report success")

// StatusError is a non-2xx answer from an outcome service.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("outcomes: %s %s: %s", e.Method, e.URL, e.Status)
}

// Client sends signed grade passback messages to a tool consumer.
type Client struct {
	HTTP *http.Client
	// NewMessageID returns the imsx_messageIdentifier for each POX request.
	NewMessageID func() string
	// Signer is applied to every request; Credentials are filled per call.
	Signer oauth1.Signer
}

// New returns a Client whose requests time out after timeout (0 = none).
func New(timeout time.Duration) *Client {
	return &Client{HTTP: &http.Client{Timeout: timeout}}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) messageID() string {
	if c.NewMessageID != nil {
		return c.NewMessageID()
	}
	return xid.New().String()
}

// ReplaceResult posts an LTI 1.1 replaceResult for sourcedID. The parsed
// response is returned even when the consumer reports a failure.
func (c *Client) ReplaceResult(ctx context.Context, endpoint string, cred oauth1.Credentials, sourcedID string, score float64) (Response, error) {
	body, err := ReplaceResultRequest(c.messageID(), sourcedID, score)
	if err != nil {
		return Response{}, err
	}
	raw, err := c.send(ctx, http.MethodPost, endpoint, ContentTypePOX, cred, body)
	if err != nil {
		return Response{}, err
	}
	resp, err := ParseResponse(raw)
	if err != nil {
		return Response{}, err
	}
	if !resp.Success() {
		return resp, fmt.Errorf("%w: %s: %s", ErrNotSuccess, resp.CodeMajor, resp.Description)
	}
	return resp, nil
}

// PutResult PUTs an LTI 2.0 Result document to endpoint.
func (c *Client) PutResult(ctx context.Context, endpoint string, cred oauth1.Credentials, score float64, comment string) error {
	if !ValidScore(score) {
		return ErrScoreRange
	}
	body, err := json.Marshal(NewResult(score, comment))
	if err != nil {
		return err
	}
	_, err = c.send(ctx, http.MethodPut, endpoint, ContentTypeResult, cred, body)
	return err
}

func (c *Client) send(ctx context.Context, method, endpoint, contentType string, cred oauth1.Credentials, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("outcomes: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	s := c.Signer
	s.Credentials = cred
	if err := s.SignRequest(req, body); err != nil {
		return nil, fmt.Errorf("outcomes: sign request: %w", err)
	}

	res, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("outcomes: read response: %w", err)
	}
	if res.StatusCode/100 != 2 {
		return raw, &StatusError{Method: method, URL: endpoint, StatusCode: res.StatusCode, Status: res.Status}
	}
	return raw, nil
}
