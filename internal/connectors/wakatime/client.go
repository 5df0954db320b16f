package wakatime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/sleepsync/internal/connectors"
	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.SinkClient = (*Client)(nil)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// externalDurationsPath is relative to the per-user API base URL.
	externalDurationsPath = "/api/v1/users/current/external_durations"

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 512
)

// Endpoint is the WakaTime OAuth2 endpoint. Client credentials and the
// redirect URI are sent in the form body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://wakatime.com/oauth/authorize",
	TokenURL:  "https://wakatime.com/oauth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// Scopes are requested on the consent page. WakaTime expects them as one
// comma separated value.
var Scopes = []string{"email,read_stats,write_heartbeats"}

// Client posts external durations.
type Client struct {
	http    *http.Client
	breaker *connectors.Breaker
}

// NewClient creates a WakaTime client. A non-positive timeout uses
// DefaultTimeout; a nil breaker gets the default settings.
func NewClient(timeout time.Duration, breaker *connectors.Breaker) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if breaker == nil {
		breaker = connectors.NewBreaker("wakatime", connectors.DefaultBreakerConfig())
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// Send posts one external duration. Re-sending a payload with the same
// external_id updates the existing duration.
func (c *Client) Send(ctx context.Context, baseURL, accessToken string, payload domain.SinkPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.PublishError{ExternalID: payload.ExternalID, Err: fmt.Errorf("encode payload: %w", err)}
	}

	var (
		status    int
		rejection error
	)
	err = c.breaker.Do(func() error {
		var postErr error
		status, postErr = c.post(ctx, strings.TrimRight(baseURL, "/")+externalDurationsPath, accessToken, body)
		if postErr != nil && status >= 400 && status < 500 && status != http.StatusTooManyRequests {
			// Client errors do not count against the breaker.
			rejection = postErr
			return nil
		}
		return postErr
	})
	if err == nil {
		err = rejection
	}
	if err == nil {
		return nil
	}
	return &domain.PublishError{ExternalID: payload.ExternalID, Status: status, Err: err}
}

// post returns the response status and an error for anything but 2xx.
func (c *Client) post(ctx context.Context, url, accessToken string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("publish request: %w", err)
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if text := strings.TrimSpace(string(msg)); text != "" {
			return resp.StatusCode, fmt.Errorf("sink rejected payload: %s", text)
		}
		return resp.StatusCode, errors.New("sink rejected payload")
	}
	return resp.StatusCode, nil
}
