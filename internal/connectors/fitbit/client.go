package fitbit

import (
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
	"github.com/custodia-labs/sleepsync/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.SleepSource = (*Client)(nil)

const (
	// DefaultAPIURL is the Fitbit Web API base URL.
	DefaultAPIURL = "https://api.fitbit.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// timeLayout is the zone-less local time format of sleep logs.
	timeLayout = "2006-01-02T15:04:05.000"

	// maxBodySize caps how much of a response is read.
	maxBodySize = 4 << 20
)

// Endpoint is the Fitbit OAuth2 endpoint. Client credentials are sent
// with HTTP Basic auth.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://www.fitbit.com/oauth2/authorize",
	TokenURL:  "https://api.fitbit.com/oauth2/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// Scopes are requested on the consent page. Fitbit requires PKCE.
var Scopes = []string{"sleep"}

// Config configures a Client. Zero values select defaults.
type Config struct {
	APIURL   string
	Timeout  time.Duration
	Location *time.Location
}

// Client fetches daily sleep logs.
type Client struct {
	apiURL   string
	http     *http.Client
	location *time.Location
	limiter  *RateLimiter
	breaker  *connectors.Breaker
}

// NewClient creates a Fitbit API client. limiter receives Retry-After
// backoff from 429 responses and may be nil.
func NewClient(cfg Config, limiter *RateLimiter, breaker *connectors.Breaker) *Client {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	if breaker == nil {
		breaker = connectors.NewBreaker("fitbit", connectors.DefaultBreakerConfig())
	}
	return &Client{
		apiURL:   apiURL,
		http:     &http.Client{Timeout: timeout},
		location: loc,
		limiter:  limiter,
		breaker:  breaker,
	}
}

// sleepResponse is the body of GET /1.2/user/-/sleep/date/{date}.json.
type sleepResponse struct {
	Sleep []sleepLog `json:"sleep"`
}

type sleepLog struct {
	DateOfSleep   string `json:"dateOfSleep"`
	LogID         int64  `json:"logId"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	MinutesAsleep int    `json:"minutesAsleep"`
	Efficiency    int    `json:"efficiency"`
	IsMainSleep   bool   `json:"isMainSleep"`
}

// statusError is a non-2xx response. Only server errors and 429 count
// as breaker failures.
type statusError struct {
	status     int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.status)
}

// FetchDay returns the main sleep session for date, or nil when the day
// has no sessions or the API answered with a non-2xx status.
func (c *Client) FetchDay(ctx context.Context, accessToken, date string) (*domain.SleepRecord, error) {
	log := logger.With("date", date)

	var (
		body   []byte
		status *statusError
	)
	err := c.breaker.Do(func() error {
		var doErr error
		body, doErr = c.get(ctx, accessToken, date)
		if errors.As(doErr, &status) {
			if status.status < 500 && status.status != http.StatusTooManyRequests {
				return nil
			}
		}
		return doErr
	})

	switch {
	case status != nil:
		if status.status == http.StatusTooManyRequests {
			if c.limiter != nil {
				c.limiter.RecordRateLimitError(status.retryAfter)
			}
			log.Warn("sleep fetch %v, treating as no data", domain.ErrRateLimited)
		} else {
			log.Warn("sleep fetch returned status %d, treating as no data", status.status)
		}
		return nil, nil
	case err != nil:
		return nil, &domain.FetchError{Date: date, Err: err}
	}

	var resp sleepResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.FetchError{Date: date, Err: fmt.Errorf("decode sleep response: %w", err)}
	}

	sessions := make([]domain.SleepSession, 0, len(resp.Sleep))
	for _, s := range resp.Sleep {
		start, err := c.parseTime(s.StartTime)
		if err != nil {
			return nil, &domain.FetchError{Date: date, Err: fmt.Errorf("log %d start time: %w", s.LogID, err)}
		}
		end, err := c.parseTime(s.EndTime)
		if err != nil {
			return nil, &domain.FetchError{Date: date, Err: fmt.Errorf("log %d end time: %w", s.LogID, err)}
		}
		sessions = append(sessions, domain.SleepSession{
			DateOfSleep:   s.DateOfSleep,
			LogID:         s.LogID,
			Start:         start,
			End:           end,
			MinutesAsleep: s.MinutesAsleep,
			Efficiency:    s.Efficiency,
			IsMainSleep:   s.IsMainSleep,
		})
	}

	return domain.SelectMainSleep(sessions, date), nil
}

// get performs the request. A non-2xx response yields a *statusError.
func (c *Client) get(ctx context.Context, accessToken, date string) ([]byte, error) {
	url := fmt.Sprintf("%s/1.2/user/-/sleep/date/%s.json", c.apiURL, date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sleep request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &statusError{
			status:     resp.StatusCode,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read sleep response: %w", err)
	}
	return body, nil
}

// parseTime reads a zone-less sleep log time in the configured location.
// RFC 3339 timestamps are also accepted.
func (c *Client) parseTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(timeLayout, s, c.location); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
