package fitbit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
)

// Ensure RateLimiter implements the interface.
var _ driven.Pacer = (*RateLimiter)(nil)

// DefaultPace is the minimum gap between consecutive day fetches.
const DefaultPace = time.Second

// defaultRetryAfter is used when a 429 carries no usable Retry-After.
const defaultRetryAfter = 60 * time.Second

// RateLimiter spaces requests to the Fitbit API.
// It uses a single-token bucket with backoff after 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter that allows one request per pace.
// A non-positive pace uses DefaultPace.
func NewRateLimiter(pace time.Duration) *RateLimiter {
	if pace <= 0 {
		pace = DefaultPace
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(pace), 1),
		now:     time.Now,
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := retryAt.Sub(r.now()); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimitError sets a backoff period after a 429 response.
func (r *RateLimiter) RecordRateLimitError(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if at := r.now().Add(retryAfter); at.After(r.retryAt) {
		r.retryAt = at
	}
}

// RetryAt returns the end of the current backoff period, if any.
func (r *RateLimiter) RetryAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAt
}

// parseRetryAfter reads a Retry-After header given in seconds.
// Fitbit never sends the HTTP-date form.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
