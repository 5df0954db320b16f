package connectors

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/custodia-labs/sleepsync/internal/logger"
	"github.com/custodia-labs/sleepsync/internal/metrics"
)

// BreakerConfig controls when a provider circuit opens.
type BreakerConfig struct {
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32
	// Interval resets the failure counts while closed.
	Interval time.Duration
	// Timeout is how long the circuit stays open before going half-open.
	Timeout time.Duration
	// MinRequests is the sample size required before the circuit may trip.
	MinRequests uint32
	// FailureRatio trips the circuit once reached.
	FailureRatio float64
}

// DefaultBreakerConfig returns the breaker settings used for provider APIs.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// Breaker sheds calls to a provider that keeps failing.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// NewBreaker creates a breaker named after the provider it protects.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.With("breaker", name, "from", from.String(), "to", to.String()).Warn("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Breaker{cb: cb, name: name}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Do runs fn through the breaker. An error from fn counts as a failure.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})

	switch {
	case err == nil:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	case IsBreakerOpen(err):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	}
	return err
}

// IsBreakerOpen reports whether err is a breaker rejection rather than a
// failure of the wrapped call.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
