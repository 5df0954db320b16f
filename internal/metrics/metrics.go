// Package metrics exposes Prometheus instrumentation for the sync engine.
//
// Metrics are registered on the default registry at package init and are
// served by the daemon's /metrics endpoint.
//
// Sync metrics:
//   - sleepsync_cycles_total{result}: completed cycles (success, failed, skipped)
//   - sleepsync_cycle_duration_seconds: wall time of a cycle
//   - sleepsync_users_total{result}: users by outcome (processed, skipped, failed)
//   - sleepsync_last_cycle_success_timestamp: unix time of last successful cycle
//   - sleepsync_import_days_total{result}: imported days (processed, requested)
//   - sleepsync_token_refresh_total{provider,result}
//   - sleepsync_fetch_total{result}: source fetches (found, empty, error)
//   - sleepsync_publish_duration_seconds{result}
//
// Circuit breaker and queue metrics follow the same naming scheme.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sleepsync"

var (
	// Sync cycle metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of sync cycles by result",
		},
		[]string{"result"}, // success, failed, skipped
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of sync cycles",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 900},
		},
	)

	UsersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "users_total",
			Help:      "Users handled by sync cycles by outcome",
		},
		[]string{"result"}, // processed, skipped, failed
	)

	LastCycleSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_success_timestamp",
			Help:      "Unix timestamp of the last successful sync cycle",
		},
	)

	ImportDaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_days_total",
			Help:      "Days handled by historical imports",
		},
		[]string{"result"}, // processed, requested
	)

	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Historical imports by result",
		},
		[]string{"result"},
	)

	// Provider metrics
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Token refresh attempts by provider and result",
		},
		[]string{"provider", "result"},
	)

	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Source day fetches by result",
		},
		[]string{"result"}, // found, empty, error
	)

	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Latency of sink publish calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Queue metrics
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Queue jobs by kind and result",
		},
		[]string{"kind", "result"}, // enqueued, completed, failed, poisoned
	)
)
