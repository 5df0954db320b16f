package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/sleepsync/internal/logger"
)

// DefaultCheckTimeout bounds all health checks of one probe.
const DefaultCheckTimeout = 3 * time.Second

// Check reports whether one dependency is healthy.
type Check func(ctx context.Context) error

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Options configures the router.
type Options struct {
	// Checks are run on every /healthz request, keyed by name.
	Checks map[string]Check
	// CheckTimeout defaults to DefaultCheckTimeout.
	CheckTimeout time.Duration
	// Metrics serves /metrics. Defaults to the Prometheus default registry.
	Metrics http.Handler
}

// NewRouter builds the operational HTTP handler.
func NewRouter(opts Options) http.Handler {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = DefaultCheckTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthHandler(opts.Checks, opts.CheckTimeout))
	r.Handle("/metrics", opts.Metrics)

	return r
}

func healthHandler(checks map[string]Check, timeout time.Duration) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := HealthResponse{Status: "ok"}
		status := http.StatusOK
		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				logger.With("check", name).Err(err).Warn("health check failed")
				resp.Checks[name] = err.Error()
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		writeJSON(w, status, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("writing response: %v", err)
	}
}
