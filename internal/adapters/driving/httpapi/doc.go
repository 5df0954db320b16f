// Package httpapi serves the daemon's operational endpoints: a liveness
// and readiness probe at /healthz and Prometheus metrics at /metrics.
package httpapi
