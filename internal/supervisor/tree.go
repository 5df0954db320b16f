package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/custodia-labs/sleepsync/internal/logger"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay, in seconds.
	FailureDecay float64
	// FailureBackoff is how long to wait once the threshold is exceeded.
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long each service may take to stop.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's standard failure handling with a
// shutdown timeout long enough for an in-flight cycle to finish a user.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  30 * time.Second,
	}
}

// Tree is the daemon's supervision hierarchy.
type Tree struct {
	root   *suture.Supervisor
	engine *suture.Supervisor
	api    *suture.Supervisor
}

// NewTree creates an empty tree. Zero config fields take defaults.
func NewTree(cfg TreeConfig) *Tree {
	def := DefaultTreeConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = logEvent

	t := &Tree{
		root:   suture.New("sleepsync", rootSpec),
		engine: suture.New("engine", spec),
		api:    suture.New("api", spec),
	}
	t.root.Add(t.engine)
	t.root.Add(t.api)
	return t
}

// AddEngineService adds a sync engine service (scheduler, worker).
func (t *Tree) AddEngineService(svc suture.Service) suture.ServiceToken {
	return t.engine.Add(svc)
}

// AddAPIService adds an HTTP-facing service.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The returned channel
// receives Serve's result.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

func logEvent(e suture.Event) {
	log := logger.With("component", "supervisor")
	switch e.Type() {
	case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate, suture.EventTypeStopTimeout:
		log.Warn("%s", e)
	default:
		log.Info("%s", e)
	}
}
