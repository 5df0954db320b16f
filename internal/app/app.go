package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/sleepsync/internal/adapters/driven/oauth"
	"github.com/custodia-labs/sleepsync/internal/adapters/driven/queue"
	"github.com/custodia-labs/sleepsync/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/sleepsync/internal/config"
	"github.com/custodia-labs/sleepsync/internal/connectors"
	"github.com/custodia-labs/sleepsync/internal/connectors/fitbit"
	"github.com/custodia-labs/sleepsync/internal/connectors/wakatime"
	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driving"
	"github.com/custodia-labs/sleepsync/internal/core/services"
	"github.com/custodia-labs/sleepsync/internal/logger"
	"github.com/custodia-labs/sleepsync/internal/metrics"
	"github.com/custodia-labs/sleepsync/internal/supervisor"
)

// httpShutdownTimeout bounds graceful shutdown of the health listener.
const httpShutdownTimeout = 10 * time.Second

// App holds the assembled services.
type App struct {
	Config *config.Config

	// Sync runs cycles and imports behind the skip-if-running guard.
	Sync        driving.SyncOrchestrator
	Credentials driving.CredentialsService
	Jobs        *services.JobService
	Scheduler   *services.Scheduler

	stores *stores
	queue  *queue.Queue
}

// New builds every component named by cfg. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := openStores(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.With("store", string(st.kind)).Debug("credential store opened")

	recorder := metrics.Recorder{}
	breakerCfg := connectors.BreakerConfig{
		MaxRequests:  cfg.Breaker.MaxRequests,
		Interval:     cfg.Breaker.Interval,
		Timeout:      cfg.Breaker.Timeout,
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
	}

	clients := map[domain.Provider]oauth.ClientConfig{
		domain.ProviderSource: {
			Endpoint:     fitbit.Endpoint,
			ClientID:     cfg.Source.ClientID,
			ClientSecret: cfg.Source.ClientSecret,
			RedirectURI:  cfg.Source.RedirectURI,
			Scopes:       fitbit.Scopes,
			PKCE:         true,
		},
		domain.ProviderSink: {
			Endpoint:     wakatime.Endpoint,
			ClientID:     cfg.Sink.ClientID,
			ClientSecret: cfg.Sink.ClientSecret,
			RedirectURI:  cfg.Sink.RedirectURI,
			Scopes:       wakatime.Scopes,
		},
	}
	tokenHTTP := &http.Client{Timeout: cfg.Source.Timeout}
	refresher := oauth.NewRefresher(st.credentials, clients, tokenHTTP)

	limiter := fitbit.NewRateLimiter(cfg.Sync.Pace)
	source := fitbit.NewClient(fitbit.Config{
		APIURL:   cfg.Source.APIURL,
		Timeout:  cfg.Source.Timeout,
		Location: cfg.Location(),
	}, limiter, connectors.NewBreaker("fitbit", breakerCfg))
	sink := wakatime.NewClient(cfg.Sink.Timeout, connectors.NewBreaker("wakatime", breakerCfg))

	orchestrator := services.NewSyncOrchestrator(st.credentials, refresher, source, sink, limiter, services.SyncOptions{
		Location:    cfg.Location(),
		Concurrency: cfg.Sync.Concurrency,
		Metrics:     recorder,
	})
	guard := services.NewCycleGuard(orchestrator, recorder)

	a := &App{
		Config:      cfg,
		Sync:        guard,
		Credentials: services.NewCredentialsService(st.credentials, oauth.NewAuthorizer(clients, tokenHTTP)),
		stores:      st,
	}

	// A nil *queue.Queue must not reach the services as a non-nil interface.
	var jobQueue driven.JobQueue
	if cfg.Queue.Enabled {
		q, err := queue.New(queue.Config{
			Backend:     cfg.Queue.Backend,
			URL:         cfg.Queue.URL,
			Topic:       cfg.Queue.Topic,
			Concurrency: cfg.Queue.Concurrency,
			MaxAttempts: cfg.Queue.MaxAttempts,
		})
		if err != nil {
			st.close()
			return nil, fmt.Errorf("creating job queue: %w", err)
		}
		a.queue = q
		jobQueue = q
	}

	a.Jobs = services.NewJobService(jobQueue, guard)
	a.Scheduler = services.NewScheduler(cfg.SchedulerDomainConfig(), st.scheduler, guard, jobQueue, recorder)

	return a, nil
}

// StoreKind reports which credential backend is in use.
func (a *App) StoreKind() StoreKind {
	return a.stores.kind
}

// QueueEnabled reports whether jobs go through the queue.
func (a *App) QueueEnabled() bool {
	return a.queue != nil
}

// Handler returns the health and metrics HTTP handler.
func (a *App) Handler() http.Handler {
	return httpapi.NewRouter(httpapi.Options{Checks: a.stores.checks})
}

// Serve runs the scheduler, the queue worker and the HTTP listener under
// a supervisor until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	tree := supervisor.NewTree(supervisor.TreeConfig{})

	if a.Config.Scheduler.Enabled {
		tree.AddEngineService(supervisor.NewSchedulerService(a.Scheduler))
	}
	if a.queue != nil {
		tree.AddEngineService(supervisor.NewWorkerService(a.queue, a.Jobs.Handle))
	}

	server := &http.Server{
		Addr:              a.Config.HTTP.Listen,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPServerService(server, httpShutdownTimeout))

	logger.With(
		"schedule", a.Config.Scheduler.Schedule,
		"listen", a.Config.HTTP.Listen,
		"queue", a.queue != nil,
	).Info("sleepsync daemon starting")

	err := tree.Serve(ctx)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		logger.Info("sleepsync daemon stopped")
		return nil
	}
	return err
}

// Close releases the queue and the stores.
func (a *App) Close() error {
	var errs []error
	if a.queue != nil {
		errs = append(errs, a.queue.Close())
	}
	errs = append(errs, a.stores.close())
	return errors.Join(errs...)
}
