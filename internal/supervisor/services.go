package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driving"
)

var (
	_ suture.Service = (*SchedulerService)(nil)
	_ suture.Service = (*WorkerService)(nil)
	_ suture.Service = (*HTTPServerService)(nil)
)

// SchedulerService runs the cron scheduler as a supervised service.
type SchedulerService struct {
	scheduler driving.Scheduler
}

// NewSchedulerService wraps scheduler.
func NewSchedulerService(scheduler driving.Scheduler) *SchedulerService {
	return &SchedulerService{scheduler: scheduler}
}

// Serve blocks in the scheduler loop until ctx is cancelled.
func (s *SchedulerService) Serve(ctx context.Context) error {
	err := s.scheduler.Start(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	// Stopped through Stop rather than by the supervisor.
	return suture.ErrDoNotRestart
}

func (s *SchedulerService) String() string { return "scheduler" }

// JobRunner consumes jobs until its context ends.
type JobRunner interface {
	Run(ctx context.Context, handler driven.JobHandler) error
}

// WorkerService consumes the job queue as a supervised service.
type WorkerService struct {
	runner  JobRunner
	handler driven.JobHandler
}

// NewWorkerService runs handler for every job runner delivers.
func NewWorkerService(runner JobRunner, handler driven.JobHandler) *WorkerService {
	return &WorkerService{runner: runner, handler: handler}
}

// Serve consumes jobs until ctx is cancelled.
func (w *WorkerService) Serve(ctx context.Context) error {
	err := w.runner.Run(ctx, w.handler)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("queue worker: %w", err)
	}
	return errors.New("queue worker stopped unexpectedly")
}

func (w *WorkerService) String() string { return "queue-worker" }

// HTTPServer matches the lifecycle methods of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server as a supervised service.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server. A non-positive shutdownTimeout uses
// ten seconds.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve listens until ctx is cancelled, then shuts the server down
// gracefully.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return errors.New("http server closed unexpectedly")

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string { return "http-server" }
