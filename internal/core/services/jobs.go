package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driving"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

// Ensure JobService implements the interface.
var _ driving.JobSubmitter = (*JobService)(nil)

// JobService submits jobs to the queue and executes dequeued ones.
type JobService struct {
	queue    driven.JobQueue
	syncOrch driving.SyncOrchestrator
}

// NewJobService creates a job service. queue may be nil, in which case
// Submit returns domain.ErrQueueDisabled; a queue that is not durable
// makes Submit return domain.ErrQueueInProcess.
func NewJobService(queue driven.JobQueue, syncOrch driving.SyncOrchestrator) *JobService {
	return &JobService{queue: queue, syncOrch: syncOrch}
}

// Submit validates and enqueues job. Submission is refused when the queue
// cannot carry the job beyond this process, since no worker would see it.
func (s *JobService) Submit(ctx context.Context, job domain.Job) (string, error) {
	if s.queue == nil {
		return "", domain.ErrQueueDisabled
	}
	if !s.queue.Durable() {
		return "", fmt.Errorf("%w: set queue.backend to nats to submit jobs to the daemon", domain.ErrQueueInProcess)
	}
	if err := job.Validate(); err != nil {
		return "", err
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", job.Kind, err)
	}
	return job.ID, nil
}

// Handle executes a dequeued job. A job skipped because another run is
// active returns nil so that it is acknowledged rather than retried.
// Per-user failures inside a cycle never fail the job.
func (s *JobService) Handle(ctx context.Context, job domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}
	log := logger.With("job_id", job.ID, "kind", string(job.Kind))

	var err error
	switch job.Kind {
	case domain.JobSyncAllUsers:
		_, err = s.syncOrch.RunCycle(ctx, "")
	case domain.JobSyncUser:
		_, err = s.syncOrch.RunCycle(ctx, job.UserID)
	case domain.JobImportHistory:
		_, err = s.syncOrch.ImportHistory(ctx, job.UserID, job.Months)
	}

	if errors.Is(err, domain.ErrCycleInProgress) {
		log.Info("job skipped: another run is active")
		return nil
	}
	if err != nil {
		log.Err(err).Warn("job failed")
		return err
	}
	log.Info("job completed")
	return nil
}
