package driven

import (
	"context"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// JobQueue carries sync jobs to a worker.
type JobQueue interface {
	// Enqueue publishes a job for asynchronous execution.
	Enqueue(ctx context.Context, job domain.Job) error

	// Durable reports whether enqueued jobs outlive the publishing process
	// and reach workers running in other processes.
	Durable() bool
}

// JobHandler executes one dequeued job.
type JobHandler func(ctx context.Context, job domain.Job) error
