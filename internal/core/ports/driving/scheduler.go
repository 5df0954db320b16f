package driving

import (
	"context"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// Scheduler drives recurring sync cycles.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error
}

// TaskHistory exposes persisted scheduler state.
type TaskHistory interface {
	// Tasks returns every known task.
	Tasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// History returns recent results for a task, most recent first.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
}
