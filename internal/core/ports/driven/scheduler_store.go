package driven

import (
	"context"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// SchedulerStore persists task state and run history so that a restarted
// daemon resumes the schedule instead of firing immediately.
type SchedulerStore interface {
	// GetTask returns nil and no error when the task does not exist.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)
	// SaveTask creates or fully replaces the task with task.ID.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error
	DeleteTask(ctx context.Context, taskID string) error

	RecordResult(ctx context.Context, result *domain.TaskResult) error
	// GetTaskHistory returns up to limit results, most recent first.
	// A non-positive limit returns all of them.
	GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
	// PruneHistory keeps the most recent keep results of each task.
	PruneHistory(ctx context.Context, keep int) error
}
