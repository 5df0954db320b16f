package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
)

// schedulerStore implements driven.SchedulerStore on the scheduled_tasks
// and task_results tables. Task times are unix milliseconds; result times
// are unix nanoseconds so history sorts correctly below one second.
type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const taskColumns = `id, name, schedule, last_run, next_run, last_error, last_success, enabled`

const resultColumns = `task_id, run_id, started_at, ended_at, success, error, items_processed, items_failed`

// GetTask returns nil and no error when the task does not exist.
func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, taskID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

// ListTasks returns all tasks ordered by ID.
func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying scheduled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scheduled tasks: %w", err)
	}
	return tasks, nil
}

// SaveTask inserts the task or replaces every column of an existing one.
func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			schedule = excluded.schedule,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			last_success = excluded.last_success,
			enabled = excluded.enabled
	`, task.ID, task.Name, task.Schedule,
		unixMillis(task.LastRun), unixMillis(task.NextRun),
		task.LastError, unixMillis(task.LastSuccess), sqlBool(task.Enabled))
	if err != nil {
		return fmt.Errorf("saving scheduled task %s: %w", task.ID, err)
	}
	return nil
}

// DeleteTask removes a task and its history.
func (s *schedulerStore) DeleteTask(ctx context.Context, taskID string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("deleting scheduled task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_results WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("deleting task history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE id = ?`, taskID); err != nil {
		return fmt.Errorf("deleting scheduled task: %w", err)
	}
	return tx.Commit()
}

// RecordResult appends one run to the task's history.
func (s *schedulerStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil || result.TaskID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO task_results (`+resultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, result.TaskID, result.RunID,
		result.StartedAt.UnixNano(), result.EndedAt.UnixNano(),
		sqlBool(result.Success), result.Error,
		result.ItemsProcessed, result.ItemsFailed)
	if err != nil {
		return fmt.Errorf("recording result for %s: %w", result.TaskID, err)
	}
	return nil
}

// GetTaskHistory returns up to limit results, most recent first.
func (s *schedulerStore) GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+resultColumns+`
		FROM task_results
		WHERE task_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying task history: %w", err)
	}
	defer rows.Close()

	var results []domain.TaskResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task history: %w", err)
	}
	return results, nil
}

// PruneHistory keeps the most recent keep results per task.
func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM task_results
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY task_id ORDER BY started_at DESC, id DESC
				) AS rn
				FROM task_results
			) WHERE rn > ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning task history: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

func scanTask(row rowScanner) (*domain.ScheduledTask, error) {
	var task domain.ScheduledTask
	var lastRun, nextRun, lastSuccess sql.NullInt64
	var enabled int64

	if err := row.Scan(&task.ID, &task.Name, &task.Schedule,
		&lastRun, &nextRun, &task.LastError, &lastSuccess, &enabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning scheduled task: %w", err)
	}

	task.LastRun = fromUnixMillis(lastRun)
	task.NextRun = fromUnixMillis(nextRun)
	task.LastSuccess = fromUnixMillis(lastSuccess)
	task.Enabled = enabled != 0
	return &task, nil
}

func scanResult(row rowScanner) (*domain.TaskResult, error) {
	var result domain.TaskResult
	var startedAt, endedAt, success int64

	if err := row.Scan(&result.TaskID, &result.RunID, &startedAt, &endedAt,
		&success, &result.Error, &result.ItemsProcessed, &result.ItemsFailed); err != nil {
		return nil, fmt.Errorf("scanning task result: %w", err)
	}

	result.StartedAt = time.Unix(0, startedAt).UTC()
	result.EndedAt = time.Unix(0, endedAt).UTC()
	result.Success = success != 0
	return &result, nil
}

// sqlBool stores a bool as 0 or 1.
func sqlBool(b bool) int {
	if b {
		return 1
	}
	return 0
}
