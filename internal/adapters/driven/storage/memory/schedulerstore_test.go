package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

func TestSchedulerStore_Tasks(t *testing.T) {
	ctx := context.Background()
	store := NewSchedulerStore()

	task, err := store.GetTask(ctx, domain.TaskIDSleepSync)
	require.NoError(t, err)
	assert.Nil(t, task)

	next := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: "b", Schedule: "0 * * * *"}))
	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: "a", Schedule: "0 9 * * *", NextRun: next}))

	task, err = store.GetTask(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, next, task.NextRun)

	task.Schedule = "changed"
	again, _ := store.GetTask(ctx, "a")
	assert.Equal(t, "0 9 * * *", again.Schedule, "returned task is a copy")

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)

	require.NoError(t, store.DeleteTask(ctx, "a"))
	tasks, _ = store.ListTasks(ctx)
	assert.Len(t, tasks, 1)

	assert.ErrorIs(t, store.SaveTask(ctx, nil), domain.ErrInvalidInput)
}

func TestSchedulerStore_History(t *testing.T) {
	ctx := context.Background()
	store := NewSchedulerStore()
	base := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{
			TaskID:         domain.TaskIDSleepSync,
			RunID:          string(rune('a' + i)),
			StartedAt:      base.Add(time.Duration(i) * time.Hour),
			ItemsProcessed: i,
		}))
	}
	require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{TaskID: "other", StartedAt: base}))

	history, err := store.GetTaskHistory(ctx, domain.TaskIDSleepSync, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "e", history[0].RunID)
	assert.Equal(t, "c", history[2].RunID)

	require.NoError(t, store.PruneHistory(ctx, 2))
	history, _ = store.GetTaskHistory(ctx, domain.TaskIDSleepSync, 0)
	require.Len(t, history, 2)
	assert.Equal(t, "e", history[0].RunID)
	assert.Equal(t, "d", history[1].RunID)

	other, _ := store.GetTaskHistory(ctx, "other", 10)
	assert.Len(t, other, 1)

	assert.ErrorIs(t, store.RecordResult(ctx, nil), domain.ErrInvalidInput)
}
