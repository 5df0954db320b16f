package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

func TestStatusCmd_ShowsTasksAndHistory(t *testing.T) {
	history := &mockTaskHistory{
		tasks: []domain.ScheduledTask{{
			ID: domain.TaskIDSleepSync, Name: "Sleep Sync", Schedule: "*/30 * * * *", Enabled: true,
			NextRun: testTime.Add(30 * time.Minute), LastRun: testTime, LastSuccess: testTime,
			LastError: "select users: database is locked",
		}},
		results: []domain.TaskResult{
			{TaskID: domain.TaskIDSleepSync, StartedAt: testTime, EndedAt: testTime.Add(2 * time.Second),
				Success: true, ItemsProcessed: 3, ItemsFailed: 1},
			{TaskID: domain.TaskIDSleepSync, StartedAt: testTime.Add(-30 * time.Minute),
				EndedAt: testTime.Add(-30 * time.Minute), Error: "select users: database is locked"},
		},
	}
	withServices(t, Services{History: history})

	out, err := execute(t, "status", "--limit", "2")

	require.NoError(t, err)
	assert.Equal(t, 2, history.limit)
	assert.Contains(t, out, "Sleep Sync ("+domain.TaskIDSleepSync+") [enabled]")
	assert.Contains(t, out, "Schedule:     */30 * * * *")
	assert.Contains(t, out, "Next run:     2024-03-10T08:30:00Z")
	assert.Contains(t, out, "Last error:   select users: database is locked")
	assert.Contains(t, out, "2024-03-10T08:00:00Z  ok      3 processed, 1 failed  2s")
	assert.Contains(t, out, "failed  0 processed, 0 failed  0s  select users")
}

func TestStatusCmd_NoTasks(t *testing.T) {
	withServices(t, Services{History: &mockTaskHistory{}})

	out, err := execute(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "No scheduled tasks yet")
}

func TestStatusCmd_DefaultLimit(t *testing.T) {
	history := &mockTaskHistory{tasks: []domain.ScheduledTask{{ID: "t", Name: "T"}}}
	withServices(t, Services{History: history})

	out, err := execute(t, "status")

	require.NoError(t, err)
	assert.Equal(t, 5, history.limit)
	assert.Contains(t, out, "[disabled]")
	assert.Contains(t, out, "Last run:     -")
}

func TestStatusCmd_Errors(t *testing.T) {
	withServices(t, Services{History: &mockTaskHistory{tasksErr: errors.New("no such table")}})
	_, err := execute(t, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing tasks")

	withServices(t, Services{History: &mockTaskHistory{
		tasks:      []domain.ScheduledTask{{ID: "t"}},
		historyErr: errors.New("no such table"),
	}})
	_, err = execute(t, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading history for t")
}

func TestStatusCmd_NotConfigured(t *testing.T) {
	withServices(t, Services{})

	_, err := execute(t, "status")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler history not configured")
}
