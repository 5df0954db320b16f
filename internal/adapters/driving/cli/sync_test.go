package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

func TestSyncCmd_Use(t *testing.T) {
	assert.Equal(t, "sync [user-id]", syncCmd.Use)
	assert.Equal(t, "Run one sync cycle now", syncCmd.Short)
}

func TestSyncCmd_AllUsers(t *testing.T) {
	orch := &mockSyncOrchestrator{cycleOutcome: domain.SyncOutcome{
		RunID: "run-1", Success: true, UsersProcessed: 2, UsersSkipped: 1, UsersFailed: 1,
		Started: testTime, Finished: testTime.Add(1500 * time.Millisecond),
	}}
	withServices(t, Services{Sync: orch})

	out, err := execute(t, "sync")

	require.NoError(t, err)
	assert.Equal(t, 1, orch.cycleCalls)
	assert.Empty(t, orch.cycleTarget)
	assert.Contains(t, out, "Synchronising all users...")
	assert.Contains(t, out, "Run run-1: 2 processed, 1 skipped, 1 failed (1.5s)")
}

func TestSyncCmd_OneUser(t *testing.T) {
	orch := &mockSyncOrchestrator{}
	withServices(t, Services{Sync: orch})

	out, err := execute(t, "sync", "u1")

	require.NoError(t, err)
	assert.Equal(t, "u1", orch.cycleTarget)
	assert.Contains(t, out, "Synchronising user: u1...")
}

func TestSyncCmd_SelectionFailure(t *testing.T) {
	orch := &mockSyncOrchestrator{cycleErr: &domain.SelectionError{Err: errors.New("database is locked")}}
	withServices(t, Services{Sync: orch})

	_, err := execute(t, "sync")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync failed")
}

func TestSyncCmd_CycleInProgress(t *testing.T) {
	withServices(t, Services{Sync: &mockSyncOrchestrator{cycleErr: domain.ErrCycleInProgress}})

	_, err := execute(t, "sync")

	assert.ErrorIs(t, err, domain.ErrCycleInProgress)
}

func TestSyncCmd_ServiceNotConfigured(t *testing.T) {
	withServices(t, Services{})

	_, err := execute(t, "sync")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync service not configured")
}

func TestSyncCmd_TooManyArgs(t *testing.T) {
	withServices(t, Services{Sync: &mockSyncOrchestrator{}})

	_, err := execute(t, "sync", "u1", "u2")

	assert.Error(t, err)
}
