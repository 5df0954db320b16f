package driving

import (
	"context"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// SyncOrchestrator runs the sleep synchronisation engine.
type SyncOrchestrator interface {
	// RunCycle syncs yesterday's sleep for every eligible user, or only for
	// targetUserID when it is non-empty. Per-user failures are counted in
	// the outcome; only a failed user selection returns an error.
	RunCycle(ctx context.Context, targetUserID string) (domain.SyncOutcome, error)

	// ImportHistory syncs every day from (today - months) to today for one
	// user. months <= 0 uses domain.DefaultImportMonths.
	ImportHistory(ctx context.Context, userID string, months int) (domain.ImportOutcome, error)
}
