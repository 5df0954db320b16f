package driven

import (
	"context"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// SleepSource fetches sleep logs from the source provider.
type SleepSource interface {
	// FetchDay returns the main sleep record for date (YYYY-MM-DD).
	// A nil record with nil error means no data for that day.
	FetchDay(ctx context.Context, accessToken, date string) (*domain.SleepRecord, error)
}
