package services

import (
	"context"
	"time"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
)

// ensureFresh refreshes provider tokens on cred when the stored expiry is
// at or before now. cred is updated in place; the refresher persists.
func ensureFresh(
	ctx context.Context,
	refresher driven.TokenRefresher,
	metrics driven.SyncMetrics,
	provider domain.Provider,
	cred *domain.UserCredential,
	now time.Time,
) error {
	if !cred.Tokens(provider).Expired(now) {
		return nil
	}
	updated, err := refresher.Refresh(ctx, provider, cred)
	metrics.ObserveRefresh(provider, err)
	if err != nil {
		return err
	}
	cred.SetTokens(provider, updated.Tokens(provider))
	return nil
}
