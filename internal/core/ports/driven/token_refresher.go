package driven

import (
	"context"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// TokenRefresher exchanges a stored refresh token for new provider tokens.
type TokenRefresher interface {
	// Refresh performs one refresh grant for provider and persists the
	// result. It returns a copy of cred carrying the new tokens.
	// Failures are reported as *domain.RefreshError.
	Refresh(ctx context.Context, provider domain.Provider, cred *domain.UserCredential) (*domain.UserCredential, error)
}
