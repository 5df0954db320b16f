package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// CredentialStore persists per-user OAuth credentials for both providers.
type CredentialStore interface {
	// Find retrieves a user's credential.
	// Returns domain.ErrNotFound if the user has no row.
	Find(ctx context.Context, userID string) (*domain.UserCredential, error)

	// FindEligible returns every credential eligible for a sync-all cycle
	// at now, ordered by user id.
	FindEligible(ctx context.Context, now time.Time) ([]domain.UserCredential, error)

	// Upsert writes the non-nil fields of update, creating the row if needed.
	Upsert(ctx context.Context, userID string, update domain.CredentialUpdate) error

	// Close releases resources.
	Close() error
}
