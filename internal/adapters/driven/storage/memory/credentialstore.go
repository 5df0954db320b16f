package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
)

// Ensure CredentialStore implements the interface.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore is an in-memory implementation of driven.CredentialStore
// for tests and dry runs.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]domain.UserCredential
	now   func() time.Time
}

// NewCredentialStore creates a new in-memory credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		creds: make(map[string]domain.UserCredential),
		now:   time.Now,
	}
}

// Find retrieves a user's credential.
func (s *CredentialStore) Find(_ context.Context, userID string) (*domain.UserCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cred, nil
}

// FindEligible returns credentials eligible at now, ordered by user id.
func (s *CredentialStore) FindEligible(_ context.Context, now time.Time) ([]domain.UserCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.UserCredential, 0, len(s.creds))
	for _, cred := range s.creds {
		if cred.IsEligible(now) {
			result = append(result, cred)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

// Upsert writes the non-nil fields of update, creating the row if needed.
func (s *CredentialStore) Upsert(_ context.Context, userID string, update domain.CredentialUpdate) error {
	if userID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cred := s.creds[userID]
	cred.UserID = userID
	cred.Apply(update)
	cred.UpdatedAt = s.now()
	s.creds[userID] = cred
	return nil
}

// Close is a no-op.
func (s *CredentialStore) Close() error {
	return nil
}
