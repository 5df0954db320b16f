package domain

import "fmt"

// JobKind names a unit of work carried by the job queue.
type JobKind string

const (
	// JobSyncAllUsers runs one cycle over every eligible user.
	JobSyncAllUsers JobKind = "sync-all-users"
	// JobSyncUser runs one cycle for a single user.
	JobSyncUser JobKind = "sync-user"
	// JobImportHistory imports a user's history.
	JobImportHistory JobKind = "import-history"
)

// Job is a queued request to run the sync engine.
type Job struct {
	ID     string  `json:"id"`
	Kind   JobKind `json:"kind"`
	UserID string  `json:"user_id,omitempty"`
	Months int     `json:"months,omitempty"`
}

// Validate checks that the job carries the fields its kind needs.
func (j Job) Validate() error {
	switch j.Kind {
	case JobSyncAllUsers:
		return nil
	case JobSyncUser, JobImportHistory:
		if j.UserID == "" {
			return fmt.Errorf("%w: %s job requires a user id", ErrInvalidInput, j.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown job kind %q", ErrInvalidInput, j.Kind)
	}
}
