package driving

import (
	"context"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// JobSubmitter queues sync work for asynchronous execution.
type JobSubmitter interface {
	// Submit validates and enqueues a job, returning its assigned id.
	Submit(ctx context.Context, job domain.Job) (string, error)
}
