package driven

import "context"

// Pacer spaces consecutive requests to a provider.
type Pacer interface {
	// Wait blocks until the next request may be sent or ctx is done.
	Wait(ctx context.Context) error
}
