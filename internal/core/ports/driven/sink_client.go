package driven

import (
	"context"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// SinkClient delivers payloads to the sink provider.
type SinkClient interface {
	// Send posts one payload to baseURL using accessToken.
	// Rejections and transport failures are *domain.PublishError.
	Send(ctx context.Context, baseURL, accessToken string, payload domain.SinkPayload) error
}
