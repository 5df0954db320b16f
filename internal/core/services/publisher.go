package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
)

// SinkPublisher delivers payloads to the sink, refreshing the sink token
// lazily beforehand.
type SinkPublisher struct {
	refresher driven.TokenRefresher
	client    driven.SinkClient
	metrics   driven.SyncMetrics
	now       func() time.Time
}

// NewSinkPublisher creates a publisher. metrics may be nil.
func NewSinkPublisher(refresher driven.TokenRefresher, client driven.SinkClient, metrics driven.SyncMetrics) *SinkPublisher {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &SinkPublisher{
		refresher: refresher,
		client:    client,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Publish sends payload using cred's sink token. A refreshed sink token
// replaces the tokens on cred, which callers hold for one cycle only.
func (p *SinkPublisher) Publish(ctx context.Context, cred *domain.UserCredential, payload domain.SinkPayload) error {
	if !cred.SinkConnected() {
		return &domain.PublishError{
			UserID:     cred.UserID,
			ExternalID: payload.ExternalID,
			Err:        domain.ErrSinkNotConnected,
		}
	}

	if err := ensureFresh(ctx, p.refresher, p.metrics, domain.ProviderSink, cred, p.now()); err != nil {
		return err
	}

	start := p.now()
	err := p.client.Send(ctx, cred.SinkBaseURL(), cred.SinkAccessToken, payload)
	p.metrics.ObservePublish(p.now().Sub(start), err)

	var pubErr *domain.PublishError
	if errors.As(err, &pubErr) && pubErr.UserID == "" {
		pubErr.UserID = cred.UserID
	}
	return err
}
