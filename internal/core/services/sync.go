package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driving"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// SyncOptions tunes a SyncOrchestrator. Zero values select defaults.
type SyncOptions struct {
	// Location is the zone calendar dates are computed in. Defaults to UTC.
	Location *time.Location

	// Concurrency is the number of users processed at once. Values below
	// two process users sequentially.
	Concurrency int

	// Metrics receives activity observations. Optional.
	Metrics driven.SyncMetrics
}

// SyncOrchestrator drives sync cycles and historical imports.
type SyncOrchestrator struct {
	store     driven.CredentialStore
	refresher driven.TokenRefresher
	source    driven.SleepSource
	publisher *SinkPublisher
	pacer     driven.Pacer
	metrics   driven.SyncMetrics

	location    *time.Location
	concurrency int
	now         func() time.Time
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(
	store driven.CredentialStore,
	refresher driven.TokenRefresher,
	source driven.SleepSource,
	sink driven.SinkClient,
	pacer driven.Pacer,
	opts SyncOptions,
) *SyncOrchestrator {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &SyncOrchestrator{
		store:       store,
		refresher:   refresher,
		source:      source,
		publisher:   NewSinkPublisher(refresher, sink, metrics),
		pacer:       pacer,
		metrics:     metrics,
		location:    loc,
		concurrency: opts.Concurrency,
		now:         time.Now,
	}
}

type userResult int

const (
	userProcessed userResult = iota
	userSkipped
	userFailed
)

// RunCycle syncs yesterday's sleep for the selected users.
func (o *SyncOrchestrator) RunCycle(ctx context.Context, targetUserID string) (domain.SyncOutcome, error) {
	started := o.now().In(o.location)
	outcome := domain.SyncOutcome{
		RunID:   uuid.NewString(),
		Started: started,
	}
	log := logger.With("run_id", outcome.RunID)

	users, err := o.selectUsers(ctx, targetUserID, started)
	if err != nil {
		selErr := &domain.SelectionError{Err: err}
		outcome.Finished = o.now()
		log.Err(selErr).Error("sync cycle aborted")
		o.metrics.ObserveCycle(outcome, selErr)
		return outcome, selErr
	}

	outcome.Success = true
	if len(users) == 0 {
		outcome.Finished = o.now()
		log.Info("no eligible users")
		o.metrics.ObserveCycle(outcome, nil)
		return outcome, nil
	}

	date := domain.CycleDate(started)
	log.With("date", date).Info("starting sync cycle for %d users", len(users))

	for _, res := range o.processUsers(ctx, users, date, log) {
		switch res {
		case userProcessed:
			outcome.UsersProcessed++
		case userSkipped:
			outcome.UsersSkipped++
		case userFailed:
			outcome.UsersFailed++
		}
	}
	outcome.Finished = o.now()

	log.Info("sync cycle finished: %d processed, %d skipped, %d failed",
		outcome.UsersProcessed, outcome.UsersSkipped, outcome.UsersFailed)
	o.metrics.ObserveCycle(outcome, nil)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcome, ctxErr
	}
	return outcome, nil
}

// selectUsers resolves the cycle's candidate users. A missing target user
// yields no candidates.
func (o *SyncOrchestrator) selectUsers(ctx context.Context, targetUserID string, now time.Time) ([]domain.UserCredential, error) {
	if targetUserID == "" {
		return o.store.FindEligible(ctx, now)
	}

	cred, err := o.store.Find(ctx, targetUserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []domain.UserCredential{*cred}, nil
}

// processUsers runs syncUser for every candidate, sequentially or through
// a fixed pool of workers. Results are returned in candidate order.
func (o *SyncOrchestrator) processUsers(
	ctx context.Context,
	users []domain.UserCredential,
	date string,
	log logger.Entry,
) []userResult {
	results := make([]userResult, len(users))

	if o.concurrency < 2 {
		for i := range users {
			if ctx.Err() != nil {
				results[i] = userFailed
				continue
			}
			results[i] = o.syncUser(ctx, users[i], date, log)
		}
		return results
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = o.syncUser(ctx, users[i], date, log)
			}
		}()
	}

	for i := range users {
		if ctx.Err() != nil {
			results[i] = userFailed
			continue
		}
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

// syncUser refreshes, fetches, transforms and publishes one user's day.
// cred is a cycle-local copy.
func (o *SyncOrchestrator) syncUser(ctx context.Context, cred domain.UserCredential, date string, log logger.Entry) userResult {
	ulog := log.With("user_id", cred.UserID, "date", date)

	if !cred.HasSourceToken() {
		ulog.Debug("no source token, skipping")
		return userSkipped
	}

	// The pacer also carries any Retry-After backoff from the source.
	if err := o.pacer.Wait(ctx); err != nil {
		ulog.Err(err).Warn("sync abandoned while waiting for the source rate limit")
		return userFailed
	}

	published, err := o.syncDay(ctx, &cred, date)
	if err != nil {
		ulog.Err(err).Warn("sync failed")
		return userFailed
	}
	if !published {
		ulog.Debug("no sleep data")
		return userSkipped
	}

	ulog.Info("sleep synced")
	return userProcessed
}

// syncDay runs the per-day pipeline for one user. It reports whether a
// record was published.
func (o *SyncOrchestrator) syncDay(ctx context.Context, cred *domain.UserCredential, date string) (bool, error) {
	if err := ensureFresh(ctx, o.refresher, o.metrics, domain.ProviderSource, cred, o.now()); err != nil {
		return false, err
	}

	rec, err := o.source.FetchDay(ctx, cred.SourceAccessToken, date)
	o.metrics.ObserveFetch(rec != nil, err)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	payload := Transform(cred.UserID, *rec)
	if err := o.publisher.Publish(ctx, cred, payload); err != nil {
		return false, err
	}
	return true, nil
}

// ImportHistory walks [today - months, today] for one user.
func (o *SyncOrchestrator) ImportHistory(ctx context.Context, userID string, months int) (domain.ImportOutcome, error) {
	if userID == "" {
		return domain.ImportOutcome{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if months <= 0 {
		months = domain.DefaultImportMonths
	}

	outcome := domain.ImportOutcome{
		RunID:  uuid.NewString(),
		UserID: userID,
	}
	log := logger.With("run_id", outcome.RunID, "user_id", userID)

	cred, err := o.store.Find(ctx, userID)
	if err != nil {
		o.metrics.ObserveImport(outcome, err)
		return outcome, fmt.Errorf("find user %s: %w", userID, err)
	}
	if !cred.HasSourceToken() {
		err := fmt.Errorf("%w: user %s has no source token", domain.ErrInvalidInput, userID)
		o.metrics.ObserveImport(outcome, err)
		return outcome, err
	}

	now := o.now()
	if err := ensureFresh(ctx, o.refresher, o.metrics, domain.ProviderSource, cred, now); err != nil {
		o.metrics.ObserveImport(outcome, err)
		return outcome, err
	}
	if cred.SinkConnected() {
		if err := ensureFresh(ctx, o.refresher, o.metrics, domain.ProviderSink, cred, now); err != nil {
			o.metrics.ObserveImport(outcome, err)
			return outcome, err
		}
	}

	dates := domain.ImportDates(now.In(o.location), months)
	outcome.DaysRequested = len(dates)
	outcome.From = dates[0]
	outcome.To = dates[len(dates)-1]
	log.Info("importing %d days from %s to %s", len(dates), outcome.From, outcome.To)

	processed, err := o.importRange(ctx, cred, dates, log)
	outcome.DaysProcessed = processed
	if err != nil {
		o.metrics.ObserveImport(outcome, err)
		return outcome, err
	}

	outcome.Success = true
	log.Info("import finished: %d of %d days synced", outcome.DaysProcessed, outcome.DaysRequested)
	o.metrics.ObserveImport(outcome, nil)
	return outcome, nil
}

// importRange syncs dates in order, waiting on the pacer before every
// day so that consecutive fetches are at least one pace apart. A failed
// day is logged and skipped.
func (o *SyncOrchestrator) importRange(
	ctx context.Context,
	cred *domain.UserCredential,
	dates []string,
	log logger.Entry,
) (int, error) {
	processed := 0
	for _, date := range dates {
		if err := o.pacer.Wait(ctx); err != nil {
			return processed, err
		}

		published, err := o.syncDay(ctx, cred, date)
		dlog := log.With("date", date)
		switch {
		case err != nil:
			dlog.Err(err).Warn("day skipped")
		case published:
			processed++
			dlog.Debug("day synced")
		default:
			dlog.Debug("no sleep data")
		}
	}
	return processed, nil
}
