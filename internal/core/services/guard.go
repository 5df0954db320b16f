package services

import (
	"context"
	"sync/atomic"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driving"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

var _ driving.SyncOrchestrator = (*CycleGuard)(nil)

// CycleGuard rejects a cycle or import while another one is running.
// Overlapping triggers are skipped, never queued.
type CycleGuard struct {
	next    driving.SyncOrchestrator
	metrics driven.SyncMetrics
	running atomic.Bool
}

// NewCycleGuard wraps next. metrics may be nil.
func NewCycleGuard(next driving.SyncOrchestrator, metrics driven.SyncMetrics) *CycleGuard {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &CycleGuard{next: next, metrics: metrics}
}

// Running reports whether a run is in progress.
func (g *CycleGuard) Running() bool {
	return g.running.Load()
}

// RunCycle runs next.RunCycle unless a run is in progress.
func (g *CycleGuard) RunCycle(ctx context.Context, targetUserID string) (domain.SyncOutcome, error) {
	if !g.running.CompareAndSwap(false, true) {
		g.skipped("cycle")
		return domain.SyncOutcome{}, domain.ErrCycleInProgress
	}
	defer g.running.Store(false)
	return g.next.RunCycle(ctx, targetUserID)
}

// ImportHistory runs next.ImportHistory unless a run is in progress.
func (g *CycleGuard) ImportHistory(ctx context.Context, userID string, months int) (domain.ImportOutcome, error) {
	if !g.running.CompareAndSwap(false, true) {
		g.skipped("import")
		return domain.ImportOutcome{UserID: userID}, domain.ErrCycleInProgress
	}
	defer g.running.Store(false)
	return g.next.ImportHistory(ctx, userID, months)
}

func (g *CycleGuard) skipped(kind string) {
	g.metrics.CycleSkipped()
	logger.Warn("%s skipped: previous run still active", kind)
}
