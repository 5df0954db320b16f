package metrics

import (
	"time"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.SyncMetrics = Recorder{}

// Recorder feeds engine observations into the package metrics.
type Recorder struct{}

// ObserveCycle records a finished cycle.
func (Recorder) ObserveCycle(outcome domain.SyncOutcome, err error) {
	if err != nil || !outcome.Success {
		CyclesTotal.WithLabelValues("failed").Inc()
		return
	}
	CyclesTotal.WithLabelValues("success").Inc()
	if !outcome.Finished.IsZero() && !outcome.Started.IsZero() {
		CycleDuration.Observe(outcome.Finished.Sub(outcome.Started).Seconds())
	}
	UsersTotal.WithLabelValues("processed").Add(float64(outcome.UsersProcessed))
	UsersTotal.WithLabelValues("skipped").Add(float64(outcome.UsersSkipped))
	UsersTotal.WithLabelValues("failed").Add(float64(outcome.UsersFailed))
	LastCycleSuccess.SetToCurrentTime()
}

// ObserveImport records a finished import.
func (Recorder) ObserveImport(outcome domain.ImportOutcome, err error) {
	ImportsTotal.WithLabelValues(resultLabel(err)).Inc()
	ImportDaysTotal.WithLabelValues("requested").Add(float64(outcome.DaysRequested))
	ImportDaysTotal.WithLabelValues("processed").Add(float64(outcome.DaysProcessed))
}

// ObserveRefresh records one refresh attempt.
func (Recorder) ObserveRefresh(provider domain.Provider, err error) {
	TokenRefreshTotal.WithLabelValues(provider.String(), resultLabel(err)).Inc()
}

// ObservePublish records one publish call.
func (Recorder) ObservePublish(d time.Duration, err error) {
	PublishDuration.WithLabelValues(resultLabel(err)).Observe(d.Seconds())
}

// ObserveFetch records one source fetch.
func (Recorder) ObserveFetch(found bool, err error) {
	switch {
	case err != nil:
		FetchTotal.WithLabelValues("error").Inc()
	case found:
		FetchTotal.WithLabelValues("found").Inc()
	default:
		FetchTotal.WithLabelValues("empty").Inc()
	}
}

// CycleSkipped records a trigger rejected because a run was active.
func (Recorder) CycleSkipped() {
	CyclesTotal.WithLabelValues("skipped").Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
