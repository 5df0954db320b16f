package driven

import (
	"time"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// SyncMetrics records engine activity. Implementations must be safe for
// concurrent use.
type SyncMetrics interface {
	ObserveCycle(outcome domain.SyncOutcome, err error)
	ObserveImport(outcome domain.ImportOutcome, err error)
	ObserveRefresh(provider domain.Provider, err error)
	ObservePublish(d time.Duration, err error)
	ObserveFetch(found bool, err error)
	CycleSkipped()
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveCycle(domain.SyncOutcome, error)    {}
func (NopMetrics) ObserveImport(domain.ImportOutcome, error) {}
func (NopMetrics) ObserveRefresh(domain.Provider, error)     {}
func (NopMetrics) ObservePublish(time.Duration, error)       {}
func (NopMetrics) ObserveFetch(bool, error)                  {}
func (NopMetrics) CycleSkipped()                             {}

var _ SyncMetrics = NopMetrics{}
