package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sleepsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sleepsync/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sleepsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sleepsync/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/sleepsync/internal/config"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
)

// MemoryURL selects the in-memory credential store.
const MemoryURL = "memory"

// StoreKind names the credential store backend.
type StoreKind string

const (
	StoreMemory   StoreKind = "memory"
	StorePostgres StoreKind = "postgres"
	StoreSQLite   StoreKind = "sqlite"
)

// KindForURL picks the credential store backend for a database URL.
func KindForURL(url string) StoreKind {
	url = strings.TrimSpace(url)
	switch {
	case strings.EqualFold(url, MemoryURL):
		return StoreMemory
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return StorePostgres
	default:
		return StoreSQLite
	}
}

type stores struct {
	kind        StoreKind
	credentials driven.CredentialStore
	scheduler   driven.SchedulerStore
	checks      map[string]httpapi.Check
	closers     []func() error
}

// openStores opens the credential store named by cfg.URL and the
// scheduler store. When credentials already live in SQLite the scheduler
// shares that database; a SchedulerPath of "memory" keeps scheduler state
// in process.
func openStores(ctx context.Context, cfg config.DatabaseConfig) (*stores, error) {
	s := &stores{kind: KindForURL(cfg.URL), checks: map[string]httpapi.Check{}}
	url := strings.TrimSpace(cfg.URL)

	switch s.kind {
	case StoreMemory:
		mem := memory.NewCredentialStore()
		s.credentials = mem
		s.closers = append(s.closers, mem.Close)
	case StorePostgres:
		pg, err := postgres.NewStore(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("opening postgres credential store: %w", err)
		}
		s.credentials = pg
		s.checks["credentials"] = pg.Ping
		s.closers = append(s.closers, pg.Close)
	case StoreSQLite:
		lite, err := sqlite.NewStore(url)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		s.credentials = lite.CredentialStore()
		s.scheduler = lite.SchedulerStore()
		s.checks["credentials"] = lite.Ping
		s.closers = append(s.closers, lite.Close)
	}

	if s.scheduler == nil && KindForURL(cfg.SchedulerPath) == StoreMemory {
		s.scheduler = memory.NewSchedulerStore()
	}
	if s.scheduler == nil {
		lite, err := sqlite.NewStore(cfg.SchedulerPath)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("opening scheduler store: %w", err)
		}
		s.scheduler = lite.SchedulerStore()
		s.checks["scheduler"] = lite.Ping
		s.closers = append(s.closers, lite.Close)
	}

	return s, nil
}

func (s *stores) close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}
