// Package sqlite provides the SQLite implementation of the credential and
// scheduler stores.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Both stores share one database
// connection:
//
//   - CredentialStore: per-user OAuth tokens for the source and sink providers
//   - SchedulerStore: scheduled task state and run history
//
// # Schema
//
// Migrations in migrations/ are applied in order on open and each applied
// version is recorded, so reopening an existing file is a no-op.
//
// Token expiries and task times are stored as unix milliseconds, run
// history times as unix nanoseconds. NULL means no time.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
