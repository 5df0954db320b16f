// Package domain defines the core business entities for sleepsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - UserCredential: per-user OAuth state for the source and sink providers
//   - SleepRecord: one day's main sleep session from the source provider
//   - SinkPayload: the normalised record published to the sink provider
//   - SyncOutcome / ImportOutcome: results of a sync cycle or historical import
//   - ScheduledTask / TaskResult: persisted job driver state
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
