// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - CredentialStore: per-user OAuth credential persistence
//   - TokenRefresher: refresh grant against either provider
//   - SleepSource: per-day sleep log retrieval
//   - SinkClient: payload delivery to the sink provider
//   - Pacer: spacing between consecutive source requests
//   - SchedulerStore: task state and run history
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - JobQueue: durable job transport. Without it, cycles run inline.
//   - Authorizer: authorization_code grant. Without it, connect is disabled.
//   - SyncMetrics: activity counters. NopMetrics is used when absent.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
