// Package connectors holds the provider clients the sync engine talks to.
//
// Each sub-package wraps one third-party API:
//
//   - fitbit: the sleep source (per-day sleep logs, request pacing)
//   - wakatime: the sink (external duration publishing)
//
// This package carries what the clients share: circuit breakers and the
// OAuth endpoint and scopes each provider exports for the token grants.
package connectors
