// Package services holds the sync engine: the orchestrator and its token,
// publish and transform steps, the cycle guard, the cron job driver, the
// job handler and the operator-facing credentials service.
//
// Services talk to the outside world only through the driven ports.
package services
