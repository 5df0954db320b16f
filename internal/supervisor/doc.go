// Package supervisor runs the daemon's long-lived services under a suture
// supervision tree.
//
// The tree has two layers so that a crash in one does not take down the
// other:
//   - engine: the cron scheduler and the queue worker
//   - api: the health and metrics HTTP server
//
// Services that return an error are restarted with backoff. Cancelling
// the context passed to Serve stops every service.
package supervisor
