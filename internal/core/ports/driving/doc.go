// Package driving defines what the CLI, the daemon and the queue worker
// call into: sync cycles and imports, credential management, job
// submission and scheduler history.
package driving
