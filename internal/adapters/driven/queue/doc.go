// Package queue carries sync jobs over watermill.
//
// Two backends are supported: an in-process go channel, used when the
// worker runs inside the daemon, and NATS JetStream for durable queues
// shared between processes. Jobs are retried with exponential backoff and
// routed to a poison topic once retries are exhausted, where they are
// logged and dropped.
package queue
