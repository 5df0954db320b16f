// Package fitbit reads daily sleep logs from the Fitbit Web API.
//
// The client fetches one calendar day per call and reduces the day's
// sessions to the main sleep. Non-2xx responses are logged and treated
// as no data so a single bad day does not abort a multi-day import.
// Requests are paced by a RateLimiter that also honours Retry-After
// after a 429.
package fitbit
