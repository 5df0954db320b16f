package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCycleInProgress indicates a trigger arrived while a cycle was running.
	ErrCycleInProgress = errors.New("sync cycle in progress")

	// ErrTokenRefreshFailed indicates a token refresh operation failed.
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// ErrNoRefreshToken indicates a refresh was needed but no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token")

	// ErrSinkNotConnected indicates the user has no sink access token.
	ErrSinkNotConnected = errors.New("sink not connected")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrAuthorizationFailed indicates a provider rejected an authorization code.
	ErrAuthorizationFailed = errors.New("authorization failed")

	// ErrStateMismatch indicates an OAuth callback carried an unexpected state.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrQueueDisabled indicates a job was submitted with no queue configured.
	ErrQueueDisabled = errors.New("job queue disabled")

	// ErrQueueInProcess indicates a job was submitted from outside the daemon
	// to a queue that only delivers within one process.
	ErrQueueInProcess = errors.New("job queue is in-process only")
)

// RefreshError reports a failed token exchange for one provider.
type RefreshError struct {
	Provider Provider
	UserID   string
	Err      error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %s token for user %s: %v", e.Provider, e.UserID, e.Err)
}

// Unwrap exposes both ErrTokenRefreshFailed and the underlying cause.
func (e *RefreshError) Unwrap() []error {
	return []error{ErrTokenRefreshFailed, e.Err}
}

// FetchError reports a source day that could not be retrieved at all
// (transport failure, timeout, open circuit, undecodable body).
// Non-2xx responses are not FetchErrors; they are treated as no data.
type FetchError struct {
	Date string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch sleep for %s: %v", e.Date, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PublishError reports a sink rejection or an unreachable sink.
type PublishError struct {
	UserID     string
	ExternalID string
	// Status is the HTTP status, or 0 if no response was received.
	Status int
	Err    error
}

func (e *PublishError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("publish %s for user %s: status %d: %v", e.ExternalID, e.UserID, e.Status, e.Err)
	}
	return fmt.Sprintf("publish %s for user %s: %v", e.ExternalID, e.UserID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// SelectionError reports a failed query for candidate users.
// It is the only error that fails a whole cycle.
type SelectionError struct {
	Err error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("select users: %v", e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }
