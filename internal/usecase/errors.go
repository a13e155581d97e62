package usecase

import "errors"

// Sentinel errors returned by the services. Callers wrap them with
// fmt.Errorf("%w: ...") and the HTTP layer maps each to one status.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidInput covers malformed requests and rule violations such
	// as a score on a finished fixture.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDependencyUnavailable means a store, queue or worker could not be
	// reached or is not configured. The job is safe to retry.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
