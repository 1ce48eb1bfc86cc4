package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is any 401-class rejection from the backend. It is the
	// only error that may touch session state: callers run the recovery
	// protocol (clear session, navigate to login) exactly once, no retries.
	ErrUnauthorized = errors.New("api: unauthorized")

	// ErrNotFound maps the backend's 404 responses.
	ErrNotFound = errors.New("api: not found")

	// ErrUnavailable wraps transport-level failures: the request never
	// completed. Surfaced once per screen, never retried.
	ErrUnavailable = errors.New("api: backend unreachable")
)

// ValidationError carries the backend's rejection detail for a form-level
// error (duplicate email, bad reset token, ...). Local to the originating
// screen; never affects session state.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("api: validation failed: %s", e.Detail)
}
