package domain

import "errors"

// Domain errors - use with errors.Is()
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique constraint violation
	ErrConflict = errors.New("already exists")

	// ErrValidation indicates invalid input
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates authentication failure
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates authorization failure
	ErrForbidden = errors.New("forbidden")

	// ErrConfiguration indicates a tool or component was registered with
	// unsatisfied dependencies or a colliding name.
	ErrConfiguration = errors.New("configuration error")

	// ErrCheckpointExpired indicates a HITL resume request named a
	// thread_id with no matching (or already-expired) checkpoint.
	ErrCheckpointExpired = errors.New("checkpoint expired")

	// ErrDoubleConfirm indicates a resume request for a turn that has no
	// pending confirmation (already resumed, or never paused).
	ErrDoubleConfirm = errors.New("double confirm")

	// ErrUpstreamTimeout indicates an LLM or external-service call did not
	// complete within its budget.
	ErrUpstreamTimeout = errors.New("upstream timeout")
)
