package app

import "errors"

// Application errors. Handlers map these to transport status codes.
var (
	// ErrUnauthorized is returned for any failed wallet authentication.
	// The concrete reason is logged, never returned.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned for unknown users, APIs and batches.
	ErrNotFound = errors.New("not found")

	// ErrNothingToSettle is returned when closing a batch without recorded usage.
	ErrNothingToSettle = errors.New("nothing to settle")

	// ErrAlreadySettled describes an idempotent confirmation. It is reported
	// through settlement.Result.AlreadySettled, not returned.
	ErrAlreadySettled = errors.New("batch already settled")

	// ErrSettlementMismatch is returned when a transaction does not pay the batch.
	// The batch stays closed.
	ErrSettlementMismatch = errors.New("settlement transaction does not match batch")

	// ErrConflict is returned when concurrent updates kept colliding. Callers may retry.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrUnconfirmed is returned when a transaction could not be verified yet. Callers may retry.
	ErrUnconfirmed = errors.New("settlement transaction not confirmed")

	// ErrInvalidInput is returned for malformed arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
)
