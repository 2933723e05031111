package services

import "errors"

// Chat error taxonomy. Coordinator methods fail fast with one of these before
// any write; handlers map them onto HTTP statuses with errors.Is.
var (
	// ErrInvalidIdentity means a malformed user id or unknown participant kind.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrValidationFailed means a required field is missing or out of range
	// (e.g. a message with neither text nor media).
	ErrValidationFailed = errors.New("validation failed")

	// ErrNotFound means the referenced message or chat does not exist
	// (soft-deleted messages count as absent for reactions).
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the requester does not own the message
	// (deletion is sender-only).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPersistenceFailed means a store write failed. All writes are
	// upserts or atomic updates, so the whole operation is safe to retry.
	ErrPersistenceFailed = errors.New("persistence failed")
)
