package storage

import "errors"

var (
	// ErrNotFound is returned by single-row reads when no row matches.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a uniqueness
	// invariant, e.g. adding a membership that already exists.
	ErrConflict = errors.New("already exists")

	// ErrUnsupported signals that the backend does not provide a
	// server-side computation. Callers fall back to a client-computed
	// equivalent; this error must never surface to users.
	ErrUnsupported = errors.New("not supported by backend")
)
