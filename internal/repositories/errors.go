package repositories

import "errors"

var (
	// ErrNotFound indicates the referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a duplicate insert outside the idempotent
	// paths, or a lost update detected on write.
	ErrConflict = errors.New("conflict")
)
