package services

import "errors"

var (
	// ErrInvalid indicates a request that fails validation before touching
	// any store.
	ErrInvalid = errors.New("invalid request")

	// ErrForbidden indicates the resolution engine denied access. It is
	// surfaced as a single generic outcome: the external contract never
	// leaks which resolution source was checked.
	ErrForbidden = errors.New("forbidden")

	// ErrInconsistent indicates the four infrastructure tables violate
	// their invariants (e.g. a primary record with no registry row). This
	// is a programming error, not a recoverable condition; it is logged
	// and surfaced as an internal error, never silently ignored.
	ErrInconsistent = errors.New("infrastructure inconsistency")
)
