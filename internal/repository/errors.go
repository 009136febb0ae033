package repository

import "errors"

// Common repository errors that can be checked with errors.Is()
var (
	// ErrNotFound is returned when a lease is not found
	ErrNotFound = errors.New("lease not found")

	// ErrInvalidEntity is returned when a lease or argument fails validation
	ErrInvalidEntity = errors.New("invalid lease")
)
