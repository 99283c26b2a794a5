// Package repository defines data access interfaces for Trove.
package repository

import "errors"

// Common repository errors. Driver packages translate their native errors
// into these (or into domain sentinels) so callers never see driver details.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
)
