// Package service provides business logic services for Trove.
package service

import "errors"

// Common service errors. Lifecycle and authorization failures use the
// sentinels in the domain package; these cover input validation and
// infrastructure faults.
var (
	// User validation errors
	ErrInvalidUsername = errors.New("invalid username: must be 3-64 characters")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInvalidPassword = errors.New("invalid password: must be at least 8 characters")

	// Item validation errors
	ErrInvalidItemName    = errors.New("invalid item name: must be 1-200 characters")
	ErrInvalidDescription = errors.New("invalid description: must not be empty")
	ErrInvalidLocation    = errors.New("invalid location: must not be empty")
	ErrInvalidContact     = errors.New("invalid contact info: must not be empty")
	ErrMissingImage       = errors.New("no image file uploaded")

	// General errors
	ErrInternalError = errors.New("internal server error")
)
