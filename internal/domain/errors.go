// Package domain contains the core business entities for Trove.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// User Errors
	// ===========================================

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates a user with the same username/email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrUserInactive indicates the user account is disabled.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ===========================================
	// Item Errors
	// ===========================================

	// ErrItemNotFound indicates the requested item does not exist.
	ErrItemNotFound = errors.New("item not found")

	// ErrItemAlreadyClaimed indicates the item has already been claimed.
	ErrItemAlreadyClaimed = errors.New("item has already been claimed")

	// ErrSelfClaim indicates a finder tried to claim their own item.
	ErrSelfClaim = errors.New("cannot claim an item you found")

	// ErrItemNotClaimed indicates the item is still open and cannot be removed.
	ErrItemNotClaimed = errors.New("item must be claimed before it can be removed")

	// ErrNotFinder indicates the requester is not the finder of the item.
	ErrNotFinder = errors.New("not authorized to remove this item")

	// ===========================================
	// Image Errors
	// ===========================================

	// ErrImageNotFound indicates the stored image does not exist.
	ErrImageNotFound = errors.New("image not found")

	// ErrImageTypeNotAllowed indicates the upload is not a supported image type.
	ErrImageTypeNotAllowed = errors.New("only jpeg, png and gif images are allowed")

	// ErrImageTooLarge indicates the upload exceeds the size limit.
	ErrImageTooLarge = errors.New("image exceeds maximum size")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., item ID, username).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}
