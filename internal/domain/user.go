// Package domain contains the core business entities for Trove.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the lost-and-found system.
package domain

import (
	"strings"
	"time"
)

// User represents a registered user in the system.
// Users report found items and claim items reported by others.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	ID int64 `json:"id"`

	// Username is the unique username for login and display.
	// Constraints: 3-255 characters.
	Username string `json:"username"`

	// Email is the unique email address for the user.
	// Stored and compared in lowercase.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in API responses.
	PasswordHash string `json:"-"`

	// IsActive indicates whether the user account is active.
	// Inactive users cannot authenticate or perform any operations.
	IsActive bool `json:"is_active"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Username:     strings.TrimSpace(username),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return u.IsActive
}

// Summary returns the public view of the user embedded in item responses.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
	}
}

// UserSummary is the subset of user fields exposed alongside items.
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
