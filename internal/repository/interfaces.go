// Package repository defines data access interfaces for Trove.
// These interfaces abstract database operations, allowing for different
// implementations (SQLite, PostgreSQL, mocks for testing) while keeping
// the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/campus-tf/trove/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user. The user's ID is populated on success.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *domain.User) error

	// Delete deletes a user by ID.
	Delete(ctx context.Context, id int64) error

	// List returns users with pagination, ordered by creation time.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)

	// ExistsByUsername checks if a user with the given username exists.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Item Repository
// =============================================================================

// ItemRepository defines the interface for found item data access.
type ItemRepository interface {
	// Create creates a new item. The item's ID is populated on success.
	Create(ctx context.Context, item *domain.Item) error

	// GetByID retrieves an item by ID.
	GetByID(ctx context.Context, id int64) (*domain.Item, error)

	// List returns items with pagination, newest first.
	List(ctx context.Context, opts ItemListOptions) (*ListResult[domain.Item], error)

	// ClaimIfOpen atomically claims an item for claimantID at the given time.
	// The claim succeeds only if the item is currently unclaimed and was not
	// reported by claimantID. Returns true if the row was updated, false if
	// the item did not exist, was already claimed, or belongs to the claimant.
	// Callers re-read the item to distinguish those cases.
	ClaimIfOpen(ctx context.Context, itemID, claimantID int64, at time.Time) (bool, error)

	// Delete deletes an item by ID.
	Delete(ctx context.Context, id int64) error

	// ListImageRefs returns the image references of all stored items.
	// Used by the image sweeper to detect orphaned files.
	ListImageRefs(ctx context.Context) ([]string, error)
}

// ItemListOptions contains filters for listing items.
type ItemListOptions struct {
	ListOptions

	// State filters by lifecycle state. Empty means all states.
	State domain.ItemState

	// FoundByID filters by the reporting user. Zero means all users.
	FoundByID int64

	// ClaimedByID filters by the claiming user. Zero means all users.
	ClaimedByID int64
}

// =============================================================================
// Pagination
// =============================================================================

// ListOptions contains common pagination options.
type ListOptions struct {
	// Limit is the maximum number of records to return. Zero means no limit.
	Limit int

	// Offset is the number of records to skip.
	Offset int
}

// ListResult holds a page of records and the total count.
type ListResult[T any] struct {
	Items []*T

	// Total is the number of records matching the query, ignoring pagination.
	Total int64

	// Offset and Limit echo the options that produced this page.
	Offset int
	Limit  int
}
