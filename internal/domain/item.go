package domain

import (
	"time"
)

// ItemState is the lifecycle state of a found item.
// Removed items are deleted outright, so only the first two states are
// ever persisted.
type ItemState string

const (
	// ItemStateOpen is a reported item nobody has claimed yet.
	ItemStateOpen ItemState = "open"

	// ItemStateClaimed is an item claimed by exactly one user.
	ItemStateClaimed ItemState = "claimed"
)

// Item represents a found item reported by a user.
//
// Lifecycle: Open -> Claimed -> removed. An item is claimed at most once,
// never by its own finder, and can only be deleted by the finder after it
// has been claimed.
type Item struct {
	// ID is the unique identifier for the item (auto-generated).
	ID int64 `json:"id"`

	// Name is the short title of the item (e.g., "Black umbrella").
	Name string `json:"name"`

	// Description is the free-text description of the item.
	Description string `json:"description"`

	// LocationFound is where the item was found (e.g., "Library").
	LocationFound string `json:"location_found"`

	// ContactInfo is how to reach the finder.
	ContactInfo string `json:"contact_info"`

	// ImageRef is the opaque storage reference for the item photo.
	// The public URL is derived from it by the storage backend.
	ImageRef string `json:"image_ref"`

	// FoundByID is the ID of the user who reported the item. Immutable.
	FoundByID int64 `json:"found_by_id"`

	// IsClaimed mirrors ClaimedByID: true iff the item has been claimed.
	IsClaimed bool `json:"is_claimed"`

	// ClaimedByID is the ID of the user who claimed the item, if any.
	// Set at most once and always different from FoundByID.
	ClaimedByID *int64 `json:"claimed_by_id,omitempty"`

	// ClaimedAt is the timestamp of the claim. Set iff ClaimedByID is set.
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	// CreatedAt is the timestamp when the item was reported.
	CreatedAt time.Time `json:"created_at"`
}

// NewItem creates a new open item reported by the given finder.
func NewItem(foundByID int64, name, description, locationFound, contactInfo, imageRef string) *Item {
	return &Item{
		Name:          name,
		Description:   description,
		LocationFound: locationFound,
		ContactInfo:   contactInfo,
		ImageRef:      imageRef,
		FoundByID:     foundByID,
		IsClaimed:     false,
		CreatedAt:     time.Now().UTC(),
	}
}

// State returns the lifecycle state of the item.
func (i *Item) State() ItemState {
	if i.IsClaimed {
		return ItemStateClaimed
	}
	return ItemStateOpen
}

// IsOpen returns true if the item has not been claimed yet.
func (i *Item) IsOpen() bool {
	return !i.IsClaimed
}

// CanBeClaimedBy reports whether the given user may claim the item,
// and the domain error explaining why not.
func (i *Item) CanBeClaimedBy(userID int64) error {
	if i.IsClaimed {
		return ErrItemAlreadyClaimed
	}
	if i.FoundByID == userID {
		return ErrSelfClaim
	}
	return nil
}

// CanBeRemovedBy reports whether the given user may remove the item.
// Removal requires the requester to be the finder and the item to be claimed.
func (i *Item) CanBeRemovedBy(userID int64) error {
	if i.FoundByID != userID {
		return ErrNotFinder
	}
	if !i.IsClaimed {
		return ErrItemNotClaimed
	}
	return nil
}
