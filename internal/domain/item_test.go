package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewItem(t *testing.T) {
	item := NewItem(7, "Black umbrella", "Left by the east door", "Library", "room 204", "")

	require.Equal(t, int64(7), item.FoundByID)
	require.False(t, item.IsClaimed)
	require.Nil(t, item.ClaimedByID)
	require.Nil(t, item.ClaimedAt)
	require.Equal(t, ItemStateOpen, item.State())
	require.WithinDuration(t, time.Now().UTC(), item.CreatedAt, time.Minute)
}

func TestItem_CanBeClaimedBy(t *testing.T) {
	claimant := int64(2)
	when := time.Now().UTC()

	tests := []struct {
		name    string
		item    Item
		userID  int64
		wantErr error
	}{
		{
			name:   "open item, different user",
			item:   Item{FoundByID: 1},
			userID: 2,
		},
		{
			name:    "finder claims own item",
			item:    Item{FoundByID: 1},
			userID:  1,
			wantErr: ErrSelfClaim,
		},
		{
			name:    "already claimed",
			item:    Item{FoundByID: 1, IsClaimed: true, ClaimedByID: &claimant, ClaimedAt: &when},
			userID:  3,
			wantErr: ErrItemAlreadyClaimed,
		},
		{
			name:    "already claimed, same claimant retries",
			item:    Item{FoundByID: 1, IsClaimed: true, ClaimedByID: &claimant, ClaimedAt: &when},
			userID:  2,
			wantErr: ErrItemAlreadyClaimed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.CanBeClaimedBy(tt.userID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestItem_CanBeRemovedBy(t *testing.T) {
	claimant := int64(2)

	tests := []struct {
		name    string
		item    Item
		userID  int64
		wantErr error
	}{
		{
			name:   "finder removes claimed item",
			item:   Item{FoundByID: 1, IsClaimed: true, ClaimedByID: &claimant},
			userID: 1,
		},
		{
			name:    "non-finder",
			item:    Item{FoundByID: 1, IsClaimed: true, ClaimedByID: &claimant},
			userID:  2,
			wantErr: ErrNotFinder,
		},
		{
			name:    "still open",
			item:    Item{FoundByID: 1},
			userID:  1,
			wantErr: ErrItemNotClaimed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.CanBeRemovedBy(tt.userID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
