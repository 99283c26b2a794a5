package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-tf/trove/internal/domain"
	"github.com/campus-tf/trove/internal/repository"
)

// newTestDB opens an in-memory database with the schema applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()
	db, err := NewDB(ctx, DefaultConfig(":memory:"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *domain.User {
	t.Helper()

	user := domain.NewUser(username, username+"@campus.edu", "not-a-real-hash")
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user
}

func createTestItem(t *testing.T, db *DB, foundByID int64, name string) *domain.Item {
	t.Helper()

	item := domain.NewItem(foundByID, name, "", "main hall", "reach me at the front desk", "")
	require.NoError(t, NewItemRepository(db).Create(context.Background(), item))
	return item
}

func TestItemRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	finder := createTestUser(t, db, "finder")

	item := createTestItem(t, db, finder.ID, "black umbrella")
	require.NotZero(t, item.ID)

	got, err := NewItemRepository(db).GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "black umbrella", got.Name)
	assert.Equal(t, finder.ID, got.FoundByID)
	assert.False(t, got.IsClaimed)
	assert.Nil(t, got.ClaimedByID)
	assert.Nil(t, got.ClaimedAt)
}

func TestItemRepository_GetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := NewItemRepository(db).GetByID(context.Background(), 12345)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestItemRepository_ClaimIfOpen(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewItemRepository(db)

	finder := createTestUser(t, db, "finder")
	claimant := createTestUser(t, db, "claimant")
	rival := createTestUser(t, db, "rival")
	item := createTestItem(t, db, finder.ID, "silver watch")

	now := time.Now().UTC().Truncate(time.Second)

	t.Run("finder cannot claim own item", func(t *testing.T) {
		ok, err := repo.ClaimIfOpen(ctx, item.ID, finder.ID, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("first claim succeeds", func(t *testing.T) {
		ok, err := repo.ClaimIfOpen(ctx, item.ID, claimant.ID, now)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetByID(ctx, item.ID)
		require.NoError(t, err)
		assert.True(t, got.IsClaimed)
		require.NotNil(t, got.ClaimedByID)
		assert.Equal(t, claimant.ID, *got.ClaimedByID)
		require.NotNil(t, got.ClaimedAt)
		assert.True(t, got.ClaimedAt.Equal(now))
	})

	t.Run("second claim loses", func(t *testing.T) {
		ok, err := repo.ClaimIfOpen(ctx, item.ID, rival.ID, time.Now().UTC())
		require.NoError(t, err)
		assert.False(t, ok)

		// Winner is unchanged.
		got, err := repo.GetByID(ctx, item.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ClaimedByID)
		assert.Equal(t, claimant.ID, *got.ClaimedByID)
	})

	t.Run("missing item", func(t *testing.T) {
		ok, err := repo.ClaimIfOpen(ctx, 99999, claimant.ID, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestItemRepository_List(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewItemRepository(db)

	finder := createTestUser(t, db, "finder")
	claimant := createTestUser(t, db, "claimant")

	first := createTestItem(t, db, finder.ID, "first")
	createTestItem(t, db, finder.ID, "second")
	third := createTestItem(t, db, finder.ID, "third")

	ok, err := repo.ClaimIfOpen(ctx, first.ID, claimant.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("all items newest first", func(t *testing.T) {
		result, err := repo.List(ctx, repository.ItemListOptions{})
		require.NoError(t, err)
		assert.EqualValues(t, 3, result.Total)
		require.Len(t, result.Items, 3)
		// Same created_at second is possible, so the id tiebreaker decides.
		assert.Equal(t, third.ID, result.Items[0].ID)
		assert.Equal(t, first.ID, result.Items[2].ID)
	})

	t.Run("open only", func(t *testing.T) {
		result, err := repo.List(ctx, repository.ItemListOptions{State: domain.ItemStateOpen})
		require.NoError(t, err)
		assert.EqualValues(t, 2, result.Total)
		for _, it := range result.Items {
			assert.False(t, it.IsClaimed)
		}
	})

	t.Run("claimed by user", func(t *testing.T) {
		result, err := repo.List(ctx, repository.ItemListOptions{ClaimedByID: claimant.ID})
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, first.ID, result.Items[0].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		result, err := repo.List(ctx, repository.ItemListOptions{
			ListOptions: repository.ListOptions{Limit: 2, Offset: 2},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 3, result.Total)
		require.Len(t, result.Items, 1)
		assert.Equal(t, first.ID, result.Items[0].ID)
	})
}

func TestItemRepository_Delete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewItemRepository(db)

	finder := createTestUser(t, db, "finder")
	item := createTestItem(t, db, finder.ID, "red scarf")

	require.NoError(t, repo.Delete(ctx, item.ID))

	_, err := repo.GetByID(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, item.ID), domain.ErrItemNotFound)
}

func TestItemRepository_ListImageRefs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewItemRepository(db)

	finder := createTestUser(t, db, "finder")

	withImage := domain.NewItem(finder.ID, "camera", "", "gym", "front desk", "abc123.jpg")
	require.NoError(t, repo.Create(ctx, withImage))

	createTestItem(t, db, finder.ID, "no image")

	refs, err := repo.ListImageRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc123.jpg"}, refs)
}

func TestUserRepository_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	createTestUser(t, db, "taken")

	dup := domain.NewUser("taken", "other@campus.edu", "hash")
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrUserAlreadyExists)
}
