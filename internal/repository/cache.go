// Package repository defines data access interfaces for Trove.
package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/domain"
)

// =============================================================================
// Cache Interface
// =============================================================================

// Cache defines the interface for caching operations.
// Implemented by an in-process cache and by Redis for multi-instance setups.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX sets a value only if the key doesn't exist.
	// Returns true if the value was set, false if the key already exists.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)
}

// CacheError represents a cache error type.
type CacheError string

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"

	// ErrCacheUnavailable indicates the cache is unavailable.
	ErrCacheUnavailable CacheError = "cache unavailable"
)

func (e CacheError) Error() string {
	return string(e)
}

// =============================================================================
// Common Cache Keys
// =============================================================================

// CacheKey generates cache keys for common scenarios.
type CacheKey struct{}

// Item returns a cache key for item metadata.
func (CacheKey) Item(id int64) string {
	return "cache:item:" + strconv.FormatInt(id, 10)
}

// UserByID returns a cache key for user metadata.
func (CacheKey) UserByID(id int64) string {
	return "cache:user:id:" + strconv.FormatInt(id, 10)
}

// UserByUsername returns a cache key for user metadata keyed by username.
func (CacheKey) UserByUsername(username string) string {
	return "cache:user:name:" + username
}

// =============================================================================
// Cached Item Repository
// =============================================================================

// cachedItemRepository wraps an ItemRepository with read-through caching of
// single-item lookups. List queries always hit the database; their results
// change too often to be worth caching.
type cachedItemRepository struct {
	inner  ItemRepository
	cache  Cache
	ttl    time.Duration
	keys   CacheKey
	logger zerolog.Logger
}

var _ ItemRepository = (*cachedItemRepository)(nil)

// NewCachedItemRepository wraps inner with a read-through cache for GetByID.
// Mutating operations invalidate the affected key.
func NewCachedItemRepository(inner ItemRepository, cache Cache, ttl time.Duration, logger zerolog.Logger) ItemRepository {
	return &cachedItemRepository{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "item_cache").Logger(),
	}
}

func (r *cachedItemRepository) Create(ctx context.Context, item *domain.Item) error {
	return r.inner.Create(ctx, item)
}

func (r *cachedItemRepository) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	key := r.keys.Item(id)
	if data, err := r.cache.Get(ctx, key); err == nil {
		var item domain.Item
		if err := json.Unmarshal(data, &item); err == nil {
			return &item, nil
		}
		// Corrupt entry, drop it and fall through to the database.
		_ = r.cache.Delete(ctx, key)
	}

	item, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(item); err == nil {
		if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
			r.logger.Debug().Err(err).Int64("item_id", id).Msg("failed to cache item")
		}
	}
	return item, nil
}

func (r *cachedItemRepository) List(ctx context.Context, opts ItemListOptions) (*ListResult[domain.Item], error) {
	return r.inner.List(ctx, opts)
}

func (r *cachedItemRepository) ClaimIfOpen(ctx context.Context, itemID, claimantID int64, at time.Time) (bool, error) {
	claimed, err := r.inner.ClaimIfOpen(ctx, itemID, claimantID, at)
	if claimed {
		r.invalidate(ctx, itemID)
	}
	return claimed, err
}

func (r *cachedItemRepository) Delete(ctx context.Context, id int64) error {
	err := r.inner.Delete(ctx, id)
	if err == nil {
		r.invalidate(ctx, id)
	}
	return err
}

func (r *cachedItemRepository) ListImageRefs(ctx context.Context) ([]string, error) {
	return r.inner.ListImageRefs(ctx)
}

func (r *cachedItemRepository) invalidate(ctx context.Context, id int64) {
	if err := r.cache.Delete(ctx, r.keys.Item(id)); err != nil {
		r.logger.Debug().Err(err).Int64("item_id", id).Msg("failed to invalidate item cache")
	}
}
