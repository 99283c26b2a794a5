// Package memory provides an in-memory cache implementation.
// This is suitable for single-node deployments where Redis is not available.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/campus-tf/trove/internal/repository"
)

// cleanupInterval is how often expired entries are swept out.
const cleanupInterval = 60 * time.Second

// Cache implements repository.Cache using in-memory storage.
// This is NOT suitable for distributed deployments.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stopCh  chan struct{}
	stopped bool
}

var _ repository.Cache = (*Cache)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time
	noExpiry  bool
}

func (e *entry) isExpired() bool {
	if e.noExpiry {
		return false
	}
	return time.Now().After(e.expiresAt)
}

// NewCache creates a new in-memory cache and starts its cleanup goroutine.
func NewCache() *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if e.isExpired() {
			delete(c.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (c *Cache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stopped {
		close(c.stopCh)
		c.stopped = true
	}
}

// Get retrieves a value by key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.isExpired() {
		return nil, repository.ErrCacheMiss
	}

	// Return a copy to prevent mutation.
	result := make([]byte, len(e.value))
	copy(result, e.value)
	return result, nil
}

// Set stores a value with an optional TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = newEntry(value, ttl)
	return nil
}

// SetNX sets a value only if the key doesn't exist.
func (c *Cache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && !e.isExpired() {
		return false, nil
	}

	c.entries[key] = newEntry(value, ttl)
	return true, nil
}

// Delete removes a value by key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Exists checks if a key exists.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return ok && !e.isExpired(), nil
}

func newEntry(value []byte, ttl time.Duration) *entry {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	e := &entry{value: valueCopy}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	} else {
		e.noExpiry = true
	}
	return e
}
