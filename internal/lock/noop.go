package lock

import (
	"context"
	"time"
)

// NoopLocker grants every lock unconditionally. It backs one-off tools that
// run alone against the store, such as the admin sweep command, where the
// serialization the redis and memory lockers provide has no one to exclude.
type NoopLocker struct{}

// NewNoopLocker creates a locker that never blocks.
func NewNoopLocker() NoopLocker {
	return NoopLocker{}
}

func (NoopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, ctx.Err()
}

func (NoopLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	return true, ctx.Err()
}

func (NoopLocker) Release(ctx context.Context, key string) (bool, error) {
	return true, ctx.Err()
}

func (NoopLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, ctx.Err()
}

// IsHeld reports false: nothing is ever actually held.
func (NoopLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	return false, ctx.Err()
}

var _ Locker = NoopLocker{}
