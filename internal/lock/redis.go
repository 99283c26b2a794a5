package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock key only if it still holds our token.
// Prevents releasing a lock that expired and was re-acquired elsewhere.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the TTL of a lock key only if it still holds our token.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements Locker using Redis SET NX with per-lock ownership
// tokens. Safe to use across multiple server instances.
type RedisLocker struct {
	client *goredis.Client

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisLocker creates a new Redis-backed locker.
func NewRedisLocker(client *goredis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		tokens: make(map[string]string),
	}
}

// Acquire attempts to acquire a lock.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, err
	}
	if acquired {
		l.mu.Lock()
		l.tokens[key] = token
		l.mu.Unlock()
	}
	return acquired, nil
}

// AcquireWithRetry attempts to acquire a lock with retries.
func (l *RedisLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for i := 0; i <= maxRetries; i++ {
		acquired, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}

		if i < maxRetries {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	return false, nil
}

// Release releases a lock if we still own it.
func (l *RedisLocker) Release(ctx context.Context, key string) (bool, error) {
	token, ok := l.takeToken(key)
	if !ok {
		return false, nil
	}

	res, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return false, err
	}
	return res == 1, nil
}

// Extend extends the TTL of a held lock.
func (l *RedisLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	token, ok := l.tokens[key]
	l.mu.Unlock()
	if !ok {
		return false, nil
	}

	res, err := extendScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return false, err
	}
	if res != 1 {
		l.takeToken(key)
		return false, nil
	}
	return true, nil
}

// IsHeld checks whether the lock key exists in Redis.
func (l *RedisLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// takeToken removes and returns the locally tracked ownership token.
func (l *RedisLocker) takeToken(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	token, ok := l.tokens[key]
	if ok {
		delete(l.tokens, key)
	}
	return token, ok
}

// Ensure RedisLocker implements Locker.
var _ Locker = (*RedisLocker)(nil)
