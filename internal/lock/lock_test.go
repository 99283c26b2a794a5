package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()
	defer locker.Stop()

	t.Run("acquire is exclusive", func(t *testing.T) {
		ok, err := locker.Acquire(ctx, "k1", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = locker.Acquire(ctx, "k1", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		held, err := locker.IsHeld(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, held)
	})

	t.Run("release frees the key", func(t *testing.T) {
		ok, err := locker.Release(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = locker.Acquire(ctx, "k1", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired lock can be reacquired", func(t *testing.T) {
		ok, err := locker.Acquire(ctx, "k2", -time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = locker.Acquire(ctx, "k2", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("cancelled context propagates", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := locker.Acquire(cancelled, "k3", time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNoopLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewNoopLocker()

	ok, err := locker.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Repeated acquires succeed: nothing is excluded.
	ok, err = locker.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	held, err := locker.IsHeld(ctx, "sweep")
	require.NoError(t, err)
	assert.False(t, held)

	ok, err = locker.Release(ctx, "sweep")
	require.NoError(t, err)
	assert.True(t, ok)
}
