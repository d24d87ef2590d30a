package locks

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_AcquireRelease(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	l := NewRedisLocker(client, "test:lock:")
	ctx := context.Background()

	release, err := l.Acquire(ctx, "posts/1", 5*time.Second, 0)
	require.NoError(t, err)
	require.True(t, m.Exists("test:lock:posts/1"))

	_, err = l.Acquire(ctx, "posts/1", 5*time.Second, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "posts/2", 5*time.Second, 0)
	require.NoError(t, err)
	other()

	release()
	require.False(t, m.Exists("test:lock:posts/1"))

	again, err := l.Acquire(ctx, "posts/1", 5*time.Second, 0)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldOwner(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	l := NewRedisLocker(client, "")
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "k", time.Second, 0)
	require.NoError(t, err)
	m.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, "k", 10*time.Second, 0)
	require.NoError(t, err)

	stale()
	require.True(t, m.Exists("lock:k"), "stale owner must not delete the new holder's lock")
	fresh()
	require.False(t, m.Exists("lock:k"))
}

func TestMemoryLocker_WaitsForRelease(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k", 0, time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "k", 0, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrLocked)

	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()
	second, err := l.Acquire(ctx, "k", 0, time.Second)
	require.NoError(t, err)
	second()
	release() // idempotent
}
