package tasklock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/dbsync-orchestrator/internal/config"
)

func newRedisLocker(t *testing.T, opts ...RedisOption) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedis(client, append([]RedisOption{WithRetryInterval(5 * time.Millisecond)}, opts...)...)
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

// exclusive runs n goroutines that each hold the lock while bumping a counter,
// and returns the highest number of simultaneous holders observed
func exclusive(t *testing.T, l Locker, key string, n int) int32 {
	t.Helper()
	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			release, err := l.Acquire(ctx, key)
			if !assert.NoError(t, err) {
				return
			}
			cur := inside.Add(1)
			for {
				prev := maxSeen.Load()
				if cur <= prev || maxSeen.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	return maxSeen.Load()
}

func TestLocal_MutualExclusion(t *testing.T) {
	t.Parallel()

	l := NewLocal()
	assert.Equal(t, int32(1), exclusive(t, l, "k", 16))
	assert.Zero(t, l.(*localLocker).size(), "entries are dropped after release")
}

func TestLocal_IndependentKeys(t *testing.T) {
	t.Parallel()

	l := NewLocal()
	ctx := context.Background()
	relA, err := l.Acquire(ctx, "a")
	require.NoError(t, err)
	defer relA()

	relB, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	relB()
}

func TestLocal_ContextCancelled(t *testing.T) {
	t.Parallel()

	l := NewLocal()
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release()

	again, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	again()
	assert.Zero(t, l.(*localLocker).size())
}

func TestRedis_MutualExclusion(t *testing.T) {
	t.Parallel()

	l, _ := newRedisLocker(t)
	assert.Equal(t, int32(1), exclusive(t, l, Key(uuid.New()), 8))
}

func TestRedis_ReleaseDeletesKey(t *testing.T) {
	t.Parallel()

	l, mr := newRedisLocker(t, WithTTL(time.Minute))
	key := Key(uuid.New())

	release, err := l.Acquire(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	release()
	assert.False(t, mr.Exists(key))
}

func TestRedis_ReleaseKeepsForeignToken(t *testing.T) {
	t.Parallel()

	l, mr := newRedisLocker(t)
	key := "k"

	release, err := l.Acquire(context.Background(), key)
	require.NoError(t, err)

	// simulate expiry followed by another holder
	mr.Del(key)
	require.NoError(t, mr.Set(key, "someone-else"))

	release()
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedis_BlockedUntilContextDone(t *testing.T) {
	t.Parallel()

	l, _ := newRedisLocker(t)
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedis_Unavailable(t *testing.T) {
	t.Parallel()

	l, mr := newRedisLocker(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := l.Acquire(ctx, "k")
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	l, err := NewFromConfig(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &localLocker{}, l)

	mr := miniredis.RunT(t)
	cfg := &config.Config{Lock: config.LockConfig{Type: config.LockTypeRedis, RedisAddress: mr.Addr(), TTL: "30s"}}
	l, err = NewFromConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	assert.Equal(t, 30*time.Second, l.(*redisLocker).ttl)

	_, err = NewFromConfig(&config.Config{Lock: config.LockConfig{Type: "zookeeper"}})
	assert.Error(t, err)
}
