package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T, ttl time.Duration) (SessionLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl), mr
}

func TestAcquireAndRelease(t *testing.T) {
	locker, mr := newLocker(t, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "s1", time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists(lockKey("s1")))

	release()
	assert.False(t, mr.Exists(lockKey("s1")))
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	locker, _ := newLocker(t, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "s1", time.Second)
	require.NoError(t, err)
	defer release()

	_, err = locker.Acquire(ctx, "s1", 200*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestDifferentSessionsDoNotContend(t *testing.T) {
	locker, _ := newLocker(t, time.Minute)
	ctx := context.Background()

	r1, err := locker.Acquire(ctx, "s1", time.Second)
	require.NoError(t, err)
	defer r1()
	r2, err := locker.Acquire(ctx, "s2", 100*time.Millisecond)
	require.NoError(t, err)
	r2()
}

func TestStaleReleaseKeepsNewHolder(t *testing.T) {
	locker, mr := newLocker(t, time.Second)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "s1", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := locker.Acquire(ctx, "s1", time.Second)
	require.NoError(t, err)
	holder, err := mr.Get(lockKey("s1"))
	require.NoError(t, err)

	stale()
	current, err := mr.Get(lockKey("s1"))
	require.NoError(t, err)
	assert.Equal(t, holder, current)
	fresh()
}

func TestMutualExclusion(t *testing.T) {
	locker, _ := newLocker(t, time.Minute)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "shared", 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}
