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

func str(s string) *string {
	return &s
}

// TestKeys verifies the lock keys derived from an observation.
func TestKeys(t *testing.T) {
	assert.Equal(t, []string{"identity:email:doc@x", "identity:phone:123"}, Keys(str("doc@x"), str("123")))
	assert.Equal(t, []string{"identity:phone:123"}, Keys(nil, str("123")))
	assert.Empty(t, Keys(nil, nil))
}

// TestNormalize expects sorted keys without duplicates.
func TestNormalize(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, normalize([]string{"c", "a", "b", "a"}))
}

// testMutualExclusion runs several goroutines holding the same keys and expects them never to
// overlap.
func testMutualExclusion(t *testing.T, locker Locker) {
	var wg sync.WaitGroup
	var active, overlaps, completed atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "identity:email:doc@x", "identity:phone:123")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()
			if active.Add(1) != 1 {
				overlaps.Add(1)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			completed.Add(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(20), completed.Load())
	assert.Equal(t, int32(0), overlaps.Load())
}

// TestLocalLockerMutualExclusion checks that the local locker serializes holders of the same key.
func TestLocalLockerMutualExclusion(t *testing.T) {
	testMutualExclusion(t, NewLocalLocker())
}

// TestLocalLockerContextDone expects a waiting Lock call to give up when its context ends, and the
// locker to be clean once everything is released.
func TestLocalLockerContextDone(t *testing.T) {
	locker := NewLocalLocker()
	unlock, err := locker.Lock(context.Background(), "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "a", "b")
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// "a" must have been released again after the failed attempt.
	unlockA, err := locker.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlockA()
	unlock()
	unlock()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	assert.Empty(t, locker.entries)
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// TestRedisLockerMutualExclusion checks that the Redis locker serializes holders of the same key.
func TestRedisLockerMutualExclusion(t *testing.T) {
	_, client := setupTestRedis(t)
	testMutualExclusion(t, NewRedisLocker(client, WithRetry(time.Millisecond)))
}

// TestRedisLockerLifecycle verifies that keys exist with a TTL while locked and are deleted when
// released.
func TestRedisLockerLifecycle(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, WithTTL(time.Minute))

	unlock, err := locker.Lock(context.Background(), "identity:phone:123", "identity:email:doc@x")
	require.NoError(t, err)
	assert.True(t, mr.Exists("identity:phone:123"))
	assert.True(t, mr.Exists("identity:email:doc@x"))
	assert.Equal(t, time.Minute, mr.TTL("identity:phone:123"))

	unlock()
	assert.False(t, mr.Exists("identity:phone:123"))
	assert.False(t, mr.Exists("identity:email:doc@x"))
}

// TestRedisLockerTimeout expects Lock to give up after the configured wait and to release the keys
// it already acquired.
func TestRedisLockerTimeout(t *testing.T) {
	mr, client := setupTestRedis(t)
	require.NoError(t, mr.Set("identity:phone:123", "someone-else"))
	locker := NewRedisLocker(client, WithWait(30*time.Millisecond), WithRetry(5*time.Millisecond))

	_, err := locker.Lock(context.Background(), "identity:email:doc@x", "identity:phone:123")
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.False(t, mr.Exists("identity:email:doc@x"))
	value, err := mr.Get("identity:phone:123")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

// TestRedisLockerKeepsForeignLock expects a release to leave a key alone that expired and was
// taken over by another holder.
func TestRedisLockerKeepsForeignLock(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, WithTTL(time.Second))

	unlock, err := locker.Lock(context.Background(), "identity:email:doc@x")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("identity:email:doc@x", "someone-else"))

	unlock()
	value, err := mr.Get("identity:email:doc@x")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}
