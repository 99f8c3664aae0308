package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lock key only if it still holds the caller's token, so a lock that
// expired and was taken over by another request is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker serializes requests across all service instances sharing a Redis server. Each key
// is a Redis string set with NX and a TTL, so locks of crashed instances expire.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

// RedisOption configures a RedisLocker.
type RedisOption func(*RedisLocker)

// WithTTL sets how long a lock is held at most.
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.ttl = ttl
	}
}

// WithWait sets how long Lock waits for a busy key before giving up.
func WithWait(wait time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.wait = wait
	}
}

// WithRetry sets the interval between attempts to acquire a busy key.
func WithRetry(retry time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.retry = retry
	}
}

// NewRedisLocker constructs a Redis-backed locker. The client's lifecycle is managed by the caller.
func NewRedisLocker(client *redis.Client, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		ttl:    10 * time.Second,
		wait:   5 * time.Second,
		retry:  20 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr string, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	keys = normalize(keys)
	token := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	acquired := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := l.acquire(ctx, key, token); err != nil {
			l.release(acquired, token)
			return nil, err
		}
		acquired = append(acquired, key)
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.release(acquired, token) })
	}, nil
}

// acquire polls until the key is set to token or the context is done.
func (l *RedisLocker) acquire(ctx context.Context, key string, token string) error {
	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
		}
	}
}

// release deletes the keys still owned by token. Errors are ignored since the keys expire anyway.
func (l *RedisLocker) release(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		releaseScript.Run(ctx, l.client, []string{keys[i]}, token)
	}
}

var (
	_ Locker = (*LocalLocker)(nil)
	_ Locker = (*RedisLocker)(nil)
)
