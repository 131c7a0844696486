package tasklock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stacklok/dbsync-orchestrator/internal/logger"
)

// releaseScript deletes the key only while it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOption configures the Redis locker
type RedisOption func(*redisLocker)

// WithTTL sets the lock expiry
func WithTTL(ttl time.Duration) RedisOption {
	return func(l *redisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets how often a blocked Acquire retries
func WithRetryInterval(d time.Duration) RedisOption {
	return func(l *redisLocker) {
		if d > 0 {
			l.retry = d
		}
	}
}

type redisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
}

// NewRedis returns a locker backed by Redis SET NX with a per-acquisition token.
// The locker owns the client and closes it on Close.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) Locker {
	l := &redisLocker{
		client: client,
		ttl:    DefaultTTL,
		retry:  DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := l.release(key, token); err != nil {
				logger.Warnw("Failed to release task lock", "key", key, "error", err)
			}
		})
	}, nil
}

func (l *redisLocker) release(key, token string) error {
	// The caller's context may already be cancelled; release must still reach Redis.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (l *redisLocker) Close() error {
	return l.client.Close()
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
