// Package tasklock serializes mutating operations on a single sync task.
package tasklock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stacklok/dbsync-orchestrator/internal/config"
)

// ErrNotHeld is returned when a release finds the lock already expired or taken over
var ErrNotHeld = errors.New("task lock not held")

// ReleaseFunc releases a held lock. It is safe to call more than once.
type ReleaseFunc func()

// Locker hands out exclusive per-key locks
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done.
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
	// Close releases resources held by the locker
	Close() error
}

// NewFromConfig builds the locker selected by the configuration
func NewFromConfig(cfg *config.Config) (Locker, error) {
	switch cfg.GetLockType() {
	case config.LockTypeLocal:
		return NewLocal(), nil
	case config.LockTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Lock.RedisAddress,
			DB:   cfg.Lock.RedisDB,
		})
		return NewRedis(client, WithTTL(cfg.GetLockTTL())), nil
	default:
		return nil, fmt.Errorf("unsupported lock type: %s", cfg.GetLockType())
	}
}

// Key returns the lock key used for a task
func Key(taskID fmt.Stringer) string {
	return "dbsync:task:" + taskID.String()
}

const (
	// DefaultTTL bounds how long a distributed lock survives a crashed holder
	DefaultTTL = 2 * time.Minute
	// DefaultRetryInterval is how often a blocked Acquire polls Redis
	DefaultRetryInterval = 50 * time.Millisecond
)
