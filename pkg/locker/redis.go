package locker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocker implements DistributedLocker with Redsync's Redlock implementation.
// It is the alternative to LeaseLocker for deployments where Redis is the only
// store and native key expiry is acceptable.
type RedisLocker struct {
	rs      *redsync.Redsync
	logger  *zap.Logger
	prefix  string
	mutexes map[string]*redsync.Mutex
	mu      sync.Mutex
}

// NewRedisLocker returns a RedisLocker whose keys live under prefix.
// An empty prefix stores keys as given.
func NewRedisLocker(client *redis.Client, logger *zap.Logger, prefix string) *RedisLocker {
	return &RedisLocker{
		rs:      redsync.New(goredis.NewPool(client)),
		logger:  logger,
		prefix:  prefix,
		mutexes: make(map[string]*redsync.Mutex),
	}
}

// Acquire makes a single Redlock attempt with expiry ttl.
// Contention is reported as false, not as an error.
func (r *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	mutex := r.rs.NewMutex(
		r.name(key),
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if isTaken(err) {
			r.logger.Debug("lock already held by another instance",
				zap.String("key", key),
			)
			return false, nil
		}
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	r.mu.Lock()
	r.mutexes[key] = mutex
	r.mu.Unlock()

	r.logger.Debug("lock acquired",
		zap.String("key", key),
		zap.Duration("ttl", ttl),
	)
	return true, nil
}

// Release unlocks key if this instance holds it. Redsync checks the token, so a
// lock that expired and was taken by someone else is left alone.
func (r *RedisLocker) Release(ctx context.Context, key string) error {
	r.mu.Lock()
	mutex, exists := r.mutexes[key]
	delete(r.mutexes, key)
	r.mu.Unlock()

	if !exists {
		r.logger.Debug("no mutex found for key, lock not owned by this instance",
			zap.String("key", key),
		)
		return nil
	}

	ok, err := mutex.UnlockContext(ctx)
	if err != nil {
		if isTaken(err) {
			r.logger.Debug("lock expired before release", zap.String("key", key))
			return nil
		}
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	if !ok {
		r.logger.Debug("lock not owned by this instance or already expired",
			zap.String("key", key),
		)
		return nil
	}

	r.logger.Debug("lock released", zap.String("key", key))
	return nil
}

func (r *RedisLocker) name(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// isTaken matches the different shapes redsync uses for contention.
func isTaken(err error) bool {
	return errors.Is(err, redsync.ErrFailed) || strings.Contains(err.Error(), "lock already taken")
}
