package locker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"leasekeeper-service/pkg/kvstore"
	"leasekeeper-service/pkg/leaselock"
)

// LeaseLocker implements DistributedLocker on top of leaselock, so it works with any
// kvstore.Store backend. Each Acquire makes a single fast-path or steal pass.
type LeaseLocker struct {
	factory *leaselock.Factory
	logger  *zap.Logger

	mu    sync.Mutex
	locks map[string]*leaselock.Lock
}

// NewLeaseLocker returns a LeaseLocker over store. opts are applied to every lock it
// creates; retries are always disabled and the lease window always follows ttl.
func NewLeaseLocker(store kvstore.Store, logger *zap.Logger, opts ...leaselock.Option) *LeaseLocker {
	opts = append(opts, leaselock.WithLogger(logger), leaselock.WithoutRetry())
	return &LeaseLocker{
		factory: leaselock.NewFactory(store, opts...),
		logger:  logger,
		locks:   make(map[string]*leaselock.Lock),
	}
}

// Acquire tries to take key for ttl, rounded up to whole seconds. The key becomes
// free again exactly ttl later, matching a TTL-based lock.
//
// A lock this instance still remembers is dropped first, so a cooldown lease left to
// lapse by a previous run does not block its own holder forever.
func (l *LeaseLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	lock := l.factory.New(key, leaselock.WithLeaseSeconds(cooldownSeconds(ttl)))

	ok, err := lock.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	l.mu.Lock()
	if ok {
		l.locks[key] = lock
	} else {
		delete(l.locks, key)
	}
	l.mu.Unlock()

	if !ok {
		l.logger.Debug("lock held elsewhere", zap.String("key", key))
		return false, nil
	}
	l.logger.Debug("lock acquired",
		zap.String("key", key),
		zap.Duration("ttl", ttl),
	)
	return true, nil
}

// Release deletes the lease for key if this instance still owns it.
func (l *LeaseLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	lock, exists := l.locks[key]
	delete(l.locks, key)
	l.mu.Unlock()

	if !exists {
		l.logger.Debug("no lease held for key", zap.String("key", key))
		return nil
	}

	err := lock.Release(ctx)
	switch {
	case err == nil:
		l.logger.Debug("lock released", zap.String("key", key))
		return nil
	case errors.Is(err, leaselock.ErrUnlock):
		l.logger.Debug("lease already lapsed", zap.String("key", key))
		return nil
	default:
		return fmt.Errorf("release lock %s: %w", key, err)
	}
}

// cooldownSeconds converts ttl to a lease window. A lease written at now stores
// now+window+1 and can only be taken once the clock is strictly past it, so the
// window is ttl minus two seconds.
func cooldownSeconds(ttl time.Duration) int64 {
	secs := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	if secs < 2 {
		return 0
	}
	return secs - 2
}
