package leaselock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leasekeeper-service/pkg/kvstore"
)

// Lock guards one named resource for one holder.
type Lock struct {
	store        kvstore.Store
	key          string
	lockKey      string
	leaseSeconds int64
	retryEnabled bool
	retry        *RetryScheduler
	clock        Clock
	logger       *zap.Logger
	observer     Observer
	holder       string

	// held is local belief only. Anything that depends on exclusive ownership
	// re-validates it through the swap guard first.
	held bool
}

// New returns a Lock for key backed by store.
func New(store kvstore.Store, key string, opts ...Option) *Lock {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	prefix := o.cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	holder := uuid.NewString()
	secs := leaseSeconds(o.cfg.LeaseDuration)
	if o.seconds != nil {
		secs = *o.seconds
	}

	return &Lock{
		store:        store,
		key:          key,
		lockKey:      prefix + ":" + key,
		leaseSeconds: secs,
		retryEnabled: o.cfg.RetryEnabled,
		retry:        NewRetryScheduler(o.cfg.MaxAttempts, o.cfg.SleepInterval),
		clock:        o.clock,
		logger: o.logger.With(
			zap.String("key", key),
			zap.String("holder", holder),
		),
		observer: o.observer,
		holder:   holder,
	}
}

// Key returns the guarded resource key.
func (l *Lock) Key() string { return l.key }

// LockKey returns the store key holding the lease timestamp.
func (l *Lock) LockKey() string { return l.lockKey }

// Held reports whether this Lock believes it holds the lease.
func (l *Lock) Held() bool { return l.held }

// Holder returns the random id used to tell holders apart in logs.
func (l *Lock) Holder() string { return l.holder }

// Retry exposes the owned retry scheduler.
func (l *Lock) Retry() *RetryScheduler { return l.retry }

// Acquire takes the lease, waiting between attempts according to the retry scheduler.
//
// It returns (true, nil) once the lease is held. With retries disabled it makes a
// single pass and returns (false, nil) if the lease is taken. It fails with
// ErrAlreadyLocked without touching the store if this Lock already holds the lease,
// and with ErrRetryExhausted when the retry budget runs out.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	if l.held {
		return false, fmt.Errorf("%w: key %q", ErrAlreadyLocked, l.key)
	}

	for !l.held {
		won, err := l.tryAcquire(ctx)
		if err != nil {
			l.retry.Reset()
			return false, err
		}
		if won {
			break
		}

		l.observer.LeaseContended(l.key)
		if !l.retryEnabled {
			l.logger.Debug("lease taken, retries disabled")
			return false, nil
		}
		if err := l.retry.Step(ctx); err != nil {
			if errors.Is(err, ErrRetryExhausted) {
				l.observer.RetryExhausted(l.key)
				l.logger.Debug("gave up waiting for lease",
					zap.Int("attempts", l.retry.Attempts()),
				)
			}
			l.retry.Reset()
			return false, fmt.Errorf("acquiring %q: %w", l.key, err)
		}
	}

	l.retry.Reset()
	return true, nil
}

// Release gives the lease back.
//
// It fails with ErrUnlock if the Lock does not hold the lease, if the lease already
// expired, or if the guarding swap shows another holder's steal landed first. In the
// last two cases the local hold is dropped, since the lease is no longer ours.
func (l *Lock) Release(ctx context.Context) error {
	if !l.held {
		return fmt.Errorf("%w: key %q is not locked", ErrUnlock, l.key)
	}

	owned, err := l.stillOwned(ctx)
	if err != nil {
		return err
	}
	if !owned {
		l.reset()
		l.observer.ReleaseFailed(l.key)
		l.logger.Warn("lease expired before release")
		return fmt.Errorf("%w: lease for key %q expired", ErrUnlock, l.key)
	}

	if err := l.store.Delete(ctx, l.lockKey); err != nil {
		return fmt.Errorf("deleting lease %s: %w", l.lockKey, err)
	}
	l.reset()
	l.observer.LeaseReleased(l.key)
	l.logger.Debug("lease released")
	return nil
}

// Expired reports whether the stored lease timestamp lies in the past.
// A missing lease counts as expired. The answer is advisory: only the swap-guarded
// transitions are safe to act on.
func (l *Lock) Expired(ctx context.Context) (bool, error) {
	expiresAt, err := l.ExpiresAt(ctx)
	if err != nil {
		return false, err
	}
	return l.clock.Now() > expiresAt, nil
}

// ExpiresAt returns the stored lease timestamp, or 0 if there is none.
func (l *Lock) ExpiresAt(ctx context.Context) (int64, error) {
	v, _, err := l.store.Get(ctx, l.lockKey)
	if err != nil {
		return 0, fmt.Errorf("reading lease %s: %w", l.lockKey, err)
	}
	return kvstore.ParseTimestamp(v), nil
}

func (l *Lock) tryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.store.SetIfAbsent(ctx, l.lockKey, l.expiration())
	if err != nil {
		return false, fmt.Errorf("creating lease %s: %w", l.lockKey, err)
	}
	if ok {
		l.held = true
		l.observer.LeaseAcquired(l.key, false)
		l.logger.Debug("lease acquired")
		return true, nil
	}
	return l.acquireIfExpired(ctx)
}

// acquireIfExpired is the steal path. Two holders may both see the lease expired and
// both swap; only the one whose swap replaced a still-expired timestamp wins.
func (l *Lock) acquireIfExpired(ctx context.Context) (bool, error) {
	expired, err := l.Expired(ctx)
	if err != nil || !expired {
		return false, err
	}

	prev, _, err := l.store.Swap(ctx, l.lockKey, l.expiration())
	if err != nil {
		return false, fmt.Errorf("swapping lease %s: %w", l.lockKey, err)
	}
	if l.clock.Now() > kvstore.ParseTimestamp(prev) {
		l.held = true
		l.observer.LeaseAcquired(l.key, true)
		l.logger.Debug("expired lease taken over",
			zap.Int64("previous_expiry", kvstore.ParseTimestamp(prev)),
		)
		return true, nil
	}
	return false, nil
}

// stillOwned re-validates the hold: the lease must not look expired, and the swap that
// extends it must not have replaced a timestamp already in the past.
func (l *Lock) stillOwned(ctx context.Context) (bool, error) {
	expired, err := l.Expired(ctx)
	if err != nil {
		return false, err
	}
	if expired {
		return false, nil
	}

	prev, _, err := l.store.Swap(ctx, l.lockKey, l.expiration())
	if err != nil {
		return false, fmt.Errorf("swapping lease %s: %w", l.lockKey, err)
	}
	return kvstore.ParseTimestamp(prev) >= l.clock.Now(), nil
}

// expiration is one second past the lease window so integer truncation of now never
// shortens a freshly written lease.
func (l *Lock) expiration() string {
	return kvstore.FormatTimestamp(l.clock.Now() + l.leaseSeconds + 1)
}

func (l *Lock) reset() {
	l.held = false
	l.retry.Reset()
}
