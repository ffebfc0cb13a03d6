package leaselock

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// WithLock acquires the lease, runs fn and releases the lease on every exit path.
//
// fn is not invoked if acquisition fails. If both fn and the release fail, the two
// errors are joined. A panic in fn releases the lease before it propagates.
func (l *Lock) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.acquireOrFail(ctx); err != nil {
		return err
	}
	done := false
	defer l.abandonUnless(ctx, &done)

	err := fn(ctx)
	done = true
	return l.finish(ctx, err)
}

// WithLockedValue is WithLock that also hands fn the current value of the guarded
// resource. found is false when the resource key is unset.
func (l *Lock) WithLockedValue(ctx context.Context, fn func(ctx context.Context, value string, found bool) error) error {
	if err := l.acquireOrFail(ctx); err != nil {
		return err
	}
	done := false
	defer l.abandonUnless(ctx, &done)

	value, found, err := l.store.Get(ctx, l.key)
	if err != nil {
		done = true
		return l.finish(ctx, fmt.Errorf("loading %q: %w", l.key, err))
	}

	err = fn(ctx, value, found)
	done = true
	return l.finish(ctx, err)
}

// WithLockedReadModifyWrite loads the guarded value, lets fn compute a replacement and
// commits it only if the lease is still ours.
//
// If the lease expired or was taken over while fn ran, the new value is discarded, the
// local hold is dropped without a release, and ErrSaveRejected is returned. Side effects
// fn had outside the store are not undone. If fn returns an error nothing is written.
func (l *Lock) WithLockedReadModifyWrite(ctx context.Context, fn func(ctx context.Context, value string, found bool) (string, error)) error {
	if err := l.acquireOrFail(ctx); err != nil {
		return err
	}
	done := false
	defer l.abandonUnless(ctx, &done)

	value, found, err := l.store.Get(ctx, l.key)
	if err != nil {
		done = true
		return l.finish(ctx, fmt.Errorf("loading %q: %w", l.key, err))
	}

	next, err := fn(ctx, value, found)
	if err != nil {
		done = true
		return l.finish(ctx, err)
	}

	owned, err := l.stillOwned(ctx)
	if err != nil {
		done = true
		return l.finish(ctx, err)
	}
	if !owned {
		done = true
		l.reset()
		l.observer.SaveRejected(l.key)
		l.logger.Warn("lease lost during update, value not saved")
		return fmt.Errorf("%w: lease for key %q expired before commit", ErrSaveRejected, l.key)
	}

	if _, _, err := l.store.Swap(ctx, l.key, next); err != nil {
		done = true
		return l.finish(ctx, fmt.Errorf("saving %q: %w", l.key, err))
	}

	done = true
	return l.finish(ctx, nil)
}

func (l *Lock) acquireOrFail(ctx context.Context) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: key %q", ErrNotAcquired, l.key)
	}
	return nil
}

// finish releases the lease after the critical section. The local hold is always
// dropped, even when the release itself fails.
func (l *Lock) finish(ctx context.Context, workErr error) error {
	relErr := l.Release(ctx)
	if relErr != nil {
		l.reset()
		return errors.Join(workErr, relErr)
	}
	return workErr
}

// abandonUnless runs on the panic path only.
func (l *Lock) abandonUnless(ctx context.Context, done *bool) {
	if *done {
		return
	}
	if l.held {
		if err := l.Release(ctx); err != nil {
			l.logger.Warn("release after panic failed", zap.Error(err))
		}
	}
	l.reset()
}
