package leaselock

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultMaxAttempts is the number of waits allowed before giving up.
	DefaultMaxAttempts = 10
	// DefaultSleepInterval is the fixed pause between acquisition passes.
	DefaultSleepInterval = 250 * time.Millisecond
)

// RetryScheduler is a counted, fixed-interval backoff gate.
// It is not safe for concurrent use.
type RetryScheduler struct {
	maxAttempts int
	interval    time.Duration
	attempts    int
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetryScheduler returns a scheduler allowing maxAttempts waits of interval each.
// Negative arguments fall back to the defaults.
func NewRetryScheduler(maxAttempts int, interval time.Duration) *RetryScheduler {
	if maxAttempts < 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if interval < 0 {
		interval = DefaultSleepInterval
	}
	return &RetryScheduler{
		maxAttempts: maxAttempts,
		interval:    interval,
		sleep:       sleepContext,
	}
}

// Step fails with ErrRetryExhausted once maxAttempts waits have been spent.
// Otherwise it counts the attempt and blocks for the configured interval, returning
// early with the context's error if ctx is done.
func (r *RetryScheduler) Step(ctx context.Context) error {
	if r.attempts >= r.maxAttempts {
		return fmt.Errorf("%w: no lease after %d retries", ErrRetryExhausted, r.attempts)
	}
	r.attempts++
	return r.sleep(ctx, r.interval)
}

// Reset zeroes the attempt counter.
func (r *RetryScheduler) Reset() {
	r.attempts = 0
}

// Attempts reports how many waits have been spent since the last reset.
func (r *RetryScheduler) Attempts() int {
	return r.attempts
}

// MaxAttempts reports the configured budget.
func (r *RetryScheduler) MaxAttempts() int {
	return r.maxAttempts
}

// Interval reports the configured pause.
func (r *RetryScheduler) Interval() time.Duration {
	return r.interval
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
