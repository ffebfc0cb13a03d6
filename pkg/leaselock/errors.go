package leaselock

import "errors"

// ErrLeaseLock is the root of every error returned by this package.
var ErrLeaseLock = errors.New("leaselock")

var (
	// ErrAlreadyLocked is returned by Acquire on a Lock that already holds its lease.
	// Locks are not reentrant.
	ErrAlreadyLocked = wrap("already locked")

	// ErrRetryExhausted is returned when contention outlasted the retry budget.
	ErrRetryExhausted = wrap("retry budget exhausted")

	// ErrUnlock is returned when a release is attempted without a valid hold, or when
	// the lease expired or was taken over before it could be released.
	ErrUnlock = wrap("unlock failed")

	// ErrSaveRejected is returned by WithLockedReadModifyWrite when the lease was lost
	// while the caller's function ran. The computed value was not written.
	ErrSaveRejected = wrap("save rejected")

	// ErrNotAcquired is returned by the With* helpers when retries are disabled and
	// the single acquisition attempt lost.
	ErrNotAcquired = wrap("lock not acquired")
)

type leaseError struct {
	msg string
}

func (e *leaseError) Error() string { return "leaselock: " + e.msg }

func (e *leaseError) Unwrap() error { return ErrLeaseLock }

func wrap(msg string) error {
	return &leaseError{msg: msg}
}
