// Package locker provides a non-blocking try-lock surface for coordinating
// periodic work across service instances.
package locker

import (
	"context"
	"time"
)

// DistributedLocker provides distributed lock capabilities across multiple instances.
// Implementations must be safe for concurrent use.
//
// Typical usage:
//
//	acquired, err := locker.Acquire(ctx, "jobs:heartbeat", time.Minute)
//	if err != nil {
//	    return err
//	}
//	if !acquired {
//	    // Another instance holds the lock
//	    return nil
//	}
//	defer locker.Release(ctx, "jobs:heartbeat")
type DistributedLocker interface {
	// Acquire makes one attempt to take the lock for key and never waits.
	// Returns false, nil if another holder has it. The lock lapses after ttl
	// if not released.
	//
	// For mutual exclusion use the operation timeout as ttl. For a cooldown
	// use the desired quiet period and skip Release on success.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release gives the lock back. Releasing a lock this instance does not hold,
	// or one that already lapsed, is a no-op.
	Release(ctx context.Context, key string) error
}

// Backend names accepted by configuration.
const (
	BackendLease   = "lease"
	BackendRedlock = "redlock"
)
