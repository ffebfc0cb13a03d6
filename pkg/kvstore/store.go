// Package kvstore defines the minimal key-value contract the lease lock is built on.
//
// A Store only needs four atomic primitives: set-if-absent, read, swap returning the
// previous value, and delete. No expiring keys, transactions or compare-and-swap are
// required.
package kvstore

import (
	"context"
	"strconv"
	"strings"
)

// Store is the key-value backend shared by every lease holder.
// Implementations must make each method atomic with respect to the others.
//
// Implementations: Memory (this package), internal/infra/redis, internal/infra/postgres,
// internal/infra/remote.
type Store interface {
	// SetIfAbsent sets key to value only if key is unset.
	// Returns true if the value was written.
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)

	// Get returns the value for key. found is false when the key is unset.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Swap writes value and returns what was stored before.
	// found is false when the key was unset.
	Swap(ctx context.Context, key, value string) (previous string, found bool, err error)

	// Delete removes key. Deleting an unset key is not an error.
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Lister is implemented by stores that can enumerate keys. It backs the dashboard
// and the status listing; the lock protocol never needs it.
type Lister interface {
	// Keys returns the keys starting with prefix, in no particular order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// FormatTimestamp renders a unix-second timestamp the way leases are stored.
func FormatTimestamp(ts int64) string {
	return strconv.FormatInt(ts, 10)
}

// ParseTimestamp reads a stored lease timestamp.
// Missing or malformed values count as 0, i.e. expired since the epoch.
func ParseTimestamp(value string) int64 {
	ts, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0
	}
	return ts
}
