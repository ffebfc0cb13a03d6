// Package leaselock implements a cooperative lease lock on top of a kvstore.Store that
// offers only set-if-absent, get, swap and delete.
//
// A lease is a single integer timestamp stored under "<prefix>:<key>" meaning
// "valid until T". The store never records who holds the lease. A Lock wins a lease
// either by creating the key (fast path) or by swapping in a new timestamp over an
// expired one (steal path). Every transition that changes ownership is validated by
// inspecting the value the swap actually replaced, never a value read earlier:
//
//	acquire: SETNX(lock, now+ttl+1) || (now > GET(lock) && now > SWAP(lock, now+ttl+1))
//	release: now <= GET(lock) && SWAP(lock, now+ttl+1) >= now, then DEL(lock)
//
// The swap guard compares now against a value that may itself be stale if the caller
// is descheduled between the swap and the comparison. The protocol accepts this: the
// lease duration must stay large relative to GC pauses and scheduling jitter. This is
// not a consensus protocol and gives no guarantee under clock skew or store
// replication lag.
//
// A Lock is meant for one goroutine at a time. It holds no mutex of its own; all
// exclusion between holders happens in the store.
//
// Typical usage:
//
//	l := leaselock.New(store, "invoice:42")
//	err := l.WithLockedReadModifyWrite(ctx, func(ctx context.Context, v string, found bool) (string, error) {
//	    return v + "!", nil
//	})
//	if errors.Is(err, leaselock.ErrSaveRejected) {
//	    // the lease expired while we worked; nothing was written
//	}
package leaselock
