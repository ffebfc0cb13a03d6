// Package domain contains the entities the service exposes around leases.
// This package has no external dependencies (only stdlib).
package domain

// LeaseState summarises a lease as seen by an observer that does not hold it.
type LeaseState string

const (
	LeaseStateFree    LeaseState = "free"
	LeaseStateHeld    LeaseState = "held"
	LeaseStateExpired LeaseState = "expired"
)

// Lease is a point-in-time view of the lease stored for a resource key.
// It is advisory: by the time it is read the lease may have changed hands.
type Lease struct {
	Key     string `json:"key"`
	LockKey string `json:"lock_key"`

	// Present is false when no lease timestamp is stored.
	Present bool `json:"present"`
	// ExpiresAt is the stored unix-second timestamp, 0 when absent.
	ExpiresAt int64 `json:"expires_at"`
	// Now is the clock reading the view was computed against.
	Now int64 `json:"now"`
}

// State classifies the lease against Now.
func (l *Lease) State() LeaseState {
	switch {
	case !l.Present:
		return LeaseStateFree
	case l.Now > l.ExpiresAt:
		return LeaseStateExpired
	default:
		return LeaseStateHeld
	}
}

// Remaining returns the whole seconds the lease stays valid, never negative.
func (l *Lease) Remaining() int64 {
	if !l.Present || l.Now > l.ExpiresAt {
		return 0
	}
	return l.ExpiresAt - l.Now
}

// Value is the guarded value stored under a resource key.
type Value struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Found bool   `json:"found"`
}
