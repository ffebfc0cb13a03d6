package leaselock

// Observer receives lock lifecycle events. Implementations must be cheap and must not
// call back into the Lock.
type Observer interface {
	// LeaseAcquired fires when a lease is won; stolen reports the steal path.
	LeaseAcquired(key string, stolen bool)
	// LeaseContended fires for every acquisition pass that did not win.
	LeaseContended(key string)
	// LeaseReleased fires after the lease key was deleted.
	LeaseReleased(key string)
	// ReleaseFailed fires when a release found the lease expired or taken over.
	ReleaseFailed(key string)
	// SaveRejected fires when a read-modify-write result was discarded.
	SaveRejected(key string)
	// RetryExhausted fires when Acquire gives up.
	RetryExhausted(key string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) LeaseAcquired(string, bool) {}
func (NopObserver) LeaseContended(string)      {}
func (NopObserver) LeaseReleased(string)       {}
func (NopObserver) ReleaseFailed(string)       {}
func (NopObserver) SaveRejected(string)        {}
func (NopObserver) RetryExhausted(string)      {}
