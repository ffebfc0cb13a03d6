package leaselock

import "leasekeeper-service/pkg/kvstore"

// Factory builds Locks that share a store and a set of options.
// A Lock is single-holder state, so callers create one per critical section.
type Factory struct {
	store kvstore.Store
	opts  []Option
}

// NewFactory returns a Factory applying opts to every Lock it creates.
func NewFactory(store kvstore.Store, opts ...Option) *Factory {
	return &Factory{store: store, opts: opts}
}

// New returns a fresh Lock for key. extra options are applied after the shared ones.
func (f *Factory) New(key string, extra ...Option) *Lock {
	opts := make([]Option, 0, len(f.opts)+len(extra))
	opts = append(opts, f.opts...)
	opts = append(opts, extra...)
	return New(f.store, key, opts...)
}

// Store returns the backing store.
func (f *Factory) Store() kvstore.Store {
	return f.store
}
