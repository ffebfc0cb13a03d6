// Package service holds the application services behind the HTTP API, the CLI and
// the background jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"leasekeeper-service/internal/domain"
	"leasekeeper-service/pkg/kvstore"
	"leasekeeper-service/pkg/leaselock"
)

var (
	// ErrListingUnsupported is returned by List when the store cannot enumerate keys.
	ErrListingUnsupported = errors.New("store cannot list keys")
	// ErrReservedKey rejects resource keys inside the lease namespace. A value stored
	// under "<prefix>:x" would be the lease of resource "x".
	ErrReservedKey = errors.New("key is reserved for leases")
)

// LeaseConfig holds LeaseService settings.
type LeaseConfig struct {
	Lock leaselock.Config
	// Clock defaults to leaselock.SystemClock.
	Clock leaselock.Clock
	// Observer receives lock events from every lock the service creates. Optional.
	Observer leaselock.Observer
}

// LeaseService runs guarded operations on resource keys. Each call builds its own
// Lock, so the service itself is safe for concurrent use.
type LeaseService struct {
	store  kvstore.Store
	locks  *leaselock.Factory
	clock  leaselock.Clock
	prefix string
	logger *zap.Logger
}

// NewLeaseService creates a new LeaseService over store.
func NewLeaseService(store kvstore.Store, cfg LeaseConfig, logger *zap.Logger) *LeaseService {
	clock := cfg.Clock
	if clock == nil {
		clock = leaselock.SystemClock
	}
	prefix := cfg.Lock.KeyPrefix
	if prefix == "" {
		prefix = leaselock.DefaultKeyPrefix
	}

	opts := []leaselock.Option{
		leaselock.WithConfig(cfg.Lock),
		leaselock.WithClock(clock),
		leaselock.WithLogger(logger),
	}
	if cfg.Observer != nil {
		opts = append(opts, leaselock.WithObserver(cfg.Observer))
	}

	return &LeaseService{
		store:  store,
		locks:  leaselock.NewFactory(store, opts...),
		clock:  clock,
		prefix: prefix,
		logger: logger,
	}
}

// Inspect reads the lease for key without taking it.
func (s *LeaseService) Inspect(ctx context.Context, key string) (*domain.Lease, error) {
	if err := s.checkKey(key); err != nil {
		return nil, err
	}
	lockKey := s.lockKey(key)
	raw, found, err := s.store.Get(ctx, lockKey)
	if err != nil {
		return nil, fmt.Errorf("inspecting lease %s: %w", key, err)
	}

	lease := &domain.Lease{
		Key:     key,
		LockKey: lockKey,
		Present: found,
		Now:     s.clock.Now(),
	}
	if found {
		lease.ExpiresAt = kvstore.ParseTimestamp(raw)
	}
	return lease, nil
}

// List returns every stored lease, sorted by key.
func (s *LeaseService) List(ctx context.Context) ([]*domain.Lease, error) {
	lister, ok := s.store.(kvstore.Lister)
	if !ok {
		return nil, ErrListingUnsupported
	}

	lockKeys, err := lister.Keys(ctx, s.prefix+":")
	if err != nil {
		return nil, fmt.Errorf("listing leases: %w", err)
	}

	leases := make([]*domain.Lease, 0, len(lockKeys))
	for _, lk := range lockKeys {
		key := strings.TrimPrefix(lk, s.prefix+":")
		// Written through the raw kv API; no resource can own it.
		if s.checkKey(key) != nil {
			continue
		}
		lease, err := s.Inspect(ctx, key)
		if err != nil {
			return nil, err
		}
		// Released between the scan and the read.
		if !lease.Present {
			continue
		}
		leases = append(leases, lease)
	}

	sort.Slice(leases, func(i, j int) bool { return leases[i].Key < leases[j].Key })
	return leases, nil
}

// Read returns the value of key, read while holding its lease.
func (s *LeaseService) Read(ctx context.Context, key string) (*domain.Value, error) {
	if err := s.checkKey(key); err != nil {
		return nil, err
	}
	result := &domain.Value{Key: key}
	err := s.locks.New(key).WithLockedValue(ctx, func(_ context.Context, value string, found bool) error {
		result.Value, result.Found = value, found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Mutate applies m to the value of key under its lease and returns the committed value.
// The result is discarded with leaselock.ErrSaveRejected if the lease lapsed first.
func (s *LeaseService) Mutate(ctx context.Context, key string, m domain.Mutation) (*domain.Value, error) {
	if err := s.checkKey(key); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	result := &domain.Value{Key: key, Found: true}
	err := s.locks.New(key).WithLockedReadModifyWrite(ctx, func(_ context.Context, value string, found bool) (string, error) {
		next, err := m.Apply(value, found)
		if err != nil {
			return "", err
		}
		result.Value = next
		return next, nil
	})
	if err != nil {
		if errors.Is(err, leaselock.ErrSaveRejected) {
			s.logger.Warn("mutation discarded, lease lost",
				zap.String("key", key),
				zap.String("op", string(m.Op)),
			)
		}
		return nil, err
	}

	s.logger.Debug("value mutated",
		zap.String("key", key),
		zap.String("op", string(m.Op)),
	)
	return result, nil
}

// Run executes fn while holding the lease for key. opts override the service's
// lock settings for this call only.
func (s *LeaseService) Run(ctx context.Context, key string, fn func(ctx context.Context) error, opts ...leaselock.Option) error {
	if err := s.checkKey(key); err != nil {
		return err
	}
	return s.locks.New(key, opts...).WithLock(ctx, fn)
}

// ForceUnlock deletes the lease for key regardless of who holds it. It reports whether
// a lease was present. The previous holder finds out on its next swap-guarded step.
func (s *LeaseService) ForceUnlock(ctx context.Context, key string) (bool, error) {
	if err := s.checkKey(key); err != nil {
		return false, err
	}
	lockKey := s.lockKey(key)
	_, found, err := s.store.Get(ctx, lockKey)
	if err != nil {
		return false, fmt.Errorf("reading lease %s: %w", key, err)
	}
	if err := s.store.Delete(ctx, lockKey); err != nil {
		return false, fmt.Errorf("deleting lease %s: %w", key, err)
	}

	s.logger.Warn("lease force-unlocked",
		zap.String("key", key),
		zap.Bool("was_present", found),
	)
	return found, nil
}

// Ping checks the store when it supports it.
func (s *LeaseService) Ping(ctx context.Context) error {
	if p, ok := s.store.(kvstore.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *LeaseService) checkKey(key string) error {
	if strings.HasPrefix(key, s.prefix+":") {
		return fmt.Errorf("%w: %q starts with %q", ErrReservedKey, key, s.prefix+":")
	}
	return nil
}

func (s *LeaseService) lockKey(key string) string {
	return s.prefix + ":" + key
}
