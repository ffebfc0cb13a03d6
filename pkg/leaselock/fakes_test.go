package leaselock

import (
	"context"
	"sync"
	"testing"
	"time"

	"leasekeeper-service/pkg/kvstore"
)

const testNow int64 = 1_000

type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64      { return c.now }
func (c *fakeClock) Advance(s int64) { c.now += s }

// hookStore wraps a Memory store so tests can interleave another holder's writes
// between the lock's own operations.
type hookStore struct {
	*kvstore.Memory

	mu         sync.Mutex
	calls      int
	beforeSwap func(key string)
	deleteErr  error
}

func newHookStore() *hookStore {
	return &hookStore{Memory: kvstore.NewMemory()}
}

func (s *hookStore) count() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *hookStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *hookStore) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	s.count()
	return s.Memory.SetIfAbsent(ctx, key, value)
}

func (s *hookStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.count()
	return s.Memory.Get(ctx, key)
}

func (s *hookStore) Swap(ctx context.Context, key, value string) (string, bool, error) {
	s.count()
	if hook := s.beforeSwap; hook != nil {
		s.beforeSwap = nil
		hook(key)
	}
	return s.Memory.Swap(ctx, key, value)
}

func (s *hookStore) Delete(ctx context.Context, key string) error {
	s.count()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Memory.Delete(ctx, key)
}

type recordingObserver struct {
	acquired  int
	stolen    int
	contended int
	released  int
	failed    int
	rejected  int
	exhausted int
}

func (o *recordingObserver) LeaseAcquired(_ string, stolen bool) {
	o.acquired++
	if stolen {
		o.stolen++
	}
}
func (o *recordingObserver) LeaseContended(string) { o.contended++ }
func (o *recordingObserver) LeaseReleased(string)  { o.released++ }
func (o *recordingObserver) ReleaseFailed(string)  { o.failed++ }
func (o *recordingObserver) SaveRejected(string)   { o.rejected++ }
func (o *recordingObserver) RetryExhausted(string) { o.exhausted++ }

// newTestLock returns a Lock on a fake clock whose retry waits do not sleep.
func newTestLock(t *testing.T, store kvstore.Store, clock *fakeClock, opts ...Option) *Lock {
	t.Helper()
	l := New(store, "resource", append([]Option{WithClock(clock)}, opts...)...)
	l.retry.sleep = func(context.Context, time.Duration) error { return nil }
	return l
}

func storedLease(t *testing.T, store kvstore.Store, l *Lock) (int64, bool) {
	t.Helper()
	v, found, err := store.Get(context.Background(), l.LockKey())
	if err != nil {
		t.Fatalf("reading lease: %v", err)
	}
	return kvstore.ParseTimestamp(v), found
}
