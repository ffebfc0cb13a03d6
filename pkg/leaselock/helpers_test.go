package leaselock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasekeeper-service/pkg/kvstore"
)

func TestWithLock_RunsAndReleases(t *testing.T) {
	store := kvstore.NewMemory()
	l := newTestLock(t, store, &fakeClock{now: testNow})

	called := false
	err := l.WithLock(context.Background(), func(ctx context.Context) error {
		called = true
		assert.True(t, l.Held())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, l.Held())
	assert.Zero(t, store.Len())
}

func TestWithLock_PropagatesWorkError(t *testing.T) {
	store := kvstore.NewMemory()
	l := newTestLock(t, store, &fakeClock{now: testNow})
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, l.Held())
	assert.Zero(t, store.Len(), "lease is released even when the work fails")
}

func TestWithLock_NotAcquired(t *testing.T) {
	store := kvstore.NewMemory()
	l := newTestLock(t, store, &fakeClock{now: testNow}, WithoutRetry())
	store.Set(l.LockKey(), kvstore.FormatTimestamp(testNow+30))

	called := false
	err := l.WithLock(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrNotAcquired)
	assert.False(t, called)
}

func TestWithLock_RetryExhaustedSkipsWork(t *testing.T) {
	store := kvstore.NewMemory()
	l := newTestLock(t, store, &fakeClock{now: testNow}, WithRetry(2, 0))
	store.Set(l.LockKey(), kvstore.FormatTimestamp(testNow+30))

	called := false
	err := l.WithLock(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrRetryExhausted)
	assert.False(t, called)
}

func TestWithLock_AlreadyHeld(t *testing.T) {
	l := newTestLock(t, kvstore.NewMemory(), &fakeClock{now: testNow})
	ok, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	err = l.WithLock(context.Background(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrAlreadyLocked)
	assert.True(t, l.Held(), "a failed nested call leaves the outer hold alone")
}

func TestWithLock_UnlockFailsAfterWork(t *testing.T) {
	store := kvstore.NewMemory()
	l := newTestLock(t, store, &fakeClock{now: testNow})

	called := false
	err := l.WithLock(context.Background(), func(ctx context.Context) error {
		called = true
		return store.Delete(ctx, l.LockKey())
	})
	require.ErrorIs(t, err, ErrUnlock)
	assert.True(t, called)
	assert.False(t, l.Held())
	assert.Zero(t, l.Retry().Attempts())
}

func TestWithLock_JoinsWorkAndReleaseErrors(t *testing.T) {
	store := kvstore.NewMemory()
	clock := &fakeClock{now: testNow}
	l := newTestLock(t, store, clock)
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), func(context.Context) error {
		clock.Advance(30)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, ErrUnlock)
	assert.False(t, l.Held())
}

func TestWithLock_PanicReleases(t *testing.T) {
	store := kvstore.NewMemory()
	l := newTestLock(t, store, &fakeClock{now: testNow})

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = l.WithLock(context.Background(), func(context.Context) error {
			panic("kaboom")
		})
	})
	assert.False(t, l.Held())
	assert.Zero(t, store.Len())
}

func TestWithLockedValue(t *testing.T) {
	store := kvstore.NewMemory()
	l := newTestLock(t, store, &fakeClock{now: testNow})
	ctx := context.Background()

	err := l.WithLockedValue(ctx, func(_ context.Context, value string, found bool) error {
		assert.False(t, found)
		assert.Empty(t, value)
		return nil
	})
	require.NoError(t, err)

	store.Set("resource", "v0")
	err = l.WithLockedValue(ctx, func(_ context.Context, value string, found bool) error {
		assert.True(t, found)
		assert.Equal(t, "v0", value)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, l.Held())
}

func TestWithLockedReadModifyWrite_Commits(t *testing.T) {
	store := kvstore.NewMemory()
	l := newTestLock(t, store, &fakeClock{now: testNow})
	store.Set("resource", "v0")

	err := l.WithLockedReadModifyWrite(context.Background(), func(_ context.Context, value string, found bool) (string, error) {
		require.True(t, found)
		require.Equal(t, "v0", value)
		return "v1", nil
	})
	require.NoError(t, err)

	v, _, err := store.Get(context.Background(), "resource")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	_, found := storedLease(t, store, l)
	assert.False(t, found)
	assert.False(t, l.Held())
}

func TestWithLockedReadModifyWrite_LeaseLostDuringWork(t *testing.T) {
	store := kvstore.NewMemory()
	obs := &recordingObserver{}
	l := newTestLock(t, store, &fakeClock{now: testNow}, WithObserver(obs))
	store.Set("resource", "v0")

	err := l.WithLockedReadModifyWrite(context.Background(), func(context.Context, string, bool) (string, error) {
		store.Set(l.LockKey(), kvstore.FormatTimestamp(testNow-1))
		return "v1", nil
	})
	require.ErrorIs(t, err, ErrSaveRejected)
	assert.NotErrorIs(t, err, ErrUnlock, "no release is attempted after a rejected save")

	v, _, err := store.Get(context.Background(), "resource")
	require.NoError(t, err)
	assert.Equal(t, "v0", v)
	assert.False(t, l.Held())
	assert.Zero(t, l.Retry().Attempts())
	assert.Equal(t, 1, obs.rejected)
	assert.Zero(t, obs.failed)
}

func TestWithLockedReadModifyWrite_WorkErrorWritesNothing(t *testing.T) {
	store := kvstore.NewMemory()
	l := newTestLock(t, store, &fakeClock{now: testNow})
	store.Set("resource", "v0")
	boom := errors.New("boom")

	err := l.WithLockedReadModifyWrite(context.Background(), func(context.Context, string, bool) (string, error) {
		return "v1", boom
	})
	require.ErrorIs(t, err, boom)

	v, _, err := store.Get(context.Background(), "resource")
	require.NoError(t, err)
	assert.Equal(t, "v0", v)
	_, found := storedLease(t, store, l)
	assert.False(t, found, "lease is released")
}

func TestWithLockedReadModifyWrite_PanicReleases(t *testing.T) {
	store := kvstore.NewMemory()
	l := newTestLock(t, store, &fakeClock{now: testNow})

	assert.Panics(t, func() {
		_ = l.WithLockedReadModifyWrite(context.Background(), func(context.Context, string, bool) (string, error) {
			panic("kaboom")
		})
	})
	assert.False(t, l.Held())
	_, found := storedLease(t, store, l)
	assert.False(t, found)
}
