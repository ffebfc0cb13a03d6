package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leasekeeper-service/pkg/kvstore"
	"leasekeeper-service/pkg/leaselock"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, zap.NewNop(), "lk"), mr
}

func TestStore_SetIfAbsent(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	ok, err := s.SetIfAbsent(ctx, "a", "1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetIfAbsent(ctx, "a", "2")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := mr.Get("lk:a")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := setupStore(t)

	v, found, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, v)
}

func TestStore_Swap(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	prev, found, err := s.Swap(ctx, "a", "1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, prev)

	prev, found, err = s.Swap(ctx, "a", "2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", prev)

	v, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestStore_Delete(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("lk:a", "1"))
	require.NoError(t, s.Delete(ctx, "a"))
	assert.False(t, mr.Exists("lk:a"))

	require.NoError(t, s.Delete(ctx, "a"), "deleting a missing key is not an error")
}

func TestStore_Keys(t *testing.T) {
	s, mr := setupStore(t)

	require.NoError(t, mr.Set("lk:cave-keeper-lock:a", "1"))
	require.NoError(t, mr.Set("lk:cave-keeper-lock:b", "1"))
	require.NoError(t, mr.Set("lk:a", "v"))
	require.NoError(t, mr.Set("other:cave-keeper-lock:c", "1"))

	keys, err := s.Keys(context.Background(), "cave-keeper-lock:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cave-keeper-lock:a", "cave-keeper-lock:b"}, keys)
}

func TestStore_PingFailsWhenDown(t *testing.T) {
	s, mr := setupStore(t)
	require.NoError(t, s.Ping(context.Background()))

	mr.Close()
	assert.Error(t, s.Ping(context.Background()))
}

func TestStore_ErrorsWrapped(t *testing.T) {
	s, mr := setupStore(t)
	mr.Close()

	_, err := s.SetIfAbsent(context.Background(), "a", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setnx a")

	_, _, err = s.Swap(context.Background(), "a", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set get a")
}

func TestStore_LeaseProtocol(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()
	clock := leaselock.ClockFunc(func() int64 { return 1_000 })

	holder := leaselock.New(s, "orders", leaselock.WithClock(clock), leaselock.WithoutRetry())
	rival := leaselock.New(s, "orders", leaselock.WithClock(clock), leaselock.WithoutRetry())

	ok, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := mr.Get("lk:cave-keeper-lock:orders")
	require.NoError(t, err)
	assert.Equal(t, int64(1_006), kvstore.ParseTimestamp(stored))

	ok, err = rival.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "a live lease blocks other holders")

	require.NoError(t, holder.Release(ctx))
	assert.False(t, mr.Exists("lk:cave-keeper-lock:orders"))

	ok, err = rival.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_LeaseStealAndReadModifyWrite(t *testing.T) {
	s, mr := setupStore(t)
	ctx := context.Background()
	clock := leaselock.ClockFunc(func() int64 { return 1_000 })

	require.NoError(t, mr.Set("lk:cave-keeper-lock:counter", "990"))
	require.NoError(t, mr.Set("lk:counter", "41"))

	l := leaselock.New(s, "counter", leaselock.WithClock(clock))
	err := l.WithLockedReadModifyWrite(ctx, func(_ context.Context, value string, found bool) (string, error) {
		assert.True(t, found)
		assert.Equal(t, "41", value)
		return "42", nil
	})
	require.NoError(t, err)

	got, err := mr.Get("lk:counter")
	require.NoError(t, err)
	assert.Equal(t, "42", got)
	assert.False(t, mr.Exists("lk:cave-keeper-lock:counter"))
}
