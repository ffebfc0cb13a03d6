package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgresContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	postgresDriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"leasekeeper-service/internal/infra/postgres/migrations"
	"leasekeeper-service/pkg/leaselock"
)

// setupTestDB creates a PostgreSQL testcontainer, runs the migrations and returns
// a connected GORM DB.
//
// Prerequisites:
//   - Docker must be running
//
// OR
//   - Skip tests with: go test -short
func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	ctx := context.Background()

	pgContainer, err := postgresContainer.Run(ctx,
		"postgres:16-alpine",
		postgresContainer.WithDatabase("testdb"),
		postgresContainer.WithUsername("testuser"),
		postgresContainer.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf(`Failed to start PostgreSQL container: %v

Docker Prerequisites:
1. Ensure Docker is running
2. OR skip integration tests: go test -short

`, err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	db, err := gorm.Open(postgresDriver.Open(connStr), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "Failed to connect to test database")

	require.NoError(t, migrations.Run(db), "Failed to run migrations")

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func TestStore_Primitives(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewStore(db, zap.NewNop(), "")
	ctx := context.Background()

	ok, err := s.SetIfAbsent(ctx, "a", "1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetIfAbsent(ctx, "a", "2")
	require.NoError(t, err)
	assert.False(t, ok, "existing key must not be overwritten")

	v, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", v)

	prev, found, err := s.Swap(ctx, "a", "3")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", prev)

	prev, found, err = s.Swap(ctx, "b", "x")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, prev)

	require.NoError(t, s.Delete(ctx, "a"))
	_, found, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Delete(ctx, "a"), "deleting a missing key is not an error")
	require.NoError(t, s.Ping(ctx))
}

func TestStore_Keys(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewStore(db, zap.NewNop(), "")
	ctx := context.Background()

	for _, k := range []string{"lock:a", "lock:b", "lock_c", "value"} {
		_, err := s.SetIfAbsent(ctx, k, "1")
		require.NoError(t, err)
	}

	keys, err := s.Keys(ctx, "lock:")
	require.NoError(t, err)
	assert.Equal(t, []string{"lock:a", "lock:b"}, keys)

	keys, err = s.Keys(ctx, "lock_")
	require.NoError(t, err)
	assert.Equal(t, []string{"lock_c"}, keys, "underscore is matched literally")
}

func TestStore_ConcurrentSwapOnMissingKey(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewStore(db, zap.NewNop(), "")
	ctx := context.Background()

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		notFound int
		errs     []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, found, err := s.Swap(ctx, "race", fmt.Sprintf("v%d", i))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if !found {
				notFound++
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, notFound, "exactly one swap observes the key as absent")
}

func TestStore_LeaseProtocol(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	db, cleanup := setupTestDB(t)
	defer cleanup()

	s := NewStore(db, zap.NewNop(), "")
	ctx := context.Background()
	clock := leaselock.ClockFunc(func() int64 { return 1_000 })

	_, err := s.SetIfAbsent(ctx, "counter", "1")
	require.NoError(t, err)

	l := leaselock.New(s, "counter", leaselock.WithClock(clock), leaselock.WithoutRetry())
	err = l.WithLockedReadModifyWrite(ctx, func(_ context.Context, value string, _ bool) (string, error) {
		return value + "1", nil
	})
	require.NoError(t, err)

	v, _, err := s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "11", v)

	_, found, err := s.Get(ctx, l.LockKey())
	require.NoError(t, err)
	assert.False(t, found)
}
