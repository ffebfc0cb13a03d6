package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leasekeeper-service/internal/app/backend"
	"leasekeeper-service/internal/config"
	"leasekeeper-service/pkg/kvstore"
	"leasekeeper-service/pkg/leaselock"
)

// farFuture keeps a stored lease valid for the lifetime of the test run.
const farFuture = "99999999999"

func execute(t *testing.T, store *kvstore.Memory, args ...string) (string, error) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: error\n"), 0o600))

	open := func(context.Context, *config.Config, *zap.Logger) (*backend.Backend, error) {
		return &backend.Backend{Name: config.BackendMemory, Store: store}, nil
	}

	var out bytes.Buffer
	root := NewRootCommand(open)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", path}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, kvstore.NewMemory(), "version")
	require.NoError(t, err)
	assert.Equal(t, "leasectl v"+Version+"\n", out)
}

func TestMutateAndGet(t *testing.T) {
	store := kvstore.NewMemory()

	out, err := execute(t, store, "mutate", "counter", "incr")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = execute(t, store, "mutate", "counter", "incr", "41")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = execute(t, store, "get", "counter")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = execute(t, store, "get", "missing")
	require.NoError(t, err)
	assert.Equal(t, "missing is not set\n", out)
}

func TestMutate_InvalidOp(t *testing.T) {
	_, err := execute(t, kvstore.NewMemory(), "mutate", "counter", "drop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid mutation")
}

func TestStatus(t *testing.T) {
	store := kvstore.NewMemory()

	out, err := execute(t, store, "status")
	require.NoError(t, err)
	assert.Equal(t, "no leases\n", out)

	store.Set("cave-keeper-lock:orders", farFuture)
	store.Set("cave-keeper-lock:reports", "10")

	out, err = execute(t, store, "status", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "orders\theld\texpires_at="+farFuture)

	out, err = execute(t, store, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "orders\theld")
	assert.Contains(t, out, "reports\texpired\texpires_at=10")

	out, err = execute(t, store, "status", "idle")
	require.NoError(t, err)
	assert.Equal(t, "idle\tfree\n", out)
}

func TestUnlock(t *testing.T) {
	store := kvstore.NewMemory()
	store.Set("cave-keeper-lock:orders", farFuture)

	out, err := execute(t, store, "unlock", "orders")
	require.NoError(t, err)
	assert.Equal(t, "removed lease on orders\n", out)
	assert.Zero(t, store.Len())

	out, err = execute(t, store, "unlock", "orders")
	require.NoError(t, err)
	assert.Equal(t, "no lease on orders\n", out)
}

func TestRun(t *testing.T) {
	store := kvstore.NewMemory()

	out, err := execute(t, store, "run", "job", "--", "sh", "-c", "echo guarded")
	require.NoError(t, err)
	assert.Equal(t, "guarded\n", out)
	assert.Zero(t, store.Len(), "lease is released after the command")
}

func TestRun_CommandFailureReleasesLease(t *testing.T) {
	store := kvstore.NewMemory()

	_, err := execute(t, store, "run", "job", "--", "sh", "-c", "exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
	assert.Zero(t, store.Len())
}

func TestRun_HeldElsewhere(t *testing.T) {
	store := kvstore.NewMemory()
	store.Set("cave-keeper-lock:job", farFuture)

	_, err := execute(t, store, "run", "--no-retry", "job", "--", "sh", "-c", "echo never")
	require.ErrorIs(t, err, leaselock.ErrNotAcquired)
}

func TestInvalidKey(t *testing.T) {
	_, err := execute(t, kvstore.NewMemory(), "status", "a/b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid key")
}
