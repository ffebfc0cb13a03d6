package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leasekeeper-service/internal/app/service"
	"leasekeeper-service/pkg/kvstore"
	"leasekeeper-service/pkg/leaselock"
	"leasekeeper-service/pkg/locker"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_CooldownAcrossInstances(t *testing.T) {
	store := kvstore.NewMemory()
	job := &countingJob{}
	cfg := Config{Interval: time.Minute, Timeout: time.Second}

	a := NewScheduler(locker.NewLeaseLocker(store, zap.NewNop()), zap.NewNop())
	b := NewScheduler(locker.NewLeaseLocker(store, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	a.execute(ctx, scheduledJob{job: job, cfg: cfg})
	b.execute(ctx, scheduledJob{job: job, cfg: cfg})

	assert.Equal(t, int32(1), job.runs.Load(), "second instance must skip during cooldown")
	assert.Equal(t, 1, store.Len(), "lease is kept for the cooldown")
}

func TestScheduler_FailureReleasesLock(t *testing.T) {
	store := kvstore.NewMemory()
	job := &countingJob{err: errors.New("boom")}
	cfg := Config{Interval: time.Minute}

	a := NewScheduler(locker.NewLeaseLocker(store, zap.NewNop()), zap.NewNop())
	b := NewScheduler(locker.NewLeaseLocker(store, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	a.execute(ctx, scheduledJob{job: job, cfg: cfg})
	b.execute(ctx, scheduledJob{job: job, cfg: cfg})

	assert.Equal(t, int32(2), job.runs.Load(), "failed run frees the lock for a retry")
}

func TestScheduler_StartRunsOnStartupAndStops(t *testing.T) {
	store := kvstore.NewMemory()
	job := &countingJob{}

	s := NewScheduler(locker.NewLeaseLocker(store, zap.NewNop()), zap.NewNop())
	s.Register(job, Config{Interval: time.Hour, OnStartup: true})
	s.Start()

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	s.Stop()
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := NewScheduler(locker.NewLeaseLocker(kvstore.NewMemory(), zap.NewNop()), zap.NewNop())
	assert.NotPanics(t, s.Stop)
}

func TestHeartbeatJob_IncrementsCounter(t *testing.T) {
	store := kvstore.NewMemory()
	svc := service.NewLeaseService(store, service.LeaseConfig{Lock: leaselock.DefaultConfig()}, zap.NewNop())
	hb := NewHeartbeatJob(svc, "heartbeat", zap.NewNop())
	ctx := context.Background()

	require.NoError(t, hb.Run(ctx))
	require.NoError(t, hb.Run(ctx))

	v, _, err := store.Get(ctx, "heartbeat")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
	assert.Equal(t, "heartbeat", hb.Name())
}
