// Package job provides background job schedulers.
package job

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"leasekeeper-service/pkg/locker"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Config holds the schedule of one job.
type Config struct {
	Interval  time.Duration
	Timeout   time.Duration
	OnStartup bool
}

type scheduledJob struct {
	job Job
	cfg Config
}

// Scheduler runs registered jobs on their own tickers, using a distributed lock so
// that only one instance executes a given job per interval.
type Scheduler struct {
	locker locker.DistributedLocker
	logger *zap.Logger
	jobs   []scheduledJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler coordinating through l.
func NewScheduler(l locker.DistributedLocker, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		locker: l,
		logger: logger,
	}
}

// Register adds a job. It must be called before Start.
func (s *Scheduler) Register(job Job, cfg Config) {
	s.jobs = append(s.jobs, scheduledJob{job: job, cfg: cfg})
}

// Start launches one goroutine per registered job.
func (s *Scheduler) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for _, sj := range s.jobs {
		s.logger.Info("starting job",
			zap.String("job", sj.job.Name()),
			zap.Duration("interval", sj.cfg.Interval),
			zap.Bool("run_on_startup", sj.cfg.OnStartup),
		)

		s.wg.Add(1)
		go s.run(sj)
	}
}

// Stop cancels running jobs and waits for their goroutines to exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.logger.Info("stopping scheduler")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(sj scheduledJob) {
	defer s.wg.Done()

	if sj.cfg.OnStartup {
		s.execute(s.ctx, sj)
	}

	ticker := time.NewTicker(sj.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.execute(s.ctx, sj)
		}
	}
}

// execute runs one job under the distributed lock.
//
// Locking behavior:
//   - Lock TTL = interval (cooldown model, not timeout)
//   - Success: lock held for the full interval so no other instance repeats the run
//   - Failure: lock released immediately so another instance can retry
func (s *Scheduler) execute(parent context.Context, sj scheduledJob) {
	name := sj.job.Name()
	lockKey := "jobs:" + name

	acquired, err := s.locker.Acquire(parent, lockKey, sj.cfg.Interval)
	if err != nil {
		s.logger.Error("failed to acquire job lock", zap.String("job", name), zap.Error(err))
		return
	}
	if !acquired {
		s.logger.Debug("job running on another instance, skipping", zap.String("job", name))
		return
	}

	ctx := parent
	if sj.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, sj.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := sj.job.Run(ctx); err != nil {
		if relErr := s.locker.Release(parent, lockKey); relErr != nil {
			s.logger.Error("failed to release job lock after error",
				zap.String("job", name),
				zap.Error(relErr),
			)
		}
		s.logger.Warn("job failed, lock released for retry",
			zap.String("job", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("job completed, lock held for cooldown",
		zap.String("job", name),
		zap.Duration("duration", time.Since(start)),
		zap.Duration("cooldown", sj.cfg.Interval),
	)
}
