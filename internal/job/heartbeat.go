package job

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"leasekeeper-service/internal/domain"
)

// Mutator applies a guarded mutation to a value. Implemented by service.LeaseService.
type Mutator interface {
	Mutate(ctx context.Context, key string, m domain.Mutation) (*domain.Value, error)
}

// HeartbeatJob increments a counter value under its lease on every run. The counter
// shows how many intervals the cluster as a whole has completed.
type HeartbeatJob struct {
	mutator Mutator
	key     string
	logger  *zap.Logger
}

// NewHeartbeatJob returns a HeartbeatJob bumping key.
func NewHeartbeatJob(m Mutator, key string, logger *zap.Logger) *HeartbeatJob {
	return &HeartbeatJob{mutator: m, key: key, logger: logger}
}

// Name implements Job.
func (j *HeartbeatJob) Name() string { return "heartbeat" }

// Run implements Job.
func (j *HeartbeatJob) Run(ctx context.Context) error {
	v, err := j.mutator.Mutate(ctx, j.key, domain.Mutation{Op: domain.MutationIncr})
	if err != nil {
		return fmt.Errorf("heartbeat %s: %w", j.key, err)
	}
	j.logger.Debug("heartbeat recorded",
		zap.String("key", j.key),
		zap.String("count", v.Value),
	)
	return nil
}
