// Package backend builds the key-value store and job locker selected in config.
// Both binaries share it so the CLI talks to exactly what the service uses.
package backend

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"leasekeeper-service/internal/config"
	"leasekeeper-service/internal/infra/postgres"
	"leasekeeper-service/internal/infra/postgres/migrations"
	"leasekeeper-service/internal/infra/redis"
	"leasekeeper-service/internal/infra/remote"
	"leasekeeper-service/pkg/kvstore"
	"leasekeeper-service/pkg/leaselock"
	"leasekeeper-service/pkg/locker"
)

// Backend is an opened store plus the handles needed to close it.
type Backend struct {
	Name  string
	Store kvstore.Store
	// Redis is set for the redis backend only.
	Redis *goredis.Client

	closers []func() error
}

// Open connects to the backend named by cfg.Store.Backend. The postgres backend
// runs migrations when migrate is true.
func Open(ctx context.Context, cfg *config.Config, migrate bool, logger *zap.Logger) (*Backend, error) {
	b := &Backend{Name: cfg.Store.Backend}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		b.Store = kvstore.NewMemory()

	case config.BackendRedis:
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		b.Redis = client
		b.closers = append(b.closers, client.Close)
		b.Store = redis.NewStore(client, logger, cfg.Store.KeyPrefix)
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr()))

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			Name:         cfg.Database.Name,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			MaxLifetime:  cfg.Database.MaxLifetime,
			LogSQL:       cfg.Database.LogSQL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		b.closers = append(b.closers, func() error { return postgres.Close(db) })
		if migrate {
			if err := migrations.Run(db); err != nil {
				b.Close()
				return nil, fmt.Errorf("running migrations: %w", err)
			}
			logger.Info("database migrations completed")
		}
		b.Store = postgres.NewStore(db, logger, cfg.Store.Table)

	case config.BackendRemote:
		b.Store = remote.NewStore(remote.ClientConfig{
			BaseURL: cfg.Remote.BaseURL,
			Timeout: cfg.Remote.Timeout,
			Retry: remote.RetryConfig{
				MaxAttempts: cfg.Remote.Retry.MaxAttempts,
				WaitTime:    cfg.Remote.Retry.WaitTime,
				MaxWaitTime: cfg.Remote.Retry.MaxWaitTime,
			},
			CB: remote.CBConfig{
				MaxRequests:  cfg.Remote.CB.MaxRequests,
				Interval:     cfg.Remote.CB.Interval,
				Timeout:      cfg.Remote.CB.Timeout,
				FailureRatio: cfg.Remote.CB.FailureRatio,
			},
		}, logger)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return b, nil
}

// Locker returns the try-lock used by background jobs. The redlock locker needs
// the redis backend; config validation enforces that.
func (b *Backend) Locker(cfg *config.Config, logger *zap.Logger, opts ...leaselock.Option) (locker.DistributedLocker, error) {
	switch cfg.Locker.Backend {
	case locker.BackendRedlock:
		if b.Redis == nil {
			return nil, fmt.Errorf("locker %q needs the redis store backend", cfg.Locker.Backend)
		}
		return locker.NewRedisLocker(b.Redis, logger, cfg.Store.KeyPrefix), nil
	default:
		opts = append([]leaselock.Option{leaselock.WithKeyPrefix(cfg.Lock.KeyPrefix)}, opts...)
		return locker.NewLeaseLocker(b.Store, logger, opts...), nil
	}
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
	b.closers = nil
}
