// Package main is the entry point for the leasekeeper-service API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"leasekeeper-service/internal/app/backend"
	"leasekeeper-service/internal/app/service"
	"leasekeeper-service/internal/config"
	"leasekeeper-service/internal/job"
	"leasekeeper-service/internal/logger"
	"leasekeeper-service/internal/metrics"
	"leasekeeper-service/internal/transport/httpserver"
	"leasekeeper-service/internal/validator"
	"leasekeeper-service/pkg/leaselock"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("APP_CONFIG_FILE"))
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(
		logger.Config{
			Level:   cfg.Logger.Level,
			Format:  cfg.Logger.Format,
			Output:  cfg.Logger.Output,
			Service: cfg.App.Name,
		},
		logger.SentryConfig{
			Enabled:     cfg.Sentry.Enabled,
			DSN:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		},
	)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting leasekeeper-service",
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
		zap.String("store", cfg.Store.Backend),
		zap.String("locker", cfg.Locker.Backend),
	)

	// Open the key-value store
	ctx := context.Background()
	store, err := backend.Open(ctx, cfg, true, log.Logger)
	if err != nil {
		log.Fatal("failed to open store backend", zap.Error(err))
	}
	defer store.Close()

	// Metrics
	var reg *metrics.Registry
	var observer leaselock.Observer
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		observer = metrics.NewLockMetrics(reg)
	}

	// Create services
	leaseSvc := service.NewLeaseService(store.Store, service.LeaseConfig{
		Lock:     cfg.Lock.Leaselock(),
		Observer: observer,
	}, log.Logger)

	// Create distributed locker for background jobs
	var lockerOpts []leaselock.Option
	if observer != nil {
		lockerOpts = append(lockerOpts, leaselock.WithObserver(observer))
	}
	distLocker, err := store.Locker(cfg, log.Logger, lockerOpts...)
	if err != nil {
		log.Fatal("failed to create job locker", zap.Error(err))
	}

	// Create HTTP server
	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Port:      cfg.App.Port,
			BodyLimit: 1024 * 1024, // 1MB
			Debug:     cfg.App.Debug,
			Backend:   store.Name,
		},
		leaseSvc,
		store.Store,
		reg,
		validator.New(),
		log.Logger,
	)

	// Start background jobs with distributed locking
	scheduler := job.NewScheduler(distLocker, log.Logger)
	if hb := cfg.Jobs.Heartbeat; hb.Enabled {
		scheduler.Register(
			job.NewHeartbeatJob(leaseSvc, hb.Key, log.Logger),
			job.Config{
				Interval:  hb.Interval,
				Timeout:   hb.Timeout,
				OnStartup: hb.OnStartup,
			},
		)
	}
	scheduler.Start()

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutdown signal received")

		// Stop scheduler
		scheduler.Stop()

		// Shutdown server with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.App.ShutdownWithContext(ctx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
	}()

	// Start server
	if err := server.Start(cfg.App.Port); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
