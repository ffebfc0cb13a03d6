// Package config provides application configuration management using Viper.
// Configuration is loaded from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"leasekeeper-service/internal/validator"
	"leasekeeper-service/pkg/leaselock"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendRemote   = "remote"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Lock     LockConfig     `mapstructure:"lock"`
	Store    StoreConfig    `mapstructure:"store"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Locker   LockerConfig   `mapstructure:"locker"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name  string `mapstructure:"name" validate:"required"`
	Env   string `mapstructure:"env"` // development, staging, production
	Port  int    `mapstructure:"port" validate:"min=1,max=65535"`
	Debug bool   `mapstructure:"debug"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	Output string `mapstructure:"output"` // stdout, stderr, file path
}

// SentryConfig holds Sentry error tracking settings.
type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// LockConfig holds the lease protocol tunables.
type LockConfig struct {
	LeaseDuration time.Duration `mapstructure:"lease_duration" validate:"min=1s"`
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"min=0"`
	SleepInterval time.Duration `mapstructure:"sleep_interval" validate:"min=0"`
	RetryEnabled  bool          `mapstructure:"retry_enabled"`
	KeyPrefix     string        `mapstructure:"key_prefix" validate:"required"`
}

// Leaselock converts the section to a leaselock.Config.
func (c LockConfig) Leaselock() leaselock.Config {
	return leaselock.Config{
		LeaseDuration: c.LeaseDuration,
		MaxAttempts:   c.MaxAttempts,
		SleepInterval: c.SleepInterval,
		RetryEnabled:  c.RetryEnabled,
		KeyPrefix:     c.KeyPrefix,
	}
}

// StoreConfig selects the key-value backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=memory redis postgres remote"`
	// KeyPrefix namespaces every key the service writes to Redis.
	KeyPrefix string `mapstructure:"key_prefix"`
	// Table is the Postgres table holding key-value pairs.
	Table string `mapstructure:"table"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Name         string        `mapstructure:"name"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	SSLMode      string        `mapstructure:"ssl_mode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
	LogSQL       bool          `mapstructure:"log_sql"`
}

// RemoteConfig points the remote backend at another leasekeeper node.
type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   RetryConfig   `mapstructure:"retry"`
	CB      CBConfig      `mapstructure:"circuit_breaker"`
}

// RetryConfig holds HTTP retry settings.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	WaitTime    time.Duration `mapstructure:"wait_time"`
	MaxWaitTime time.Duration `mapstructure:"max_wait_time"`
}

// CBConfig holds circuit breaker settings.
type CBConfig struct {
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio" validate:"min=0,max=1"`
}

// LockerConfig selects the try-lock implementation used by background jobs.
type LockerConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=lease redlock"`
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
}

// HeartbeatConfig holds the heartbeat job schedule.
type HeartbeatConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval" validate:"min=1s"`
	Timeout   time.Duration `mapstructure:"timeout"`
	OnStartup bool          `mapstructure:"on_startup"`
	Key       string        `mapstructure:"key" validate:"leasekey"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables, then validates it.
// Priority: env vars > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found, continue with defaults + env vars
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and cross-section requirements.
func (c *Config) Validate() error {
	if err := validator.New().Validate(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch {
	case c.Store.Backend == BackendRemote && c.Remote.BaseURL == "":
		return errors.New("invalid config: remote.base_url is required for the remote backend")
	case c.Locker.Backend == "redlock" && c.Store.Backend != BackendRedis:
		return errors.New("invalid config: the redlock locker needs the redis store backend")
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "leasekeeper-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.debug", true)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stdout")

	// Sentry defaults
	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)

	// Lock defaults
	v.SetDefault("lock.lease_duration", leaselock.DefaultLeaseDuration.String())
	v.SetDefault("lock.max_attempts", leaselock.DefaultMaxAttempts)
	v.SetDefault("lock.sleep_interval", leaselock.DefaultSleepInterval.String())
	v.SetDefault("lock.retry_enabled", true)
	v.SetDefault("lock.key_prefix", leaselock.DefaultKeyPrefix)

	// Store defaults
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.key_prefix", "leasekeeper")
	v.SetDefault("store.table", "kv_entries")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "leasekeeper")
	v.SetDefault("database.user", "app")
	v.SetDefault("database.password", "secret")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.log_sql", false)

	// Remote defaults
	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.timeout", "2s")
	v.SetDefault("remote.retry.max_attempts", 2)
	v.SetDefault("remote.retry.wait_time", "100ms")
	v.SetDefault("remote.retry.max_wait_time", "1s")
	v.SetDefault("remote.circuit_breaker.max_requests", 3)
	v.SetDefault("remote.circuit_breaker.interval", "60s")
	v.SetDefault("remote.circuit_breaker.timeout", "30s")
	v.SetDefault("remote.circuit_breaker.failure_ratio", 0.5)

	// Locker defaults
	v.SetDefault("locker.backend", "lease")

	// Job defaults
	v.SetDefault("jobs.heartbeat.enabled", true)
	v.SetDefault("jobs.heartbeat.interval", "30s")
	v.SetDefault("jobs.heartbeat.timeout", "10s")
	v.SetDefault("jobs.heartbeat.on_startup", true)
	v.SetDefault("jobs.heartbeat.key", "heartbeat")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
}
