package leaselock

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultLeaseDuration is how long a granted lease stays valid.
	DefaultLeaseDuration = 5 * time.Second
	// DefaultKeyPrefix namespaces lease keys in the store.
	DefaultKeyPrefix = "cave-keeper-lock"
)

// Config holds the tunables of a Lock.
type Config struct {
	LeaseDuration time.Duration
	MaxAttempts   int
	SleepInterval time.Duration
	// RetryEnabled=false makes Acquire try exactly once and report false on contention.
	RetryEnabled bool
	KeyPrefix    string
}

// DefaultConfig returns the stock configuration: 5s leases, 10 retries 250ms apart.
func DefaultConfig() Config {
	return Config{
		LeaseDuration: DefaultLeaseDuration,
		MaxAttempts:   DefaultMaxAttempts,
		SleepInterval: DefaultSleepInterval,
		RetryEnabled:  true,
		KeyPrefix:     DefaultKeyPrefix,
	}
}

// Option configures a Lock.
type Option func(*options)

type options struct {
	cfg      Config
	clock    Clock
	logger   *zap.Logger
	observer Observer
	// seconds overrides cfg.LeaseDuration when set.
	seconds *int64
}

func defaultOptions() options {
	return options{
		cfg:      DefaultConfig(),
		clock:    SystemClock,
		logger:   zap.NewNop(),
		observer: NopObserver{},
	}
}

// WithConfig replaces every tunable at once.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithLeaseDuration sets the lease window. It is rounded up to whole seconds.
func WithLeaseDuration(d time.Duration) Option {
	return func(o *options) {
		o.cfg.LeaseDuration = d
	}
}

// WithLeaseSeconds sets the lease window in whole seconds. Unlike WithLeaseDuration it
// accepts 0, which leaves only the one-second margin every written expiration carries.
func WithLeaseSeconds(n int64) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.seconds = &n
	}
}

// WithRetry sets the retry budget and the pause between attempts.
func WithRetry(maxAttempts int, interval time.Duration) Option {
	return func(o *options) {
		o.cfg.MaxAttempts = maxAttempts
		o.cfg.SleepInterval = interval
		o.cfg.RetryEnabled = true
	}
}

// WithoutRetry disables the retry loop: Acquire makes one pass and returns false on contention.
func WithoutRetry() Option {
	return func(o *options) {
		o.cfg.RetryEnabled = false
	}
}

// WithKeyPrefix sets the namespace for lease keys.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.cfg.KeyPrefix = prefix
	}
}

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger. Lock events are logged at debug, lost leases at warn.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers lifecycle callbacks, e.g. for metrics.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// leaseSeconds converts a duration to whole seconds, rounding up.
func leaseSeconds(d time.Duration) int64 {
	if d <= 0 {
		d = DefaultLeaseDuration
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
