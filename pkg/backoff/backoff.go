// pkg/backoff/backoff.go
package backoff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
)

// Config holds parameters for exponential backoff retry.
type Config struct {
	InitialInterval     time.Duration `mapstructure:"initial_interval"`     // default: 1s
	RandomizationFactor float64       `mapstructure:"randomization_factor"` // default: 0.5
	Multiplier          float64       `mapstructure:"multiplier"`           // default: 2.0
	MaxInterval         time.Duration `mapstructure:"max_interval"`         // default: 30s
	MaxElapsedTime      time.Duration `mapstructure:"max_elapsed_time"`     // default: 1m
	PerAttemptTimeout   time.Duration `mapstructure:"per_attempt_timeout"`  // default: unlimited
}

func (c *Config) applyDefaults() {
	if c.InitialInterval <= 0 {
		c.InitialInterval = time.Second
	}
	if c.RandomizationFactor <= 0 {
		c.RandomizationFactor = 0.5
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2.0
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.MaxElapsedTime <= 0 {
		c.MaxElapsedTime = time.Minute
	}
}

// RetryableFunc defines the operation to retry.
type RetryableFunc func(ctx context.Context) error

// ErrMaxRetries indicates retries exhausted.
type ErrMaxRetries struct {
	Err      error
	Attempts int
}

func (e *ErrMaxRetries) Error() string {
	return fmt.Sprintf("backoff: %d attempts failed: %v", e.Attempts, e.Err)
}
func (e *ErrMaxRetries) Unwrap() error { return e.Err }

// Permanent wraps err so that Execute stops retrying immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

var (
	retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chartgrouping", Subsystem: "backoff", Name: "retries_total",
		Help: "Number of retry attempts",
	})
	failuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chartgrouping", Subsystem: "backoff", Name: "failures_total",
		Help: "Number of operations giving up after retries",
	})
	successesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chartgrouping", Subsystem: "backoff", Name: "successes_total",
		Help: "Number of operations succeeded",
	})
	delayHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chartgrouping", Subsystem: "backoff", Name: "retry_delay_seconds",
		Help:    "Histogram of retry delays in seconds",
		Buckets: prometheus.DefBuckets,
	})
	registerOnce sync.Once
)

func registerMetrics() {
	registerOnce.Do(func() {
		for _, c := range []prometheus.Collector{retriesTotal, failuresTotal, successesTotal, delayHistogram} {
			if err := prometheus.Register(c); err != nil {
				var are prometheus.AlreadyRegisteredError
				if !errors.As(err, &are) {
					panic(err)
				}
			}
		}
	})
}

// Execute runs fn with exponential backoff and collects metrics.
// Returns ErrMaxRetries if all attempts fail. Permanent errors are returned
// unwrapped after the first attempt.
func Execute(ctx context.Context, cfg Config, log *logger.Logger, fn RetryableFunc) error {
	registerMetrics()
	cfg.applyDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.RandomizationFactor = cfg.RandomizationFactor
	bo.Multiplier = cfg.Multiplier
	bo.MaxInterval = cfg.MaxInterval
	bo.MaxElapsedTime = cfg.MaxElapsedTime

	boCtx := backoff.WithContext(bo, ctx)
	attempts := 0
	permanent := false

	run := func() error {
		if cfg.PerAttemptTimeout > 0 {
			atCtx, cancel := context.WithTimeout(ctx, cfg.PerAttemptTimeout)
			defer cancel()
			return fn(atCtx)
		}
		return fn(ctx)
	}
	operation := func() error {
		attempts++
		err := run()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			permanent = true
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		retriesTotal.Inc()
		delayHistogram.Observe(delay.Seconds())
		log.Warn("backoff retry",
			zap.Error(err),
			zap.Duration("delay", delay),
			zap.Int("attempt", attempts),
		)
	}

	err := backoff.RetryNotify(operation, boCtx, notify)
	if err != nil {
		if permanent {
			return err
		}
		failuresTotal.Inc()
		log.Error("backoff give up", zap.Error(err), zap.Int("attempts", attempts))
		return &ErrMaxRetries{Err: err, Attempts: attempts}
	}

	successesTotal.Inc()
	return nil
}
