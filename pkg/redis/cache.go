// pkg/redis/cache.go
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/backoff"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
)

var (
	redisMetrics = struct {
		GetErrors        prometheus.Counter
		SetErrors        prometheus.Counter
		DeleteErrors     prometheus.Counter
		OperationLatency *prometheus.HistogramVec
	}{
		GetErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "chartgrouping", Subsystem: "redis", Name: "get_errors_total",
			Help: "Total number of errors on Redis GET",
		}),
		SetErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "chartgrouping", Subsystem: "redis", Name: "set_errors_total",
			Help: "Total number of errors on Redis SET",
		}),
		DeleteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "chartgrouping", Subsystem: "redis", Name: "delete_errors_total",
			Help: "Total number of errors on Redis DEL",
		}),
		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chartgrouping", Subsystem: "redis", Name: "operation_latency_seconds",
			Help:    "Latency of Redis operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	tracer = otel.Tracer("chart-grouping/redis")
)

// ErrNotFound is returned when a key is absent.
var ErrNotFound = errors.New("redis: key not found")

// Config holds the connection parameters.
type Config struct {
	URL     string        // e.g. "redis://host:6379/0"
	TTL     time.Duration // default: 10m
	Backoff backoff.Config
}

func (c *Config) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
}

func (c *Config) validate() error {
	if c.URL == "" {
		return fmt.Errorf("redis: URL required")
	}
	return nil
}

type redisStorage struct {
	client     *redis.Client
	ttl        time.Duration
	log        *logger.Logger
	backoffCfg backoff.Config
}

// New connects to Redis with retry.
func New(ctx context.Context, cfg Config, log *logger.Logger) (Storage, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log = log.Named("redis")

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctxConn, span := tracer.Start(ctx, "Redis.Connect", trace.WithAttributes(attribute.String("addr", opts.Addr)))
	op := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := backoff.Execute(ctxConn, cfg.Backoff, log, op); err != nil {
		span.RecordError(err)
		span.End()
		_ = client.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	span.End()
	log.Info("redis: connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))

	return &redisStorage{
		client:     client,
		ttl:        cfg.TTL,
		log:        log,
		backoffCfg: cfg.Backoff,
	}, nil
}

func (r *redisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	ctxOp, span := tracer.Start(ctx, "Redis.Get", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	start := time.Now()
	var data []byte
	op := func(ctx context.Context) error {
		val, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return backoff.Permanent(ErrNotFound)
		}
		if err != nil {
			return err
		}
		data = val
		return nil
	}
	if err := backoff.Execute(ctxOp, r.backoffCfg, r.log, op); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		redisMetrics.GetErrors.Inc()
		r.log.WithContext(ctx).Error("redis GET failed", zap.String("key", key), zap.Error(err))
		span.RecordError(err)
		return nil, err
	}
	redisMetrics.OperationLatency.WithLabelValues("get").Observe(time.Since(start).Seconds())
	return data, nil
}

func (r *redisStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctxOp, span := tracer.Start(ctx, "Redis.Set", trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if ttl <= 0 {
		ttl = r.ttl
	}
	start := time.Now()
	op := func(ctx context.Context) error {
		return r.client.Set(ctx, key, value, ttl).Err()
	}
	if err := backoff.Execute(ctxOp, r.backoffCfg, r.log, op); err != nil {
		redisMetrics.SetErrors.Inc()
		r.log.WithContext(ctx).Error("redis SET failed", zap.String("key", key), zap.Error(err))
		span.RecordError(err)
		return err
	}
	redisMetrics.OperationLatency.WithLabelValues("set").Observe(time.Since(start).Seconds())
	return nil
}

func (r *redisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctxOp, span := tracer.Start(ctx, "Redis.Delete", trace.WithAttributes(attribute.Int("keys", len(keys))))
	defer span.End()

	start := time.Now()
	op := func(ctx context.Context) error {
		return r.client.Del(ctx, keys...).Err()
	}
	if err := backoff.Execute(ctxOp, r.backoffCfg, r.log, op); err != nil {
		redisMetrics.DeleteErrors.Inc()
		r.log.WithContext(ctx).Error("redis DEL failed", zap.Strings("keys", keys), zap.Error(err))
		span.RecordError(err)
		return err
	}
	redisMetrics.OperationLatency.WithLabelValues("del").Observe(time.Since(start).Seconds())
	return nil
}

func (r *redisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisStorage) Close() error {
	return r.client.Close()
}
