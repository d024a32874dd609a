// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/chart"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/config"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/grouping"
	httpapi "github.com/YaganovValera/analytics-system/services/chart-grouping/internal/http"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/ingest"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/metrics"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/storage/cache"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/storage/timescaledb"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/timeticks"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/kafka"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/redis"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/telemetry"
)

// Run wires up and runs the chart-grouping service.
func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	// -------------------------------------------------------------------------
	// 1) Prometheus metrics
	// -------------------------------------------------------------------------
	metrics.Register(nil)

	// -------------------------------------------------------------------------
	// 2) OpenTelemetry
	// -------------------------------------------------------------------------
	shutdownTracer, err := telemetry.InitTracer(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Insecure:       cfg.Telemetry.Insecure,
		Timeout:        cfg.Telemetry.Timeout,
		SamplerRatio:   cfg.Telemetry.SamplerRatio,
	}, log)
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer shutdownSafe(ctx, "telemetry", shutdownTracer, log)

	deps := chart.Deps{Ticks: timeticks.Generator{}}
	var pings []func(context.Context) error

	// -------------------------------------------------------------------------
	// 3) Redis view cache (optional)
	// -------------------------------------------------------------------------
	if cfg.Redis.URL != "" {
		store, err := redis.New(ctx, redis.Config{
			URL:     cfg.Redis.URL,
			TTL:     cfg.Redis.TTL,
			Backoff: cfg.Redis.Backoff,
		}, log)
		if err != nil {
			return fmt.Errorf("redis init: %w", err)
		}
		defer shutdownSafe(ctx, "redis", func(context.Context) error { return store.Close() }, log)
		deps.Cache = cache.New(store, cfg.Redis.TTL, log)
		pings = append(pings, store.Ping)
	}

	// -------------------------------------------------------------------------
	// 4) TimescaleDB history (optional)
	// -------------------------------------------------------------------------
	if cfg.Timescale.DSN != "" {
		reader, err := timescaledb.New(ctx, cfg.Timescale, log)
		if err != nil {
			return fmt.Errorf("timescaledb init: %w", err)
		}
		defer shutdownSafe(ctx, "timescaledb", func(context.Context) error { reader.Close(); return nil }, log)
		deps.History = reader
		pings = append(pings, reader.Ping)
	}

	// -------------------------------------------------------------------------
	// 5) Kafka producer (grouped views)
	// -------------------------------------------------------------------------
	producer, err := kafka.NewProducer(ctx, kafka.Config{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.Acks,
		Timeout:      cfg.Kafka.Timeout,
		Compression:  cfg.Kafka.Compression,
		Backoff:      cfg.Kafka.Backoff,
	}, log)
	if err != nil {
		return fmt.Errorf("kafka producer init: %w", err)
	}
	defer shutdownSafe(ctx, "kafka-producer", func(context.Context) error { return producer.Close() }, log)
	deps.Publisher = producer

	// -------------------------------------------------------------------------
	// 6) Kafka consumer (points)
	// -------------------------------------------------------------------------
	consumer, err := kafka.NewConsumer(ctx, kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Version: cfg.Kafka.Version,
		Oldest:  cfg.Kafka.Oldest,
		Backoff: cfg.Kafka.Backoff,
	}, log)
	if err != nil {
		return fmt.Errorf("kafka consumer init: %w", err)
	}
	defer shutdownSafe(ctx, "kafka-consumer", func(context.Context) error { return consumer.Close() }, log)

	// -------------------------------------------------------------------------
	// 7) Chart manager
	// -------------------------------------------------------------------------
	overrides, err := cfg.Grouping.Overrides()
	if err != nil {
		return fmt.Errorf("grouping overrides: %w", err)
	}
	manager, err := chart.NewManager(chart.Config{
		PlotWidth:     cfg.Grouping.PlotWidth,
		FlushInterval: cfg.Grouping.FlushInterval,
		ViewsTopic:    cfg.Kafka.ViewsTopic,
		Overrides:     overrides,
	}, deps, log)
	if err != nil {
		return fmt.Errorf("chart manager init: %w", err)
	}
	defer shutdownSafe(ctx, "chart-manager", func(context.Context) error { return manager.Close() }, log)

	preload(ctx, manager, cfg.Series, log)

	// -------------------------------------------------------------------------
	// 8) HTTP server
	// -------------------------------------------------------------------------
	readiness := func() error {
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		errs := []error{producer.Ping()}
		for _, ping := range pings {
			errs = append(errs, ping(ctxPing))
		}
		return errors.Join(errs...)
	}
	handler := httpapi.NewHandler(manager, cfg.Grouping.PlotWidth, cfg.Grouping.MaxPlotWidth, nil, log)
	httpSrv, err := httpapi.New(cfg.HTTP, handler, readiness, log)
	if err != nil {
		return fmt.Errorf("http server init: %w", err)
	}

	proc := ingest.NewProcessor(manager, log)
	log.Info("chart-grouping: components initialized, entering run-loop")

	// -------------------------------------------------------------------------
	// 9) Concurrent loops
	// -------------------------------------------------------------------------
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return httpSrv.Start(gctx) })
	g.Go(func() error {
		return consumer.Consume(gctx, []string{cfg.Kafka.IngestTopic}, proc.Process)
	})
	g.Go(func() error { return manager.Run(gctx) })

	// -------------------------------------------------------------------------
	// 10) Wait & graceful shutdown
	// -------------------------------------------------------------------------
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithContext(ctx).Error("runtime error", zap.Error(err))
		return err
	}
	log.Info("chart-grouping shutdown complete")
	return nil
}

func preload(ctx context.Context, m *chart.Manager, series []config.SeriesConfig, log *logger.Logger) {
	now := time.Now()
	for _, s := range series {
		family, err := grouping.ParseFamily(s.Family)
		if err != nil {
			log.Warn("skip preload", zap.String("series", s.ID), zap.Error(err))
			continue
		}
		n, err := m.Load(ctx, s.ID, family, now.Add(-s.Lookback), now)
		if err != nil {
			log.Warn("preload failed", zap.String("series", s.ID), zap.Error(err))
			continue
		}
		log.Info("series preloaded", zap.String("series", s.ID), zap.Int("points", n))
	}
}

func shutdownSafe(ctx context.Context, name string, fn func(context.Context) error, log *logger.Logger) {
	log.WithContext(ctx).Info(name + ": shutting down")
	if err := fn(context.Background()); err != nil {
		log.WithContext(ctx).Error(name+" shutdown failed", zap.Error(err))
	}
}
