// internal/storage/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/chart"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/redis"
)

var tracer = otel.Tracer("chart-grouping/storage/cache")

// ViewCache keeps encoded grouped views in a key/value store.
type ViewCache struct {
	store  redis.Storage
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

// New wraps store. ttl <= 0 falls back to the store default.
func New(store redis.Storage, ttl time.Duration, log *logger.Logger) *ViewCache {
	return &ViewCache{store: store, ttl: ttl, prefix: "chartgrouping:", log: log.Named("view-cache")}
}

// Get returns the cached view or (nil, nil) when absent.
func (c *ViewCache) Get(ctx context.Context, key string) (*chart.View, error) {
	ctx, span := tracer.Start(ctx, "ViewCache.Get")
	defer span.End()

	data, err := c.store.Get(ctx, c.prefix+key)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("view cache get: %w", err)
	}
	var v chart.View
	if err := json.Unmarshal(data, &v); err != nil {
		// stale layout, treat as a miss
		c.log.WithContext(ctx).Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = c.store.Delete(ctx, c.prefix+key)
		return nil, nil
	}
	return &v, nil
}

// Set stores v under key.
func (c *ViewCache) Set(ctx context.Context, key string, v *chart.View) error {
	ctx, span := tracer.Start(ctx, "ViewCache.Set")
	defer span.End()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("view cache marshal: %w", err)
	}
	if err := c.store.Set(ctx, c.prefix+key, data, c.ttl); err != nil {
		span.RecordError(err)
		return fmt.Errorf("view cache set: %w", err)
	}
	return nil
}
