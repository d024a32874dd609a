// pkg/redis/cache_test.go
package redis

import (
	"context"
	"testing"
	"time"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
)

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	if cfg.TTL != 10*time.Minute {
		t.Errorf("default TTL = %v; want 10m", cfg.TTL)
	}
	if err := cfg.validate(); err == nil {
		t.Error("expected error for empty URL")
	}
	cfg.URL = "redis://localhost:6379/0"
	if err := cfg.validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_InvalidURL(t *testing.T) {
	if _, err := New(context.Background(), Config{URL: "://bad"}, logger.NewNop()); err == nil {
		t.Error("expected parse error")
	}
	if _, err := New(context.Background(), Config{}, logger.NewNop()); err == nil {
		t.Error("expected validation error")
	}
}
