// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/grouping"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceName != "chart-grouping" || cfg.HTTP.Port != 8094 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Grouping.PlotWidth != 1000 || cfg.Grouping.FlushInterval != time.Second {
		t.Errorf("grouping defaults = %+v", cfg.Grouping)
	}
	if cfg.Kafka.Timeout != 15*time.Second || cfg.Kafka.Brokers[0] != "kafka:9092" {
		t.Errorf("kafka defaults = %+v", cfg.Kafka)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
kafka:
  brokers: ["k1:9092", "k2:9092"]
redis:
  url: redis://cache:6379/1
timescale:
  dsn: postgres://u:p@db:5432/charts
grouping:
  plot_width: 600
  families:
    line:
      group_pixel_width: 4
    column:
      approximation: High
      enabled: false
series:
  - id: BTCUSDT
    family: candlestick
    lookback: 720h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || len(cfg.Kafka.Brokers) != 2 || cfg.Redis.URL == "" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if len(cfg.Series) != 1 || cfg.Series[0].Lookback != 720*time.Hour {
		t.Errorf("series = %+v", cfg.Series)
	}

	ov, err := cfg.Grouping.Overrides()
	if err != nil {
		t.Fatal(err)
	}
	line := grouping.Resolve(grouping.Line, ov[grouping.Line])
	if line.GroupPixelWidth != 4 || line.Approximation != grouping.Average {
		t.Errorf("line = %+v", line)
	}
	col := grouping.Resolve(grouping.Column, ov[grouping.Column])
	if col.Enabled || col.Approximation != grouping.High {
		t.Errorf("column = %+v", col)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CHARTGROUPING_HTTP_PORT", "9000")
	t.Setenv("CHARTGROUPING_KAFKA_BROKERS", "a:1,b:2")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 9000 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
	if strings.Join(cfg.Kafka.Brokers, ",") != "a:1,b:2" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	bad := func(w float64) *float64 { return &w }
	sum := grouping.Approximation("median")

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"level", func(c *Config) { c.Logging.Level = "trace" }},
		{"port", func(c *Config) { c.HTTP.Port = 0 }},
		{"path", func(c *Config) { c.HTTP.MetricsPath = "metrics" }},
		{"brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"acks", func(c *Config) { c.Kafka.Acks = "some" }},
		{"compression", func(c *Config) { c.Kafka.Compression = "brotli" }},
		{"plotWidth", func(c *Config) { c.Grouping.PlotWidth = 0 }},
		{"maxWidth", func(c *Config) { c.Grouping.MaxPlotWidth = 10 }},
		{"family", func(c *Config) { c.Grouping.Families = map[string]grouping.Override{"pie": {}} }},
		{"approx", func(c *Config) {
			c.Grouping.Families = map[string]grouping.Override{"line": {Approximation: &sum}}
		}},
		{"gpw", func(c *Config) {
			c.Grouping.Families = map[string]grouping.Override{"line": {GroupPixelWidth: bad(-1)}}
		}},
		{"seriesNoDSN", func(c *Config) {
			c.Series = []SeriesConfig{{ID: "a", Family: "line", Lookback: time.Hour}}
		}},
		{"seriesFamily", func(c *Config) {
			c.Timescale.DSN = "postgres://x"
			c.Series = []SeriesConfig{{ID: "a", Family: "pie", Lookback: time.Hour}}
		}},
		{"seriesDup", func(c *Config) {
			c.Timescale.DSN = "postgres://x"
			c.Series = []SeriesConfig{
				{ID: "a", Family: "line", Lookback: time.Hour},
				{ID: "a", Family: "line", Lookback: time.Hour},
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := *base
			c.Kafka.Brokers = append([]string(nil), base.Kafka.Brokers...)
			tc.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
