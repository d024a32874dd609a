// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/grouping"
	httpapi "github.com/YaganovValera/analytics-system/services/chart-grouping/internal/http"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/storage/timescaledb"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/backoff"
)

// -----------------------------------------------------------------------------
// Structures
// -----------------------------------------------------------------------------

type Config struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`

	Logging   LoggingConfig      `mapstructure:"logging"`
	Telemetry TelemetryConfig    `mapstructure:"telemetry"`
	HTTP      httpapi.Config     `mapstructure:"http"`
	Kafka     KafkaConfig        `mapstructure:"kafka"`
	Redis     RedisConfig        `mapstructure:"redis"`
	Timescale timescaledb.Config `mapstructure:"timescale"`

	Grouping GroupingConfig `mapstructure:"grouping"`
	Series   []SeriesConfig `mapstructure:"series"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	DevMode bool   `mapstructure:"dev_mode"`
}

type TelemetryConfig struct {
	OTLPEndpoint string        `mapstructure:"otel_endpoint"`
	Insecure     bool          `mapstructure:"insecure"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SamplerRatio float64       `mapstructure:"sampler_ratio"`
}

type KafkaConfig struct {
	Brokers     []string       `mapstructure:"brokers"`
	IngestTopic string         `mapstructure:"ingest_topic"`
	ViewsTopic  string         `mapstructure:"views_topic"`
	GroupID     string         `mapstructure:"group_id"`
	Version     string         `mapstructure:"version"`
	Oldest      bool           `mapstructure:"oldest"`
	Timeout     time.Duration  `mapstructure:"timeout"`
	Acks        string         `mapstructure:"acks"`
	Compression string         `mapstructure:"compression"`
	Backoff     backoff.Config `mapstructure:"backoff"`
}

// RedisConfig; an empty URL disables the view cache.
type RedisConfig struct {
	URL     string         `mapstructure:"url"`
	TTL     time.Duration  `mapstructure:"ttl"`
	Backoff backoff.Config `mapstructure:"backoff"`
}

type GroupingConfig struct {
	// PlotWidth is used for published views and requests without ?width.
	PlotWidth     float64                      `mapstructure:"plot_width"`
	MaxPlotWidth  float64                      `mapstructure:"max_plot_width"`
	FlushInterval time.Duration                `mapstructure:"flush_interval"`
	Families      map[string]grouping.Override `mapstructure:"families"`
}

// SeriesConfig names a series to preload from TimescaleDB at startup.
type SeriesConfig struct {
	ID       string        `mapstructure:"id"`
	Family   string        `mapstructure:"family"`
	Lookback time.Duration `mapstructure:"lookback"`
}

// -----------------------------------------------------------------------------
// Load
// -----------------------------------------------------------------------------

func Load(path string) (*Config, error) {
	v := viper.New()

	/* ---------- 1) defaults ---------- */

	v.SetDefault("service_name", "chart-grouping")
	v.SetDefault("service_version", "v1.0.0")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dev_mode", false)

	// Telemetry
	v.SetDefault("telemetry.otel_endpoint", "otel-collector:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.timeout", "5s")
	v.SetDefault("telemetry.sampler_ratio", 1.0)

	// HTTP
	v.SetDefault("http.port", 8094)
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "5s")
	v.SetDefault("http.metrics_path", "/metrics")
	v.SetDefault("http.healthz_path", "/healthz")
	v.SetDefault("http.readyz_path", "/readyz")

	// Kafka
	v.SetDefault("kafka.brokers", []string{"kafka:9092"})
	v.SetDefault("kafka.ingest_topic", "chart.points")
	v.SetDefault("kafka.views_topic", "chart.views.grouped")
	v.SetDefault("kafka.group_id", "chart-grouping")
	v.SetDefault("kafka.version", "2.1.0")
	v.SetDefault("kafka.timeout", "15s")
	v.SetDefault("kafka.acks", "all")
	v.SetDefault("kafka.compression", "none")

	// Redis
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", "10m")

	// Timescale
	v.SetDefault("timescale.dsn", "")
	v.SetDefault("timescale.table", "series_points")
	v.SetDefault("timescale.limit", 500000)

	// Grouping
	v.SetDefault("grouping.plot_width", 1000.0)
	v.SetDefault("grouping.max_plot_width", 8000.0)
	v.SetDefault("grouping.flush_interval", "1s")

	/* ---------- 2) env ---------- */

	v.SetEnvPrefix("CHARTGROUPING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	/* ---------- 3) optional file ---------- */

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	/* ---------- 4) decode ---------- */

	var cfg Config
	if err := decode(v.AllSettings(), &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	/* ---------- 5) validate ---------- */

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func decode(input map[string]interface{}, target interface{}) error {
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToScalarHook,
	)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "mapstructure",
		Result:     target,
		DecodeHook: hook,
	})
	if err != nil {
		return fmt.Errorf("create config decoder: %w", err)
	}
	return decoder.Decode(input)
}

// stringToScalarHook handles env overrides, which always arrive as strings.
func stringToScalarHook(f, t reflect.Kind, data interface{}) (interface{}, error) {
	if f != reflect.String {
		return data, nil
	}
	switch t {
	case reflect.Bool:
		return strconv.ParseBool(data.(string))
	case reflect.Float64:
		return strconv.ParseFloat(data.(string), 64)
	case reflect.Int:
		return strconv.Atoi(data.(string))
	}
	return data, nil
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

func (c *Config) Validate() error {
	// service
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required")
	}

	// logging
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error]")
	}

	// telemetry
	if c.Telemetry.OTLPEndpoint == "" {
		return fmt.Errorf("telemetry.otel_endpoint is required")
	}
	if c.Telemetry.SamplerRatio < 0 || c.Telemetry.SamplerRatio > 1 {
		return fmt.Errorf("telemetry.sampler_ratio must be within [0, 1]")
	}

	// http
	if err := validateHTTP(&c.HTTP); err != nil {
		return err
	}

	// kafka
	if err := validateKafka(&c.Kafka); err != nil {
		return err
	}

	// redis
	if c.Redis.URL != "" && c.Redis.TTL <= 0 {
		return fmt.Errorf("redis.ttl must be > 0")
	}

	// grouping
	if err := validateGrouping(&c.Grouping); err != nil {
		return err
	}

	// series preload needs a history source
	if len(c.Series) > 0 && c.Timescale.DSN == "" {
		return fmt.Errorf("series preload requires timescale.dsn")
	}
	seen := make(map[string]struct{}, len(c.Series))
	for i, s := range c.Series {
		if s.ID == "" {
			return fmt.Errorf("series[%d].id is required", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("series[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = struct{}{}
		if _, err := grouping.ParseFamily(s.Family); err != nil {
			return fmt.Errorf("series[%d].family: %w", i, err)
		}
		if s.Lookback <= 0 {
			return fmt.Errorf("series[%d].lookback must be > 0", i)
		}
	}
	return nil
}

func validateHTTP(h *httpapi.Config) error {
	if h.Port <= 0 || h.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535")
	}
	durations := map[string]time.Duration{
		"http.read_timeout":     h.ReadTimeout,
		"http.idle_timeout":     h.IdleTimeout,
		"http.shutdown_timeout": h.ShutdownTimeout,
	}
	for k, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", k)
		}
	}
	if h.WriteTimeout < 0 {
		return fmt.Errorf("http.write_timeout must be >= 0")
	}
	paths := map[string]string{
		"http.metrics_path": h.MetricsPath,
		"http.healthz_path": h.HealthzPath,
		"http.readyz_path":  h.ReadyzPath,
	}
	for k, p := range paths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with '/'", k)
		}
	}
	return nil
}

func validateKafka(k *KafkaConfig) error {
	if len(k.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	if k.IngestTopic == "" {
		return fmt.Errorf("kafka.ingest_topic is required")
	}
	if k.GroupID == "" {
		return fmt.Errorf("kafka.group_id is required")
	}
	if k.Timeout <= 0 {
		return fmt.Errorf("kafka.timeout must be > 0")
	}
	switch strings.ToLower(k.Acks) {
	case "all", "leader", "none":
	default:
		return fmt.Errorf("kafka.acks must be one of [all, leader, none]")
	}
	switch strings.ToLower(k.Compression) {
	case "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("kafka.compression must be one of [none, gzip, snappy, lz4, zstd]")
	}
	return nil
}

func validateGrouping(g *GroupingConfig) error {
	if g.PlotWidth <= 0 {
		return fmt.Errorf("grouping.plot_width must be > 0")
	}
	if g.MaxPlotWidth < g.PlotWidth {
		return fmt.Errorf("grouping.max_plot_width must be >= grouping.plot_width")
	}
	if g.FlushInterval <= 0 {
		return fmt.Errorf("grouping.flush_interval must be > 0")
	}
	_, err := g.Overrides()
	return err
}

// Overrides converts the per-family sections into typed layers.
func (g GroupingConfig) Overrides() (map[grouping.Family]grouping.Override, error) {
	out := make(map[grouping.Family]grouping.Override, len(g.Families))
	for name, o := range g.Families {
		f, err := grouping.ParseFamily(name)
		if err != nil {
			return nil, fmt.Errorf("grouping.families: %w", err)
		}
		if o.Approximation != nil {
			a, err := grouping.ParseApproximation(string(*o.Approximation))
			if err != nil {
				return nil, fmt.Errorf("grouping.families.%s: %w", name, err)
			}
			o.Approximation = &a
		}
		if o.GroupPixelWidth != nil && *o.GroupPixelWidth <= 0 {
			return nil, fmt.Errorf("grouping.families.%s.group_pixel_width must be > 0", name)
		}
		out[f] = o
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Debug print
// -----------------------------------------------------------------------------

func (c *Config) Print() {
	b, _ := json.MarshalIndent(c, "", "  ")
	fmt.Println("Loaded configuration:\n", string(b))
}
