// pkg/logger/logger.go
package logger

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	TraceIDKey   contextKey = "trace_id"
	RequestIDKey contextKey = "request_id"
	SeriesIDKey  contextKey = "series_id"
)

// Config holds parameters for logger creation.
type Config struct {
	Level   string // debug, info, warn, error
	DevMode bool   // true → development encoder, no sampling
}

// Logger wraps a *zap.Logger.
type Logger struct {
	raw *zap.Logger
}

// New builds a Logger from Config.
func New(cfg Config) (*Logger, error) {
	zapCfg := buildZapConfig(cfg.DevMode)
	if err := setZapLevel(&zapCfg, cfg.Level); err != nil {
		return nil, err
	}
	zl, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{raw: zl}, nil
}

// NewNop returns a logger that discards everything. Handy in tests.
func NewNop() *Logger {
	return &Logger{raw: zap.NewNop()}
}

func buildZapConfig(dev bool) zap.Config {
	if dev {
		return zap.NewDevelopmentConfig()
	}
	prod := zap.NewProductionConfig()
	// grouping passes run on every redraw; keep the hot path from flooding
	prod.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	ec := &prod.EncoderConfig
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.CallerKey = "caller"
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	ec.StacktraceKey = "stacktrace"
	return prod
}

func setZapLevel(cfg *zap.Config, level string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return nil
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() {
	_ = l.raw.Sync()
}

// Named returns a sub-logger with the given name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{raw: l.raw.Named(name)}
}

// With returns a logger carrying the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{raw: l.raw.With(fields...)}
}

// WithContext annotates the logger with request/series ids from ctx and the
// trace id of the active span, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := make([]zap.Field, 0, 3)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String(string(TraceIDKey), sc.TraceID().String()))
	} else if tid, ok := ctx.Value(TraceIDKey).(string); ok {
		fields = append(fields, zap.String(string(TraceIDKey), tid))
	}
	if rid, ok := ctx.Value(RequestIDKey).(string); ok {
		fields = append(fields, zap.String(string(RequestIDKey), rid))
	}
	if sid, ok := ctx.Value(SeriesIDKey).(string); ok {
		fields = append(fields, zap.String(string(SeriesIDKey), sid))
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{raw: l.raw.With(fields...)}
}

// Enabled reports whether entries at lvl would be written.
func (l *Logger) Enabled(lvl zapcore.Level) bool {
	return l.raw.Core().Enabled(lvl)
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.raw.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.raw.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.raw.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.raw.Error(msg, fields...) }

// Sugar exposes the sugared logger for printf-style call sites.
func (l *Logger) Sugar() *zap.SugaredLogger { return l.raw.Sugar() }

// ContextWithTraceID returns a new context with trace ID set.
func ContextWithTraceID(ctx context.Context, tid string) context.Context {
	return context.WithValue(ctx, TraceIDKey, tid)
}

// ContextWithRequestID returns a new context with request ID set.
func ContextWithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, RequestIDKey, rid)
}

// ContextWithSeriesID returns a new context with series ID set.
func ContextWithSeriesID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, SeriesIDKey, sid)
}
