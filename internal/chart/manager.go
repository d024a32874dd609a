// internal/chart/manager.go
package chart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/grouping"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/metrics"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/series"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
)

var tracer = otel.Tracer("chart-grouping/chart")

var (
	// ErrSeriesNotFound is returned for unknown series ids.
	ErrSeriesNotFound = errors.New("chart: series not found")
	// ErrFamilyMismatch is returned when a point names a different family
	// than the registered series.
	ErrFamilyMismatch = errors.New("chart: series family mismatch")
	// ErrInvalidWidth is returned for non-positive plot widths.
	ErrInvalidWidth = errors.New("chart: plot width must be > 0")
)

// ViewCache stores computed views. Get returns (nil, nil) on a miss.
type ViewCache interface {
	Get(ctx context.Context, key string) (*View, error)
	Set(ctx context.Context, key string, v *View) error
}

// Publisher sends encoded views downstream.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// HistoryLoader returns stored points of one series in [from, to].
type HistoryLoader interface {
	LoadSeries(ctx context.Context, id string, from, to time.Time) ([]int64, []grouping.Value, error)
}

// Config controls the manager.
type Config struct {
	PlotWidth     float64 // width used for published views
	FlushInterval time.Duration
	ViewsTopic    string
	Overrides     map[grouping.Family]grouping.Override
}

// Deps are the optional collaborators; nil members are skipped.
type Deps struct {
	Cache     ViewCache
	Publisher Publisher
	History   HistoryLoader
	Ticks     grouping.TickGenerator
}

type entry struct {
	main *series.Series
	nav  *series.Series
}

// Manager is the registry of live series.
type Manager struct {
	mu     sync.RWMutex
	series map[string]*entry
	dirty  map[string]struct{}

	subMu sync.Mutex
	subs  map[string]map[chan struct{}]struct{}

	cfg  Config
	deps Deps
	log  *logger.Logger
	now  func() time.Time
}

// NewManager validates cfg and builds an empty registry.
func NewManager(cfg Config, deps Deps, log *logger.Logger) (*Manager, error) {
	if cfg.PlotWidth <= 0 {
		return nil, fmt.Errorf("chart: %w", ErrInvalidWidth)
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if deps.Ticks == nil {
		return nil, fmt.Errorf("chart: tick generator is required")
	}
	return &Manager{
		series: make(map[string]*entry),
		dirty:  make(map[string]struct{}),
		subs:   make(map[string]map[chan struct{}]struct{}),
		cfg:    cfg,
		deps:   deps,
		log:    log.Named("chart"),
		now:    time.Now,
	}, nil
}

// Options returns the resolved grouping options for a family.
func (m *Manager) Options(f grouping.Family) grouping.Options {
	return grouping.Resolve(f, m.cfg.Overrides[f])
}

func (m *Manager) release(id string) series.Releaser {
	return func(prev *series.Snapshot) {
		metrics.SnapshotsReleased.Inc()
		if m.log.Enabled(zapcore.DebugLevel) {
			m.log.Debug("snapshot released",
				zap.String("series", id),
				zap.Uint64("generation", prev.Generation),
				zap.Int("points", prev.Len()),
			)
		}
	}
}

// Register returns the series with id, creating it when absent.
func (m *Manager) Register(id string, family grouping.Family) (*series.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registerLocked(id, family)
}

func (m *Manager) registerLocked(id string, family grouping.Family) (*series.Series, error) {
	if e, ok := m.series[id]; ok {
		if e.main.Family() != family {
			return nil, fmt.Errorf("%w: %s is %s, got %s", ErrFamilyMismatch, id, e.main.Family(), family)
		}
		return e.main, nil
	}
	e := &entry{
		main: series.New(id, family, m.Options(family), m.release(id)),
		nav:  series.New(id, grouping.Navigator, m.Options(grouping.Navigator), m.release(id)),
	}
	m.series[id] = e
	m.log.Info("series registered", zap.String("series", id), zap.String("family", string(family)))
	return e.main, nil
}

// Series returns the registered series or ErrSeriesNotFound.
func (m *Manager) Series(id string) (*series.Series, error) {
	e, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return e.main, nil
}

func (m *Manager) get(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.series[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, id)
	}
	return e, nil
}

// IDs lists registered series ids in order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.series))
	for id := range m.series {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Load registers id and replaces its data with history from [from, to].
func (m *Manager) Load(ctx context.Context, id string, family grouping.Family, from, to time.Time) (int, error) {
	if m.deps.History == nil {
		return 0, fmt.Errorf("chart: no history loader configured")
	}
	ctx, span := tracer.Start(ctx, "Manager.Load", trace.WithAttributes(attribute.String("series", id)))
	defer span.End()

	x, y, err := m.deps.History.LoadSeries(ctx, id, from, to)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("load history %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.registerLocked(id, family); err != nil {
		return 0, err
	}
	e := m.series[id]
	if err := e.main.SetData(x, y); err != nil {
		return 0, fmt.Errorf("load history %s: %w", id, err)
	}
	// navigator keeps its own arrays so appends never alias
	if err := e.nav.SetData(append([]int64(nil), x...), append([]grouping.Value(nil), y...)); err != nil {
		return 0, fmt.Errorf("load history %s: %w", id, err)
	}
	m.dirty[id] = struct{}{}
	m.notify(id)
	return len(x), nil
}

// Append adds one point, registering the series on first sight.
func (m *Manager) Append(ctx context.Context, id string, family grouping.Family, t int64, v grouping.Value) error {
	m.mu.Lock()
	if _, err := m.registerLocked(id, family); err != nil {
		m.mu.Unlock()
		return err
	}
	e := m.series[id]
	if err := e.main.Append(t, v); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("append %s: %w", id, err)
	}
	if err := e.nav.Append(t, v); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("append %s navigator: %w", id, err)
	}
	m.dirty[id] = struct{}{}
	m.mu.Unlock()

	metrics.IngestedPoints.WithLabelValues(string(family)).Inc()
	m.notify(id)
	return nil
}

// View runs (or reuses from cache) a grouping pass for req.
func (m *Manager) View(ctx context.Context, req ViewRequest) (*View, error) {
	if req.PlotWidth <= 0 {
		return nil, ErrInvalidWidth
	}
	ctx, span := tracer.Start(ctx, "Manager.View", trace.WithAttributes(
		attribute.String("series", req.SeriesID),
		attribute.Float64("plot_width", req.PlotWidth),
		attribute.Bool("navigator", req.Navigator),
	))
	defer span.End()

	e, err := m.get(req.SeriesID)
	if err != nil {
		return nil, err
	}
	s := e.main
	if req.Navigator {
		s = e.nav
		req.Window = series.Window{}
	}

	key := req.cacheKey(s.Version())
	if m.deps.Cache != nil {
		cached, err := m.deps.Cache.Get(ctx, key)
		if err != nil {
			m.log.WithContext(ctx).Warn("view cache get failed", zap.String("key", key), zap.Error(err))
		} else if cached != nil {
			metrics.CacheHits.Inc()
			return cached, nil
		}
		metrics.CacheMisses.Inc()
	}

	view := m.process(ctx, e.main.Family(), s, req)

	if m.deps.Cache != nil {
		// data may have moved on since the lookup
		key = req.cacheKey(view.Version)
		if err := m.deps.Cache.Set(ctx, key, view); err != nil {
			m.log.WithContext(ctx).Warn("view cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return view, nil
}

func (m *Manager) process(ctx context.Context, family grouping.Family, s *series.Series, req ViewRequest) *View {
	start := m.now()
	snap, _ := s.Process(req.Window, req.PlotWidth, m.deps.Ticks)
	took := m.now().Sub(start)

	mode := "passthrough"
	if snap.Grouped {
		mode = "grouped"
		metrics.GroupedPoints.Observe(float64(snap.Len()))
	}
	metrics.GroupingPasses.WithLabelValues(string(s.Family()), mode).Inc()
	metrics.GroupingLatency.WithLabelValues(string(s.Family())).Observe(took.Seconds())
	if snap.Grouped {
		m.log.WithContext(ctx).Debug("grouping data took",
			zap.String("series", req.SeriesID),
			zap.Duration("took", took),
			zap.Int("points", snap.Len()),
		)
	}
	return newView(req.SeriesID, family, req.Navigator, snap)
}

// Subscribe returns a channel signalled after every change of id. The
// channel holds at most one pending signal.
func (m *Manager) Subscribe(id string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.subMu.Lock()
	set, ok := m.subs[id]
	if !ok {
		set = make(map[chan struct{}]struct{})
		m.subs[id] = set
	}
	set[ch] = struct{}{}
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs[id], ch)
			if len(m.subs[id]) == 0 {
				delete(m.subs, id)
			}
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) notify(id string) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for ch := range m.subs[id] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Run publishes grouped views of changed series every FlushInterval until
// ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if m.deps.Publisher == nil || m.cfg.ViewsTopic == "" {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.Flush(ctx); err != nil {
				m.log.WithContext(ctx).Warn("publish grouped views", zap.Error(err))
			}
		}
	}
}

// Flush publishes a full-range view of every changed series.
func (m *Manager) Flush(ctx context.Context) error {
	if m.deps.Publisher == nil {
		return nil
	}
	m.mu.Lock()
	ids := make([]string, 0, len(m.dirty))
	for id := range m.dirty {
		ids = append(ids, id)
	}
	m.dirty = make(map[string]struct{})
	m.mu.Unlock()
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := m.publish(ctx, id); err != nil {
			metrics.PublishErrors.Inc()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) publish(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Manager.publish", trace.WithAttributes(attribute.String("series", id)))
	defer span.End()

	view, err := m.View(ctx, ViewRequest{SeriesID: id, PlotWidth: m.cfg.PlotWidth})
	if err != nil {
		return err
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal view %s: %w", id, err)
	}
	if err := m.deps.Publisher.Publish(ctx, m.cfg.ViewsTopic, []byte(id), payload); err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish view %s: %w", id, err)
	}
	metrics.ViewsPublished.Inc()
	return nil
}

// Close publishes whatever changed since the last flush.
func (m *Manager) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Flush(ctx)
}
