// internal/series/series.go
package series

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/grouping"
)

var (
	// ErrLengthMismatch is returned when x and y are not index-aligned.
	ErrLengthMismatch = errors.New("series: x and y length mismatch")
	// ErrUnordered is returned when timestamps decrease.
	ErrUnordered = errors.New("series: timestamps must be non-decreasing")
)

// Snapshot is the processed data handed to renderers. It is replaced as a
// whole on every pass and never mutated afterwards.
type Snapshot struct {
	X        []int64
	Y        []grouping.Value
	Grouped  bool
	Interval float64
	// Version of the raw data the snapshot was computed from.
	Version uint64
	// Generation increases every time the snapshot identity changes.
	Generation uint64
}

// Len is the number of processed points.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.X)
}

// Releaser tears down whatever a renderer built on top of a snapshot that is
// about to be replaced.
type Releaser func(prev *Snapshot)

// Window is the visible x range. A zero window shows everything; callers
// that accept a user range must reject Min >= Max before building one.
type Window struct {
	Min int64
	Max int64
}

// IsZero reports whether w selects the full range.
func (w Window) IsZero() bool { return w.Min == 0 && w.Max == 0 }

// Series owns raw data and the current processed snapshot of one chart series.
type Series struct {
	mu sync.Mutex

	id      string
	family  grouping.Family
	opts    grouping.Options
	release Releaser

	x       []int64
	y       []grouping.Value
	version uint64

	current *Snapshot
}

// New creates an empty series.
func New(id string, family grouping.Family, opts grouping.Options, release Releaser) *Series {
	return &Series{id: id, family: family, opts: opts, release: release}
}

// ID returns the series identifier.
func (s *Series) ID() string { return s.id }

// Family returns the series family.
func (s *Series) Family() grouping.Family { return s.family }

// Options returns the resolved grouping options.
func (s *Series) Options() grouping.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// SetOptions replaces the grouping options; the next pass uses them.
func (s *Series) SetOptions(opts grouping.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
}

// SetData replaces the raw data.
func (s *Series) SetData(x []int64, y []grouping.Value) error {
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(x), len(y))
	}
	for i := 1; i < len(x); i++ {
		if x[i] < x[i-1] {
			return fmt.Errorf("%w: index %d", ErrUnordered, i)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.x, s.y = x, y
	s.version++
	return nil
}

// Append adds one point at the end of the raw data.
func (s *Series) Append(x int64, v grouping.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.x); n > 0 && x < s.x[n-1] {
		return fmt.Errorf("%w: %d before %d", ErrUnordered, x, s.x[n-1])
	}
	s.x = append(s.x, x)
	s.y = append(s.y, v)
	s.version++
	return nil
}

// Data returns copies of the raw arrays and their version.
func (s *Series) Data() ([]int64, []grouping.Value, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x := append([]int64(nil), s.x...)
	y := append([]grouping.Value(nil), s.y...)
	return x, y, s.version
}

// Len is the number of raw points.
func (s *Series) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.x)
}

// Version of the raw data.
func (s *Series) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Current returns the last processed snapshot, or nil.
func (s *Series) Current() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Process crops the raw data to w, runs a grouping pass for plotWidth and
// publishes the result. plotWidth is the full plot size whatever the window
// covers. It reports whether the snapshot identity changed;
// when it did, the previous snapshot is released before being replaced.
func (s *Series) Process(w Window, plotWidth float64, ticks grouping.TickGenerator) (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, y := s.x, s.y
	if !w.IsZero() {
		x, y = Crop(x, y, w.Min, w.Max)
	}
	opts := s.opts
	res := grouping.Group(grouping.Input{X: x, Y: y, Family: s.family}, &opts, plotWidth, ticks)

	prev := s.current
	if prev != nil && !res.Grouped && !prev.Grouped && prev.Version == s.version &&
		sameSlice(prev.X, res.X) && sameSlice(prev.Y, res.Y) {
		return prev, false
	}

	next := &Snapshot{
		X:        res.X,
		Y:        res.Y,
		Grouped:  res.Grouped,
		Interval: res.Interval,
		Version:  s.version,
	}
	if prev != nil {
		next.Generation = prev.Generation + 1
		if s.release != nil {
			s.release(prev)
		}
	}
	s.current = next
	return next, true
}

// Crop returns the sub-slices of x/y with min <= x <= max. The result shares
// backing arrays with the input.
func Crop(x []int64, y []grouping.Value, min, max int64) ([]int64, []grouping.Value) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	lo := sort.Search(n, func(i int) bool { return x[i] >= min })
	hi := sort.Search(n, func(i int) bool { return x[i] > max })
	if lo >= hi {
		return x[:0], y[:0]
	}
	return x[lo:hi], y[lo:hi]
}

func sameSlice[T any](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
