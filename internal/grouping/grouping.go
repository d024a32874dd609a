// internal/grouping/grouping.go

// Package grouping downsamples ordered time series to a pixel budget.
//
// A pass decides whether the visible data is denser than the plot can show,
// asks a calendar-aware TickGenerator for group boundaries, and folds the
// points into one value per group in a single forward walk.
package grouping

// TickGenerator produces calendar-aligned group boundaries for an interval
// (in milliseconds) over [min, max].
type TickGenerator interface {
	TimeTicks(interval float64, min, max int64) []int64
}

// TickFunc adapts a plain function to TickGenerator.
type TickFunc func(interval float64, min, max int64) []int64

// TimeTicks implements TickGenerator.
func (f TickFunc) TimeTicks(interval float64, min, max int64) []int64 {
	return f(interval, min, max)
}

// Input is the processed (visible-window) data of one series.
type Input struct {
	X      []int64
	Y      []Value
	Family Family
}

// Result is the output of a pass. For passthrough passes X and Y are the
// input slices themselves.
type Result struct {
	X        []int64
	Y        []Value
	Grouped  bool
	Interval float64
	// Boundaries is the number of boundaries the tick generator returned.
	Boundaries int
}

// Group runs one grouping pass. It never fails: anything that prevents
// grouping falls back to returning the input unchanged.
func Group(in Input, opts *Options, plotWidth float64, ticks TickGenerator) Result {
	passthrough := Result{X: in.X, Y: in.Y}

	n := len(in.X)
	if len(in.Y) < n {
		n = len(in.Y)
	}
	if n == 0 || ticks == nil || !ShouldGroup(opts, n, plotWidth) {
		return passthrough
	}

	xMin, xMax := in.X[0], in.X[n-1]
	interval := GroupInterval(opts.GroupPixelWidth, plotWidth, xMin, xMax)
	boundaries := ticks.TimeTicks(interval, xMin, xMax)

	gx, gy := Aggregate(in.X[:n], in.Y[:n], boundaries, opts.Approximation, in.Family.IsOHLC())
	if opts.Smoothed {
		Smooth(gx, xMin, xMax, interval)
	}
	return Result{
		X:          gx,
		Y:          gy,
		Grouped:    true,
		Interval:   interval,
		Boundaries: len(boundaries),
	}
}
