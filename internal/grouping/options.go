// internal/grouping/options.go
package grouping

import (
	"fmt"
	"strings"
)

// Approximation selects the aggregate computed for a bucket.
type Approximation string

const (
	Average Approximation = "average"
	Sum     Approximation = "sum"
	Open    Approximation = "open"
	High    Approximation = "high"
	Low     Approximation = "low"
	Close   Approximation = "close"
)

// ParseApproximation validates a configured approximation name.
func ParseApproximation(s string) (Approximation, error) {
	switch a := Approximation(strings.ToLower(strings.TrimSpace(s))); a {
	case Average, Sum, Open, High, Low, Close:
		return a, nil
	default:
		return "", fmt.Errorf("unsupported approximation %q", s)
	}
}

// Family is a series type. Families differ only in their grouping defaults
// and in whether buckets aggregate all four OHLC fields.
type Family string

const (
	Line        Family = "line"
	Spline      Family = "spline"
	Area        Family = "area"
	AreaSpline  Family = "areaspline"
	Column      Family = "column"
	OHLC        Family = "ohlc"
	Candlestick Family = "candlestick"
	Navigator   Family = "navigator"
)

// Families lists every known family.
var Families = []Family{Line, Spline, Area, AreaSpline, Column, OHLC, Candlestick, Navigator}

// ParseFamily validates a family name.
func ParseFamily(s string) (Family, error) {
	f := Family(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := familyLayers[f]; !ok {
		return "", fmt.Errorf("unknown series family %q", s)
	}
	return f, nil
}

// IsOHLC reports whether buckets of this family aggregate open/high/low/close.
func (f Family) IsOHLC() bool {
	return f == OHLC || f == Candlestick
}

// Options are the resolved grouping settings of one series.
type Options struct {
	Enabled         bool          `mapstructure:"enabled" json:"enabled"`
	Approximation   Approximation `mapstructure:"approximation" json:"approximation"`
	GroupPixelWidth float64       `mapstructure:"group_pixel_width" json:"groupPixelWidth"`
	Smoothed        bool          `mapstructure:"smoothed" json:"smoothed"`
}

// Override is a partial Options layer; nil fields inherit from below.
type Override struct {
	Enabled         *bool          `mapstructure:"enabled"`
	Approximation   *Approximation `mapstructure:"approximation"`
	GroupPixelWidth *float64       `mapstructure:"group_pixel_width"`
	Smoothed        *bool          `mapstructure:"smoothed"`
}

// Apply layers o on top of base.
func (o Override) Apply(base Options) Options {
	if o.Enabled != nil {
		base.Enabled = *o.Enabled
	}
	if o.Approximation != nil {
		base.Approximation = *o.Approximation
	}
	if o.GroupPixelWidth != nil {
		base.GroupPixelWidth = *o.GroupPixelWidth
	}
	if o.Smoothed != nil {
		base.Smoothed = *o.Smoothed
	}
	return base
}

var (
	lineLike = Options{Enabled: true, Approximation: Average, GroupPixelWidth: 2}
	barLike  = Options{Enabled: true, Approximation: Sum, GroupPixelWidth: 10}
)

func ptr[T any](v T) *T { return &v }

// familyLayers describes each family as a parent plus its own override.
var familyLayers = map[Family]struct {
	parent   Family
	override Override
}{
	Line:        {},
	Spline:      {parent: Line},
	Area:        {parent: Line},
	AreaSpline:  {parent: Line},
	Column:      {},
	OHLC:        {parent: Column},
	Candlestick: {parent: OHLC},
	Navigator: {parent: AreaSpline, override: Override{
		Enabled:         ptr(true),
		Approximation:   ptr(Average),
		GroupPixelWidth: ptr(5.0),
		Smoothed:        ptr(true),
	}},
}

// Defaults returns the built-in options of a family. Unknown families get
// the line-like defaults.
func Defaults(f Family) Options {
	layer, ok := familyLayers[f]
	if !ok {
		return lineLike
	}
	var base Options
	switch {
	case layer.parent != "":
		base = Defaults(layer.parent)
	case f == Column:
		base = barLike
	default:
		base = lineLike
	}
	return layer.override.Apply(base)
}

// Resolve merges the family defaults with the given layers, lowest first.
func Resolve(f Family, layers ...Override) Options {
	opts := Defaults(f)
	for _, l := range layers {
		opts = l.Apply(opts)
	}
	return opts
}
