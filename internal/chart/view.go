// internal/chart/view.go
package chart

import (
	"fmt"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/grouping"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/series"
)

// ViewRequest selects what to render for one series.
type ViewRequest struct {
	SeriesID  string
	Window    series.Window
	PlotWidth float64
	// Navigator renders the full range with navigator grouping options.
	Navigator bool
}

// cacheKey is stable for a given raw-data version.
func (r ViewRequest) cacheKey(version uint64) string {
	return fmt.Sprintf("view:%s:v%d:%d:%d:%g:%t",
		r.SeriesID, version, r.Window.Min, r.Window.Max, r.PlotWidth, r.Navigator)
}

// Point is one rendered point. Y is null for gaps.
type Point struct {
	X     int64    `json:"x"`
	Y     *float64 `json:"y"`
	Open  *float64 `json:"open,omitempty"`
	High  *float64 `json:"high,omitempty"`
	Low   *float64 `json:"low,omitempty"`
	Close *float64 `json:"close,omitempty"`
}

// View is the wire form of a processed snapshot.
type View struct {
	SeriesID   string          `json:"series"`
	Family     grouping.Family `json:"family"`
	Navigator  bool            `json:"navigator,omitempty"`
	Grouped    bool            `json:"grouped"`
	Interval   float64         `json:"interval"`
	Version    uint64          `json:"version"`
	Generation uint64          `json:"generation"`
	Points     []Point         `json:"points"`
}

func newView(id string, family grouping.Family, nav bool, snap *series.Snapshot) *View {
	v := &View{
		SeriesID:   id,
		Family:     family,
		Navigator:  nav,
		Grouped:    snap.Grouped,
		Interval:   snap.Interval,
		Version:    snap.Version,
		Generation: snap.Generation,
		Points:     make([]Point, snap.Len()),
	}
	for i := range v.Points {
		v.Points[i] = toPoint(snap.X[i], snap.Y[i])
	}
	return v
}

func toPoint(x int64, val grouping.Value) Point {
	p := Point{X: x, Y: val.Ptr()}
	if val.OHLC && !val.IsNull() {
		o, h, l, c := val.Open, val.High, val.Low, val.Close
		p.Open, p.High, p.Low, p.Close = &o, &h, &l, &c
	}
	return p
}
