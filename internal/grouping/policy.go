// internal/grouping/policy.go
package grouping

import "math"

// MaxPoints is the number of points that fit the plot at the given
// group pixel width. It returns 0 when the budget cannot be computed.
func MaxPoints(plotWidth, groupPixelWidth float64) float64 {
	if !validWidth(plotWidth) || !validWidth(groupPixelWidth) {
		return 0
	}
	return plotWidth / groupPixelWidth
}

// ShouldGroup decides whether a pass must aggregate. Disabled options and
// unusable widths never group.
func ShouldGroup(opts *Options, dataLength int, plotWidth float64) bool {
	if opts == nil || !opts.Enabled {
		return false
	}
	if !validWidth(plotWidth) || !validWidth(opts.GroupPixelWidth) {
		return false
	}
	return float64(dataLength) > MaxPoints(plotWidth, opts.GroupPixelWidth)
}

// GroupInterval is the time span one group covers on screen:
// groupPixelWidth * (xMax - xMin) / plotWidth.
func GroupInterval(groupPixelWidth, plotWidth float64, xMin, xMax int64) float64 {
	if !validWidth(plotWidth) {
		return 0
	}
	return groupPixelWidth * float64(xMax-xMin) / plotWidth
}

func validWidth(w float64) bool {
	return w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}
