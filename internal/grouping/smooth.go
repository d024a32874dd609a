// internal/grouping/smooth.go
package grouping

import "math"

// Smooth pins the outer labels to the visible data range and moves every
// interior label to the middle of its group. Only x is touched.
func Smooth(groupedX []int64, xMin, xMax int64, interval float64) {
	n := len(groupedX)
	if n == 0 {
		return
	}
	half := int64(math.Round(interval / 2))
	groupedX[n-1] = xMax
	for i := n - 2; i > 0; i-- {
		groupedX[i] += half
	}
	groupedX[0] = xMin
}
