// internal/grouping/aggregate.go
package grouping

import "math"

// bucket is the running state of the group being filled.
type bucket struct {
	sum   float64
	count int

	// scalar first/last/extremes for the single-field approximations
	first, last, high, low float64

	// OHLC fields
	open, hi, lo, close float64
}

func (b *bucket) reset() { *b = bucket{} }

func (b *bucket) add(v Value) {
	if b.count == 0 {
		b.first, b.high, b.low = v.Y, v.Y, v.Y
		b.open, b.hi, b.lo = v.Open, v.High, v.Low
	} else {
		b.high = math.Max(b.high, v.Y)
		b.low = math.Min(b.low, v.Y)
		b.hi = math.Max(b.hi, v.High)
		b.lo = math.Min(b.lo, v.Low)
	}
	b.last = v.Y
	b.close = v.Close
	b.sum += v.Y
	b.count++
}

// value finalizes the bucket. A bucket without contributing points is a gap.
func (b *bucket) value(approx Approximation, ohlc bool) Value {
	if b.count == 0 {
		return Null
	}
	if ohlc {
		return Candle(b.open, b.hi, b.lo, b.close)
	}
	switch approx {
	case Sum:
		return Scalar(b.sum)
	case Open:
		return Scalar(b.first)
	case High:
		return Scalar(b.high)
	case Low:
		return Scalar(b.low)
	case Close:
		return Scalar(b.last)
	default:
		return Scalar(b.sum / float64(b.count))
	}
}

// Aggregate walks x/y once and folds the points into the buckets delimited
// by boundaries. Empty buckets skipped over while advancing are not emitted;
// the in-progress bucket is always flushed at the end. With no boundaries at
// all the whole input becomes one bucket labelled with its first timestamp.
func Aggregate(x []int64, y []Value, boundaries []int64, approx Approximation, ohlc bool) ([]int64, []Value) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n == 0 {
		return []int64{}, []Value{}
	}

	capHint := len(boundaries)
	if capHint == 0 {
		capHint = 1
	}
	groupedX := make([]int64, 0, capHint)
	groupedY := make([]Value, 0, capHint)

	label := func(idx int) int64 {
		if idx < len(boundaries) {
			return boundaries[idx]
		}
		return x[0]
	}

	var (
		cur int
		acc bucket
	)
	for i := 0; i < n; i++ {
		if cur+1 < len(boundaries) && x[i] >= boundaries[cur+1] {
			groupedX = append(groupedX, label(cur))
			groupedY = append(groupedY, acc.value(approx, ohlc))
			acc.reset()
			for cur+1 < len(boundaries) && x[i] >= boundaries[cur+1] {
				cur++
			}
		}
		if v := y[i]; !v.IsNull() {
			if ohlc && !v.OHLC {
				v = Candle(v.Y, v.Y, v.Y, v.Y)
			}
			acc.add(v)
		}
	}
	groupedX = append(groupedX, label(cur))
	groupedY = append(groupedY, acc.value(approx, ohlc))
	return groupedX, groupedY
}
