// internal/grouping/value.go
package grouping

import "math"

// Value is a nullable y value. OHLC points carry all four price fields
// and mirror Close into Y so line-shaped consumers can still read them.
type Value struct {
	Y     float64
	Open  float64
	High  float64
	Low   float64
	Close float64
	OHLC  bool
	Valid bool
}

// Null is the gap value.
var Null = Value{}

// Scalar returns a non-null scalar value.
func Scalar(y float64) Value {
	return Value{Y: y, Valid: true}
}

// Candle returns a non-null OHLC value.
func Candle(open, high, low, closePrice float64) Value {
	return Value{
		Y:     closePrice,
		Open:  open,
		High:  high,
		Low:   low,
		Close: closePrice,
		OHLC:  true,
		Valid: true,
	}
}

// IsNull reports whether v is a gap. NaN scalars count as gaps, and so does
// a candle with any NaN price.
func (v Value) IsNull() bool {
	if !v.Valid || math.IsNaN(v.Y) {
		return true
	}
	return v.OHLC && (math.IsNaN(v.Open) || math.IsNaN(v.High) || math.IsNaN(v.Low) || math.IsNaN(v.Close))
}

// Ptr returns nil for gaps, which keeps JSON output in the null-for-gap form.
func (v Value) Ptr() *float64 {
	if v.IsNull() {
		return nil
	}
	y := v.Y
	return &y
}
