// internal/timeticks/ticks.go

// Package timeticks generates calendar-aligned time axis positions.
package timeticks

import (
	"math"
	"time"
)

// Unit is a calendar unit together with the multiples a tick may span.
type Unit struct {
	Name      string
	Range     int64 // approximate length in milliseconds
	Multiples []float64
}

const (
	msSecond = int64(1000)
	msMinute = 60 * msSecond
	msHour   = 60 * msMinute
	msDay    = 24 * msHour
	msWeek   = 7 * msDay
	msMonth  = 30 * msDay
	msYear   = 365 * msDay
)

// Units ordered from finest to coarsest. Years have no fixed multiples.
var Units = []Unit{
	{"millisecond", 1, []float64{1, 2, 5, 10, 20, 25, 50, 100, 200, 500}},
	{"second", msSecond, []float64{1, 2, 5, 10, 15, 30}},
	{"minute", msMinute, []float64{1, 2, 5, 10, 15, 30}},
	{"hour", msHour, []float64{1, 2, 3, 4, 6, 8, 12}},
	{"day", msDay, []float64{1, 2}},
	{"week", msWeek, []float64{1, 2}},
	{"month", msMonth, []float64{1, 2, 3, 4, 6}},
	{"year", msYear, nil},
}

// maxTicks guards against pathological intervals producing huge slices.
const maxTicks = 100000

// Normalize picks the unit and the multiple of that unit closest to the
// requested interval (milliseconds).
func Normalize(interval float64) (Unit, int) {
	i := 0
	for ; i < len(Units)-1; i++ {
		u := Units[i]
		last := u.Multiples[len(u.Multiples)-1]
		next := Units[i+1]
		if interval <= (float64(u.Range)*last+float64(next.Range))/2 {
			break
		}
	}
	u := Units[i]
	if u.Multiples == nil {
		return u, int(normalizeYears(interval / float64(u.Range)))
	}
	for j, m := range u.Multiples {
		if j == len(u.Multiples)-1 {
			return u, int(m)
		}
		if interval <= (float64(u.Range)*m+float64(u.Range)*u.Multiples[j+1])/2 {
			return u, int(m)
		}
	}
	return u, 1
}

// normalizeYears rounds a year count to 1, 2, 5 or 10 times a power of ten.
func normalizeYears(years float64) float64 {
	if years <= 1 || math.IsNaN(years) {
		return 1
	}
	magnitude := math.Pow(10, math.Floor(math.Log10(years)))
	normalized := years / magnitude
	for _, m := range []float64{1, 2, 5, 10} {
		if normalized <= m {
			return m * magnitude
		}
	}
	return 10 * magnitude
}

// TimeTicks returns UTC calendar-aligned positions covering [min, max]. The
// first position is at or before min; the last one is the first position at
// or past max, so every timestamp in range falls into some [t[i], t[i+1]).
func TimeTicks(interval float64, min, max int64) []int64 {
	if max < min {
		min, max = max, min
	}
	unit, count := Normalize(interval)
	if count < 1 {
		count = 1
	}

	start := floor(time.UnixMilli(min).UTC(), unit, count)
	ticks := make([]int64, 0, 16)
	for t := start; ; t = step(t, unit, count) {
		ms := t.UnixMilli()
		ticks = append(ticks, ms)
		if ms >= max || len(ticks) >= maxTicks {
			break
		}
	}
	return ticks
}

// Generator is a value usable wherever a tick generator interface is needed.
type Generator struct{}

// TimeTicks implements the grouping tick generator contract.
func (Generator) TimeTicks(interval float64, min, max int64) []int64 {
	return TimeTicks(interval, min, max)
}

func floor(t time.Time, u Unit, count int) time.Time {
	c := int64(count)
	switch u.Name {
	case "millisecond", "second", "minute", "hour":
		size := u.Range * c
		ms := t.UnixMilli()
		return time.UnixMilli(ms - mod(ms, size)).UTC()
	case "day":
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return d.AddDate(0, 0, -((d.Day() - 1) % count))
	case "week":
		// weeks start on Monday
		wd := int(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return time.Date(t.Year(), t.Month(), t.Day()-(wd-1), 0, 0, 0, 0, time.UTC)
	case "month":
		m := int(t.Month()) - 1
		return time.Date(t.Year(), time.Month(m-m%count+1), 1, 0, 0, 0, 0, time.UTC)
	default:
		y := t.Year()
		return time.Date(y-y%count, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
}

func step(t time.Time, u Unit, count int) time.Time {
	switch u.Name {
	case "millisecond", "second", "minute", "hour":
		return t.Add(time.Duration(u.Range*int64(count)) * time.Millisecond)
	case "day":
		return t.AddDate(0, 0, count)
	case "week":
		return t.AddDate(0, 0, 7*count)
	case "month":
		return t.AddDate(0, count, 0)
	default:
		return t.AddDate(count, 0, 0)
	}
}

func mod(a, b int64) int64 {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}
