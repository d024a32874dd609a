// internal/timeticks/ticks_test.go
package timeticks

import (
	"testing"
	"time"
)

func ms(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UnixMilli()
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		interval float64
		unit     string
		count    int
	}{
		{0, "millisecond", 1},
		{3, "millisecond", 2},
		{float64(msMinute) * 4, "minute", 5},
		{float64(msHour), "hour", 1},
		{float64(msDay), "day", 1},
		{float64(msDay) * 6, "week", 1},
		{float64(msMonth) * 2.2, "month", 2},
		{float64(msYear) * 3, "year", 5},
	}
	for _, c := range cases {
		u, n := Normalize(c.interval)
		if u.Name != c.unit || n != c.count {
			t.Errorf("Normalize(%v) = %s x%d; want %s x%d", c.interval, u.Name, n, c.unit, c.count)
		}
	}
}

func TestTimeTicks_Days(t *testing.T) {
	min := ms("2024-03-01T09:30:00Z")
	max := ms("2024-03-04T16:00:00Z")

	ticks := TimeTicks(float64(msDay), min, max)

	want := []int64{
		ms("2024-03-01T00:00:00Z"),
		ms("2024-03-02T00:00:00Z"),
		ms("2024-03-03T00:00:00Z"),
		ms("2024-03-04T00:00:00Z"),
		ms("2024-03-05T00:00:00Z"),
	}
	if len(ticks) != len(want) {
		t.Fatalf("got %d ticks; want %d", len(ticks), len(want))
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Errorf("tick %d = %s; want %s", i, time.UnixMilli(ticks[i]).UTC(), time.UnixMilli(want[i]).UTC())
		}
	}
}

func TestTimeTicks_WeeksStartMonday(t *testing.T) {
	min := ms("2024-03-06T12:00:00Z") // Wednesday
	max := ms("2024-03-20T12:00:00Z")

	ticks := TimeTicks(float64(msWeek), min, max)
	if ticks[0] != ms("2024-03-04T00:00:00Z") {
		t.Errorf("first tick = %s; want Monday 2024-03-04", time.UnixMilli(ticks[0]).UTC())
	}
	for _, tk := range ticks {
		if wd := time.UnixMilli(tk).UTC().Weekday(); wd != time.Monday {
			t.Errorf("tick %s is a %s", time.UnixMilli(tk).UTC(), wd)
		}
	}
}

func TestTimeTicks_Months(t *testing.T) {
	min := ms("2023-11-15T00:00:00Z")
	max := ms("2024-02-10T00:00:00Z")

	ticks := TimeTicks(float64(msMonth), min, max)
	want := []string{"2023-11-01", "2023-12-01", "2024-01-01", "2024-02-01", "2024-03-01"}
	if len(ticks) != len(want) {
		t.Fatalf("got %d ticks; want %d", len(ticks), len(want))
	}
	for i, w := range want {
		if got := time.UnixMilli(ticks[i]).UTC().Format("2006-01-02"); got != w {
			t.Errorf("tick %d = %s; want %s", i, got, w)
		}
	}
}

func TestTimeTicks_CoversRange(t *testing.T) {
	min := ms("2024-01-01T00:00:07Z")
	max := ms("2024-01-01T06:13:00Z")

	ticks := TimeTicks(float64(15*msMinute), min, max)
	if ticks[0] > min {
		t.Errorf("first tick %d after min %d", ticks[0], min)
	}
	if ticks[len(ticks)-1] < max {
		t.Errorf("last tick %d before max %d", ticks[len(ticks)-1], max)
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i] <= ticks[i-1] {
			t.Fatalf("ticks not strictly increasing at %d", i)
		}
	}
}
