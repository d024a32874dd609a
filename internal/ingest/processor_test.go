// internal/ingest/processor_test.go
package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/grouping"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/series"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/kafka"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantErr bool
		family  grouping.Family
		check   func(grouping.Value) bool
	}{
		{"scalar", `{"series":"s","t":5,"y":1.5}`, false, grouping.Line,
			func(v grouping.Value) bool { return v.Valid && v.Y == 1.5 && !v.OHLC }},
		{"candle", `{"series":"s","family":"candlestick","t":5,"open":1,"high":3,"low":0.5,"close":2}`, false, grouping.Candlestick,
			func(v grouping.Value) bool { return v.OHLC && v.High == 3 && v.Y == 2 }},
		{"null", `{"series":"s","family":"column","t":5,"null":true}`, false, grouping.Column,
			func(v grouping.Value) bool { return v.IsNull() }},
		{"noSeries", `{"t":5,"y":1}`, true, "", nil},
		{"badFamily", `{"series":"s","family":"pie","y":1}`, true, "", nil},
		{"noValue", `{"series":"s","t":5}`, true, "", nil},
		{"badCandle", `{"series":"s","open":1,"high":1,"low":2,"close":1}`, true, "", nil},
		{"garbage", `{`, true, "", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			id, family, ts, v, err := Decode([]byte(c.in))
			if c.wantErr {
				if !errors.Is(err, ErrInvalidPoint) {
					t.Fatalf("expected ErrInvalidPoint, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != "s" || ts != 5 || family != c.family || !c.check(v) {
				t.Errorf("got id=%s family=%s t=%d v=%+v", id, family, ts, v)
			}
		})
	}
}

type recorder struct {
	calls int
	err   error
}

func (r *recorder) Append(context.Context, string, grouping.Family, int64, grouping.Value) error {
	r.calls++
	return r.err
}

func TestProcess(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	p := NewProcessor(rec, logger.NewNop())

	if err := p.Process(ctx, &kafka.Message{Value: []byte(`{"series":"s","t":1,"y":1}`)}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if err := p.Process(ctx, &kafka.Message{Value: []byte(`nope`)}); err != nil {
		t.Errorf("malformed messages are dropped, got %v", err)
	}
	if rec.calls != 1 {
		t.Errorf("appends = %d; want 1", rec.calls)
	}

	rec.err = series.ErrUnordered
	if err := p.Process(ctx, &kafka.Message{Value: []byte(`{"series":"s","t":0,"y":1}`)}); err != nil {
		t.Errorf("late points are dropped, got %v", err)
	}

	rec.err = errors.New("boom")
	if err := p.Process(ctx, &kafka.Message{Value: []byte(`{"series":"s","t":2,"y":1}`)}); err == nil {
		t.Error("expected append error to surface")
	}
}
