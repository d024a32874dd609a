// internal/ingest/processor.go
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/grouping"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/metrics"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/series"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/kafka"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
)

// ErrInvalidPoint marks messages that can never be applied.
var ErrInvalidPoint = errors.New("ingest: invalid point")

// Appender receives decoded points.
type Appender interface {
	Append(ctx context.Context, id string, family grouping.Family, t int64, v grouping.Value) error
}

// Point is the JSON form of one streamed observation.
type Point struct {
	Series string   `json:"series"`
	Family string   `json:"family"`
	T      int64    `json:"t"`
	Y      *float64 `json:"y,omitempty"`
	Open   *float64 `json:"open,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Low    *float64 `json:"low,omitempty"`
	Close  *float64 `json:"close,omitempty"`
	Null   bool     `json:"null,omitempty"`
}

// Decode parses and validates a message payload.
func Decode(data []byte) (string, grouping.Family, int64, grouping.Value, error) {
	var p Point
	if err := json.Unmarshal(data, &p); err != nil {
		return "", "", 0, grouping.Null, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	if p.Series == "" {
		return "", "", 0, grouping.Null, fmt.Errorf("%w: series is required", ErrInvalidPoint)
	}
	family := grouping.Line
	if p.Family != "" {
		f, err := grouping.ParseFamily(p.Family)
		if err != nil {
			return "", "", 0, grouping.Null, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
		}
		family = f
	}
	v, err := p.value()
	if err != nil {
		return "", "", 0, grouping.Null, err
	}
	return p.Series, family, p.T, v, nil
}

func (p Point) value() (grouping.Value, error) {
	if p.Null {
		return grouping.Null, nil
	}
	if p.Open != nil && p.High != nil && p.Low != nil && p.Close != nil {
		if *p.Low > *p.High {
			return grouping.Null, fmt.Errorf("%w: low %v above high %v", ErrInvalidPoint, *p.Low, *p.High)
		}
		return grouping.Candle(*p.Open, *p.High, *p.Low, *p.Close), nil
	}
	if p.Y != nil {
		if math.IsInf(*p.Y, 0) {
			return grouping.Null, fmt.Errorf("%w: infinite y", ErrInvalidPoint)
		}
		return grouping.Scalar(*p.Y), nil
	}
	return grouping.Null, fmt.Errorf("%w: no y or complete ohlc", ErrInvalidPoint)
}

// Processor applies ingest messages to live series.
type Processor struct {
	dst Appender
	log *logger.Logger
}

// NewProcessor builds a processor writing into dst.
func NewProcessor(dst Appender, log *logger.Logger) *Processor {
	return &Processor{dst: dst, log: log.Named("ingest")}
}

// Process handles one Kafka message. Malformed or out-of-order points are
// logged and dropped so the partition keeps moving.
func (p *Processor) Process(ctx context.Context, msg *kafka.Message) error {
	id, family, t, v, err := Decode(msg.Value)
	if err != nil {
		metrics.IngestErrors.Inc()
		p.log.WithContext(ctx).Warn("decode point", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}
	ctx = logger.ContextWithSeriesID(ctx, id)
	if err := p.dst.Append(ctx, id, family, t, v); err != nil {
		metrics.IngestErrors.Inc()
		p.log.WithContext(ctx).Warn("append point", zap.Int64("t", t), zap.Error(err))
		if errors.Is(err, series.ErrUnordered) {
			return nil
		}
		return err
	}
	return nil
}
