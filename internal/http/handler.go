// internal/http/handler.go
package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/chart"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/metrics"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
)

// Viewer is the part of the chart manager the handlers need.
type Viewer interface {
	View(ctx context.Context, req chart.ViewRequest) (*chart.View, error)
	Subscribe(id string) (<-chan struct{}, func())
	IDs() []string
}

// Handler serves grouped views.
type Handler struct {
	views        Viewer
	defaultWidth float64
	maxWidth     float64
	upgrader     websocket.Upgrader
	pingPeriod   time.Duration
	log          *logger.Logger
}

// NewHandler builds the handlers. checkOrigin may be nil to accept any origin.
func NewHandler(views Viewer, defaultWidth, maxWidth float64, checkOrigin func(*http.Request) bool, log *logger.Logger) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		views:        views,
		defaultWidth: defaultWidth,
		maxWidth:     maxWidth,
		upgrader:     websocket.Upgrader{CheckOrigin: checkOrigin},
		pingPeriod:   30 * time.Second,
		log:          log.Named("http"),
	}
}

// ListSeries returns the registered series ids.
func (h *Handler) ListSeries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string][]string{"series": h.views.IDs()})
}

// Grouped serves GET /v1/series/{id}/grouped.
func (h *Handler) Grouped(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx := logger.ContextWithSeriesID(r.Context(), req.SeriesID)
	view, err := h.views.View(ctx, req)
	switch {
	case errors.Is(err, chart.ErrSeriesNotFound):
		notFound(w, "series not found")
		return
	case errors.Is(err, chart.ErrInvalidWidth):
		badRequest(w, err.Error())
		return
	case err != nil:
		h.log.WithContext(ctx).Error("view failed", zap.Error(err))
		internalError(w, "view failed")
		return
	}
	writeJSON(w, view)
}

// Stream serves GET /v1/series/{id}/stream: a websocket that receives a
// fresh view after every change of the series.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx := logger.ContextWithSeriesID(r.Context(), req.SeriesID)
	first, err := h.views.View(ctx, req)
	if errors.Is(err, chart.ErrSeriesNotFound) {
		notFound(w, "series not found")
		return
	}
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithContext(ctx).Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	changes, cancel := h.views.Subscribe(req.SeriesID)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(first); err != nil {
		return
	}
	ping := time.NewTicker(h.pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-changes:
			view, err := h.views.View(ctx, req)
			if err != nil {
				h.log.WithContext(ctx).Warn("stream view failed", zap.Error(err))
				continue
			}
			if err := conn.WriteJSON(view); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) parseRequest(r *http.Request) (chart.ViewRequest, error) {
	q := r.URL.Query()
	req := chart.ViewRequest{
		SeriesID:  chi.URLParam(r, "id"),
		PlotWidth: h.defaultWidth,
	}
	if req.SeriesID == "" {
		return req, errors.New("series id is required")
	}
	if s := q.Get("width"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return req, errors.New("width must be a positive number")
		}
		if h.maxWidth > 0 && v > h.maxWidth {
			v = h.maxWidth
		}
		req.PlotWidth = v
	}
	var err error
	if req.Window.Min, err = parseInt(q.Get("min")); err != nil {
		return req, errors.New("min must be an integer timestamp in ms")
	}
	if req.Window.Max, err = parseInt(q.Get("max")); err != nil {
		return req, errors.New("max must be an integer timestamp in ms")
	}
	switch {
	case q.Get("min") != "" && q.Get("max") == "":
		req.Window.Max = math.MaxInt64
	case q.Get("min") == "" && q.Get("max") != "":
		req.Window.Min = math.MinInt64
	}
	if q.Get("min") != "" && q.Get("max") != "" && req.Window.Min >= req.Window.Max {
		return req, errors.New("min must be less than max")
	}
	if s := q.Get("navigator"); s != "" {
		nav, err := strconv.ParseBool(s)
		if err != nil {
			return req, errors.New("navigator must be a boolean")
		}
		req.Navigator = nav
	}
	return req, nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
