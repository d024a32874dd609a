// internal/storage/cache/cache_test.go
package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/chart"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/internal/grouping"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/logger"
	"github.com/YaganovValera/analytics-system/services/chart-grouping/pkg/redis"
)

type memStore struct {
	m      map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMemStore() *memStore {
	return &memStore{m: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.m[key]
	if !ok {
		return nil, redis.ErrNotFound
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.m[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.m, k)
	}
	return nil
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Close() error               { return nil }

func TestViewCache_RoundTrip(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, logger.NewNop())
	ctx := context.Background()

	got, err := c.Get(ctx, "k")
	if err != nil || got != nil {
		t.Fatalf("miss = %v, %v; want nil, nil", got, err)
	}

	y := 3.5
	in := &chart.View{SeriesID: "s", Family: grouping.Line, Grouped: true, Version: 7,
		Points: []chart.Point{{X: 1, Y: &y}, {X: 2}}}
	if err := c.Set(ctx, "k", in); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if store.ttls["chartgrouping:k"] != time.Minute {
		t.Errorf("ttl = %v", store.ttls["chartgrouping:k"])
	}

	got, err = c.Get(ctx, "k")
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.Version != 7 || len(got.Points) != 2 || *got.Points[0].Y != 3.5 || got.Points[1].Y != nil {
		t.Errorf("decoded view = %+v", got)
	}
}

func TestViewCache_CorruptEntryIsMiss(t *testing.T) {
	store := newMemStore()
	store.m["chartgrouping:k"] = []byte("{not json")
	c := New(store, 0, logger.NewNop())

	got, err := c.Get(context.Background(), "k")
	if err != nil || got != nil {
		t.Fatalf("Get = %v, %v; want miss", got, err)
	}
	if _, ok := store.m["chartgrouping:k"]; ok {
		t.Error("corrupt entry should be deleted")
	}
}

func TestViewCache_StoreError(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("boom")
	c := New(store, 0, logger.NewNop())
	if _, err := c.Get(context.Background(), "k"); err == nil {
		t.Error("expected store error")
	}
}
