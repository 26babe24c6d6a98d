package data

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/quantfall/backtester/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memCache is an in-memory SeriesCache for exercising the caching loader.
type memCache struct {
	store  map[string]domain.Series
	getErr error
	setErr error
	gets   int
	sets   int
}

func newMemCache() *memCache {
	return &memCache{store: make(map[string]domain.Series)}
}

func (c *memCache) SetSeries(_ context.Context, key string, s domain.Series, _ time.Duration) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.store[key] = s
	return nil
}

func (c *memCache) GetSeries(_ context.Context, key string) (domain.Series, error) {
	c.gets++
	if c.getErr != nil {
		return domain.Series{}, c.getErr
	}
	s, ok := c.store[key]
	if !ok {
		return domain.Series{}, domain.ErrNotFound
	}
	return s, nil
}

func countingLoader(series domain.Series, calls *int) Loader {
	return LoaderFunc(func(context.Context) (domain.Series, error) {
		*calls++
		return series, nil
	})
}

func oneBar() domain.Series {
	return domain.Series{Symbol: "SPY", Bars: []domain.Bar{{
		Timestamp: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
		Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
	}}}
}

func TestCachedLoadsOnceAndServesFromCache(t *testing.T) {
	cache := newMemCache()
	var calls int
	c := NewCached(countingLoader(oneBar(), &calls), cache, "SPY:csv", time.Minute, testLogger())

	for i := 0; i < 3; i++ {
		series, err := c.Load(context.Background())
		if err != nil {
			t.Fatalf("Load %d: %v", i, err)
		}
		if series.Len() != 1 {
			t.Fatalf("Load %d: bars = %d, want 1", i, series.Len())
		}
	}

	if calls != 1 {
		t.Errorf("inner loads = %d, want 1", calls)
	}
	if cache.sets != 1 {
		t.Errorf("cache writes = %d, want 1", cache.sets)
	}
}

func TestCachedReadFailureFallsThrough(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errors.New("redis down")
	var calls int
	c := NewCached(countingLoader(oneBar(), &calls), cache, "SPY:csv", time.Minute, testLogger())

	series, err := c.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if series.Len() != 1 || calls != 1 {
		t.Errorf("expected fall-through load, got bars=%d calls=%d", series.Len(), calls)
	}
}

func TestCachedWriteFailureDoesNotFailRun(t *testing.T) {
	cache := newMemCache()
	cache.setErr = errors.New("redis down")
	var calls int
	c := NewCached(countingLoader(oneBar(), &calls), cache, "SPY:csv", time.Minute, testLogger())

	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestCachedInnerErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	c := NewCached(LoaderFunc(func(context.Context) (domain.Series, error) {
		return domain.Series{}, boom
	}), newMemCache(), "SPY:csv", time.Minute, testLogger())

	if _, err := c.Load(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}
