package data

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quantfall/backtester/internal/domain"
)

// Cached wraps a Loader with a series cache so repeated runs over the same
// symbol skip the underlying source. Cache failures fall through to the
// inner loader; they never fail a run.
type Cached struct {
	inner  Loader
	cache  domain.SeriesCache
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached creates a caching loader. key identifies the series in the
// cache; ttl bounds staleness.
func NewCached(inner Loader, cache domain.SeriesCache, key string, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{
		inner:  inner,
		cache:  cache,
		key:    key,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "series_cache")),
	}
}

// Load returns the cached series when present, otherwise loads from the
// inner loader and caches the result.
func (c *Cached) Load(ctx context.Context) (domain.Series, error) {
	series, err := c.cache.GetSeries(ctx, c.key)
	if err == nil && series.Len() > 0 {
		c.logger.Debug("series cache hit", slog.String("key", c.key), slog.Int("bars", series.Len()))
		return series, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.logger.Warn("series cache read failed", slog.String("key", c.key), slog.String("error", err.Error()))
	}

	series, err = c.inner.Load(ctx)
	if err != nil {
		return domain.Series{}, err
	}

	if err := c.cache.SetSeries(ctx, c.key, series, c.ttl); err != nil {
		c.logger.Warn("series cache write failed", slog.String("key", c.key), slog.String("error", err.Error()))
	}
	return series, nil
}
