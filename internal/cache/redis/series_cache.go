package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantfall/backtester/internal/domain"
)

// SeriesCache implements domain.SeriesCache using Redis string values.
// Each series is stored as JSON at key "series:{key}" with a TTL. Only the
// raw bars are cached; derived columns are strategy-specific and recomputed
// per run.
type SeriesCache struct {
	rdb *redis.Client
}

// NewSeriesCache creates a SeriesCache backed by the given Client.
func NewSeriesCache(c *Client) *SeriesCache {
	return &SeriesCache{rdb: c.Underlying()}
}

var _ domain.SeriesCache = (*SeriesCache)(nil)

func seriesKey(key string) string {
	return "series:" + key
}

// wireBar carries one bar with float fields encoded as strings. Loaders may
// leave NaN in open/high/low/volume, which encoding/json refuses to emit as
// a number.
type wireBar struct {
	TS     int64  `json:"ts"`
	Open   string `json:"o"`
	High   string `json:"h"`
	Low    string `json:"l"`
	Close  string `json:"c"`
	Volume string `json:"v"`
}

type wireSeries struct {
	Symbol string    `json:"symbol"`
	Bars   []wireBar `json:"bars"`
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SetSeries stores the series bars under the key with the given TTL.
func (sc *SeriesCache) SetSeries(ctx context.Context, key string, s domain.Series, ttl time.Duration) error {
	ws := wireSeries{Symbol: s.Symbol, Bars: make([]wireBar, 0, len(s.Bars))}
	for _, b := range s.Bars {
		ws.Bars = append(ws.Bars, wireBar{
			TS:     b.Timestamp.UnixNano(),
			Open:   ff(b.Open),
			High:   ff(b.High),
			Low:    ff(b.Low),
			Close:  ff(b.Close),
			Volume: ff(b.Volume),
		})
	}

	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("redis: marshal series %s: %w", key, err)
	}
	if err := sc.rdb.Set(ctx, seriesKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set series %s: %w", key, err)
	}
	return nil
}

// GetSeries retrieves a cached series. It returns domain.ErrNotFound when
// the key does not exist or has expired.
func (sc *SeriesCache) GetSeries(ctx context.Context, key string) (domain.Series, error) {
	data, err := sc.rdb.Get(ctx, seriesKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Series{}, domain.ErrNotFound
		}
		return domain.Series{}, fmt.Errorf("redis: get series %s: %w", key, err)
	}

	var ws wireSeries
	if err := json.Unmarshal(data, &ws); err != nil {
		return domain.Series{}, fmt.Errorf("redis: unmarshal series %s: %w", key, err)
	}

	s := domain.Series{Symbol: ws.Symbol, Bars: make([]domain.Bar, 0, len(ws.Bars))}
	for _, wb := range ws.Bars {
		bar := domain.Bar{Timestamp: time.Unix(0, wb.TS).UTC()}
		for _, f := range []struct {
			raw string
			dst *float64
		}{
			{wb.Open, &bar.Open},
			{wb.High, &bar.High},
			{wb.Low, &bar.Low},
			{wb.Close, &bar.Close},
			{wb.Volume, &bar.Volume},
		} {
			v, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return domain.Series{}, fmt.Errorf("redis: parse series %s field %q: %w", key, f.raw, err)
			}
			*f.dst = v
		}
		s.Bars = append(s.Bars, bar)
	}
	return s, nil
}
