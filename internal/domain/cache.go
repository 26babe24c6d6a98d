package domain

import (
	"context"
	"time"
)

// SeriesCache memoizes loaded bar series so repeated runs over the same
// symbol/range skip the loader.
type SeriesCache interface {
	SetSeries(ctx context.Context, key string, s Series, ttl time.Duration) error
	GetSeries(ctx context.Context, key string) (Series, error)
}
