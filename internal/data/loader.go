// Package data loads and validates historical bar series. The engine core
// assumes its input is already de-duplicated and sorted ascending; that
// guarantee is produced here.
package data

import (
	"context"

	"github.com/quantfall/backtester/internal/domain"
)

// Loader produces a validated, time-ordered bar series.
type Loader interface {
	Load(ctx context.Context) (domain.Series, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (domain.Series, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (domain.Series, error) { return f(ctx) }
