package data

import (
	"context"
	"fmt"

	"github.com/quantfall/backtester/internal/domain"
)

// StoreLoader loads a series from a persistent bar store.
type StoreLoader struct {
	store  domain.BarStore
	symbol string
	opts   domain.ListOpts
}

// NewStoreLoader creates a loader over the given bar store.
func NewStoreLoader(store domain.BarStore, symbol string, opts domain.ListOpts) *StoreLoader {
	return &StoreLoader{store: store, symbol: symbol, opts: opts}
}

// Load lists bars for the symbol. The store returns them sorted ascending.
func (l *StoreLoader) Load(ctx context.Context) (domain.Series, error) {
	bars, err := l.store.List(ctx, l.symbol, l.opts)
	if err != nil {
		return domain.Series{}, fmt.Errorf("data: list bars for %s: %w", l.symbol, err)
	}
	if len(bars) == 0 {
		return domain.Series{}, fmt.Errorf("data: %s: %w", l.symbol, domain.ErrNoData)
	}
	return domain.Series{Symbol: l.symbol, Bars: bars}, nil
}
