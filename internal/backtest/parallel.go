package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DriverFactory builds a fresh, fully wired driver for the named strategy.
// Strategies and order managers carry per-run state, so a new instance set
// is required for every concurrent run.
type DriverFactory func(name string) (*Driver, error)

// RunAll backtests the named strategies concurrently over the same series
// and returns their results sorted by strategy name. The first factory
// error cancels the remaining runs.
func RunAll(ctx context.Context, names []string, factory DriverFactory) ([]*Result, error) {
	var (
		mu      sync.Mutex
		results []*Result
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			drv, err := factory(name)
			if err != nil {
				return fmt.Errorf("backtest: build driver %s: %w", name, err)
			}
			res := drv.Run(ctx)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Strategy < results[j].Strategy
	})
	return results, nil
}
