// Package feed supplies bar series to the engine: an in-memory replay
// iterator for backtests, a websocket client for remote series, and a
// websocket server that streams a series to subscribers.
package feed

import "github.com/quantfall/backtester/internal/domain"

// Replay feeds a prepared historical series one bar at a time, simulating a
// live stream. It is consumed by the single backtest control thread.
type Replay struct {
	series *domain.Series
	next   int
}

// NewReplay creates a Replay over the given series.
func NewReplay(series *domain.Series) *Replay {
	return &Replay{series: series}
}

// Len returns the total number of bars.
func (r *Replay) Len() int { return r.series.Len() }

// Next returns the next row in arrival order, or false when exhausted.
func (r *Replay) Next() (domain.Row, bool) {
	if r.next >= r.series.Len() {
		return domain.Row{}, false
	}
	row := r.series.Row(r.next)
	r.next++
	return row, true
}

// Reset rewinds the replay to the first bar.
func (r *Replay) Reset() { r.next = 0 }
