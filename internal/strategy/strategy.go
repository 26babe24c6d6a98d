// Package strategy defines the trading strategy contract and the built-in
// strategies. A strategy prepares a bar series once (adding whatever derived
// columns it needs) and is then asked for a decision on every bar.
//
// Real signals are levels, not events, so each built-in strategy derives a
// discrete desired position per tick (flat, long, or short), diffs it against
// the previously desired position, and trades only on a change.
package strategy

import "github.com/quantfall/backtester/internal/domain"

// Strategy is the contract every concrete strategy implements.
type Strategy interface {
	Name() string

	// Prepare returns a copy of the series annotated with the derived
	// columns Decide needs. It is a pure transform: calling it twice on
	// the same input yields identical columns, and it may only use past
	// and current data for any bar.
	Prepare(s domain.Series) (domain.Series, error)

	// Decide returns the trade intent for one prepared bar, or the zero
	// Intent for no trade.
	Decide(row domain.Row) domain.Intent
}

// signalDiff converts a level signal into an edge-triggered trade intent.
// The first call captures the initial state and never trades.
type signalDiff struct {
	prev   int
	primed bool
}

// step feeds the current desired state and returns the state change
// (positive for a buy transition, negative for sell, zero for hold).
func (d *signalDiff) step(curr int) int {
	if !d.primed {
		d.prev = curr
		d.primed = true
		return 0
	}
	diff := curr - d.prev
	d.prev = curr
	return diff
}
