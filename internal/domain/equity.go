package domain

import "time"

// EquityPoint is one sample of the equity curve: cash plus marked-to-close
// position value at the start of a tick.
type EquityPoint struct {
	Timestamp time.Time
	Value     float64
}

// Metrics summarizes a finished run. A zero Metrics (Valid == false) means
// the equity curve had fewer than two points.
type Metrics struct {
	TotalPnL    float64
	Sharpe      float64
	MaxDrawdown float64
	FinalEquity float64
	Valid       bool
}

// Map exposes the metrics at the reporting boundary.
func (m Metrics) Map() map[string]float64 {
	if !m.Valid {
		return map[string]float64{}
	}
	return map[string]float64{
		"total_pnl":    m.TotalPnL,
		"sharpe":       m.Sharpe,
		"max_drawdown": m.MaxDrawdown,
		"final_equity": m.FinalEquity,
	}
}

// Run records one completed backtest for persistence and archiving.
type Run struct {
	ID         string
	Strategy   string
	Symbol     string
	StartedAt  time.Time
	FinishedAt time.Time
	Bars       int
	Metrics    Metrics
}
