package backtest

import (
	"math"

	"github.com/quantfall/backtester/internal/domain"
)

// sharpeEps guards the Sharpe denominator when returns have zero variance.
const sharpeEps = 1e-8

// ComputeMetrics derives performance metrics from an equity curve. Fewer
// than two points yields a zero-valued Metrics with Valid unset, since no
// return can be computed.
func ComputeMetrics(equity []domain.EquityPoint, cfg MetricsConfig) domain.Metrics {
	if len(equity) < 2 {
		return domain.Metrics{}
	}

	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Value
		if prev == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, equity[i].Value/prev-1)
	}

	return domain.Metrics{
		TotalPnL:    equity[len(equity)-1].Value - equity[0].Value,
		Sharpe:      sharpe(rets, cfg.BarsPerDay, cfg.DaysPerYear),
		MaxDrawdown: maxDrawdown(equity),
		FinalEquity: equity[len(equity)-1].Value,
		Valid:       true,
	}
}

// sharpe annualizes the per-bar return ratio by sqrt of the number of bars
// in a trading year.
func sharpe(rets []float64, barsPerDay, daysPerYear int) float64 {
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	variance := 0.0
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rets))

	annual := math.Sqrt(float64(barsPerDay * daysPerYear))
	return mean / (math.Sqrt(variance) + sharpeEps) * annual
}

// maxDrawdown is the most negative excursion from the running equity peak,
// expressed as a fraction. Zero when equity never declines.
func maxDrawdown(equity []domain.EquityPoint) float64 {
	peak := equity[0].Value
	worst := 0.0
	for _, p := range equity {
		if p.Value > peak {
			peak = p.Value
		}
		if peak == 0 {
			continue
		}
		dd := (p.Value - peak) / peak
		if dd < worst {
			worst = dd
		}
	}
	return worst
}
