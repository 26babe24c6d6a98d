package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/quantfall/backtester/internal/domain"
)

func curve(vals ...float64) []domain.EquityPoint {
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	out := make([]domain.EquityPoint, len(vals))
	for i, v := range vals {
		out[i] = domain.EquityPoint{Timestamp: start.Add(time.Duration(i) * time.Minute), Value: v}
	}
	return out
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{BarsPerDay: 78, DaysPerYear: 252}
}

func TestComputeMetricsTooFewPoints(t *testing.T) {
	for _, pts := range [][]domain.EquityPoint{nil, curve(100_000)} {
		m := ComputeMetrics(pts, defaultMetricsConfig())
		if m.Valid {
			t.Errorf("metrics valid for %d points", len(pts))
		}
		if len(m.Map()) != 0 {
			t.Errorf("expected empty map, got %v", m.Map())
		}
	}
}

func TestComputeMetricsKnownCurve(t *testing.T) {
	m := ComputeMetrics(curve(100, 110, 99, 108.9), defaultMetricsConfig())

	if !m.Valid {
		t.Fatal("expected valid metrics")
	}
	if math.Abs(m.TotalPnL-8.9) > 1e-9 {
		t.Errorf("pnl = %v, want 8.9", m.TotalPnL)
	}
	if m.FinalEquity != 108.9 {
		t.Errorf("final equity = %v, want 108.9", m.FinalEquity)
	}
	// Trough at 99 against the 110 peak.
	if math.Abs(m.MaxDrawdown-(-0.1)) > 1e-9 {
		t.Errorf("max drawdown = %v, want -0.1", m.MaxDrawdown)
	}
}

func TestComputeMetricsFlatCurve(t *testing.T) {
	m := ComputeMetrics(curve(100, 100, 100, 100), defaultMetricsConfig())

	if m.Sharpe != 0 {
		t.Errorf("sharpe = %v, want 0 for flat curve", m.Sharpe)
	}
	if m.MaxDrawdown != 0 {
		t.Errorf("max drawdown = %v, want 0", m.MaxDrawdown)
	}
	if m.TotalPnL != 0 {
		t.Errorf("pnl = %v, want 0", m.TotalPnL)
	}
}

func TestComputeMetricsMonotonicGainHasPositiveSharpe(t *testing.T) {
	m := ComputeMetrics(curve(100, 101, 102.01, 103.0301), defaultMetricsConfig())

	if m.Sharpe <= 0 {
		t.Errorf("sharpe = %v, want > 0 for steady gains", m.Sharpe)
	}
	if m.MaxDrawdown != 0 {
		t.Errorf("max drawdown = %v, want 0 for monotonic curve", m.MaxDrawdown)
	}
}

func TestComputeMetricsZeroEquityDoesNotDivide(t *testing.T) {
	m := ComputeMetrics(curve(0, 100, 50), defaultMetricsConfig())

	if !m.Valid {
		t.Fatal("expected valid metrics")
	}
	if math.IsNaN(m.Sharpe) || math.IsInf(m.Sharpe, 0) {
		t.Errorf("sharpe = %v, want finite", m.Sharpe)
	}
	if math.Abs(m.MaxDrawdown-(-0.5)) > 1e-9 {
		t.Errorf("max drawdown = %v, want -0.5", m.MaxDrawdown)
	}
}
