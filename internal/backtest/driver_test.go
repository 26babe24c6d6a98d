package backtest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/quantfall/backtester/internal/audit"
	"github.com/quantfall/backtester/internal/domain"
	"github.com/quantfall/backtester/internal/matching"
	"github.com/quantfall/backtester/internal/service"
	"github.com/quantfall/backtester/internal/strategy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seriesFromCloses(closes ...float64) domain.Series {
	s := domain.Series{Symbol: "TEST"}
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	for i, c := range closes {
		s.Bars = append(s.Bars, domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 1000,
		})
	}
	return s
}

func looseRisk() service.RiskConfig {
	return service.RiskConfig{
		MaxNotional:     1_000_000,
		MaxPosition:     1_000,
		MaxOrdersPerMin: 1_000,
	}
}

// countingSource records how many outcomes matching has drawn, which equals
// the number of orders that reached the engine.
type countingSource struct {
	n       int
	outcome matching.Outcome
}

func (s *countingSource) Next() matching.Outcome {
	s.n++
	return s.outcome
}

func TestRunEndToEnd(t *testing.T) {
	// Closes 100,101,99,102,98 with fast=2/slow=3 cross down on bar 3 and
	// back up on bar 4: sell 10 at 102, buy 10 at 98, netting +40.
	strat := strategy.NewMACrossover(strategy.MACrossoverConfig{Fast: 2, Slow: 3, Units: 10}, testLogger())
	manager := service.NewOrderManager(100_000, looseRisk(), audit.Nop{}, testLogger())
	matcher := matching.NewEngine(matching.Fixed(matching.OutcomeFill), testLogger())

	drv, err := NewDriver(strat, seriesFromCloses(100, 101, 99, 102, 98), manager, matcher,
		MetricsConfig{BarsPerDay: 78, DaysPerYear: 252}, testLogger())
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	res := drv.Run(context.Background())

	if res.RunID == "" {
		t.Error("expected a run id")
	}
	if res.Symbol != "TEST" || res.Strategy != "ma_crossover" || res.Bars != 5 {
		t.Errorf("unexpected result header: %+v", res)
	}

	wantEquity := []float64{100_000, 100_000, 100_000, 100_000, 100_040}
	if len(res.Equity) != len(wantEquity) {
		t.Fatalf("equity points = %d, want %d", len(res.Equity), len(wantEquity))
	}
	for i, want := range wantEquity {
		if res.Equity[i].Value != want {
			t.Errorf("equity[%d] = %v, want %v", i, res.Equity[i].Value, want)
		}
	}

	if len(res.Reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(res.Reports))
	}
	for i, rep := range res.Reports {
		if rep.Status != domain.ExecStatusFilled {
			t.Errorf("report %d: status = %s, want FILLED", i, rep.Status)
		}
	}
	if res.Reports[0].Order.Side != domain.OrderSideSell || res.Reports[0].AvgPrice != 102 {
		t.Errorf("first fill = %+v, want SELL at 102", res.Reports[0])
	}
	if res.Reports[1].Order.Side != domain.OrderSideBuy || res.Reports[1].AvgPrice != 98 {
		t.Errorf("second fill = %+v, want BUY at 98", res.Reports[1])
	}

	if manager.Cash() != 100_040 || manager.Position() != 0 {
		t.Errorf("final cash %v position %d, want 100040 flat", manager.Cash(), manager.Position())
	}

	if !res.Metrics.Valid {
		t.Fatal("expected valid metrics")
	}
	if res.Metrics.TotalPnL != 40 || res.Metrics.FinalEquity != 100_040 {
		t.Errorf("metrics = %+v, want pnl 40 final 100040", res.Metrics)
	}
}

func TestRunRejectedOrderNeverReachesMatching(t *testing.T) {
	strat := strategy.NewMACrossover(strategy.MACrossoverConfig{Fast: 2, Slow: 3, Units: 10}, testLogger())

	// A one-dollar notional cap rejects every order.
	risk := looseRisk()
	risk.MaxNotional = 1
	manager := service.NewOrderManager(100_000, risk, audit.Nop{}, testLogger())

	src := &countingSource{outcome: matching.OutcomeFill}
	matcher := matching.NewEngine(src, testLogger())

	drv, err := NewDriver(strat, seriesFromCloses(100, 101, 99, 102, 98), manager, matcher,
		MetricsConfig{BarsPerDay: 78, DaysPerYear: 252}, testLogger())
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	res := drv.Run(context.Background())

	if src.n != 0 {
		t.Errorf("matching saw %d orders, want 0", src.n)
	}
	if len(res.Reports) != 0 {
		t.Errorf("reports = %d, want 0", len(res.Reports))
	}
	if manager.Cash() != 100_000 || manager.Position() != 0 {
		t.Errorf("rejections mutated state: cash %v position %d", manager.Cash(), manager.Position())
	}
}

func TestRunCancelledFillNotApplied(t *testing.T) {
	strat := strategy.NewMACrossover(strategy.MACrossoverConfig{Fast: 2, Slow: 3, Units: 10}, testLogger())
	manager := service.NewOrderManager(100_000, looseRisk(), audit.Nop{}, testLogger())
	matcher := matching.NewEngine(matching.Fixed(matching.OutcomeCancel), testLogger())

	drv, err := NewDriver(strat, seriesFromCloses(100, 101, 99, 102, 98), manager, matcher,
		MetricsConfig{BarsPerDay: 78, DaysPerYear: 252}, testLogger())
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	res := drv.Run(context.Background())

	// Cancelled orders still produce reports but leave the portfolio alone.
	if len(res.Reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(res.Reports))
	}
	for i, rep := range res.Reports {
		if rep.Status != domain.ExecStatusCancelled || rep.FilledQuantity != 0 {
			t.Errorf("report %d: %+v, want zero-fill CANCELLED", i, rep)
		}
	}
	if manager.Cash() != 100_000 || manager.Position() != 0 {
		t.Errorf("cancel mutated state: cash %v position %d", manager.Cash(), manager.Position())
	}
}

func TestRunAllSortsByStrategy(t *testing.T) {
	series := seriesFromCloses(100, 101, 99, 102, 98)

	factory := func(name string) (*Driver, error) {
		var strat strategy.Strategy
		switch name {
		case "ma_crossover":
			strat = strategy.NewMACrossover(strategy.MACrossoverConfig{Fast: 2, Slow: 3, Units: 10}, testLogger())
		case "breakout":
			strat = strategy.NewBreakout(strategy.BreakoutConfig{Lookback: 2, BreakoutPct: 0.01, Units: 10}, testLogger())
		default:
			return nil, errors.New("unknown strategy")
		}
		manager := service.NewOrderManager(100_000, looseRisk(), audit.Nop{}, testLogger())
		matcher := matching.NewEngine(matching.Fixed(matching.OutcomeFill), testLogger())
		return NewDriver(strat, series, manager, matcher,
			MetricsConfig{BarsPerDay: 78, DaysPerYear: 252}, testLogger())
	}

	results, err := RunAll(context.Background(), []string{"ma_crossover", "breakout"}, factory)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Strategy != "breakout" || results[1].Strategy != "ma_crossover" {
		t.Errorf("order = %s, %s, want breakout first", results[0].Strategy, results[1].Strategy)
	}
}

func TestRunAllFactoryErrorAborts(t *testing.T) {
	factory := func(name string) (*Driver, error) {
		return nil, errors.New("boom")
	}
	if _, err := RunAll(context.Background(), []string{"ma_crossover"}, factory); err == nil {
		t.Fatal("expected factory error to propagate")
	}
}
