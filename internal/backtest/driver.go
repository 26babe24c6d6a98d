// Package backtest contains the replay control loop that drives a strategy
// against a historical series through the book/matching/risk pipeline, plus
// the performance metrics derived from the resulting equity curve.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantfall/backtester/internal/book"
	"github.com/quantfall/backtester/internal/domain"
	"github.com/quantfall/backtester/internal/feed"
	"github.com/quantfall/backtester/internal/matching"
	"github.com/quantfall/backtester/internal/service"
	"github.com/quantfall/backtester/internal/strategy"
)

// Result is everything a finished run exposes at the reporting boundary:
// the equity curve, every execution report, and the derived metrics. The
// core performs no rendering.
type Result struct {
	RunID      string
	Strategy   string
	Symbol     string
	StartedAt  time.Time
	FinishedAt time.Time
	Bars       int
	Equity     []domain.EquityPoint
	Reports    []domain.ExecutionReport
	Metrics    domain.Metrics
}

// Run converts the result into the persistable run record.
func (r *Result) Run() domain.Run {
	return domain.Run{
		ID:         r.RunID,
		Strategy:   r.Strategy,
		Symbol:     r.Symbol,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Bars:       r.Bars,
		Metrics:    r.Metrics,
	}
}

// MetricsConfig holds the annualization parameters for the Sharpe ratio.
type MetricsConfig struct {
	BarsPerDay  int
	DaysPerYear int
}

// Driver runs one strategy over one prepared series. Everything executes on
// the caller's goroutine in strict per-tick sequence.
type Driver struct {
	strat    strategy.Strategy
	prepared domain.Series
	manager  *service.OrderManager
	matcher  *matching.Engine
	metrics  MetricsConfig
	logger   *slog.Logger
}

// NewDriver prepares the series with the strategy and returns a driver ready
// to run. Preparing up front keeps Run itself allocation-light and mirrors
// the one-pass indicator annotation contract.
func NewDriver(
	strat strategy.Strategy,
	series domain.Series,
	manager *service.OrderManager,
	matcher *matching.Engine,
	metrics MetricsConfig,
	logger *slog.Logger,
) (*Driver, error) {
	prepared, err := strat.Prepare(series)
	if err != nil {
		return nil, fmt.Errorf("backtest: prepare series for %s: %w", strat.Name(), err)
	}
	return &Driver{
		strat:    strat,
		prepared: prepared,
		manager:  manager,
		matcher:  matcher,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "backtest"), slog.String("strategy", strat.Name())),
	}, nil
}

// Run replays the full series to the end. Per bar: record start-of-tick
// equity, ask the strategy, add any resulting order to the book at the close
// price, risk-approve it, submit approved orders to matching at the close
// reference, and apply nonzero fills. A rejected order never reaches
// matching; a cancelled fill is never applied. No outcome aborts the replay.
func (d *Driver) Run(ctx context.Context) *Result {
	res := &Result{
		RunID:     uuid.NewString(),
		Strategy:  d.strat.Name(),
		Symbol:    d.prepared.Symbol,
		StartedAt: time.Now().UTC(),
		Bars:      d.prepared.Len(),
	}

	ob := book.New()
	replay := feed.NewReplay(&d.prepared)

	for row, ok := replay.Next(); ok; row, ok = replay.Next() {
		price := row.Bar.Close

		// Equity reflects the start-of-tick position, before this
		// tick's own order is processed.
		res.Equity = append(res.Equity, domain.EquityPoint{
			Timestamp: row.Bar.Timestamp,
			Value:     d.manager.Equity(price),
		})

		intent := d.strat.Decide(row)
		if !intent.Trade() {
			continue
		}

		ord := ob.Add(price, intent.Quantity, intent.Side, row.Bar.Timestamp)

		if !d.manager.Approve(ctx, ord) {
			continue
		}

		report := d.matcher.Submit(ord, price)
		if report.FilledQuantity > 0 {
			d.manager.ApplyFill(ctx, ord, report.AvgPrice, report.FilledQuantity)
		}
		res.Reports = append(res.Reports, report)
	}

	res.FinishedAt = time.Now().UTC()
	res.Metrics = ComputeMetrics(res.Equity, d.metrics)

	d.logger.InfoContext(ctx, "backtest finished",
		slog.String("run_id", res.RunID),
		slog.Int("bars", res.Bars),
		slog.Int("reports", len(res.Reports)),
		slog.Float64("final_cash", d.manager.Cash()),
		slog.Int64("final_position", d.manager.Position()),
	)
	return res
}
