package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/quantfall/backtester/internal/audit"
	"github.com/quantfall/backtester/internal/backtest"
	"github.com/quantfall/backtester/internal/data"
	"github.com/quantfall/backtester/internal/domain"
	"github.com/quantfall/backtester/internal/feed"
	"github.com/quantfall/backtester/internal/matching"
	"github.com/quantfall/backtester/internal/service"
	"github.com/quantfall/backtester/internal/strategy"
)

// BacktestMode runs the configured strategy over the loaded series once and
// reports the metrics. The run record is optionally persisted to Postgres
// and its artifacts archived to object storage.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	series, err := a.loadSeries(ctx, deps)
	if err != nil {
		return fmt.Errorf("app: load series: %w", err)
	}

	strat, err := a.buildStrategy(a.cfg.Strategy.Name)
	if err != nil {
		return err
	}

	drv, closeLog, err := a.buildDriver(strat, series, a.cfg.Backtest.OrderLogPath)
	if err != nil {
		return err
	}
	res := drv.Run(ctx)
	if err := closeLog(); err != nil {
		a.logger.WarnContext(ctx, "close order log", slog.String("error", err.Error()))
	}

	a.reportResult(ctx, res)
	return a.finishRun(ctx, deps, res, a.cfg.Backtest.OrderLogPath)
}

// CompareMode backtests every active strategy concurrently over the same
// series, each with its own book, manager, matcher, and order log, then
// reports them side by side.
func (a *App) CompareMode(ctx context.Context, deps *Dependencies) error {
	series, err := a.loadSeries(ctx, deps)
	if err != nil {
		return fmt.Errorf("app: load series: %w", err)
	}

	names := a.cfg.Strategy.Active
	if len(names) == 0 {
		names = []string{a.cfg.Strategy.Name}
	}

	// The factory runs on the errgroup goroutines, so the bookkeeping it
	// shares needs a lock.
	var (
		mu       sync.Mutex
		logPaths = make(map[string]string, len(names))
		closers  []func() error
	)
	factory := func(name string) (*backtest.Driver, error) {
		strat, err := a.buildStrategy(name)
		if err != nil {
			return nil, err
		}
		logPath := perStrategyLogPath(a.cfg.Backtest.OrderLogPath, name)
		drv, closeLog, err := a.buildDriver(strat, series, logPath)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		logPaths[name] = logPath
		closers = append(closers, closeLog)
		mu.Unlock()
		return drv, nil
	}

	results, err := backtest.RunAll(ctx, names, factory)
	for _, closeLog := range closers {
		if cerr := closeLog(); cerr != nil {
			a.logger.WarnContext(ctx, "close order log", slog.String("error", cerr.Error()))
		}
	}
	if err != nil {
		return fmt.Errorf("app: compare run: %w", err)
	}

	for _, res := range results {
		a.reportResult(ctx, res)
		if err := a.finishRun(ctx, deps, res, logPaths[res.Strategy]); err != nil {
			return err
		}
	}
	return nil
}

// ImportMode loads the configured CSV file and bulk-inserts its bars into
// the Postgres bar store.
func (a *App) ImportMode(ctx context.Context, deps *Dependencies) error {
	if deps.BarStore == nil {
		return fmt.Errorf("app: import mode requires postgres")
	}

	loader := data.NewCSVLoader(a.cfg.Data.CSVPath, a.cfg.Data.Symbol)
	series, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("app: load csv: %w", err)
	}

	if err := deps.BarStore.InsertBatch(ctx, series.Symbol, series.Bars); err != nil {
		return fmt.Errorf("app: import bars: %w", err)
	}

	total, err := deps.BarStore.Count(ctx, series.Symbol)
	if err != nil {
		return fmt.Errorf("app: count bars: %w", err)
	}

	a.logger.InfoContext(ctx, "import finished",
		slog.String("symbol", series.Symbol),
		slog.Int("imported", series.Len()),
		slog.Int64("stored_total", total),
	)
	return nil
}

// ReplayMode serves the loaded series over a websocket endpoint until the
// context is cancelled, so another instance running with data.source = "ws"
// can consume it.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	series, err := a.loadSeries(ctx, deps)
	if err != nil {
		return fmt.Errorf("app: load series: %w", err)
	}

	srv := feed.NewServer(a.cfg.Replay.Addr, series, a.cfg.Replay.TickInterval.Duration, a.logger)
	return srv.Run(ctx)
}

// loadSeries builds the configured loader chain (source plus optional redis
// cache) and loads the bar series.
func (a *App) loadSeries(ctx context.Context, deps *Dependencies) (domain.Series, error) {
	var loader data.Loader

	switch strings.ToLower(a.cfg.Data.Source) {
	case "csv":
		loader = data.NewCSVLoader(a.cfg.Data.CSVPath, a.cfg.Data.Symbol)
	case "postgres":
		if deps.BarStore == nil {
			return domain.Series{}, fmt.Errorf("postgres source requires postgres.enabled")
		}
		loader = data.NewStoreLoader(deps.BarStore, a.cfg.Data.Symbol, domain.ListOpts{})
	case "ws":
		loader = feed.NewWSLoader(a.cfg.Data.WSURL, a.logger)
	default:
		return domain.Series{}, fmt.Errorf("unknown data source %q", a.cfg.Data.Source)
	}

	if deps.SeriesCache != nil {
		key := a.cfg.Data.Symbol + ":" + strings.ToLower(a.cfg.Data.Source)
		loader = data.NewCached(loader, deps.SeriesCache, key, a.cfg.Redis.CacheTTL.Duration, a.logger)
	}

	series, err := loader.Load(ctx)
	if err != nil {
		return domain.Series{}, err
	}

	a.logger.InfoContext(ctx, "series loaded",
		slog.String("symbol", series.Symbol),
		slog.Int("bars", series.Len()),
	)
	return series, nil
}

// buildStrategy constructs a fresh instance of the named strategy. Fresh
// instances matter: each carries its own transition state, so drivers must
// never share one.
func (a *App) buildStrategy(name string) (strategy.Strategy, error) {
	cfg := a.cfg.Strategy
	reg := strategy.NewRegistry()
	reg.Register("ma_crossover", strategy.NewMACrossover(strategy.MACrossoverConfig{
		Fast:  cfg.MACrossover.Fast,
		Slow:  cfg.MACrossover.Slow,
		Units: cfg.Units,
	}, a.logger))
	reg.Register("rsi_reversion", strategy.NewRSIReversion(strategy.RSIReversionConfig{
		Period:     cfg.RSIReversion.Period,
		Oversold:   cfg.RSIReversion.Oversold,
		Overbought: cfg.RSIReversion.Overbought,
		Units:      cfg.Units,
	}, a.logger))
	reg.Register("breakout", strategy.NewBreakout(strategy.BreakoutConfig{
		Lookback:    cfg.Breakout.Lookback,
		BreakoutPct: cfg.Breakout.BreakoutPct,
		Units:       cfg.Units,
	}, a.logger))

	strat, err := reg.Get(name)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return strat, nil
}

// buildDriver assembles the engine for one run: audit sinks, order manager,
// matcher, and driver. The returned close function releases the order log
// and must be called once the run finishes, before its artifacts are read.
func (a *App) buildDriver(strat strategy.Strategy, series domain.Series, orderLogPath string) (*backtest.Driver, func() error, error) {
	csvLog, err := audit.NewCSVLog(orderLogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("app: open order log: %w", err)
	}

	var sink domain.AuditLog = csvLog
	if a.auditStore != nil {
		sink = audit.Tee{csvLog, a.auditStore}
	}

	manager := service.NewOrderManager(
		a.cfg.Backtest.StartingCash,
		service.RiskConfig{
			MaxNotional:     a.cfg.Risk.MaxNotional,
			MaxPosition:     a.cfg.Risk.MaxPosition,
			MaxOrdersPerMin: a.cfg.Risk.MaxOrdersPerMin,
		},
		sink,
		a.logger,
	)

	matcher := matching.NewEngine(a.buildOutcomeSource(), a.logger)

	drv, err := backtest.NewDriver(strat, series, manager, matcher, backtest.MetricsConfig{
		BarsPerDay:  a.cfg.Backtest.BarsPerDay,
		DaysPerYear: a.cfg.Backtest.DaysPerYear,
	}, a.logger)
	if err != nil {
		_ = csvLog.Close()
		return nil, nil, err
	}
	return drv, csvLog.Close, nil
}

// buildOutcomeSource maps the matching config to an outcome policy.
func (a *App) buildOutcomeSource() matching.OutcomeSource {
	if strings.ToLower(a.cfg.Matching.Mode) == "fill" {
		return matching.Fixed(matching.OutcomeFill)
	}
	return matching.NewRandomSource(a.cfg.Matching.Seed)
}

// reportResult logs the metrics of one finished run.
func (a *App) reportResult(ctx context.Context, res *backtest.Result) {
	attrs := []any{
		slog.String("run_id", res.RunID),
		slog.String("strategy", res.Strategy),
		slog.String("symbol", res.Symbol),
		slog.Int("bars", res.Bars),
	}
	for name, v := range res.Metrics.Map() {
		attrs = append(attrs, slog.Float64(name, v))
	}
	a.logger.InfoContext(ctx, "run complete", attrs...)
}

// finishRun persists and archives a finished run per the results config.
func (a *App) finishRun(ctx context.Context, deps *Dependencies, res *backtest.Result, orderLogPath string) error {
	run := res.Run()

	if a.cfg.Results.Persist {
		if deps.RunStore == nil {
			return fmt.Errorf("app: results.persist requires postgres")
		}
		if err := deps.RunStore.Create(ctx, run); err != nil {
			return fmt.Errorf("app: persist run %s: %w", run.ID, err)
		}
		a.logger.InfoContext(ctx, "run persisted", slog.String("run_id", run.ID))
	}

	if a.cfg.Results.Archive {
		if deps.Archiver == nil {
			return fmt.Errorf("app: results.archive requires s3")
		}
		prefix, err := deps.Archiver.ArchiveRun(ctx, run, res.Equity, orderLogPath)
		if err != nil {
			return fmt.Errorf("app: archive run %s: %w", run.ID, err)
		}
		a.logger.InfoContext(ctx, "run archived",
			slog.String("run_id", run.ID),
			slog.String("prefix", prefix),
		)
	}

	return nil
}

// perStrategyLogPath inserts the strategy name before the extension so
// concurrent runs never share an order log file.
func perStrategyLogPath(base, name string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_" + name + ext
}
