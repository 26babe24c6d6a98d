package strategy

import (
	"log/slog"

	"github.com/quantfall/backtester/internal/domain"
)

// MACrossoverConfig holds the tunables for the moving-average crossover
// strategy.
type MACrossoverConfig struct {
	Fast  int
	Slow  int
	Units int64
}

// MACrossover goes long while the fast moving average is above the slow one
// and short while it is below, trading only on crossings.
type MACrossover struct {
	cfg    MACrossoverConfig
	diff   signalDiff
	logger *slog.Logger
}

// NewMACrossover creates a MACrossover strategy.
func NewMACrossover(cfg MACrossoverConfig, logger *slog.Logger) *MACrossover {
	return &MACrossover{
		cfg:    cfg,
		logger: logger.With(slog.String("strategy", "ma_crossover")),
	}
}

// Name returns the strategy identifier.
func (s *MACrossover) Name() string { return "ma_crossover" }

// Prepare adds ma_fast, ma_slow, and a discrete signal column (+1 fast above
// slow, -1 below, 0 equal).
func (s *MACrossover) Prepare(series domain.Series) (domain.Series, error) {
	out := series.Clone()

	closes := make([]float64, out.Len())
	for i, b := range out.Bars {
		closes[i] = b.Close
	}

	fast := rollingMean(closes, s.cfg.Fast)
	slow := rollingMean(closes, s.cfg.Slow)

	signal := make([]float64, out.Len())
	for i := range signal {
		switch {
		case fast[i] > slow[i]:
			signal[i] = 1
		case fast[i] < slow[i]:
			signal[i] = -1
		}
	}

	out.SetColumn("ma_fast", fast)
	out.SetColumn("ma_slow", slow)
	out.SetColumn("signal", signal)
	return out, nil
}

// Decide emits a trade only when the discrete signal changes. The first call
// captures the initial state and stays flat.
func (s *MACrossover) Decide(row domain.Row) domain.Intent {
	sig, ok := row.Value("signal")
	if !ok {
		return domain.Intent{}
	}

	switch d := s.diff.step(int(sig)); {
	case d > 0:
		s.logger.Debug("crossover up", slog.Time("bar", row.Bar.Timestamp))
		return domain.Intent{Side: domain.OrderSideBuy, Quantity: s.cfg.Units}
	case d < 0:
		s.logger.Debug("crossover down", slog.Time("bar", row.Bar.Timestamp))
		return domain.Intent{Side: domain.OrderSideSell, Quantity: s.cfg.Units}
	default:
		return domain.Intent{}
	}
}
