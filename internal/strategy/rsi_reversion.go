package strategy

import (
	"log/slog"

	"github.com/quantfall/backtester/internal/domain"
)

// RSIReversionConfig holds the tunables for the RSI mean-reversion strategy.
type RSIReversionConfig struct {
	Period     int
	Oversold   float64
	Overbought float64
	Units      int64
}

// RSIReversion wants to be long after the RSI dips below the oversold level
// and short after it rises above the overbought level; between the two
// levels it holds whatever it last wanted. Trades fire only when the desired
// position changes.
type RSIReversion struct {
	cfg     RSIReversionConfig
	desired int
	diff    signalDiff
	logger  *slog.Logger
}

// NewRSIReversion creates an RSIReversion strategy.
func NewRSIReversion(cfg RSIReversionConfig, logger *slog.Logger) *RSIReversion {
	return &RSIReversion{
		cfg:    cfg,
		logger: logger.With(slog.String("strategy", "rsi_reversion")),
	}
}

// Name returns the strategy identifier.
func (s *RSIReversion) Name() string { return "rsi_reversion" }

// Prepare adds an rsi column (Wilder smoothing over cfg.Period closes).
func (s *RSIReversion) Prepare(series domain.Series) (domain.Series, error) {
	out := series.Clone()

	closes := make([]float64, out.Len())
	for i, b := range out.Bars {
		closes[i] = b.Close
	}

	out.SetColumn("rsi", relativeStrength(closes, s.cfg.Period))
	return out, nil
}

// Decide updates the desired position from the RSI level and trades on
// changes of that desired position.
func (s *RSIReversion) Decide(row domain.Row) domain.Intent {
	rsi, ok := row.Value("rsi")
	if !ok {
		return domain.Intent{}
	}

	if rsi < s.cfg.Oversold {
		s.desired = 1
	} else if rsi > s.cfg.Overbought {
		s.desired = -1
	}

	switch d := s.diff.step(s.desired); {
	case d > 0:
		s.logger.Debug("rsi oversold entry", slog.Float64("rsi", rsi))
		return domain.Intent{Side: domain.OrderSideBuy, Quantity: s.cfg.Units}
	case d < 0:
		s.logger.Debug("rsi overbought entry", slog.Float64("rsi", rsi))
		return domain.Intent{Side: domain.OrderSideSell, Quantity: s.cfg.Units}
	default:
		return domain.Intent{}
	}
}
