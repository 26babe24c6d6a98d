package strategy

import (
	"log/slog"

	"github.com/quantfall/backtester/internal/domain"
)

// BreakoutConfig holds the tunables for the momentum breakout strategy.
type BreakoutConfig struct {
	Lookback    int
	BreakoutPct float64
	Units       int64
}

// Breakout is trend-following: it goes long when the bar's high clears the
// prior lookback high by BreakoutPct and short when the low breaks the prior
// lookback low. Lookback levels are computed from prior bars only, so the
// current bar can never confirm its own breakout.
type Breakout struct {
	cfg      BreakoutConfig
	position int // +1 long, -1 short, 0 flat
	logger   *slog.Logger
}

// NewBreakout creates a Breakout strategy.
func NewBreakout(cfg BreakoutConfig, logger *slog.Logger) *Breakout {
	return &Breakout{
		cfg:    cfg,
		logger: logger.With(slog.String("strategy", "breakout")),
	}
}

// Name returns the strategy identifier.
func (s *Breakout) Name() string { return "breakout" }

// Prepare adds lookback_high and lookback_low columns over the previous
// cfg.Lookback bars, excluding the current bar.
func (s *Breakout) Prepare(series domain.Series) (domain.Series, error) {
	out := series.Clone()

	highs := make([]float64, out.Len())
	lows := make([]float64, out.Len())
	for i, b := range out.Bars {
		highs[i] = b.High
		lows[i] = b.Low
	}

	out.SetColumn("lookback_high", rollingMaxPrev(highs, s.cfg.Lookback))
	out.SetColumn("lookback_low", rollingMinPrev(lows, s.cfg.Lookback))
	return out, nil
}

// Decide flips the desired position on a confirmed breakout and trades the
// difference. Comparisons against the NaN levels of the first bar are always
// false, so no trade can trigger before a lookback exists.
func (s *Breakout) Decide(row domain.Row) domain.Intent {
	lookbackHigh, okHigh := row.Value("lookback_high")
	lookbackLow, okLow := row.Value("lookback_low")
	if !okHigh || !okLow {
		return domain.Intent{}
	}

	desired := s.position
	if row.Bar.High > lookbackHigh*(1+s.cfg.BreakoutPct) {
		desired = 1
	} else if row.Bar.Low < lookbackLow*(1-s.cfg.BreakoutPct) {
		desired = -1
	}

	diff := desired - s.position
	s.position = desired

	switch {
	case diff > 0:
		s.logger.Debug("breakout up",
			slog.Float64("high", row.Bar.High),
			slog.Float64("lookback_high", lookbackHigh),
		)
		return domain.Intent{Side: domain.OrderSideBuy, Quantity: s.cfg.Units}
	case diff < 0:
		s.logger.Debug("breakout down",
			slog.Float64("low", row.Bar.Low),
			slog.Float64("lookback_low", lookbackLow),
		)
		return domain.Intent{Side: domain.OrderSideSell, Quantity: s.cfg.Units}
	default:
		return domain.Intent{}
	}
}
