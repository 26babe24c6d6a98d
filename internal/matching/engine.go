// Package matching simulates execution outcomes for submitted orders. There
// is no real counter-liquidity in a historical replay, so the engine models
// execution uncertainty as a pseudo-random choice between a full fill, a
// partial fill, and a cancellation. The outcome policy is replaceable via
// OutcomeSource.
package matching

import (
	"log/slog"
	"math/rand"

	"github.com/quantfall/backtester/internal/domain"
)

// Outcome selects the execution result class for one submission.
type Outcome int

const (
	OutcomeFill Outcome = iota
	OutcomePartial
	OutcomeCancel
)

// OutcomeSource yields the outcome for each submitted order. Implementations
// must be safe to call once per submission from the single control thread.
type OutcomeSource interface {
	Next() Outcome
}

type randomSource struct {
	rng *rand.Rand
}

// NewRandomSource returns a seeded uniform outcome source. The same seed
// reproduces the same outcome sequence.
func NewRandomSource(seed int64) OutcomeSource {
	return &randomSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *randomSource) Next() Outcome {
	return Outcome(s.rng.Intn(3))
}

type fixedSource struct {
	outcome Outcome
}

// Fixed returns a source that always yields the given outcome. Used for
// deterministic runs and tests.
func Fixed(o Outcome) OutcomeSource {
	return fixedSource{outcome: o}
}

func (s fixedSource) Next() Outcome { return s.outcome }

// Engine turns one submitted order plus a reference price into an
// ExecutionReport.
type Engine struct {
	src    OutcomeSource
	logger *slog.Logger
}

// NewEngine creates an Engine with the given outcome source.
func NewEngine(src OutcomeSource, logger *slog.Logger) *Engine {
	return &Engine{
		src:    src,
		logger: logger.With(slog.String("component", "matching")),
	}
}

// Submit produces exactly one ExecutionReport for the order. The filled
// quantity never exceeds the order's quantity, and a CANCELLED report always
// carries zero fill. Partial fills execute roughly half the requested
// quantity (at least one unit) at the reference price.
func (e *Engine) Submit(ord *domain.Order, referencePrice float64) domain.ExecutionReport {
	switch e.src.Next() {
	case OutcomeCancel:
		e.logger.Debug("order cancelled",
			slog.Int64("order_id", ord.ID),
			slog.String("side", string(ord.Side)),
		)
		return domain.ExecutionReport{
			Order:          ord,
			Status:         domain.ExecStatusCancelled,
			FilledQuantity: 0,
			AvgPrice:       0,
		}
	case OutcomePartial:
		filled := ord.Quantity / 2
		if filled < 1 {
			filled = 1
		}
		e.logger.Debug("order partially filled",
			slog.Int64("order_id", ord.ID),
			slog.Int64("filled", filled),
			slog.Float64("price", referencePrice),
		)
		return domain.ExecutionReport{
			Order:          ord,
			Status:         domain.ExecStatusPartial,
			FilledQuantity: filled,
			AvgPrice:       referencePrice,
		}
	default:
		e.logger.Debug("order filled",
			slog.Int64("order_id", ord.ID),
			slog.Int64("filled", ord.Quantity),
			slog.Float64("price", referencePrice),
		)
		return domain.ExecutionReport{
			Order:          ord,
			Status:         domain.ExecStatusFilled,
			FilledQuantity: ord.Quantity,
			AvgPrice:       referencePrice,
		}
	}
}
