// Package service contains the order manager: risk gating, cash/position
// bookkeeping, and the audit trail around order flow.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantfall/backtester/internal/domain"
)

// approvalWindow is the trailing window for the per-minute order cap.
const approvalWindow = 60 * time.Second

// RiskConfig holds the tunable parameters for pre-trade risk checks.
// Supplied once at construction and read-only thereafter.
type RiskConfig struct {
	MaxNotional     float64
	MaxPosition     int64
	MaxOrdersPerMin int
}

// OrderManager enforces per-order and portfolio-level risk limits, owns the
// cash and net-position state, applies fills, and writes the audit trail. It
// is created once per run and mutated only by the single control thread.
type OrderManager struct {
	cash      float64
	position  int64
	cfg       RiskConfig
	approvals []time.Time
	audit     domain.AuditLog
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrderManager creates an OrderManager with the given starting cash.
func NewOrderManager(startingCash float64, cfg RiskConfig, audit domain.AuditLog, logger *slog.Logger) *OrderManager {
	return &OrderManager{
		cash:   startingCash,
		cfg:    cfg,
		audit:  audit,
		logger: logger.With(slog.String("component", "order_manager")),
		now:    time.Now,
	}
}

// WithClock overrides the wall clock used for rate limiting and audit
// timestamps. Intended for tests.
func (m *OrderManager) WithClock(now func() time.Time) *OrderManager {
	m.now = now
	return m
}

// Cash returns the current cash balance.
func (m *OrderManager) Cash() float64 { return m.cash }

// Position returns the current signed net position in units.
func (m *OrderManager) Position() int64 { return m.position }

// Equity returns cash plus the position marked at the given price.
func (m *OrderManager) Equity(price float64) float64 {
	return m.cash + float64(m.position)*price
}

// Approve runs the risk checks for an order and returns the outcome. It
// records a SENT audit event on approval and a REJECTED event with reason
// "risk_limit" otherwise. Cash and position are never mutated here.
//
// Checks performed, in order:
//  1. Trailing 60-second approval count below the per-minute cap
//  2. Notional (price x quantity) within the per-order cap
//  3. Position after a hypothetical full fill within the absolute cap
//  4. For buys, cash sufficient to cover the full notional
func (m *OrderManager) Approve(ctx context.Context, ord *domain.Order) bool {
	ok := m.checkRiskLimits(ctx, ord)

	if ok {
		m.approvals = append(m.approvals, m.now())
		m.log(ctx, domain.EventSent, ord, "approved")
	} else {
		m.log(ctx, domain.EventRejected, ord, "risk_limit")
	}
	return ok
}

func (m *OrderManager) checkRiskLimits(ctx context.Context, ord *domain.Order) bool {
	m.pruneApprovals()

	if len(m.approvals) >= m.cfg.MaxOrdersPerMin {
		m.logger.WarnContext(ctx, "order rate limit reached",
			slog.Int64("order_id", ord.ID),
			slog.Int("approved_last_minute", len(m.approvals)),
			slog.Int("max", m.cfg.MaxOrdersPerMin),
		)
		return false
	}

	notional := ord.Notional()
	if notional > m.cfg.MaxNotional {
		m.logger.WarnContext(ctx, "order notional exceeds limit",
			slog.Int64("order_id", ord.ID),
			slog.Float64("notional", notional),
			slog.Float64("max", m.cfg.MaxNotional),
		)
		return false
	}

	newPosition := m.position
	if ord.Side == domain.OrderSideBuy {
		newPosition += ord.Quantity
	} else {
		newPosition -= ord.Quantity
	}
	if abs64(newPosition) > m.cfg.MaxPosition {
		m.logger.WarnContext(ctx, "position limit exceeded",
			slog.Int64("order_id", ord.ID),
			slog.Int64("would_be_position", newPosition),
			slog.Int64("max", m.cfg.MaxPosition),
		)
		return false
	}

	if ord.Side == domain.OrderSideBuy && m.cash < notional {
		m.logger.WarnContext(ctx, "insufficient cash for buy",
			slog.Int64("order_id", ord.ID),
			slog.Float64("cash", m.cash),
			slog.Float64("notional", notional),
		)
		return false
	}

	return true
}

// ApplyFill updates cash and position from the fill price and quantity (not
// the original order's) and records a FILLED audit event. It must be called
// at most once per report with a nonzero fill; applying a CANCELLED report's
// data is a caller error and is not guarded here.
func (m *OrderManager) ApplyFill(ctx context.Context, ord *domain.Order, fillPrice float64, fillQty int64) {
	notional := fillPrice * float64(fillQty)
	if ord.Side == domain.OrderSideBuy {
		m.cash -= notional
		m.position += fillQty
	} else {
		m.cash += notional
		m.position -= fillQty
	}

	m.log(ctx, domain.EventFilled, ord,
		fmt.Sprintf("fill_price=%g, fill_qty=%d", fillPrice, fillQty))
}

// pruneApprovals discards approval timestamps older than the trailing window.
func (m *OrderManager) pruneApprovals() {
	now := m.now()
	kept := m.approvals[:0]
	for _, t := range m.approvals {
		if now.Sub(t) < approvalWindow {
			kept = append(kept, t)
		}
	}
	m.approvals = kept
}

// log appends one audit row. Append failures are reported but never abort
// the run.
func (m *OrderManager) log(ctx context.Context, ev domain.EventType, ord *domain.Order, details string) {
	err := m.audit.Append(ctx, domain.AuditEvent{
		Timestamp: m.now().UTC(),
		Type:      ev,
		OrderID:   ord.ID,
		Side:      ord.Side,
		Price:     ord.Price,
		Quantity:  ord.Quantity,
		Details:   details,
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "audit append failed",
			slog.String("event", string(ev)),
			slog.Int64("order_id", ord.ID),
			slog.String("error", err.Error()),
		)
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
