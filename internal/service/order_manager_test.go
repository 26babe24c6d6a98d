package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/quantfall/backtester/internal/audit"
	"github.com/quantfall/backtester/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultRisk() RiskConfig {
	return RiskConfig{
		MaxNotional:     10_000,
		MaxPosition:     100,
		MaxOrdersPerMin: 5,
	}
}

// recordingLog captures events for assertions.
type recordingLog struct {
	events []domain.AuditEvent
}

func (r *recordingLog) Append(_ context.Context, ev domain.AuditEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func order(id int64, side domain.OrderSide, price float64, qty int64) *domain.Order {
	return &domain.Order{
		ID:          id,
		Side:        side,
		Price:       price,
		Quantity:    qty,
		SubmittedAt: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestApproveWithinLimits(t *testing.T) {
	log := &recordingLog{}
	m := NewOrderManager(100_000, defaultRisk(), log, testLogger())

	if !m.Approve(context.Background(), order(1, domain.OrderSideBuy, 100, 10)) {
		t.Fatal("expected approval")
	}
	if len(log.events) != 1 || log.events[0].Type != domain.EventSent {
		t.Fatalf("expected one SENT event, got %+v", log.events)
	}
}

func TestRejectNotional(t *testing.T) {
	log := &recordingLog{}
	m := NewOrderManager(1_000_000, defaultRisk(), log, testLogger())

	// 200 * 100 = 20000 > 10000 cap.
	if m.Approve(context.Background(), order(1, domain.OrderSideBuy, 200, 100)) {
		t.Fatal("expected rejection on notional")
	}
	if len(log.events) != 1 || log.events[0].Type != domain.EventRejected {
		t.Fatalf("expected one REJECTED event, got %+v", log.events)
	}
	if log.events[0].Details != "risk_limit" {
		t.Errorf("details = %q, want risk_limit", log.events[0].Details)
	}
}

func TestRejectPositionLimit(t *testing.T) {
	m := NewOrderManager(1_000_000, defaultRisk(), audit.Nop{}, testLogger())
	ctx := context.Background()

	ord := order(1, domain.OrderSideBuy, 10, 95)
	if !m.Approve(ctx, ord) {
		t.Fatal("expected first approval")
	}
	m.ApplyFill(ctx, ord, 10, 95)

	// 95 + 10 would breach the 100-unit cap.
	if m.Approve(ctx, order(2, domain.OrderSideBuy, 10, 10)) {
		t.Fatal("expected rejection on position limit")
	}
	// A sell reducing the position is fine.
	if !m.Approve(ctx, order(3, domain.OrderSideSell, 10, 10)) {
		t.Fatal("expected sell approval")
	}
}

func TestRejectShortPositionLimit(t *testing.T) {
	m := NewOrderManager(1_000_000, defaultRisk(), audit.Nop{}, testLogger())
	ctx := context.Background()

	// Selling 101 from flat would breach |position| <= 100.
	if m.Approve(ctx, order(1, domain.OrderSideSell, 10, 101)) {
		t.Fatal("expected rejection on short position limit")
	}
}

func TestRejectInsufficientCash(t *testing.T) {
	m := NewOrderManager(500, defaultRisk(), audit.Nop{}, testLogger())

	if m.Approve(context.Background(), order(1, domain.OrderSideBuy, 100, 6)) {
		t.Fatal("expected rejection on cash")
	}
	// Sells are not cash-constrained.
	if !m.Approve(context.Background(), order(2, domain.OrderSideSell, 100, 6)) {
		t.Fatal("expected sell approval")
	}
}

func TestRejectionNeverMutatesState(t *testing.T) {
	m := NewOrderManager(500, defaultRisk(), audit.Nop{}, testLogger())

	m.Approve(context.Background(), order(1, domain.OrderSideBuy, 100, 6))
	if m.Cash() != 500 || m.Position() != 0 {
		t.Fatalf("rejection mutated state: cash %v position %d", m.Cash(), m.Position())
	}
}

func TestApplyFillArithmetic(t *testing.T) {
	m := NewOrderManager(100_000, defaultRisk(), audit.Nop{}, testLogger())
	ctx := context.Background()

	buy := order(1, domain.OrderSideBuy, 50, 10)
	m.ApplyFill(ctx, buy, 50, 10)
	if m.Cash() != 99_500 {
		t.Errorf("cash after buy = %v, want 99500", m.Cash())
	}
	if m.Position() != 10 {
		t.Errorf("position after buy = %d, want 10", m.Position())
	}

	sell := order(2, domain.OrderSideSell, 60, 10)
	m.ApplyFill(ctx, sell, 60, 10)
	if m.Cash() != 100_100 {
		t.Errorf("cash after sell = %v, want 100100", m.Cash())
	}
	if m.Position() != 0 {
		t.Errorf("position after sell = %d, want 0", m.Position())
	}
}

func TestApplyFillUsesFillPriceNotOrderPrice(t *testing.T) {
	m := NewOrderManager(100_000, defaultRisk(), audit.Nop{}, testLogger())

	// Order priced at 50 but partially filled at 48 for 4 units.
	buy := order(1, domain.OrderSideBuy, 50, 10)
	m.ApplyFill(context.Background(), buy, 48, 4)
	if m.Cash() != 100_000-48*4 {
		t.Errorf("cash = %v, want %v", m.Cash(), 100_000-48*4)
	}
	if m.Position() != 4 {
		t.Errorf("position = %d, want 4", m.Position())
	}
}

func TestEquityMarksPositionToPrice(t *testing.T) {
	m := NewOrderManager(1_000, defaultRisk(), audit.Nop{}, testLogger())
	m.ApplyFill(context.Background(), order(1, domain.OrderSideBuy, 10, 5), 10, 5)

	// cash 950 + 5 * 12
	if got := m.Equity(12); got != 1_010 {
		t.Errorf("equity = %v, want 1010", got)
	}
}

func TestRateLimitTrailingWindow(t *testing.T) {
	log := &recordingLog{}
	m := NewOrderManager(1_000_000, defaultRisk(), log, testLogger())
	ctx := context.Background()

	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	m.WithClock(func() time.Time { return now })

	for i := 0; i < 5; i++ {
		if !m.Approve(ctx, order(int64(i), domain.OrderSideBuy, 10, 1)) {
			t.Fatalf("order %d: expected approval", i)
		}
	}

	// Sixth order inside the window is rejected regardless of its size.
	if m.Approve(ctx, order(5, domain.OrderSideBuy, 10, 1)) {
		t.Fatal("expected rate-limit rejection")
	}

	// After the window slides past the old approvals, orders flow again.
	now = now.Add(61 * time.Second)
	if !m.Approve(ctx, order(6, domain.OrderSideBuy, 10, 1)) {
		t.Fatal("expected approval after window expiry")
	}

	var rejected int
	for _, ev := range log.events {
		if ev.Type == domain.EventRejected {
			rejected++
		}
	}
	if rejected != 1 {
		t.Errorf("rejected events = %d, want 1", rejected)
	}
}

func TestEveryStateChangeIsAudited(t *testing.T) {
	log := &recordingLog{}
	m := NewOrderManager(100_000, defaultRisk(), log, testLogger())
	ctx := context.Background()

	ord := order(1, domain.OrderSideBuy, 100, 10)
	m.Approve(ctx, ord)
	m.ApplyFill(ctx, ord, 100, 10)
	m.Approve(ctx, order(2, domain.OrderSideBuy, 200, 100)) // rejected on notional

	want := []domain.EventType{domain.EventSent, domain.EventFilled, domain.EventRejected}
	if len(log.events) != len(want) {
		t.Fatalf("got %d events, want %d", len(log.events), len(want))
	}
	for i, ev := range log.events {
		if ev.Type != want[i] {
			t.Errorf("event %d: type = %s, want %s", i, ev.Type, want[i])
		}
	}
}
