package book

import (
	"testing"
	"time"

	"github.com/quantfall/backtester/internal/domain"
)

func ts(sec int) time.Time {
	return time.Date(2024, 1, 2, 9, 30, sec, 0, time.UTC)
}

func TestAddAssignsMonotonicIDs(t *testing.T) {
	ob := New()
	a := ob.Add(100, 1, domain.OrderSideBuy, ts(0))
	b := ob.Add(101, 1, domain.OrderSideSell, ts(1))
	c := ob.Add(99, 1, domain.OrderSideBuy, ts(2))

	if a.ID != 0 || b.ID != 1 || c.ID != 2 {
		t.Fatalf("expected ids 0,1,2, got %d,%d,%d", a.ID, b.ID, c.ID)
	}
}

func TestBidPriority(t *testing.T) {
	ob := New()
	ob.Add(100, 1, domain.OrderSideBuy, ts(0))
	ob.Add(103, 1, domain.OrderSideBuy, ts(1))
	ob.Add(101, 1, domain.OrderSideBuy, ts(2))
	ob.Add(102, 1, domain.OrderSideBuy, ts(3))

	want := []float64{103, 102, 101, 100}
	for i, price := range want {
		ord := ob.PopBest(domain.OrderSideBuy)
		if ord == nil {
			t.Fatalf("bid %d: unexpected empty book", i)
		}
		if ord.Price != price {
			t.Fatalf("bid %d: got price %v, want %v", i, ord.Price, price)
		}
	}
	if ob.PopBest(domain.OrderSideBuy) != nil {
		t.Fatal("expected empty bid side")
	}
}

func TestAskPriority(t *testing.T) {
	ob := New()
	ob.Add(105, 1, domain.OrderSideSell, ts(0))
	ob.Add(102, 1, domain.OrderSideSell, ts(1))
	ob.Add(104, 1, domain.OrderSideSell, ts(2))

	want := []float64{102, 104, 105}
	for i, price := range want {
		ord := ob.PopBest(domain.OrderSideSell)
		if ord.Price != price {
			t.Fatalf("ask %d: got price %v, want %v", i, ord.Price, price)
		}
	}
}

func TestTimeBreaksPriceTies(t *testing.T) {
	ob := New()
	second := ob.Add(100, 1, domain.OrderSideBuy, ts(5))
	first := ob.Add(100, 1, domain.OrderSideBuy, ts(1))

	got := ob.PopBest(domain.OrderSideBuy)
	if got.ID != first.ID {
		t.Fatalf("expected earlier order %d first, got %d", first.ID, got.ID)
	}
	if next := ob.PopBest(domain.OrderSideBuy); next.ID != second.ID {
		t.Fatalf("expected order %d second, got %d", second.ID, next.ID)
	}
}

func TestMatchTradesAtMidpoint(t *testing.T) {
	ob := New()
	ob.Add(102, 5, domain.OrderSideBuy, ts(0))
	ob.Add(100, 5, domain.OrderSideSell, ts(1))

	trades := ob.Match()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.Quantity != 5 {
		t.Errorf("quantity = %d, want 5", tr.Quantity)
	}
	if tr.Price != 101 {
		t.Errorf("price = %v, want midpoint 101", tr.Price)
	}
	if ob.BidLen() != 0 || ob.AskLen() != 0 {
		t.Errorf("expected both sides drained, got %d bids %d asks", ob.BidLen(), ob.AskLen())
	}
}

func TestMatchPartialLeavesRemainder(t *testing.T) {
	ob := New()
	ob.Add(101, 10, domain.OrderSideBuy, ts(0))
	ob.Add(101, 4, domain.OrderSideSell, ts(1))

	trades := ob.Match()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].Quantity != 4 {
		t.Errorf("quantity = %d, want 4", trades[0].Quantity)
	}

	bid := ob.BestBid()
	if bid == nil || bid.Quantity != 6 {
		t.Fatalf("expected resting bid with quantity 6, got %+v", bid)
	}
	if ob.AskLen() != 0 {
		t.Errorf("expected ask side empty, got %d", ob.AskLen())
	}
}

func TestMatchNeverLeavesCrossedBook(t *testing.T) {
	ob := New()
	ob.Add(105, 3, domain.OrderSideBuy, ts(0))
	ob.Add(104, 7, domain.OrderSideBuy, ts(1))
	ob.Add(103, 2, domain.OrderSideSell, ts(2))
	ob.Add(104, 4, domain.OrderSideSell, ts(3))
	ob.Add(110, 1, domain.OrderSideSell, ts(4))

	ob.Match()

	bid, ask := ob.BestBid(), ob.BestAsk()
	if bid != nil && ask != nil && bid.Price >= ask.Price {
		t.Fatalf("book left crossed: best bid %v >= best ask %v", bid.Price, ask.Price)
	}
}

func TestMatchNoCrossNoTrade(t *testing.T) {
	ob := New()
	ob.Add(100, 5, domain.OrderSideBuy, ts(0))
	ob.Add(101, 5, domain.OrderSideSell, ts(1))

	if trades := ob.Match(); len(trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(trades))
	}
	if ob.BidLen() != 1 || ob.AskLen() != 1 {
		t.Errorf("expected both orders resting, got %d bids %d asks", ob.BidLen(), ob.AskLen())
	}
}
