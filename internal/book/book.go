// Package book implements a price-time-priority limit order book. Bids and
// asks are kept in separate heaps whose keys are derived at insertion:
// (-price, ts) for buys and (price, ts) for sells, so the best order on
// either side is always at the top.
package book

import (
	"container/heap"
	"time"

	"github.com/quantfall/backtester/internal/domain"
)

// Trade is one crossing between a resting bid and ask.
type Trade struct {
	Buy      *domain.Order
	Sell     *domain.Order
	Quantity int64
	Price    float64
}

// OrderBook holds resting orders on two sides. It is owned by the single
// backtest control thread; no internal locking.
type OrderBook struct {
	bids   entryHeap
	asks   entryHeap
	nextID int64
}

// New returns an empty order book.
func New() *OrderBook {
	return &OrderBook{}
}

// Add constructs an order with a fresh id and inserts it on the side's heap.
// Price and quantity validity is the caller's responsibility.
func (ob *OrderBook) Add(price float64, quantity int64, side domain.OrderSide, ts time.Time) *domain.Order {
	ord := &domain.Order{
		ID:          ob.nextID,
		Side:        side,
		Price:       price,
		Quantity:    quantity,
		SubmittedAt: ts,
	}
	ob.nextID++

	key := sortKey{price: price, ts: ts.UnixNano()}
	if side == domain.OrderSideBuy {
		key.price = -price
		heap.Push(&ob.bids, entry{key: key, ord: ord})
	} else {
		heap.Push(&ob.asks, entry{key: key, ord: ord})
	}
	return ord
}

// BestBid returns the highest-priority resting bid, or nil.
func (ob *OrderBook) BestBid() *domain.Order { return ob.bids.peek() }

// BestAsk returns the highest-priority resting ask, or nil.
func (ob *OrderBook) BestAsk() *domain.Order { return ob.asks.peek() }

// BidLen returns the number of resting bids.
func (ob *OrderBook) BidLen() int { return ob.bids.Len() }

// AskLen returns the number of resting asks.
func (ob *OrderBook) AskLen() int { return ob.asks.Len() }

// Match crosses the book: while the best bid price is at or above the best
// ask price, it trades min(remaining) units at the midpoint, decrements both
// orders, and removes any order whose quantity reaches zero. On return the
// book never retains a crossed bid/ask pair.
func (ob *OrderBook) Match() []Trade {
	var trades []Trade

	for ob.bids.Len() > 0 && ob.asks.Len() > 0 {
		bid := ob.bids.peek()
		ask := ob.asks.peek()
		if bid.Price < ask.Price {
			break
		}

		qty := min(bid.Quantity, ask.Quantity)
		price := (bid.Price + ask.Price) / 2

		bid.Quantity -= qty
		ask.Quantity -= qty
		trades = append(trades, Trade{Buy: bid, Sell: ask, Quantity: qty, Price: price})

		if bid.Quantity == 0 {
			heap.Pop(&ob.bids)
		}
		if ask.Quantity == 0 {
			heap.Pop(&ob.asks)
		}
	}
	return trades
}

// PopBest removes and returns the best order on the given side, or nil when
// the side is empty. Used by callers draining the book in priority order.
func (ob *OrderBook) PopBest(side domain.OrderSide) *domain.Order {
	h := &ob.asks
	if side == domain.OrderSideBuy {
		h = &ob.bids
	}
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(entry).ord
}
