package book

import "github.com/quantfall/backtester/internal/domain"

// sortKey is an order's priority key, derived once when the order is added
// and never recomputed. Bids store the negated price so that both sides
// reduce to ascending key order: best price first, earlier submission
// breaking ties.
type sortKey struct {
	price float64
	ts    int64
}

type entry struct {
	key sortKey
	ord *domain.Order
}

// entryHeap implements heap.Interface over precomputed sort keys. Orders are
// referenced by pointer so the crossing step can decrement quantity in place;
// exhausted orders are popped immediately, so no entry ever dangles.
type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].key.price != h[j].key.price {
		return h[i].key.price < h[j].key.price
	}
	return h[i].key.ts < h[j].key.ts
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// peek returns the best order without removing it.
func (h entryHeap) peek() *domain.Order {
	if len(h) == 0 {
		return nil
	}
	return h[0].ord
}
