package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Order is a limit order resting in (or just added to) the book. IDs are
// assigned monotonically at creation and never reused. Quantity is the
// remaining quantity; only the book's crossing step decrements it, and an
// order is removed from its side the moment it reaches zero.
type Order struct {
	ID          int64
	Side        OrderSide
	Price       float64
	Quantity    int64
	SubmittedAt time.Time
}

// Notional returns price x quantity, the monetary size of the order.
func (o Order) Notional() float64 {
	return o.Price * float64(o.Quantity)
}

// ExecStatus is the outcome class of a matched order.
type ExecStatus string

const (
	ExecStatusFilled    ExecStatus = "FILLED"
	ExecStatusPartial   ExecStatus = "PARTIAL"
	ExecStatusCancelled ExecStatus = "CANCELLED"
)

// ExecutionReport is produced exactly once per submitted order by the
// matching engine. Invariants: 0 <= FilledQuantity <= Order.Quantity,
// CANCELLED implies FilledQuantity == 0, FILLED implies
// FilledQuantity == Order.Quantity.
type ExecutionReport struct {
	Order          *Order
	Status         ExecStatus
	FilledQuantity int64
	AvgPrice       float64
}

// Intent is a strategy's per-bar trade decision. The zero Intent means
// "no trade".
type Intent struct {
	Side     OrderSide
	Quantity int64
}

// Trade reports whether the intent asks for an order to be placed.
func (i Intent) Trade() bool {
	return i.Side != "" && i.Quantity > 0
}
