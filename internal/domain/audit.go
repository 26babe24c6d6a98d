package domain

import (
	"context"
	"time"
)

// EventType classifies an audit trail entry.
type EventType string

const (
	EventSent     EventType = "SENT"
	EventRejected EventType = "REJECTED"
	EventFilled   EventType = "FILLED"
)

// AuditEvent is one row of the order audit trail. Details carries free-text
// context such as the rejection reason or the fill price/quantity.
type AuditEvent struct {
	Timestamp time.Time
	Type      EventType
	OrderID   int64
	Side      OrderSide
	Price     float64
	Quantity  int64
	Details   string
}

// AuditLog is an append-only sink for audit events. Appends are synchronous;
// the order manager writes one event per state change and never skips the
// rejection path.
type AuditLog interface {
	Append(ctx context.Context, ev AuditEvent) error
}
