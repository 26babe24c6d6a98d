package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BarStore persists historical bars.
type BarStore interface {
	InsertBatch(ctx context.Context, symbol string, bars []Bar) error
	List(ctx context.Context, symbol string, opts ListOpts) ([]Bar, error)
	Count(ctx context.Context, symbol string) (int64, error)
}

// RunStore persists completed backtest runs and their metrics.
type RunStore interface {
	Create(ctx context.Context, run Run) error
	GetByID(ctx context.Context, id string) (Run, error)
	ListRecent(ctx context.Context, limit int) ([]Run, error)
}

// AuditStore is a queryable audit log backend.
type AuditStore interface {
	AuditLog
	List(ctx context.Context, opts ListOpts) ([]AuditEvent, error)
}
