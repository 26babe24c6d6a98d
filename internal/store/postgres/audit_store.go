package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfall/backtester/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL. It can serve as
// an audit sink alongside the CSV log when runs should be queryable later.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

var _ domain.AuditStore = (*AuditStore)(nil)

// Append inserts one order event row.
func (s *AuditStore) Append(ctx context.Context, ev domain.AuditEvent) error {
	const query = `
		INSERT INTO order_events (timestamp, event_type, order_id, side, price, quantity, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		ev.Timestamp, string(ev.Type), ev.OrderID, string(ev.Side),
		ev.Price, ev.Quantity, ev.Details,
	)
	if err != nil {
		return fmt.Errorf("postgres: append order event %s: %w", ev.Type, err)
	}
	return nil
}

// List returns order events with optional time filtering and pagination,
// oldest first so the result reads like the trail was written.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEvent, error) {
	query := `SELECT timestamp, event_type, order_id, side, price, quantity, details
		FROM order_events WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY id ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list order events: %w", err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var ev domain.AuditEvent
		var evType, side string
		if err := rows.Scan(&ev.Timestamp, &evType, &ev.OrderID, &side, &ev.Price, &ev.Quantity, &ev.Details); err != nil {
			return nil, fmt.Errorf("postgres: scan order event: %w", err)
		}
		ev.Type = domain.EventType(evType)
		ev.Side = domain.OrderSide(side)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list order events rows: %w", err)
	}
	return events, nil
}
