package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfall/backtester/internal/domain"
)

// BarStore implements domain.BarStore using PostgreSQL.
type BarStore struct {
	pool *pgxpool.Pool
}

// NewBarStore creates a new BarStore backed by the given connection pool.
func NewBarStore(pool *pgxpool.Pool) *BarStore {
	return &BarStore{pool: pool}
}

var _ domain.BarStore = (*BarStore)(nil)

// InsertBatch inserts bars efficiently using pgx Batch. Duplicate
// (symbol, timestamp) rows are silently skipped via ON CONFLICT DO NOTHING,
// matching the first-occurrence-wins de-duplication of the loaders.
func (s *BarStore) InsertBatch(ctx context.Context, symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO bars (symbol, timestamp, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, timestamp) DO NOTHING`

	for _, b := range bars {
		batch.Queue(query, symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range bars {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert bar batch item %d: %w", i, err)
		}
	}
	return nil
}

// List returns bars for a symbol sorted ascending by timestamp, with
// optional time filtering and pagination.
func (s *BarStore) List(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.Bar, error) {
	query := `SELECT timestamp, open, high, low, close, volume FROM bars WHERE symbol = $1`
	args := []any{symbol}
	argIdx := 2

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

	query += " ORDER BY timestamp ASC"

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
		return nil, fmt.Errorf("postgres: list bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("postgres: scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bars rows: %w", err)
	}
	return bars, nil
}

// Count returns the number of stored bars for a symbol.
func (s *BarStore) Count(ctx context.Context, symbol string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM bars WHERE symbol = $1", symbol).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count bars for %s: %w", symbol, err)
	}
	return n, nil
}
