package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfall/backtester/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a new RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

var _ domain.RunStore = (*RunStore)(nil)

const runSelectCols = `id, strategy, symbol, started_at, finished_at, bars,
	total_pnl, sharpe, max_drawdown, final_equity, metrics_valid`

// Create persists a completed run with its metrics.
func (s *RunStore) Create(ctx context.Context, run domain.Run) error {
	const query = `
		INSERT INTO runs (
			id, strategy, symbol, started_at, finished_at, bars,
			total_pnl, sharpe, max_drawdown, final_equity, metrics_valid
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.Strategy, run.Symbol, run.StartedAt, run.FinishedAt, run.Bars,
		run.Metrics.TotalPnL, run.Metrics.Sharpe, run.Metrics.MaxDrawdown,
		run.Metrics.FinalEquity, run.Metrics.Valid,
	)
	if err != nil {
		return fmt.Errorf("postgres: create run %s: %w", run.ID, err)
	}
	return nil
}

// GetByID returns one run, or domain.ErrNotFound.
func (s *RunStore) GetByID(ctx context.Context, id string) (domain.Run, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+runSelectCols+" FROM runs WHERE id = $1", id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Run{}, domain.ErrNotFound
		}
		return domain.Run{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}
	return run, nil
}

// ListRecent returns the most recently created runs, newest first.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+runSelectCols+" FROM runs ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list recent runs rows: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (domain.Run, error) {
	var run domain.Run
	err := row.Scan(
		&run.ID, &run.Strategy, &run.Symbol, &run.StartedAt, &run.FinishedAt, &run.Bars,
		&run.Metrics.TotalPnL, &run.Metrics.Sharpe, &run.Metrics.MaxDrawdown,
		&run.Metrics.FinalEquity, &run.Metrics.Valid,
	)
	return run, err
}
