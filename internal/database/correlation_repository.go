package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dromero86/macrovista/internal/models"
)

// DatabasePool defines the pool operations repositories depend on, so
// pgxmock can stand in for the real pool in tests.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// CorrelationRepository persists windowed correlation results. Every write
// is a single idempotent upsert keyed by (symbol, benchmark, window, asof)
// and is safe to retry.
type CorrelationRepository struct {
	pool DatabasePool
}

// NewCorrelationRepository creates a new correlation repository.
func NewCorrelationRepository(pool DatabasePool) *CorrelationRepository {
	return &CorrelationRepository{pool: pool}
}

// Upsert writes one correlation record, replacing any existing row for the
// same natural key.
func (r *CorrelationRepository) Upsert(ctx context.Context, rec *models.CorrelationRecord) error {
	query := `
		INSERT INTO correlations (symbol, benchmark, win, value, asof, n_obs, last_instrument_date, last_benchmark_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, benchmark, win, asof)
		DO UPDATE SET
			value = EXCLUDED.value,
			n_obs = EXCLUDED.n_obs,
			last_instrument_date = EXCLUDED.last_instrument_date,
			last_benchmark_date = EXCLUDED.last_benchmark_date,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.pool.Exec(ctx, query,
		rec.Symbol,
		rec.Benchmark,
		string(rec.Window),
		rec.Value,
		rec.AsOf,
		rec.NObs,
		rec.LastInstrumentDate,
		rec.LastBenchmarkDate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert correlation %s/%s %s: %w", rec.Symbol, rec.Benchmark, rec.Window, err)
	}

	return nil
}

// Latest returns the most recent record for a (symbol, benchmark, window)
// key, or nil when nothing has been persisted yet.
func (r *CorrelationRepository) Latest(ctx context.Context, symbol, benchmark string, window models.CorrelationWindow) (*models.CorrelationRecord, error) {
	query := `
		SELECT symbol, benchmark, win, value, asof, n_obs, last_instrument_date, last_benchmark_date
		FROM correlations
		WHERE symbol = $1 AND benchmark = $2 AND win = $3
		ORDER BY asof DESC
		LIMIT 1
	`

	var rec models.CorrelationRecord
	var window_ string
	err := r.pool.QueryRow(ctx, query, symbol, benchmark, string(window)).Scan(
		&rec.Symbol,
		&rec.Benchmark,
		&window_,
		&rec.Value,
		&rec.AsOf,
		&rec.NObs,
		&rec.LastInstrumentDate,
		&rec.LastBenchmarkDate,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest correlation %s/%s %s: %w", symbol, benchmark, window, err)
	}
	rec.Window = models.CorrelationWindow(window_)

	return &rec, nil
}

// History returns records for a key newer than since, oldest first.
func (r *CorrelationRepository) History(ctx context.Context, symbol, benchmark string, window models.CorrelationWindow, since time.Time) ([]models.CorrelationRecord, error) {
	query := `
		SELECT symbol, benchmark, win, value, asof, n_obs, last_instrument_date, last_benchmark_date
		FROM correlations
		WHERE symbol = $1 AND benchmark = $2 AND win = $3 AND asof > $4
		ORDER BY asof ASC
	`

	rows, err := r.pool.Query(ctx, query, symbol, benchmark, string(window), since)
	if err != nil {
		return nil, fmt.Errorf("failed to read correlation history %s/%s %s: %w", symbol, benchmark, window, err)
	}
	defer rows.Close()

	var records []models.CorrelationRecord
	for rows.Next() {
		var rec models.CorrelationRecord
		var window_ string
		if err := rows.Scan(
			&rec.Symbol,
			&rec.Benchmark,
			&window_,
			&rec.Value,
			&rec.AsOf,
			&rec.NObs,
			&rec.LastInstrumentDate,
			&rec.LastBenchmarkDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan correlation row: %w", err)
		}
		rec.Window = models.CorrelationWindow(window_)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate correlation rows: %w", err)
	}

	return records, nil
}
