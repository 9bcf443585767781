package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dromero86/macrovista/internal/models"
)

// NarrativeRepository persists the singleton narrative record. The row is
// created as Neutral on first read and only ever overwritten afterwards.
type NarrativeRepository struct {
	pool DatabasePool
}

// NewNarrativeRepository creates a new narrative repository.
func NewNarrativeRepository(pool DatabasePool) *NarrativeRepository {
	return &NarrativeRepository{pool: pool}
}

// Get reads the current narrative state. A missing row is reported as a
// fresh Neutral state with a zero timestamp, not as an error.
func (r *NarrativeRepository) Get(ctx context.Context) (*models.NarrativeState, error) {
	query := `SELECT state, changed_at FROM narrative_state WHERE id = 1`

	var state models.NarrativeState
	err := r.pool.QueryRow(ctx, query).Scan(&state.State, &state.ChangedAt)
	if err == pgx.ErrNoRows {
		return &models.NarrativeState{State: models.NarrativeNeutral}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read narrative state: %w", err)
	}

	return &state, nil
}

// Set overwrites the singleton row. Idempotent point write, safe to retry.
func (r *NarrativeRepository) Set(ctx context.Context, state *models.NarrativeState) error {
	query := `
		INSERT INTO narrative_state (id, state, changed_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id)
		DO UPDATE SET state = EXCLUDED.state, changed_at = EXCLUDED.changed_at
	`

	_, err := r.pool.Exec(ctx, query, string(state.State), state.ChangedAt)
	if err != nil {
		return fmt.Errorf("failed to write narrative state: %w", err)
	}

	return nil
}
