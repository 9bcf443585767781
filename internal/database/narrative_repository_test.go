package database

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dromero86/macrovista/internal/models"
)

func TestNarrativeGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	changedAt := time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT state, changed_at FROM narrative_state").
		WillReturnRows(pgxmock.NewRows([]string{"state", "changed_at"}).
			AddRow("RiskOff", changedAt))

	repo := NewNarrativeRepository(mock)
	state, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.NarrativeRiskOff, state.State)
	assert.Equal(t, changedAt, state.ChangedAt)
}

func TestNarrativeGetMissingRowIsNeutral(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT state, changed_at FROM narrative_state").
		WillReturnRows(pgxmock.NewRows([]string{"state", "changed_at"}))

	repo := NewNarrativeRepository(mock)
	state, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.NarrativeNeutral, state.State)
	assert.True(t, state.ChangedAt.IsZero())
}

func TestNarrativeSet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	changedAt := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO narrative_state").
		WithArgs("InflationUp", changedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewNarrativeRepository(mock)
	err = repo.Set(context.Background(), &models.NarrativeState{
		State:     models.NarrativeInflationUp,
		ChangedAt: changedAt,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
