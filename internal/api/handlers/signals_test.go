package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dromero86/macrovista/internal/config"
	"github.com/dromero86/macrovista/internal/models"
	"github.com/dromero86/macrovista/internal/services"
)

type memoryNarrativeStore struct {
	state *models.NarrativeState
}

func (s *memoryNarrativeStore) Get(context.Context) (*models.NarrativeState, error) {
	return s.state, nil
}

func (s *memoryNarrativeStore) Set(_ context.Context, state *models.NarrativeState) error {
	s.state = state
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *SignalsHandler, *services.SourceGuard) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	guard := services.NewSourceGuard(services.DefaultSourceGuardConfig(), logger)
	store := &memoryNarrativeStore{state: &models.NarrativeState{State: models.NarrativeRiskOff}}
	notifier := services.NewNotificationService("", 0, 20, logger)
	narrative := services.NewNarrativeService(config.NarrativeConfig{Cooldown: "60m"}, store, notifier, logger)

	h := NewSignalsHandler(nil, nil, nil, narrative, guard, logger)

	router := gin.New()
	router.GET("/api/v1/signals/narrative", h.GetNarrative)
	router.GET("/api/v1/signals/sources", h.GetSourceBreakers)
	return router, h, guard
}

func TestGetNarrative(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/narrative", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var state models.NarrativeState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, models.NarrativeRiskOff, state.State)
}

func TestGetSourceBreakers(t *testing.T) {
	router, _, guard := newTestRouter(t)

	// Touch two sources so the endpoint has something to report.
	_ = guard.Do(context.Background(), "DXY", func(context.Context) error { return nil })
	_ = guard.Do(context.Background(), "EURUSD", func(context.Context) error { return nil })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/signals/sources", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Sources []services.CircuitBreakerSnapshot `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Sources, 2)
}
