package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dromero86/macrovista/internal/services"
)

// SignalsHandler exposes the signal engine's query surface. All endpoints
// are pure reads over the latest computed cycle.
type SignalsHandler struct {
	correlations *services.CorrelationStateService
	bias         *services.TradingBiasService
	reliability  *services.ReliabilityService
	narrative    *services.NarrativeService
	guard        *services.SourceGuard
	logger       *logrus.Logger
}

// NewSignalsHandler creates the handler.
func NewSignalsHandler(correlations *services.CorrelationStateService, bias *services.TradingBiasService, reliability *services.ReliabilityService, narrative *services.NarrativeService, guard *services.SourceGuard, logger *logrus.Logger) *SignalsHandler {
	return &SignalsHandler{
		correlations: correlations,
		bias:         bias,
		reliability:  reliability,
		narrative:    narrative,
		guard:        guard,
		logger:       logger,
	}
}

// GetCorrelations returns the current correlation state.
func (h *SignalsHandler) GetCorrelations(c *gin.Context) {
	state, err := h.correlations.GetCorrelationState(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to build correlation state", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetTradingBias returns the derived per-instrument biases.
func (h *SignalsHandler) GetTradingBias(c *gin.Context) {
	state, err := h.bias.GetTradingBiasState(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to derive trading bias", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetReliability returns the current reliability score.
func (h *SignalsHandler) GetReliability(c *gin.Context) {
	score, err := h.reliability.CalculateReliabilityScore(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to calculate reliability score", err)
		return
	}
	c.JSON(http.StatusOK, score)
}

// GetNarrative returns the singleton narrative state.
func (h *SignalsHandler) GetNarrative(c *gin.Context) {
	state, err := h.narrative.GetCurrentNarrative(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to read narrative state", err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// GetSourceBreakers returns the circuit-breaker snapshots for every
// upstream source seen so far.
func (h *SignalsHandler) GetSourceBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.guard.Snapshots()})
}

func (h *SignalsHandler) fail(c *gin.Context, message string, err error) {
	h.logger.WithFields(logrus.Fields{
		"path":  c.FullPath(),
		"error": err.Error(),
	}).Error(message)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}
