package services

import (
	"context"
	"time"

	"github.com/dromero86/macrovista/internal/models"
)

// ObservationFeed supplies ordered, date-deduplicated observation series
// per (symbol, source). Adapters for concrete providers live outside the
// core engine.
type ObservationFeed interface {
	FetchSeries(ctx context.Context, symbol string) ([]models.ObservationPoint, error)
}

// UpcomingEventFeed supplies the economic calendar entries consumed by the
// reliability scorer.
type UpcomingEventFeed interface {
	FetchUpcoming(ctx context.Context, horizon time.Duration) ([]models.UpcomingEvent, error)
}

// MacroRegimeProvider supplies the already-validated macro regime snapshot.
type MacroRegimeProvider interface {
	CurrentRegime(ctx context.Context) (*models.MacroRegime, error)
}

// TacticalSignalProvider optionally supplies upstream tactical hints per
// symbol. A nil map entry means no hint for that symbol.
type TacticalSignalProvider interface {
	Signals(ctx context.Context) (map[string]*models.TacticalSignal, error)
}

// SendResult is the outcome of one outbound notification.
type SendResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Notifier is the outbound message collaborator. Implementations enforce
// the global per-minute outbound rate limit.
type Notifier interface {
	Send(ctx context.Context, text string, allowFormatting bool) (*SendResult, error)
}

// CorrelationStore abstracts correlation persistence for the state builder.
type CorrelationStore interface {
	Upsert(ctx context.Context, rec *models.CorrelationRecord) error
}

// NarrativeStore abstracts the singleton narrative record.
type NarrativeStore interface {
	Get(ctx context.Context) (*models.NarrativeState, error)
	Set(ctx context.Context, state *models.NarrativeState) error
}
