package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventImpact ranks an upcoming calendar event.
type EventImpact string

const (
	ImpactHigh   EventImpact = "high"
	ImpactMedium EventImpact = "medium"
	ImpactLow    EventImpact = "low"
)

// MacroEvent is an incoming news or release event evaluated by the
// narrative machine and the macro-release alert trigger. Actual and
// Expected are nil for purely qualitative headlines.
type MacroEvent struct {
	Title       string           `json:"title"`
	Theme       string           `json:"theme,omitempty"`
	Actual      *decimal.Decimal `json:"actual_value,omitempty"`
	Expected    *decimal.Decimal `json:"expected_value,omitempty"`
	PublishedAt time.Time        `json:"published_at"`
}

// SurpriseDelta returns actual minus expected in the release's own units,
// and false when either side is missing.
func (e *MacroEvent) SurpriseDelta() (decimal.Decimal, bool) {
	if e.Actual == nil || e.Expected == nil {
		return decimal.Zero, false
	}
	return e.Actual.Sub(*e.Expected), true
}

// UpcomingEvent is a calendar entry consumed by the reliability scorer's
// imminent-event check.
type UpcomingEvent struct {
	Title  string      `json:"title"`
	Impact EventImpact `json:"impact"`
	At     time.Time   `json:"at"`
}
