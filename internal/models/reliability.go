package models

import "time"

// ReliabilityStatus is the traffic-light label attached to a score.
type ReliabilityStatus string

const (
	StatusNormal  ReliabilityStatus = "normal"
	StatusCaution ReliabilityStatus = "caution"
	StatusChaos   ReliabilityStatus = "chaos"
)

// ReliabilityScore is the self-monitoring assessment of the signal engine.
// Pure function of the correlation state and the upcoming-event feed; the
// only identity it has is "latest computed".
type ReliabilityScore struct {
	Score   int                `json:"score"`
	Status  ReliabilityStatus  `json:"status"`
	Message string             `json:"message"`
	Details ReliabilityDetails `json:"details"`
	AsOf    time.Time          `json:"asof"`
}

// ReliabilityDetails carries the inputs the score was derived from.
type ReliabilityDetails struct {
	TrackedPairs       int      `json:"tracked_pairs"`
	PercentWeakening   float64  `json:"percent_weakening"`
	PercentBreak       float64  `json:"percent_break"`
	ImminentHighImpact bool     `json:"imminent_high_impact"`
	RegimeSwitch       bool     `json:"regime_switch"`
	Reasons            []string `json:"reasons"`
}
