package models

import "time"

// NarrativeLabel is the current macro storyline used to gate alerting.
type NarrativeLabel string

const (
	NarrativeNeutral       NarrativeLabel = "Neutral"
	NarrativeRiskOn        NarrativeLabel = "RiskOn"
	NarrativeRiskOff       NarrativeLabel = "RiskOff"
	NarrativeInflationUp   NarrativeLabel = "InflationUp"
	NarrativeInflationDown NarrativeLabel = "InflationDown"
	NarrativeGrowthUp      NarrativeLabel = "GrowthUp"
	NarrativeGrowthDown    NarrativeLabel = "GrowthDown"
)

// KnownNarratives lists every label the transition table accepts.
var KnownNarratives = []NarrativeLabel{
	NarrativeNeutral,
	NarrativeRiskOn,
	NarrativeRiskOff,
	NarrativeInflationUp,
	NarrativeInflationDown,
	NarrativeGrowthUp,
	NarrativeGrowthDown,
}

// NarrativeState is the singleton narrative record. Created as Neutral on
// first use, mutated only through the guarded transition function, never
// deleted.
type NarrativeState struct {
	State     NarrativeLabel `json:"state" db:"state"`
	ChangedAt time.Time      `json:"changed_at" db:"changed_at"`
}
