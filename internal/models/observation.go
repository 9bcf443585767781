package models

import (
	"math"
	"time"
)

// ObservationPoint is a single dated value of a macro or market time series.
type ObservationPoint struct {
	Date  time.Time `json:"date" db:"date"`
	Value float64   `json:"value" db:"value"`
}

// ObservationSeries is an ordered sequence of observations for one
// (symbol, source) pair. Suppliers must deliver it deduplicated by date.
type ObservationSeries struct {
	Symbol string             `json:"symbol"`
	Source string             `json:"source"`
	Points []ObservationPoint `json:"points"`
}

// SanitizePoints drops observations whose value is NaN or infinite.
// Statistics are never computed over non-finite inputs.
func SanitizePoints(points []ObservationPoint) []ObservationPoint {
	clean := make([]ObservationPoint, 0, len(points))
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		clean = append(clean, p)
	}
	return clean
}

// LastDate returns the date of the newest observation, or the zero time
// for an empty slice. Points are expected to be ordered by date.
func LastDate(points []ObservationPoint) time.Time {
	if len(points) == 0 {
		return time.Time{}
	}
	return points[len(points)-1].Date
}
