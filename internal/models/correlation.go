package models

import "time"

// NullReason explains why a correlation could not be computed. These are
// expected runtime states, not errors.
type NullReason string

const (
	ReasonNone            NullReason = ""
	ReasonNoData          NullReason = "NO_DATA"
	ReasonTooFewPoints    NullReason = "TOO_FEW_POINTS"
	ReasonStaleInstrument NullReason = "STALE_INSTRUMENT"
	ReasonStaleBenchmark  NullReason = "STALE_BENCHMARK"
)

// CorrelationWindow identifies one of the tracked correlation horizons.
type CorrelationWindow string

const (
	Window12M CorrelationWindow = "12m"
	Window6M  CorrelationWindow = "6m"
	Window3M  CorrelationWindow = "3m"
)

// CorrelationDiagnostics is the observability payload attached to every
// correlation result, success or failure.
type CorrelationDiagnostics struct {
	InstrumentPoints int `json:"instrument_points"`
	BenchmarkPoints  int `json:"benchmark_points"`
	AlignedPoints    int `json:"aligned_points"`
}

// CorrelationResult is the outcome of one windowed correlation computation.
// Correlation is nil iff Reason is set; NObs counts the date-aligned pairs
// actually used.
type CorrelationResult struct {
	Correlation        *float64               `json:"correlation"`
	NObs               int                    `json:"n_obs"`
	AsOf               time.Time              `json:"asof"`
	LastInstrumentDate time.Time              `json:"last_instrument_date"`
	LastBenchmarkDate  time.Time              `json:"last_benchmark_date"`
	Reason             NullReason             `json:"reason_null,omitempty"`
	Diagnostics        CorrelationDiagnostics `json:"diagnostics"`
}

// Valid reports whether a usable correlation value is present.
func (r *CorrelationResult) Valid() bool {
	return r != nil && r.Correlation != nil
}

// CorrelationTrend classifies how an instrument's correlation to its
// benchmark is evolving across windows.
type CorrelationTrend string

const (
	TrendStable       CorrelationTrend = "Stable"
	TrendWeakening    CorrelationTrend = "Weakening"
	TrendBreak        CorrelationTrend = "Break"
	TrendInconclusive CorrelationTrend = "Inconclusive"
)

// ShiftRegime is the coarse regime label derived from short- vs long-window
// divergence and sign stability.
type ShiftRegime string

const (
	ShiftStable ShiftRegime = "Stable"
	ShiftWeak   ShiftRegime = "Weak"
	ShiftBreak  ShiftRegime = "Break"
)

// CorrelationSummary is the per-instrument view across all tracked windows.
// Rebuilt from scratch every cycle, never mutated in place.
type CorrelationSummary struct {
	Symbol              string             `json:"symbol"`
	Benchmark           string             `json:"benchmark"`
	Corr12M             *CorrelationResult `json:"corr_12m"`
	Corr6M              *CorrelationResult `json:"corr_6m"`
	Corr3M              *CorrelationResult `json:"corr_3m"`
	Trend               CorrelationTrend   `json:"trend"`
	MacroRelevanceScore float64            `json:"macro_relevance_score"`
}

// CorrelationShift condenses a summary into the two values bias derivation
// actually keys on.
type CorrelationShift struct {
	Symbol    string      `json:"symbol"`
	Benchmark string      `json:"benchmark"`
	Corr12M   *float64    `json:"corr_12m"`
	Corr3M    *float64    `json:"corr_3m"`
	Regime    ShiftRegime `json:"regime"`
}

// CorrelationState is the aggregate output of one computation cycle.
type CorrelationState struct {
	AsOf      time.Time            `json:"asof"`
	Benchmark string               `json:"benchmark"`
	Summaries []CorrelationSummary `json:"summaries"`
	Shifts    []CorrelationShift   `json:"shifts"`
}

// SummaryFor returns the summary for a symbol, or nil if the symbol was
// omitted this cycle.
func (s *CorrelationState) SummaryFor(symbol string) *CorrelationSummary {
	for i := range s.Summaries {
		if s.Summaries[i].Symbol == symbol {
			return &s.Summaries[i]
		}
	}
	return nil
}

// ShiftFor returns the shift record for a symbol, or nil when absent.
func (s *CorrelationState) ShiftFor(symbol string) *CorrelationShift {
	for i := range s.Shifts {
		if s.Shifts[i].Symbol == symbol {
			return &s.Shifts[i]
		}
	}
	return nil
}

// CorrelationRecord is the persisted form of a correlation result, upserted
// keyed by (symbol, benchmark, window, asof).
type CorrelationRecord struct {
	Symbol             string            `json:"symbol" db:"symbol"`
	Benchmark          string            `json:"benchmark" db:"benchmark"`
	Window             CorrelationWindow `json:"window" db:"window"`
	Value              *float64          `json:"value" db:"value"`
	AsOf               time.Time         `json:"asof" db:"asof"`
	NObs               int               `json:"n_obs" db:"n_obs"`
	LastInstrumentDate time.Time         `json:"last_instrument_date" db:"last_instrument_date"`
	LastBenchmarkDate  time.Time         `json:"last_benchmark_date" db:"last_benchmark_date"`
}
