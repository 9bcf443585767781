package analytics

import (
	"iter"
	"math"
	"sort"
	"time"

	"github.com/dromero86/macrovista/internal/models"
)

// minPearsonPoints is the smallest sample Pearson accepts. Below this the
// coefficient is statistically meaningless.
const minPearsonPoints = 3

// Pearson computes the Pearson correlation coefficient over the trailing
// min(len(x), len(y)) elements of each series. Returns nil for fewer than
// three points or a degenerate constant series (zero denominator). The
// result is rounded to two decimals.
func Pearson(x, y []float64) *float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < minPearsonPoints {
		return nil
	}

	xs := x[len(x)-n:]
	ys := y[len(y)-n:]

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var num, denX, denY float64
	for i := 0; i < n; i++ {
		ax := xs[i] - meanX
		ay := ys[i] - meanY
		num += ax * ay
		denX += ax * ax
		denY += ay * ay
	}

	den := math.Sqrt(denX * denY)
	if den == 0 {
		return nil
	}

	r := round2(num / den)
	return &r
}

// RollingPearson yields the correlation of every contiguous sub-window of
// length window, oldest first. Sub-windows whose coefficient cannot be
// computed are skipped. The sequence is lazy, finite and single-use; it is
// a diagnostic tool, not the primary signal path.
func RollingPearson(x, y []float64, window int) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		if window < minPearsonPoints {
			return
		}
		n := len(x)
		if len(y) < n {
			n = len(y)
		}
		for i := 0; i+window <= n; i++ {
			r := Pearson(x[i:i+window], y[i:i+window])
			if r == nil {
				continue
			}
			if !yield(*r) {
				return
			}
		}
	}
}

// CalcOptions tunes a windowed correlation computation. The zero value
// means "as of now, no staleness guard".
type CalcOptions struct {
	// AsOf anchors the result timestamp and the staleness check.
	AsOf time.Time
	// MaxStaleness rejects a leg whose newest observation is older than
	// AsOf minus this duration. Zero disables the guard.
	MaxStaleness time.Duration
}

// CalculateCorrelation aligns the two series by calendar month (keeping the
// latest observation per month), restricts to the most recent windowDays
// aligned points and computes Pearson only when the aligned count reaches
// minObs. windowDays is a target, not a hard requirement: a partial window
// with enough statistical power is still informative.
//
// Note the alignment is monthly-bucketed while windowDays is nominally a
// trading-day count, so the effective window spans windowDays distinct
// calendar months rather than raw trading days. This mirrors the upstream
// behavior on purpose; see DESIGN.md before changing it.
func CalculateCorrelation(instrument, benchmark []models.ObservationPoint, windowDays, minObs int, opts CalcOptions) *models.CorrelationResult {
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	instrument = models.SanitizePoints(instrument)
	benchmark = models.SanitizePoints(benchmark)

	result := &models.CorrelationResult{
		AsOf:               asOf,
		LastInstrumentDate: models.LastDate(instrument),
		LastBenchmarkDate:  models.LastDate(benchmark),
		Diagnostics: models.CorrelationDiagnostics{
			InstrumentPoints: len(instrument),
			BenchmarkPoints:  len(benchmark),
		},
	}

	if len(instrument) == 0 || len(benchmark) == 0 {
		result.Reason = models.ReasonNoData
		return result
	}

	if opts.MaxStaleness > 0 {
		cutoff := asOf.Add(-opts.MaxStaleness)
		if result.LastInstrumentDate.Before(cutoff) {
			result.Reason = models.ReasonStaleInstrument
			return result
		}
		if result.LastBenchmarkDate.Before(cutoff) {
			result.Reason = models.ReasonStaleBenchmark
			return result
		}
	}

	xs, ys := alignMonthly(instrument, benchmark)
	result.Diagnostics.AlignedPoints = len(xs)

	if windowDays > 0 && len(xs) > windowDays {
		xs = xs[len(xs)-windowDays:]
		ys = ys[len(ys)-windowDays:]
	}

	if len(xs) < minObs {
		result.Reason = models.ReasonTooFewPoints
		return result
	}

	r := Pearson(xs, ys)
	if r == nil {
		result.Reason = models.ReasonTooFewPoints
		return result
	}

	result.Correlation = r
	result.NObs = len(xs)
	return result
}

// monthKey buckets a date into its calendar month.
func monthKey(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// alignMonthly pairs the two series by calendar month, keeping the latest
// observation inside each month, and returns the paired values in
// chronological order.
func alignMonthly(instrument, benchmark []models.ObservationPoint) ([]float64, []float64) {
	latestByMonth := func(points []models.ObservationPoint) map[int]models.ObservationPoint {
		m := make(map[int]models.ObservationPoint, len(points))
		for _, p := range points {
			key := monthKey(p.Date)
			if prev, ok := m[key]; !ok || p.Date.After(prev.Date) {
				m[key] = p
			}
		}
		return m
	}

	instByMonth := latestByMonth(instrument)
	benchByMonth := latestByMonth(benchmark)

	keys := make([]int, 0, len(instByMonth))
	for key := range instByMonth {
		if _, ok := benchByMonth[key]; ok {
			keys = append(keys, key)
		}
	}
	sort.Ints(keys)

	xs := make([]float64, 0, len(keys))
	ys := make([]float64, 0, len(keys))
	for _, key := range keys {
		xs = append(xs, instByMonth[key].Value)
		ys = append(ys, benchByMonth[key].Value)
	}
	return xs, ys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
