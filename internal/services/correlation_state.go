package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dromero86/macrovista/internal/analytics"
	"github.com/dromero86/macrovista/internal/config"
	"github.com/dromero86/macrovista/internal/models"
)

// CorrelationStateService builds the per-cycle correlation state: three
// correlation horizons per tracked instrument, a trend classification and
// a shift regime. The state is computed once per cycle and shared by bias
// derivation and the reliability scorer so consumers never drift apart.
type CorrelationStateService struct {
	config config.CorrelationConfig
	feed   ObservationFeed
	guard  *SourceGuard
	store  CorrelationStore
	cache  StateCache
	logger *logrus.Logger

	mu    sync.RWMutex
	state *models.CorrelationState
}

// StateCache holds the latest correlation-state snapshot so a restarted
// process can serve reads before its first cycle completes.
type StateCache interface {
	SaveState(ctx context.Context, state *models.CorrelationState) error
	LoadState(ctx context.Context) (*models.CorrelationState, error)
}

// NewCorrelationStateService creates the state builder. store and cache
// may be nil when persistence is not wired (tests, dry runs).
func NewCorrelationStateService(cfg config.CorrelationConfig, feed ObservationFeed, guard *SourceGuard, store CorrelationStore, stateCache StateCache, logger *logrus.Logger) *CorrelationStateService {
	return &CorrelationStateService{
		config: cfg,
		feed:   feed,
		guard:  guard,
		store:  store,
		cache:  stateCache,
		logger: logger,
	}
}

// instrumentResult carries one instrument's computed summary out of the
// fan-out.
type instrumentResult struct {
	summary *models.CorrelationSummary
	shift   *models.CorrelationShift
}

// RunCycle recomputes the full correlation state. Instruments fan out
// concurrently and join at a single barrier; a failing instrument is
// omitted from the aggregate, never defaulted.
func (s *CorrelationStateService) RunCycle(ctx context.Context) (*models.CorrelationState, error) {
	asOf := time.Now().UTC()

	benchmark, err := s.fetchSeries(ctx, s.config.Benchmark)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch benchmark %s: %w", s.config.Benchmark, err)
	}

	results := make([]*instrumentResult, len(s.config.Instruments))
	var wg sync.WaitGroup
	for i, symbol := range s.config.Instruments {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			res, err := s.buildInstrument(ctx, symbol, benchmark, asOf)
			if err != nil {
				s.logger.WithFields(logrus.Fields{
					"symbol": symbol,
					"error":  err.Error(),
				}).Warn("Omitting instrument from correlation state")
				return
			}
			results[i] = res
		}(i, symbol)
	}
	wg.Wait()

	state := &models.CorrelationState{
		AsOf:      asOf,
		Benchmark: s.config.Benchmark,
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		state.Summaries = append(state.Summaries, *res.summary)
		if res.shift != nil {
			state.Shifts = append(state.Shifts, *res.shift)
		}
	}
	sort.Slice(state.Summaries, func(i, j int) bool {
		return state.Summaries[i].Symbol < state.Summaries[j].Symbol
	})
	sort.Slice(state.Shifts, func(i, j int) bool {
		return state.Shifts[i].Symbol < state.Shifts[j].Symbol
	})

	s.persist(ctx, state)

	if s.cache != nil {
		if err := s.cache.SaveState(ctx, state); err != nil {
			s.logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to cache correlation state")
		}
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"benchmark":   state.Benchmark,
		"instruments": len(s.config.Instruments),
		"summaries":   len(state.Summaries),
	}).Info("Correlation state rebuilt")

	return state, nil
}

// GetCorrelationState returns the state of the current cycle, computing a
// fresh one when none has been built yet.
func (s *CorrelationStateService) GetCorrelationState(ctx context.Context) (*models.CorrelationState, error) {
	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	if state != nil {
		return state, nil
	}

	if s.cache != nil {
		cached, err := s.cache.LoadState(ctx)
		if err != nil {
			s.logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to load cached correlation state")
		} else if cached != nil {
			s.mu.Lock()
			s.state = cached
			s.mu.Unlock()
			return cached, nil
		}
	}

	return s.RunCycle(ctx)
}

func (s *CorrelationStateService) fetchSeries(ctx context.Context, symbol string) ([]models.ObservationPoint, error) {
	var points []models.ObservationPoint
	err := s.guard.Do(ctx, symbol, func(ctx context.Context) error {
		var ferr error
		points, ferr = s.feed.FetchSeries(ctx, symbol)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

func (s *CorrelationStateService) buildInstrument(ctx context.Context, symbol string, benchmark []models.ObservationPoint, asOf time.Time) (*instrumentResult, error) {
	instrument, err := s.fetchSeries(ctx, symbol)
	if err != nil {
		return nil, err
	}

	opts := analytics.CalcOptions{
		AsOf:         asOf,
		MaxStaleness: config.Duration(s.config.MaxStaleness, 0),
	}

	long := analytics.CalculateCorrelation(instrument, benchmark, s.config.LongWindowDays, s.config.LongMinObs, opts)
	mid := analytics.CalculateCorrelation(instrument, benchmark, s.config.MidWindowDays, s.config.MidMinObs, opts)
	short := analytics.CalculateCorrelation(instrument, benchmark, s.config.ShortWindowDays, s.config.ShortMinObs, opts)

	summary := &models.CorrelationSummary{
		Symbol:              symbol,
		Benchmark:           s.config.Benchmark,
		Corr12M:             long,
		Corr6M:              mid,
		Corr3M:              short,
		Trend:               s.classifyTrend(long, short),
		MacroRelevanceScore: relevanceScore(long),
	}

	result := &instrumentResult{summary: summary}
	if long.Valid() && short.Valid() {
		result.shift = &models.CorrelationShift{
			Symbol:    symbol,
			Benchmark: s.config.Benchmark,
			Corr12M:   long.Correlation,
			Corr3M:    short.Correlation,
			Regime:    s.classifyShift(*long.Correlation, *short.Correlation),
		}
	}

	return result, nil
}

// classifyTrend compares the long- and short-window correlations. Stable
// when sign and rough magnitude agree, Weakening on material decay without
// a sign flip, Break on a sign flip or a long-window collapse toward zero,
// Inconclusive when either window is null.
func (s *CorrelationStateService) classifyTrend(long, short *models.CorrelationResult) models.CorrelationTrend {
	if !long.Valid() || !short.Valid() {
		return models.TrendInconclusive
	}

	l := *long.Correlation
	sh := *short.Correlation

	if signFlipped(l, sh) {
		return models.TrendBreak
	}
	if math.Abs(l) < s.config.BreakCollapse {
		return models.TrendBreak
	}
	if math.Abs(sh) < math.Abs(l)-s.config.WeakeningDecay {
		return models.TrendWeakening
	}
	return models.TrendStable
}

// classifyShift derives the shift regime from sign stability and window
// divergence.
func (s *CorrelationStateService) classifyShift(corr12, corr3 float64) models.ShiftRegime {
	if signFlipped(corr12, corr3) {
		return models.ShiftBreak
	}
	if math.Abs(corr12-corr3) > s.config.ShiftWeakDiverge {
		return models.ShiftWeak
	}
	return models.ShiftStable
}

// signFlipped ignores flips inside the noise band around zero, where sign
// is not meaningful.
func signFlipped(a, b float64) bool {
	const noiseBand = 0.1
	if math.Abs(a) < noiseBand || math.Abs(b) < noiseBand {
		return false
	}
	return a*b < 0
}

func relevanceScore(long *models.CorrelationResult) float64 {
	if !long.Valid() {
		return 0
	}
	return math.Abs(*long.Correlation)
}

// persist upserts every computed window. Write failures degrade to a log
// line; the in-memory state is still served.
func (s *CorrelationStateService) persist(ctx context.Context, state *models.CorrelationState) {
	if s.store == nil {
		return
	}

	for i := range state.Summaries {
		sum := &state.Summaries[i]
		for _, wr := range []struct {
			window models.CorrelationWindow
			result *models.CorrelationResult
		}{
			{models.Window12M, sum.Corr12M},
			{models.Window6M, sum.Corr6M},
			{models.Window3M, sum.Corr3M},
		} {
			rec := &models.CorrelationRecord{
				Symbol:             sum.Symbol,
				Benchmark:          sum.Benchmark,
				Window:             wr.window,
				Value:              wr.result.Correlation,
				AsOf:               state.AsOf,
				NObs:               wr.result.NObs,
				LastInstrumentDate: wr.result.LastInstrumentDate,
				LastBenchmarkDate:  wr.result.LastBenchmarkDate,
			}
			if err := s.store.Upsert(ctx, rec); err != nil {
				s.logger.WithFields(logrus.Fields{
					"symbol": sum.Symbol,
					"window": string(wr.window),
					"error":  err.Error(),
				}).Warn("Failed to persist correlation record")
			}
		}
	}
}
