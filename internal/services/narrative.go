package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dromero86/macrovista/internal/config"
	"github.com/dromero86/macrovista/internal/models"
)

// transitionGuard decides whether a candidate may replace the current
// state. All guards must pass for the transition to apply.
type transitionGuard func(current *models.NarrativeState, candidate models.NarrativeLabel, now time.Time) bool

// NarrativeService is the debounced macro-narrative state machine. The
// singleton state starts Neutral, is mutated only through Apply, and every
// applied transition dispatches exactly one notification. Suppressed
// transitions are silent.
type NarrativeService struct {
	cooldown          time.Duration
	inflationDeltaPP  float64
	growthDeltaPP     float64
	negativeSurprises int

	store    NarrativeStore
	notifier Notifier
	logger   *logrus.Logger

	mu      sync.Mutex
	current *models.NarrativeState
	// table maps every legal target label to its guards; candidates
	// outside the table are structurally unrepresentable transitions.
	table map[models.NarrativeLabel][]transitionGuard

	// now is swapped out by tests to drive the cooldown window.
	now func() time.Time
}

// NewNarrativeService creates the state machine with the standard
// transition table: any known label is reachable from any state, gated by
// the differs-from-current and cooldown guards.
func NewNarrativeService(cfg config.NarrativeConfig, store NarrativeStore, notifier Notifier, logger *logrus.Logger) *NarrativeService {
	s := &NarrativeService{
		cooldown:          config.Duration(cfg.Cooldown, 60*time.Minute),
		inflationDeltaPP:  cfg.InflationDeltaPP,
		growthDeltaPP:     cfg.GrowthDeltaPP,
		negativeSurprises: cfg.NegativeSurprises,
		store:             store,
		notifier:          notifier,
		logger:            logger,
		now:               time.Now,
	}
	if s.negativeSurprises <= 0 {
		s.negativeSurprises = 2
	}

	guards := []transitionGuard{
		func(current *models.NarrativeState, candidate models.NarrativeLabel, _ time.Time) bool {
			return candidate != current.State
		},
		func(current *models.NarrativeState, _ models.NarrativeLabel, now time.Time) bool {
			return current.ChangedAt.IsZero() || now.Sub(current.ChangedAt) >= s.cooldown
		},
	}
	s.table = make(map[models.NarrativeLabel][]transitionGuard, len(models.KnownNarratives))
	for _, label := range models.KnownNarratives {
		s.table[label] = guards
	}

	return s
}

// GetCurrentNarrative returns the singleton state, loading it from the
// store on first use.
func (s *NarrativeService) GetCurrentNarrative(ctx context.Context) (*models.NarrativeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *NarrativeService) loadLocked(ctx context.Context) (*models.NarrativeState, error) {
	if s.current != nil {
		return s.current, nil
	}

	state, err := s.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load narrative state: %w", err)
	}
	s.current = state
	return state, nil
}

// Apply runs a candidate through the guarded transition. Returns whether
// the state changed. A candidate outside the transition table is a
// contract violation, not a runtime condition.
func (s *NarrativeService) Apply(ctx context.Context, candidate models.NarrativeLabel) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	guards, ok := s.table[candidate]
	if !ok {
		return false, fmt.Errorf("unknown narrative label %q", candidate)
	}

	current, err := s.loadLocked(ctx)
	if err != nil {
		return false, err
	}

	now := s.now().UTC()
	for _, guard := range guards {
		if !guard(current, candidate, now) {
			s.logger.WithFields(logrus.Fields{
				"current":   string(current.State),
				"candidate": string(candidate),
			}).Debug("Narrative transition suppressed")
			return false, nil
		}
	}

	next := &models.NarrativeState{State: candidate, ChangedAt: now}
	if err := s.store.Set(ctx, next); err != nil {
		return false, fmt.Errorf("failed to persist narrative transition: %w", err)
	}
	previous := current.State
	s.current = next

	s.logger.WithFields(logrus.Fields{
		"from": string(previous),
		"to":   string(candidate),
	}).Info("Narrative transition applied")

	text := fmt.Sprintf("🧭 *Macro narrative changed*: %s → %s", previous, candidate)
	if _, err := s.notifier.Send(ctx, text, true); err != nil {
		// The transition stands; delivery failures must not roll back state.
		s.logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Narrative notification failed")
	}

	return true, nil
}

// EvaluateEvents feeds a batch of incoming events through the single-event
// rule and the aggregate rule, applying every resulting candidate. The
// cooldown guard is what keeps noisy batches from causing notification
// storms.
func (s *NarrativeService) EvaluateEvents(ctx context.Context, events []models.MacroEvent) (bool, error) {
	changed := false

	for i := range events {
		candidate := s.CandidateFromEvent(&events[i])
		if candidate == nil {
			continue
		}
		applied, err := s.Apply(ctx, *candidate)
		if err != nil {
			return changed, err
		}
		changed = changed || applied
	}

	if candidate := s.AggregateCandidate(events); candidate != nil {
		applied, err := s.Apply(ctx, *candidate)
		if err != nil {
			return changed, err
		}
		changed = changed || applied
	}

	return changed, nil
}

// CandidateFromEvent maps one event to a transition candidate, or nil when
// the event carries no strong signal.
func (s *NarrativeService) CandidateFromEvent(ev *models.MacroEvent) *models.NarrativeLabel {
	theme := strings.ToLower(ev.Theme)

	if delta, ok := ev.SurpriseDelta(); ok {
		d := delta.InexactFloat64()
		switch {
		case isInflationTheme(theme):
			if d > s.inflationDeltaPP {
				return labelPtr(models.NarrativeInflationUp)
			}
			if d < -s.inflationDeltaPP {
				return labelPtr(models.NarrativeInflationDown)
			}
		case isGrowthTheme(theme):
			if d > s.growthDeltaPP {
				return labelPtr(models.NarrativeGrowthUp)
			}
			if d < -s.growthDeltaPP {
				return labelPtr(models.NarrativeGrowthDown)
			}
		}
	}

	return sentimentCandidate(ev.Title)
}

// AggregateCandidate applies the aggregate rule: enough same-day negative
// surprises across tracked themes yield RiskOff regardless of the
// single-event rule.
func (s *NarrativeService) AggregateCandidate(events []models.MacroEvent) *models.NarrativeLabel {
	byDay := make(map[string]int)
	for i := range events {
		delta, ok := events[i].SurpriseDelta()
		if !ok || !delta.IsNegative() {
			continue
		}
		day := events[i].PublishedAt.UTC().Format("2006-01-02")
		byDay[day]++
		if byDay[day] >= s.negativeSurprises {
			return labelPtr(models.NarrativeRiskOff)
		}
	}
	return nil
}

func isInflationTheme(theme string) bool {
	for _, kw := range []string{"inflation", "cpi", "ipc", "ppi", "pce"} {
		if strings.Contains(theme, kw) {
			return true
		}
	}
	return false
}

func isGrowthTheme(theme string) bool {
	for _, kw := range []string{"growth", "gdp", "pib", "pmi", "employment", "empleo", "payroll"} {
		if strings.Contains(theme, kw) {
			return true
		}
	}
	return false
}

// sentimentCandidate runs the keyword heuristic over a release headline.
func sentimentCandidate(title string) *models.NarrativeLabel {
	t := strings.ToLower(title)

	for _, kw := range []string{"crisis", "default", "recession", "recesión", "war", "guerra", "sell-off", "contagion"} {
		if strings.Contains(t, kw) {
			return labelPtr(models.NarrativeRiskOff)
		}
	}
	for _, kw := range []string{"stimulus", "estímulo", "easing", "rally", "acuerdo", "agreement", "breakthrough"} {
		if strings.Contains(t, kw) {
			return labelPtr(models.NarrativeRiskOn)
		}
	}
	return nil
}

func labelPtr(l models.NarrativeLabel) *models.NarrativeLabel {
	return &l
}
