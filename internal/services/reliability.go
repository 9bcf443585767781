package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dromero86/macrovista/internal/config"
	"github.com/dromero86/macrovista/internal/models"
)

// ReliabilityService aggregates correlation health and event proximity
// into a traffic-light status. Pure aggregation, no side effects.
type ReliabilityService struct {
	config config.ReliabilityConfig
	corr   *CorrelationStateService
	events UpcomingEventFeed
	logger *logrus.Logger
}

// NewReliabilityService creates the scorer. events may be nil when no
// calendar feed is wired; the imminent-event check then stays false.
func NewReliabilityService(cfg config.ReliabilityConfig, corr *CorrelationStateService, events UpcomingEventFeed, logger *logrus.Logger) *ReliabilityService {
	return &ReliabilityService{
		config: cfg,
		corr:   corr,
		events: events,
		logger: logger,
	}
}

// ReliabilityInputs are the raw signals the score is computed from.
type ReliabilityInputs struct {
	TrackedPairs       int
	PercentWeakening   float64
	PercentBreak       float64
	ImminentHighImpact bool
	RegimeSwitch       bool
}

// ScoreFromInputs applies the scoring rules. Absence of data is a
// distinct, labeled state: zero tracked pairs scores 0/normal with an
// explicit insufficient-data message, never a silent "all clear".
func (s *ReliabilityService) ScoreFromInputs(in ReliabilityInputs) *models.ReliabilityScore {
	now := time.Now().UTC()

	if in.TrackedPairs == 0 {
		return &models.ReliabilityScore{
			Score:   0,
			Status:  models.StatusNormal,
			Message: "Insufficient data: no tracked correlation pairs this cycle",
			Details: models.ReliabilityDetails{
				Reasons: []string{"insufficient correlation data"},
			},
			AsOf: now,
		}
	}

	score := 0
	var reasons []string

	if in.PercentWeakening > s.config.WeakeningPercent {
		score += 2
		reasons = append(reasons, fmt.Sprintf("%.0f%% of pairs weakening or inconclusive", in.PercentWeakening))
	}
	if in.PercentBreak > s.config.BreakPercent {
		score += 2
		reasons = append(reasons, fmt.Sprintf("%.0f%% of pairs in correlation break", in.PercentBreak))
	}
	if in.ImminentHighImpact {
		score += 2
		reasons = append(reasons, fmt.Sprintf("high-impact event within %dh", s.config.ImminentEventHours))
	}
	if in.RegimeSwitch {
		score++
		reasons = append(reasons, "regime switch inferred")
	}

	status := models.StatusNormal
	switch {
	case score >= s.config.ChaosScore:
		status = models.StatusChaos
	case score >= s.config.CautionScore:
		status = models.StatusCaution
	}

	message := "Signal engine operating normally"
	if len(reasons) > 0 {
		message = "Reliability degraded: " + strings.Join(reasons, "; ")
	}

	return &models.ReliabilityScore{
		Score:   score,
		Status:  status,
		Message: message,
		Details: models.ReliabilityDetails{
			TrackedPairs:       in.TrackedPairs,
			PercentWeakening:   in.PercentWeakening,
			PercentBreak:       in.PercentBreak,
			ImminentHighImpact: in.ImminentHighImpact,
			RegimeSwitch:       in.RegimeSwitch,
			Reasons:            reasons,
		},
		AsOf: now,
	}
}

// CalculateReliabilityScore builds the inputs from the shared correlation
// state and the upcoming-event feed, then scores them. The regime-switch
// flag is proxied by the break fraction exceeding its threshold.
func (s *ReliabilityService) CalculateReliabilityScore(ctx context.Context) (*models.ReliabilityScore, error) {
	state, err := s.corr.GetCorrelationState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read correlation state: %w", err)
	}

	in := InputsFromState(state)
	in.RegimeSwitch = in.PercentBreak > s.config.BreakPercent
	in.ImminentHighImpact = s.hasImminentHighImpact(ctx)

	score := s.ScoreFromInputs(in)
	s.logger.WithFields(logrus.Fields{
		"score":  score.Score,
		"status": string(score.Status),
	}).Info("Reliability score computed")

	return score, nil
}

// InputsFromState derives the correlation-health fractions from one
// cycle's state.
func InputsFromState(state *models.CorrelationState) ReliabilityInputs {
	in := ReliabilityInputs{TrackedPairs: len(state.Summaries)}
	if in.TrackedPairs == 0 {
		return in
	}

	weakening := 0
	for _, sum := range state.Summaries {
		if sum.Trend == models.TrendWeakening || sum.Trend == models.TrendInconclusive {
			weakening++
		}
	}

	breaks := 0
	for _, shift := range state.Shifts {
		if shift.Regime == models.ShiftBreak {
			breaks++
		}
	}

	total := float64(in.TrackedPairs)
	in.PercentWeakening = 100 * float64(weakening) / total
	in.PercentBreak = 100 * float64(breaks) / total
	return in
}

func (s *ReliabilityService) hasImminentHighImpact(ctx context.Context) bool {
	if s.events == nil {
		return false
	}

	horizon := time.Duration(s.config.ImminentEventHours) * time.Hour
	upcoming, err := s.events.FetchUpcoming(ctx, horizon)
	if err != nil {
		s.logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Upcoming-event feed unavailable")
		return false
	}

	now := time.Now().UTC()
	for _, ev := range upcoming {
		if ev.Impact != models.ImpactHigh {
			continue
		}
		if ev.At.After(now) && ev.At.Sub(now) <= horizon {
			return true
		}
	}
	return false
}
