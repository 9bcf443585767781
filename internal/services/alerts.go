package services

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/dromero86/macrovista/internal/config"
	"github.com/dromero86/macrovista/internal/models"
)

// ValueCache stores the previous values alert triggers compare against.
// Keys are natural strings; a missing key means no previous value.
type ValueCache interface {
	GetFloat(ctx context.Context, key string) (float64, bool, error)
	SetFloat(ctx context.Context, key string, value float64) error
	Exists(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string) error
}

// AlertService runs the independent threshold triggers: USD-change,
// correlation-shift and macro-release. Each compares a newly computed
// value against the previous cached one and dispatches through the shared
// Notifier when the delta crosses its threshold. The triggers share no
// state with the narrative machine.
type AlertService struct {
	config   config.AlertsConfig
	cache    ValueCache
	notifier Notifier
	logger   *logrus.Logger
}

// NewAlertService creates the trigger runner.
func NewAlertService(cfg config.AlertsConfig, cache ValueCache, notifier Notifier, logger *logrus.Logger) *AlertService {
	return &AlertService{
		config:   cfg,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
	}
}

// CheckUSDChange compares the latest USD index level against the cached
// one. The first observation only seeds the cache.
func (s *AlertService) CheckUSDChange(ctx context.Context, symbol string, level float64) (bool, error) {
	key := "alert:usd:" + symbol

	previous, ok, err := s.cache.GetFloat(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read cached USD level: %w", err)
	}
	if !ok {
		return false, s.cache.SetFloat(ctx, key, level)
	}

	delta := level - previous
	if math.Abs(delta) < s.config.USDChangeThreshold {
		return false, nil
	}

	direction := "↑"
	if delta < 0 {
		direction = "↓"
	}
	text := fmt.Sprintf("💵 *%s* %s %.2f (%+.2f desde %.2f)", symbol, direction, level, delta, previous)
	s.dispatch(ctx, "usd_change", text)

	if err := s.cache.SetFloat(ctx, key, level); err != nil {
		return true, fmt.Errorf("failed to update cached USD level: %w", err)
	}
	return true, nil
}

// CheckCorrelationShifts runs the correlation-shift trigger over every
// shift of a freshly built state, comparing the short-window correlation
// against its cached previous value.
func (s *AlertService) CheckCorrelationShifts(ctx context.Context, state *models.CorrelationState) (int, error) {
	fired := 0
	for i := range state.Shifts {
		shift := &state.Shifts[i]
		if shift.Corr3M == nil {
			continue
		}

		key := fmt.Sprintf("alert:corr:%s:%s", shift.Symbol, shift.Benchmark)
		previous, ok, err := s.cache.GetFloat(ctx, key)
		if err != nil {
			return fired, fmt.Errorf("failed to read cached correlation for %s: %w", shift.Symbol, err)
		}
		current := *shift.Corr3M

		if !ok {
			if err := s.cache.SetFloat(ctx, key, current); err != nil {
				return fired, err
			}
			continue
		}

		if math.Abs(current-previous) < s.config.CorrShiftThreshold {
			continue
		}

		text := fmt.Sprintf("📉 *Correlación %s/%s* cambió de %.2f a %.2f (régimen %s)",
			shift.Symbol, shift.Benchmark, previous, current, shift.Regime)
		s.dispatch(ctx, "correlation_shift", text)
		fired++

		if err := s.cache.SetFloat(ctx, key, current); err != nil {
			return fired, err
		}
	}
	return fired, nil
}

// CheckMacroRelease fires when a release surprises beyond the configured
// delta. Releases are deduplicated by title and day so re-ingested feeds
// do not re-alert.
func (s *AlertService) CheckMacroRelease(ctx context.Context, ev *models.MacroEvent) (bool, error) {
	delta, ok := ev.SurpriseDelta()
	if !ok {
		return false, nil
	}
	d := delta.InexactFloat64()
	if math.Abs(d) < s.config.ReleaseDeltaPP {
		return false, nil
	}

	key := fmt.Sprintf("alert:release:%s:%s", ev.PublishedAt.UTC().Format("2006-01-02"), ev.Title)
	seen, err := s.cache.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check release dedup key: %w", err)
	}
	if seen {
		return false, nil
	}

	text := fmt.Sprintf("📰 *%s*: actual %s vs esperado %s (%+.2f pp)",
		ev.Title, ev.Actual.String(), ev.Expected.String(), d)
	s.dispatch(ctx, "macro_release", text)

	if err := s.cache.MarkSeen(ctx, key); err != nil {
		return true, fmt.Errorf("failed to mark release as alerted: %w", err)
	}
	return true, nil
}

// dispatch sends through the shared notifier. Delivery failures degrade to
// a log line; a missed alert must not abort the evaluation cycle.
func (s *AlertService) dispatch(ctx context.Context, trigger, text string) {
	result, err := s.notifier.Send(ctx, text, true)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"trigger": trigger,
			"error":   err.Error(),
		}).Warn("Alert dispatch failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"trigger": trigger,
		"id":      result.ID,
	}).Info("Alert dispatched")
}
