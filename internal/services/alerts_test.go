package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dromero86/macrovista/internal/config"
	"github.com/dromero86/macrovista/internal/models"
)

func newTestAlerts(t *testing.T, cache ValueCache, notifier Notifier) *AlertService {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	cfg := config.AlertsConfig{
		USDChangeThreshold: 0.5,
		CorrShiftThreshold: 0.2,
		ReleaseDeltaPP:     0.2,
		OutboundPerMinute:  20,
	}
	return NewAlertService(cfg, cache, notifier, logger)
}

func TestCheckUSDChangeFirstObservationSeeds(t *testing.T) {
	cache := newFakeValueCache()
	notifier := &fakeNotifier{}
	s := newTestAlerts(t, cache, notifier)

	fired, err := s.CheckUSDChange(context.Background(), "DXY", 104.2)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Zero(t, notifier.count())

	// Seeded: the next reading compares against it.
	v, ok, _ := cache.GetFloat(context.Background(), "alert:usd:DXY")
	require.True(t, ok)
	assert.Equal(t, 104.2, v)
}

func TestCheckUSDChangeFiresOnThreshold(t *testing.T) {
	cache := newFakeValueCache()
	notifier := &fakeNotifier{}
	s := newTestAlerts(t, cache, notifier)

	_, err := s.CheckUSDChange(context.Background(), "DXY", 104.2)
	require.NoError(t, err)

	fired, err := s.CheckUSDChange(context.Background(), "DXY", 104.9)
	require.NoError(t, err)
	assert.True(t, fired)
	require.Equal(t, 1, notifier.count())
	assert.Contains(t, notifier.messages[0], "DXY")

	// Cache now holds the new level.
	v, _, _ := cache.GetFloat(context.Background(), "alert:usd:DXY")
	assert.Equal(t, 104.9, v)
}

func TestCheckUSDChangeBelowThresholdIsSilent(t *testing.T) {
	cache := newFakeValueCache()
	notifier := &fakeNotifier{}
	s := newTestAlerts(t, cache, notifier)

	_, err := s.CheckUSDChange(context.Background(), "DXY", 104.2)
	require.NoError(t, err)

	fired, err := s.CheckUSDChange(context.Background(), "DXY", 104.5)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Zero(t, notifier.count())
}

func TestCheckCorrelationShifts(t *testing.T) {
	cache := newFakeValueCache()
	notifier := &fakeNotifier{}
	s := newTestAlerts(t, cache, notifier)

	corr := func(v float64) *float64 { return &v }
	state := &models.CorrelationState{
		Shifts: []models.CorrelationShift{
			{Symbol: "EURUSD", Benchmark: "DXY", Corr3M: corr(-0.8), Regime: models.ShiftStable},
			{Symbol: "XAUUSD", Benchmark: "DXY", Corr3M: corr(0.5), Regime: models.ShiftStable},
		},
	}

	// First cycle seeds without alerting.
	fired, err := s.CheckCorrelationShifts(context.Background(), state)
	require.NoError(t, err)
	assert.Zero(t, fired)

	// Second cycle: one shift crosses the threshold.
	state.Shifts[0].Corr3M = corr(-0.4)
	state.Shifts[0].Regime = models.ShiftWeak
	state.Shifts[1].Corr3M = corr(0.45)

	fired, err = s.CheckCorrelationShifts(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
	require.Equal(t, 1, notifier.count())
	assert.Contains(t, notifier.messages[0], "EURUSD")
}

func TestCheckCorrelationShiftsSkipsNullWindows(t *testing.T) {
	cache := newFakeValueCache()
	notifier := &fakeNotifier{}
	s := newTestAlerts(t, cache, notifier)

	state := &models.CorrelationState{
		Shifts: []models.CorrelationShift{
			{Symbol: "EURUSD", Benchmark: "DXY", Corr3M: nil},
		},
	}

	fired, err := s.CheckCorrelationShifts(context.Background(), state)
	require.NoError(t, err)
	assert.Zero(t, fired)
}

func TestCheckMacroReleaseFiresAndDedups(t *testing.T) {
	cache := newFakeValueCache()
	notifier := &fakeNotifier{}
	s := newTestAlerts(t, cache, notifier)

	ev := &models.MacroEvent{
		Title:       "CPI YoY",
		Actual:      decimalPtr(3.9),
		Expected:    decimalPtr(3.5),
		PublishedAt: time.Date(2026, time.March, 2, 13, 30, 0, 0, time.UTC),
	}

	fired, err := s.CheckMacroRelease(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, fired)
	require.Equal(t, 1, notifier.count())
	assert.Contains(t, notifier.messages[0], "CPI YoY")

	// A re-ingested feed must not re-alert the same release.
	fired, err = s.CheckMacroRelease(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, 1, notifier.count())
}

func TestCheckMacroReleaseIgnoresSmallSurprises(t *testing.T) {
	s := newTestAlerts(t, newFakeValueCache(), &fakeNotifier{})

	ev := &models.MacroEvent{
		Title:       "PMI",
		Actual:      decimalPtr(50.1),
		Expected:    decimalPtr(50.0),
		PublishedAt: time.Now(),
	}
	fired, err := s.CheckMacroRelease(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestCheckMacroReleaseQualitativeHeadline(t *testing.T) {
	s := newTestAlerts(t, newFakeValueCache(), &fakeNotifier{})

	ev := &models.MacroEvent{Title: "Central bank speech", PublishedAt: time.Now()}
	fired, err := s.CheckMacroRelease(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, fired)
}
