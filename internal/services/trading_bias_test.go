package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dromero86/macrovista/internal/config"
	"github.com/dromero86/macrovista/internal/models"
)

func testBiasConfig() config.BiasConfig {
	return config.BiasConfig{
		ConvictionBonusCorr: 0.6,
		WeakAlignmentCorr:   0.3,
		CounterTrendCorr:    0.5,
		RangeDivergence:     0.4,
	}
}

func newTestBias(t *testing.T, regime MacroRegimeProvider) *TradingBiasService {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	s, err := NewTradingBiasService(testBiasConfig(), DefaultInstrumentPolicies(), nil, regime, nil, logger)
	require.NoError(t, err)
	return s
}

func corrResult(v float64) *models.CorrelationResult {
	return &models.CorrelationResult{Correlation: &v, NObs: 150}
}

func summaryWith(symbol string, corr12, corr3 float64) *models.CorrelationSummary {
	return &models.CorrelationSummary{
		Symbol:    symbol,
		Benchmark: "DXY",
		Corr12M:   corrResult(corr12),
		Corr6M:    corrResult((corr12 + corr3) / 2),
		Corr3M:    corrResult(corr3),
		Trend:     models.TrendStable,
	}
}

func TestNewTradingBiasServiceValidation(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	_, err := NewTradingBiasService(testBiasConfig(), []InstrumentPolicy{{Symbol: ""}}, nil, nil, nil, logger)
	assert.ErrorContains(t, err, "empty symbol")

	_, err = NewTradingBiasService(testBiasConfig(), []InstrumentPolicy{{Symbol: "EURUSD", CorrelationSign: 2}}, nil, nil, nil, logger)
	assert.ErrorContains(t, err, "correlation_sign")

	_, err = NewTradingBiasService(testBiasConfig(), []InstrumentPolicy{
		{Symbol: "EURUSD", CorrelationSign: -1},
		{Symbol: "EURUSD", CorrelationSign: 1},
	}, nil, nil, nil, logger)
	assert.ErrorContains(t, err, "duplicate")
}

func TestInferSideNegativeCorrelationInstrument(t *testing.T) {
	policy := InstrumentPolicy{Symbol: "EURUSD", CorrelationSign: -1}

	// Weak USD with an inverse USD instrument means long.
	assert.Equal(t, models.SideLong, inferSide(policy, models.USDWeak))
	assert.Equal(t, models.SideShort, inferSide(policy, models.USDStrong))
	assert.Equal(t, models.SideNeutral, inferSide(policy, models.USDNeutral))
}

func TestInferSidePositiveCorrelationInstrument(t *testing.T) {
	policy := InstrumentPolicy{Symbol: "US10Y", CorrelationSign: 1}

	assert.Equal(t, models.SideLong, inferSide(policy, models.USDStrong))
	assert.Equal(t, models.SideShort, inferSide(policy, models.USDWeak))
}

func TestInferSideUSDProxy(t *testing.T) {
	policy := InstrumentPolicy{Symbol: "DXY", IsUSDProxy: true}

	assert.Equal(t, models.SideLong, inferSide(policy, models.USDStrong))
	assert.Equal(t, models.SideShort, inferSide(policy, models.USDWeak))
	assert.Equal(t, models.SideNeutral, inferSide(policy, models.USDNeutral))
}

func TestDeriveBiasHighConviction(t *testing.T) {
	regime := &models.MacroRegime{
		Risk:         models.RiskOn,
		USDDirection: models.USDWeak,
		Liquidity:    models.LiquidityHigh,
	}
	s := newTestBias(t, &fakeRegimeProvider{regime: regime})

	summary := summaryWith("EURUSD", -0.8, -0.75)
	shift := &models.CorrelationShift{Symbol: "EURUSD", Regime: models.ShiftStable}

	bias := s.DeriveBias(InstrumentPolicy{Symbol: "EURUSD", CorrelationSign: -1}, regime, summary, shift, nil)

	assert.Equal(t, models.SideLong, bias.Side)
	// Base 1, +1 strong correlation, +1 regime aligned, clamped to 2.
	assert.Equal(t, models.ConvictionHigh, bias.Conviction)
	assert.Empty(t, bias.RiskFlags)
	assert.Equal(t, models.EnvironmentTrend, bias.Environment)
	assert.NotEmpty(t, bias.Narrative)
}

func TestDeriveBiasBreakIsNeverSilent(t *testing.T) {
	regime := &models.MacroRegime{
		Risk:         models.RiskOn,
		USDDirection: models.USDWeak,
		Liquidity:    models.LiquidityHigh,
	}
	s := newTestBias(t, &fakeRegimeProvider{regime: regime})

	summary := summaryWith("EURUSD", -0.8, 0.4)
	summary.Trend = models.TrendBreak
	shift := &models.CorrelationShift{Symbol: "EURUSD", Regime: models.ShiftBreak}

	bias := s.DeriveBias(InstrumentPolicy{Symbol: "EURUSD", CorrelationSign: -1}, regime, summary, shift, nil)

	var ids []string
	for _, f := range bias.RiskFlags {
		ids = append(ids, f.ID)
	}
	assert.Contains(t, ids, models.FlagCorrelationBreak)
	// A break both flags and costs conviction: no strong-correlation bonus,
	// aligned +1, shift -1.
	assert.Equal(t, models.ConvictionMedium, bias.Conviction)
}

func TestDeriveBiasRiskOffLongFlag(t *testing.T) {
	regime := &models.MacroRegime{
		Risk:         models.RiskOff,
		USDDirection: models.USDWeak,
		Liquidity:    models.LiquidityLow,
	}
	s := newTestBias(t, &fakeRegimeProvider{regime: regime})

	summary := summaryWith("XAUUSD", -0.7, -0.65)
	bias := s.DeriveBias(InstrumentPolicy{Symbol: "XAUUSD", CorrelationSign: -1}, regime, summary, nil, nil)

	require.Equal(t, models.SideLong, bias.Side)
	var ids []string
	for _, f := range bias.RiskFlags {
		ids = append(ids, f.ID)
	}
	assert.Contains(t, ids, models.FlagRiskOffEnvironment)
	assert.Contains(t, ids, models.FlagLiquidityTightening)
}

func TestDeriveBiasWeakAlignmentFlag(t *testing.T) {
	regime := &models.MacroRegime{
		Risk:         models.RiskNeutral,
		USDDirection: models.USDStrong,
		Liquidity:    models.LiquidityMedium,
	}
	s := newTestBias(t, &fakeRegimeProvider{regime: regime})

	summary := summaryWith("US10Y", 0.1, 0.05)
	bias := s.DeriveBias(InstrumentPolicy{Symbol: "US10Y", CorrelationSign: 1}, regime, summary, nil, nil)

	var ids []string
	for _, f := range bias.RiskFlags {
		ids = append(ids, f.ID)
	}
	assert.Contains(t, ids, models.FlagWeakMacroAlignment)
}

func TestDeriveBiasUSDCounterTrendFlag(t *testing.T) {
	regime := &models.MacroRegime{
		Risk:         models.RiskOn,
		USDDirection: models.USDStrong,
		Liquidity:    models.LiquidityHigh,
	}
	s := newTestBias(t, &fakeRegimeProvider{regime: regime})

	summary := summaryWith("US10Y", 0.8, 0.75)
	bias := s.DeriveBias(InstrumentPolicy{Symbol: "US10Y", CorrelationSign: 1}, regime, summary, nil, nil)

	require.Equal(t, models.SideLong, bias.Side)
	var ids []string
	for _, f := range bias.RiskFlags {
		ids = append(ids, f.ID)
	}
	assert.Contains(t, ids, models.FlagUSDCounterTrend)
}

func TestDeriveBiasTacticalHint(t *testing.T) {
	regime := &models.MacroRegime{
		Risk:         models.RiskNeutral,
		USDDirection: models.USDWeak,
		Liquidity:    models.LiquidityMedium,
	}
	s := newTestBias(t, &fakeRegimeProvider{regime: regime})

	summary := summaryWith("EURUSD", -0.4, -0.35)
	hint := &models.TacticalSignal{
		Symbol:     "EURUSD",
		Conviction: models.ConvictionLow,
		Confidence: "low",
		Rationale:  "upstream says wait",
	}

	bias := s.DeriveBias(InstrumentPolicy{Symbol: "EURUSD", CorrelationSign: -1}, regime, summary, nil, hint)

	assert.Equal(t, "upstream says wait", bias.Narrative)
	assert.Equal(t, models.ConvictionLow, bias.Conviction)
	var ids []string
	for _, f := range bias.RiskFlags {
		ids = append(ids, f.ID)
	}
	assert.Contains(t, ids, models.FlagLowConfidence)
	// Low conviction setups read as range, not trend.
	assert.Equal(t, models.EnvironmentRange, bias.Environment)
}

func TestDeriveBiasRangeOnWindowDivergence(t *testing.T) {
	regime := &models.MacroRegime{
		Risk:         models.RiskOn,
		USDDirection: models.USDWeak,
		Liquidity:    models.LiquidityHigh,
	}
	s := newTestBias(t, &fakeRegimeProvider{regime: regime})

	summary := summaryWith("EURUSD", -0.9, -0.2)
	bias := s.DeriveBias(InstrumentPolicy{Symbol: "EURUSD", CorrelationSign: -1}, regime, summary, nil, nil)

	assert.Equal(t, models.EnvironmentRange, bias.Environment)
}

func TestGetTradingBiasStateRegimeError(t *testing.T) {
	s := newTestBias(t, &fakeRegimeProvider{err: assert.AnError})

	_, err := s.GetTradingBiasState(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "macro regime")
}
