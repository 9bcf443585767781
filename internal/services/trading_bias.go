package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dromero86/macrovista/internal/config"
	"github.com/dromero86/macrovista/internal/models"
)

// InstrumentPolicy is the structured per-instrument configuration consumed
// by bias derivation. Unrecognized values fail at construction, not at
// point of use.
type InstrumentPolicy struct {
	Symbol string `json:"symbol"`
	// CorrelationSign is the expected sign of the instrument's correlation
	// to the USD benchmark: -1, 0 or 1.
	CorrelationSign int `json:"correlation_sign"`
	// IsUSDProxy marks the USD basket proxy, whose side follows the USD
	// direction directly.
	IsUSDProxy bool `json:"is_usd_proxy"`
}

// DefaultInstrumentPolicies covers the standard tracked universe against a
// dollar-index benchmark.
func DefaultInstrumentPolicies() []InstrumentPolicy {
	return []InstrumentPolicy{
		{Symbol: "DXY", IsUSDProxy: true},
		{Symbol: "EURUSD", CorrelationSign: -1},
		{Symbol: "XAUUSD", CorrelationSign: -1},
		{Symbol: "SPX", CorrelationSign: -1},
		{Symbol: "US10Y", CorrelationSign: 1},
	}
}

// TradingBiasService combines the correlation state with the macro regime
// into per-instrument sides, conviction and risk flags.
type TradingBiasService struct {
	config   config.BiasConfig
	policies map[string]InstrumentPolicy
	order    []string
	corr     *CorrelationStateService
	regime   MacroRegimeProvider
	tactical TacticalSignalProvider
	logger   *logrus.Logger
}

// NewTradingBiasService validates the instrument policies and creates the
// service. tactical may be nil.
func NewTradingBiasService(cfg config.BiasConfig, policies []InstrumentPolicy, corr *CorrelationStateService, regime MacroRegimeProvider, tactical TacticalSignalProvider, logger *logrus.Logger) (*TradingBiasService, error) {
	bySymbol := make(map[string]InstrumentPolicy, len(policies))
	order := make([]string, 0, len(policies))
	for _, p := range policies {
		if p.Symbol == "" {
			return nil, fmt.Errorf("instrument policy with empty symbol")
		}
		if p.CorrelationSign < -1 || p.CorrelationSign > 1 {
			return nil, fmt.Errorf("instrument %s: correlation_sign must be -1, 0 or 1, got %d", p.Symbol, p.CorrelationSign)
		}
		if _, dup := bySymbol[p.Symbol]; dup {
			return nil, fmt.Errorf("duplicate instrument policy for %s", p.Symbol)
		}
		bySymbol[p.Symbol] = p
		order = append(order, p.Symbol)
	}
	sort.Strings(order)

	return &TradingBiasService{
		config:   cfg,
		policies: bySymbol,
		order:    order,
		corr:     corr,
		regime:   regime,
		tactical: tactical,
		logger:   logger,
	}, nil
}

// GetTradingBiasState derives biases for every instrument with both a
// macro regime and correlation data. Instruments missing upstream data are
// omitted, never defaulted to a fabricated bias.
func (s *TradingBiasService) GetTradingBiasState(ctx context.Context) (*models.TradingBiasState, error) {
	regime, err := s.regime.CurrentRegime(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read macro regime: %w", err)
	}

	corrState, err := s.corr.GetCorrelationState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read correlation state: %w", err)
	}

	var hints map[string]*models.TacticalSignal
	if s.tactical != nil {
		hints, err = s.tactical.Signals(ctx)
		if err != nil {
			s.logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Tactical signals unavailable, deriving without hints")
			hints = nil
		}
	}

	state := &models.TradingBiasState{
		AsOf:   time.Now().UTC(),
		Regime: *regime,
	}
	for _, symbol := range s.order {
		policy := s.policies[symbol]
		summary := corrState.SummaryFor(symbol)
		if summary == nil {
			s.logger.WithFields(logrus.Fields{"symbol": symbol}).Debug("No correlation data, omitting instrument")
			continue
		}
		bias := s.DeriveBias(policy, regime, summary, corrState.ShiftFor(symbol), hints[symbol])
		state.Biases = append(state.Biases, *bias)
	}

	return state, nil
}

// DeriveBias computes one instrument's bias. Pure with respect to its
// inputs; exported so callers with their own snapshots can reuse the
// derivation.
func (s *TradingBiasService) DeriveBias(policy InstrumentPolicy, regime *models.MacroRegime, summary *models.CorrelationSummary, shift *models.CorrelationShift, hint *models.TacticalSignal) *models.AssetTradingBias {
	side := inferSide(policy, regime.USDDirection)
	conviction := s.scoreConviction(side, regime, summary, shift, hint)
	flags := s.riskFlags(side, regime, summary, shift, hint)

	narrative := ""
	if hint != nil && hint.Rationale != "" {
		narrative = hint.Rationale
	} else {
		narrative = s.composeNarrative(policy.Symbol, side, conviction, regime, summary)
	}

	return &models.AssetTradingBias{
		Symbol:      policy.Symbol,
		Side:        side,
		Conviction:  conviction,
		Narrative:   narrative,
		RiskFlags:   flags,
		Environment: s.classifyEnvironment(side, conviction, summary),
		GeneratedAt: time.Now().UTC(),
	}
}

// inferSide maps the configured correlation-sign expectation against the
// USD direction. The USD proxy follows the direction itself.
func inferSide(policy InstrumentPolicy, usd models.USDDirection) models.BiasSide {
	if policy.IsUSDProxy {
		switch usd {
		case models.USDStrong:
			return models.SideLong
		case models.USDWeak:
			return models.SideShort
		default:
			return models.SideNeutral
		}
	}

	usdSign := 0
	switch usd {
	case models.USDStrong:
		usdSign = 1
	case models.USDWeak:
		usdSign = -1
	}

	switch product := policy.CorrelationSign * usdSign; {
	case product > 0:
		return models.SideLong
	case product < 0:
		return models.SideShort
	default:
		return models.SideNeutral
	}
}

// scoreConviction starts from the upstream base level, applies the bounded
// adjustments and clamps to [0,2] before mapping back to a label.
func (s *TradingBiasService) scoreConviction(side models.BiasSide, regime *models.MacroRegime, summary *models.CorrelationSummary, shift *models.CorrelationShift, hint *models.TacticalSignal) models.Conviction {
	score := 1
	if hint != nil {
		score = convictionScore(hint.Conviction)
	}

	if summary.Corr12M.Valid() && math.Abs(*summary.Corr12M.Correlation) > s.config.ConvictionBonusCorr {
		if shift == nil || shift.Regime != models.ShiftBreak {
			score++
		}
	}

	aligned := (regime.Risk == models.RiskOn && side == models.SideLong) ||
		(regime.Risk == models.RiskOff && side == models.SideShort)
	misaligned := (regime.Risk == models.RiskOff && side == models.SideLong) ||
		(regime.Risk == models.RiskOn && side == models.SideShort)

	if aligned {
		score++
	}
	if misaligned {
		score--
	}
	if shift != nil && (shift.Regime == models.ShiftBreak || shift.Regime == models.ShiftWeak) {
		score--
	}

	if score < 0 {
		score = 0
	}
	if score > 2 {
		score = 2
	}
	return convictionLabel(score)
}

func convictionScore(c models.Conviction) int {
	switch c {
	case models.ConvictionHigh:
		return 2
	case models.ConvictionMedium:
		return 1
	default:
		return 0
	}
}

func convictionLabel(score int) models.Conviction {
	switch score {
	case 2:
		return models.ConvictionHigh
	case 1:
		return models.ConvictionMedium
	default:
		return models.ConvictionLow
	}
}

// riskFlags evaluates every flag independently; flags are not mutually
// exclusive.
func (s *TradingBiasService) riskFlags(side models.BiasSide, regime *models.MacroRegime, summary *models.CorrelationSummary, shift *models.CorrelationShift, hint *models.TacticalSignal) []models.RiskFlag {
	var flags []models.RiskFlag

	if regime.Risk == models.RiskOff && side == models.SideLong {
		flags = append(flags, models.RiskFlag{
			ID:       models.FlagRiskOffEnvironment,
			Label:    "Long bias in a risk-off environment",
			Severity: models.SeverityHigh,
		})
	}

	if shift != nil && shift.Regime == models.ShiftBreak {
		flags = append(flags, models.RiskFlag{
			ID:       models.FlagCorrelationBreak,
			Label:    "Correlation regime break against the benchmark",
			Severity: models.SeverityMedium,
		})
	}

	if hint != nil && strings.EqualFold(hint.Confidence, "low") {
		flags = append(flags, models.RiskFlag{
			ID:       models.FlagLowConfidence,
			Label:    "Upstream signal confidence is low",
			Severity: models.SeverityLow,
		})
	}

	if !summary.Corr12M.Valid() || math.Abs(*summary.Corr12M.Correlation) < s.config.WeakAlignmentCorr {
		flags = append(flags, models.RiskFlag{
			ID:       models.FlagWeakMacroAlignment,
			Label:    "Weak or missing correlation to the macro benchmark",
			Severity: models.SeverityMedium,
		})
	}

	tightening := regime.Liquidity == models.LiquidityLow || regime.Liquidity == models.LiquidityContracting
	if tightening && side == models.SideLong {
		flags = append(flags, models.RiskFlag{
			ID:       models.FlagLiquidityTightening,
			Label:    "Long bias while liquidity is tightening",
			Severity: models.SeverityMedium,
		})
	}

	if regime.USDDirection == models.USDStrong && side == models.SideLong &&
		summary.Corr12M.Valid() && *summary.Corr12M.Correlation > s.config.CounterTrendCorr {
		flags = append(flags, models.RiskFlag{
			ID:       models.FlagUSDCounterTrend,
			Label:    "Long bias against a strong USD with strongly positive USD correlation",
			Severity: models.SeverityMedium,
		})
	}

	return flags
}

// composeNarrative synthesizes the fallback rationale when no upstream
// string is supplied.
func (s *TradingBiasService) composeNarrative(symbol string, side models.BiasSide, conviction models.Conviction, regime *models.MacroRegime, summary *models.CorrelationSummary) string {
	corrText := "corr 12m n/d"
	if summary.Corr12M.Valid() {
		corrText = fmt.Sprintf("corr 12m %.2f", *summary.Corr12M.Correlation)
	}
	return fmt.Sprintf("%s %s (%s): USD %s, quad %s, %s, %s",
		symbol, side, conviction, regime.USDDirection, regime.Quad, regime.Risk, corrText)
}

// classifyEnvironment labels the setup trend vs range. Range when there is
// no directional side, conviction is low, or the windows diverge beyond
// the instability threshold.
func (s *TradingBiasService) classifyEnvironment(side models.BiasSide, conviction models.Conviction, summary *models.CorrelationSummary) models.MarketEnvironment {
	if side == models.SideNeutral || conviction == models.ConvictionLow {
		return models.EnvironmentRange
	}
	if summary.Corr12M.Valid() && summary.Corr3M.Valid() {
		if math.Abs(*summary.Corr12M.Correlation-*summary.Corr3M.Correlation) > s.config.RangeDivergence {
			return models.EnvironmentRange
		}
	}
	return models.EnvironmentTrend
}
