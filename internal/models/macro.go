package models

import "time"

// RiskRegime is the market-wide risk appetite label.
type RiskRegime string

const (
	RiskOn      RiskRegime = "RiskON"
	RiskOff     RiskRegime = "RiskOFF"
	RiskNeutral RiskRegime = "Neutral"
)

// USDDirection carries the dollar regime. Values keep the Spanish labels of
// the upstream classifier, which are part of the persisted contract.
type USDDirection string

const (
	USDStrong  USDDirection = "Fuerte"
	USDWeak    USDDirection = "Débil"
	USDNeutral USDDirection = "Neutral"
)

// LiquidityRegime is the liquidity backdrop label.
type LiquidityRegime string

const (
	LiquidityHigh        LiquidityRegime = "High"
	LiquidityMedium      LiquidityRegime = "Medium"
	LiquidityLow         LiquidityRegime = "Low"
	LiquidityContracting LiquidityRegime = "Contracting"
)

// MacroRegime is the discrete macro snapshot produced by the external
// classifier. Treated here as opaque and already validated.
type MacroRegime struct {
	Risk         RiskRegime      `json:"risk"`
	USDDirection USDDirection    `json:"usd_direction"`
	Quad         string          `json:"quad"`
	Liquidity    LiquidityRegime `json:"liquidity"`
	Credit       string          `json:"credit"`
	AsOf         time.Time       `json:"asof"`
}

// BiasSide is the derived per-instrument position side.
type BiasSide string

const (
	SideLong    BiasSide = "Long"
	SideShort   BiasSide = "Short"
	SideNeutral BiasSide = "Neutral"
)

// Conviction is the bounded confidence label attached to a bias. Labels are
// the upstream Spanish contract values.
type Conviction string

const (
	ConvictionHigh   Conviction = "Alta"
	ConvictionMedium Conviction = "Media"
	ConvictionLow    Conviction = "Baja"
)

// FlagSeverity ranks a risk flag.
type FlagSeverity string

const (
	SeverityLow    FlagSeverity = "Low"
	SeverityMedium FlagSeverity = "Medium"
	SeverityHigh   FlagSeverity = "High"
)

// Risk flag identifiers. Flags are independently evaluated and not mutually
// exclusive.
const (
	FlagRiskOffEnvironment  = "risk_off_environment"
	FlagCorrelationBreak    = "correlation_break"
	FlagLowConfidence       = "low_confidence"
	FlagWeakMacroAlignment  = "weak_macro_alignment"
	FlagLiquidityTightening = "liquidity_tightening"
	FlagUSDCounterTrend     = "usd_counter_trend"
)

// RiskFlag is a labeled, severity-ranked reason to trust a bias less.
type RiskFlag struct {
	ID       string       `json:"id"`
	Label    string       `json:"label"`
	Severity FlagSeverity `json:"severity"`
}

// MarketEnvironment classifies the tradeability of the setup.
type MarketEnvironment string

const (
	EnvironmentTrend MarketEnvironment = "trend"
	EnvironmentRange MarketEnvironment = "range"
)

// AssetTradingBias is the derived, ephemeral per-instrument signal.
// Recomputed every cycle from MacroRegime + CorrelationShift.
type AssetTradingBias struct {
	Symbol      string            `json:"symbol"`
	Side        BiasSide          `json:"side"`
	Conviction  Conviction        `json:"conviction"`
	Narrative   string            `json:"narrative"`
	RiskFlags   []RiskFlag        `json:"risk_flags"`
	Environment MarketEnvironment `json:"environment"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// TacticalSignal is an optional upstream hint carried into bias derivation:
// a base conviction, a confidence label and an optional rationale string.
type TacticalSignal struct {
	Symbol     string     `json:"symbol"`
	Conviction Conviction `json:"conviction"`
	Confidence string     `json:"confidence"`
	Rationale  string     `json:"rationale"`
}

// TradingBiasState is the aggregate bias output of one cycle.
type TradingBiasState struct {
	AsOf   time.Time          `json:"asof"`
	Regime MacroRegime        `json:"regime"`
	Biases []AssetTradingBias `json:"biases"`
}
