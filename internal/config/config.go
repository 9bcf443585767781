package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string            `mapstructure:"environment"`
	LogLevel    string            `mapstructure:"log_level"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Bias        BiasConfig        `mapstructure:"bias"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Narrative   NarrativeConfig   `mapstructure:"narrative"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
	Sources     SourcesConfig     `mapstructure:"sources"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	MaxConns int    `mapstructure:"max_conns"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// CorrelationConfig carries the windowed-calculation policy. Windows and
// thresholds are tuned parameters preserved from observed behavior, not
// derived values.
type CorrelationConfig struct {
	Benchmark        string   `mapstructure:"benchmark"`
	Instruments      []string `mapstructure:"instruments"`
	LongWindowDays   int      `mapstructure:"long_window_days"`
	LongMinObs       int      `mapstructure:"long_min_obs"`
	MidWindowDays    int      `mapstructure:"mid_window_days"`
	MidMinObs        int      `mapstructure:"mid_min_obs"`
	ShortWindowDays  int      `mapstructure:"short_window_days"`
	ShortMinObs      int      `mapstructure:"short_min_obs"`
	MaxStaleness     string   `mapstructure:"max_staleness"`
	WeakeningDecay   float64  `mapstructure:"weakening_decay"`
	BreakCollapse    float64  `mapstructure:"break_collapse"`
	ShiftWeakDiverge float64  `mapstructure:"shift_weak_divergence"`
}

// BiasConfig tunes trading-bias derivation.
type BiasConfig struct {
	ConvictionBonusCorr float64 `mapstructure:"conviction_bonus_corr"`
	WeakAlignmentCorr   float64 `mapstructure:"weak_alignment_corr"`
	CounterTrendCorr    float64 `mapstructure:"counter_trend_corr"`
	RangeDivergence     float64 `mapstructure:"range_divergence"`
}

// ReliabilityConfig tunes the reliability scorer thresholds.
type ReliabilityConfig struct {
	WeakeningPercent   float64 `mapstructure:"weakening_percent"`
	BreakPercent       float64 `mapstructure:"break_percent"`
	ImminentEventHours int     `mapstructure:"imminent_event_hours"`
	CautionScore       int     `mapstructure:"caution_score"`
	ChaosScore         int     `mapstructure:"chaos_score"`
}

// NarrativeConfig tunes the narrative state machine.
type NarrativeConfig struct {
	Cooldown          string  `mapstructure:"cooldown"`
	InflationDeltaPP  float64 `mapstructure:"inflation_delta_pp"`
	GrowthDeltaPP     float64 `mapstructure:"growth_delta_pp"`
	NegativeSurprises int     `mapstructure:"negative_surprises"`
}

// AlertsConfig tunes the threshold alert triggers.
type AlertsConfig struct {
	USDChangeThreshold float64 `mapstructure:"usd_change_threshold"`
	CorrShiftThreshold float64 `mapstructure:"corr_shift_threshold"`
	ReleaseDeltaPP     float64 `mapstructure:"release_delta_pp"`
	OutboundPerMinute  int     `mapstructure:"outbound_per_minute"`
}

// SourcesConfig tunes the upstream source guard and the feed endpoint it
// protects.
type SourcesConfig struct {
	FeedBaseURL      string `mapstructure:"feed_base_url"`
	MaxConcurrent    int    `mapstructure:"max_concurrent"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffBase      string `mapstructure:"backoff_base"`
	BackoffCap       string `mapstructure:"backoff_cap"`
	FailureThreshold int    `mapstructure:"failure_threshold"`
	OpenTimeout      string `mapstructure:"open_timeout"`
	FetchTimeout     string `mapstructure:"fetch_timeout"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate fails fast on durations and thresholds that would otherwise
// surface as misbehavior deep inside a computation cycle.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"correlation.max_staleness": c.Correlation.MaxStaleness,
		"narrative.cooldown":        c.Narrative.Cooldown,
		"sources.backoff_base":      c.Sources.BackoffBase,
		"sources.backoff_cap":       c.Sources.BackoffCap,
		"sources.open_timeout":      c.Sources.OpenTimeout,
		"sources.fetch_timeout":     c.Sources.FetchTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	if c.Correlation.LongMinObs <= 0 || c.Correlation.ShortMinObs <= 0 {
		return fmt.Errorf("correlation min_obs values must be positive")
	}
	if c.Sources.FailureThreshold <= 0 {
		return fmt.Errorf("sources.failure_threshold must be positive")
	}
	return nil
}

// Duration parses a config duration string, falling back to def when the
// field is empty. Validate has already rejected malformed values.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "macrovista")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_conns", 10)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", 0)

	viper.SetDefault("correlation.benchmark", "DXY")
	viper.SetDefault("correlation.instruments", []string{"EURUSD", "XAUUSD", "SPX", "US10Y"})
	viper.SetDefault("correlation.long_window_days", 252)
	viper.SetDefault("correlation.long_min_obs", 150)
	viper.SetDefault("correlation.mid_window_days", 126)
	viper.SetDefault("correlation.mid_min_obs", 80)
	viper.SetDefault("correlation.short_window_days", 63)
	viper.SetDefault("correlation.short_min_obs", 40)
	viper.SetDefault("correlation.max_staleness", "1080h")
	viper.SetDefault("correlation.weakening_decay", 0.25)
	viper.SetDefault("correlation.break_collapse", 0.15)
	viper.SetDefault("correlation.shift_weak_divergence", 0.3)

	viper.SetDefault("bias.conviction_bonus_corr", 0.6)
	viper.SetDefault("bias.weak_alignment_corr", 0.3)
	viper.SetDefault("bias.counter_trend_corr", 0.5)
	viper.SetDefault("bias.range_divergence", 0.4)

	viper.SetDefault("reliability.weakening_percent", 35)
	viper.SetDefault("reliability.break_percent", 10)
	viper.SetDefault("reliability.imminent_event_hours", 3)
	viper.SetDefault("reliability.caution_score", 2)
	viper.SetDefault("reliability.chaos_score", 4)

	viper.SetDefault("narrative.cooldown", "60m")
	viper.SetDefault("narrative.inflation_delta_pp", 0.2)
	viper.SetDefault("narrative.growth_delta_pp", 0.3)
	viper.SetDefault("narrative.negative_surprises", 2)

	viper.SetDefault("alerts.usd_change_threshold", 0.5)
	viper.SetDefault("alerts.corr_shift_threshold", 0.2)
	viper.SetDefault("alerts.release_delta_pp", 0.2)
	viper.SetDefault("alerts.outbound_per_minute", 20)

	viper.SetDefault("sources.feed_base_url", "")
	viper.SetDefault("sources.max_concurrent", 2)
	viper.SetDefault("sources.max_retries", 3)
	viper.SetDefault("sources.backoff_base", "1s")
	viper.SetDefault("sources.backoff_cap", "30s")
	viper.SetDefault("sources.failure_threshold", 3)
	viper.SetDefault("sources.open_timeout", "60s")
	viper.SetDefault("sources.fetch_timeout", "15s")
}
