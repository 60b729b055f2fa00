package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable threshold of the decision pipeline. All values
// have documented defaults; invalid or non-finite inputs fall back to them
// instead of failing mid-computation.
type Config struct {
	Pair       string   `yaml:"pair" env:"PAIR" default:"EURUSD"`
	Timeframes []string `yaml:"timeframes" default:"[\"M15\",\"H1\",\"H4\",\"D1\"]"`
	LogLevel   string   `yaml:"log_level" env:"LOG_LEVEL" default:"info"`

	// Analyzer
	CacheTTL time.Duration `yaml:"cache_ttl" default:"5m"`

	// Decision thresholds
	MinStrength       float64 `yaml:"min_strength" default:"70" validate:"gte=0,lte=100"`
	MinConfidence     float64 `yaml:"min_confidence" default:"75" validate:"gte=0,lte=100"`
	MinFinalScore     float64 `yaml:"min_final_score" default:"65" validate:"gte=0,lte=100"`
	MinConfluence     float64 `yaml:"min_confluence" default:"60" validate:"gte=0,lte=100"`
	MinConfluenceHits int     `yaml:"min_confluence_hits" default:"4" validate:"gte=0,lte=7"`
	MinRiskReward     float64 `yaml:"min_risk_reward" default:"2.0" validate:"gt=0"`
	MinWinProbability float64 `yaml:"min_win_probability" default:"0.85" validate:"gt=0,lte=1"`

	// Strong-override floors for degraded-layer evaluations
	OverrideConfidenceFloor float64 `yaml:"override_confidence_floor" default:"85"`
	OverrideStrengthFloor   float64 `yaml:"override_strength_floor" default:"70"`

	// Regime / volatility gate
	AllowedRegimes []string `yaml:"allowed_regimes" default:"[\"trend\",\"transition\"]"`
	VolatilityMin  float64  `yaml:"volatility_min" default:"10"`
	VolatilityMax  float64  `yaml:"volatility_max" default:"85"`

	// Risk engine
	RiskPerTrade           float64            `yaml:"risk_per_trade" default:"0.01" validate:"gt=0,lt=1"`
	MaxDailyRisk           float64            `yaml:"max_daily_risk" default:"0.05" validate:"gt=0,lt=1"`
	MinRiskFraction        float64            `yaml:"min_risk_fraction" default:"0.0025"`
	MaxRiskFraction        float64            `yaml:"max_risk_fraction" default:"0.02"`
	MaxExposurePerCurrency float64            `yaml:"max_exposure_per_currency" default:"0"`
	CurrencyLimits         map[string]float64 `yaml:"currency_limits,omitempty"`
	SamePairPenalty        float64            `yaml:"same_pair_penalty" default:"0.5"`
	SharedCurrencyPenalty  float64            `yaml:"shared_currency_penalty" default:"0.2"`
	CorrelationThreshold   float64            `yaml:"correlation_threshold" default:"0.6"`
	MaxCorrelationCluster  int                `yaml:"max_correlation_cluster" default:"3"`
	VaRMaxLossPct          float64            `yaml:"var_max_loss_pct" default:"0"`
	VaRConfidence          float64            `yaml:"var_confidence" default:"0.95"`

	// Market data source (collaborator side)
	DataAPIKey     string        `yaml:"data_api_key" env:"DATA_API_KEY"`
	DataBaseURL    string        `yaml:"data_base_url" env:"DATA_BASE_URL" default:"https://api.twelvedata.com"`
	RequestTimeout time.Duration `yaml:"request_timeout" default:"30s"`
	RequestsPerSec int           `yaml:"requests_per_sec" default:"5"`
	CandleCount    int           `yaml:"candle_count" default:"120" validate:"gte=2"`

	// Optional Postgres ledger; in-memory when empty
	PostgresDSN string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
}

var validate = validator.New()

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, in that order. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.Sanitize()

	if err := validate.Struct(cfg); err != nil {
		// Out-of-range thresholds revert to defaults rather than aborting.
		log.Warn().Err(err).Msg("config validation failed, reverting invalid fields to defaults")
		fresh := &Config{}
		_ = defaults.Set(fresh)
		cfg.revertInvalid(fresh, err)
	}

	return cfg, nil
}

// Default returns the documented default configuration.
func Default() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PAIR"); v != "" {
		c.Pair = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		c.DataAPIKey = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		c.DataBaseURL = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv("RISK_PER_TRADE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RiskPerTrade = f
		}
	}
	if v := os.Getenv("MAX_DAILY_RISK"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MaxDailyRisk = f
		}
	}
	if v := os.Getenv("CANDLE_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CandleCount = n
		}
	}
}

// Sanitize replaces non-finite numeric thresholds with their defaults. The
// analytic core assumes every threshold it reads is a usable number.
func (c *Config) Sanitize() {
	d := Default()
	fix := func(v *float64, dv float64) {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			*v = dv
		}
	}
	fix(&c.MinStrength, d.MinStrength)
	fix(&c.MinConfidence, d.MinConfidence)
	fix(&c.MinFinalScore, d.MinFinalScore)
	fix(&c.MinConfluence, d.MinConfluence)
	fix(&c.MinRiskReward, d.MinRiskReward)
	fix(&c.MinWinProbability, d.MinWinProbability)
	fix(&c.OverrideConfidenceFloor, d.OverrideConfidenceFloor)
	fix(&c.OverrideStrengthFloor, d.OverrideStrengthFloor)
	fix(&c.VolatilityMin, d.VolatilityMin)
	fix(&c.VolatilityMax, d.VolatilityMax)
	fix(&c.RiskPerTrade, d.RiskPerTrade)
	fix(&c.MaxDailyRisk, d.MaxDailyRisk)
	fix(&c.MinRiskFraction, d.MinRiskFraction)
	fix(&c.MaxRiskFraction, d.MaxRiskFraction)
	fix(&c.MaxExposurePerCurrency, d.MaxExposurePerCurrency)
	fix(&c.SamePairPenalty, d.SamePairPenalty)
	fix(&c.SharedCurrencyPenalty, d.SharedCurrencyPenalty)
	fix(&c.CorrelationThreshold, d.CorrelationThreshold)
	fix(&c.VaRMaxLossPct, d.VaRMaxLossPct)
	fix(&c.VaRConfidence, d.VaRConfidence)
}

// revertInvalid resets each field reported by the validator to its default.
func (c *Config) revertInvalid(fresh *Config, err error) {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		*c = *fresh
		return
	}
	for _, fe := range verrs {
		switch fe.StructField() {
		case "MinStrength":
			c.MinStrength = fresh.MinStrength
		case "MinConfidence":
			c.MinConfidence = fresh.MinConfidence
		case "MinFinalScore":
			c.MinFinalScore = fresh.MinFinalScore
		case "MinConfluence":
			c.MinConfluence = fresh.MinConfluence
		case "MinConfluenceHits":
			c.MinConfluenceHits = fresh.MinConfluenceHits
		case "MinRiskReward":
			c.MinRiskReward = fresh.MinRiskReward
		case "MinWinProbability":
			c.MinWinProbability = fresh.MinWinProbability
		case "RiskPerTrade":
			c.RiskPerTrade = fresh.RiskPerTrade
		case "MaxDailyRisk":
			c.MaxDailyRisk = fresh.MaxDailyRisk
		case "CandleCount":
			c.CandleCount = fresh.CandleCount
		}
	}
}

// RegimeAllowed reports whether a regime state passes the allow-list.
func (c *Config) RegimeAllowed(state string) bool {
	for _, r := range c.AllowedRegimes {
		if r == state {
			return true
		}
	}
	return false
}
