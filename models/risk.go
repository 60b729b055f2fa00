package models

// ActiveTrade is one open position in the shared ledger.
type ActiveTrade struct {
	ID           string    `json:"id"`
	Pair         string    `json:"pair"`
	Direction    Direction `json:"direction"`
	PositionSize float64   `json:"position_size"`
	RiskFraction float64   `json:"risk_fraction"`
}

// StressTest reports the equity impact of one adverse scenario.
type StressTest struct {
	Name            string  `json:"name"`
	PriceMove       float64 `json:"price_move"`
	EquityImpact    float64 `json:"equity_impact"`
	EquityImpactPct float64 `json:"equity_impact_pct"`
}

// RiskAssessment is the full sizing and guardrail verdict for one candidate
// trade. It holds no persisted state beyond the ledger snapshot it embeds.
type RiskAssessment struct {
	Pair                  string             `json:"pair"`
	Direction             Direction          `json:"direction"`
	PositionSize          float64            `json:"position_size"`
	RiskFraction          float64            `json:"risk_fraction"`
	KellyFraction         float64            `json:"kelly_fraction"`
	VolatilityMultiplier  float64            `json:"volatility_multiplier"`
	CorrelationMultiplier float64            `json:"correlation_multiplier"`
	DailyBudgetRemaining  float64            `json:"daily_budget_remaining"`
	Exposure              map[string]float64 `json:"exposure,omitempty"`
	ExposureBreached      bool               `json:"exposure_breached"`
	CurrencyLimitBreached bool               `json:"currency_limit_breached"`
	CorrelationBlocked    bool               `json:"correlation_blocked"`
	VaRBlocked            bool               `json:"var_blocked"`
	Breaches              []string           `json:"breaches,omitempty"`
	StressTests           []StressTest       `json:"stress_tests"`
	CanTrade              bool               `json:"can_trade"`
}
