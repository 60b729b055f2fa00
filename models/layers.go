package models

// Availability tells how much real data backed a layer's conclusion.
type Availability string

const (
	AvailabilityAvailable  Availability = "available"
	AvailabilityPartial    Availability = "partial"
	AvailabilityMissing    Availability = "missing"
	AvailabilityBestEffort Availability = "best_effort"
)

// Layer is the uniform envelope shared by all 18 analytical layers.
// Name/Summary are English; NameLocal/SummaryLocal carry the localized
// presentation strings and never influence computation.
type Layer struct {
	Index        int          `json:"index"`
	Name         string       `json:"name"`
	NameLocal    string       `json:"name_local,omitempty"`
	Direction    Direction    `json:"direction"`
	Confidence   int          `json:"confidence"` // 0..100
	Score        float64      `json:"score"`
	Availability Availability `json:"availability"`
	Summary      string       `json:"summary,omitempty"`
	SummaryLocal string       `json:"summary_local,omitempty"`
	Evidence     []string     `json:"evidence,omitempty"`
	Warnings     []string     `json:"warnings,omitempty"`
	Metrics      LayerMetrics `json:"metrics,omitempty"`
}

// LayerMetrics is the typed per-layer metrics payload. Each layer owns one
// concrete struct instead of an untyped bag.
type LayerMetrics interface{ layerMetrics() }

// RawDataMetrics — layer 1.
type RawDataMetrics struct {
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Mid          float64 `json:"mid"`
	Spread       float64 `json:"spread"`
	SpreadPct    float64 `json:"spread_pct"`
	SpreadPoints float64 `json:"spread_points"`
	QuoteAgeMs   int64   `json:"quote_age_ms"`
	M15Bars      int     `json:"m15_bars"`
	H1Bars       int     `json:"h1_bars"`
	Synthetic    bool    `json:"synthetic"` // bid/ask derived from last/mid
}

// CandlePhaseMetrics — layer 2.
type CandlePhaseMetrics struct {
	Phase        string  `json:"phase"` // accumulation, expansion, distribution, retracement, unknown
	TrendPct     float64 `json:"trend_pct"`
	StructureBias Direction `json:"structure_bias"`
	CandleBias   Direction `json:"candle_bias"`
}

// StructureMetrics — layer 3.
type StructureMetrics struct {
	D1Direction Direction `json:"d1_direction"`
	H4Direction Direction `json:"h4_direction"`
	HTFConflict bool      `json:"htf_conflict"`
}

// MomentumMetrics — layer 4.
type MomentumMetrics struct {
	QualityScore  float64  `json:"quality_score"`
	RSI           float64  `json:"rsi"`
	TrendPct      float64  `json:"trend_pct"`
	FOMORisk      bool     `json:"fomo_risk"`
	FalseStrength []string `json:"false_strength,omitempty"`
}

// SMCMetrics — layer 5.
type SMCMetrics struct {
	QualityScore  float64 `json:"quality_score"`
	SweepDetected bool    `json:"sweep_detected"`
	OrderBlock    bool    `json:"order_block"`
	FairValueGap  bool    `json:"fair_value_gap"`
	SpreadPoints  float64 `json:"spread_points"`
}

// NewsMetrics — layer 6.
type NewsMetrics struct {
	Direction      Direction `json:"direction"`
	Impact         float64   `json:"impact"`
	UpcomingEvents int       `json:"upcoming_events"`
}

// MacroMetrics — layer 7.
type MacroMetrics struct {
	Differential float64 `json:"differential"`
	Confidence   float64 `json:"confidence"`
}

// SessionMetrics — layer 8. The only layer that reads the wall clock.
type SessionMetrics struct {
	Session     string `json:"session"` // asia, london, newyork, overlap, off
	HourUTC     int    `json:"hour_utc"`
	Weekday     string `json:"weekday"`
	ActiveHours bool   `json:"active_hours"`
}

// MemoryStrengthMetrics — layer 9, dual: market memory + relative strength.
type MemoryStrengthMetrics struct {
	MemoryScore      float64   `json:"memory_score"`
	MemoryTags       []string  `json:"memory_tags,omitempty"`
	MacroDiff        float64   `json:"macro_diff"`
	RelativeBias     Direction `json:"relative_bias"`
}

// LiquidityDefenseMetrics — layer 10, dual: liquidity defense + intermarket.
type LiquidityDefenseMetrics struct {
	DefenseScore    float64            `json:"defense_score"`
	Peers           map[string]float64 `json:"peers,omitempty"`
	PeerStability   float64            `json:"peer_stability"`
	IntermarketMiss bool               `json:"intermarket_missing"`
}

// VolatilityRegimeMetrics — layer 11.
type VolatilityRegimeMetrics struct {
	State    string  `json:"state"`
	Score    float64 `json:"score"`
	ATRPct   float64 `json:"atr_pct"`
	Clusters int     `json:"clusters"`
}

// DivergenceMetrics — layer 12.
type DivergenceMetrics struct {
	Bullish     int     `json:"bullish"`
	Bearish     int     `json:"bearish"`
	RSI         float64 `json:"rsi"`
	RSIExtreme  bool    `json:"rsi_extreme"`
	StochK      float64 `json:"stoch_k"`
}

// AlignmentMetrics — layer 13.
type AlignmentMetrics struct {
	Agreeing   int       `json:"agreeing"`
	Total      int       `json:"total"`
	Dominant   Direction `json:"dominant"`
	FusedScore float64   `json:"fused_score"`
}

// RiskEnvironmentMetrics — layer 14.
type RiskEnvironmentMetrics struct {
	RiskScore          float64 `json:"risk_score"`
	SpreadPenalty      float64 `json:"spread_penalty"`
	NewsPenalty        float64 `json:"news_penalty"`
	ATRPenalty         float64 `json:"atr_penalty"`
	FailureCostSeconds float64 `json:"failure_cost_seconds"`
}

// TrendStatsMetrics — layer 15.
type TrendStatsMetrics struct {
	RSquared float64 `json:"r_squared"`
	Slope    float64 `json:"slope"`
	Bars     int     `json:"bars"`
}

// ValidationMetrics — layer 16.
type ValidationMetrics struct {
	Valid        bool     `json:"valid"`
	FailedChecks []string `json:"failed_checks,omitempty"`
}

// ConfluenceMetrics — layer 17.
type ConfluenceMetrics struct {
	BuyVotes     int     `json:"buy_votes"`
	SellVotes    int     `json:"sell_votes"`
	NeutralVotes int     `json:"neutral_votes"`
	Alignment    float64 `json:"alignment"` // 0..100
	Weighted     float64 `json:"weighted_confluence"`
	MinScore     float64 `json:"min_score"`
	HardFails    int     `json:"hard_fails"`
	HTFBlock     bool    `json:"htf_block"`
}

// DecisionMetrics — layer 18.
type DecisionMetrics struct {
	State              DecisionState `json:"state"`
	BaseConfidence     int           `json:"base_confidence"`
	AdaptiveConfidence int           `json:"adaptive_confidence"`
	SizingHint         int           `json:"sizing_hint"` // 0..10
	HardFails          int           `json:"hard_fails"`
}

func (RawDataMetrics) layerMetrics()          {}
func (CandlePhaseMetrics) layerMetrics()      {}
func (StructureMetrics) layerMetrics()        {}
func (MomentumMetrics) layerMetrics()         {}
func (SMCMetrics) layerMetrics()              {}
func (NewsMetrics) layerMetrics()             {}
func (MacroMetrics) layerMetrics()            {}
func (SessionMetrics) layerMetrics()          {}
func (MemoryStrengthMetrics) layerMetrics()   {}
func (LiquidityDefenseMetrics) layerMetrics() {}
func (VolatilityRegimeMetrics) layerMetrics() {}
func (DivergenceMetrics) layerMetrics()       {}
func (AlignmentMetrics) layerMetrics()        {}
func (RiskEnvironmentMetrics) layerMetrics()  {}
func (TrendStatsMetrics) layerMetrics()       {}
func (ValidationMetrics) layerMetrics()       {}
func (ConfluenceMetrics) layerMetrics()       {}
func (DecisionMetrics) layerMetrics()         {}

// DecisionState is the 3-state outcome of the layered evaluation.
type DecisionState string

const (
	DecisionEnter   DecisionState = "ENTER"
	DecisionWait    DecisionState = "WAIT_MONITOR"
	DecisionBlocked DecisionState = "NO_TRADE_BLOCKED"
)

// KillSwitch lists the hard-block conditions that forced a BLOCKED state.
type KillSwitch struct {
	IDs     []string `json:"ids,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

// Decision is derived once per evaluation from layers 16-18.
type Decision struct {
	State              DecisionState `json:"state"`
	Score              float64       `json:"score"`
	Blocked            bool          `json:"blocked"`
	Missing            []string      `json:"missing,omitempty"`
	WhatWouldChange    []string      `json:"what_would_change,omitempty"`
	KillSwitch         KillSwitch    `json:"kill_switch"`
	AdaptiveConfidence int           `json:"adaptive_confidence"`
	SizingHint         int           `json:"sizing_hint"`
	NextSteps          []string      `json:"next_steps,omitempty"`
}
