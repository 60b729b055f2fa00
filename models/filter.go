package models

// FilterStage names the five quality gate stages.
const (
	StageBasicQuality = "basic_quality"
	StageMarketRegime = "market_regime"
	StageConfluence   = "technical_confluence"
	StageRiskReward   = "risk_reward"
	StageHistorical   = "historical_validation"
)

// StageResult is the outcome of one filter stage.
type StageResult struct {
	Name    string   `json:"name"`
	Passed  bool     `json:"passed"`
	Score   float64  `json:"score"` // 0..100
	Details []string `json:"details,omitempty"`
}

// Recommendation grades from the ultra filter.
const (
	RecommendationReject    = "REJECT"
	RecommendationConsider  = "CONSIDER"
	RecommendationBuy       = "BUY"
	RecommendationStrongBuy = "STRONG_BUY"
)

// FilterResult is the ultra filter's verdict: a pure function of the signal,
// the analysis and the market context.
type FilterResult struct {
	Stages         []StageResult `json:"stages"`
	Passed         bool          `json:"passed"`
	Confidence     float64       `json:"confidence"`
	WinProbability float64       `json:"win_probability"`
	Recommendation string        `json:"recommendation"`
	Rejections     []string      `json:"rejections,omitempty"`
}

// HistoricalPattern is one past signal outcome used for similarity scoring.
type HistoricalPattern struct {
	Pair       string    `json:"pair"`
	Direction  Direction `json:"direction"`
	Strength   float64   `json:"strength"`
	Confidence float64   `json:"confidence"`
	HourOfDay  int       `json:"hour_of_day"`
	Won        bool      `json:"won"`
}

// PatternStats is the blended similarity outcome over the historical store.
type PatternStats struct {
	Score   float64 `json:"score"` // 0..1
	Count   int     `json:"count"`
	WinRate float64 `json:"win_rate"`
}

// OptimizedLevels carries the enhancer's stop and laddered targets.
type OptimizedLevels struct {
	StopLoss     float64    `json:"stop_loss"`
	Targets      [3]float64 `json:"targets"`
	PartialClose [3]float64 `json:"partial_close"` // fractions summing to 1
}

// Signal ratings from the enhancer.
const (
	RatingFiltered   = "FILTERED"
	RatingAcceptable = "ACCEPTABLE"
	RatingGood       = "GOOD"
	RatingExcellent  = "EXCELLENT"
	RatingUltra      = "ULTRA"
)

// EnhancedSignal is the enhancer's re-scored view of a signal.
type EnhancedSignal struct {
	Pair              string          `json:"pair"`
	Direction         Direction       `json:"direction"`
	TrendStrength     float64         `json:"trend_strength"`
	MomentumQuality   float64         `json:"momentum_quality"`
	VolumeScore       float64         `json:"volume_score"`
	Microstructure    float64         `json:"microstructure"`
	PatternSimilarity float64         `json:"pattern_similarity"`
	OriginalScore     float64         `json:"original_score"`
	EnhancedScore     float64         `json:"enhanced_score"`
	WinProbability    float64         `json:"win_probability"`
	OptimizedLevels   OptimizedLevels `json:"optimized_levels"`
	Rating            string          `json:"rating"`
}
