package models

import "time"

// Indicators holds the technical indicator values for one timeframe.
type Indicators struct {
	SMA20          float64   `json:"sma_20"`
	SMA50          float64   `json:"sma_50"`
	EMA12          float64   `json:"ema_12"`
	EMA26          float64   `json:"ema_26"`
	RSI            float64   `json:"rsi"`
	MACD           float64   `json:"macd"`
	MACDSignal     float64   `json:"macd_signal"`
	MACDHist       float64   `json:"macd_hist"`
	BBUpper        float64   `json:"bb_upper"`
	BBMiddle       float64   `json:"bb_middle"`
	BBLower        float64   `json:"bb_lower"`
	BBBandwidth    float64   `json:"bb_bandwidth"` // (upper-lower)/middle*100
	StochK         float64   `json:"stoch_k"`
	StochD         float64   `json:"stoch_d"`
	ATR            float64   `json:"atr"`
	ADX            float64   `json:"adx"`
	PlusDI         float64   `json:"plus_di"`
	MinusDI        float64   `json:"minus_di"`
	Ichimoku       Ichimoku  `json:"ichimoku"`
	Fibonacci      Fibonacci `json:"fibonacci"`
	PriceChangePct float64   `json:"price_change_pct"` // % change over the series window
}

// Ichimoku holds the 9/26/52 cloud values.
type Ichimoku struct {
	Tenkan  float64 `json:"tenkan"`
	Kijun   float64 `json:"kijun"`
	SenkouA float64 `json:"senkou_a"`
	SenkouB float64 `json:"senkou_b"`
}

// Fibonacci holds retracement levels of the window min/max close.
type Fibonacci struct {
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Levels []float64 `json:"levels"` // 23.6 38.2 50.0 61.8 78.6 retracements
}

// CandlePattern is one detected candlestick formation.
type CandlePattern struct {
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"` // 0..100
}

// RegimeInfo classifies price behavior as trending, ranging or transitional.
type RegimeInfo struct {
	State      string  `json:"state"` // trend, range, transition
	Confidence float64 `json:"confidence"`
	Slope      float64 `json:"slope"`     // regression slope, % of price per bar
	RSquared   float64 `json:"r_squared"` // regression fit quality 0..1
	Bandwidth  float64 `json:"bandwidth"` // Bollinger bandwidth %
}

const (
	RegimeTrend      = "trend"
	RegimeRange      = "range"
	RegimeTransition = "transition"
)

// VolatilityCluster is a contiguous run of same-tagged bars.
type VolatilityCluster struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	State string `json:"state"` // volatile, calm, normal
}

// VolatilityInfo summarizes return volatility and its clustering.
type VolatilityInfo struct {
	State    string              `json:"state"` // calm, normal, high, extreme
	Score    float64             `json:"score"` // 0..100
	Clusters []VolatilityCluster `json:"clusters,omitempty"`
}

// Divergence flags a price/oscillator disagreement over the last two swings.
type Divergence struct {
	Indicator  string    `json:"indicator"` // RSI, MACD
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`
}

// VolumePressure summarizes up-versus-down volume over a trailing window.
type VolumePressure struct {
	State     string  `json:"state"`     // buying, selling, neutral
	Imbalance float64 `json:"imbalance"` // -100..100
	ZScore    float64 `json:"z_score"`
}

// TimeframeAnalysis is the full analyzer output for one (pair, timeframe).
type TimeframeAnalysis struct {
	Pair           string          `json:"pair"`
	Timeframe      Timeframe       `json:"timeframe"`
	Indicators     Indicators      `json:"indicators"`
	Patterns       []CandlePattern `json:"patterns,omitempty"`
	Regime         RegimeInfo      `json:"regime"`
	Volatility     VolatilityInfo  `json:"volatility"`
	Divergences    []Divergence    `json:"divergences,omitempty"`
	VolumePressure VolumePressure  `json:"volume_pressure"`
	Score          float64         `json:"score"` // -100..100
	Direction      Direction       `json:"direction"`
	CandleCount    int             `json:"candle_count"`
	LastBarTime    time.Time       `json:"last_bar_time"`
	Fallback       bool            `json:"fallback,omitempty"` // true when data was insufficient
}

// MultiTimeframeAnalysis fuses per-timeframe analyses into one view.
type MultiTimeframeAnalysis struct {
	Pair        string                           `json:"pair"`
	ByTimeframe map[Timeframe]*TimeframeAnalysis `json:"by_timeframe"`
	Score       float64                          `json:"score"`
	Direction   Direction                        `json:"direction"`
	ComputedAt  time.Time                        `json:"computed_at"`
}

// Get returns the analysis for a timeframe, or nil when absent.
func (m *MultiTimeframeAnalysis) Get(tf Timeframe) *TimeframeAnalysis {
	if m == nil || m.ByTimeframe == nil {
		return nil
	}
	return m.ByTimeframe[tf]
}
