package models

import (
	"strings"
	"time"
)

// Direction is the signed side of a signal or analysis result.
type Direction string

const (
	DirectionBuy     Direction = "BUY"
	DirectionSell    Direction = "SELL"
	DirectionNeutral Direction = "NEUTRAL"
)

// Opposite returns the opposing trade side; NEUTRAL stays NEUTRAL.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionBuy:
		return DirectionSell
	case DirectionSell:
		return DirectionBuy
	}
	return DirectionNeutral
}

// Candle represents a single finalized price bar. Series are ordered
// oldest-first.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume,omitempty"`
}

// Body returns the absolute candle body size.
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the full high-low span.
func (c Candle) Range() float64 { return c.High - c.Low }

// UpperShadow returns the wick above the body.
func (c Candle) UpperShadow() float64 {
	if c.Close > c.Open {
		return c.High - c.Close
	}
	return c.High - c.Open
}

// LowerShadow returns the wick below the body.
func (c Candle) LowerShadow() float64 {
	if c.Close > c.Open {
		return c.Open - c.Low
	}
	return c.Close - c.Low
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool { return c.Close > c.Open }

// Quote is the latest tick-level snapshot for a pair. Every field is
// optional; the core degrades gracefully when values are zero.
type Quote struct {
	Bid                    float64   `json:"bid,omitempty"`
	Ask                    float64   `json:"ask,omitempty"`
	Last                   float64   `json:"last,omitempty"`
	Mid                    float64   `json:"mid,omitempty"`
	Spread                 float64   `json:"spread,omitempty"`
	SpreadPoints           float64   `json:"spread_points,omitempty"`
	Volume                 int64     `json:"volume,omitempty"`
	LiquidityHint          float64   `json:"liquidity_hint,omitempty"`
	MidVelocityPerSec      float64   `json:"mid_velocity_per_sec,omitempty"`
	MidAccelerationPerSec2 float64   `json:"mid_acceleration_per_sec2,omitempty"`
	Time                   time.Time `json:"time,omitempty"`
	AgeMs                  int64     `json:"age_ms,omitempty"`
	Source                 string    `json:"source,omitempty"`
	Pending                bool      `json:"pending,omitempty"`
}

// PairInfo carries collaborator-owned pair metadata.
type PairInfo struct {
	Symbol      string  `json:"symbol"`
	Base        string  `json:"base"`
	Quote       string  `json:"quote"`
	AssetClass  string  `json:"asset_class"`
	PipSize     float64 `json:"pip_size"`
	PriceDigits int     `json:"price_digits"`
}

// Currencies returns base and quote, parsing the symbol when the explicit
// fields are empty (e.g. "EURUSD" or "EUR/USD").
func (p PairInfo) Currencies() (string, string) {
	if p.Base != "" && p.Quote != "" {
		return p.Base, p.Quote
	}
	s := strings.ReplaceAll(p.Symbol, "/", "")
	if len(s) >= 6 {
		return s[:3], s[3:6]
	}
	return p.Base, p.Quote
}

// Pip returns the configured pip size or the conventional default.
func (p PairInfo) Pip() float64 {
	if p.PipSize > 0 {
		return p.PipSize
	}
	if strings.Contains(p.Symbol, "JPY") {
		return 0.01
	}
	return 0.0001
}

// EconomicSnapshot is a collaborator-provided macro differential between the
// pair's two economies. Positive favors the base currency.
type EconomicSnapshot struct {
	Differential float64 `json:"differential"`
	Confidence   float64 `json:"confidence"`
}

// NewsSnapshot aggregates collaborator-provided news sentiment.
type NewsSnapshot struct {
	Direction      Direction `json:"direction"`
	Confidence     float64   `json:"confidence"`
	Impact         float64   `json:"impact"` // 0..10
	UpcomingEvents []string  `json:"upcoming_events,omitempty"`
}

// IntermarketSnapshot is a collaborator-provided correlation view across
// related instruments.
type IntermarketSnapshot struct {
	Peers     map[string]float64 `json:"peers"`
	Stability float64            `json:"stability"`
	Breaks    []string           `json:"breaks,omitempty"`
}

// VaRSnapshot is an externally computed portfolio value-at-risk estimate.
type VaRSnapshot struct {
	LossPct    float64 `json:"loss_pct"`
	Confidence float64 `json:"confidence"`
}

// MarketMemory carries tags describing recently observed liquidity events
// for the pair (sweep, rejection, volume_spike).
type MarketMemory struct {
	Tags []string `json:"tags,omitempty"`
}

// Signal is a raw trade idea evaluated by the decision builder, the ultra
// filter and the enhancer.
type Signal struct {
	Pair       string    `json:"pair"`
	Direction  Direction `json:"direction"`
	Strength   float64   `json:"strength"`    // 0..100
	Confidence float64   `json:"confidence"`  // 0..100
	FinalScore float64   `json:"final_score"` // 0..100
	Entry      float64   `json:"entry,omitempty"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
	RiskReward float64   `json:"risk_reward,omitempty"`
	State      string    `json:"state,omitempty"`
	Valid      bool      `json:"valid"`
	Time       time.Time `json:"time,omitempty"`
}

// HasLevels reports whether entry, stop and target are all present.
func (s Signal) HasLevels() bool {
	return s.Entry > 0 && s.StopLoss > 0 && s.TakeProfit > 0
}
