// Package risk sizes candidate trades with a blended Kelly criterion and
// enforces the portfolio guardrails: daily risk budget, per-currency
// exposure, correlation clustering and an optional VaR ceiling.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantflow/fxengine/config"
	"github.com/quantflow/fxengine/models"
)

// Candidate is one trade proposal to be sized and vetted.
type Candidate struct {
	Pair           models.PairInfo
	Direction      models.Direction
	Entry          float64
	StopLoss       float64
	TakeProfit     float64
	WinProbability float64 // 0..1
	ATR            float64
	Volatility     models.VolatilityInfo
	Equity         float64
	Correlations   map[string]float64 // pair symbol -> correlation
	VaR            *models.VaRSnapshot
	Now            time.Time
}

func (c Candidate) riskReward() float64 {
	risk := math.Abs(c.Entry - c.StopLoss)
	if risk == 0 {
		return 0
	}
	return math.Abs(c.TakeProfit-c.Entry) / risk
}

func (c Candidate) now() time.Time {
	if c.Now.IsZero() {
		return time.Now().UTC()
	}
	return c.Now
}

// Engine computes risk assessments against a shared ledger.
type Engine struct {
	cfg    *config.Config
	ledger *Ledger
	logger zerolog.Logger
}

// NewEngine creates a risk engine over the given ledger.
func NewEngine(cfg *config.Config, ledger *Ledger) *Engine {
	if ledger == nil {
		ledger = NewLedger()
	}
	return &Engine{
		cfg:    cfg,
		ledger: ledger,
		logger: log.With().Str("component", "risk_engine").Logger(),
	}
}

// Ledger exposes the engine's trade ledger.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// KellyFraction returns the blended, clamped Kelly fraction. A non-positive
// raw Kelly falls back to 0.6x the minimum fraction rather than zero so a
// marginal edge still gets a token allocation.
func (e *Engine) KellyFraction(winProb, riskReward float64) float64 {
	if riskReward <= 0 || winProb <= 0 || winProb >= 1 {
		return e.cfg.MinRiskFraction * 0.6
	}
	raw := (winProb*(riskReward+1) - 1) / riskReward
	if raw <= 0 {
		return e.cfg.MinRiskFraction * 0.6
	}
	blended := 0.6*raw + 0.4*e.cfg.RiskPerTrade
	return clamp(blended, e.cfg.MinRiskFraction, e.cfg.MaxRiskFraction*1.1)
}

// volatilityMultiplier shrinks size in rough tape and modestly grows it in
// calm conditions, clamped to [0.55, 1.25].
func volatilityMultiplier(vol models.VolatilityInfo) float64 {
	m := 1.0
	switch vol.State {
	case "extreme":
		m = 0.55
	case "high":
		m = 0.75
	case "calm":
		m = 1.15
	}
	// Fine adjustment within the state from the 0..100 score.
	m *= 1.1 - vol.Score/500
	return clamp(m, 0.55, 1.25)
}

// correlationMultiplier discounts size for overlap with open trades: a trade
// on the same pair costs the full same-pair penalty, a shared currency costs
// the lighter penalty, softened 5% when the open trade runs the opposite
// direction (partial hedge). Floor 0.3.
func (e *Engine) correlationMultiplier(c Candidate) float64 {
	m := 1.0
	base, quote := c.Pair.Currencies()

	for _, t := range e.ledger.Active() {
		if t.Pair == c.Pair.Symbol {
			m -= e.cfg.SamePairPenalty
			continue
		}
		tb, tq := models.PairInfo{Symbol: t.Pair}.Currencies()
		if tb == base || tb == quote || tq == base || tq == quote {
			m -= e.cfg.SharedCurrencyPenalty
			if t.Direction == c.Direction.Opposite() {
				m *= 1.05
			}
		}
	}
	return clamp(m, 0.3, 1.0)
}

// Assess sizes the candidate and runs every guardrail. CanTrade is the
// conjunction of all of them; each failed guardrail adds a breach entry.
func (e *Engine) Assess(c Candidate) models.RiskAssessment {
	now := c.now()
	rr := c.riskReward()

	kelly := e.KellyFraction(c.WinProbability, rr)
	volMult := volatilityMultiplier(c.Volatility)
	corrMult := e.correlationMultiplier(c)

	desired := clamp(kelly*volMult*corrMult, 0, e.cfg.MaxRiskFraction*1.1)

	// Daily budget: take only what remains, and require both the effective
	// fraction and the remaining budget to clear the minimum.
	spent := e.ledger.RiskSpent(now)
	remaining := math.Max(0, e.cfg.MaxDailyRisk-spent)
	fraction := math.Min(desired, remaining)

	a := models.RiskAssessment{
		Pair:                  c.Pair.Symbol,
		Direction:             c.Direction,
		RiskFraction:          fraction,
		KellyFraction:         kelly,
		VolatilityMultiplier:  volMult,
		CorrelationMultiplier: corrMult,
		Exposure:              map[string]float64{},
	}

	// Position size in units: equity at risk over the per-unit stop distance.
	stopDist := math.Abs(c.Entry - c.StopLoss)
	if stopDist > 0 && c.Equity > 0 {
		a.PositionSize = c.Equity * fraction / stopDist
	}

	a.DailyBudgetRemaining = remaining
	if fraction < e.cfg.MinRiskFraction || remaining < e.cfg.MinRiskFraction {
		a.Breaches = append(a.Breaches, fmt.Sprintf("daily risk budget exhausted: %.4f spent of %.4f", spent, e.cfg.MaxDailyRisk))
	}

	// Per-currency exposure. Unconfigured limits allow everything.
	e.assessExposure(&a, c, fraction)

	// Correlation cluster.
	if e.cfg.MaxCorrelationCluster > 0 {
		cluster := 1 // candidate itself
		for pair, corr := range c.Correlations {
			if pair == c.Pair.Symbol {
				continue
			}
			if math.Abs(corr) >= e.cfg.CorrelationThreshold && e.pairOpen(pair) {
				cluster++
			}
		}
		if cluster > e.cfg.MaxCorrelationCluster {
			a.CorrelationBlocked = true
			a.Breaches = append(a.Breaches, fmt.Sprintf("correlation cluster %d exceeds limit %d", cluster, e.cfg.MaxCorrelationCluster))
		}
	}

	// VaR ceiling, only when configured and a snapshot is supplied.
	if e.cfg.VaRMaxLossPct > 0 && c.VaR != nil && c.VaR.LossPct > e.cfg.VaRMaxLossPct {
		a.VaRBlocked = true
		a.Breaches = append(a.Breaches, fmt.Sprintf("portfolio VaR %.2f%% at %.0f%% confidence above ceiling %.2f%%",
			c.VaR.LossPct, e.cfg.VaRConfidence*100, e.cfg.VaRMaxLossPct))
	}

	a.StressTests = e.stressTests(c, a.PositionSize)
	a.CanTrade = len(a.Breaches) == 0

	if !a.CanTrade {
		e.logger.Warn().Str("pair", a.Pair).Strs("breaches", a.Breaches).Msg("trade blocked by risk guardrails")
	}
	return a
}

// assessExposure accumulates signed net exposure per currency in risk
// fractions: a BUY is long the base and short the quote. Limits left at zero
// allow everything.
func (e *Engine) assessExposure(a *models.RiskAssessment, c Candidate, fraction float64) {
	exposure := map[string]float64{}
	addPair := func(pair string, dir models.Direction, f float64) {
		b, q := models.PairInfo{Symbol: pair}.Currencies()
		if b == "" || q == "" {
			return
		}
		sign := 0.0
		switch dir {
		case models.DirectionBuy:
			sign = 1
		case models.DirectionSell:
			sign = -1
		}
		exposure[b] += sign * f
		exposure[q] -= sign * f
	}

	addPair(c.Pair.Symbol, c.Direction, fraction)
	for _, t := range e.ledger.Active() {
		addPair(t.Pair, t.Direction, t.RiskFraction)
	}
	a.Exposure = exposure

	base, quote := c.Pair.Currencies()
	for ccy, v := range exposure {
		limit := e.cfg.MaxExposurePerCurrency
		if override, ok := e.cfg.CurrencyLimits[ccy]; ok {
			limit = override
		}
		if limit <= 0 {
			continue
		}
		if math.Abs(v) > limit {
			a.ExposureBreached = true
			if ccy == base || ccy == quote {
				a.CurrencyLimitBreached = true
			}
			a.Breaches = append(a.Breaches, fmt.Sprintf("net exposure for %s at %.4f exceeds limit %.4f", ccy, v, limit))
		}
	}
}

func (e *Engine) pairOpen(pair string) bool {
	for _, t := range e.ledger.Active() {
		if t.Pair == pair {
			return true
		}
	}
	return false
}

// stressTests evaluates three fixed adverse scenarios against the sized
// position: a one-ATR retrace, a gap through 150% of the stop distance, and
// a 1.8-ATR volatility spike.
func (e *Engine) stressTests(c Candidate, size float64) []models.StressTest {
	stopDist := math.Abs(c.Entry - c.StopLoss)
	scenarios := []struct {
		name string
		move float64
	}{
		{"one_atr_retrace", c.ATR},
		{"stop_gap_150pct", stopDist * 1.5},
		{"volatility_spike", c.ATR * 1.8},
	}

	out := make([]models.StressTest, 0, len(scenarios))
	for _, sc := range scenarios {
		impact := sc.move * size
		pct := 0.0
		if c.Equity > 0 {
			pct = impact / c.Equity * 100
		}
		out = append(out, models.StressTest{
			Name:            sc.name,
			PriceMove:       sc.move,
			EquityImpact:    impact,
			EquityImpactPct: pct,
		})
	}
	return out
}

// OpenTrade registers an approved trade in the ledger and returns its id.
func (e *Engine) OpenTrade(c Candidate, a models.RiskAssessment) (string, error) {
	if !a.CanTrade {
		return "", fmt.Errorf("trade blocked: %v", a.Breaches)
	}
	id := uuid.NewString()
	e.ledger.Open(models.ActiveTrade{
		ID:           id,
		Pair:         c.Pair.Symbol,
		Direction:    c.Direction,
		PositionSize: a.PositionSize,
		RiskFraction: a.RiskFraction,
	}, a.RiskFraction, c.now())
	e.logger.Info().Str("trade_id", id).Str("pair", c.Pair.Symbol).
		Float64("risk_fraction", a.RiskFraction).Msg("trade opened")
	return id, nil
}

// CloseTrade removes a trade from the ledger.
func (e *Engine) CloseTrade(id string) {
	e.ledger.Close(id)
	e.logger.Info().Str("trade_id", id).Msg("trade closed")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
