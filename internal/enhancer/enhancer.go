// Package enhancer re-scores signals with a five-factor weighted model and
// attaches ATR-based optimized stop and target levels.
package enhancer

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantflow/fxengine/config"
	"github.com/quantflow/fxengine/internal/filter"
	"github.com/quantflow/fxengine/models"
)

// Factor weights of the enhanced score.
const (
	weightTrend          = 0.25
	weightMomentum       = 0.20
	weightVolume         = 0.15
	weightMicrostructure = 0.15
	weightPattern        = 0.15
	weightOriginal       = 0.10
)

// Input is everything the enhancer reads beside the signal.
type Input struct {
	Pair     models.PairInfo
	Analysis *models.MultiTimeframeAnalysis
	Quote    *models.Quote
	History  []models.HistoricalPattern
}

// Enhancer computes EnhancedSignal values. Stateless, safe for concurrent use.
type Enhancer struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// New creates an enhancer.
func New(cfg *config.Config) *Enhancer {
	return &Enhancer{
		cfg:    cfg,
		logger: log.With().Str("component", "enhancer").Logger(),
	}
}

// Enhance re-scores the signal across the five factors and derives the win
// probability, optimized levels and rating.
func (e *Enhancer) Enhance(sig models.Signal, in Input) models.EnhancedSignal {
	trend := e.trendStrength(sig.Direction, in.Analysis)
	momentum := e.momentumQuality(sig.Direction, in.Analysis)
	volume := e.volumeScore(sig.Direction, in.Analysis)
	micro := e.microstructure(in)
	stats := filter.SimilarPatternStats(sig, in.History)
	pattern := stats.Score * 100

	score := weightTrend*trend + weightMomentum*momentum + weightVolume*volume +
		weightMicrostructure*micro + weightPattern*pattern + weightOriginal*sig.FinalScore
	score = clamp(score, 0, 100)

	winProb := e.winProbability(score, trend, momentum, volume, stats.WinRate)

	out := models.EnhancedSignal{
		Pair:              sig.Pair,
		Direction:         sig.Direction,
		TrendStrength:     trend,
		MomentumQuality:   momentum,
		VolumeScore:       volume,
		Microstructure:    micro,
		PatternSimilarity: pattern,
		OriginalScore:     sig.FinalScore,
		EnhancedScore:     score,
		WinProbability:    winProb,
		OptimizedLevels:   e.optimizedLevels(sig, in),
		Rating:            rating(score, winProb),
	}

	e.logger.Debug().Str("pair", sig.Pair).Float64("enhanced_score", score).
		Float64("win_probability", winProb).Str("rating", out.Rating).
		Msg("signal enhanced")
	return out
}

// trendStrength is a timeframe-weighted alignment heuristic over MA order,
// normalized ADX, RSI side and MACD sign. Weights D1 .30 / H4 .25 / H1 .25 /
// M15 .20.
func (e *Enhancer) trendStrength(dir models.Direction, analysis *models.MultiTimeframeAnalysis) float64 {
	tfs := []models.Timeframe{models.TimeframeM15, models.TimeframeH1, models.TimeframeH4, models.TimeframeD1}

	var weighted, total float64
	for _, tf := range tfs {
		ta := analysis.Get(tf)
		if ta == nil || ta.Fallback {
			continue
		}
		ind := ta.Indicators

		score := 0.0
		if (dir == models.DirectionBuy && ind.EMA12 > ind.EMA26) ||
			(dir == models.DirectionSell && ind.EMA12 < ind.EMA26) {
			score += 30
		}
		score += math.Min(25, ind.ADX/40*25)
		if (dir == models.DirectionBuy && ind.RSI > 50) ||
			(dir == models.DirectionSell && ind.RSI < 50) {
			score += 20
		}
		if (dir == models.DirectionBuy && ind.MACDHist > 0) ||
			(dir == models.DirectionSell && ind.MACDHist < 0) {
			score += 25
		}

		w := tf.FusionWeight()
		weighted += score * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return clamp(weighted/total, 0, 100)
}

// momentumQuality averages four directional checks on M15, granting partial
// credit when a check is merely not opposed.
func (e *Enhancer) momentumQuality(dir models.Direction, analysis *models.MultiTimeframeAnalysis) float64 {
	m15 := analysis.Get(models.TimeframeM15)
	if m15 == nil || m15.Fallback || dir == models.DirectionNeutral {
		return 0
	}
	ind := m15.Indicators

	sign := 1.0
	if dir == models.DirectionSell {
		sign = -1
	}

	grade := func(v float64) float64 {
		if v*sign > 0 {
			return 100
		}
		if v == 0 {
			return 50
		}
		return 20
	}

	checks := []float64{
		grade(ind.MACDHist),
		grade(ind.RSI - 50),
		grade(ind.PriceChangePct),
		grade(ind.StochK - ind.StochD),
	}

	var sum float64
	for _, c := range checks {
		sum += c
	}
	return sum / float64(len(checks))
}

func (e *Enhancer) volumeScore(dir models.Direction, analysis *models.MultiTimeframeAnalysis) float64 {
	m15 := analysis.Get(models.TimeframeM15)
	if m15 == nil || m15.Fallback {
		return 50
	}
	vp := m15.VolumePressure

	score := 50.0
	aligned := (dir == models.DirectionBuy && vp.State == "buying") ||
		(dir == models.DirectionSell && vp.State == "selling")
	opposedState := (dir == models.DirectionBuy && vp.State == "selling") ||
		(dir == models.DirectionSell && vp.State == "buying")

	if aligned {
		score += math.Min(35, math.Abs(vp.Imbalance))
	} else if opposedState {
		score -= math.Min(35, math.Abs(vp.Imbalance))
	}
	if vp.ZScore > 1.5 {
		score += 10
	}
	return clamp(score, 0, 100)
}

// microstructure grades the immediate execution environment from the quote:
// spread, liquidity hint and quote freshness.
func (e *Enhancer) microstructure(in Input) float64 {
	if in.Quote == nil {
		return 50
	}
	q := in.Quote

	score := 70.0
	sp := q.SpreadPoints
	if sp == 0 && q.Ask > q.Bid {
		sp = (q.Ask - q.Bid) / (in.Pair.Pip() / 10)
	}
	switch {
	case sp > 0 && sp <= 10:
		score += 20
	case sp > 25:
		score -= 30
	case sp > 15:
		score -= 15
	}
	if q.LiquidityHint >= 70 {
		score += 10
	} else if q.LiquidityHint > 0 && q.LiquidityHint < 40 {
		score -= 15
	}
	if q.AgeMs > 30_000 {
		score -= 10
	}
	return clamp(score, 0, 100)
}

// winProbability starts from enhancedScore/100 and applies small band-keyed
// bonuses and penalties, clamped to [0.50, 0.99].
func (e *Enhancer) winProbability(score, trend, momentum, volume, winRate float64) float64 {
	p := score / 100

	if trend >= 80 {
		p += 0.04
	} else if trend < 40 {
		p -= 0.05
	}
	if momentum >= 80 {
		p += 0.03
	} else if momentum < 40 {
		p -= 0.04
	}
	if volume >= 70 {
		p += 0.02
	}
	if winRate >= 0.75 {
		p += 0.03
	} else if winRate < 0.55 {
		p -= 0.05
	}

	return clamp(p, 0.50, 0.99)
}

// optimizedLevels derives the stop from 1.5x ATR when the signal has none,
// and ladders three targets at 1.5x/2.5x/4.0x the stop distance with a
// 50/30/20 partial-close schedule.
func (e *Enhancer) optimizedLevels(sig models.Signal, in Input) models.OptimizedLevels {
	entry := sig.Entry
	if entry == 0 {
		return models.OptimizedLevels{}
	}

	atr := 0.0
	if m15 := in.Analysis.Get(models.TimeframeM15); m15 != nil {
		atr = m15.Indicators.ATR
	}

	dirSign := 1.0
	if sig.Direction == models.DirectionSell {
		dirSign = -1
	}

	stop := sig.StopLoss
	if stop == 0 && atr > 0 {
		stop = entry - dirSign*1.5*atr
	}
	if stop == 0 {
		return models.OptimizedLevels{}
	}

	dist := math.Abs(entry - stop)
	return models.OptimizedLevels{
		StopLoss: stop,
		Targets: [3]float64{
			entry + dirSign*1.5*dist,
			entry + dirSign*2.5*dist,
			entry + dirSign*4.0*dist,
		},
		PartialClose: [3]float64{0.5, 0.3, 0.2},
	}
}

func rating(score, winProb float64) string {
	switch {
	case score >= 90 && winProb >= 0.90:
		return models.RatingUltra
	case score >= 80 && winProb >= 0.80:
		return models.RatingExcellent
	case score >= 70 && winProb >= 0.70:
		return models.RatingGood
	case score >= 60 && winProb >= 0.60:
		return models.RatingAcceptable
	}
	return models.RatingFiltered
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
