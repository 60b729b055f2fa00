// Package technical turns per-(pair, timeframe) candle series into indicator,
// pattern, regime, volatility, divergence and volume-pressure analyses and
// fuses them into one multi-timeframe view.
package technical

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantflow/fxengine/config"
	"github.com/quantflow/fxengine/internal/cache"
	"github.com/quantflow/fxengine/models"
)

// Analyzer computes technical analyses. Safe for concurrent use; results are
// cached per (pair, timeframes, latest-bar-time).
type Analyzer struct {
	cfg    *config.Config
	cache  *cache.TTL[*models.MultiTimeframeAnalysis]
	logger zerolog.Logger
}

// NewAnalyzer builds an analyzer with a TTL cache from the configuration.
func NewAnalyzer(cfg *config.Config) *Analyzer {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Analyzer{
		cfg:    cfg,
		cache:  cache.NewTTL[*models.MultiTimeframeAnalysis](ttl, 512),
		logger: log.With().Str("component", "technical_analyzer").Logger(),
	}
}

// AnalyzeTimeframe produces the full analysis for one candle series. Series
// with fewer than two candles yield the neutral fallback and never fail.
func (a *Analyzer) AnalyzeTimeframe(pair string, tf models.Timeframe, candles []models.Candle) *models.TimeframeAnalysis {
	if len(candles) < 2 {
		a.logger.Warn().Str("pair", pair).Str("timeframe", string(tf)).
			Int("candles", len(candles)).Msg("insufficient candles, returning neutral fallback")
		return neutralFallback(pair, tf, candles)
	}

	ind := computeIndicators(candles)
	patterns := DetectPatterns(candles)
	regime := ClassifyRegime(candles, ind)
	volatility := AnalyzeVolatility(candles)
	divergences := DetectDivergences(candles)
	pressure := AnalyzeVolumePressure(candles)

	score := compositeScore(candles, ind, patterns, regime)

	return &models.TimeframeAnalysis{
		Pair:           pair,
		Timeframe:      tf,
		Indicators:     ind,
		Patterns:       patterns,
		Regime:         regime,
		Volatility:     volatility,
		Divergences:    divergences,
		VolumePressure: pressure,
		Score:          score,
		Direction:      scoreDirection(score),
		CandleCount:    len(candles),
		LastBarTime:    candles[len(candles)-1].Time,
	}
}

// Analyze fuses every requested timeframe into one multi-timeframe analysis,
// weighting M15 .20 / H1 .25 / H4 .25 / D1 .30. Results are cached for the
// configured TTL keyed by pair, timeframe set and latest bar time.
func (a *Analyzer) Analyze(pair string, candlesByTF map[models.Timeframe][]models.Candle) *models.MultiTimeframeAnalysis {
	key := cacheKey(pair, candlesByTF)
	if cached, err := a.cache.Get(key); err == nil {
		return cached
	}

	byTF := make(map[models.Timeframe]*models.TimeframeAnalysis, len(candlesByTF))
	var weightedScore, totalWeight float64

	for tf, candles := range candlesByTF {
		ta := a.AnalyzeTimeframe(pair, tf, candles)
		byTF[tf] = ta

		w := tf.FusionWeight()
		if w == 0 || ta.Fallback {
			continue
		}
		weightedScore += ta.Score * w
		totalWeight += w
	}

	score := 0.0
	if totalWeight > 0 {
		score = weightedScore / totalWeight
	}

	result := &models.MultiTimeframeAnalysis{
		Pair:        pair,
		ByTimeframe: byTF,
		Score:       score,
		Direction:   scoreDirection(score),
		ComputedAt:  time.Now(),
	}

	a.cache.Set(key, result)
	return result
}

func cacheKey(pair string, candlesByTF map[models.Timeframe][]models.Candle) string {
	tfs := make([]string, 0, len(candlesByTF))
	var latest time.Time
	for tf, candles := range candlesByTF {
		tfs = append(tfs, string(tf))
		if len(candles) > 0 {
			if t := candles[len(candles)-1].Time; t.After(latest) {
				latest = t
			}
		}
	}
	sort.Strings(tfs)
	return fmt.Sprintf("%s|%s|%d", pair, strings.Join(tfs, ","), latest.Unix())
}

func neutralFallback(pair string, tf models.Timeframe, candles []models.Candle) *models.TimeframeAnalysis {
	ta := &models.TimeframeAnalysis{
		Pair:        pair,
		Timeframe:   tf,
		Regime:      models.RegimeInfo{State: models.RegimeTransition, Confidence: 10},
		Volatility:  models.VolatilityInfo{State: "normal"},
		VolumePressure: models.VolumePressure{State: "neutral"},
		Direction:   models.DirectionNeutral,
		CandleCount: len(candles),
		Fallback:    true,
	}
	if len(candles) > 0 {
		ta.LastBarTime = candles[len(candles)-1].Time
	}
	return ta
}

func computeIndicators(candles []models.Candle) models.Indicators {
	macd, macdSignal, macdHist := MACD(candles, 12, 26, 9)
	bbUpper, bbMiddle, bbLower := Bollinger(candles, 20, 2.0)
	stochK, stochD := Stochastic(candles, 14, 3)
	adx, plusDI, minusDI := ADXProxy(candles, 14)

	bandwidth := 0.0
	if bbMiddle != 0 {
		bandwidth = (bbUpper - bbLower) / bbMiddle * 100
	}

	priceChange := 0.0
	if candles[0].Close != 0 {
		priceChange = (candles[len(candles)-1].Close - candles[0].Close) / candles[0].Close * 100
	}

	return models.Indicators{
		SMA20:          SMA(candles, 20),
		SMA50:          SMA(candles, 50),
		EMA12:          EMA(candles, 12),
		EMA26:          EMA(candles, 26),
		RSI:            RSI(candles, 14),
		MACD:           macd,
		MACDSignal:     macdSignal,
		MACDHist:       macdHist,
		BBUpper:        bbUpper,
		BBMiddle:       bbMiddle,
		BBLower:        bbLower,
		BBBandwidth:    bandwidth,
		StochK:         stochK,
		StochD:         stochD,
		ATR:            ATR(candles, 14),
		ADX:            adx,
		PlusDI:         plusDI,
		MinusDI:        minusDI,
		Ichimoku:       IchimokuLines(candles),
		Fibonacci:      FibonacciLevels(candles),
		PriceChangePct: priceChange,
	}
}

// compositeScore is the signed weighted indicator sum, scaled by the ADX
// trend multiplier, shifted by the raw percent price change and scaled by the
// regime multiplier, clamped to [-100, 100].
func compositeScore(candles []models.Candle, ind models.Indicators, patterns []models.CandlePattern, regime models.RegimeInfo) float64 {
	price := candles[len(candles)-1].Close
	var score float64

	// Moving-average levels: +-10 per SMA level, +-8 per EMA level.
	for _, sma := range []float64{ind.SMA20, ind.SMA50} {
		if sma == 0 {
			continue
		}
		if price > sma {
			score += 10
		} else if price < sma {
			score -= 10
		}
	}
	for _, ema := range []float64{ind.EMA12, ind.EMA26} {
		if ema == 0 {
			continue
		}
		if price > ema {
			score += 8
		} else if price < ema {
			score -= 8
		}
	}

	// RSI extremes
	if ind.RSI < 30 {
		score += 15
	} else if ind.RSI > 70 {
		score -= 15
	}

	// MACD crossover
	if ind.MACDHist > 0 {
		score += 18
	} else if ind.MACDHist < 0 {
		score -= 18
	}

	// Bollinger band touches favor mean reversion
	if price < ind.BBLower {
		score += 12
	} else if price > ind.BBUpper {
		score -= 12
	}

	// Stochastic extreme plus crossover bonus
	if ind.StochK < 20 {
		score += 9
		if ind.StochK > ind.StochD {
			score += 4
		}
	} else if ind.StochK > 80 {
		score -= 9
		if ind.StochK < ind.StochD {
			score -= 4
		}
	}

	score += patternScore(patterns)

	// Ichimoku cloud position
	cloudTop := ind.Ichimoku.SenkouA
	cloudBottom := ind.Ichimoku.SenkouB
	if cloudBottom > cloudTop {
		cloudTop, cloudBottom = cloudBottom, cloudTop
	}
	if cloudTop > 0 {
		if price > cloudTop {
			score += 14
		} else if price < cloudBottom {
			score -= 14
		}
	}

	score += fibonacciProximity(price, ind.Fibonacci)

	score *= adxMultiplier(ind.ADX)
	score += ind.PriceChangePct
	score *= regimeMultiplier(regime.State)

	return clamp(score, -100, 100)
}

// fibonacciProximity grants +-6 when price sits within 0.15% of a
// retracement level: support below price is bullish, resistance above is
// bearish.
func fibonacciProximity(price float64, fib models.Fibonacci) float64 {
	if price == 0 || len(fib.Levels) == 0 {
		return 0
	}
	tolerance := price * 0.0015
	for _, level := range fib.Levels {
		diff := price - level
		if diff >= 0 && diff <= tolerance {
			return 6
		}
		if diff < 0 && -diff <= tolerance {
			return -6
		}
	}
	return 0
}

func scoreDirection(score float64) models.Direction {
	switch {
	case score > 12:
		return models.DirectionBuy
	case score < -12:
		return models.DirectionSell
	}
	return models.DirectionNeutral
}
