package layers

import (
	"fmt"
	"math"

	"github.com/quantflow/fxengine/models"
)

// layerVolatilityRegime (L11) grades whether current volatility is tradeable:
// inside the configured band is good, extreme or dead tape is not.
func (b *Builder) layerVolatilityRegime(s *Scenario) models.Layer {
	m15 := s.analysisFor(models.TimeframeM15)
	if m15 == nil || m15.Fallback {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Availability: models.AvailabilityMissing,
			Warnings:     []string{"no M15 analysis for volatility regime"},
			Metrics:      models.VolatilityRegimeMetrics{State: "unknown"},
		}
	}

	vol := m15.Volatility
	atrPct := 0.0
	if mid := m15.Indicators.BBMiddle; mid > 0 {
		atrPct = m15.Indicators.ATR / mid * 100
	}

	metrics := models.VolatilityRegimeMetrics{
		State:    vol.State,
		Score:    vol.Score,
		ATRPct:   atrPct,
		Clusters: len(vol.Clusters),
	}

	var warnings []string
	score := 50.0
	switch {
	case vol.Score >= b.cfg.VolatilityMin && vol.Score <= b.cfg.VolatilityMax:
		score = 75
	case vol.Score > b.cfg.VolatilityMax:
		score = 20
		warnings = append(warnings, fmt.Sprintf("volatility %.0f above tradeable band", vol.Score))
	default:
		score = 30
		warnings = append(warnings, fmt.Sprintf("volatility %.0f below tradeable band", vol.Score))
	}
	if vol.State == "extreme" {
		score = clampF(score-15, 0, 100)
		warnings = append(warnings, "extreme volatility state")
	}

	return models.Layer{
		Direction:  models.DirectionNeutral,
		Confidence: int(score),
		Score:      score,
		Warnings:   warnings,
		Metrics:    metrics,
	}
}

// layerDivergence (L12) counts oscillator divergences and flags RSI/stochastic
// extremes against the signal direction.
func (b *Builder) layerDivergence(s *Scenario) models.Layer {
	m15 := s.analysisFor(models.TimeframeM15)
	if m15 == nil || m15.Fallback {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Availability: models.AvailabilityMissing,
			Warnings:     []string{"no M15 analysis for divergence read"},
			Metrics:      models.DivergenceMetrics{},
		}
	}

	metrics := models.DivergenceMetrics{
		RSI:    m15.Indicators.RSI,
		StochK: m15.Indicators.StochK,
	}
	var best models.Divergence
	for _, d := range m15.Divergences {
		if d.Direction == models.DirectionBuy {
			metrics.Bullish++
		} else if d.Direction == models.DirectionSell {
			metrics.Bearish++
		}
		if d.Confidence > best.Confidence {
			best = d
		}
	}

	sig := s.Signal.Direction
	metrics.RSIExtreme = (sig == models.DirectionBuy && metrics.RSI >= 78) ||
		(sig == models.DirectionSell && metrics.RSI <= 22)

	score := 50.0
	var warnings []string
	var evidence []string
	dir := models.DirectionNeutral

	if best.Confidence > 0 {
		dir = best.Direction
		evidence = append(evidence, fmt.Sprintf("%s divergence %s, confidence %.0f", best.Indicator, best.Direction, best.Confidence))
		if best.Direction == sig {
			score += best.Confidence * 0.35
		} else if opposed(best.Direction, sig) {
			score -= best.Confidence * 0.35
			warnings = append(warnings, "divergence opposes signal direction")
		}
	}
	if metrics.RSIExtreme {
		score -= 20
		warnings = append(warnings, "RSI extreme against entry quality")
	}
	score = clampF(score, 0, 100)

	return models.Layer{
		Direction:  dir,
		Confidence: int(clampF(best.Confidence, 20, 95)),
		Score:      score,
		Evidence:   evidence,
		Warnings:   warnings,
		Metrics:    metrics,
	}
}

// layerAlignment (L13) counts timeframes agreeing with the dominant
// direction across M15/H1/H4/D1.
func (b *Builder) layerAlignment(s *Scenario) models.Layer {
	tfs := []models.Timeframe{models.TimeframeM15, models.TimeframeH1, models.TimeframeH4, models.TimeframeD1}

	var buy, sell, total int
	for _, tf := range tfs {
		ta := s.analysisFor(tf)
		if ta == nil || ta.Fallback {
			continue
		}
		total++
		switch ta.Direction {
		case models.DirectionBuy:
			buy++
		case models.DirectionSell:
			sell++
		}
	}

	metrics := models.AlignmentMetrics{Total: total, Dominant: models.DirectionNeutral}
	if s.Analysis != nil {
		metrics.FusedScore = s.Analysis.Score
	}
	if total == 0 {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Availability: models.AvailabilityMissing,
			Warnings:     []string{"no usable timeframe analyses"},
			Metrics:      metrics,
		}
	}

	agreeing := buy
	metrics.Dominant = models.DirectionBuy
	if sell > buy {
		agreeing = sell
		metrics.Dominant = models.DirectionSell
	} else if sell == buy && buy > 0 {
		metrics.Dominant = models.DirectionNeutral
	}
	metrics.Agreeing = agreeing

	score := float64(agreeing) / float64(total) * 100
	availability := models.AvailabilityAvailable
	if total < len(tfs) {
		availability = models.AvailabilityPartial
	}

	return models.Layer{
		Direction:    metrics.Dominant,
		Confidence:   int(score),
		Score:        score,
		Availability: availability,
		Metrics:      metrics,
	}
}

// layerRiskEnvironment (L14) computes a 0..100 risk score from penalties:
// spread above 10 points at 2.5/point, news impact at 8/point, ATR above
// 0.2% of price at 45/point, each capped at 35. Failure cost estimates the
// seconds for price to traverse the stop distance at the current velocity.
func (b *Builder) layerRiskEnvironment(s *Scenario) models.Layer {
	m15 := s.analysisFor(models.TimeframeM15)
	metrics := models.RiskEnvironmentMetrics{}
	var warnings []string

	if s.Quote != nil {
		sp := s.Quote.SpreadPoints
		if sp == 0 {
			sp = spreadPoints(s.Pair, s.Quote.Ask-s.Quote.Bid)
		}
		if sp > 10 {
			metrics.SpreadPenalty = math.Min(35, (sp-10)*2.5)
		}
	}
	if s.News != nil && s.News.Impact > 0 {
		metrics.NewsPenalty = math.Min(35, s.News.Impact*8)
	}
	if m15 != nil && !m15.Fallback {
		if mid := m15.Indicators.BBMiddle; mid > 0 {
			atrPct := m15.Indicators.ATR / mid * 100
			if atrPct > 0.2 {
				metrics.ATRPenalty = math.Min(35, (atrPct-0.2)*45)
			}
		}
	}

	metrics.RiskScore = clampF(100-metrics.SpreadPenalty-metrics.NewsPenalty-metrics.ATRPenalty, 0, 100)

	if s.Quote != nil && s.Quote.MidVelocityPerSec > 0 && s.Signal.HasLevels() {
		stopDist := math.Abs(s.Signal.Entry - s.Signal.StopLoss)
		metrics.FailureCostSeconds = stopDist / s.Quote.MidVelocityPerSec
		if metrics.FailureCostSeconds < 60 {
			warnings = append(warnings, "stop within one minute of current price velocity")
		}
	}

	if metrics.RiskScore < 50 {
		warnings = append(warnings, "hostile risk environment")
	}

	return models.Layer{
		Direction:  models.DirectionNeutral,
		Confidence: int(metrics.RiskScore),
		Score:      metrics.RiskScore,
		Warnings:   warnings,
		Metrics:    metrics,
	}
}

// layerTrendStats (L15) fits a linear regression over the H1 closes proxy and
// uses r-squared directly as both confidence and score.
func (b *Builder) layerTrendStats(s *Scenario) models.Layer {
	h1 := s.analysisFor(models.TimeframeH1)
	if h1 == nil || h1.Fallback {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Availability: models.AvailabilityMissing,
			Warnings:     []string{"no H1 analysis for trend statistics"},
			Metrics:      models.TrendStatsMetrics{},
		}
	}

	slope := h1.Regime.Slope
	r2 := h1.Regime.RSquared
	metrics := models.TrendStatsMetrics{
		RSquared: r2,
		Slope:    slope,
		Bars:     h1.CandleCount,
	}

	dir := models.DirectionNeutral
	if slope > 0 {
		dir = models.DirectionBuy
	} else if slope < 0 {
		dir = models.DirectionSell
	}

	score := clampF(r2*100, 0, 100)

	return models.Layer{
		Direction:  dir,
		Confidence: int(score),
		Score:      score,
		Metrics:    metrics,
	}
}
