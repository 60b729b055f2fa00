package layers

import (
	"math"

	"github.com/quantflow/fxengine/models"
)

// layerSMC (L5) grades smart-money signatures on M15: liquidity sweeps,
// order blocks and fair value gaps, adjusted by the live spread.
// Spread breakpoints: <=15 points adds 12, >=35 subtracts 20.
func (b *Builder) layerSMC(s *Scenario) models.Layer {
	m15 := s.analysisFor(models.TimeframeM15)
	if m15 == nil || m15.Fallback {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Availability: models.AvailabilityMissing,
			Warnings:     []string{"no M15 analysis for smart-money read"},
			Metrics:      models.SMCMetrics{},
		}
	}

	metrics := models.SMCMetrics{}
	score := 50.0
	var evidence []string

	// A liquidity sweep leaves a long wick against the close with
	// one-sided pressure behind it.
	if m15.VolumePressure.State != "neutral" && math.Abs(m15.VolumePressure.ZScore) > 1.5 {
		metrics.SweepDetected = true
		score += 15
		evidence = append(evidence, "volume spike with one-sided pressure")
	}

	// Order block proxy: strong engulfing-class pattern in the window.
	for _, p := range m15.Patterns {
		switch p.Name {
		case "BULLISH_ENGULFING", "BEARISH_ENGULFING", "THREE_WHITE_SOLDIERS", "THREE_BLACK_CROWS":
			metrics.OrderBlock = true
			score += 12
			evidence = append(evidence, "displacement pattern: "+p.Name)
		}
		if metrics.OrderBlock {
			break
		}
	}

	// Fair value gap proxy: expansion with high bandwidth.
	if m15.Regime.State == models.RegimeTrend && m15.Indicators.BBBandwidth > 4 {
		metrics.FairValueGap = true
		score += 8
	}

	var warnings []string
	if s.Quote != nil {
		sp := s.Quote.SpreadPoints
		if sp == 0 {
			sp = spreadPoints(s.Pair, s.Quote.Ask-s.Quote.Bid)
		}
		metrics.SpreadPoints = sp
		switch {
		case sp > 0 && sp <= 15:
			score += 12
		case sp >= 35:
			score -= 20
			warnings = append(warnings, "spread too wide for liquidity entries")
		}
	}

	score = clampF(score, 0, 100)
	metrics.QualityScore = score

	dir := models.DirectionNeutral
	if metrics.SweepDetected || metrics.OrderBlock {
		dir = m15.Direction
	}

	return models.Layer{
		Direction:  dir,
		Confidence: int(score * 0.8),
		Score:      score,
		Evidence:   evidence,
		Warnings:   warnings,
		Metrics:    metrics,
	}
}

// layerLiquidityDefense (L10) is a dual-concept layer: how defensible the
// entry is against liquidity hunts, and how stable the intermarket picture
// is. Defense components: sweep 35, volume imbalance 25, order block 25,
// pressure persistence 15.
func (b *Builder) layerLiquidityDefense(s *Scenario) models.Layer {
	m15 := s.analysisFor(models.TimeframeM15)
	metrics := models.LiquidityDefenseMetrics{}
	availability := models.AvailabilityAvailable
	var warnings []string

	if m15 == nil || m15.Fallback {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Availability: models.AvailabilityMissing,
			Warnings:     []string{"no M15 analysis for liquidity defense"},
			Metrics:      metrics,
		}
	}

	defense := 0.0
	if math.Abs(m15.VolumePressure.ZScore) > 1.5 {
		defense += 35
	}
	if math.Abs(m15.VolumePressure.Imbalance) > 20 {
		defense += 25
	}
	for _, p := range m15.Patterns {
		if p.Name == "BULLISH_ENGULFING" || p.Name == "BEARISH_ENGULFING" {
			defense += 25
			break
		}
	}
	pressureDir := pressureDirection(m15.VolumePressure.State)
	if pressureDir != models.DirectionNeutral && pressureDir == m15.Direction {
		defense += 15
	}
	metrics.DefenseScore = defense

	if s.Intermarket == nil || len(s.Intermarket.Peers) == 0 {
		metrics.IntermarketMiss = true
		availability = models.AvailabilityPartial
		warnings = append(warnings, "intermarket snapshot missing")
	} else {
		metrics.Peers = s.Intermarket.Peers
		metrics.PeerStability = s.Intermarket.Stability
		if len(s.Intermarket.Breaks) > 0 {
			warnings = append(warnings, "correlation breaks: "+s.Intermarket.Breaks[0])
		}
	}

	score := defense
	if !metrics.IntermarketMiss {
		score = 0.7*defense + 0.3*clampF(metrics.PeerStability, 0, 100)
	}
	score = clampF(score, 0, 100)

	dir := models.DirectionNeutral
	if defense >= 60 {
		dir = m15.Direction
	}

	return models.Layer{
		Direction:    dir,
		Confidence:   int(score),
		Score:        score,
		Availability: availability,
		Warnings:     warnings,
		Metrics:      metrics,
	}
}

func pressureDirection(state string) models.Direction {
	switch state {
	case "buying":
		return models.DirectionBuy
	case "selling":
		return models.DirectionSell
	}
	return models.DirectionNeutral
}
