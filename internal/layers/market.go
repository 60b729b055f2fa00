package layers

import (
	"fmt"
	"math"

	"github.com/quantflow/fxengine/models"
)

const (
	staleQuoteMs     = 60_000
	wideSpreadPoints = 30
	minM15Bars       = 30
	minH1Bars        = 10
)

// layerRawData (L1) grades the quality of the incoming quote and bar feeds.
// A bars-only feed with zero spread gets bid/ask synthesized from last/mid.
func (b *Builder) layerRawData(s *Scenario) models.Layer {
	m15 := s.analysisFor(models.TimeframeM15)
	h1 := s.analysisFor(models.TimeframeH1)

	var warnings []string
	var evidence []string

	metrics := models.RawDataMetrics{}
	availability := models.AvailabilityAvailable

	if s.Quote == nil {
		availability = models.AvailabilityPartial
		warnings = append(warnings, "quote missing, using bar data only")
	} else {
		q := *s.Quote
		metrics.Bid, metrics.Ask = q.Bid, q.Ask
		metrics.Mid = q.Mid
		metrics.QuoteAgeMs = q.AgeMs

		// Synthesize bid/ask when the feed delivers bars only.
		if q.Bid == 0 || q.Ask == 0 || q.Ask-q.Bid == 0 {
			ref := q.Last
			if ref == 0 {
				ref = q.Mid
			}
			if ref == 0 && m15 != nil && m15.CandleCount > 0 {
				ref = lastClose(s, models.TimeframeM15)
			}
			if ref > 0 {
				half := syntheticHalfSpread(s.Pair, ref)
				metrics.Bid = ref - half
				metrics.Ask = ref + half
				metrics.Mid = ref
				metrics.Synthetic = true
				evidence = append(evidence, "bid/ask synthesized from last/mid")
			}
		}
		if metrics.Mid == 0 && metrics.Bid > 0 {
			metrics.Mid = (metrics.Bid + metrics.Ask) / 2
		}

		metrics.Spread = metrics.Ask - metrics.Bid
		if metrics.Mid > 0 {
			metrics.SpreadPct = metrics.Spread / metrics.Mid * 100
		}
		metrics.SpreadPoints = spreadPoints(s.Pair, metrics.Spread)
		if q.SpreadPoints > 0 {
			metrics.SpreadPoints = q.SpreadPoints
		}

		if q.AgeMs > staleQuoteMs {
			warnings = append(warnings, fmt.Sprintf("stale quote: %dms old", q.AgeMs))
			availability = models.AvailabilityPartial
		}
		if metrics.SpreadPoints > wideSpreadPoints {
			warnings = append(warnings, fmt.Sprintf("wide spread: %.1f points", metrics.SpreadPoints))
		}
	}

	if m15 != nil {
		metrics.M15Bars = m15.CandleCount
		if m15.CandleCount < minM15Bars {
			warnings = append(warnings, fmt.Sprintf("thin M15 coverage: %d bars", m15.CandleCount))
			availability = models.AvailabilityPartial
		}
		if !m15.LastBarTime.IsZero() && s.now().Sub(m15.LastBarTime) > 30*60*1e9 {
			warnings = append(warnings, "M15 bars older than 30 minutes")
			availability = models.AvailabilityPartial
		}
	}
	if h1 != nil {
		metrics.H1Bars = h1.CandleCount
		if h1.CandleCount < minH1Bars {
			warnings = append(warnings, fmt.Sprintf("thin H1 coverage: %d bars", h1.CandleCount))
			availability = models.AvailabilityPartial
		}
	}
	if s.Analysis == nil {
		availability = models.AvailabilityMissing
		warnings = append(warnings, "technical analysis missing")
	}

	confidence := 90 - 15*len(warnings)
	if confidence < 20 {
		confidence = 20
	}

	return models.Layer{
		Direction:    models.DirectionNeutral,
		Confidence:   confidence,
		Score:        float64(confidence),
		Availability: availability,
		Summary:      "data feed quality check",
		SummaryLocal: "проверка качества данных",
		Evidence:     evidence,
		Warnings:     warnings,
		Metrics:      metrics,
	}
}

// layerCandlePhase (L2) classifies the market phase. Accumulation and
// distribution tags win outright; opposed structure-vs-candle bias with a
// flat trend reads as retracement; a trending market with tradeable
// volatility reads as expansion.
func (b *Builder) layerCandlePhase(s *Scenario) models.Layer {
	m15 := s.analysisFor(models.TimeframeM15)
	h4 := s.analysisFor(models.TimeframeH4)
	if m15 == nil || m15.Fallback {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Availability: models.AvailabilityMissing,
			Warnings:     []string{"no M15 analysis for phase classification"},
			Metrics:      models.CandlePhaseMetrics{Phase: "unknown"},
		}
	}

	trendPct := m15.Indicators.PriceChangePct
	structureBias := models.DirectionNeutral
	if h4 != nil {
		structureBias = h4.Direction
	}
	candleBias := m15.Direction

	accumTag := m15.VolumePressure.State == "buying" && m15.Regime.State == models.RegimeRange
	distTag := m15.VolumePressure.State == "selling" && m15.Regime.State == models.RegimeRange

	volTradeable := m15.Volatility.State == "normal" || m15.Volatility.State == "high"

	phase := "unknown"
	switch {
	case accumTag:
		phase = "accumulation"
	case distTag:
		phase = "distribution"
	case opposed(structureBias, candleBias) && math.Abs(trendPct) <= 0.12:
		phase = "retracement"
	case m15.Regime.State == models.RegimeTrend && volTradeable:
		phase = "expansion"
	case m15.Regime.State == models.RegimeRange || m15.Volatility.State == "calm":
		phase = "accumulation"
	}

	dir := models.DirectionNeutral
	score := 50.0
	switch phase {
	case "expansion":
		dir = candleBias
		score = 70
	case "distribution":
		dir = models.DirectionSell
		score = 45
	case "retracement":
		dir = structureBias
		score = 55
	}

	return models.Layer{
		Direction:  dir,
		Confidence: int(m15.Regime.Confidence * 0.8),
		Score:      score,
		Summary:    "market phase: " + phase,
		SummaryLocal: "фаза рынка: " + phase,
		Metrics: models.CandlePhaseMetrics{
			Phase:         phase,
			TrendPct:      trendPct,
			StructureBias: structureBias,
			CandleBias:    candleBias,
		},
	}
}

// layerStructure (L3) compares the signal direction with higher timeframes.
// A D1 or H4 conflict is flagged here and later treated as a hard block.
func (b *Builder) layerStructure(s *Scenario) models.Layer {
	d1 := s.analysisFor(models.TimeframeD1)
	h4 := s.analysisFor(models.TimeframeH4)

	metrics := models.StructureMetrics{
		D1Direction: models.DirectionNeutral,
		H4Direction: models.DirectionNeutral,
	}
	availability := models.AvailabilityAvailable
	var warnings []string

	if d1 == nil && h4 == nil {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Availability: models.AvailabilityMissing,
			Warnings:     []string{"no higher-timeframe analysis"},
			Metrics:      metrics,
		}
	}
	if d1 != nil {
		metrics.D1Direction = d1.Direction
	} else {
		availability = models.AvailabilityPartial
	}
	if h4 != nil {
		metrics.H4Direction = h4.Direction
	} else {
		availability = models.AvailabilityPartial
	}

	sig := s.Signal.Direction
	if sig != models.DirectionNeutral {
		if opposed(metrics.D1Direction, sig) || opposed(metrics.H4Direction, sig) {
			metrics.HTFConflict = true
			warnings = append(warnings, "signal opposes higher-timeframe structure")
		}
	}

	dir := metrics.D1Direction
	if dir == models.DirectionNeutral {
		dir = metrics.H4Direction
	}

	conf := 60
	if d1 != nil {
		conf = int(clampF(math.Abs(d1.Score), 30, 90))
	}

	return models.Layer{
		Direction:    dir,
		Confidence:   conf,
		Score:        structureScore(metrics),
		Availability: availability,
		Warnings:     warnings,
		Metrics:      metrics,
	}
}

func structureScore(m models.StructureMetrics) float64 {
	score := 50.0
	if m.D1Direction == m.H4Direction && m.D1Direction != models.DirectionNeutral {
		score = 75
	}
	if m.HTFConflict {
		score = 20
	}
	return score
}

// layerMomentum (L4) grades momentum quality and flags FOMO entries and
// false-strength signatures.
func (b *Builder) layerMomentum(s *Scenario) models.Layer {
	m15 := s.analysisFor(models.TimeframeM15)
	if m15 == nil || m15.Fallback {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Availability: models.AvailabilityMissing,
			Warnings:     []string{"no M15 analysis for momentum"},
			Metrics:      models.MomentumMetrics{},
		}
	}

	rsi := m15.Indicators.RSI
	trendPct := m15.Indicators.PriceChangePct

	quality := 0.45 * m15.Regime.Confidence
	quality += math.Min(35, math.Abs(trendPct)*250)

	fomo := (s.Signal.Direction == models.DirectionBuy && rsi >= 78) ||
		(s.Signal.Direction == models.DirectionSell && rsi <= 22)
	if fomo {
		quality -= 20
	} else {
		quality += 10
	}
	quality = clampF(quality, 0, 100)

	var falseStrength []string
	if m15.Indicators.ADX < 15 && math.Abs(trendPct) > 0.15 {
		falseStrength = append(falseStrength, "price move without directional strength")
	}
	if m15.VolumePressure.State == "neutral" && math.Abs(trendPct) > 0.15 {
		falseStrength = append(falseStrength, "move unconfirmed by volume pressure")
	}
	if m15.Indicators.MACDHist > 0 && m15.Direction == models.DirectionSell ||
		m15.Indicators.MACDHist < 0 && m15.Direction == models.DirectionBuy {
		falseStrength = append(falseStrength, "MACD histogram opposes direction")
	}

	var warnings []string
	if fomo {
		warnings = append(warnings, "FOMO risk: oscillator extreme in signal direction")
	}
	warnings = append(warnings, falseStrength...)

	return models.Layer{
		Direction:  m15.Direction,
		Confidence: int(quality),
		Score:      quality,
		Warnings:   warnings,
		Metrics: models.MomentumMetrics{
			QualityScore:  quality,
			RSI:           rsi,
			TrendPct:      trendPct,
			FOMORisk:      fomo,
			FalseStrength: falseStrength,
		},
	}
}

func opposed(a, b models.Direction) bool {
	if a == models.DirectionNeutral || b == models.DirectionNeutral {
		return false
	}
	return a != b
}

func lastClose(s *Scenario, tf models.Timeframe) float64 {
	ta := s.analysisFor(tf)
	if ta == nil {
		return 0
	}
	// Bollinger middle tracks the latest closes closely enough as a
	// reference price when no quote is available.
	return ta.Indicators.BBMiddle
}

func syntheticHalfSpread(pair models.PairInfo, ref float64) float64 {
	pip := pair.Pip()
	if pip > 0 {
		return pip / 2
	}
	return ref * 0.00005
}

func spreadPoints(pair models.PairInfo, spread float64) float64 {
	pip := pair.Pip()
	point := pip / 10
	if pair.PriceDigits > 0 {
		point = math.Pow(10, -float64(pair.PriceDigits))
	}
	if point <= 0 {
		return 0
	}
	return spread / point
}
