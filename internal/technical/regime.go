package technical

import (
	"math"

	"github.com/quantflow/fxengine/models"
)

const (
	regimeADXTrend       = 25.0
	regimeSlopeTrend     = 0.018 // % of price per bar
	regimeBandwidthRange = 6.5
	regimeSlopeWindow    = 120
)

// ClassifyRegime labels the series as trending, ranging or transitional.
// Trend requires ADX >= 25 or a steep normalized regression slope; range
// requires a narrow Bollinger bandwidth with a flat slope.
func ClassifyRegime(candles []models.Candle, ind models.Indicators) models.RegimeInfo {
	closes := Closes(candles)
	if len(closes) > regimeSlopeWindow {
		closes = closes[len(closes)-regimeSlopeWindow:]
	}

	slope, r2 := LinearRegression(closes)
	mean := average(closes)
	slopePct := 0.0
	if mean != 0 {
		slopePct = slope / mean * 100
	}

	absSlope := math.Abs(slopePct)
	bandwidth := ind.BBBandwidth

	state := models.RegimeTransition
	switch {
	case ind.ADX >= regimeADXTrend || absSlope >= regimeSlopeTrend:
		state = models.RegimeTrend
	case bandwidth <= regimeBandwidthRange && absSlope < regimeSlopeTrend:
		state = models.RegimeRange
	}

	// Confidence blends slope steepness, directional strength and short-term
	// momentum; a tight range gets a bandwidth bonus.
	momentumPct := 0.0
	if len(candles) >= 10 && candles[len(candles)-10].Close != 0 {
		momentumPct = (candles[len(candles)-1].Close - candles[len(candles)-10].Close) /
			candles[len(candles)-10].Close * 100
	}

	confidence := absSlope/regimeSlopeTrend*30*0.45 +
		ind.ADX*0.9*0.35 +
		math.Abs(momentumPct)*25*0.20
	if state == models.RegimeRange && bandwidth <= regimeBandwidthRange/2 {
		confidence += 12
	}
	confidence = clamp(confidence, 10, 100)

	return models.RegimeInfo{
		State:      state,
		Confidence: confidence,
		Slope:      slopePct,
		RSquared:   r2,
		Bandwidth:  bandwidth,
	}
}

// regimeMultiplier scales the composite score by regime.
func regimeMultiplier(state string) float64 {
	switch state {
	case models.RegimeTrend:
		return 1.08
	case models.RegimeRange:
		return 0.96
	}
	return 1.0
}

// adxMultiplier scales the composite score by trend strength.
func adxMultiplier(adx float64) float64 {
	switch {
	case adx >= 40:
		return 1.35
	case adx >= 20:
		return 1.15
	}
	return 1.0
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
