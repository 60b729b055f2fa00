package technical

import (
	"math"

	"github.com/quantflow/fxengine/models"
)

const swingStrength = 2

// DetectDivergences compares the last two price swings against the RSI and
// MACD-histogram series at the nearest bars. Price making a higher high while
// the oscillator makes a lower high flags bearish divergence; the mirror case
// flags bullish.
func DetectDivergences(candles []models.Candle) []models.Divergence {
	if len(candles) < 30 {
		return nil
	}

	rsi := rsiSeries(candles, 14)
	macdHist := macdHistSeries(candles, 12, 26, 9)

	highs, lows := findSwings(candles)

	var out []models.Divergence
	out = append(out, checkBearish(candles, rsi, highs, "RSI")...)
	out = append(out, checkBullish(candles, rsi, lows, "RSI")...)
	out = append(out, checkBearish(candles, macdHist, highs, "MACD")...)
	out = append(out, checkBullish(candles, macdHist, lows, "MACD")...)
	return out
}

// findSwings returns strict local swing high/low indexes: every neighbor on
// both sides must be lower (resp. higher).
func findSwings(candles []models.Candle) (highs, lows []int) {
	for i := swingStrength; i < len(candles)-swingStrength; i++ {
		isHigh, isLow := true, true
		for j := i - swingStrength; j <= i+swingStrength; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, i)
		}
		if isLow {
			lows = append(lows, i)
		}
	}
	return highs, lows
}

func checkBearish(candles []models.Candle, osc []float64, highs []int, name string) []models.Divergence {
	if len(highs) < 2 {
		return nil
	}
	a, b := highs[len(highs)-2], highs[len(highs)-1]

	priceDelta := candles[b].High - candles[a].High
	oscDelta := osc[b] - osc[a]
	if priceDelta <= 0 || oscDelta >= 0 {
		return nil
	}

	conf := divergenceConfidence(priceDelta, candles[a].High, oscDelta)
	return []models.Divergence{{Indicator: name, Direction: models.DirectionSell, Confidence: conf}}
}

func checkBullish(candles []models.Candle, osc []float64, lows []int, name string) []models.Divergence {
	if len(lows) < 2 {
		return nil
	}
	a, b := lows[len(lows)-2], lows[len(lows)-1]

	priceDelta := candles[b].Low - candles[a].Low
	oscDelta := osc[b] - osc[a]
	if priceDelta >= 0 || oscDelta <= 0 {
		return nil
	}

	conf := divergenceConfidence(-priceDelta, candles[a].Low, oscDelta)
	return []models.Divergence{{Indicator: name, Direction: models.DirectionBuy, Confidence: conf}}
}

// divergenceConfidence scales with the magnitude of the price move and the
// oscillator disagreement.
func divergenceConfidence(priceDelta, ref, oscDelta float64) float64 {
	pricePct := 0.0
	if ref != 0 {
		pricePct = math.Abs(priceDelta/ref) * 100
	}
	conf := 40 + pricePct*120 + math.Abs(oscDelta)*1.5
	return clamp(conf, 20, 95)
}
