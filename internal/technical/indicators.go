package technical

import (
	"math"

	"github.com/quantflow/fxengine/models"
)

// Closes extracts the close series.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// SMA returns the simple moving average of the last period closes.
func SMA(candles []models.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if len(candles) < period {
		return candles[len(candles)-1].Close
	}
	var sum float64
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average of the close series.
func EMA(candles []models.Candle, period int) float64 {
	return emaFromPrices(Closes(candles), period)
}

func emaFromPrices(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	if len(prices) < period {
		return prices[len(prices)-1]
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
	}
	return ema
}

// RSI computes the relative strength index using the Wilder recurrence.
func RSI(candles []models.Candle, period int) float64 {
	if len(candles) < period+1 {
		return 50.0
	}

	var gains, losses float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain = (avgGain*float64(period-1) + change) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) - change) / float64(period)
		}
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// rsiSeries computes a rolling RSI value per bar, used by divergence
// detection. Early bars default to 50.
func rsiSeries(candles []models.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		if i < period {
			out[i] = 50
			continue
		}
		start := i - period*2
		if start < 0 {
			start = 0
		}
		out[i] = RSI(candles[start:i+1], period)
	}
	return out
}

// MACD returns the MACD line (EMA12-EMA26), its 9-period signal EMA and the
// histogram.
func MACD(candles []models.Candle, fast, slow, signal int) (float64, float64, float64) {
	closes := Closes(candles)
	if len(closes) < slow+signal {
		return 0, 0, 0
	}

	macdLine := emaFromPrices(closes, fast) - emaFromPrices(closes, slow)

	history := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		window := closes[:i+1]
		history = append(history, emaFromPrices(window, fast)-emaFromPrices(window, slow))
	}

	signalLine := 0.0
	if len(history) >= signal {
		signalLine = emaFromPrices(history, signal)
	}
	return macdLine, signalLine, macdLine - signalLine
}

// macdHistSeries returns the MACD histogram per bar, for divergence checks.
func macdHistSeries(candles []models.Candle, fast, slow, signal int) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		if i+1 < slow+signal {
			continue
		}
		_, _, out[i] = MACD(candles[:i+1], fast, slow, signal)
	}
	return out
}

// Bollinger returns the SMA20 +/- 2 sigma bands for the given period.
func Bollinger(candles []models.Candle, period int, stdDev float64) (upper, middle, lower float64) {
	if len(candles) == 0 {
		return 0, 0, 0
	}
	if len(candles) < period {
		last := candles[len(candles)-1].Close
		return last, last, last
	}

	middle = SMA(candles, period)

	var variance float64
	for i := len(candles) - period; i < len(candles); i++ {
		d := candles[i].Close - middle
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	return middle + sd*stdDev, middle, middle - sd*stdDev
}

// Stochastic returns %K and its dPeriod-smoothed %D.
func Stochastic(candles []models.Candle, kPeriod, dPeriod int) (float64, float64) {
	if len(candles) < kPeriod {
		return 50.0, 50.0
	}

	k := stochK(candles, kPeriod)

	var kSum float64
	count := dPeriod
	if count > len(candles)-kPeriod+1 {
		count = len(candles) - kPeriod + 1
	}
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		end := len(candles) - i
		kSum += stochK(candles[:end], kPeriod)
	}
	return k, kSum / float64(count)
}

func stochK(candles []models.Candle, period int) float64 {
	highest, lowest := 0.0, 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		if i == len(candles)-period || candles[i].High > highest {
			highest = candles[i].High
		}
		if i == len(candles)-period || candles[i].Low < lowest {
			lowest = candles[i].Low
		}
	}
	if highest-lowest <= 0 {
		return 50.0
	}
	return (candles[len(candles)-1].Close - lowest) / (highest - lowest) * 100
}

// ATR computes the Wilder-smoothed average true range.
func ATR(candles []models.Candle, period int) float64 {
	if len(candles) < 2 {
		return 0
	}

	trs := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		trs = append(trs, math.Max(hl, math.Max(hc, lc)))
	}

	if len(trs) < period {
		var sum float64
		for _, tr := range trs {
			sum += tr
		}
		return sum / float64(len(trs))
	}

	var atr float64
	for i := 0; i < period; i++ {
		atr += trs[i]
	}
	atr /= float64(period)
	for i := period; i < len(trs); i++ {
		atr = (atr*float64(period-1) + trs[i]) / float64(period)
	}
	return atr
}

// ADXProxy is a simplified directional index: raw directional-move sums over
// the ATR window, without full Wilder smoothing. The composite score is tuned
// to this exact behavior, so it must not be replaced with textbook ADX.
func ADXProxy(candles []models.Candle, period int) (adx, plusDI, minusDI float64) {
	if len(candles) < period+1 {
		return 0, 0, 0
	}

	var plusSum, minusSum float64
	for i := len(candles) - period; i < len(candles); i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusSum += up
		}
		if down > up && down > 0 {
			minusSum += down
		}
	}

	atr := ATR(candles, period)
	if atr <= 0 {
		return 0, 0, 0
	}

	denom := atr * float64(period)
	plusDI = plusSum / denom * 100
	minusDI = minusSum / denom * 100

	if plusDI+minusDI <= 0 {
		return 0, plusDI, minusDI
	}
	adx = math.Abs(plusDI-minusDI) / (plusDI + minusDI) * 100
	return adx, plusDI, minusDI
}

// IchimokuLines computes the 9/26/52 cloud values.
func IchimokuLines(candles []models.Candle) models.Ichimoku {
	mid := func(period int) float64 {
		if len(candles) < period {
			period = len(candles)
		}
		if period == 0 {
			return 0
		}
		hi, lo := 0.0, 0.0
		for i := len(candles) - period; i < len(candles); i++ {
			if i == len(candles)-period || candles[i].High > hi {
				hi = candles[i].High
			}
			if i == len(candles)-period || candles[i].Low < lo {
				lo = candles[i].Low
			}
		}
		return (hi + lo) / 2
	}

	tenkan := mid(9)
	kijun := mid(26)
	return models.Ichimoku{
		Tenkan:  tenkan,
		Kijun:   kijun,
		SenkouA: (tenkan + kijun) / 2,
		SenkouB: mid(52),
	}
}

// FibonacciLevels builds retracement levels from the window min/max close.
func FibonacciLevels(candles []models.Candle) models.Fibonacci {
	if len(candles) == 0 {
		return models.Fibonacci{}
	}
	hi, lo := candles[0].Close, candles[0].Close
	for _, c := range candles {
		if c.Close > hi {
			hi = c.Close
		}
		if c.Close < lo {
			lo = c.Close
		}
	}

	span := hi - lo
	ratios := []float64{0.236, 0.382, 0.5, 0.618, 0.786}
	levels := make([]float64, len(ratios))
	for i, r := range ratios {
		levels[i] = hi - span*r
	}
	return models.Fibonacci{High: hi, Low: lo, Levels: levels}
}

// LinearRegression fits closes against bar index and returns the slope
// (price units per bar) and the r-squared of the fit.
func LinearRegression(closes []float64) (slope, r2 float64) {
	n := float64(len(closes))
	if n < 2 {
		return 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range closes {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssRes, ssTot float64
	for i, y := range closes {
		fit := intercept + slope*float64(i)
		ssRes += (y - fit) * (y - fit)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		return slope, 0
	}
	r2 = 1 - ssRes/ssTot
	if r2 < 0 {
		r2 = 0
	}
	return slope, r2
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
