package technical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantflow/fxengine/models"
)

func generateTestCandles(n int, build func(i int) models.Candle) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = build(i)
	}
	return candles
}

func trendingCandles(n int, step float64) []models.Candle {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return generateTestCandles(n, func(i int) models.Candle {
		price := 100 + float64(i)*step
		return models.Candle{
			Time:   base.Add(time.Duration(i) * time.Hour),
			Open:   price - step/2,
			High:   price + 0.5,
			Low:    price - 0.5,
			Close:  price,
			Volume: int64(1000 + i*10),
		}
	})
}

func flatCandles(n int) []models.Candle {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return generateTestCandles(n, func(i int) models.Candle {
		wiggle := float64(i%2)*0.02 - 0.01
		return models.Candle{
			Time:  base.Add(time.Duration(i) * time.Hour),
			Open:  100 + wiggle,
			High:  100.05 + wiggle,
			Low:   99.95 + wiggle,
			Close: 100 + wiggle,
		}
	})
}

func TestSMA(t *testing.T) {
	candles := trendingCandles(30, 1)

	got := SMA(candles, 20)
	// Last 20 closes of a 30-candle 1-per-bar ramp: closes 110..129.
	assert.InDelta(t, 119.5, got, 1e-9)
}

func TestSMAInsufficientDataFallsBackToLastClose(t *testing.T) {
	candles := trendingCandles(5, 1)
	assert.Equal(t, candles[4].Close, SMA(candles, 20))
}

func TestEMATracksTrend(t *testing.T) {
	up := trendingCandles(60, 1)
	down := trendingCandles(60, -1)

	emaUp := EMA(up, 12)
	emaDown := EMA(down, 12)

	assert.Greater(t, emaUp, SMA(up, 50), "EMA should sit above the long SMA in an uptrend")
	assert.Less(t, emaDown, SMA(down, 50), "EMA should sit below the long SMA in a downtrend")
}

func TestRSIExtremes(t *testing.T) {
	tests := []struct {
		name    string
		candles []models.Candle
		check   func(t *testing.T, rsi float64)
	}{
		{
			name:    "steady uptrend saturates high",
			candles: trendingCandles(40, 1),
			check: func(t *testing.T, rsi float64) {
				assert.Greater(t, rsi, 70.0)
			},
		},
		{
			name:    "steady downtrend saturates low",
			candles: trendingCandles(40, -1),
			check: func(t *testing.T, rsi float64) {
				assert.Less(t, rsi, 30.0)
			},
		},
		{
			name:    "flat tape stays near the middle",
			candles: flatCandles(40),
			check: func(t *testing.T, rsi float64) {
				assert.InDelta(t, 50, rsi, 25)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, RSI(tt.candles, 14))
		})
	}
}

func TestMACDSignOnTrend(t *testing.T) {
	macd, _, hist := MACD(trendingCandles(80, 1), 12, 26, 9)
	assert.Greater(t, macd, 0.0)
	assert.Greater(t, hist, 0.0)

	macd, _, hist = MACD(trendingCandles(80, -1), 12, 26, 9)
	assert.Less(t, macd, 0.0)
	assert.Less(t, hist, 0.0)
}

func TestBollingerOrdering(t *testing.T) {
	upper, middle, lower := Bollinger(trendingCandles(40, 0.5), 20, 2.0)

	assert.Greater(t, upper, middle)
	assert.Greater(t, middle, lower)
}

func TestATRPositive(t *testing.T) {
	atr := ATR(trendingCandles(40, 1), 14)
	assert.Greater(t, atr, 0.0)
}

func TestADXProxyStrongerOnTrend(t *testing.T) {
	trendADX, plusDI, minusDI := ADXProxy(trendingCandles(60, 1), 14)
	flatADX, _, _ := ADXProxy(flatCandles(60), 14)

	assert.Greater(t, trendADX, flatADX)
	assert.Greater(t, plusDI, minusDI, "uptrend should favor +DI")
}

func TestLinearRegression(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	slope, r2 := LinearRegression(closes)

	assert.InDelta(t, 1.0, slope, 1e-9)
	assert.InDelta(t, 1.0, r2, 1e-9)
}

func TestFibonacciLevelsWithinRange(t *testing.T) {
	fib := FibonacciLevels(trendingCandles(40, 1))

	assert.Len(t, fib.Levels, 5)
	for _, level := range fib.Levels {
		assert.GreaterOrEqual(t, level, fib.Low)
		assert.LessOrEqual(t, level, fib.High)
	}
}

func TestIchimokuUptrendOrdering(t *testing.T) {
	ich := IchimokuLines(trendingCandles(60, 1))

	assert.Greater(t, ich.Tenkan, ich.Kijun, "uptrend puts tenkan above kijun")
	assert.Greater(t, ich.Tenkan, ich.SenkouB, "short midpoint leads the 52-bar midpoint")
}
