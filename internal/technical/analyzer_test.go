package technical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantflow/fxengine/config"
	"github.com/quantflow/fxengine/models"
)

func TestAnalyzeTimeframeInsufficientCandles(t *testing.T) {
	a := NewAnalyzer(config.Default())

	tests := []struct {
		name    string
		candles []models.Candle
	}{
		{"empty series", nil},
		{"single candle", trendingCandles(1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := a.AnalyzeTimeframe("EURUSD", models.TimeframeM15, tt.candles)

			require.NotNil(t, ta)
			assert.True(t, ta.Fallback)
			assert.Equal(t, models.DirectionNeutral, ta.Direction)
			assert.Equal(t, models.RegimeTransition, ta.Regime.State)
		})
	}
}

func TestAnalyzeTimeframeDirectionFollowsTrend(t *testing.T) {
	a := NewAnalyzer(config.Default())

	up := a.AnalyzeTimeframe("EURUSD", models.TimeframeH1, trendingCandles(80, 1))
	down := a.AnalyzeTimeframe("EURUSD", models.TimeframeH1, trendingCandles(80, -1))

	assert.Equal(t, models.DirectionBuy, up.Direction)
	assert.Equal(t, models.DirectionSell, down.Direction)
	assert.False(t, up.Fallback)
}

func TestAnalyzeTimeframeScoreClamped(t *testing.T) {
	a := NewAnalyzer(config.Default())

	ta := a.AnalyzeTimeframe("EURUSD", models.TimeframeH1, trendingCandles(120, 2))

	assert.LessOrEqual(t, ta.Score, 100.0)
	assert.GreaterOrEqual(t, ta.Score, -100.0)
}

func TestAnalyzeFusionSkipsFallbacks(t *testing.T) {
	a := NewAnalyzer(config.Default())

	candlesByTF := map[models.Timeframe][]models.Candle{
		models.TimeframeM15: trendingCandles(80, 1),
		models.TimeframeH1:  trendingCandles(80, 1),
		models.TimeframeH4:  nil, // degraded, must not pull fusion toward zero
		models.TimeframeD1:  trendingCandles(80, 1),
	}

	result := a.Analyze("EURUSD", candlesByTF)

	require.NotNil(t, result)
	assert.Equal(t, models.DirectionBuy, result.Direction)
	assert.True(t, result.Get(models.TimeframeH4).Fallback)

	// Fusion over the three usable timeframes only: identical series, so the
	// fused score equals the per-timeframe score.
	assert.InDelta(t, result.Get(models.TimeframeM15).Score, result.Score, 1e-9)
}

func TestAnalyzeDeterministic(t *testing.T) {
	candlesByTF := map[models.Timeframe][]models.Candle{
		models.TimeframeM15: trendingCandles(80, 1),
		models.TimeframeH1:  trendingCandles(80, -0.5),
	}

	a1 := NewAnalyzer(config.Default())
	a2 := NewAnalyzer(config.Default())

	r1 := a1.Analyze("EURUSD", candlesByTF)
	r2 := a2.Analyze("EURUSD", candlesByTF)

	assert.Equal(t, r1.Score, r2.Score)
	assert.Equal(t, r1.Direction, r2.Direction)
}

func TestAnalyzeCachesByLatestBar(t *testing.T) {
	a := NewAnalyzer(config.Default())
	candlesByTF := map[models.Timeframe][]models.Candle{
		models.TimeframeM15: trendingCandles(80, 1),
	}

	first := a.Analyze("EURUSD", candlesByTF)
	second := a.Analyze("EURUSD", candlesByTF)

	assert.Same(t, first, second, "same key must hit the cache")
}

func TestScoreDirectionThresholds(t *testing.T) {
	tests := []struct {
		score    float64
		expected models.Direction
	}{
		{13, models.DirectionBuy},
		{12, models.DirectionNeutral},
		{-12, models.DirectionNeutral},
		{-13, models.DirectionSell},
		{0, models.DirectionNeutral},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, scoreDirection(tt.score), "score %.0f", tt.score)
	}
}

func TestClassifyRegime(t *testing.T) {
	upCandles := trendingCandles(80, 1)
	upInd := computeIndicators(upCandles)
	regime := ClassifyRegime(upCandles, upInd)

	assert.Equal(t, models.RegimeTrend, regime.State)
	assert.GreaterOrEqual(t, regime.Confidence, 10.0)
	assert.LessOrEqual(t, regime.Confidence, 100.0)
	assert.Greater(t, regime.RSquared, 0.9, "linear ramp fits almost perfectly")

	flat := flatCandles(80)
	flatInd := computeIndicators(flat)
	flatRegime := ClassifyRegime(flat, flatInd)
	assert.NotEqual(t, models.RegimeTrend, flatRegime.State)
}

func TestAnalyzeVolatilityStates(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	spiky := generateTestCandles(60, func(i int) models.Candle {
		price := 100.0
		if i%2 == 0 {
			price = 100 + float64(i%10)
		}
		return models.Candle{
			Time:  base.Add(time.Duration(i) * time.Hour),
			Open:  price,
			High:  price + 1,
			Low:   price - 1,
			Close: price,
		}
	})

	calm := AnalyzeVolatility(flatCandles(60))
	rough := AnalyzeVolatility(spiky)

	assert.Greater(t, rough.Score, calm.Score)
	assert.GreaterOrEqual(t, calm.Score, 0.0)
	assert.LessOrEqual(t, rough.Score, 100.0)
}

func TestAnalyzeVolumePressure(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	buying := generateTestCandles(30, func(i int) models.Candle {
		return models.Candle{
			Time:   base.Add(time.Duration(i) * time.Hour),
			Open:   100,
			High:   101.2,
			Low:    99.9,
			Close:  101,
			Volume: 5000,
		}
	})

	vp := AnalyzeVolumePressure(buying)
	assert.Equal(t, "buying", vp.State)
	assert.Greater(t, vp.Imbalance, 20.0)
}
