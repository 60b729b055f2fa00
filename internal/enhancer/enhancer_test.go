package enhancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantflow/fxengine/config"
	"github.com/quantflow/fxengine/internal/technical"
	"github.com/quantflow/fxengine/models"
)

func wobblyUptrend(n int) []models.Candle {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	price := 1.1000
	for i := 0; i < n; i++ {
		step := 0.0003
		if i%3 == 2 {
			step = -0.0002
		}
		open := price
		price += step
		hi, lo := price, open
		if open > price {
			hi, lo = open, price
		}
		candles[i] = models.Candle{
			Time:   base.Add(time.Duration(i-n) * 15 * time.Minute),
			Open:   open,
			High:   hi + 0.0002,
			Low:    lo - 0.0002,
			Close:  price,
			Volume: 2000,
		}
	}
	return candles
}

func uptrendInput(t *testing.T) Input {
	t.Helper()

	candles := wobblyUptrend(100)
	analysis := technical.NewAnalyzer(config.Default()).Analyze("EURUSD", map[models.Timeframe][]models.Candle{
		models.TimeframeM15: candles,
		models.TimeframeH1:  candles,
		models.TimeframeH4:  candles,
		models.TimeframeD1:  candles,
	})

	last := candles[len(candles)-1].Close
	return Input{
		Pair:     models.PairInfo{Symbol: "EURUSD"},
		Analysis: analysis,
		Quote:    &models.Quote{Bid: last - 0.00004, Ask: last + 0.00004, LiquidityHint: 85},
	}
}

func buySignal(entry float64) models.Signal {
	return models.Signal{
		Pair:       "EURUSD",
		Direction:  models.DirectionBuy,
		Strength:   88,
		Confidence: 90,
		FinalScore: 85,
		Entry:      entry,
		StopLoss:   entry - 0.0030,
		TakeProfit: entry + 0.0075,
		Valid:      true,
		Time:       time.Date(2026, 8, 25, 13, 0, 0, 0, time.UTC),
	}
}

func TestEnhanceScoresWithinBounds(t *testing.T) {
	e := New(config.Default())
	in := uptrendInput(t)
	sig := buySignal(1.1100)

	out := e.Enhance(sig, in)

	for name, v := range map[string]float64{
		"trend":          out.TrendStrength,
		"momentum":       out.MomentumQuality,
		"volume":         out.VolumeScore,
		"microstructure": out.Microstructure,
		"pattern":        out.PatternSimilarity,
		"enhanced":       out.EnhancedScore,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 100.0, name)
	}

	assert.Equal(t, sig.FinalScore, out.OriginalScore)
	assert.Equal(t, sig.Pair, out.Pair)
	assert.Equal(t, sig.Direction, out.Direction)
}

func TestEnhanceAlignedTrendBeatsOpposed(t *testing.T) {
	e := New(config.Default())
	in := uptrendInput(t)

	buy := e.Enhance(buySignal(1.1100), in)

	sell := buySignal(1.1100)
	sell.Direction = models.DirectionSell
	sell.StopLoss = sell.Entry + 0.0030
	sell.TakeProfit = sell.Entry - 0.0075
	opposed := e.Enhance(sell, in)

	assert.Greater(t, buy.TrendStrength, opposed.TrendStrength)
	assert.Greater(t, buy.MomentumQuality, opposed.MomentumQuality)
	assert.Greater(t, buy.EnhancedScore, opposed.EnhancedScore)
}

func TestWinProbabilityClamped(t *testing.T) {
	e := New(config.Default())

	assert.Equal(t, 0.50, e.winProbability(0, 0, 0, 0, 0))
	assert.Equal(t, 0.99, e.winProbability(100, 100, 100, 100, 1))
}

func TestWinProbabilityBandAdjustments(t *testing.T) {
	e := New(config.Default())

	base := e.winProbability(70, 60, 60, 50, 0.60)
	strongTrend := e.winProbability(70, 85, 60, 50, 0.60)
	weakMomentum := e.winProbability(70, 60, 30, 50, 0.60)

	assert.InDelta(t, 0.70, base, 1e-9)
	assert.InDelta(t, 0.74, strongTrend, 1e-9)
	assert.InDelta(t, 0.66, weakMomentum, 1e-9)
}

func TestOptimizedLevelsLaddersFromSignalStop(t *testing.T) {
	e := New(config.Default())
	in := uptrendInput(t)
	sig := buySignal(1.1100)

	levels := e.optimizedLevels(sig, in)

	require.Equal(t, sig.StopLoss, levels.StopLoss)
	dist := sig.Entry - sig.StopLoss
	assert.InDelta(t, sig.Entry+1.5*dist, levels.Targets[0], 1e-9)
	assert.InDelta(t, sig.Entry+2.5*dist, levels.Targets[1], 1e-9)
	assert.InDelta(t, sig.Entry+4.0*dist, levels.Targets[2], 1e-9)

	var total float64
	for _, p := range levels.PartialClose {
		total += p
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestOptimizedLevelsDerivesStopFromATR(t *testing.T) {
	e := New(config.Default())
	in := uptrendInput(t)
	sig := buySignal(1.1100)
	sig.StopLoss = 0

	levels := e.optimizedLevels(sig, in)

	atr := in.Analysis.Get(models.TimeframeM15).Indicators.ATR
	require.Greater(t, atr, 0.0)
	assert.InDelta(t, sig.Entry-1.5*atr, levels.StopLoss, 1e-9)
	assert.Greater(t, levels.Targets[0], sig.Entry)
}

func TestOptimizedLevelsSellSideMirrors(t *testing.T) {
	e := New(config.Default())
	in := uptrendInput(t)
	sig := buySignal(1.1100)
	sig.Direction = models.DirectionSell
	sig.StopLoss = 0

	levels := e.optimizedLevels(sig, in)

	assert.Greater(t, levels.StopLoss, sig.Entry, "sell stop sits above entry")
	assert.Less(t, levels.Targets[0], sig.Entry)
	assert.Less(t, levels.Targets[2], levels.Targets[0])
}

func TestOptimizedLevelsEmptyWithoutEntry(t *testing.T) {
	e := New(config.Default())
	in := uptrendInput(t)

	levels := e.optimizedLevels(models.Signal{}, in)

	assert.Equal(t, models.OptimizedLevels{}, levels)
}

func TestMicrostructure(t *testing.T) {
	e := New(config.Default())
	pair := models.PairInfo{Symbol: "EURUSD"}

	tests := []struct {
		name  string
		in    Input
		check func(t *testing.T, score float64)
	}{
		{
			name: "nil quote is neutral",
			in:   Input{Pair: pair},
			check: func(t *testing.T, score float64) {
				assert.Equal(t, 50.0, score)
			},
		},
		{
			name: "tight spread with deep liquidity scores high",
			in:   Input{Pair: pair, Quote: &models.Quote{SpreadPoints: 6, LiquidityHint: 90}},
			check: func(t *testing.T, score float64) {
				assert.Equal(t, 100.0, score)
			},
		},
		{
			name: "wide stale quote scores low",
			in:   Input{Pair: pair, Quote: &models.Quote{SpreadPoints: 40, LiquidityHint: 20, AgeMs: 60_000}},
			check: func(t *testing.T, score float64) {
				assert.Equal(t, 15.0, score)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, e.microstructure(tt.in))
		})
	}
}

func TestRatingBands(t *testing.T) {
	tests := []struct {
		score    float64
		winProb  float64
		expected string
	}{
		{95, 0.95, models.RatingUltra},
		{85, 0.85, models.RatingExcellent},
		{75, 0.75, models.RatingGood},
		{65, 0.65, models.RatingAcceptable},
		{95, 0.55, models.RatingFiltered},
		{40, 0.95, models.RatingFiltered},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, rating(tt.score, tt.winProb),
			"score %.0f winProb %.2f", tt.score, tt.winProb)
	}
}
