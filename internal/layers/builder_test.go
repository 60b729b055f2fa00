package layers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantflow/fxengine/config"
	"github.com/quantflow/fxengine/internal/technical"
	"github.com/quantflow/fxengine/models"
)

// wobblyUptrend builds an FX-scale uptrend with periodic pullbacks so the
// RSI stays below extreme territory.
func wobblyUptrend(n int) []models.Candle {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) // Tuesday
	candles := make([]models.Candle, n)
	price := 1.1000
	for i := 0; i < n; i++ {
		step := 0.0003
		if i%3 == 2 {
			step = -0.0002
		}
		open := price
		price += step
		candles[i] = models.Candle{
			Time:  base.Add(time.Duration(i-n) * 15 * time.Minute),
			Open:  open,
			High:  maxF(open, price) + 0.0002,
			Low:   minF(open, price) - 0.0002,
			Close: price,
		}
	}
	return candles
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func analyzedScenario(t *testing.T, cfg *config.Config) *Scenario {
	t.Helper()

	candles := wobblyUptrend(100)
	analyzer := technical.NewAnalyzer(cfg)
	analysis := analyzer.Analyze("EURUSD", map[models.Timeframe][]models.Candle{
		models.TimeframeM15: candles,
		models.TimeframeH1:  candles,
		models.TimeframeH4:  candles,
		models.TimeframeD1:  candles,
	})

	last := candles[len(candles)-1].Close
	return &Scenario{
		Pair: models.PairInfo{Symbol: "EURUSD"},
		Signal: models.Signal{
			Pair:       "EURUSD",
			Direction:  models.DirectionBuy,
			Strength:   90,
			Confidence: 95,
			FinalScore: 90,
			Entry:      last,
			StopLoss:   last - 0.0030,
			TakeProfit: last + 0.0075,
			State:      string(models.DecisionEnter),
			Valid:      true,
			Time:       time.Date(2026, 8, 25, 13, 0, 0, 0, time.UTC),
		},
		Quote: &models.Quote{
			Bid:   last - 0.00005,
			Ask:   last + 0.00005,
			Mid:   last,
			AgeMs: 500,
		},
		Analysis: analysis,
		Now:      time.Date(2026, 8, 25, 13, 0, 0, 0, time.UTC),
	}
}

func TestBuildProducesExactly18Layers(t *testing.T) {
	cfg := config.Default()
	b := NewBuilder(cfg)

	layers, _ := b.Build(analyzedScenario(t, cfg))

	require.Len(t, layers, 18)
	for i, l := range layers {
		assert.Equal(t, i+1, l.Index)
		assert.NotEmpty(t, l.Name)
		assert.GreaterOrEqual(t, l.Confidence, 0)
		assert.LessOrEqual(t, l.Confidence, 100)
		assert.NotEmpty(t, l.Availability)
	}
}

func TestBuildSurvivesEmptyScenario(t *testing.T) {
	cfg := config.Default()
	b := NewBuilder(cfg)

	layers, decision := b.Build(&Scenario{
		Pair:   models.PairInfo{Symbol: "EURUSD"},
		Signal: models.Signal{Direction: models.DirectionNeutral},
	})

	require.Len(t, layers, 18)
	assert.NotEqual(t, models.DecisionEnter, decision.State)
	assert.NotEmpty(t, decision.Missing, "absent analysis must surface as missing layers")
}

func TestBuildEntersOnStrongAlignedSignal(t *testing.T) {
	cfg := config.Default()
	b := NewBuilder(cfg)
	s := analyzedScenario(t, cfg)

	layers, decision := b.Build(s)

	require.Len(t, layers, 18)
	assert.Empty(t, decision.KillSwitch.IDs, "no kill switch expected: %v", decision.KillSwitch.Reasons)
	assert.Equal(t, models.DecisionEnter, decision.State)
	assert.False(t, decision.Blocked)
	assert.Empty(t, decision.WhatWouldChange)
	assert.GreaterOrEqual(t, decision.SizingHint, 1)
	assert.LessOrEqual(t, decision.SizingHint, 10)
}

func TestBuildWaitsOnWeakSignal(t *testing.T) {
	cfg := config.Default()
	b := NewBuilder(cfg)
	s := analyzedScenario(t, cfg)
	s.Signal.Strength = 40
	s.Signal.Confidence = 50
	s.Signal.FinalScore = 45

	_, decision := b.Build(s)

	assert.Equal(t, models.DecisionWait, decision.State)
	assert.NotEmpty(t, decision.WhatWouldChange)
	assert.NotEmpty(t, decision.NextSteps)
}

func TestBuildBlocksInvalidSignal(t *testing.T) {
	cfg := config.Default()
	b := NewBuilder(cfg)
	s := analyzedScenario(t, cfg)
	s.Signal.Valid = false

	_, decision := b.Build(s)

	assert.Equal(t, models.DecisionBlocked, decision.State)
	assert.True(t, decision.Blocked)
	assert.Contains(t, decision.KillSwitch.IDs, "validation")
}

func TestBuildBlocksOnHTFConflict(t *testing.T) {
	cfg := config.Default()
	b := NewBuilder(cfg)
	s := analyzedScenario(t, cfg)
	s.Signal.Direction = models.DirectionSell
	s.Signal.StopLoss = s.Signal.Entry + 0.0030
	s.Signal.TakeProfit = s.Signal.Entry - 0.0075

	_, decision := b.Build(s)

	assert.Equal(t, models.DecisionBlocked, decision.State)
	assert.Contains(t, decision.KillSwitch.IDs, "htf_conflict")
}

func TestStrongOverrideEntersDespiteGateFailure(t *testing.T) {
	cfg := config.Default()
	cfg.MinStrength = 95 // gate fails on strength
	b := NewBuilder(cfg)
	s := analyzedScenario(t, cfg)

	_, decision := b.Build(s)

	// Strength 90 misses the raised gate but clears the override floors
	// (confidence 95 >= 85, strength 90 >= 70) with full levels.
	assert.Equal(t, models.DecisionEnter, decision.State)
}

func TestStrongOverrideRequiresRawEnterState(t *testing.T) {
	cfg := config.Default()
	cfg.MinStrength = 95
	b := NewBuilder(cfg)
	s := analyzedScenario(t, cfg)
	s.Signal.State = string(models.DecisionWait)

	_, decision := b.Build(s)

	// Same floors as the override case above, but the raw signal says WAIT:
	// the override must not promote it.
	assert.Equal(t, models.DecisionWait, decision.State)
}

func TestStrongOverrideRespectsKillSwitch(t *testing.T) {
	cfg := config.Default()
	cfg.MinStrength = 95
	b := NewBuilder(cfg)
	s := analyzedScenario(t, cfg)
	s.News = &models.NewsSnapshot{Direction: models.DirectionSell, Confidence: 90, Impact: 9.5}

	_, decision := b.Build(s)

	assert.Equal(t, models.DecisionBlocked, decision.State)
	assert.Contains(t, decision.KillSwitch.IDs, "news_impact")
}

func TestAdaptiveConfidencePenalties(t *testing.T) {
	cfg := config.Default()
	b := NewBuilder(cfg)
	s := analyzedScenario(t, cfg)
	// Wide spread and an off-hours timestamp both penalize.
	s.Quote.SpreadPoints = 45
	s.Now = time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC) // Saturday
	s.Signal.Time = s.Now

	layers, decision := b.Build(s)

	dec := findLayer(layers, 18)
	require.NotNil(t, dec)
	dm, ok := dec.Metrics.(models.DecisionMetrics)
	require.True(t, ok)

	assert.Less(t, dm.AdaptiveConfidence, dm.BaseConfidence)
	assert.Equal(t, dm.AdaptiveConfidence, decision.AdaptiveConfidence)
}

func TestLayerSessionWeekend(t *testing.T) {
	b := NewBuilder(config.Default())
	s := &Scenario{Now: time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)} // Saturday

	l := b.layerSession(s)

	m, ok := l.Metrics.(models.SessionMetrics)
	require.True(t, ok)
	assert.False(t, m.ActiveHours)
	assert.Equal(t, "off", m.Session)
}

func TestLayerMemoryStrengthTagWeights(t *testing.T) {
	b := NewBuilder(config.Default())
	s := &Scenario{
		Memory:   &models.MarketMemory{Tags: []string{"sweep", "rejection", "volume_spike"}},
		Economic: &models.EconomicSnapshot{Differential: 7, Confidence: 80},
	}

	l := b.layerMemoryStrength(s)

	m, ok := l.Metrics.(models.MemoryStrengthMetrics)
	require.True(t, ok)
	assert.Equal(t, 85.0, m.MemoryScore) // 30+30+25
	assert.Equal(t, models.DirectionBuy, m.RelativeBias)
}

func TestLayerRawDataSynthesizesQuote(t *testing.T) {
	cfg := config.Default()
	b := NewBuilder(cfg)
	s := analyzedScenario(t, cfg)
	s.Quote = &models.Quote{Last: 1.1200}

	l := b.layerRawData(s)

	m, ok := l.Metrics.(models.RawDataMetrics)
	require.True(t, ok)
	assert.True(t, m.Synthetic)
	assert.Greater(t, m.Ask, m.Bid)
	assert.InDelta(t, 1.1200, m.Mid, 1e-9)
}

func TestLayerValidationRejectsInvertedLevels(t *testing.T) {
	b := NewBuilder(config.Default())
	s := &Scenario{
		Signal: models.Signal{
			Direction:  models.DirectionBuy,
			Valid:      true,
			Entry:      1.10,
			StopLoss:   1.11, // above entry on a BUY
			TakeProfit: 1.12,
		},
	}

	l := b.layerValidation(s)

	m, ok := l.Metrics.(models.ValidationMetrics)
	require.True(t, ok)
	assert.False(t, m.Valid)
	assert.Contains(t, m.FailedChecks, "levels_inverted")
}
