package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantflow/fxengine/config"
	"github.com/quantflow/fxengine/models"
)

func testCandidate() Candidate {
	return Candidate{
		Pair:           models.PairInfo{Symbol: "EURUSD"},
		Direction:      models.DirectionBuy,
		Entry:          1.1000,
		StopLoss:       1.0970,
		TakeProfit:     1.1075,
		WinProbability: 0.65,
		ATR:            0.0020,
		Volatility:     models.VolatilityInfo{State: "normal", Score: 40},
		Equity:         10000,
		Now:            time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
	}
}

func TestKellyFraction(t *testing.T) {
	cfg := config.Default()
	e := NewEngine(cfg, NewLedger())

	tests := []struct {
		name       string
		winProb    float64
		riskReward float64
		check      func(t *testing.T, got float64)
	}{
		{
			name:    "strong edge clamps at max x1.1",
			winProb: 0.6, riskReward: 2,
			check: func(t *testing.T, got float64) {
				assert.InDelta(t, cfg.MaxRiskFraction*1.1, got, 1e-9)
			},
		},
		{
			name:    "negative edge falls back to 0.6x min",
			winProb: 0.3, riskReward: 1,
			check: func(t *testing.T, got float64) {
				assert.InDelta(t, cfg.MinRiskFraction*0.6, got, 1e-9)
			},
		},
		{
			name:    "zero risk reward falls back",
			winProb: 0.6, riskReward: 0,
			check: func(t *testing.T, got float64) {
				assert.InDelta(t, cfg.MinRiskFraction*0.6, got, 1e-9)
			},
		},
		{
			name:    "marginal edge stays within bounds",
			winProb: 0.52, riskReward: 1.2,
			check: func(t *testing.T, got float64) {
				assert.GreaterOrEqual(t, got, cfg.MinRiskFraction)
				assert.LessOrEqual(t, got, cfg.MaxRiskFraction*1.1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, e.KellyFraction(tt.winProb, tt.riskReward))
		})
	}
}

func TestVolatilityMultiplierBounds(t *testing.T) {
	states := []string{"calm", "normal", "high", "extreme"}
	for _, state := range states {
		for _, score := range []float64{0, 40, 100} {
			m := volatilityMultiplier(models.VolatilityInfo{State: state, Score: score})
			assert.GreaterOrEqual(t, m, 0.55, "state %s score %.0f", state, score)
			assert.LessOrEqual(t, m, 1.25, "state %s score %.0f", state, score)
		}
	}

	calm := volatilityMultiplier(models.VolatilityInfo{State: "calm", Score: 10})
	extreme := volatilityMultiplier(models.VolatilityInfo{State: "extreme", Score: 90})
	assert.Greater(t, calm, extreme)
}

func TestCorrelationMultiplier(t *testing.T) {
	cfg := config.Default()

	t.Run("no open trades leaves size untouched", func(t *testing.T) {
		e := NewEngine(cfg, NewLedger())
		assert.Equal(t, 1.0, e.correlationMultiplier(testCandidate()))
	})

	t.Run("same pair costs the full penalty regardless of direction", func(t *testing.T) {
		for _, dir := range []models.Direction{models.DirectionBuy, models.DirectionSell} {
			e := NewEngine(cfg, NewLedger())
			e.ledger.Open(models.ActiveTrade{ID: "a", Pair: "EURUSD", Direction: dir, RiskFraction: 0.01}, 0.01, time.Now())

			m := e.correlationMultiplier(testCandidate())
			assert.InDelta(t, 1-cfg.SamePairPenalty, m, 1e-9, "direction %s", dir)
		}
	})

	t.Run("shared currency costs the lighter penalty", func(t *testing.T) {
		e := NewEngine(cfg, NewLedger())
		e.ledger.Open(models.ActiveTrade{ID: "a", Pair: "EURJPY", Direction: models.DirectionBuy, RiskFraction: 0.01}, 0.01, time.Now())

		m := e.correlationMultiplier(testCandidate())
		assert.InDelta(t, 1-cfg.SharedCurrencyPenalty, m, 1e-9)
	})

	t.Run("opposite direction softens the shared currency penalty", func(t *testing.T) {
		e := NewEngine(cfg, NewLedger())
		e.ledger.Open(models.ActiveTrade{ID: "a", Pair: "EURJPY", Direction: models.DirectionSell, RiskFraction: 0.01}, 0.01, time.Now())

		m := e.correlationMultiplier(testCandidate())
		assert.InDelta(t, (1-cfg.SharedCurrencyPenalty)*1.05, m, 1e-9)
	})

	t.Run("floors at 0.3", func(t *testing.T) {
		e := NewEngine(cfg, NewLedger())
		for i, pair := range []string{"EURUSD", "EURJPY", "EURGBP", "EURCHF", "EURAUD"} {
			e.ledger.Open(models.ActiveTrade{ID: string(rune('a' + i)), Pair: pair, Direction: models.DirectionBuy, RiskFraction: 0.005}, 0.005, time.Now())
		}

		assert.Equal(t, 0.3, e.correlationMultiplier(testCandidate()))
	})
}

func TestAssessHappyPath(t *testing.T) {
	e := NewEngine(config.Default(), NewLedger())

	a := e.Assess(testCandidate())

	assert.True(t, a.CanTrade, "breaches: %v", a.Breaches)
	assert.Empty(t, a.Breaches)
	assert.Greater(t, a.PositionSize, 0.0)
	assert.Greater(t, a.RiskFraction, 0.0)
	require.Len(t, a.StressTests, 3)
	for _, st := range a.StressTests {
		assert.Greater(t, st.EquityImpact, 0.0)
		assert.Greater(t, st.EquityImpactPct, 0.0)
	}
}

func TestAssessBlocksWhenDailyBudgetSpent(t *testing.T) {
	cfg := config.Default()
	e := NewEngine(cfg, NewLedger())
	c := testCandidate()

	e.ledger.Open(models.ActiveTrade{ID: "a", Pair: "GBPCHF", Direction: models.DirectionBuy, RiskFraction: cfg.MaxDailyRisk}, cfg.MaxDailyRisk, c.now())

	a := e.Assess(c)

	assert.False(t, a.CanTrade)
	assert.Equal(t, 0.0, a.DailyBudgetRemaining)
}

func TestAssessBlocksOnCorrelationCluster(t *testing.T) {
	cfg := config.Default()
	e := NewEngine(cfg, NewLedger())

	for i, pair := range []string{"GBPUSD", "AUDUSD", "NZDUSD"} {
		e.ledger.Open(models.ActiveTrade{ID: string(rune('a' + i)), Pair: pair, Direction: models.DirectionBuy, RiskFraction: 0.002}, 0.002, time.Now())
	}

	c := testCandidate()
	c.Correlations = map[string]float64{"GBPUSD": 0.85, "AUDUSD": 0.75, "NZDUSD": 0.7}

	a := e.Assess(c)

	assert.True(t, a.CorrelationBlocked)
	assert.False(t, a.CanTrade)
}

func TestAssessBlocksOnVaR(t *testing.T) {
	cfg := config.Default()
	cfg.VaRMaxLossPct = 2.0
	e := NewEngine(cfg, NewLedger())

	c := testCandidate()
	c.VaR = &models.VaRSnapshot{LossPct: 3.5, Confidence: 0.95}

	a := e.Assess(c)

	assert.True(t, a.VaRBlocked)
	assert.False(t, a.CanTrade)
	require.Len(t, a.Breaches, 1)
	assert.Contains(t, a.Breaches[0], "95% confidence")
}

func TestAssessBlocksOnCurrencyExposure(t *testing.T) {
	cfg := config.Default()
	cfg.MaxExposurePerCurrency = 0.001
	e := NewEngine(cfg, NewLedger())

	a := e.Assess(testCandidate())

	assert.True(t, a.ExposureBreached)
	assert.True(t, a.CurrencyLimitBreached)
	assert.False(t, a.CanTrade)
}

func TestOpenTradeLifecycle(t *testing.T) {
	e := NewEngine(config.Default(), NewLedger())
	c := testCandidate()

	a := e.Assess(c)
	require.True(t, a.CanTrade)

	id, err := e.OpenTrade(c, a)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, e.Ledger().Active(), 1)

	e.CloseTrade(id)
	assert.Empty(t, e.Ledger().Active())
}

func TestOpenTradeRefusesBlockedAssessment(t *testing.T) {
	e := NewEngine(config.Default(), NewLedger())

	_, err := e.OpenTrade(testCandidate(), models.RiskAssessment{CanTrade: false, Breaches: []string{"blocked"}})
	assert.Error(t, err)
}

func TestLedgerDailyRollover(t *testing.T) {
	l := NewLedger()
	day1 := time.Date(2026, 8, 25, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 26, 1, 0, 0, 0, time.UTC)

	l.Open(models.ActiveTrade{ID: "a", Pair: "EURUSD"}, 0.02, day1)
	assert.Equal(t, 0.02, l.RiskSpent(day1))

	assert.Equal(t, 0.0, l.RiskSpent(day2), "budget resets at UTC midnight")
	assert.Len(t, l.Active(), 1, "open trades survive the rollover")
}
