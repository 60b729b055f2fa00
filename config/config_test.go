package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "EURUSD", cfg.Pair)
	assert.Equal(t, []string{"M15", "H1", "H4", "D1"}, cfg.Timeframes)
	assert.Equal(t, 70.0, cfg.MinStrength)
	assert.Equal(t, 75.0, cfg.MinConfidence)
	assert.Equal(t, 2.0, cfg.MinRiskReward)
	assert.Equal(t, 0.85, cfg.MinWinProbability)
	assert.Equal(t, 0.01, cfg.RiskPerTrade)
	assert.Equal(t, 0.05, cfg.MaxDailyRisk)
	assert.Equal(t, []string{"trend", "transition"}, cfg.AllowedRegimes)
	assert.Equal(t, 120, cfg.CandleCount)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pair: GBPJPY\nmin_strength: 80\nmax_daily_risk: 0.03\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "GBPJPY", cfg.Pair)
	assert.Equal(t, 80.0, cfg.MinStrength)
	assert.Equal(t, 0.03, cfg.MaxDailyRisk)
	// Untouched fields keep their defaults.
	assert.Equal(t, 75.0, cfg.MinConfidence)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PAIR", "USDJPY")
	t.Setenv("RISK_PER_TRADE", "0.02")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "USDJPY", cfg.Pair)
	assert.Equal(t, 0.02, cfg.RiskPerTrade)
}

func TestSanitizeRevertsNonFinite(t *testing.T) {
	cfg := Default()
	cfg.MinStrength = math.NaN()
	cfg.MaxDailyRisk = math.Inf(1)
	cfg.MinRiskReward = math.Inf(-1)

	cfg.Sanitize()

	d := Default()
	assert.Equal(t, d.MinStrength, cfg.MinStrength)
	assert.Equal(t, d.MaxDailyRisk, cfg.MaxDailyRisk)
	assert.Equal(t, d.MinRiskReward, cfg.MinRiskReward)
}

func TestLoadRevertsOutOfRangeThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("min_strength: 150\nmin_risk_reward: -1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.MinStrength, cfg.MinStrength)
	assert.Equal(t, d.MinRiskReward, cfg.MinRiskReward)
}

func TestRegimeAllowed(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.RegimeAllowed("trend"))
	assert.True(t, cfg.RegimeAllowed("transition"))
	assert.False(t, cfg.RegimeAllowed("range"))
	assert.False(t, cfg.RegimeAllowed(""))

	cfg.AllowedRegimes = nil
	assert.False(t, cfg.RegimeAllowed("trend"))
}
