package technical

import (
	"math"

	"github.com/quantflow/fxengine/models"
)

const (
	volatileReturnFactor = 1.8
	calmReturnFactor     = 0.5
	volClusterWindow     = 40
)

// AnalyzeVolatility tags bars as volatile/calm/normal against the mean
// absolute return, merges contiguous runs into clusters and grades the
// overall volatility state.
func AnalyzeVolatility(candles []models.Candle) models.VolatilityInfo {
	if len(candles) < 3 {
		return models.VolatilityInfo{State: "normal", Score: 25}
	}

	window := candles
	if len(window) > volClusterWindow {
		window = window[len(window)-volClusterWindow:]
	}

	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		if window[i-1].Close == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, window[i].Close/window[i-1].Close-1)
	}

	var meanAbs float64
	for _, r := range returns {
		meanAbs += math.Abs(r)
	}
	meanAbs /= float64(len(returns))

	tags := make([]string, len(returns))
	for i, r := range returns {
		abs := math.Abs(r)
		switch {
		case meanAbs > 0 && abs > meanAbs*volatileReturnFactor:
			tags[i] = "volatile"
		case meanAbs > 0 && abs < meanAbs*calmReturnFactor:
			tags[i] = "calm"
		default:
			tags[i] = "normal"
		}
	}

	clusters := mergeClusters(tags)

	// Score from annualization-free return dispersion: std of returns as a
	// fraction of price, scaled onto 0..100.
	var variance float64
	mean := average(returns)
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)))
	score := clamp(std*100*400, 0, 100)

	state := "normal"
	switch {
	case score >= 80:
		state = "extreme"
	case score >= 55:
		state = "high"
	case score < 22:
		state = "calm"
	}

	return models.VolatilityInfo{State: state, Score: score, Clusters: clusters}
}

func mergeClusters(tags []string) []models.VolatilityCluster {
	var clusters []models.VolatilityCluster
	for i := 0; i < len(tags); {
		j := i
		for j+1 < len(tags) && tags[j+1] == tags[i] {
			j++
		}
		clusters = append(clusters, models.VolatilityCluster{Start: i, End: j, State: tags[i]})
		i = j + 1
	}
	return clusters
}
