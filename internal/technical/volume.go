package technical

import (
	"math"

	"github.com/quantflow/fxengine/models"
)

const volumeWindow = 20

// AnalyzeVolumePressure measures buying-vs-selling volume over the trailing
// window. When the feed has no volume, the candle range stands in for it.
func AnalyzeVolumePressure(candles []models.Candle) models.VolumePressure {
	if len(candles) < 3 {
		return models.VolumePressure{State: "neutral"}
	}

	window := candles
	if len(window) > volumeWindow {
		window = window[len(window)-volumeWindow:]
	}

	hasVolume := false
	for _, c := range window {
		if c.Volume > 0 {
			hasVolume = true
			break
		}
	}

	weight := func(c models.Candle) float64 {
		if hasVolume {
			return float64(c.Volume)
		}
		return c.Range()
	}

	var up, down float64
	values := make([]float64, 0, len(window))
	for _, c := range window {
		w := weight(c)
		values = append(values, w)
		if c.Bullish() {
			up += w
		} else if c.Close < c.Open {
			down += w
		}
	}

	imbalance := 0.0
	if up+down > 0 {
		imbalance = (up - down) / (up + down) * 100
	}

	state := "neutral"
	if imbalance > 20 {
		state = "buying"
	} else if imbalance < -20 {
		state = "selling"
	}

	// Z-score of the latest bar's volume against the window.
	mean := average(values)
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(len(values)))
	z := 0.0
	if std > 0 {
		z = (values[len(values)-1] - mean) / std
	}

	return models.VolumePressure{State: state, Imbalance: imbalance, ZScore: z}
}
