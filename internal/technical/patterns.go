package technical

import (
	"github.com/quantflow/fxengine/models"
)

// DetectPatterns runs every candlestick detector over the tail of the series.
// Detectors are pure body/shadow ratio heuristics over immutable candles.
func DetectPatterns(candles []models.Candle) []models.CandlePattern {
	if len(candles) < 2 {
		return nil
	}

	var out []models.CandlePattern
	add := func(name string, dir models.Direction, strength float64) {
		out = append(out, models.CandlePattern{Name: name, Direction: dir, Strength: strength})
	}

	last := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	body := last.Body()
	rng := last.Range()

	// Single-candle formations
	if rng > 0 && body < 0.1*rng {
		add("DOJI", models.DirectionNeutral, 40)
	}
	if body > 0 && last.LowerShadow() > 2*body && last.UpperShadow() < 0.5*body {
		add("HAMMER", models.DirectionBuy, 65)
	}
	if body > 0 && last.UpperShadow() > 2*body && last.LowerShadow() < 0.5*body {
		add("SHOOTING_STAR", models.DirectionSell, 65)
	}

	// Two-candle formations
	if last.Bullish() && !prev.Bullish() &&
		last.Open < prev.Close && last.Close > prev.Open &&
		body > prev.Body()*1.2 {
		add("BULLISH_ENGULFING", models.DirectionBuy, 75)
	}
	if !last.Bullish() && prev.Bullish() &&
		last.Open > prev.Close && last.Close < prev.Open &&
		body > prev.Body()*1.2 {
		add("BEARISH_ENGULFING", models.DirectionSell, 75)
	}

	if prev.Body() > 0 && body < prev.Body()*0.6 && insideBody(last, prev) {
		if last.Bullish() != prev.Bullish() {
			dir := models.DirectionBuy
			if prev.Bullish() {
				dir = models.DirectionSell
			}
			add("HARAMI", dir, 50)
		}
	}

	if !prev.Bullish() && last.Bullish() &&
		last.Open < prev.Close && last.Close > midpoint(prev) && last.Close < prev.Open {
		add("PIERCING", models.DirectionBuy, 60)
	}
	if prev.Bullish() && !last.Bullish() &&
		last.Open > prev.Close && last.Close < midpoint(prev) && last.Close > prev.Open {
		add("DARK_CLOUD", models.DirectionSell, 60)
	}

	// Three-candle formations
	if len(candles) >= 3 {
		c1 := candles[len(candles)-3]
		avgBody := (c1.Body() + prev.Body() + body) / 3

		if !c1.Bullish() && c1.Body() > avgBody &&
			prev.Body() < avgBody*0.3 &&
			last.Bullish() && body > avgBody &&
			last.Close > c1.Open-(c1.Open-c1.Close)/2 {
			add("MORNING_STAR", models.DirectionBuy, 80)
		}
		if c1.Bullish() && c1.Body() > avgBody &&
			prev.Body() < avgBody*0.3 &&
			!last.Bullish() && body > avgBody &&
			last.Close < c1.Open+(c1.Close-c1.Open)/2 {
			add("EVENING_STAR", models.DirectionSell, 80)
		}

		if c1.Bullish() && prev.Bullish() && last.Bullish() &&
			prev.Close > c1.Close && last.Close > prev.Close {
			add("THREE_WHITE_SOLDIERS", models.DirectionBuy, 85)
		}
		if !c1.Bullish() && !prev.Bullish() && !last.Bullish() &&
			prev.Close < c1.Close && last.Close < prev.Close {
			add("THREE_BLACK_CROWS", models.DirectionSell, 85)
		}
	}

	return out
}

func insideBody(inner, outer models.Candle) bool {
	hi, lo := outer.Open, outer.Close
	if lo > hi {
		hi, lo = lo, hi
	}
	ihi, ilo := inner.Open, inner.Close
	if ilo > ihi {
		ihi, ilo = ilo, ihi
	}
	return ihi <= hi && ilo >= lo
}

func midpoint(c models.Candle) float64 {
	return (c.Open + c.Close) / 2
}

// patternScore sums the signed pattern strengths for the composite score.
// Each pattern contributes strength/5 in its direction.
func patternScore(patterns []models.CandlePattern) float64 {
	var score float64
	for _, p := range patterns {
		switch p.Direction {
		case models.DirectionBuy:
			score += p.Strength / 5
		case models.DirectionSell:
			score -= p.Strength / 5
		}
	}
	return score
}
