package layers

import (
	"fmt"
	"time"

	"github.com/quantflow/fxengine/models"
)

// layerNews (L6) reads the collaborator news snapshot. High-impact upcoming
// events degrade confidence even when sentiment agrees with the signal.
func (b *Builder) layerNews(s *Scenario) models.Layer {
	if s.News == nil {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Confidence:   30,
			Score:        50,
			Availability: models.AvailabilityBestEffort,
			Summary:      "no news data, assuming quiet tape",
			SummaryLocal: "нет новостных данных, предполагается спокойный фон",
			Metrics:      models.NewsMetrics{Direction: models.DirectionNeutral},
		}
	}

	n := *s.News
	metrics := models.NewsMetrics{
		Direction:      n.Direction,
		Impact:         n.Impact,
		UpcomingEvents: len(n.UpcomingEvents),
	}

	score := 50.0
	var warnings []string

	if n.Direction == s.Signal.Direction && n.Direction != models.DirectionNeutral {
		score += clampF(n.Confidence, 0, 100) * 0.3
	} else if opposed(n.Direction, s.Signal.Direction) {
		score -= clampF(n.Confidence, 0, 100) * 0.4
		warnings = append(warnings, "news sentiment opposes signal direction")
	}

	if n.Impact >= 7 {
		score -= 25
		warnings = append(warnings, fmt.Sprintf("high-impact news risk: %.0f/10", n.Impact))
	} else if n.Impact >= 4 {
		score -= 10
	}
	if len(n.UpcomingEvents) > 0 {
		warnings = append(warnings, fmt.Sprintf("%d upcoming events", len(n.UpcomingEvents)))
	}

	score = clampF(score, 0, 100)

	return models.Layer{
		Direction:  n.Direction,
		Confidence: int(clampF(n.Confidence, 0, 100)),
		Score:      score,
		Warnings:   warnings,
		Metrics:    metrics,
	}
}

// layerMacro (L7) turns the macro differential into a directional vote.
// Positive differential favors the base currency, so a positive value backs
// BUY on the pair.
func (b *Builder) layerMacro(s *Scenario) models.Layer {
	if s.Economic == nil {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Confidence:   25,
			Score:        50,
			Availability: models.AvailabilityBestEffort,
			Summary:      "no macro snapshot",
			SummaryLocal: "нет макроэкономических данных",
			Metrics:      models.MacroMetrics{},
		}
	}

	e := *s.Economic
	dir := models.DirectionNeutral
	if e.Differential > 1 {
		dir = models.DirectionBuy
	} else if e.Differential < -1 {
		dir = models.DirectionSell
	}

	score := clampF(50+e.Differential*4, 0, 100)

	return models.Layer{
		Direction:  dir,
		Confidence: int(clampF(e.Confidence, 0, 100)),
		Score:      score,
		Metrics:    models.MacroMetrics{Differential: e.Differential, Confidence: e.Confidence},
	}
}

// layerSession (L8) is the only layer that reads the wall clock. Sessions are
// graded by typical forex liquidity: the London/New York overlap scores
// highest, the weekend and the dead Asia close score lowest.
func (b *Builder) layerSession(s *Scenario) models.Layer {
	now := s.now().UTC()
	hour := now.Hour()
	weekday := now.Weekday()

	session := "off"
	score := 30.0
	switch {
	case weekday == time.Saturday || weekday == time.Sunday:
		session = "off"
		score = 5
	case hour >= 12 && hour < 16:
		session = "overlap"
		score = 90
	case hour >= 7 && hour < 12:
		session = "london"
		score = 75
	case hour >= 16 && hour < 21:
		session = "newyork"
		score = 70
	case hour >= 0 && hour < 7:
		session = "asia"
		score = 45
	}

	active := score >= 60
	var warnings []string
	if !active {
		warnings = append(warnings, "outside primary trading hours")
	}
	if weekday == time.Friday && hour >= 19 {
		score -= 15
		warnings = append(warnings, "late Friday, weekend gap risk")
	}

	return models.Layer{
		Direction:  models.DirectionNeutral,
		Confidence: int(clampF(score, 0, 100)),
		Score:      clampF(score, 0, 100),
		Summary:    "session: " + session,
		SummaryLocal: "сессия: " + session,
		Warnings:   warnings,
		Metrics: models.SessionMetrics{
			Session:     session,
			HourUTC:     hour,
			Weekday:     weekday.String(),
			ActiveHours: active,
		},
	}
}

// layerMemoryStrength (L9) is a dual-concept layer: recently observed
// liquidity events for the pair, plus relative strength from the macro
// differential. Tag weights: sweep 30, rejection 30, volume_spike 25,
// anything else 15.
func (b *Builder) layerMemoryStrength(s *Scenario) models.Layer {
	metrics := models.MemoryStrengthMetrics{RelativeBias: models.DirectionNeutral}
	availability := models.AvailabilityAvailable
	var evidence []string

	memory := 0.0
	if s.Memory == nil || len(s.Memory.Tags) == 0 {
		availability = models.AvailabilityPartial
	} else {
		for _, tag := range s.Memory.Tags {
			switch tag {
			case "sweep":
				memory += 30
			case "rejection":
				memory += 30
			case "volume_spike":
				memory += 25
			default:
				memory += 15
			}
			evidence = append(evidence, "memory: "+tag)
		}
		metrics.MemoryTags = s.Memory.Tags
	}
	memory = clampF(memory, 0, 100)
	metrics.MemoryScore = memory

	if s.Economic != nil {
		metrics.MacroDiff = s.Economic.Differential
		if s.Economic.Differential > 5 {
			metrics.RelativeBias = models.DirectionBuy
		} else if s.Economic.Differential < -5 {
			metrics.RelativeBias = models.DirectionSell
		}
	} else if availability == models.AvailabilityPartial {
		availability = models.AvailabilityBestEffort
	}

	score := clampF(0.6*memory+0.4*clampF(50+metrics.MacroDiff*4, 0, 100), 0, 100)

	return models.Layer{
		Direction:    metrics.RelativeBias,
		Confidence:   int(score * 0.85),
		Score:        score,
		Availability: availability,
		Evidence:     evidence,
		Metrics:      metrics,
	}
}
