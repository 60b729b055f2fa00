// Package layers builds the 18-layer analytical decision for one signal.
// Every layer shares the same envelope; a panic inside any single layer is
// converted into a degraded layer so the remaining 17 still complete.
package layers

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantflow/fxengine/config"
	"github.com/quantflow/fxengine/models"
)

// Scenario is the full input of one evaluation. Collaborator snapshots are
// optional; absent ones degrade the corresponding layers to missing/partial.
type Scenario struct {
	Pair        models.PairInfo
	Signal      models.Signal
	Quote       *models.Quote
	Analysis    *models.MultiTimeframeAnalysis
	News        *models.NewsSnapshot
	Economic    *models.EconomicSnapshot
	Intermarket *models.IntermarketSnapshot
	Memory      *models.MarketMemory
	Now         time.Time
}

func (s *Scenario) now() time.Time {
	if s.Now.IsZero() {
		return time.Now().UTC()
	}
	return s.Now
}

func (s *Scenario) analysisFor(tf models.Timeframe) *models.TimeframeAnalysis {
	return s.Analysis.Get(tf)
}

// Builder assembles the 18 layers and derives the decision. Stateless and
// safe for concurrent use.
type Builder struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewBuilder creates a layer builder.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		cfg:    cfg,
		logger: log.With().Str("component", "layer_builder").Logger(),
	}
}

type layerSpec struct {
	index     int
	name      string
	nameLocal string
	build     func(*Scenario) models.Layer
}

func (b *Builder) specs() []layerSpec {
	return []layerSpec{
		{1, "Raw Data Quality", "Качество исходных данных", b.layerRawData},
		{2, "Candle Phase", "Фаза свечей", b.layerCandlePhase},
		{3, "Market Structure", "Структура рынка", b.layerStructure},
		{4, "Momentum Quality", "Качество импульса", b.layerMomentum},
		{5, "Liquidity & Smart Money", "Ликвидность и умные деньги", b.layerSMC},
		{6, "News & Sentiment", "Новости и настроение", b.layerNews},
		{7, "Macro Differential", "Макроэкономический дифференциал", b.layerMacro},
		{8, "Session & Timing", "Сессия и тайминг", b.layerSession},
		{9, "Memory & Relative Strength", "Память рынка и относительная сила", b.layerMemoryStrength},
		{10, "Liquidity Defense & Intermarket", "Защита ликвидности и межрыночный анализ", b.layerLiquidityDefense},
		{11, "Volatility Regime", "Режим волатильности", b.layerVolatilityRegime},
		{12, "Divergence & Extremes", "Дивергенции и экстремумы", b.layerDivergence},
		{13, "Multi-Timeframe Alignment", "Согласованность таймфреймов", b.layerAlignment},
		{14, "Risk Environment", "Рисковая среда", b.layerRiskEnvironment},
		{15, "Statistical Trend Quality", "Статистическое качество тренда", b.layerTrendStats},
	}
}

// Build produces exactly 18 layers and the derived decision. Layers 16-18 are
// built last because they aggregate the other fifteen.
func (b *Builder) Build(s *Scenario) ([]models.Layer, models.Decision) {
	layers := make([]models.Layer, 0, 18)
	for _, spec := range b.specs() {
		layers = append(layers, b.safeLayer(spec, s))
	}

	l16 := b.safeLayer(layerSpec{16, "Validation Guard", "Контроль валидности", func(s *Scenario) models.Layer {
		return b.layerValidation(s)
	}}, s)
	layers = append(layers, l16)

	l17 := b.safeLayer(layerSpec{17, "Confluence", "Конфлюэнс", func(s *Scenario) models.Layer {
		return b.layerConfluence(s, layers)
	}}, s)
	layers = append(layers, l17)

	l18 := b.safeLayer(layerSpec{18, "Decision", "Решение", func(s *Scenario) models.Layer {
		return b.layerDecision(s, layers)
	}}, s)
	layers = append(layers, l18)

	return layers, b.deriveDecision(s, layers)
}

// safeLayer converts a panic inside one layer into a degraded layer so the
// rest of the evaluation completes.
func (b *Builder) safeLayer(spec layerSpec, s *Scenario) (layer models.Layer) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Int("layer", spec.index).Interface("panic", r).
				Msg("layer computation failed, emitting degraded layer")
			layer = b.degraded(spec, fmt.Sprintf("computation failed: %v", r))
		}
	}()

	layer = spec.build(s)
	layer.Index = spec.index
	layer.Name = spec.name
	layer.NameLocal = spec.nameLocal
	layer.Confidence = clampConfidence(layer.Confidence)
	if layer.Availability == "" {
		layer.Availability = models.AvailabilityAvailable
	}
	return layer
}

func (b *Builder) degraded(spec layerSpec, reason string) models.Layer {
	return models.Layer{
		Index:        spec.index,
		Name:         spec.name,
		NameLocal:    spec.nameLocal,
		Direction:    models.DirectionNeutral,
		Confidence:   0,
		Availability: models.AvailabilityMissing,
		Warnings:     []string{reason},
	}
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func findLayer(layers []models.Layer, index int) *models.Layer {
	for i := range layers {
		if layers[i].Index == index {
			return &layers[i]
		}
	}
	return nil
}
