// Package pipeline orchestrates one full evaluation: candles in, analysis,
// 18 layers, decision, risk sizing, filter verdict and enhanced signal out.
package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantflow/fxengine/config"
	"github.com/quantflow/fxengine/internal/enhancer"
	"github.com/quantflow/fxengine/internal/filter"
	"github.com/quantflow/fxengine/internal/layers"
	"github.com/quantflow/fxengine/internal/risk"
	"github.com/quantflow/fxengine/internal/technical"
	"github.com/quantflow/fxengine/models"
)

// CandleSource supplies candle series per timeframe. Failed timeframes map
// to nil slices; the analyzer degrades them.
type CandleSource interface {
	GetAllTimeframes(ctx context.Context, symbol string, tfs []models.Timeframe, count int) map[models.Timeframe][]models.Candle
}

// Snapshots carries the optional collaborator inputs for one evaluation.
type Snapshots struct {
	Quote       *models.Quote
	News        *models.NewsSnapshot
	Economic    *models.EconomicSnapshot
	Intermarket *models.IntermarketSnapshot
	Memory      *models.MarketMemory
	VaR         *models.VaRSnapshot
	History     []models.HistoricalPattern
	Equity      float64
}

// Result is the full output of one evaluation.
type Result struct {
	Pair     string                         `json:"pair"`
	Signal   models.Signal                  `json:"signal"`
	Analysis *models.MultiTimeframeAnalysis `json:"analysis"`
	Layers   []models.Layer                 `json:"layers"`
	Decision models.Decision                `json:"decision"`
	Risk     *models.RiskAssessment         `json:"risk,omitempty"`
	Filter   models.FilterResult            `json:"filter"`
	Enhanced models.EnhancedSignal          `json:"enhanced"`
}

// Pipeline runs evaluations. Safe for concurrent use across pairs.
type Pipeline struct {
	cfg      *config.Config
	source   CandleSource
	analyzer *technical.Analyzer
	builder  *layers.Builder
	risk     *risk.Engine
	filter   *filter.UltraFilter
	enhancer *enhancer.Enhancer
	logger   zerolog.Logger
}

// New wires a pipeline from its components.
func New(cfg *config.Config, source CandleSource, riskEngine *risk.Engine) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		source:   source,
		analyzer: technical.NewAnalyzer(cfg),
		builder:  layers.NewBuilder(cfg),
		risk:     riskEngine,
		filter:   filter.New(cfg),
		enhancer: enhancer.New(cfg),
		logger:   log.With().Str("component", "pipeline").Logger(),
	}
}

// Timeframes parses the configured timeframe list, skipping invalid entries.
func (p *Pipeline) Timeframes() []models.Timeframe {
	out := make([]models.Timeframe, 0, len(p.cfg.Timeframes))
	for _, s := range p.cfg.Timeframes {
		tf, err := models.ParseTimeframe(s)
		if err != nil {
			p.logger.Warn().Str("timeframe", s).Msg("skipping unsupported timeframe")
			continue
		}
		out = append(out, tf)
	}
	return out
}

// Evaluate runs the full sequence for one pair. Risk sizing runs only when
// the decision is ENTER; filter and enhancer always run on the raw signal.
func (p *Pipeline) Evaluate(ctx context.Context, pair models.PairInfo, snaps Snapshots) (*Result, error) {
	tfs := p.Timeframes()
	candlesByTF := p.source.GetAllTimeframes(ctx, pair.Symbol, tfs, p.cfg.CandleCount)

	analysis := p.analyzer.Analyze(pair.Symbol, candlesByTF)
	signal := p.deriveSignal(pair, analysis, candlesByTF)

	builtLayers, decision := p.builder.Build(&layers.Scenario{
		Pair:        pair,
		Signal:      signal,
		Quote:       snaps.Quote,
		Analysis:    analysis,
		News:        snaps.News,
		Economic:    snaps.Economic,
		Intermarket: snaps.Intermarket,
		Memory:      snaps.Memory,
	})

	result := &Result{
		Pair:     pair.Symbol,
		Signal:   signal,
		Analysis: analysis,
		Layers:   builtLayers,
		Decision: decision,
	}

	filterCtx := filter.Context{
		Pair:     pair,
		Analysis: analysis,
		Quote:    snaps.Quote,
		News:     snaps.News,
		History:  snaps.History,
	}
	result.Filter = p.filter.Check(signal, filterCtx)
	result.Enhanced = p.enhancer.Enhance(signal, enhancer.Input{
		Pair:     pair,
		Analysis: analysis,
		Quote:    snaps.Quote,
		History:  snaps.History,
	})

	if decision.State == models.DecisionEnter {
		assessment := p.risk.Assess(risk.Candidate{
			Pair:           pair,
			Direction:      signal.Direction,
			Entry:          signal.Entry,
			StopLoss:       signal.StopLoss,
			TakeProfit:     signal.TakeProfit,
			WinProbability: result.Filter.WinProbability,
			ATR:            atrFor(analysis),
			Volatility:     volatilityFor(analysis),
			Equity:         snaps.Equity,
			VaR:            snaps.VaR,
		})
		result.Risk = &assessment
	}

	p.logger.Info().Str("pair", pair.Symbol).Str("state", string(decision.State)).
		Float64("score", decision.Score).Str("rating", result.Enhanced.Rating).
		Msg("evaluation complete")
	return result, nil
}

// deriveSignal turns the fused analysis into a raw trade idea with ATR-based
// levels at a 1.5x stop and 2.5x reward multiple.
func (p *Pipeline) deriveSignal(pair models.PairInfo, analysis *models.MultiTimeframeAnalysis, candlesByTF map[models.Timeframe][]models.Candle) models.Signal {
	sig := models.Signal{
		Pair:      pair.Symbol,
		Direction: analysis.Direction,
		Strength:  math.Abs(analysis.Score),
		State:     string(models.DecisionWait),
		Valid:     true,
		Time:      time.Now().UTC(),
	}

	// Confidence: fusion-weighted regime confidence over usable timeframes.
	var conf, weight float64
	for tf, ta := range analysis.ByTimeframe {
		if ta == nil || ta.Fallback {
			continue
		}
		w := tf.FusionWeight()
		conf += ta.Regime.Confidence * w
		weight += w
	}
	if weight > 0 {
		sig.Confidence = conf / weight
	}
	sig.FinalScore = 0.6*sig.Strength + 0.4*sig.Confidence

	m15 := analysis.Get(models.TimeframeM15)
	candles := candlesByTF[models.TimeframeM15]
	if m15 == nil || m15.Fallback || len(candles) == 0 || sig.Direction == models.DirectionNeutral {
		return sig
	}

	entry := candles[len(candles)-1].Close
	atr := m15.Indicators.ATR
	if entry <= 0 || atr <= 0 {
		return sig
	}

	dirSign := 1.0
	if sig.Direction == models.DirectionSell {
		dirSign = -1
	}
	sig.Entry = entry
	sig.StopLoss = entry - dirSign*1.5*atr
	sig.TakeProfit = entry + dirSign*2.5*1.5*atr
	sig.RiskReward = 2.5
	// A directional idea with complete levels is itself entry-grade; the
	// layered gate still has the final word.
	sig.State = string(models.DecisionEnter)
	return sig
}

func atrFor(analysis *models.MultiTimeframeAnalysis) float64 {
	if m15 := analysis.Get(models.TimeframeM15); m15 != nil {
		return m15.Indicators.ATR
	}
	return 0
}

func volatilityFor(analysis *models.MultiTimeframeAnalysis) models.VolatilityInfo {
	if m15 := analysis.Get(models.TimeframeM15); m15 != nil {
		return m15.Volatility
	}
	return models.VolatilityInfo{State: "normal"}
}
