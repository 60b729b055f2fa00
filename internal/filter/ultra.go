// Package filter implements the five-stage signal quality gate. The filter
// is a pure function of the signal, the multi-timeframe analysis and the
// market context; it never mutates shared state.
package filter

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantflow/fxengine/config"
	"github.com/quantflow/fxengine/models"
)

// baselineWinRate is assumed when no history exists for the pattern.
const baselineWinRate = 0.70

var stageWeights = map[string]float64{
	models.StageBasicQuality: 1.0,
	models.StageMarketRegime: 1.1,
	models.StageConfluence:   1.2,
	models.StageRiskReward:   1.3,
	models.StageHistorical:   1.4,
}

// Context carries the market inputs the filter reads beside the signal.
type Context struct {
	Pair      models.PairInfo
	Analysis  *models.MultiTimeframeAnalysis
	Quote     *models.Quote
	News      *models.NewsSnapshot
	History   []models.HistoricalPattern
	Liquidity float64 // 0..100, zero means unknown
}

// UltraFilter gates raw signals through five weighted stages.
type UltraFilter struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// New creates the filter.
func New(cfg *config.Config) *UltraFilter {
	return &UltraFilter{
		cfg:    cfg,
		logger: log.With().Str("component", "ultra_filter").Logger(),
	}
}

// Check runs all five stages. Passing requires every stage to pass and the
// win probability to clear the configured minimum.
func (f *UltraFilter) Check(sig models.Signal, ctx Context) models.FilterResult {
	stages := []models.StageResult{
		f.stageBasicQuality(sig),
		f.stageMarketRegime(sig, ctx),
		f.stageConfluence(sig, ctx),
		f.stageRiskReward(sig, ctx),
		f.stageHistorical(sig, ctx),
	}

	var weighted, totalWeight float64
	var rejections []string
	allPassed := true

	winProb := (sig.Strength + sig.Confidence) / 200

	for _, st := range stages {
		w := stageWeights[st.Name]
		weighted += st.Score * w
		totalWeight += w
		if st.Passed {
			// Passing stages nudge the probability up with their quality.
			winProb *= 1 + (st.Score/100)*0.1
		} else {
			allPassed = false
			winProb *= 0.7
			rejections = append(rejections, st.Details...)
		}
	}
	winProb = math.Min(winProb, 0.98)

	confidence := 0.0
	if totalWeight > 0 {
		confidence = weighted / totalWeight
	}

	passed := allPassed && winProb >= f.cfg.MinWinProbability
	if allPassed && !passed {
		rejections = append(rejections, fmt.Sprintf("win probability %.2f below %.2f", winProb, f.cfg.MinWinProbability))
	}

	result := models.FilterResult{
		Stages:         stages,
		Passed:         passed,
		Confidence:     confidence,
		WinProbability: winProb,
		Recommendation: recommendation(winProb, confidence),
		Rejections:     rejections,
	}

	f.logger.Debug().Str("pair", sig.Pair).Bool("passed", passed).
		Float64("win_probability", winProb).Str("recommendation", result.Recommendation).
		Msg("ultra filter verdict")
	return result
}

func recommendation(winProb, confidence float64) string {
	switch {
	case winProb >= 0.90 && confidence >= 90:
		return models.RecommendationStrongBuy
	case winProb >= 0.85 && confidence >= 85:
		return models.RecommendationBuy
	case winProb >= 0.80 && confidence >= 75:
		return models.RecommendationConsider
	}
	return models.RecommendationReject
}

// Stage 1: six AND-ed basic quality checks.
func (f *UltraFilter) stageBasicQuality(sig models.Signal) models.StageResult {
	checks := []struct {
		ok     bool
		detail string
	}{
		{sig.Strength >= f.cfg.MinStrength, fmt.Sprintf("strength %.0f below %.0f", sig.Strength, f.cfg.MinStrength)},
		{sig.Confidence >= f.cfg.MinConfidence, fmt.Sprintf("confidence %.0f below %.0f", sig.Confidence, f.cfg.MinConfidence)},
		{sig.FinalScore >= f.cfg.MinFinalScore, fmt.Sprintf("final score %.0f below %.0f", sig.FinalScore, f.cfg.MinFinalScore)},
		{sig.Entry > 0, "entry level missing"},
		{sig.StopLoss > 0, "stop loss missing"},
		{sig.TakeProfit > 0, "take profit missing"},
	}

	var failed []string
	passedCount := 0
	for _, c := range checks {
		if c.ok {
			passedCount++
		} else {
			failed = append(failed, c.detail)
		}
	}

	return models.StageResult{
		Name:    models.StageBasicQuality,
		Passed:  len(failed) == 0,
		Score:   float64(passedCount) / float64(len(checks)) * 100,
		Details: failed,
	}
}

// Stage 2: regime allow-list, volatility band, trend strength, news conflict
// and liquidity.
func (f *UltraFilter) stageMarketRegime(sig models.Signal, ctx Context) models.StageResult {
	var failed []string
	passedCount := 0
	const total = 5

	m15 := ctx.Analysis.Get(models.TimeframeM15)
	if m15 == nil || m15.Fallback {
		return models.StageResult{
			Name:    models.StageMarketRegime,
			Passed:  false,
			Score:   0,
			Details: []string{"no M15 analysis for regime stage"},
		}
	}

	if f.cfg.RegimeAllowed(m15.Regime.State) {
		passedCount++
	} else {
		failed = append(failed, fmt.Sprintf("regime %q not allowed", m15.Regime.State))
	}

	if v := m15.Volatility.Score; v >= f.cfg.VolatilityMin && v <= f.cfg.VolatilityMax {
		passedCount++
	} else {
		failed = append(failed, fmt.Sprintf("volatility %.0f outside [%.0f, %.0f]", m15.Volatility.Score, f.cfg.VolatilityMin, f.cfg.VolatilityMax))
	}

	if m15.Regime.Confidence >= 60 {
		passedCount++
	} else {
		failed = append(failed, fmt.Sprintf("trend strength %.0f below 60", m15.Regime.Confidence))
	}

	if ctx.News == nil || !opposedNews(ctx.News, sig.Direction) {
		passedCount++
	} else {
		failed = append(failed, "news sentiment conflicts with signal")
	}

	liquidity := ctx.Liquidity
	if liquidity == 0 && ctx.Quote != nil {
		liquidity = ctx.Quote.LiquidityHint
	}
	if liquidity == 0 || liquidity >= 70 {
		passedCount++
	} else {
		failed = append(failed, fmt.Sprintf("liquidity %.0f below 70", liquidity))
	}

	return models.StageResult{
		Name:    models.StageMarketRegime,
		Passed:  len(failed) == 0,
		Score:   float64(passedCount) / total * 100,
		Details: failed,
	}
}

// Stage 3: seven independent technical confirmations, requiring the
// configured minimum count.
func (f *UltraFilter) stageConfluence(sig models.Signal, ctx Context) models.StageResult {
	m15 := ctx.Analysis.Get(models.TimeframeM15)
	if m15 == nil || m15.Fallback {
		return models.StageResult{
			Name:    models.StageConfluence,
			Passed:  false,
			Score:   0,
			Details: []string{"no M15 analysis for confluence stage"},
		}
	}
	ind := m15.Indicators
	price := ind.BBMiddle
	dir := sig.Direction

	hits := 0
	var confirmed []string
	confirm := func(ok bool, name string) {
		if ok {
			hits++
			confirmed = append(confirmed, name)
		}
	}

	// 1. Trend alignment across at least 3 timeframes.
	agree := 0
	for _, tf := range []models.Timeframe{models.TimeframeM15, models.TimeframeH1, models.TimeframeH4, models.TimeframeD1} {
		if ta := ctx.Analysis.Get(tf); ta != nil && !ta.Fallback && ta.Direction == dir {
			agree++
		}
	}
	confirm(agree >= 3, "trend alignment")

	// 2. Momentum.
	confirm((dir == models.DirectionBuy && ind.MACDHist > 0) ||
		(dir == models.DirectionSell && ind.MACDHist < 0), "momentum")

	// 3. Volume pressure.
	confirm((dir == models.DirectionBuy && m15.VolumePressure.State == "buying") ||
		(dir == models.DirectionSell && m15.VolumePressure.State == "selling"), "volume")

	// 4. Key-level proximity: Bollinger band in the signal's favor.
	confirm((dir == models.DirectionBuy && price > 0 && price <= ind.BBLower*1.002) ||
		(dir == models.DirectionSell && price > 0 && price >= ind.BBUpper*0.998), "key level")

	// 5. Moving-average alignment.
	confirm((dir == models.DirectionBuy && ind.EMA12 > ind.EMA26 && ind.SMA20 > ind.SMA50) ||
		(dir == models.DirectionSell && ind.EMA12 < ind.EMA26 && ind.SMA20 < ind.SMA50), "MA alignment")

	// 6. Oscillator alignment.
	confirm((dir == models.DirectionBuy && ind.RSI > 50 && ind.StochK > ind.StochD) ||
		(dir == models.DirectionSell && ind.RSI < 50 && ind.StochK < ind.StochD), "oscillators")

	// 7. Fibonacci proximity.
	confirm(nearFibLevel(price, ind.Fibonacci), "fibonacci")

	passed := hits >= f.cfg.MinConfluenceHits
	var details []string
	if !passed {
		details = append(details, fmt.Sprintf("confluence %d of 7 below minimum %d", hits, f.cfg.MinConfluenceHits))
	} else {
		details = confirmed
	}

	return models.StageResult{
		Name:    models.StageConfluence,
		Passed:  passed,
		Score:   float64(hits) / 7 * 100,
		Details: details,
	}
}

// Stage 4: risk-reward geometry and Kelly sanity.
func (f *UltraFilter) stageRiskReward(sig models.Signal, ctx Context) models.StageResult {
	if !sig.HasLevels() {
		return models.StageResult{
			Name:    models.StageRiskReward,
			Passed:  false,
			Score:   0,
			Details: []string{"levels missing for risk-reward stage"},
		}
	}

	pip := ctx.Pair.Pip()
	stopPips := math.Abs(sig.Entry-sig.StopLoss) / pip
	targetPips := math.Abs(sig.TakeProfit-sig.Entry) / pip
	rr := 0.0
	if stopPips > 0 {
		rr = targetPips / stopPips
	}

	winProb := (sig.Strength + sig.Confidence) / 200
	expectedValue := winProb*rr - (1 - winProb)
	// Quarter-Kelly: the sanity band is on the fraction actually staked,
	// not the raw criterion output.
	kelly := 0.0
	if rr > 0 {
		kelly = (winProb*(rr+1) - 1) / rr * 0.25
	}

	var failed []string
	passedCount := 0
	const total = 5

	check := func(ok bool, detail string) {
		if ok {
			passedCount++
		} else {
			failed = append(failed, detail)
		}
	}
	check(rr >= f.cfg.MinRiskReward, fmt.Sprintf("risk-reward %.2f below %.2f", rr, f.cfg.MinRiskReward))
	check(expectedValue > 0, fmt.Sprintf("expected value %.2f not positive", expectedValue))
	check(kelly > 0.01 && kelly < 0.25, fmt.Sprintf("kelly %.3f outside (0.01, 0.25)", kelly))
	check(stopPips >= 15 && stopPips <= 50, fmt.Sprintf("stop %.1f pips outside [15, 50]", stopPips))
	check(targetPips >= 25 && targetPips <= 150, fmt.Sprintf("target %.1f pips outside [25, 150]", targetPips))

	return models.StageResult{
		Name:    models.StageRiskReward,
		Passed:  len(failed) == 0,
		Score:   float64(passedCount) / total * 100,
		Details: failed,
	}
}

// Stage 5: historical validation against similar past patterns. With no
// history the baseline win rate applies and the stage passes.
func (f *UltraFilter) stageHistorical(sig models.Signal, ctx Context) models.StageResult {
	stats := SimilarPatternStats(sig, ctx.History)

	if stats.Count == 0 {
		return models.StageResult{
			Name:    models.StageHistorical,
			Passed:  true,
			Score:   baselineWinRate * 100,
			Details: []string{"no history, baseline win rate assumed"},
		}
	}

	passed := stats.WinRate >= 0.55 && stats.Score >= 0.5
	var details []string
	if !passed {
		details = append(details, fmt.Sprintf("historical win rate %.2f over %d samples too weak", stats.WinRate, stats.Count))
	}

	return models.StageResult{
		Name:    models.StageHistorical,
		Passed:  passed,
		Score:   clampF(stats.WinRate*70+stats.Score*30, 0, 100),
		Details: details,
	}
}

// SimilarPatternStats blends similarity over same-pair same-direction
// history: strength delta, confidence delta and time-of-day proximity.
// Empty history yields the documented 0.70 defaults.
func SimilarPatternStats(sig models.Signal, history []models.HistoricalPattern) models.PatternStats {
	var count, wins int
	var similarity float64

	hour := sig.Time.UTC().Hour()
	for _, p := range history {
		if p.Pair != sig.Pair || p.Direction != sig.Direction {
			continue
		}
		count++
		if p.Won {
			wins++
		}

		strengthSim := 1 - math.Min(1, math.Abs(p.Strength-sig.Strength)/50)
		confSim := 1 - math.Min(1, math.Abs(p.Confidence-sig.Confidence)/50)
		hourDist := math.Abs(float64(p.HourOfDay - hour))
		if hourDist > 12 {
			hourDist = 24 - hourDist
		}
		timeSim := 1 - hourDist/12
		similarity += 0.4*strengthSim + 0.4*confSim + 0.2*timeSim
	}

	if count == 0 {
		return models.PatternStats{Score: 0.70, Count: 0, WinRate: baselineWinRate}
	}
	return models.PatternStats{
		Score:   similarity / float64(count),
		Count:   count,
		WinRate: float64(wins) / float64(count),
	}
}

func opposedNews(news *models.NewsSnapshot, dir models.Direction) bool {
	if news.Direction == models.DirectionNeutral || dir == models.DirectionNeutral {
		return false
	}
	return news.Direction != dir && news.Confidence >= 50
}

func nearFibLevel(price float64, fib models.Fibonacci) bool {
	if price == 0 || len(fib.Levels) == 0 {
		return false
	}
	tolerance := price * 0.0015
	for _, level := range fib.Levels {
		if math.Abs(price-level) <= tolerance {
			return true
		}
	}
	return false
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
