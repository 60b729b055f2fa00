package layers

import (
	"fmt"
	"math"

	"github.com/quantflow/fxengine/models"
)

// layerValidation (L16) runs basic sanity checks on the input signal. An
// invalid signal collapses the layer to NEUTRAL with high confidence in the
// rejection; the failed check ids land in the evidence.
func (b *Builder) layerValidation(s *Scenario) models.Layer {
	var failed []string

	sig := s.Signal
	if sig.Direction != models.DirectionBuy && sig.Direction != models.DirectionSell && sig.Direction != models.DirectionNeutral {
		failed = append(failed, "direction_unknown")
	}
	if sig.Strength < 0 || sig.Strength > 100 {
		failed = append(failed, "strength_range")
	}
	if sig.Confidence < 0 || sig.Confidence > 100 {
		failed = append(failed, "confidence_range")
	}
	if sig.FinalScore < 0 || sig.FinalScore > 100 {
		failed = append(failed, "final_score_range")
	}
	if math.IsNaN(sig.Strength) || math.IsNaN(sig.Confidence) || math.IsNaN(sig.FinalScore) {
		failed = append(failed, "non_finite_values")
	}
	if sig.HasLevels() {
		if sig.Direction == models.DirectionBuy && (sig.StopLoss >= sig.Entry || sig.TakeProfit <= sig.Entry) {
			failed = append(failed, "levels_inverted")
		}
		if sig.Direction == models.DirectionSell && (sig.StopLoss <= sig.Entry || sig.TakeProfit >= sig.Entry) {
			failed = append(failed, "levels_inverted")
		}
	}
	if !sig.Valid {
		failed = append(failed, "signal_flagged_invalid")
	}

	valid := len(failed) == 0
	metrics := models.ValidationMetrics{Valid: valid, FailedChecks: failed}

	if !valid {
		return models.Layer{
			Direction:  models.DirectionNeutral,
			Confidence: 95,
			Score:      0,
			Summary:    "signal failed validation",
			SummaryLocal: "сигнал не прошёл валидацию",
			Evidence:   failed,
			Metrics:    metrics,
		}
	}

	return models.Layer{
		Direction:  sig.Direction,
		Confidence: 90,
		Score:      100,
		Summary:    "signal passed validation",
		SummaryLocal: "сигнал прошёл валидацию",
		Metrics:    metrics,
	}
}

// confluence factor layer indexes: structure, momentum, SMC, alignment and
// trend statistics vote; the rest inform but do not vote.
var confluenceVoters = []int{3, 4, 5, 13, 15}

// layerConfluence (L17) takes the majority vote across five factor layers.
// Alignment treats a quarter of the neutral votes as soft agreement. An
// opposing higher-timeframe structure is recorded as a hard block.
func (b *Builder) layerConfluence(s *Scenario, built []models.Layer) models.Layer {
	metrics := models.ConfluenceMetrics{MinScore: 100}

	var weighted, totalWeight float64
	for _, idx := range confluenceVoters {
		l := findLayer(built, idx)
		if l == nil || l.Availability == models.AvailabilityMissing {
			continue
		}
		switch l.Direction {
		case models.DirectionBuy:
			metrics.BuyVotes++
		case models.DirectionSell:
			metrics.SellVotes++
		default:
			metrics.NeutralVotes++
		}
		if l.Score < metrics.MinScore {
			metrics.MinScore = l.Score
		}
		w := float64(l.Confidence) / 100
		weighted += l.Score * w
		totalWeight += w
	}

	total := metrics.BuyVotes + metrics.SellVotes + metrics.NeutralVotes
	if total == 0 {
		return models.Layer{
			Direction:    models.DirectionNeutral,
			Availability: models.AvailabilityMissing,
			Warnings:     []string{"no voting layers available"},
			Metrics:      metrics,
		}
	}

	majority := metrics.BuyVotes
	dir := models.DirectionBuy
	if metrics.SellVotes > metrics.BuyVotes {
		majority = metrics.SellVotes
		dir = models.DirectionSell
	} else if metrics.SellVotes == metrics.BuyVotes {
		dir = models.DirectionNeutral
	}

	metrics.Alignment = (float64(majority) + 0.25*float64(metrics.NeutralVotes)) / float64(total) * 100
	if totalWeight > 0 {
		metrics.Weighted = weighted / totalWeight
	}

	for _, l := range built {
		if l.Availability == models.AvailabilityMissing {
			metrics.HardFails++
		}
	}

	var warnings []string
	if structure := findLayer(built, 3); structure != nil {
		if sm, ok := structure.Metrics.(models.StructureMetrics); ok && sm.HTFConflict {
			metrics.HTFBlock = true
			warnings = append(warnings, "higher-timeframe structure blocks entry")
		}
	}

	return models.Layer{
		Direction:  dir,
		Confidence: int(metrics.Alignment),
		Score:      metrics.Weighted,
		Warnings:   warnings,
		Metrics:    metrics,
	}
}

// layerDecision (L18) applies adaptive-confidence penalties to the signal
// confidence: RSI extreme -18, wide spread -15, weak momentum -12, poor
// timing -10, and -4 per degraded layer capped at 25.
func (b *Builder) layerDecision(s *Scenario, built []models.Layer) models.Layer {
	base := int(clampF(s.Signal.Confidence, 0, 100))
	adaptive := base

	var warnings []string

	if div := findLayer(built, 12); div != nil {
		if dm, ok := div.Metrics.(models.DivergenceMetrics); ok && dm.RSIExtreme {
			adaptive -= 18
			warnings = append(warnings, "RSI extreme penalty")
		}
	}
	if raw := findLayer(built, 1); raw != nil {
		if rm, ok := raw.Metrics.(models.RawDataMetrics); ok && rm.SpreadPoints > wideSpreadPoints {
			adaptive -= 15
			warnings = append(warnings, "wide spread penalty")
		}
	}
	if mom := findLayer(built, 4); mom != nil {
		if mm, ok := mom.Metrics.(models.MomentumMetrics); ok && mm.QualityScore < 40 {
			adaptive -= 12
			warnings = append(warnings, "weak momentum penalty")
		}
	}
	if sess := findLayer(built, 8); sess != nil {
		if sm, ok := sess.Metrics.(models.SessionMetrics); ok && !sm.ActiveHours {
			adaptive -= 10
			warnings = append(warnings, "session timing penalty")
		}
	}

	hardFails := 0
	for _, l := range built {
		if l.Availability == models.AvailabilityMissing {
			hardFails++
		}
	}
	degradePenalty := 4 * hardFails
	if degradePenalty > 25 {
		degradePenalty = 25
	}
	adaptive -= degradePenalty
	adaptive = clampConfidence(adaptive)

	alignment := 0.0
	if conf := findLayer(built, 17); conf != nil {
		if cm, ok := conf.Metrics.(models.ConfluenceMetrics); ok {
			alignment = cm.Alignment
		}
	}
	sizing := int(math.Round((float64(adaptive)*0.6 + alignment*0.4) / 10))
	if sizing < 0 {
		sizing = 0
	}
	if sizing > 10 {
		sizing = 10
	}

	state := b.rawState(s, built, adaptive)

	return models.Layer{
		Direction:    s.Signal.Direction,
		Confidence:   adaptive,
		Score:        float64(adaptive),
		Summary:      "decision: " + string(state),
		SummaryLocal: "решение: " + string(state),
		Warnings:     warnings,
		Metrics: models.DecisionMetrics{
			State:              state,
			BaseConfidence:     base,
			AdaptiveConfidence: adaptive,
			SizingHint:         sizing,
			HardFails:          hardFails,
		},
	}
}

// rawState is the pre-override decision state from thresholds and blocks.
func (b *Builder) rawState(s *Scenario, built []models.Layer, adaptive int) models.DecisionState {
	if len(b.killSwitch(s, built).IDs) > 0 {
		return models.DecisionBlocked
	}

	sig := s.Signal
	confluenceOK := false
	if conf := findLayer(built, 17); conf != nil {
		if cm, ok := conf.Metrics.(models.ConfluenceMetrics); ok {
			confluenceOK = cm.Alignment >= b.cfg.MinConfluence && !cm.HTFBlock
		}
	}

	ready := sig.Direction != models.DirectionNeutral &&
		sig.Strength >= b.cfg.MinStrength &&
		float64(adaptive) >= b.cfg.MinConfidence &&
		sig.FinalScore >= b.cfg.MinFinalScore &&
		confluenceOK &&
		sig.HasLevels()

	if ready {
		return models.DecisionEnter
	}
	return models.DecisionWait
}

// killSwitch collects the hard-block conditions. Any entry makes the
// decision NO_TRADE_BLOCKED regardless of scores.
func (b *Builder) killSwitch(s *Scenario, built []models.Layer) models.KillSwitch {
	var ks models.KillSwitch
	add := func(id, reason string) {
		ks.IDs = append(ks.IDs, id)
		ks.Reasons = append(ks.Reasons, reason)
	}

	if val := findLayer(built, 16); val != nil {
		if vm, ok := val.Metrics.(models.ValidationMetrics); ok && !vm.Valid {
			add("validation", "signal failed validation checks")
		}
	}
	if conf := findLayer(built, 17); conf != nil {
		if cm, ok := conf.Metrics.(models.ConfluenceMetrics); ok && cm.HTFBlock {
			add("htf_conflict", "higher-timeframe structure opposes signal")
		}
	}
	if news := findLayer(built, 6); news != nil {
		if nm, ok := news.Metrics.(models.NewsMetrics); ok && nm.Impact >= 9 {
			add("news_impact", "extreme news impact window")
		}
	}
	if vol := findLayer(built, 11); vol != nil {
		if vm, ok := vol.Metrics.(models.VolatilityRegimeMetrics); ok && vm.State == "extreme" {
			add("volatility_extreme", "extreme volatility state")
		}
	}
	if m15 := s.analysisFor(models.TimeframeM15); m15 != nil && !m15.Fallback {
		if !b.cfg.RegimeAllowed(m15.Regime.State) {
			add("regime", fmt.Sprintf("regime %q not in allow-list", m15.Regime.State))
		}
	}
	return ks
}

// deriveDecision folds the 18 layers into the final decision. A strong
// signal may override WAIT_MONITOR when enough independent quality floors
// hold; nothing overrides a kill switch.
func (b *Builder) deriveDecision(s *Scenario, built []models.Layer) models.Decision {
	ks := b.killSwitch(s, built)

	adaptive := 0
	sizing := 0
	var state models.DecisionState = models.DecisionWait
	if dec := findLayer(built, 18); dec != nil {
		if dm, ok := dec.Metrics.(models.DecisionMetrics); ok {
			adaptive = dm.AdaptiveConfidence
			sizing = dm.SizingHint
			state = dm.State
		}
	}

	valid := false
	if val := findLayer(built, 16); val != nil {
		if vm, ok := val.Metrics.(models.ValidationMetrics); ok {
			valid = vm.Valid
		}
	}

	// Strong-override: a validated directional signal above the override
	// floors enters even when softer layers voted to wait. The raw signal
	// must itself carry an ENTER state; a WAIT upstream is never promoted.
	if state == models.DecisionWait && len(ks.IDs) == 0 && valid &&
		s.Signal.State == string(models.DecisionEnter) &&
		(s.Signal.Direction == models.DirectionBuy || s.Signal.Direction == models.DirectionSell) &&
		s.Signal.Confidence >= b.cfg.OverrideConfidenceFloor &&
		s.Signal.Strength >= b.cfg.OverrideStrengthFloor &&
		s.Signal.HasLevels() {
		state = models.DecisionEnter
	}
	if len(ks.IDs) > 0 {
		state = models.DecisionBlocked
	}

	var missing []string
	for _, l := range built {
		if l.Availability == models.AvailabilityMissing {
			missing = append(missing, l.Name)
		}
	}

	score := 0.0
	if conf := findLayer(built, 17); conf != nil {
		score = conf.Score
	}

	d := models.Decision{
		State:              state,
		Score:              score,
		Blocked:            state == models.DecisionBlocked,
		Missing:            missing,
		KillSwitch:         ks,
		AdaptiveConfidence: adaptive,
		SizingHint:         sizing,
	}
	d.WhatWouldChange = b.whatWouldChange(s, built, d)
	d.NextSteps = b.nextSteps(d, built)
	return d
}

// whatWouldChange lists the concrete threshold gaps between the current
// evaluation and an ENTER.
func (b *Builder) whatWouldChange(s *Scenario, built []models.Layer, d models.Decision) []string {
	if d.State == models.DecisionEnter {
		return nil
	}

	var out []string
	for i, id := range d.KillSwitch.IDs {
		out = append(out, fmt.Sprintf("clear kill switch %s: %s", id, d.KillSwitch.Reasons[i]))
	}
	if s.Signal.Strength < b.cfg.MinStrength {
		out = append(out, fmt.Sprintf("strength %.0f below %.0f", s.Signal.Strength, b.cfg.MinStrength))
	}
	if float64(d.AdaptiveConfidence) < b.cfg.MinConfidence {
		out = append(out, fmt.Sprintf("adaptive confidence %d below %.0f", d.AdaptiveConfidence, b.cfg.MinConfidence))
	}
	if s.Signal.FinalScore < b.cfg.MinFinalScore {
		out = append(out, fmt.Sprintf("final score %.0f below %.0f", s.Signal.FinalScore, b.cfg.MinFinalScore))
	}
	if conf := findLayer(built, 17); conf != nil {
		if cm, ok := conf.Metrics.(models.ConfluenceMetrics); ok && cm.Alignment < b.cfg.MinConfluence {
			out = append(out, fmt.Sprintf("confluence %.0f below %.0f", cm.Alignment, b.cfg.MinConfluence))
		}
	}
	if !s.Signal.HasLevels() {
		out = append(out, "entry/stop/target levels missing")
	}
	return out
}

// nextSteps orders the actionable follow-ups: kill switches first, then
// missing data, then threshold gaps. Deduplicated, capped at 10.
func (b *Builder) nextSteps(d models.Decision, built []models.Layer) []string {
	var steps []string
	for i, id := range d.KillSwitch.IDs {
		steps = append(steps, fmt.Sprintf("resolve %s: %s", id, d.KillSwitch.Reasons[i]))
	}
	for _, name := range d.Missing {
		steps = append(steps, "restore data for layer: "+name)
	}
	steps = append(steps, d.WhatWouldChange...)

	seen := make(map[string]bool, len(steps))
	out := steps[:0]
	for _, s := range steps {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == 10 {
			break
		}
	}
	return out
}
