// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

// normalizeIterations bounds the bounded-simplex projection loop. The
// residual shrinks geometrically, so a handful of passes is plenty.
const normalizeIterations = 16

// Adapt performs one bounded gradient step of the weight vector for a
// feedback event. Pure: the input weights are not modified.
//
// target is 1.0 for a like and 0.0 for a dislike; the per-component delta is
// clamp(error * feature * rate, -MaxDelta, +MaxDelta), clamped again into
// the component bounds. Granular reasons add direct nudges scaled by the
// same learning rate, independent of the gradient step. The six learnable
// weights are renormalized to sum to 1.0; NegativeSignal is clamped on its
// own and excluded from the sum.
//
//nolint:gocritic // hugeParam: event passed by value for immutability
func Adapt(cfg *Config, w Weights, event FeedbackEvent, pred Prediction, totalFeedback int) Weights {
	rate := cfg.LearningRateFor(totalFeedback)
	w.LearningRate = rate

	if target, ok := feedbackTarget(event.Type); ok {
		err := target - pred.Score
		applyGradient(cfg, &w, pred.Features, err, rate)
	}

	applyReasonNudges(cfg, &w, event.Reasons, rate)

	normalizeLearnable(cfg, &w)
	w.NegativeSignal = clamp(w.NegativeSignal, cfg.Weights.NegativeSignal.Min, cfg.Weights.NegativeSignal.Max)
	w.LastAdjusted = nowFunc()

	return w
}

// feedbackTarget maps a feedback type to its supervision target. Cleared
// feedback carries no target; only reason nudges apply.
func feedbackTarget(t FeedbackType) (float64, bool) {
	switch t {
	case FeedbackLike:
		return 1.0, true
	case FeedbackDislike:
		return 0.0, true
	default:
		return 0, false
	}
}

// applyGradient steps each component toward reducing the prediction error,
// each step clamped by MaxDelta and the component bounds.
func applyGradient(cfg *Config, w *Weights, f FeatureVector, err, rate float64) {
	step := func(current float64, feature float64, b WeightBound) float64 {
		delta := clamp(err*feature*rate, -cfg.Learning.MaxDelta, cfg.Learning.MaxDelta)
		return clamp(current+delta, b.Min, b.Max)
	}

	w.CF = step(w.CF, f.CF, cfg.Weights.CF)
	w.Content = step(w.Content, f.Content, cfg.Weights.Content)
	w.Freshness = step(w.Freshness, f.Freshness, cfg.Weights.Freshness)
	w.Relations = step(w.Relations, f.Relations, cfg.Weights.Relations)
	w.Feedback = step(w.Feedback, f.Feedback, cfg.Weights.Feedback)
	w.Interaction = step(w.Interaction, f.Interaction, cfg.Weights.Interaction)

	// NegativeSignal contributes -w*f to the score, so its gradient has
	// the opposite sign.
	negDelta := clamp(-err*f.NegativeSignal*rate, -cfg.Learning.MaxDelta, cfg.Learning.MaxDelta)
	w.NegativeSignal = clamp(w.NegativeSignal+negDelta, cfg.Weights.NegativeSignal.Min, cfg.Weights.NegativeSignal.Max)
}

// applyReasonNudges applies the direct weight effects of granular reasons.
func applyReasonNudges(cfg *Config, w *Weights, reasons []Reason, rate float64) {
	for _, r := range reasons {
		impact, ok := ImpactFor(r)
		if !ok || impact.Weight == "" {
			continue
		}

		delta := clamp(impact.Scale*rate, -cfg.Learning.MaxDelta, cfg.Learning.MaxDelta)
		switch impact.Weight {
		case ComponentCF:
			w.CF = clamp(w.CF+delta, cfg.Weights.CF.Min, cfg.Weights.CF.Max)
		case ComponentContent:
			w.Content = clamp(w.Content+delta, cfg.Weights.Content.Min, cfg.Weights.Content.Max)
		case ComponentFreshness:
			w.Freshness = clamp(w.Freshness+delta, cfg.Weights.Freshness.Min, cfg.Weights.Freshness.Max)
		case ComponentRelations:
			w.Relations = clamp(w.Relations+delta, cfg.Weights.Relations.Min, cfg.Weights.Relations.Max)
		case ComponentFeedback:
			w.Feedback = clamp(w.Feedback+delta, cfg.Weights.Feedback.Min, cfg.Weights.Feedback.Max)
		case ComponentInteraction:
			w.Interaction = clamp(w.Interaction+delta, cfg.Weights.Interaction.Min, cfg.Weights.Interaction.Max)
		case ComponentNegativeSignal:
			w.NegativeSignal = clamp(w.NegativeSignal+delta, cfg.Weights.NegativeSignal.Min, cfg.Weights.NegativeSignal.Max)
		}
	}
}

// normalizeLearnable projects the six learnable weights back onto the
// bounded simplex (sum 1.0, each component within its range). The residual
// is distributed equally among components with slack in the needed
// direction; with the default bounds the target sum is always feasible.
func normalizeLearnable(cfg *Config, w *Weights) {
	type slot struct {
		value *float64
		bound WeightBound
	}
	slots := []slot{
		{&w.CF, cfg.Weights.CF},
		{&w.Content, cfg.Weights.Content},
		{&w.Freshness, cfg.Weights.Freshness},
		{&w.Relations, cfg.Weights.Relations},
		{&w.Feedback, cfg.Weights.Feedback},
		{&w.Interaction, cfg.Weights.Interaction},
	}

	for iter := 0; iter < normalizeIterations; iter++ {
		var sum float64
		for _, s := range slots {
			sum += *s.value
		}

		diff := 1.0 - sum
		if diff < cfg.Learning.NormalizeEpsilon && diff > -cfg.Learning.NormalizeEpsilon {
			return
		}

		free := slots[:0:0]
		for _, s := range slots {
			if diff > 0 && *s.value < s.bound.Max {
				free = append(free, s)
			}
			if diff < 0 && *s.value > s.bound.Min {
				free = append(free, s)
			}
		}
		if len(free) == 0 {
			return
		}

		share := diff / float64(len(free))
		for _, s := range free {
			*s.value = clamp(*s.value+share, s.bound.Min, s.bound.Max)
		}
	}
}

// LearnableSum returns the sum of the six learnable weights.
func (w Weights) LearnableSum() float64 {
	return w.CF + w.Content + w.Freshness + w.Relations + w.Feedback + w.Interaction
}
