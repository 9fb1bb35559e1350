// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"context"
	"fmt"
	"time"
)

// UpdateResult reports the outcome of one update pipeline run, including
// which deferred maintenance the caller should now trigger.
type UpdateResult struct {
	Profile *Profile

	// RetrainDue signals the cluster retraining threshold was crossed.
	// Retraining is fire-and-forget: the engine schedules it on the same
	// per-user queue, never blocking the feedback caller.
	RetrainDue bool

	// RuleInferenceDue signals the periodic statistical rule inference
	// threshold was crossed.
	RuleInferenceDue bool
}

// Update is the single mutation entrypoint for feedback. It sequences the
// full pipeline: audit append, prediction resolution, weight adaptation,
// rule/tag effects, cluster affinity nudges, confidence bump, log pruning,
// retrain bookkeeping, and persistence.
//
// The caller must hold the user's update serialization (the engine queue);
// concurrent Update calls for one user are a data race by contract.
//
//nolint:gocritic // hugeParam: event passed by value for immutability
func (l *Lifecycle) Update(ctx context.Context, p *Profile, event FeedbackEvent) (UpdateResult, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.appendEvent(p, LearningEvent{
		Type:    EventFeedbackReceived,
		MediaID: event.MediaID,
		Detail:  string(event.Type),
	})

	pred := l.resolvePrediction(p, event)

	before := p.Weights
	p.Weights = Adapt(l.cfg, p.Weights, event, pred, p.Learning.TotalFeedback)
	p.Learning.TotalFeedback++

	l.appendEvent(p, LearningEvent{
		Type:    EventWeightsAdjusted,
		MediaID: event.MediaID,
		Detail:  weightShiftSummary(before, p.Weights),
	})

	l.applyRuleEffects(p, event)
	l.nudgeClusterAffinities(p, event)

	p.ConfidenceLevel = clamp01(p.ConfidenceLevel + l.cfg.Lifecycle.ConfidenceIncrement)

	p.Clusters.FeedbackSinceTraining++
	result := UpdateResult{
		Profile:          p,
		RetrainDue:       p.Clusters.FeedbackSinceTraining >= l.cfg.Lifecycle.RetrainInterval,
		RuleInferenceDue: p.Learning.TotalFeedback%l.cfg.Lifecycle.RuleInferenceInterval == 0,
	}

	if err := l.Save(ctx, p); err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: %w", p.UserID, err)
	}

	return result, nil
}

// resolvePrediction returns the cached recommendation-time prediction, or
// synthesizes one from the media snapshot (or neutral features) so learning
// still works after a restart dropped the prediction cache.
//
//nolint:gocritic // hugeParam: event passed by value for immutability
func (l *Lifecycle) resolvePrediction(p *Profile, event FeedbackEvent) Prediction {
	if event.Prediction != nil {
		return *event.Prediction
	}

	candidate := Candidate{
		MediaID: event.MediaID,
		Features: FeatureVector{
			CF: 0.5, Content: 0.5, Freshness: 0.5,
			Relations: 0.5, Feedback: 0.5, Interaction: 0.5,
		},
	}
	if event.Media != nil {
		candidate.Genres = event.Media.Genres
		candidate.Tags = event.Media.Tags
		candidate.Studio = event.Media.Studio
		candidate.Year = event.Media.Year
		candidate.Episodes = event.Media.Episodes
		candidate.Format = event.Media.Format
	}

	b := Score(l.cfg, candidate, p)
	return Prediction{Score: b.DreamScore, Features: candidate.Features}
}

// applyRuleEffects applies the tag/studio/year/episode rule effects of the
// event's granular reasons, logging each rule change to the audit log.
//
//nolint:gocritic // hugeParam: event passed by value for immutability
func (l *Lifecycle) applyRuleEffects(p *Profile, event FeedbackEvent) {
	for _, r := range event.Reasons {
		impact, ok := ImpactFor(r)
		if !ok {
			l.logger.Debug().Str("reason", string(r)).Msg("unknown feedback reason ignored")
			continue
		}

		for _, tag := range impact.BlacklistTags {
			if appendUnique(&p.Rules.TagBlacklist, tag) {
				l.appendRuleEvent(p, event.MediaID, "tag blacklisted: "+tag)
			}
		}

		if event.Media == nil {
			continue
		}

		if impact.WhitelistFromMedia {
			for _, tag := range topTags(event.Media.Tags, 3) {
				if appendUnique(&p.Rules.TagWhitelist, tag) {
					l.appendRuleEvent(p, event.MediaID, "tag whitelisted: "+tag)
				}
			}
		}
		if impact.BlacklistStudio && event.Media.Studio != "" {
			if appendUnique(&p.Rules.StudioBlacklist, event.Media.Studio) {
				l.appendRuleEvent(p, event.MediaID, "studio blacklisted: "+event.Media.Studio)
			}
		}
		if impact.WhitelistStudio && event.Media.Studio != "" {
			if appendUnique(&p.Rules.StudioWhitelist, event.Media.Studio) {
				l.appendRuleEvent(p, event.MediaID, "studio whitelisted: "+event.Media.Studio)
			}
		}
		if impact.CapEpisodes && event.Media.Episodes > 0 {
			if p.Rules.MaxEpisodes == 0 || event.Media.Episodes < p.Rules.MaxEpisodes {
				p.Rules.MaxEpisodes = event.Media.Episodes
				l.appendRuleEvent(p, event.MediaID, fmt.Sprintf("episode cap set: %d", p.Rules.MaxEpisodes))
			}
		}
		if impact.RaiseMinYear && event.Media.Year > 0 && event.Media.Year >= p.Rules.MinYear {
			p.Rules.MinYear = event.Media.Year + 1
			l.appendRuleEvent(p, event.MediaID, fmt.Sprintf("minimum year raised: %d", p.Rules.MinYear))
		}
	}
}

func (l *Lifecycle) appendRuleEvent(p *Profile, mediaID int, detail string) {
	l.appendEvent(p, LearningEvent{
		Type:    EventRuleAdded,
		MediaID: mediaID,
		Detail:  detail,
	})
}

// nudgeClusterAffinities moves the affinity of every cluster matching the
// feedback item by the configured nudge, toward the feedback polarity.
// Affinity is the only cluster field mutated outside retraining.
//
//nolint:gocritic // hugeParam: event passed by value for immutability
func (l *Lifecycle) nudgeClusterAffinities(p *Profile, event FeedbackEvent) {
	if event.Media == nil || len(event.Media.Tags) == 0 {
		return
	}

	var direction float64
	switch event.Type {
	case FeedbackLike:
		direction = 1
	case FeedbackDislike:
		direction = -1
	default:
		return
	}

	now := time.Now()
	for i := range p.Clusters.Clusters {
		c := &p.Clusters.Clusters[i]
		if !MatchesCluster(*c, event.Media.Tags, l.cfg.Clustering.AffinityMatchMinTags) {
			continue
		}
		c.UserAffinity = clamp(c.UserAffinity+direction*l.cfg.Learning.AffinityNudge, -1, 1)
		c.UpdatedAt = now
	}
}

// weightShiftSummary describes the largest coefficient movement for the
// audit log.
func weightShiftSummary(before, after Weights) string {
	type shift struct {
		name  string
		delta float64
	}
	shifts := []shift{
		{"cf", after.CF - before.CF},
		{"content", after.Content - before.Content},
		{"freshness", after.Freshness - before.Freshness},
		{"relations", after.Relations - before.Relations},
		{"feedback", after.Feedback - before.Feedback},
		{"interaction", after.Interaction - before.Interaction},
		{"negative_signal", after.NegativeSignal - before.NegativeSignal},
	}

	best := shifts[0]
	for _, s := range shifts[1:] {
		if abs(s.delta) > abs(best.delta) {
			best = s
		}
	}
	if abs(best.delta) < 1e-9 {
		return "no weight movement"
	}
	return fmt.Sprintf("%s %+.4f", best.name, best.delta)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// appendUnique appends value to list unless already present
// (case-insensitive). Reports whether the list grew.
func appendUnique(list *[]string, value string) bool {
	if containsFold(*list, value) {
		return false
	}
	*list = append(*list, value)
	return true
}

// topTags returns up to n normalized tags.
func topTags(tags []string, n int) []string {
	out := normalizeTags(tags)
	if len(out) > n {
		out = out[:n]
	}
	return out
}
