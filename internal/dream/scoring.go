// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ayasato/oneiro/internal/metrics"
)

// Bounds on the accumulated behavioral and tolerance products. Individual
// nudges are small; these keep stacked nudges from ever dominating.
const (
	behavioralFloor = 0.85
	behavioralCeil  = 1.15
	toleranceFloor  = 0.70
	toleranceCeil   = 1.30
)

// Score computes the full deterministic breakdown for one candidate against
// a profile. Pure: identical inputs always produce identical output, and
// nothing in the profile is modified.
//
//nolint:gocritic // hugeParam: candidate passed by value for immutability
func Score(cfg *Config, candidate Candidate, p *Profile) Breakdown {
	b := Breakdown{
		MediaID:  candidate.MediaID,
		Features: candidate.Features,
	}

	b.BaseScore = baseScore(p.Weights, candidate.Features)
	b.VetoMultiplier = vetoMultiplier(cfg, candidate, p.Rules)
	b.ClusterBoost = clusterBoost(cfg, candidate, p.Clusters.Clusters)
	b.BehavioralModifier = behavioralModifier(cfg, candidate, p.Metrics)
	b.ToleranceModifier = toleranceModifier(cfg, candidate, p.Metrics)

	b.RawScore = b.BaseScore * b.VetoMultiplier * b.ClusterBoost * b.BehavioralModifier * b.ToleranceModifier
	b.DreamScore = clamp01(softCap(cfg, b.RawScore))
	b.Confidence = confidence(p, candidate.Features, b.VetoMultiplier)
	b.Reasons = buildReasons(cfg, candidate, p, &b)

	return b
}

// baseScore is the weighted feature sum with the negative-signal penalty
// subtracted, clamped to [0, 1].
func baseScore(w Weights, f FeatureVector) float64 {
	sum := w.CF*f.CF +
		w.Content*f.Content +
		w.Freshness*f.Freshness +
		w.Relations*f.Relations +
		w.Feedback*f.Feedback +
		w.Interaction*f.Interaction -
		w.NegativeSignal*f.NegativeSignal
	return clamp01(sum)
}

// vetoMultiplier applies the rule layer. A blacklisted tag or genre match
// hard-vetoes and short-circuits every soft multiplier; otherwise soft
// penalties and bonuses accumulate multiplicatively.
//
//nolint:gocritic // hugeParam: candidate passed by value for immutability
func vetoMultiplier(cfg *Config, candidate Candidate, rules SemanticRules) float64 {
	if anyMatch(candidate.Tags, rules.TagBlacklist) {
		metrics.HardVetoes.WithLabelValues("tag_blacklist").Inc()
		return cfg.Scoring.TagBlacklistVeto
	}
	if anyMatch(candidate.Genres, rules.GenreBlacklist) {
		metrics.HardVetoes.WithLabelValues("genre_blacklist").Inc()
		return cfg.Scoring.GenreBlacklistVeto
	}

	mult := 1.0

	if candidate.Studio != "" && containsFold(rules.StudioBlacklist, candidate.Studio) {
		mult *= cfg.Scoring.StudioBlacklistPenalty
	}
	if rules.MinYear > 0 && candidate.Year > 0 && candidate.Year < rules.MinYear {
		mult *= cfg.Scoring.MinYearPenalty
	}
	if rules.MaxEpisodes > 0 && candidate.Episodes > rules.MaxEpisodes {
		mult *= cfg.Scoring.MaxEpisodesPenalty
	}
	if candidate.Studio != "" && containsFold(rules.StudioWhitelist, candidate.Studio) {
		mult *= cfg.Scoring.StudioWhitelistBonus
	}

	if n := matchCount(candidate.Genres, rules.GenreWhitelist); n > 0 {
		mult *= 1 + float64(n)*cfg.Scoring.GenreWhitelistBonus
	}
	if n := matchCount(candidate.Tags, rules.TagWhitelist); n > 0 {
		bonus := math.Min(float64(n)*cfg.Scoring.TagWhitelistBonus, cfg.Scoring.TagWhitelistBonusCap)
		mult *= 1 + bonus
	}

	return mult
}

// clusterBoost multiplies 1 + affinity*factor over every cluster the
// candidate matches, clamped to the configured range. 1.0 when no clusters
// have been discovered yet.
//
//nolint:gocritic // hugeParam: candidate passed by value for immutability
func clusterBoost(cfg *Config, candidate Candidate, clusters []TagCluster) float64 {
	if len(clusters) == 0 {
		return 1.0
	}

	boost := 1.0
	for i := range clusters {
		if MatchesCluster(clusters[i], candidate.Tags, cfg.Scoring.ClusterMatchMinTags) {
			boost *= 1 + clusters[i].UserAffinity*cfg.Scoring.ClusterAffinityFactor
		}
	}
	return clamp(boost, cfg.Scoring.ClusterBoostMin, cfg.Scoring.ClusterBoostMax)
}

// behavioralModifier accumulates the small multiplicative nudges derived
// from watching behavior, bounded so they never dominate the score.
//
//nolint:gocritic // hugeParam: candidate passed by value for immutability
func behavioralModifier(cfg *Config, candidate Candidate, m BehavioralMetrics) float64 {
	bc := cfg.Behavioral
	mod := 1.0

	long := candidate.Episodes >= bc.LongSeriesEpisodes
	short := candidate.Episodes > 0 && candidate.Episodes <= bc.ShortSeriesEpisodes

	// Binge velocity vs. episode count.
	if m.BingeVelocity >= bc.HighBingeVelocity && long {
		mod *= 1 + bc.BingeLongBonus
	}
	if m.BingeVelocity > 0 && m.BingeVelocity < 1 && short {
		mod *= 1 + bc.BingeShortBonus
	}

	// Completion rate vs. episode count.
	if m.CompletionRate > 0 && m.CompletionRate < bc.LowCompletionRate && long {
		mod *= 1 - bc.LowCompletionPenalty
	}

	// Drop patterns vs. episode count.
	if long {
		switch dominantDropPattern(m) {
		case dropPatternBurnout:
			mod *= 1 - bc.BurnoutPenalty
		case dropPatternVibeCheck:
			mod *= 1 - bc.VibeCheckPenalty
		}
	}

	// Format preference.
	if candidate.Format != "" && containsFold(m.PreferredFormats, candidate.Format) {
		mod *= 1 + bc.FormatMatchBonus
	}

	// Recency vs. inactivity: after a long gap, favor low-commitment picks.
	if short && !m.LastActive.IsZero() {
		if daysSince(m.LastActive) > float64(bc.InactivityDays) {
			mod *= 1 + bc.InactivityShortBonus
		}
	}

	return clamp(mod, behavioralFloor, behavioralCeil)
}

// dropPattern identifies which drop bucket dominates a viewing history.
type dropPattern int

const (
	dropPatternNone dropPattern = iota
	dropPatternBurnout
	dropPatternVibeCheck
)

// dominantDropPattern returns which drop bucket holds a strict majority, or
// dropPatternNone when none does.
func dominantDropPattern(m BehavioralMetrics) dropPattern {
	total := m.VibeCheckDrops + m.BoredomDrops + m.BurnoutDrops
	if total < 2 {
		return dropPatternNone
	}
	switch {
	case m.BurnoutDrops*2 > total:
		return dropPatternBurnout
	case m.VibeCheckDrops*2 > total:
		return dropPatternVibeCheck
	default:
		return dropPatternNone
	}
}

// toleranceModifier nudges old, long, and slow-paced content in proportion
// to the corresponding tolerance score. A neutral 0.5 tolerance leaves the
// score untouched.
//
//nolint:gocritic // hugeParam: candidate passed by value for immutability
func toleranceModifier(cfg *Config, candidate Candidate, m BehavioralMetrics) float64 {
	bc := cfg.Behavioral
	mod := 1.0

	factor := func(tolerance float64) float64 {
		// Maps [0, 1] tolerance onto 1 +/- ToleranceStrength.
		return 1 + (tolerance-0.5)*2*bc.ToleranceStrength
	}

	if candidate.Year > 0 && candidate.Year < bc.OldContentYear {
		mod *= factor(m.OldContentTolerance)
	}
	if candidate.Episodes >= bc.LongSeriesEpisodes {
		mod *= factor(m.LongSeriesTolerance)
	}
	if hasAnyTag(candidate.Tags, bc.SlowPaceTags) {
		mod *= factor(m.SlowPaceTolerance)
	}

	return clamp(mod, toleranceFloor, toleranceCeil)
}

// softCap compresses raw scores above the threshold so they approach but
// never reach 1.0, preserving rank order among high scorers while keeping
// the visible scale stable.
func softCap(cfg *Config, raw float64) float64 {
	threshold := cfg.Scoring.SoftCapThreshold
	if raw <= threshold {
		return raw
	}
	headroom := 1 - threshold
	return threshold + headroom*(1-math.Exp(-cfg.Scoring.SoftCapRate*(raw-threshold)))
}

// confidence is a 0-100 display value: how much signal backs this score.
// Vetoed candidates have their confidence scaled down with the veto.
func confidence(p *Profile, f FeatureVector, veto float64) float64 {
	c := 50.0
	c += 20 * p.ConfidenceLevel
	c += 20 * (f.CF + f.Content) / 2
	if f.Feedback > 0.5 {
		c += 10
	}
	if f.NegativeSignal < 0.2 {
		c += 5
	}
	if veto < 1.0 {
		c *= veto
	}
	return clamp(c, 0, 100)
}

// buildReasons emits human-readable explanations from the breakdown. This
// is a side, non-authoritative layer: it inspects the already-computed
// breakdown and must never influence the score.
//
//nolint:gocritic // hugeParam: candidate passed by value for immutability
func buildReasons(cfg *Config, candidate Candidate, p *Profile, b *Breakdown) []string {
	var reasons []string

	for i := range p.Clusters.Clusters {
		c := &p.Clusters.Clusters[i]
		if c.UserAffinity > 0 && MatchesCluster(*c, candidate.Tags, cfg.Scoring.ClusterMatchMinTags) {
			reasons = append(reasons, fmt.Sprintf("matches your taste for %s", c.Name))
			break
		}
	}

	if candidate.Studio != "" && containsFold(p.Rules.StudioWhitelist, candidate.Studio) {
		reasons = append(reasons, fmt.Sprintf("from %s, a studio you finish shows from", candidate.Studio))
	}
	if n := matchCount(candidate.Genres, p.Rules.GenreWhitelist); n > 0 {
		reasons = append(reasons, "in genres you reliably enjoy")
	}

	bc := cfg.Behavioral
	if p.Metrics.BingeVelocity >= bc.HighBingeVelocity && candidate.Episodes >= bc.LongSeriesEpisodes {
		reasons = append(reasons, "long enough to binge at your pace")
	}
	if candidate.Episodes > 0 && candidate.Episodes <= bc.ShortSeriesEpisodes && p.Metrics.BingeVelocity > 0 && p.Metrics.BingeVelocity < 1 {
		reasons = append(reasons, "short series that fits your watching rhythm")
	}
	if candidate.Year > 0 && candidate.Year < bc.OldContentYear && p.Metrics.OldContentTolerance > 0.6 {
		reasons = append(reasons, "older title, and you do well with classics")
	}
	if hasAnyTag(candidate.Tags, bc.SlowPaceTags) && p.Metrics.SlowPaceTolerance > 0.6 {
		reasons = append(reasons, "slower paced, which you tend to enjoy")
	}

	return reasons
}

// anyMatch reports whether any value appears in list, case-insensitively.
func anyMatch(values, list []string) bool {
	return matchCount(values, list) > 0
}

// matchCount counts values appearing in list, case-insensitively.
func matchCount(values, list []string) int {
	if len(values) == 0 || len(list) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(list))
	for _, v := range list {
		set[strings.ToLower(v)] = struct{}{}
	}

	n := 0
	for _, v := range values {
		if _, ok := set[strings.ToLower(v)]; ok {
			n++
		}
	}
	return n
}

// containsFold reports whether list contains value, case-insensitively.
func containsFold(list []string, value string) bool {
	for _, v := range list {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// daysSince returns fractional days since ts.
func daysSince(ts time.Time) float64 {
	return nowFunc().Sub(ts).Hours() / 24
}
