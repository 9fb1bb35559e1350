// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"fmt"
	"sort"
	"time"
)

// ProfileInsights is a human-readable digest of the learned profile for
// display. Everything here is derived; nothing feeds back into scoring.
type ProfileInsights struct {
	UserID string `json:"user_id"`

	WatchingStyle   string           `json:"watching_style"`
	Tolerances      []string         `json:"tolerances,omitempty"`
	DropPattern     string           `json:"drop_pattern,omitempty"`
	TopClusters     []ClusterInsight `json:"top_clusters,omitempty"`
	AvoidedClusters []ClusterInsight `json:"avoided_clusters,omitempty"`
	WeightLeaders   []string         `json:"weight_leaders,omitempty"`

	ConfidenceLevel float64   `json:"confidence_level"`
	TotalFeedback   int       `json:"total_feedback"`
	LastUpdated     time.Time `json:"last_updated"`
}

// ClusterInsight is one cluster summarized for display.
type ClusterInsight struct {
	Name     string   `json:"name"`
	Tags     []string `json:"tags"`
	Affinity float64  `json:"affinity"`
}

// BuildInsights derives display insights from a profile.
func BuildInsights(p *Profile) ProfileInsights {
	ins := ProfileInsights{
		UserID:          p.UserID,
		WatchingStyle:   watchingStyle(p.Metrics),
		Tolerances:      toleranceNotes(p.Metrics),
		DropPattern:     dropPatternNote(p.Metrics),
		WeightLeaders:   weightLeaders(p.Weights),
		ConfidenceLevel: p.ConfidenceLevel,
		TotalFeedback:   p.Learning.TotalFeedback,
		LastUpdated:     p.LastUpdated,
	}

	liked, avoided := partitionClusters(p.Clusters.Clusters)
	ins.TopClusters = liked
	ins.AvoidedClusters = avoided

	return ins
}

func watchingStyle(m BehavioralMetrics) string {
	switch {
	case m.BingeVelocity >= 3:
		return "binge watcher"
	case m.BingeVelocity >= 1:
		return "steady watcher"
	case m.BingeVelocity > 0:
		return "slow watcher"
	default:
		return "unknown"
	}
}

func toleranceNotes(m BehavioralMetrics) []string {
	var notes []string
	notes = appendToleranceNote(notes, m.OldContentTolerance, "older titles")
	notes = appendToleranceNote(notes, m.LongSeriesTolerance, "long series")
	notes = appendToleranceNote(notes, m.SlowPaceTolerance, "slow-paced shows")
	return notes
}

func appendToleranceNote(notes []string, score float64, subject string) []string {
	switch {
	case score >= 0.65:
		return append(notes, fmt.Sprintf("comfortable with %s", subject))
	case score <= 0.35:
		return append(notes, fmt.Sprintf("tends to avoid %s", subject))
	default:
		return notes
	}
}

func dropPatternNote(m BehavioralMetrics) string {
	total := m.VibeCheckDrops + m.BoredomDrops + m.BurnoutDrops
	if total == 0 {
		return ""
	}
	switch {
	case m.VibeCheckDrops*2 > total:
		return "usually decides within the first few episodes"
	case m.BurnoutDrops*2 > total:
		return "tends to burn out late in long runs"
	case m.BoredomDrops*2 > total:
		return "tends to lose interest mid-series"
	default:
		return "mixed dropping pattern"
	}
}

// partitionClusters splits clusters into liked (affinity > 0.2) and avoided
// (affinity < -0.2), each sorted by affinity magnitude, top 5 per side.
func partitionClusters(clusters []TagCluster) (liked, avoided []ClusterInsight) {
	for _, c := range clusters {
		ci := ClusterInsight{Name: c.Name, Tags: c.Tags, Affinity: c.UserAffinity}
		switch {
		case c.UserAffinity > 0.2:
			liked = append(liked, ci)
		case c.UserAffinity < -0.2:
			avoided = append(avoided, ci)
		}
	}

	sort.Slice(liked, func(i, j int) bool { return liked[i].Affinity > liked[j].Affinity })
	sort.Slice(avoided, func(i, j int) bool { return avoided[i].Affinity < avoided[j].Affinity })

	if len(liked) > 5 {
		liked = liked[:5]
	}
	if len(avoided) > 5 {
		avoided = avoided[:5]
	}
	return liked, avoided
}

// weightLeaders names the learnable weights currently above their uniform
// share, strongest first.
func weightLeaders(w Weights) []string {
	type wn struct {
		name  string
		value float64
	}
	all := []wn{
		{"collaborative filtering", w.CF},
		{"content similarity", w.Content},
		{"freshness", w.Freshness},
		{"franchise relations", w.Relations},
		{"feedback similarity", w.Feedback},
		{"implicit interactions", w.Interaction},
	}

	sort.Slice(all, func(i, j int) bool { return all[i].value > all[j].value })

	const uniform = 1.0 / 6.0
	var leaders []string
	for _, it := range all {
		if it.value > uniform {
			leaders = append(leaders, it.name)
		}
	}
	return leaders
}
