// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"math"
	"sort"
	"strings"
	"time"
)

// defaultEpisodes is assumed when an entry's episode count is unknown.
const defaultEpisodes = 12

// Drop forensics bucket boundaries on normalized progress.
const (
	vibeCheckBoundary = 0.25
	boredomBoundary   = 0.67
)

// Tolerance blend weights: completion-rate term vs. average-score term.
const (
	toleranceCompletionWeight = 0.6
	toleranceScoreWeight      = 0.4
)

// ComputeMetrics derives a full behavioral snapshot from watch history.
// Pure and stateless: the result replaces any previous metrics wholesale.
// An empty history yields neutral defaults, never an error.
func ComputeMetrics(cfg *Config, history []WatchEntry) BehavioralMetrics {
	m := BehavioralMetrics{
		OldContentTolerance: 0.5,
		LongSeriesTolerance: 0.5,
		SlowPaceTolerance:   0.5,
		ComputedAt:          time.Now(),
	}
	if len(history) == 0 {
		return m
	}

	started, completed, dropped := partitionHistory(history)

	if started > 0 {
		m.CompletionRate = float64(len(completed)) / float64(started)
		m.DropRate = float64(len(dropped)) / float64(started)
	}

	m.BingeVelocity = medianBingeVelocity(completed)
	computeDropForensics(&m, dropped)

	m.OldContentTolerance = toleranceScore(history, func(e WatchEntry) bool {
		return e.Year > 0 && e.Year < cfg.Behavioral.OldContentYear
	})
	m.LongSeriesTolerance = toleranceScore(history, func(e WatchEntry) bool {
		return e.Episodes >= cfg.Behavioral.LongSeriesEpisodes
	})
	m.SlowPaceTolerance = toleranceScore(history, func(e WatchEntry) bool {
		return hasAnyTag(e.Tags, cfg.Behavioral.SlowPaceTags)
	})

	m.EngagementScore = engagementEstimate(cfg, m, len(completed))
	m.PreferredFormats = preferredFormats(completed)
	m.LastActive = lastActive(history)

	return m
}

// partitionHistory splits history into started/completed/dropped views.
// Planned entries have not been started and contribute to no ratio.
func partitionHistory(history []WatchEntry) (started int, completed, dropped []WatchEntry) {
	for i := range history {
		e := history[i]
		switch e.Status {
		case StatusCompleted:
			started++
			completed = append(completed, e)
		case StatusDropped:
			started++
			dropped = append(dropped, e)
		case StatusWatching, StatusPaused:
			started++
		case StatusPlanned:
		}
	}
	return started, completed, dropped
}

// medianBingeVelocity computes the median episodes/day across completed
// entries. Days-to-complete comes from start/completion dates, falling back
// to update/create timestamp deltas, floored at one day.
func medianBingeVelocity(completed []WatchEntry) float64 {
	velocities := make([]float64, 0, len(completed))
	for i := range completed {
		e := completed[i]
		episodes := e.Episodes
		if episodes <= 0 {
			episodes = defaultEpisodes
		}

		days := daysToComplete(e)
		velocities = append(velocities, float64(episodes)/days)
	}

	return median(velocities)
}

// daysToComplete derives the watch duration in days, floored at 1.
func daysToComplete(e WatchEntry) float64 {
	var span time.Duration
	switch {
	case !e.StartedAt.IsZero() && !e.CompletedAt.IsZero():
		span = e.CompletedAt.Sub(e.StartedAt)
	case !e.CreatedAt.IsZero() && !e.UpdatedAt.IsZero():
		span = e.UpdatedAt.Sub(e.CreatedAt)
	}

	days := span.Hours() / 24
	if days < 1 {
		return 1
	}
	return days
}

// computeDropForensics buckets each dropped entry by how far the user got.
// The three buckets always partition the dropped set exactly.
func computeDropForensics(m *BehavioralMetrics, dropped []WatchEntry) {
	if len(dropped) == 0 {
		return
	}

	var sum float64
	for i := range dropped {
		e := dropped[i]
		episodes := e.Episodes
		if episodes <= 0 {
			episodes = defaultEpisodes
		}

		point := float64(e.Progress) / float64(episodes)
		if point > 1 {
			point = 1
		}
		sum += point

		switch {
		case point < vibeCheckBoundary:
			m.VibeCheckDrops++
		case point < boredomBoundary:
			m.BoredomDrops++
		default:
			m.BurnoutDrops++
		}
	}

	m.AvgDropPoint = sum / float64(len(dropped))
}

// toleranceScore blends a completion-rate term and an average-score term
// over the subset of history selected by match. Absence of qualifying data
// yields the neutral 0.5 default.
func toleranceScore(history []WatchEntry, match func(WatchEntry) bool) float64 {
	var started, completed int
	var scoreSum float64
	var scored int

	for i := range history {
		e := history[i]
		if !match(e) {
			continue
		}

		switch e.Status {
		case StatusCompleted:
			started++
			completed++
		case StatusDropped, StatusWatching, StatusPaused:
			started++
		case StatusPlanned:
			continue
		}

		if e.Score > 0 {
			scoreSum += e.Score
			scored++
		}
	}

	if started == 0 {
		return 0.5
	}

	completionTerm := float64(completed) / float64(started)

	scoreTerm := 0.5 // neutral when nothing in the subset is rated
	if scored > 0 {
		scoreTerm = (scoreSum / float64(scored)) / 10.0
	}

	return clamp01(toleranceCompletionWeight*completionTerm + toleranceScoreWeight*scoreTerm)
}

// engagementEstimate is a coarse overall engagement blend of completion
// rate, completed volume, and binge velocity.
func engagementEstimate(cfg *Config, m BehavioralMetrics, completedCount int) float64 {
	volume := math.Min(float64(completedCount)/50.0, 1.0)

	velocity := 0.0
	if cfg.Behavioral.HighBingeVelocity > 0 {
		velocity = math.Min(m.BingeVelocity/cfg.Behavioral.HighBingeVelocity, 1.0)
	}

	return clamp01(0.5*m.CompletionRate + 0.3*volume + 0.2*velocity)
}

// preferredFormats ranks formats by completed volume, most watched first.
func preferredFormats(completed []WatchEntry) []string {
	counts := make(map[string]int)
	for i := range completed {
		if f := completed[i].Format; f != "" {
			counts[f]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	formats := make([]string, 0, len(counts))
	for f := range counts {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool {
		if counts[formats[i]] != counts[formats[j]] {
			return counts[formats[i]] > counts[formats[j]]
		}
		return formats[i] < formats[j]
	})

	if len(formats) > 3 {
		formats = formats[:3]
	}
	return formats
}

// lastActive returns the most recent activity timestamp in history.
func lastActive(history []WatchEntry) time.Time {
	var last time.Time
	for i := range history {
		e := history[i]
		for _, ts := range []time.Time{e.UpdatedAt, e.CompletedAt, e.StartedAt, e.CreatedAt} {
			if ts.After(last) {
				last = ts
			}
		}
	}
	return last
}

// median returns the median of values, or 0 for an empty slice.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// hasAnyTag reports whether tags contains any of wanted, case-insensitively.
func hasAnyTag(tags, wanted []string) bool {
	for _, t := range tags {
		for _, w := range wanted {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
