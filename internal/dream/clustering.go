// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DiscoverClusters rebuilds the taste-cluster set from the user's liked and
// disliked item sets. Hierarchical agglomerative clustering runs
// independently on the liked and disliked tag co-occurrence matrices; user
// affinity is then computed for every surviving cluster over the entire
// feedback set, so a dislike-sourced cluster can never be mislabeled
// positive just because of where it was discovered.
//
// Fewer than cfg.Clustering.MinFeedback combined feedback items returns an
// empty cluster set with TrainingDataSize zero. This is an explicit
// low-data guard, not an error. Individual media lookup failures skip the
// item and never abort the run.
func DiscoverClusters(ctx context.Context, cfg *Config, feedback FeedbackExport, lookup MediaLookup) (DiscoveredClusters, error) {
	out := DiscoveredClusters{}

	combined := len(feedback.Likes) + len(feedback.Dislikes)
	if combined < cfg.Clustering.MinFeedback {
		return out, nil
	}

	limiter := trainingLimiter(cfg)
	likedTags, err := fetchItemTags(ctx, feedback.Likes, lookup, limiter)
	if err != nil {
		return out, err
	}
	dislikedTags, err := fetchItemTags(ctx, feedback.Dislikes, lookup, limiter)
	if err != nil {
		return out, err
	}

	now := time.Now()
	clusters := make([]TagCluster, 0, 2*cfg.Clustering.TargetClusters)
	clusters = append(clusters, clusterTagSets(cfg, likedTags, now)...)
	clusters = append(clusters, clusterTagSets(cfg, dislikedTags, now)...)

	for i := range clusters {
		attachAffinity(cfg, &clusters[i], likedTags, dislikedTags)
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Coherence != clusters[j].Coherence {
			return clusters[i].Coherence > clusters[j].Coherence
		}
		return clusters[i].ID < clusters[j].ID
	})

	out.Clusters = clusters
	out.TrainingDataSize = combined
	out.LastTrainedAt = now
	return out, nil
}

// itemTags pairs a media ID with its normalized tag set.
type itemTags struct {
	mediaID int
	tags    []string
}

// trainingLimiter builds the retraining lookup throttle, allowing one
// second of headroom as burst. A zero rate disables throttling.
func trainingLimiter(cfg *Config) *rate.Limiter {
	rps := cfg.Clustering.LookupRatePerSecond
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// fetchItemTags resolves tags for each item, skipping lookup failures.
// Only context cancellation aborts the whole fetch.
func fetchItemTags(ctx context.Context, ids []int, lookup MediaLookup, limiter *rate.Limiter) ([]itemTags, error) {
	out := make([]itemTags, 0, len(ids))
	for _, id := range ids {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := lookup.Lookup(ctx, id)
		if err != nil {
			continue // degrade gracefully: item is excluded from training
		}

		tags := normalizeTags(info.Tags)
		if len(tags) == 0 {
			continue
		}
		out = append(out, itemTags{mediaID: id, tags: tags})
	}
	return out, nil
}

// normalizeTags lowercases and deduplicates tags.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// coMatrix is a tag co-occurrence matrix over one feedback polarity.
type coMatrix struct {
	freq map[string]int
	co   map[[2]string]int
}

// buildCoMatrix counts tag frequencies and pairwise co-occurrences.
func buildCoMatrix(items []itemTags) *coMatrix {
	m := &coMatrix{
		freq: make(map[string]int),
		co:   make(map[[2]string]int),
	}
	for _, item := range items {
		for _, t := range item.tags {
			m.freq[t]++
		}
		for i := 0; i < len(item.tags); i++ {
			for j := i + 1; j < len(item.tags); j++ {
				m.co[pairKey(item.tags[i], item.tags[j])]++
			}
		}
	}
	return m
}

func pairKey(a, b string) [2]string {
	if a > b {
		a, b = b, a
	}
	return [2]string{a, b}
}

// similarity is the Jaccard-style pairwise co-occurrence, normalized by the
// individual tag frequencies.
func (m *coMatrix) similarity(a, b string) float64 {
	co := m.co[pairKey(a, b)]
	if co == 0 {
		return 0
	}
	union := m.freq[a] + m.freq[b] - co
	if union <= 0 {
		return 0
	}
	return float64(co) / float64(union)
}

// clusterTagSets runs hierarchical agglomerative clustering over one
// polarity's tag co-occurrence matrix.
func clusterTagSets(cfg *Config, items []itemTags, now time.Time) []TagCluster {
	matrix := buildCoMatrix(items)

	// One seed cluster per sufficiently-frequent tag.
	groups := make([][]string, 0, len(matrix.freq))
	for tag, n := range matrix.freq {
		if n >= cfg.Clustering.MinTagFrequency {
			groups = append(groups, []string{tag})
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })

	groups = mergeGroups(cfg, matrix, groups)

	clusters := make([]TagCluster, 0, len(groups))
	for _, tags := range groups {
		if len(tags) < cfg.Clustering.MinClusterSize {
			continue
		}

		coherence := meanPairwiseSimilarity(matrix, tags)
		if coherence < cfg.Clustering.CoherenceThreshold {
			continue
		}

		sort.Strings(tags)
		clusters = append(clusters, TagCluster{
			ID:        clusterID(tags),
			Name:      clusterName(matrix, tags),
			Tags:      tags,
			Coherence: coherence,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return clusters
}

// mergeGroups repeatedly merges the pair of clusters with the highest
// average-linkage similarity until the target count is reached or the best
// remaining similarity drops below the stop threshold.
func mergeGroups(cfg *Config, matrix *coMatrix, groups [][]string) [][]string {
	for len(groups) > cfg.Clustering.TargetClusters {
		bestI, bestJ := -1, -1
		bestSim := 0.0

		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				sim := averageLinkage(matrix, groups[i], groups[j])
				if sim > bestSim {
					bestSim, bestI, bestJ = sim, i, j
				}
			}
		}

		if bestI < 0 || bestSim < cfg.Clustering.MergeStopSimilarity {
			break
		}

		groups[bestI] = append(groups[bestI], groups[bestJ]...)
		groups = append(groups[:bestJ], groups[bestJ+1:]...)
	}
	return groups
}

// averageLinkage is the mean pairwise similarity between two tag groups.
func averageLinkage(matrix *coMatrix, a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var sum float64
	for _, ta := range a {
		for _, tb := range b {
			sum += matrix.similarity(ta, tb)
		}
	}
	return sum / float64(len(a)*len(b))
}

// meanPairwiseSimilarity is the cluster coherence measure.
func meanPairwiseSimilarity(matrix *coMatrix, tags []string) float64 {
	if len(tags) < 2 {
		return 0
	}

	var sum float64
	var pairs int
	for i := 0; i < len(tags); i++ {
		for j := i + 1; j < len(tags); j++ {
			sum += matrix.similarity(tags[i], tags[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// attachAffinity computes the signed user affinity for a cluster over the
// entire feedback set: (likes - dislikes) / sqrt(matched + 1), clamped to
// [-1, 1]. Matching requires the configured minimum tag overlap.
func attachAffinity(cfg *Config, c *TagCluster, liked, disliked []itemTags) {
	clusterSet := make(map[string]struct{}, len(c.Tags))
	for _, t := range c.Tags {
		clusterSet[t] = struct{}{}
	}

	matches := func(tags []string) bool {
		overlap := 0
		for _, t := range tags {
			if _, ok := clusterSet[t]; ok {
				overlap++
				if overlap >= cfg.Clustering.AffinityMatchMinTags {
					return true
				}
			}
		}
		return false
	}

	var likeMatches, dislikeMatches int
	samples := make([]int, 0, cfg.Clustering.MaxSampleMedia)
	for _, item := range liked {
		if matches(item.tags) {
			likeMatches++
			if len(samples) < cfg.Clustering.MaxSampleMedia {
				samples = append(samples, item.mediaID)
			}
		}
	}
	for _, item := range disliked {
		if matches(item.tags) {
			dislikeMatches++
			if len(samples) < cfg.Clustering.MaxSampleMedia {
				samples = append(samples, item.mediaID)
			}
		}
	}

	total := likeMatches + dislikeMatches
	affinity := float64(likeMatches-dislikeMatches) / math.Sqrt(float64(total)+1)
	c.UserAffinity = clamp(affinity, -1, 1)
	c.SampleMedia = samples
}

// clusterID derives a stable identifier from the sorted member tags, so a
// cluster rediscovered across retrains keeps its identity in rule lists.
func clusterID(sorted []string) string {
	h := fnv.New32a()
	for _, t := range sorted {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("c%08x", h.Sum32())
}

// clusterName labels a cluster by its most frequent tags.
func clusterName(matrix *coMatrix, tags []string) string {
	top := append([]string(nil), tags...)
	sort.Slice(top, func(i, j int) bool {
		if matrix.freq[top[i]] != matrix.freq[top[j]] {
			return matrix.freq[top[i]] > matrix.freq[top[j]]
		}
		return top[i] < top[j]
	})
	if len(top) > 3 {
		top = top[:3]
	}
	return strings.Join(top, " / ")
}

// MatchesCluster reports whether a candidate shares at least minTags tags
// with the cluster. Used by scoring and by the affinity nudge on feedback.
func MatchesCluster(c TagCluster, candidateTags []string, minTags int) bool {
	clusterSet := make(map[string]struct{}, len(c.Tags))
	for _, t := range c.Tags {
		clusterSet[t] = struct{}{}
	}

	overlap := 0
	for _, t := range normalizeTags(candidateTags) {
		if _, ok := clusterSet[t]; ok {
			overlap++
			if overlap >= minTags {
				return true
			}
		}
	}
	return false
}
