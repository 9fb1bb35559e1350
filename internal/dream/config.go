// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"fmt"
)

// Config contains all tunable parameters of the engine. The scoring nudge
// magnitudes and thresholds are deliberately configuration rather than
// hard-coded constants: none of them is load-bearing precision.
type Config struct {
	// Weights contains per-component weight bounds and starting values.
	Weights WeightsConfig `json:"weights"`

	// Scoring contains veto multipliers, cluster boost and soft-cap
	// parameters.
	Scoring ScoringConfig `json:"scoring"`

	// Behavioral contains the multiplicative nudges derived from
	// behavioral metrics.
	Behavioral BehavioralConfig `json:"behavioral"`

	// Learning contains the weight adaptation parameters.
	Learning LearningConfig `json:"learning"`

	// Clustering contains the taste-cluster discovery parameters.
	Clustering ClusteringConfig `json:"clustering"`

	// Lifecycle contains event log, snapshot and trigger parameters.
	Lifecycle LifecycleConfig `json:"lifecycle"`
}

// WeightBound is a per-component [Min, Max] range with a starting value.
type WeightBound struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Initial float64 `json:"initial"`
}

// WeightsConfig bounds each weight component independently. The six
// learnable components are renormalized to sum to 1.0 after every
// adaptation; NegativeSignal is clamped separately.
type WeightsConfig struct {
	CF             WeightBound `json:"cf"`
	Content        WeightBound `json:"content"`
	Freshness      WeightBound `json:"freshness"`
	Relations      WeightBound `json:"relations"`
	Feedback       WeightBound `json:"feedback"`
	Interaction    WeightBound `json:"interaction"`
	NegativeSignal WeightBound `json:"negative_signal"`
}

// ScoringConfig contains deterministic scoring parameters.
type ScoringConfig struct {
	// TagBlacklistVeto is the hard-veto multiplier for a blacklisted tag
	// match. Short-circuits all soft multipliers. Default: 0.05.
	TagBlacklistVeto float64 `json:"tag_blacklist_veto"`

	// GenreBlacklistVeto is the hard-veto multiplier for a blacklisted
	// genre match. Default: 0.10.
	GenreBlacklistVeto float64 `json:"genre_blacklist_veto"`

	// StudioBlacklistPenalty is the soft multiplier for a blacklisted
	// studio. Default: 0.30.
	StudioBlacklistPenalty float64 `json:"studio_blacklist_penalty"`

	// MinYearPenalty is the soft multiplier for below-minimum-year
	// content. Default: 0.40.
	MinYearPenalty float64 `json:"min_year_penalty"`

	// MaxEpisodesPenalty is the soft multiplier for
	// above-maximum-episodes content. Default: 0.50.
	MaxEpisodesPenalty float64 `json:"max_episodes_penalty"`

	// StudioWhitelistBonus is the soft multiplier for a whitelisted
	// studio. Default: 1.15.
	StudioWhitelistBonus float64 `json:"studio_whitelist_bonus"`

	// GenreWhitelistBonus is added to the multiplier per whitelisted
	// genre match. Default: 0.05.
	GenreWhitelistBonus float64 `json:"genre_whitelist_bonus"`

	// TagWhitelistBonus is added per whitelisted tag match, capped by
	// TagWhitelistBonusCap. Defaults: 0.05 and 0.20.
	TagWhitelistBonus    float64 `json:"tag_whitelist_bonus"`
	TagWhitelistBonusCap float64 `json:"tag_whitelist_bonus_cap"`

	// ClusterMatchMinTags is the minimum tag overlap for a candidate to
	// match a cluster. Default: 2.
	ClusterMatchMinTags int `json:"cluster_match_min_tags"`

	// ClusterAffinityFactor scales cluster affinity into the boost
	// multiplier 1 + affinity*factor. Default: 0.3.
	ClusterAffinityFactor float64 `json:"cluster_affinity_factor"`

	// ClusterBoostMin/Max clamp the accumulated cluster boost.
	// Defaults: 0.5 and 1.5.
	ClusterBoostMin float64 `json:"cluster_boost_min"`
	ClusterBoostMax float64 `json:"cluster_boost_max"`

	// SoftCapThreshold is the raw score above which exponential
	// compression applies. Default: 0.8.
	SoftCapThreshold float64 `json:"soft_cap_threshold"`

	// SoftCapRate is the exponent rate of the compression. Default: 4.0.
	SoftCapRate float64 `json:"soft_cap_rate"`
}

// BehavioralConfig contains behavioral and tolerance nudge magnitudes. All
// nudges are small multiplicative adjustments, never dominant.
type BehavioralConfig struct {
	// ShortSeriesEpisodes and LongSeriesEpisodes split candidates into
	// length classes for the binge/drop nudges. Defaults: 13 and 50.
	ShortSeriesEpisodes int `json:"short_series_episodes"`
	LongSeriesEpisodes  int `json:"long_series_episodes"`

	// HighBingeVelocity is the episodes/day above which the user counts
	// as a binge watcher. Default: 3.0.
	HighBingeVelocity float64 `json:"high_binge_velocity"`

	// BingeLongBonus favors long series for binge watchers; BingeShortBonus
	// favors short series for low-velocity users. Defaults: 0.08 each.
	BingeLongBonus  float64 `json:"binge_long_bonus"`
	BingeShortBonus float64 `json:"binge_short_bonus"`

	// LowCompletionPenalty applies to long series when completion rate is
	// below LowCompletionRate. Defaults: 0.10 and 0.5.
	LowCompletionPenalty float64 `json:"low_completion_penalty"`
	LowCompletionRate    float64 `json:"low_completion_rate"`

	// BurnoutPenalty applies to long series for users whose drops skew
	// late. Default: 0.05.
	BurnoutPenalty float64 `json:"burnout_penalty"`

	// VibeCheckPenalty applies to long series for users whose drops skew
	// early: a big commitment is the riskiest recommendation for a
	// first-episode dropper. Default: 0.03.
	VibeCheckPenalty float64 `json:"vibe_check_penalty"`

	// FormatMatchBonus applies when the candidate format is among the
	// user's preferred formats. Default: 0.05.
	FormatMatchBonus float64 `json:"format_match_bonus"`

	// InactivityDays and InactivityShortBonus favor short content after a
	// long gap in activity. Defaults: 30 and 0.05.
	InactivityDays       int     `json:"inactivity_days"`
	InactivityShortBonus float64 `json:"inactivity_short_bonus"`

	// OldContentYear is the cutoff below which content counts as old.
	// Default: 2010.
	OldContentYear int `json:"old_content_year"`

	// ToleranceStrength scales how strongly the old/long/slow tolerance
	// scores modulate the corresponding adjustment. Default: 0.15.
	ToleranceStrength float64 `json:"tolerance_strength"`

	// SlowPaceTags marks a candidate as slow-paced when any is present.
	SlowPaceTags []string `json:"slow_pace_tags"`
}

// LearningConfig contains weight adaptation parameters.
type LearningConfig struct {
	// MaxDelta clamps each per-component gradient step. Default: 0.05.
	MaxDelta float64 `json:"max_delta"`

	// The learning-rate schedule by cumulative feedback count: faster
	// adaptation early, conservative once the model has seen enough data.
	// Defaults: <10 events 0.05, <50 events 0.02, else 0.01.
	EarlyEventCount int     `json:"early_event_count"`
	EarlyRate       float64 `json:"early_rate"`
	MidEventCount   int     `json:"mid_event_count"`
	MidRate         float64 `json:"mid_rate"`
	MatureRate      float64 `json:"mature_rate"`

	// AffinityNudge is the per-event nudge applied to matching cluster
	// affinities. Default: 0.05.
	AffinityNudge float64 `json:"affinity_nudge"`

	// NormalizeEpsilon is the tolerance on the learnable weight sum.
	NormalizeEpsilon float64 `json:"normalize_epsilon"`
}

// ClusteringConfig contains taste-cluster discovery parameters.
type ClusteringConfig struct {
	// MinFeedback is the combined like+dislike floor below which
	// discovery returns an empty set. Default: 10.
	MinFeedback int `json:"min_feedback"`

	// MinTagFrequency is the minimum occurrences for a tag to seed a
	// cluster. Default: 2.
	MinTagFrequency int `json:"min_tag_frequency"`

	// TargetClusters stops merging once this many clusters remain.
	// Default: 8.
	TargetClusters int `json:"target_clusters"`

	// MergeStopSimilarity stops merging when the best remaining
	// average-linkage similarity drops below it. Default: 0.2.
	MergeStopSimilarity float64 `json:"merge_stop_similarity"`

	// MinClusterSize discards clusters smaller than this. Default: 3.
	MinClusterSize int `json:"min_cluster_size"`

	// CoherenceThreshold discards clusters with mean pairwise
	// co-occurrence below it. Default: 0.5.
	CoherenceThreshold float64 `json:"coherence_threshold"`

	// AffinityMatchMinTags is the tag overlap needed for a feedback item
	// to count toward cluster affinity. Default: 2.
	AffinityMatchMinTags int `json:"affinity_match_min_tags"`

	// MaxSampleMedia bounds the sample list kept per cluster. Default: 5.
	MaxSampleMedia int `json:"max_sample_media"`

	// LookupRatePerSecond throttles media lookups during retraining;
	// zero disables throttling. Default: 25.
	LookupRatePerSecond float64 `json:"lookup_rate_per_second"`
}

// LifecycleConfig contains event log, snapshot and trigger parameters.
type LifecycleConfig struct {
	// MaxLearningEvents caps the audit log, FIFO-pruned. Default: 500.
	MaxLearningEvents int `json:"max_learning_events"`

	// SnapshotInterval writes a recovery snapshot every Nth learning
	// event; SnapshotSlots bounds the rolling ring. Defaults: 10 and 5.
	SnapshotInterval int `json:"snapshot_interval"`
	SnapshotSlots    int `json:"snapshot_slots"`

	// RetrainInterval triggers cluster retraining every Nth feedback
	// event since the last training. Default: 20.
	RetrainInterval int `json:"retrain_interval"`

	// RuleInferenceInterval re-runs statistical studio/genre inference
	// every Nth feedback event. Default: 50.
	RuleInferenceInterval int `json:"rule_inference_interval"`

	// ConfidenceIncrement is added to the profile confidence per feedback
	// event, clamped to 1.0. Default: 0.01.
	ConfidenceIncrement float64 `json:"confidence_increment"`
}

// DefaultConfig returns a Config with the engine's standard tuning.
func DefaultConfig() *Config {
	return &Config{
		Weights: WeightsConfig{
			CF:             WeightBound{Min: 0.20, Max: 0.60, Initial: 0.30},
			Content:        WeightBound{Min: 0.10, Max: 0.40, Initial: 0.25},
			Freshness:      WeightBound{Min: 0.02, Max: 0.15, Initial: 0.10},
			Relations:      WeightBound{Min: 0.02, Max: 0.15, Initial: 0.10},
			Feedback:       WeightBound{Min: 0.05, Max: 0.30, Initial: 0.15},
			Interaction:    WeightBound{Min: 0.02, Max: 0.15, Initial: 0.10},
			NegativeSignal: WeightBound{Min: 0.05, Max: 0.40, Initial: 0.15},
		},
		Scoring: ScoringConfig{
			TagBlacklistVeto:       0.05,
			GenreBlacklistVeto:     0.10,
			StudioBlacklistPenalty: 0.30,
			MinYearPenalty:         0.40,
			MaxEpisodesPenalty:     0.50,
			StudioWhitelistBonus:   1.15,
			GenreWhitelistBonus:    0.05,
			TagWhitelistBonus:      0.05,
			TagWhitelistBonusCap:   0.20,
			ClusterMatchMinTags:    2,
			ClusterAffinityFactor:  0.3,
			ClusterBoostMin:        0.5,
			ClusterBoostMax:        1.5,
			SoftCapThreshold:       0.8,
			SoftCapRate:            4.0,
		},
		Behavioral: BehavioralConfig{
			ShortSeriesEpisodes:  13,
			LongSeriesEpisodes:   50,
			HighBingeVelocity:    3.0,
			BingeLongBonus:       0.08,
			BingeShortBonus:      0.08,
			LowCompletionPenalty: 0.10,
			LowCompletionRate:    0.5,
			BurnoutPenalty:       0.05,
			VibeCheckPenalty:     0.03,
			FormatMatchBonus:     0.05,
			InactivityDays:       30,
			InactivityShortBonus: 0.05,
			OldContentYear:       2010,
			ToleranceStrength:    0.15,
			SlowPaceTags:         []string{"slice of life", "iyashikei", "slow pace", "episodic"},
		},
		Learning: LearningConfig{
			MaxDelta:         0.05,
			EarlyEventCount:  10,
			EarlyRate:        0.05,
			MidEventCount:    50,
			MidRate:          0.02,
			MatureRate:       0.01,
			AffinityNudge:    0.05,
			NormalizeEpsilon: 1e-6,
		},
		Clustering: ClusteringConfig{
			MinFeedback:          10,
			MinTagFrequency:      2,
			TargetClusters:       8,
			MergeStopSimilarity:  0.2,
			MinClusterSize:       3,
			CoherenceThreshold:   0.5,
			AffinityMatchMinTags: 2,
			MaxSampleMedia:       5,
			LookupRatePerSecond:  25,
		},
		Lifecycle: LifecycleConfig{
			MaxLearningEvents:     500,
			SnapshotInterval:      10,
			SnapshotSlots:         5,
			RetrainInterval:       20,
			RuleInferenceInterval: 50,
			ConfidenceIncrement:   0.01,
		},
	}
}

// Validate checks the configuration for errors.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	for _, b := range []struct {
		name  string
		bound WeightBound
	}{
		{"cf", c.Weights.CF},
		{"content", c.Weights.Content},
		{"freshness", c.Weights.Freshness},
		{"relations", c.Weights.Relations},
		{"feedback", c.Weights.Feedback},
		{"interaction", c.Weights.Interaction},
		{"negative_signal", c.Weights.NegativeSignal},
	} {
		if b.bound.Min < 0 || b.bound.Max > 1 || b.bound.Min > b.bound.Max {
			return fmt.Errorf("weights.%s: invalid bound [%f, %f]", b.name, b.bound.Min, b.bound.Max)
		}
		if b.bound.Initial < b.bound.Min || b.bound.Initial > b.bound.Max {
			return fmt.Errorf("weights.%s: initial %f outside [%f, %f]", b.name, b.bound.Initial, b.bound.Min, b.bound.Max)
		}
	}

	if c.Scoring.TagBlacklistVeto <= 0 || c.Scoring.TagBlacklistVeto >= 1 {
		return fmt.Errorf("scoring.tag_blacklist_veto must be in (0, 1), got %f", c.Scoring.TagBlacklistVeto)
	}
	if c.Scoring.GenreBlacklistVeto <= 0 || c.Scoring.GenreBlacklistVeto >= 1 {
		return fmt.Errorf("scoring.genre_blacklist_veto must be in (0, 1), got %f", c.Scoring.GenreBlacklistVeto)
	}
	if c.Scoring.SoftCapThreshold <= 0 || c.Scoring.SoftCapThreshold >= 1 {
		return fmt.Errorf("scoring.soft_cap_threshold must be in (0, 1), got %f", c.Scoring.SoftCapThreshold)
	}
	if c.Scoring.SoftCapRate <= 0 {
		return fmt.Errorf("scoring.soft_cap_rate must be positive, got %f", c.Scoring.SoftCapRate)
	}
	if c.Scoring.ClusterBoostMin > 1 || c.Scoring.ClusterBoostMax < 1 {
		return fmt.Errorf("scoring.cluster_boost bounds [%f, %f] must bracket 1.0", c.Scoring.ClusterBoostMin, c.Scoring.ClusterBoostMax)
	}
	if c.Scoring.ClusterMatchMinTags < 1 {
		return fmt.Errorf("scoring.cluster_match_min_tags must be positive, got %d", c.Scoring.ClusterMatchMinTags)
	}

	if c.Learning.MaxDelta <= 0 {
		return fmt.Errorf("learning.max_delta must be positive, got %f", c.Learning.MaxDelta)
	}
	if c.Learning.EarlyEventCount >= c.Learning.MidEventCount {
		return fmt.Errorf("learning schedule: early_event_count %d must be below mid_event_count %d",
			c.Learning.EarlyEventCount, c.Learning.MidEventCount)
	}

	if c.Clustering.MinFeedback < 1 {
		return fmt.Errorf("clustering.min_feedback must be positive, got %d", c.Clustering.MinFeedback)
	}
	if c.Clustering.CoherenceThreshold < 0 || c.Clustering.CoherenceThreshold > 1 {
		return fmt.Errorf("clustering.coherence_threshold must be in [0, 1], got %f", c.Clustering.CoherenceThreshold)
	}
	if c.Clustering.MinClusterSize < 1 {
		return fmt.Errorf("clustering.min_cluster_size must be positive, got %d", c.Clustering.MinClusterSize)
	}

	if c.Lifecycle.MaxLearningEvents < 1 {
		return fmt.Errorf("lifecycle.max_learning_events must be positive, got %d", c.Lifecycle.MaxLearningEvents)
	}
	if c.Lifecycle.SnapshotInterval < 1 || c.Lifecycle.SnapshotSlots < 1 {
		return fmt.Errorf("lifecycle snapshot parameters must be positive, got interval %d slots %d",
			c.Lifecycle.SnapshotInterval, c.Lifecycle.SnapshotSlots)
	}
	if c.Lifecycle.RetrainInterval < 1 {
		return fmt.Errorf("lifecycle.retrain_interval must be positive, got %d", c.Lifecycle.RetrainInterval)
	}
	if c.Lifecycle.ConfidenceIncrement <= 0 || c.Lifecycle.ConfidenceIncrement > 1 {
		return fmt.Errorf("lifecycle.confidence_increment must be in (0, 1], got %f", c.Lifecycle.ConfidenceIncrement)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Behavioral.SlowPaceTags = append([]string(nil), c.Behavioral.SlowPaceTags...)
	return &out
}

// InitialWeights returns the starting weight vector for a fresh profile.
func (c *Config) InitialWeights() Weights {
	w := Weights{
		CF:             c.Weights.CF.Initial,
		Content:        c.Weights.Content.Initial,
		Freshness:      c.Weights.Freshness.Initial,
		Relations:      c.Weights.Relations.Initial,
		Feedback:       c.Weights.Feedback.Initial,
		Interaction:    c.Weights.Interaction.Initial,
		NegativeSignal: c.Weights.NegativeSignal.Initial,
		LearningRate:   c.Learning.EarlyRate,
	}
	return w
}

// LearningRateFor returns the scheduled learning rate for a cumulative
// feedback event count.
func (c *Config) LearningRateFor(eventCount int) float64 {
	switch {
	case eventCount < c.Learning.EarlyEventCount:
		return c.Learning.EarlyRate
	case eventCount < c.Learning.MidEventCount:
		return c.Learning.MidRate
	default:
		return c.Learning.MatureRate
	}
}
