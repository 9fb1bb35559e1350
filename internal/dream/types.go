// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"context"
	"time"
)

// SchemaVersion is the current profile schema version. Profiles persisted
// with an older version are upgraded field-by-field on load.
const SchemaVersion = 2

// Profile is the per-user aggregate root: everything the engine has learned
// about one user. Created by Bootstrap, loaded and saved keyed by UserID,
// and mutated exclusively through the update pipeline.
type Profile struct {
	UserID  string `json:"user_id"`
	Version int    `json:"version"`

	Weights  Weights            `json:"weights"`
	Metrics  BehavioralMetrics  `json:"metrics"`
	Rules    SemanticRules      `json:"rules"`
	Clusters DiscoveredClusters `json:"clusters"`
	Learning LearningHistory    `json:"learning"`

	// ConfidenceLevel grows by a fixed increment per feedback event,
	// clamped to [0, 1].
	ConfidenceLevel float64 `json:"confidence_level"`

	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// Weights is the learned coefficient vector applied to candidate features.
// The six learnable weights (CF through Interaction, excluding
// NegativeSignal) sum to 1.0 after every adaptation; NegativeSignal is a
// penalty weight bounded separately and excluded from normalization.
type Weights struct {
	// CF weights the collaborative-filtering feature.
	CF float64 `json:"cf"`

	// Content weights genre/tag/studio content similarity.
	Content float64 `json:"content"`

	// Freshness weights recently-aired content.
	Freshness float64 `json:"freshness"`

	// Relations weights sequel/prequel/franchise connections.
	Relations float64 `json:"relations"`

	// Feedback weights similarity to explicitly liked items.
	Feedback float64 `json:"feedback"`

	// Interaction weights implicit click/view signals.
	Interaction float64 `json:"interaction"`

	// NegativeSignal weights similarity to disliked items. It is
	// subtracted from the base score rather than added.
	NegativeSignal float64 `json:"negative_signal"`

	// LearningRate is the current adaptation step size, set from the
	// schedule by cumulative feedback count.
	LearningRate float64 `json:"learning_rate"`

	LastAdjusted time.Time `json:"last_adjusted"`
}

// FeatureVector carries the precomputed raw features for one candidate, as
// produced by the upstream candidate generation pipeline. All components are
// expected in [0, 1].
type FeatureVector struct {
	CF             float64 `json:"cf"`
	Content        float64 `json:"content"`
	Freshness      float64 `json:"freshness"`
	Relations      float64 `json:"relations"`
	Feedback       float64 `json:"feedback"`
	Interaction    float64 `json:"interaction"`
	NegativeSignal float64 `json:"negative_signal"`
}

// Candidate is one item to score: media attributes plus the aggregated
// feature vector from the candidate source.
type Candidate struct {
	MediaID  int           `json:"media_id"`
	Title    string        `json:"title,omitempty"`
	Genres   []string      `json:"genres,omitempty"`
	Tags     []string      `json:"tags,omitempty"`
	Studio   string        `json:"studio,omitempty"`
	Year     int           `json:"year,omitempty"`
	Episodes int           `json:"episodes,omitempty"`
	Format   string        `json:"format,omitempty"`
	Features FeatureVector `json:"features"`
}

// BehavioralMetrics is a derived, wholesale-replaceable snapshot of watching
// behavior. It is recomputed from the full watch history, never patched
// incrementally.
type BehavioralMetrics struct {
	// BingeVelocity is the median episodes/day across completed entries.
	BingeVelocity float64 `json:"binge_velocity"`

	// CompletionRate is completed/started; DropRate is dropped/started.
	CompletionRate float64 `json:"completion_rate"`
	DropRate       float64 `json:"drop_rate"`

	// Drop forensics: counts of dropped entries bucketed by normalized
	// progress at the time of dropping.
	VibeCheckDrops int     `json:"vibe_check_drops"` // dropped before 25%
	BoredomDrops   int     `json:"boredom_drops"`    // dropped between 25% and 67%
	BurnoutDrops   int     `json:"burnout_drops"`    // dropped after 67%
	AvgDropPoint   float64 `json:"avg_drop_point"`

	// Tolerance scores in [0, 1]; 0.5 is the no-data neutral default.
	OldContentTolerance float64 `json:"old_content_tolerance"`
	LongSeriesTolerance float64 `json:"long_series_tolerance"`
	SlowPaceTolerance   float64 `json:"slow_pace_tolerance"`

	// EngagementScore is a coarse overall engagement estimate in [0, 1].
	EngagementScore float64 `json:"engagement_score"`

	// PreferredFormats lists formats by descending completion volume.
	PreferredFormats []string `json:"preferred_formats,omitempty"`

	// LastActive is the most recent history update seen.
	LastActive time.Time `json:"last_active"`

	ComputedAt time.Time `json:"computed_at"`
}

// SemanticRules are the hard and soft veto lists applied during scoring.
// Grown by feedback (tag whitelist) and by statistical inference over
// history (studio/genre listing).
type SemanticRules struct {
	TagBlacklist    []string `json:"tag_blacklist,omitempty"`
	TagWhitelist    []string `json:"tag_whitelist,omitempty"`
	GenreBlacklist  []string `json:"genre_blacklist,omitempty"`
	GenreWhitelist  []string `json:"genre_whitelist,omitempty"`
	StudioBlacklist []string `json:"studio_blacklist,omitempty"`
	StudioWhitelist []string `json:"studio_whitelist,omitempty"`

	// MinYear soft-vetoes older content; zero disables.
	MinYear int `json:"min_year,omitempty"`

	// MaxEpisodes soft-vetoes longer series; zero disables.
	MaxEpisodes int `json:"max_episodes,omitempty"`

	PreferredClusters []string `json:"preferred_clusters,omitempty"`
	AvoidedClusters   []string `json:"avoided_clusters,omitempty"`
}

// TagCluster is one discovered taste cluster.
type TagCluster struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`

	// Coherence is the mean pairwise co-occurrence within the cluster,
	// in [0, 1].
	Coherence float64 `json:"coherence"`

	// UserAffinity is a signed [-1, 1] measure of how much the user likes
	// items matching this cluster. Nudged on each relevant feedback event;
	// everything else in the cluster is rebuilt wholesale.
	UserAffinity float64 `json:"user_affinity"`

	// SampleMedia lists a few media IDs that matched this cluster.
	SampleMedia []int `json:"sample_media,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DiscoveredClusters is the bounded cluster collection plus retraining
// bookkeeping. Clusters are rebuilt wholesale by retraining; only affinities
// are nudged in place.
type DiscoveredClusters struct {
	Clusters []TagCluster `json:"clusters,omitempty"`

	// Version increments on every successful retraining. Retraining
	// refuses to write back if the version moved underneath it.
	Version int `json:"version"`

	// TrainingDataSize is the combined like+dislike count of the last
	// training run. Zero when below the data floor.
	TrainingDataSize int `json:"training_data_size"`

	// FeedbackSinceTraining counts feedback events since the last
	// retraining; retraining triggers when it reaches the configured
	// interval.
	FeedbackSinceTraining int `json:"feedback_since_training"`

	LastTrainedAt time.Time `json:"last_trained_at"`
}

// LearningEventType enumerates audit log entry kinds.
type LearningEventType string

// Learning event types.
const (
	EventFeedbackReceived   LearningEventType = "feedback_received"
	EventWeightsAdjusted    LearningEventType = "weights_adjusted"
	EventClusterTrained     LearningEventType = "cluster_trained"
	EventRuleAdded          LearningEventType = "rule_added"
	EventRuleRemoved        LearningEventType = "rule_removed"
	EventMigrationCompleted LearningEventType = "migration_completed"
	EventProfileReset       LearningEventType = "profile_reset"
)

// LearningEvent is one append-only audit record. The log exists for audit
// and trigger counting, not replay-based reconstruction.
type LearningEvent struct {
	ID        string            `json:"id"`
	Type      LearningEventType `json:"type"`
	MediaID   int               `json:"media_id,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// LearningHistory is the capped FIFO event log plus cumulative counters
// that must survive pruning.
type LearningHistory struct {
	Events []LearningEvent `json:"events,omitempty"`

	// TotalFeedback counts all feedback events ever processed. Drives the
	// learning-rate schedule and the snapshot/retrain triggers, so it is
	// kept separately from the pruned event slice.
	TotalFeedback int `json:"total_feedback"`

	// TotalEvents counts all learning events ever appended.
	TotalEvents int `json:"total_events"`
}

// FeedbackType is the explicit signal polarity.
type FeedbackType string

// Feedback types. FeedbackNone represents cleared/withdrawn feedback.
const (
	FeedbackLike    FeedbackType = "like"
	FeedbackDislike FeedbackType = "dislike"
	FeedbackNone    FeedbackType = ""
)

// MediaSnapshot is an optional attribute snapshot attached to feedback,
// enabling learning when the original prediction was not cached (e.g. after
// a restart).
type MediaSnapshot struct {
	Genres   []string `json:"genres,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Studio   string   `json:"studio,omitempty"`
	Year     int      `json:"year,omitempty"`
	Episodes int      `json:"episodes,omitempty"`
	Format   string   `json:"format,omitempty"`
}

// Prediction is the score breakdown computed at recommendation time,
// carried back with feedback to enable supervised-style learning.
type Prediction struct {
	Score    float64       `json:"score"`
	Features FeatureVector `json:"features"`
}

// FeedbackEvent is the input to the update pipeline. It is consumed, not
// stored as-is; its effects land in the profile.
type FeedbackEvent struct {
	MediaID   int          `json:"media_id" validate:"required"`
	Type      FeedbackType `json:"type" validate:"oneof=like dislike ''"`
	Reasons   []Reason     `json:"reasons,omitempty"`
	Timestamp time.Time    `json:"timestamp"`

	// Prediction, when present, is the cached score breakdown from
	// recommendation time.
	Prediction *Prediction `json:"prediction,omitempty"`

	// Media, when present, lets the pipeline synthesize a prediction and
	// apply tag effects without a media lookup.
	Media *MediaSnapshot `json:"media,omitempty"`
}

// Breakdown is the full deterministic scoring result for one candidate.
type Breakdown struct {
	MediaID int `json:"media_id"`

	BaseScore          float64 `json:"base_score"`
	VetoMultiplier     float64 `json:"veto_multiplier"`
	ClusterBoost       float64 `json:"cluster_boost"`
	BehavioralModifier float64 `json:"behavioral_modifier"`
	ToleranceModifier  float64 `json:"tolerance_modifier"`

	// RawScore is the product of all stages before soft-cap compression.
	RawScore float64 `json:"raw_score"`

	// DreamScore is the final compressed score in [0, 1].
	DreamScore float64 `json:"dream_score"`

	// Confidence is a 0-100 display value, not a probability.
	Confidence float64 `json:"confidence"`

	// Reasons are human-readable explanations. Side output only; they
	// never influence the score.
	Reasons []string `json:"reasons,omitempty"`

	Features FeatureVector `json:"features"`
}

// ScoredCandidate pairs a candidate with its breakdown for ranked output.
type ScoredCandidate struct {
	Candidate Candidate `json:"candidate"`
	Breakdown Breakdown `json:"breakdown"`
}

// WatchStatus enumerates watch-history entry states.
type WatchStatus string

// Watch statuses.
const (
	StatusCompleted WatchStatus = "completed"
	StatusWatching  WatchStatus = "watching"
	StatusDropped   WatchStatus = "dropped"
	StatusPaused    WatchStatus = "paused"
	StatusPlanned   WatchStatus = "planned"
)

// WatchEntry is one watch-history record from the media tracker.
type WatchEntry struct {
	MediaID  int         `json:"media_id"`
	Status   WatchStatus `json:"status"`
	Progress int         `json:"progress"`
	Episodes int         `json:"episodes"`

	// Score is the user's rating on a 0-10 scale; zero means unrated.
	Score float64 `json:"score,omitempty"`

	Format string   `json:"format,omitempty"`
	Year   int      `json:"year,omitempty"`
	Studio string   `json:"studio,omitempty"`
	Genres []string `json:"genres,omitempty"`
	Tags   []string `json:"tags,omitempty"`

	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// MediaInfo is the minimal metadata the clustering engine needs per item.
type MediaInfo struct {
	Genres []string `json:"genres,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// MediaLookup resolves media IDs to genre/tag metadata. Lookup failures for
// individual items degrade gracefully: the item is skipped, never aborting
// the whole operation.
type MediaLookup interface {
	Lookup(ctx context.Context, mediaID int) (MediaInfo, error)
}

// FeedbackExport is the bulk like/dislike export from the feedback store.
type FeedbackExport struct {
	Likes    []int `json:"likes"`
	Dislikes []int `json:"dislikes"`
}

// FeedbackStore exposes the user's accumulated explicit feedback.
type FeedbackStore interface {
	Export(ctx context.Context, userID string) (FeedbackExport, error)
}
