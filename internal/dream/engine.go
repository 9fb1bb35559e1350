// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ayasato/oneiro/internal/metrics"
	"github.com/ayasato/oneiro/internal/storage"
)

// ErrNoProfile is returned when an operation requires an existing profile.
var ErrNoProfile = errors.New("dream: no profile")

// HistorySource exposes the user's watch history from the media tracker.
type HistorySource interface {
	History(ctx context.Context, userID string) ([]WatchEntry, error)
}

// Dependencies are the external data sources the engine consumes. All three
// are required.
type Dependencies struct {
	Lookup   MediaLookup
	Feedback FeedbackStore
	History  HistorySource

	// Guard overrides the lookup breaker/limiter tuning; nil uses
	// DefaultLookupGuardConfig.
	Guard *LookupGuardConfig
}

// Engine is the public surface of the personalization engine. It owns
// per-user serialization: every profile mutation for one user runs in
// order on that user's queue, so the load-modify-save cycle never races.
// Reads (Recommend, Insights, Status) go straight to storage.
type Engine struct {
	cfg       *Config
	lifecycle *Lifecycle
	lookup    *GuardedLookup
	feedback  FeedbackStore
	history   HistorySource
	queues    *queueSet
	bus       *eventBus
	preds     *predictionCache
	logger    zerolog.Logger
}

// NewEngine validates cfg and assembles an engine over the given store and
// dependencies. The media lookup is wrapped with rate limiting and a
// circuit breaker.
func NewEngine(cfg *Config, store storage.Store, deps Dependencies, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if deps.Lookup == nil || deps.Feedback == nil || deps.History == nil {
		return nil, errors.New("dream: lookup, feedback and history dependencies are all required")
	}

	log := logger.With().Str("component", "engine").Logger()

	guard := DefaultLookupGuardConfig()
	if deps.Guard != nil {
		guard = *deps.Guard
	}

	return &Engine{
		cfg:       cfg,
		lifecycle: NewLifecycle(cfg, store, logger),
		lookup:    NewGuardedLookup(deps.Lookup, guard),
		feedback:  deps.Feedback,
		history:   deps.History,
		queues:    newQueueSet(),
		bus:       newEventBus(logger),
		preds:     newPredictionCache(),
		logger:    log,
	}, nil
}

// Recommend scores candidates against the user's profile and returns the
// top topK by final score (all of them when topK <= 0). A missing profile
// scores with cold-start defaults; it is not persisted.
func (e *Engine) Recommend(ctx context.Context, userID string, candidates []Candidate, topK int) ([]ScoredCandidate, error) {
	start := time.Now()

	p, err := e.lifecycle.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	if p == nil {
		p = e.lifecycle.NewDefaultProfile(userID)
	}

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		b := Score(e.cfg, c, p)
		scored = append(scored, ScoredCandidate{Candidate: c, Breakdown: b})
		e.preds.put(userID, c.MediaID, Prediction{Score: b.DreamScore, Features: c.Features})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Breakdown.DreamScore > scored[j].Breakdown.DreamScore
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}

	metrics.ObserveRecommend(start, len(candidates))
	return scored, nil
}

// ProcessFeedback runs the learning pipeline for one feedback event on the
// user's queue and returns the updated profile. A missing profile is
// created with cold-start defaults first. When the event carries no cached
// prediction, the engine attaches the one cached at recommendation time,
// if any.
func (e *Engine) ProcessFeedback(ctx context.Context, userID string, event FeedbackEvent) (*Profile, error) {
	var (
		profile *Profile
		taskErr error
	)

	// The task keeps running after the caller stops waiting, so it must
	// not inherit the caller's cancellation.
	opCtx := context.WithoutCancel(ctx)

	err := e.queues.run(ctx, userID, func() {
		p, err := e.lifecycle.Load(opCtx, userID)
		if err != nil {
			taskErr = err
			return
		}
		if p == nil {
			p = e.lifecycle.NewDefaultProfile(userID)
		}

		if event.Prediction == nil {
			if cached, ok := e.preds.get(userID, event.MediaID); ok {
				event.Prediction = &cached
			}
		}

		res, err := e.lifecycle.Update(opCtx, p, event)
		if err != nil {
			metrics.FeedbackErrors.Inc()
			taskErr = err
			return
		}

		metrics.RecordFeedback(string(event.Type))
		e.bus.publish(TopicFeedbackProcessed, FeedbackProcessedEvent{
			UserID:          userID,
			MediaID:         event.MediaID,
			Type:            event.Type,
			TotalFeedback:   p.Learning.TotalFeedback,
			ConfidenceLevel: p.ConfidenceLevel,
			Timestamp:       time.Now(),
		})

		if res.RuleInferenceDue {
			e.refreshDerived(opCtx, p)
		}
		if res.RetrainDue {
			e.scheduleRetrain(userID, p.Clusters.Version)
		}

		profile = cloneProfile(p)
	})
	if err != nil {
		return nil, fmt.Errorf("process feedback: %w", err)
	}
	if taskErr != nil {
		return nil, fmt.Errorf("process feedback: %w", taskErr)
	}
	return profile, nil
}

// refreshDerived recomputes behavioral metrics and statistically inferred
// rules from the full watch history. Runs inline on the user's queue;
// failures are logged and skipped, the next interval retries.
func (e *Engine) refreshDerived(ctx context.Context, p *Profile) {
	history, err := e.history.History(ctx, p.UserID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", p.UserID).Msg("history fetch failed, skipping derived refresh")
		return
	}

	p.Metrics = ComputeMetrics(e.cfg, history)

	inferred := InferRules(history)
	p.Rules.StudioWhitelist = mergeLists(p.Rules.StudioWhitelist, inferred.StudioWhitelist)
	p.Rules.StudioBlacklist = mergeLists(p.Rules.StudioBlacklist, inferred.StudioBlacklist)
	p.Rules.GenreWhitelist = mergeLists(p.Rules.GenreWhitelist, inferred.GenreWhitelist)

	if err := e.lifecycle.Save(ctx, p); err != nil {
		e.logger.Error().Err(err).Str("user_id", p.UserID).Msg("save after derived refresh")
	}
}

// scheduleRetrain enqueues a cluster retraining run on the same per-user
// queue, fire-and-forget. The caller's version pins the cluster state the
// trigger observed: if another retrain lands first, this run detects the
// moved version and discards itself. Runs from inside a queued task, so it
// must not block on a full buffer; a dropped run re-fires on the next
// feedback event because the training counter stays above the interval.
func (e *Engine) scheduleRetrain(userID string, version int) {
	err := e.queues.trySubmit(userID, func() {
		e.retrain(context.Background(), userID, version)
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("retrain not scheduled")
	}
}

func (e *Engine) retrain(ctx context.Context, userID string, wantVersion int) {
	start := time.Now()

	p, err := e.lifecycle.Load(ctx, userID)
	if err != nil || p == nil {
		metrics.ObserveRetrain(start, "skipped")
		return
	}
	if p.Clusters.Version != wantVersion {
		metrics.ObserveRetrain(start, "stale")
		return
	}

	export, err := e.feedback.Export(ctx, userID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("feedback export failed, retrain aborted")
		metrics.ObserveRetrain(start, "error")
		return
	}

	trained, err := DiscoverClusters(ctx, e.cfg, export, e.lookup)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("cluster training failed")
		metrics.ObserveRetrain(start, "error")
		return
	}

	if trained.TrainingDataSize == 0 {
		// Below the data floor. Keep existing clusters, reset the
		// counter so the trigger does not fire on every event.
		p.Clusters.FeedbackSinceTraining = 0
		if err := e.lifecycle.Save(ctx, p); err != nil {
			e.logger.Error().Err(err).Str("user_id", userID).Msg("save after skipped retrain")
		}
		metrics.ObserveRetrain(start, "skipped")
		return
	}

	trained.Version = p.Clusters.Version + 1
	trained.FeedbackSinceTraining = 0
	p.Clusters = trained

	e.lifecycle.appendEvent(p, LearningEvent{
		Type:   EventClusterTrained,
		Detail: fmt.Sprintf("%d clusters from %d feedback items", len(trained.Clusters), trained.TrainingDataSize),
	})

	if err := e.lifecycle.Save(ctx, p); err != nil {
		e.logger.Error().Err(err).Str("user_id", userID).Msg("save after retrain")
		metrics.ObserveRetrain(start, "error")
		return
	}

	metrics.ClustersDiscovered.Set(float64(len(trained.Clusters)))
	metrics.ObserveRetrain(start, "ok")
	e.bus.publish(TopicClustersTrained, ClustersTrainedEvent{
		UserID:           userID,
		Version:          trained.Version,
		ClusterCount:     len(trained.Clusters),
		TrainingDataSize: trained.TrainingDataSize,
		Timestamp:        time.Now(),
	})

	e.logger.Info().
		Str("user_id", userID).
		Int("version", trained.Version).
		Int("clusters", len(trained.Clusters)).
		Int("training_data", trained.TrainingDataSize).
		Msg("clusters retrained")
}

// Bootstrap builds a fresh profile from the full watch history and feedback
// export, replacing any existing profile after backing it up. Runs on the
// user's queue.
func (e *Engine) Bootstrap(ctx context.Context, userID string) (*Profile, error) {
	history, err := e.history.History(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: fetch history: %w", err)
	}
	export, err := e.feedback.Export(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: fetch feedback: %w", err)
	}

	opCtx := context.WithoutCancel(ctx)

	var (
		profile *Profile
		taskErr error
	)
	err = e.queues.run(ctx, userID, func() {
		p, err := e.lifecycle.Bootstrap(opCtx, userID, history, export, e.lookup)
		if err != nil {
			taskErr = err
			return
		}
		profile = cloneProfile(p)
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if taskErr != nil {
		return nil, fmt.Errorf("bootstrap: %w", taskErr)
	}
	return profile, nil
}

// Reset replaces the profile with cold-start defaults, preserving nothing.
func (e *Engine) Reset(ctx context.Context, userID string) (*Profile, error) {
	opCtx := context.WithoutCancel(ctx)

	var (
		profile *Profile
		taskErr error
	)
	err := e.queues.run(ctx, userID, func() {
		p, err := e.lifecycle.Reset(opCtx, userID)
		if err != nil {
			taskErr = err
			return
		}
		profile = cloneProfile(p)
	})
	if err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	if taskErr != nil {
		return nil, fmt.Errorf("reset: %w", taskErr)
	}

	e.bus.publish(TopicProfileReset, ProfileResetEvent{UserID: userID, Timestamp: time.Now()})
	return profile, nil
}

// Delete removes the profile, its snapshots and its migration backup.
func (e *Engine) Delete(ctx context.Context, userID string) error {
	opCtx := context.WithoutCancel(ctx)

	var taskErr error
	err := e.queues.run(ctx, userID, func() {
		taskErr = e.lifecycle.Delete(opCtx, userID)
	})
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if taskErr != nil {
		return fmt.Errorf("delete: %w", taskErr)
	}

	e.bus.publish(TopicProfileReset, ProfileResetEvent{UserID: userID, Deleted: true, Timestamp: time.Now()})
	return nil
}

// Revert restores the pre-migration backup profile, if one exists.
func (e *Engine) Revert(ctx context.Context, userID string) (*Profile, error) {
	opCtx := context.WithoutCancel(ctx)

	var (
		profile *Profile
		taskErr error
	)
	err := e.queues.run(ctx, userID, func() {
		p, err := e.lifecycle.RevertToPriorVersion(opCtx, userID)
		if err != nil {
			taskErr = err
			return
		}
		profile = cloneProfile(p)
	})
	if err != nil {
		return nil, fmt.Errorf("revert: %w", err)
	}
	if taskErr != nil {
		return nil, fmt.Errorf("revert: %w", taskErr)
	}
	return profile, nil
}

// Profile returns the stored profile, or ErrNoProfile when absent.
func (e *Engine) Profile(ctx context.Context, userID string) (*Profile, error) {
	p, err := e.lifecycle.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if p == nil {
		return nil, ErrNoProfile
	}
	return p, nil
}

// Insights returns the display digest for the stored profile.
func (e *Engine) Insights(ctx context.Context, userID string) (ProfileInsights, error) {
	p, err := e.Profile(ctx, userID)
	if err != nil {
		return ProfileInsights{}, err
	}
	return BuildInsights(p), nil
}

// EngineStatus is the operational summary exposed by the status endpoint.
type EngineStatus struct {
	HasProfile            bool      `json:"has_profile"`
	SchemaVersion         int       `json:"schema_version,omitempty"`
	TotalFeedback         int       `json:"total_feedback"`
	TotalEvents           int       `json:"total_events"`
	ConfidenceLevel       float64   `json:"confidence_level"`
	ClusterCount          int       `json:"cluster_count"`
	ClustersVersion       int       `json:"clusters_version"`
	FeedbackSinceTraining int       `json:"feedback_since_training"`
	LookupBreakerState    string    `json:"lookup_breaker_state"`
	LastUpdated           time.Time `json:"last_updated"`
}

// Status reports the engine's view of the given user.
func (e *Engine) Status(ctx context.Context, userID string) (EngineStatus, error) {
	st := EngineStatus{LookupBreakerState: e.lookup.State()}

	p, err := e.lifecycle.Load(ctx, userID)
	if err != nil {
		return st, fmt.Errorf("status: %w", err)
	}
	if p == nil {
		return st, nil
	}

	st.HasProfile = true
	st.SchemaVersion = p.Version
	st.TotalFeedback = p.Learning.TotalFeedback
	st.TotalEvents = p.Learning.TotalEvents
	st.ConfidenceLevel = p.ConfidenceLevel
	st.ClusterCount = len(p.Clusters.Clusters)
	st.ClustersVersion = p.Clusters.Version
	st.FeedbackSinceTraining = p.Clusters.FeedbackSinceTraining
	st.LastUpdated = p.LastUpdated
	return st, nil
}

// Subscribe returns a channel of domain events for the given topic.
func (e *Engine) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return e.bus.channel.Subscribe(ctx, topic)
}

// Close drains every user queue and shuts down the event bus. Pending
// retrains run to completion.
func (e *Engine) Close() error {
	e.queues.close()
	return e.bus.close()
}

// cloneProfile deep-copies via JSON. Profiles are small (bounded event log,
// handful of clusters), so this is cheap and avoids hand-maintained copy
// code drifting from the struct.
func cloneProfile(p *Profile) *Profile {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return p
	}
	var out Profile
	if err := json.Unmarshal(data, &out); err != nil {
		return p
	}
	return &out
}

// predictionCache remembers recommendation-time score breakdowns so
// feedback arriving without one can still learn against the score the user
// actually saw. Bounded; a full cache is flushed wholesale.
type predictionCache struct {
	mu      sync.Mutex
	entries map[string]Prediction
}

const predictionCacheMax = 4096

func newPredictionCache() *predictionCache {
	return &predictionCache{entries: make(map[string]Prediction)}
}

func (c *predictionCache) put(userID string, mediaID int, p Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= predictionCacheMax {
		c.entries = make(map[string]Prediction, predictionCacheMax)
	}
	c.entries[predKey(userID, mediaID)] = p
}

func (c *predictionCache) get(userID string, mediaID int) (Prediction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[predKey(userID, mediaID)]
	return p, ok
}

func predKey(userID string, mediaID int) string {
	return fmt.Sprintf("%s:%d", userID, mediaID)
}

// mergeLists unions base with adds, preserving base order and dropping
// duplicates case-insensitively.
func mergeLists(base, adds []string) []string {
	out := base
	for _, a := range adds {
		appendUnique(&out, a)
	}
	return out
}
