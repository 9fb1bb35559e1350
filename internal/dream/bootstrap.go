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

	"github.com/goccy/go-json"

	"github.com/ayasato/oneiro/internal/storage"
)

// Rule inference thresholds over completed-vs-dropped counts per studio and
// genre.
const (
	ruleWhitelistCompletions = 3
	ruleWhitelistMinScore    = 7.5
	ruleBlacklistDrops       = 3
	ruleBlacklistMaxDone     = 1
)

// Initial confidence blend: capped contributions from history volume,
// completed volume and feedback volume, plus a flat bonus for any history.
const (
	confidenceEntriesCap    = 50
	confidenceEntriesWeight = 0.4
	confidenceDoneCap       = 30
	confidenceDoneWeight    = 0.2
	confidenceFeedbackCap   = 20
	confidenceFeedbackWt    = 0.3
	confidenceHistoryBonus  = 0.1
)

// Bootstrap derives a first-generation profile from historical data and any
// pre-existing feedback. Any prior profile is preserved as a backup record
// so RevertToPriorVersion can roll the migration back.
func (l *Lifecycle) Bootstrap(ctx context.Context, userID string, history []WatchEntry, feedback FeedbackExport, lookup MediaLookup) (*Profile, error) {
	if err := l.backupPrior(ctx, userID); err != nil {
		return nil, err
	}

	p := l.NewDefaultProfile(userID)
	p.Metrics = ComputeMetrics(l.cfg, history)
	p.Rules = InferRules(history)
	p.ConfidenceLevel = initialConfidence(history, feedback)

	if len(feedback.Likes)+len(feedback.Dislikes) >= l.cfg.Clustering.MinFeedback && lookup != nil {
		clusters, err := DiscoverClusters(ctx, l.cfg, feedback, lookup)
		if err != nil {
			// Clustering is an enrichment; bootstrap proceeds without it
			// and the next retraining threshold will try again.
			l.logger.Warn().Err(err).Str("user_id", userID).Msg("bootstrap clustering failed")
		} else {
			clusters.Version = 1
			p.Clusters = clusters
		}
	}

	l.appendEvent(p, LearningEvent{
		Type: EventMigrationCompleted,
		Detail: fmt.Sprintf("bootstrapped from %d history entries, %d feedback items",
			len(history), len(feedback.Likes)+len(feedback.Dislikes)),
	})

	if err := l.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("bootstrap %s: %w", userID, err)
	}

	l.logger.Info().
		Str("user_id", userID).
		Float64("confidence", p.ConfidenceLevel).
		Int("clusters", len(p.Clusters.Clusters)).
		Msg("profile bootstrapped")

	return p, nil
}

// backupPrior stores any existing profile under the migration namespace.
func (l *Lifecycle) backupPrior(ctx context.Context, userID string) error {
	raw, err := l.store.Get(ctx, storage.ProfileKey(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read prior profile: %w", err)
	}

	if err := l.store.Set(ctx, storage.MigrationKey(userID), raw); err != nil {
		return fmt.Errorf("backup prior profile: %w", err)
	}
	return nil
}

// RevertToPriorVersion restores the pre-migration backup as the live
// profile. Returns nil when no backup exists.
func (l *Lifecycle) RevertToPriorVersion(ctx context.Context, userID string) (*Profile, error) {
	raw, err := l.store.Get(ctx, storage.MigrationKey(userID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migration backup: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode migration backup: %w", err)
	}

	p.UserID = userID
	l.normalize(&p)

	if err := l.Save(ctx, &p); err != nil {
		return nil, err
	}

	l.logger.Info().Str("user_id", userID).Msg("profile reverted to prior version")
	return &p, nil
}

// InferRules derives studio/genre white- and blacklists by thresholding
// completed-vs-dropped counts across history. Pure; also re-run
// periodically as feedback accumulates.
func InferRules(history []WatchEntry) SemanticRules {
	studios := make(map[string]*ruleTally)
	genres := make(map[string]*ruleTally)

	bump := func(m map[string]*ruleTally, key string, e WatchEntry) {
		if key == "" {
			return
		}
		t := m[key]
		if t == nil {
			t = &ruleTally{}
			m[key] = t
		}
		switch e.Status {
		case StatusCompleted:
			t.completed++
		case StatusDropped:
			t.dropped++
		}
		if e.Score > 0 {
			t.scoreSum += e.Score
			t.scored++
		}
	}

	for i := range history {
		e := history[i]
		bump(studios, e.Studio, e)
		for _, g := range e.Genres {
			bump(genres, g, e)
		}
	}

	var rules SemanticRules
	rules.StudioWhitelist, rules.StudioBlacklist = splitLists(studios)
	rules.GenreWhitelist, rules.GenreBlacklist = splitLists(genres)
	return rules
}

// ruleTally accumulates per-studio/per-genre outcomes.
type ruleTally struct {
	completed int
	dropped   int
	scoreSum  float64
	scored    int
}

// splitLists applies the white/blacklist thresholds to a tally map.
func splitLists(m map[string]*ruleTally) (whitelist, blacklist []string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		t := m[k]

		avgScore := 0.0
		if t.scored > 0 {
			avgScore = t.scoreSum / float64(t.scored)
		}

		switch {
		case t.completed >= ruleWhitelistCompletions && t.dropped == 0 && avgScore >= ruleWhitelistMinScore:
			whitelist = append(whitelist, k)
		case t.dropped >= ruleBlacklistDrops && t.completed <= ruleBlacklistMaxDone:
			blacklist = append(blacklist, k)
		}
	}
	return whitelist, blacklist
}

// initialConfidence blends capped history, completion and feedback volumes.
func initialConfidence(history []WatchEntry, feedback FeedbackExport) float64 {
	completed := 0
	for i := range history {
		if history[i].Status == StatusCompleted {
			completed++
		}
	}
	feedbackCount := len(feedback.Likes) + len(feedback.Dislikes)

	c := cappedShare(len(history), confidenceEntriesCap)*confidenceEntriesWeight +
		cappedShare(completed, confidenceDoneCap)*confidenceDoneWeight +
		cappedShare(feedbackCount, confidenceFeedbackCap)*confidenceFeedbackWt
	if len(history) > 0 {
		c += confidenceHistoryBonus
	}
	return clamp01(c)
}

func cappedShare(n, limit int) float64 {
	if n >= limit {
		return 1
	}
	return float64(n) / float64(limit)
}
