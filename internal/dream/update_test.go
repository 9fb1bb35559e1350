// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"context"
	"strings"
	"testing"
)

func likeEvent(mediaID int) FeedbackEvent {
	return FeedbackEvent{
		MediaID:    mediaID,
		Type:       FeedbackLike,
		Prediction: &Prediction{Score: 0.6, Features: FeatureVector{CF: 0.8, Content: 0.6}},
	}
}

func TestUpdateAdvancesCounters(t *testing.T) {
	lc, _ := newTestLifecycle(DefaultConfig())
	ctx := context.Background()

	p := lc.NewDefaultProfile("default")
	res, err := lc.Update(ctx, p, likeEvent(1))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if p.Learning.TotalFeedback != 1 {
		t.Errorf("TotalFeedback = %d, want 1", p.Learning.TotalFeedback)
	}
	if !almostEqual(p.ConfidenceLevel, 0.01) {
		t.Errorf("ConfidenceLevel = %v, want one increment", p.ConfidenceLevel)
	}
	if p.Clusters.FeedbackSinceTraining != 1 {
		t.Errorf("FeedbackSinceTraining = %d, want 1", p.Clusters.FeedbackSinceTraining)
	}
	if res.RetrainDue || res.RuleInferenceDue {
		t.Errorf("maintenance due after one event: %+v", res)
	}

	// Feedback-received plus weights-adjusted audit entries.
	if len(p.Learning.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2", len(p.Learning.Events))
	}
	if p.Learning.Events[0].Type != EventFeedbackReceived || p.Learning.Events[1].Type != EventWeightsAdjusted {
		t.Errorf("event types = %v, %v", p.Learning.Events[0].Type, p.Learning.Events[1].Type)
	}
}

func TestUpdatePersistsProfile(t *testing.T) {
	lc, _ := newTestLifecycle(DefaultConfig())
	ctx := context.Background()

	p := lc.NewDefaultProfile("default")
	if _, err := lc.Update(ctx, p, likeEvent(1)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := lc.Load(ctx, "default")
	if err != nil || got == nil {
		t.Fatalf("Load() = (%v, %v), want the updated profile persisted", got, err)
	}
	if got.Learning.TotalFeedback != 1 {
		t.Errorf("persisted TotalFeedback = %d, want 1", got.Learning.TotalFeedback)
	}
}

func TestUpdateRetrainDueAtInterval(t *testing.T) {
	cfg := DefaultConfig()
	lc, _ := newTestLifecycle(cfg)
	ctx := context.Background()

	p := lc.NewDefaultProfile("default")
	for i := 0; i < cfg.Lifecycle.RetrainInterval-1; i++ {
		res, err := lc.Update(ctx, p, likeEvent(i+1))
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if res.RetrainDue {
			t.Fatalf("RetrainDue at event %d, want only at %d", i+1, cfg.Lifecycle.RetrainInterval)
		}
	}

	res, err := lc.Update(ctx, p, likeEvent(99))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !res.RetrainDue {
		t.Errorf("RetrainDue = false at event %d", cfg.Lifecycle.RetrainInterval)
	}
}

func TestUpdateRuleInferenceDueAtInterval(t *testing.T) {
	cfg := DefaultConfig()
	lc, _ := newTestLifecycle(cfg)
	ctx := context.Background()

	p := lc.NewDefaultProfile("default")
	p.Learning.TotalFeedback = cfg.Lifecycle.RuleInferenceInterval - 1

	res, err := lc.Update(ctx, p, likeEvent(1))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !res.RuleInferenceDue {
		t.Errorf("RuleInferenceDue = false at feedback %d", cfg.Lifecycle.RuleInferenceInterval)
	}
}

func TestUpdateFanserviceReasonBlacklistsTags(t *testing.T) {
	lc, _ := newTestLifecycle(DefaultConfig())
	ctx := context.Background()

	p := lc.NewDefaultProfile("default")
	event := FeedbackEvent{
		MediaID: 1,
		Type:    FeedbackDislike,
		Reasons: []Reason{ReasonFanserviceExcessive},
	}

	if _, err := lc.Update(ctx, p, event); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	for _, tag := range []string{"ecchi", "fanservice"} {
		if !containsFold(p.Rules.TagBlacklist, tag) {
			t.Errorf("TagBlacklist = %v, want %q present", p.Rules.TagBlacklist, tag)
		}
	}

	// Tag blacklisting works without a media snapshot, and repeating the
	// reason must not duplicate entries.
	if _, err := lc.Update(ctx, p, event); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(p.Rules.TagBlacklist) != 2 {
		t.Errorf("TagBlacklist = %v, want no duplicates", p.Rules.TagBlacklist)
	}
}

func TestUpdateMediaDependentRuleEffects(t *testing.T) {
	lc, _ := newTestLifecycle(DefaultConfig())
	ctx := context.Background()

	p := lc.NewDefaultProfile("default")
	event := FeedbackEvent{
		MediaID: 1,
		Type:    FeedbackDislike,
		Reasons: []Reason{ReasonStudioDistrust, ReasonTooManyEpisodes, ReasonTooOld},
		Media: &MediaSnapshot{
			Studio:   "Mill Works",
			Episodes: 48,
			Year:     2004,
			Tags:     []string{"mecha", "space"},
		},
	}

	if _, err := lc.Update(ctx, p, event); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if !containsFold(p.Rules.StudioBlacklist, "Mill Works") {
		t.Errorf("StudioBlacklist = %v, want studio added", p.Rules.StudioBlacklist)
	}
	if p.Rules.MaxEpisodes != 48 {
		t.Errorf("MaxEpisodes = %d, want 48", p.Rules.MaxEpisodes)
	}
	if p.Rules.MinYear != 2005 {
		t.Errorf("MinYear = %d, want year+1", p.Rules.MinYear)
	}

	// A longer series must not loosen the cap.
	event2 := FeedbackEvent{
		MediaID: 2,
		Type:    FeedbackDislike,
		Reasons: []Reason{ReasonTooManyEpisodes},
		Media:   &MediaSnapshot{Episodes: 100},
	}
	if _, err := lc.Update(ctx, p, event2); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.Rules.MaxEpisodes != 48 {
		t.Errorf("MaxEpisodes = %d after weaker signal, want unchanged 48", p.Rules.MaxEpisodes)
	}
}

func TestUpdateMediaDependentEffectsSkippedWithoutSnapshot(t *testing.T) {
	lc, _ := newTestLifecycle(DefaultConfig())
	ctx := context.Background()

	p := lc.NewDefaultProfile("default")
	event := FeedbackEvent{
		MediaID: 1,
		Type:    FeedbackDislike,
		Reasons: []Reason{ReasonStudioDistrust, ReasonTooManyEpisodes},
	}

	if _, err := lc.Update(ctx, p, event); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(p.Rules.StudioBlacklist) != 0 || p.Rules.MaxEpisodes != 0 {
		t.Errorf("rules = %+v, want media-dependent effects skipped", p.Rules)
	}
}

func TestUpdateWhitelistsTopTagsFromLovedMedia(t *testing.T) {
	lc, _ := newTestLifecycle(DefaultConfig())
	ctx := context.Background()

	p := lc.NewDefaultProfile("default")
	event := FeedbackEvent{
		MediaID: 1,
		Type:    FeedbackLike,
		Reasons: []Reason{ReasonGenreFavorite},
		Media:   &MediaSnapshot{Tags: []string{"Space", "Mecha", "War", "Politics", "Drama"}},
	}

	if _, err := lc.Update(ctx, p, event); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(p.Rules.TagWhitelist) != 3 {
		t.Fatalf("TagWhitelist = %v, want top 3 tags only", p.Rules.TagWhitelist)
	}
	for _, tag := range []string{"space", "mecha", "war"} {
		if !containsFold(p.Rules.TagWhitelist, tag) {
			t.Errorf("TagWhitelist = %v, want %q", p.Rules.TagWhitelist, tag)
		}
	}
}

func TestUpdateNudgesMatchingClusterAffinity(t *testing.T) {
	cfg := DefaultConfig()
	lc, _ := newTestLifecycle(cfg)
	ctx := context.Background()

	p := lc.NewDefaultProfile("default")
	p.Clusters.Clusters = []TagCluster{
		{ID: "c1", Tags: []string{"space", "mecha", "war"}, UserAffinity: 0.2},
		{ID: "c2", Tags: []string{"romance", "school"}, UserAffinity: 0.2},
	}

	event := FeedbackEvent{
		MediaID: 1,
		Type:    FeedbackLike,
		Media:   &MediaSnapshot{Tags: []string{"space", "mecha"}},
	}
	if _, err := lc.Update(ctx, p, event); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if !almostEqual(p.Clusters.Clusters[0].UserAffinity, 0.2+cfg.Learning.AffinityNudge) {
		t.Errorf("matching cluster affinity = %v, want nudged up", p.Clusters.Clusters[0].UserAffinity)
	}
	if !almostEqual(p.Clusters.Clusters[1].UserAffinity, 0.2) {
		t.Errorf("non-matching cluster affinity = %v, want untouched", p.Clusters.Clusters[1].UserAffinity)
	}

	// Dislikes nudge the other way, clamped at the floor.
	p.Clusters.Clusters[0].UserAffinity = -0.99
	event.Type = FeedbackDislike
	if _, err := lc.Update(ctx, p, event); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.Clusters.Clusters[0].UserAffinity != -1.0 {
		t.Errorf("affinity = %v, want clamped at -1", p.Clusters.Clusters[0].UserAffinity)
	}
}

func TestUpdateSynthesizesPredictionFromSnapshot(t *testing.T) {
	lc, _ := newTestLifecycle(DefaultConfig())
	ctx := context.Background()

	p := lc.NewDefaultProfile("default")
	before := p.Weights

	// No cached prediction: the pipeline scores the snapshot itself and
	// still adapts weights.
	event := FeedbackEvent{
		MediaID: 1,
		Type:    FeedbackLike,
		Media:   &MediaSnapshot{Tags: []string{"space"}, Studio: "Mill Works"},
	}
	if _, err := lc.Update(ctx, p, event); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if p.Weights == before {
		t.Error("weights unchanged, want adaptation from synthesized prediction")
	}
}

func TestUpdateAuditSummaryNamesLargestShift(t *testing.T) {
	lc, _ := newTestLifecycle(DefaultConfig())
	ctx := context.Background()

	p := lc.NewDefaultProfile("default")
	event := FeedbackEvent{
		MediaID:    1,
		Type:       FeedbackLike,
		Prediction: &Prediction{Score: 0.3, Features: FeatureVector{CF: 1.0}},
	}
	if _, err := lc.Update(ctx, p, event); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	var summary string
	for _, e := range p.Learning.Events {
		if e.Type == EventWeightsAdjusted {
			summary = e.Detail
		}
	}
	if !strings.HasPrefix(summary, "cf ") {
		t.Errorf("weight shift summary = %q, want dominated by cf", summary)
	}
}
