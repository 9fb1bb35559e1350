// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"context"
	"testing"
)

func completedEntry(studio string, genres []string, score float64) WatchEntry {
	return WatchEntry{Status: StatusCompleted, Studio: studio, Genres: genres, Score: score}
}

func droppedEntry(studio string, genres []string) WatchEntry {
	return WatchEntry{Status: StatusDropped, Studio: studio, Genres: genres}
}

func TestInferRulesWhitelistsConsistentStudios(t *testing.T) {
	history := []WatchEntry{
		completedEntry("Ghibli", []string{"fantasy"}, 8),
		completedEntry("Ghibli", []string{"fantasy"}, 8),
		completedEntry("Ghibli", []string{"fantasy"}, 9),
	}

	rules := InferRules(history)
	if !containsFold(rules.StudioWhitelist, "Ghibli") {
		t.Errorf("StudioWhitelist = %v, want Ghibli", rules.StudioWhitelist)
	}
	if !containsFold(rules.GenreWhitelist, "fantasy") {
		t.Errorf("GenreWhitelist = %v, want fantasy", rules.GenreWhitelist)
	}
}

func TestInferRulesScoreGateBlocksWhitelist(t *testing.T) {
	history := []WatchEntry{
		completedEntry("MidStudio", nil, 6),
		completedEntry("MidStudio", nil, 6),
		completedEntry("MidStudio", nil, 6),
	}

	rules := InferRules(history)
	if len(rules.StudioWhitelist) != 0 {
		t.Errorf("StudioWhitelist = %v, want empty for mediocre scores", rules.StudioWhitelist)
	}
}

func TestInferRulesSingleDropBlocksWhitelist(t *testing.T) {
	history := []WatchEntry{
		completedEntry("Ghibli", nil, 9),
		completedEntry("Ghibli", nil, 9),
		completedEntry("Ghibli", nil, 9),
		droppedEntry("Ghibli", nil),
	}

	rules := InferRules(history)
	if len(rules.StudioWhitelist) != 0 {
		t.Errorf("StudioWhitelist = %v, want empty once a drop exists", rules.StudioWhitelist)
	}
}

func TestInferRulesBlacklistsDroppedStudios(t *testing.T) {
	history := []WatchEntry{
		droppedEntry("DropWorks", []string{"harem"}),
		droppedEntry("DropWorks", []string{"harem"}),
		droppedEntry("DropWorks", []string{"harem"}),
		completedEntry("DropWorks", []string{"harem"}, 5),
	}

	rules := InferRules(history)
	if !containsFold(rules.StudioBlacklist, "DropWorks") {
		t.Errorf("StudioBlacklist = %v, want DropWorks", rules.StudioBlacklist)
	}
	if !containsFold(rules.GenreBlacklist, "harem") {
		t.Errorf("GenreBlacklist = %v, want harem", rules.GenreBlacklist)
	}

	// Two completions outweigh three drops.
	history = append(history, completedEntry("DropWorks", nil, 5))
	rules = InferRules(history)
	if containsFold(rules.StudioBlacklist, "DropWorks") {
		t.Errorf("StudioBlacklist = %v, want empty with two completions", rules.StudioBlacklist)
	}
}

func TestInitialConfidenceSaturates(t *testing.T) {
	history := make([]WatchEntry, 0, 60)
	for i := 0; i < 35; i++ {
		history = append(history, completedEntry("s", nil, 7))
	}
	for i := 0; i < 25; i++ {
		history = append(history, WatchEntry{Status: StatusWatching})
	}
	feedback := FeedbackExport{Likes: make([]int, 15), Dislikes: make([]int, 10)}

	if got := initialConfidence(history, feedback); got != 1.0 {
		t.Errorf("initialConfidence = %v, want saturated 1.0", got)
	}
}

func TestInitialConfidenceEmpty(t *testing.T) {
	if got := initialConfidence(nil, FeedbackExport{}); got != 0 {
		t.Errorf("initialConfidence = %v, want 0 with no data", got)
	}
}

func TestInitialConfidencePartial(t *testing.T) {
	// 25 entries, 15 completed, 10 feedback: 0.5*0.4 + 0.5*0.2 + 0.5*0.3
	// plus the history bonus.
	history := make([]WatchEntry, 0, 25)
	for i := 0; i < 15; i++ {
		history = append(history, completedEntry("s", nil, 7))
	}
	for i := 0; i < 10; i++ {
		history = append(history, WatchEntry{Status: StatusWatching})
	}
	feedback := FeedbackExport{Likes: make([]int, 10)}

	want := 0.5*0.4 + 0.5*0.2 + 0.5*0.3 + 0.1
	if got := initialConfidence(history, feedback); !almostEqual(got, want) {
		t.Errorf("initialConfidence = %v, want %v", got, want)
	}
}

func TestBootstrapBuildsProfileFromHistory(t *testing.T) {
	lc, _ := newTestLifecycle(DefaultConfig())
	ctx := context.Background()

	history := []WatchEntry{
		completedEntry("Ghibli", []string{"fantasy"}, 9),
		completedEntry("Ghibli", []string{"fantasy"}, 8),
		completedEntry("Ghibli", []string{"fantasy"}, 8),
		droppedEntry("DropWorks", nil),
	}

	p, err := lc.Bootstrap(ctx, "default", history, FeedbackExport{}, nil)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	if p.Metrics.ComputedAt.IsZero() {
		t.Error("behavioral metrics not computed")
	}
	if !containsFold(p.Rules.StudioWhitelist, "Ghibli") {
		t.Errorf("rules not inferred: %+v", p.Rules)
	}
	if p.ConfidenceLevel <= 0 {
		t.Errorf("ConfidenceLevel = %v, want positive with history", p.ConfidenceLevel)
	}
	if len(p.Learning.Events) != 1 || p.Learning.Events[0].Type != EventMigrationCompleted {
		t.Errorf("Events = %+v, want a single migration marker", p.Learning.Events)
	}

	// Persisted.
	got, err := lc.Load(ctx, "default")
	if err != nil || got == nil {
		t.Fatalf("Load() after Bootstrap = (%v, %v)", got, err)
	}
}

func TestBootstrapDiscoversClustersFromFeedback(t *testing.T) {
	lc, _ := newTestLifecycle(clusterTestConfig())
	ctx := context.Background()

	feedback, lookup := crispFeedback()
	p, err := lc.Bootstrap(ctx, "default", nil, feedback, lookup)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	if p.Clusters.Version != 1 {
		t.Errorf("Clusters.Version = %d, want 1 after first training", p.Clusters.Version)
	}
	if len(p.Clusters.Clusters) != 2 {
		t.Errorf("got %d clusters, want 2", len(p.Clusters.Clusters))
	}
	if p.Clusters.TrainingDataSize != 5 {
		t.Errorf("TrainingDataSize = %d, want 5", p.Clusters.TrainingDataSize)
	}
}

func TestBootstrapBacksUpPriorProfileForRevert(t *testing.T) {
	lc, _ := newTestLifecycle(DefaultConfig())
	ctx := context.Background()

	prior := lc.NewDefaultProfile("default")
	prior.ConfidenceLevel = 0.33
	if err := lc.Save(ctx, prior); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := lc.Bootstrap(ctx, "default", nil, FeedbackExport{}, nil); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	got, err := lc.RevertToPriorVersion(ctx, "default")
	if err != nil {
		t.Fatalf("RevertToPriorVersion() error = %v", err)
	}
	if got == nil {
		t.Fatal("RevertToPriorVersion() = nil, want backed-up profile")
	}
	if got.ConfidenceLevel != 0.33 {
		t.Errorf("reverted confidence = %v, want prior 0.33", got.ConfidenceLevel)
	}

	// The revert is now the live profile.
	live, err := lc.Load(ctx, "default")
	if err != nil || live == nil {
		t.Fatalf("Load() after revert = (%v, %v)", live, err)
	}
	if live.ConfidenceLevel != 0.33 {
		t.Errorf("live confidence = %v, want reverted 0.33", live.ConfidenceLevel)
	}
}

func TestRevertWithoutBackupReturnsNil(t *testing.T) {
	lc, _ := newTestLifecycle(DefaultConfig())

	got, err := lc.RevertToPriorVersion(context.Background(), "default")
	if err != nil {
		t.Fatalf("RevertToPriorVersion() error = %v", err)
	}
	if got != nil {
		t.Errorf("RevertToPriorVersion() = %+v, want nil without backup", got)
	}
}
