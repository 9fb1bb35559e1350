// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scoring metrics
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oneiro_recommend_duration_seconds",
			Help:    "Duration of recommendation scoring passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	CandidatesScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oneiro_candidates_scored_total",
			Help: "Total number of candidates scored",
		},
	)

	HardVetoes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oneiro_hard_vetoes_total",
			Help: "Total number of candidates hard-vetoed during scoring",
		},
		[]string{"rule"}, // "tag", "genre"
	)

	// Learning metrics
	FeedbackProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oneiro_feedback_processed_total",
			Help: "Total number of feedback events processed",
		},
		[]string{"type"},
	)

	FeedbackErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oneiro_feedback_errors_total",
			Help: "Total number of feedback events that failed processing",
		},
	)

	RetrainRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oneiro_cluster_retrain_total",
			Help: "Total number of cluster retraining runs",
		},
		[]string{"outcome"}, // "ok", "stale", "skipped", "error"
	)

	RetrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oneiro_cluster_retrain_duration_seconds",
			Help:    "Duration of cluster retraining runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	ClustersDiscovered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oneiro_clusters_discovered",
			Help: "Number of taste clusters in the most recent training run",
		},
	)

	// Profile metrics
	ProfileLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oneiro_profile_loads_total",
			Help: "Total number of profile load attempts",
		},
		[]string{"outcome"}, // "ok", "missing", "corrupt", "error"
	)

	SnapshotWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oneiro_profile_snapshot_writes_total",
			Help: "Total number of profile snapshots written",
		},
	)

	// Media lookup metrics
	LookupRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oneiro_media_lookup_total",
			Help: "Total number of media metadata lookups",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	// Event bus metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oneiro_events_published_total",
			Help: "Total number of domain events published to the bus",
		},
		[]string{"topic"},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oneiro_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Storage metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oneiro_store_operations_total",
			Help: "Total number of key-value store operations",
		},
		[]string{"operation", "outcome"},
	)

	StoreGCRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oneiro_store_gc_runs_total",
			Help: "Total number of value-log garbage collection runs",
		},
	)
)

// ObserveRecommend records one scoring pass over n candidates.
func ObserveRecommend(start time.Time, n int) {
	RecommendDuration.Observe(time.Since(start).Seconds())
	CandidatesScored.Add(float64(n))
}

// RecordFeedback records one processed feedback event by type.
func RecordFeedback(feedbackType string) {
	if feedbackType == "" {
		feedbackType = "neutral"
	}
	FeedbackProcessed.WithLabelValues(feedbackType).Inc()
}

// ObserveRetrain records one retraining run with its outcome.
func ObserveRetrain(start time.Time, outcome string) {
	RetrainDuration.Observe(time.Since(start).Seconds())
	RetrainRuns.WithLabelValues(outcome).Inc()
}
