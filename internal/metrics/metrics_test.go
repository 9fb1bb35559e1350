// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordFeedback(t *testing.T) {
	before := testutil.ToFloat64(FeedbackProcessed.WithLabelValues("like"))
	RecordFeedback("like")
	after := testutil.ToFloat64(FeedbackProcessed.WithLabelValues("like"))

	if after != before+1 {
		t.Errorf("expected like counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestRecordFeedbackEmptyTypeMapsToNeutral(t *testing.T) {
	before := testutil.ToFloat64(FeedbackProcessed.WithLabelValues("neutral"))
	RecordFeedback("")
	after := testutil.ToFloat64(FeedbackProcessed.WithLabelValues("neutral"))

	if after != before+1 {
		t.Errorf("expected neutral counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestObserveRecommendCountsCandidates(t *testing.T) {
	before := testutil.ToFloat64(CandidatesScored)
	ObserveRecommend(time.Now().Add(-5*time.Millisecond), 25)
	after := testutil.ToFloat64(CandidatesScored)

	if after != before+25 {
		t.Errorf("expected 25 candidates recorded, got %v -> %v", before, after)
	}
}

func TestObserveRetrainOutcomes(t *testing.T) {
	outcomes := []string{"ok", "stale", "skipped", "error"}
	for _, outcome := range outcomes {
		before := testutil.ToFloat64(RetrainRuns.WithLabelValues(outcome))
		ObserveRetrain(time.Now(), outcome)
		after := testutil.ToFloat64(RetrainRuns.WithLabelValues(outcome))

		if after != before+1 {
			t.Errorf("outcome %q: expected increment by 1, got %v -> %v", outcome, before, after)
		}
	}
}

// TestConcurrentRecording verifies recording functions are safe under
// concurrent use.
func TestConcurrentRecording(t *testing.T) {
	const goroutines = 10
	const iterations = 100

	before := testutil.ToFloat64(FeedbackProcessed.WithLabelValues("dislike"))

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				RecordFeedback("dislike")
			}
		}()
	}
	wg.Wait()

	after := testutil.ToFloat64(FeedbackProcessed.WithLabelValues("dislike"))
	if after != before+goroutines*iterations {
		t.Errorf("expected %d increments, got %v -> %v", goroutines*iterations, before, after)
	}
}
