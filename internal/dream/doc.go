// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

// Package dream implements the adaptive learning profile and scoring engine.
//
// The engine owns a per-user learned model (the dream profile: bounded weight
// vector, behavioral metrics, semantic veto rules, discovered taste clusters)
// and two operations against it:
//
//   - scoring: candidate features x profile -> deterministic, bounded score
//     breakdown with human-readable reasons
//   - learning: feedback event x profile -> updated profile, persisted through
//     asynchronous key-value storage
//
// # Components
//
//   - Behavioral metrics calculator (behavior.go): pure function from watch
//     history to engagement and tolerance statistics.
//   - Semantic clustering (clustering.go): hierarchical agglomerative
//     clustering over tag co-occurrence, run separately on liked and disliked
//     items, with affinity computed over the full feedback set.
//   - Weight adapter (weights.go): bounded gradient step per feedback event,
//     followed by renormalization of the learnable weights.
//   - Scoring engine (scoring.go): base score, veto multipliers, cluster
//     boost, behavioral and tolerance nudges, exponential soft-cap.
//   - Profile lifecycle (lifecycle.go, update.go): load/validate/upgrade/
//     save/snapshot plus the single update pipeline run per feedback event.
//   - Migration/bootstrap (bootstrap.go): first-generation profile derivation
//     from history, with a backup record supporting rollback.
//
// # Concurrency
//
// The profile is single-writer per user. All mutations (feedback updates,
// cluster retraining, resets) execute on a per-user serialized task queue
// (queue.go); scoring reads a profile value and is otherwise pure. Cluster
// retraining is triggered fire-and-forget but runs on the same queue, so it
// can never interleave with a feedback update for the same user. A cluster
// version check before write-back guards against stale results regardless.
//
// # Stability contract
//
// The engine's primary contract is stability rather than predictive power:
// the six learnable weights always sum to 1.0 within epsilon and stay inside
// per-component bounds, scores stay in [0, 1], confidence grows monotonically
// by a fixed increment per feedback event, and all thresholds and nudge
// magnitudes are configuration, not behavior.
package dream
