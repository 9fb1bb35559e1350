// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

/*
Package metrics provides Prometheus metrics collection and export for
observability.

The package exposes counters, gauges and histograms for:
  - Recommendation scoring throughput and latency
  - Feedback processing and learning events
  - Cluster retraining runs and outcomes
  - Profile load/snapshot activity
  - Media metadata lookups and circuit breaker behavior
  - Key-value store operations and garbage collection
  - HTTP request latency

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:7870/metrics

All metrics are registered via promauto at package init and are safe for
concurrent use; the Prometheus client library handles synchronization
internally.

Cardinality is kept low deliberately: there is exactly one user, so no
metric carries a user label, and label values are drawn from small fixed
sets ("ok"/"error", feedback types, retrain outcomes).
*/
package metrics
