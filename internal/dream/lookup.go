// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/ayasato/oneiro/internal/metrics"
)

// LookupGuardConfig tunes the circuit breaker and rate limiter wrapped
// around the media metadata source. The source is typically a tracker API
// with its own rate limits, so clustering (which looks up every item with
// feedback) must be throttled and must fail fast when the tracker is down.
type LookupGuardConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32

	// RequestsPerSecond caps outbound lookups; Burst allows short spikes.
	RequestsPerSecond float64
	Burst             int
}

// DefaultLookupGuardConfig returns conservative defaults sized for public
// tracker APIs (AniList allows 90 req/min).
func DefaultLookupGuardConfig() LookupGuardConfig {
	return LookupGuardConfig{
		Name:              "media-lookup",
		MaxRequests:       3,
		Interval:          60 * time.Second,
		Timeout:           30 * time.Second,
		FailureThreshold:  5,
		RequestsPerSecond: 1.0,
		Burst:             5,
	}
}

// GuardedLookup wraps a MediaLookup with circuit breaker and rate limiter
// protection. Individual lookup failures still surface to the caller, which
// skips the item; the breaker exists to stop hammering a dead tracker.
type GuardedLookup struct {
	inner   MediaLookup
	breaker *gobreaker.CircuitBreaker[MediaInfo]
	limiter *rate.Limiter
}

// NewGuardedLookup wraps inner with the given guard configuration.
func NewGuardedLookup(inner MediaLookup, cfg LookupGuardConfig) *GuardedLookup {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
	}

	return &GuardedLookup{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[MediaInfo](settings),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// Lookup waits for a rate limiter slot, then executes the inner lookup
// under the circuit breaker.
func (g *GuardedLookup) Lookup(ctx context.Context, mediaID int) (MediaInfo, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return MediaInfo{}, err
	}

	info, err := g.breaker.Execute(func() (MediaInfo, error) {
		return g.inner.Lookup(ctx, mediaID)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.LookupRequests.WithLabelValues("rejected").Inc()
	case err != nil:
		metrics.LookupRequests.WithLabelValues("error").Inc()
	default:
		metrics.LookupRequests.WithLabelValues("ok").Inc()
	}
	return info, err
}

// State reports the breaker state as a string for status endpoints.
func (g *GuardedLookup) State() string {
	return g.breaker.State().String()
}
