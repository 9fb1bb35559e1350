// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayasato/oneiro/internal/metrics"
)

// GarbageCollector is the subset of the badger store the GC service drives.
type GarbageCollector interface {
	RunGC(discardRatio float64) error
}

// GCService periodically reclaims badger value-log space. Badger never
// compacts the value log on its own, so without this loop the data
// directory grows monotonically.
type GCService struct {
	store        GarbageCollector
	interval     time.Duration
	discardRatio float64
	logger       zerolog.Logger
}

// NewGCService returns a GC service ticking at interval. A non-positive
// interval or out-of-range ratio falls back to safe defaults.
func NewGCService(store GarbageCollector, interval time.Duration, discardRatio float64, logger zerolog.Logger) *GCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if discardRatio <= 0 || discardRatio >= 1 {
		discardRatio = 0.5
	}
	return &GCService{
		store:        store,
		interval:     interval,
		discardRatio: discardRatio,
		logger:       logger.With().Str("component", "storage-gc").Logger(),
	}
}

// Serve runs the GC loop until the context is cancelled. GC errors are
// logged and the loop keeps going; a transient failure on one tick must
// not take down the maintenance tree.
func (s *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.store.RunGC(s.discardRatio); err != nil {
				s.logger.Warn().Err(err).Msg("value log GC failed")
				continue
			}
			metrics.StoreGCRuns.Inc()
			s.logger.Debug().
				Dur("elapsed", time.Since(start)).
				Msg("value log GC completed")
		}
	}
}

func (s *GCService) String() string {
	return "storage-gc"
}
