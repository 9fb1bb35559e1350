// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayasato/oneiro/internal/metrics"
	"github.com/ayasato/oneiro/internal/storage"
)

// Lifecycle owns profile load/validate/upgrade/save/snapshot and the update
// pipeline. It does not serialize access; the engine's per-user queue does.
type Lifecycle struct {
	cfg    *Config
	store  storage.Store
	logger zerolog.Logger
}

// snapshotRing is the bounded rolling snapshot record persisted per user.
type snapshotRing struct {
	Slots []snapshotSlot `json:"slots"`
}

type snapshotSlot struct {
	TakenAt time.Time `json:"taken_at"`
	Profile Profile   `json:"profile"`
}

// NewLifecycle creates a lifecycle manager over the given store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewLifecycle(cfg *Config, store storage.Store, logger zerolog.Logger) *Lifecycle {
	return &Lifecycle{
		cfg:    cfg,
		store:  store,
		logger: logger.With().Str("component", "lifecycle").Logger(),
	}
}

// Load fetches and validates a user's profile. A missing record, storage
// failure, or unrecoverably corrupt record all degrade to (nil, nil),
// signalling the caller to bootstrap; malformed-but-parsable profiles are
// repaired field-by-field rather than rejected.
func (l *Lifecycle) Load(ctx context.Context, userID string) (*Profile, error) {
	raw, err := l.store.Get(ctx, storage.ProfileKey(userID))
	if errors.Is(err, storage.ErrNotFound) {
		metrics.ProfileLoads.WithLabelValues("missing").Inc()
		return nil, nil
	}
	if err != nil {
		l.logger.Warn().Err(err).Str("user_id", userID).Msg("profile load failed, treating as absent")
		metrics.ProfileLoads.WithLabelValues("error").Inc()
		return nil, nil
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		l.logger.Warn().Err(err).Str("user_id", userID).Msg("profile corrupt, attempting snapshot recovery")
		metrics.ProfileLoads.WithLabelValues("corrupt").Inc()
		return l.recoverFromSnapshot(ctx, userID), nil
	}

	p.UserID = userID
	l.normalize(&p)
	metrics.ProfileLoads.WithLabelValues("ok").Inc()
	return &p, nil
}

// Save persists the profile, stamping LastUpdated, and writes a rolling
// recovery snapshot every Nth learning event.
func (l *Lifecycle) Save(ctx context.Context, p *Profile) error {
	p.LastUpdated = time.Now()

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := l.store.Set(ctx, storage.ProfileKey(p.UserID), raw); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}

	if l.snapshotDue(p) {
		if err := l.writeSnapshot(ctx, p); err != nil {
			// Snapshots are best-effort recovery aids; the primary
			// record is already durable.
			l.logger.Warn().Err(err).Str("user_id", p.UserID).Msg("snapshot write failed")
		} else {
			metrics.SnapshotWrites.Inc()
		}
	}

	return nil
}

// Reset replaces the user's profile with engine defaults, keeping a reset
// marker in the fresh audit log.
func (l *Lifecycle) Reset(ctx context.Context, userID string) (*Profile, error) {
	p := l.NewDefaultProfile(userID)
	l.appendEvent(p, LearningEvent{
		Type:   EventProfileReset,
		Detail: "profile reset to defaults",
	})

	if err := l.Save(ctx, p); err != nil {
		return nil, err
	}

	l.logger.Info().Str("user_id", userID).Msg("profile reset")
	return p, nil
}

// Delete removes every record for the user.
func (l *Lifecycle) Delete(ctx context.Context, userID string) error {
	for _, key := range []string{
		storage.ProfileKey(userID),
		storage.SnapshotKey(userID),
		storage.MigrationKey(userID),
	} {
		if err := l.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}

	l.logger.Info().Str("user_id", userID).Msg("profile deleted")
	return nil
}

// NewDefaultProfile builds a fresh profile with engine defaults.
func (l *Lifecycle) NewDefaultProfile(userID string) *Profile {
	now := time.Now()
	return &Profile{
		UserID:  userID,
		Version: SchemaVersion,
		Weights: l.cfg.InitialWeights(),
		Metrics: BehavioralMetrics{
			OldContentTolerance: 0.5,
			LongSeriesTolerance: 0.5,
			SlowPaceTolerance:   0.5,
			ComputedAt:          now,
		},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// normalize fills missing fields with component defaults and upgrades older
// schema versions in place. Never rejects a profile.
func (l *Lifecycle) normalize(p *Profile) {
	if p.Weights.LearnableSum() == 0 {
		p.Weights = l.cfg.InitialWeights()
	}
	if p.Weights.LearningRate == 0 {
		p.Weights.LearningRate = l.cfg.LearningRateFor(p.Learning.TotalFeedback)
	}
	if p.Metrics.OldContentTolerance == 0 && p.Metrics.LongSeriesTolerance == 0 && p.Metrics.SlowPaceTolerance == 0 {
		p.Metrics.OldContentTolerance = 0.5
		p.Metrics.LongSeriesTolerance = 0.5
		p.Metrics.SlowPaceTolerance = 0.5
	}
	p.ConfidenceLevel = clamp01(p.ConfidenceLevel)

	if p.Version < SchemaVersion {
		l.upgrade(p)
	}
}

// upgrade migrates older schema versions forward.
func (l *Lifecycle) upgrade(p *Profile) {
	from := p.Version

	// v1 -> v2: cumulative counters were introduced alongside the pruned
	// event log; derive them from what survives.
	if p.Version < 2 {
		if p.Learning.TotalEvents < len(p.Learning.Events) {
			p.Learning.TotalEvents = len(p.Learning.Events)
		}
		if p.Learning.TotalFeedback == 0 {
			for i := range p.Learning.Events {
				if p.Learning.Events[i].Type == EventFeedbackReceived {
					p.Learning.TotalFeedback++
				}
			}
		}
		p.Version = 2
	}

	l.logger.Info().
		Str("user_id", p.UserID).
		Int("from", from).
		Int("to", p.Version).
		Msg("profile schema upgraded")
}

// snapshotDue reports whether this save coincides with the snapshot
// interval on the cumulative learning-event counter.
func (l *Lifecycle) snapshotDue(p *Profile) bool {
	return p.Learning.TotalEvents > 0 &&
		p.Learning.TotalEvents%l.cfg.Lifecycle.SnapshotInterval == 0
}

// writeSnapshot appends the profile to the bounded snapshot ring.
func (l *Lifecycle) writeSnapshot(ctx context.Context, p *Profile) error {
	key := storage.SnapshotKey(p.UserID)

	var ring snapshotRing
	if raw, err := l.store.Get(ctx, key); err == nil {
		// Corrupt ring decodes to empty and is rebuilt from here on.
		_ = json.Unmarshal(raw, &ring)
	}

	ring.Slots = append(ring.Slots, snapshotSlot{TakenAt: time.Now(), Profile: *p})
	if overflow := len(ring.Slots) - l.cfg.Lifecycle.SnapshotSlots; overflow > 0 {
		ring.Slots = ring.Slots[overflow:]
	}

	raw, err := json.Marshal(&ring)
	if err != nil {
		return fmt.Errorf("marshal snapshot ring: %w", err)
	}
	return l.store.Set(ctx, key, raw)
}

// recoverFromSnapshot returns the newest valid snapshot, or nil when no
// usable snapshot exists.
func (l *Lifecycle) recoverFromSnapshot(ctx context.Context, userID string) *Profile {
	raw, err := l.store.Get(ctx, storage.SnapshotKey(userID))
	if err != nil {
		return nil
	}

	var ring snapshotRing
	if err := json.Unmarshal(raw, &ring); err != nil {
		return nil
	}

	for i := len(ring.Slots) - 1; i >= 0; i-- {
		p := ring.Slots[i].Profile
		if p.UserID == "" {
			continue
		}
		l.normalize(&p)
		l.logger.Info().
			Str("user_id", userID).
			Time("taken_at", ring.Slots[i].TakenAt).
			Msg("profile recovered from snapshot")
		return &p
	}
	return nil
}

// appendEvent appends to the audit log, FIFO-pruning past the cap. The
// cumulative counters are never pruned.
func (l *Lifecycle) appendEvent(p *Profile, event LearningEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.Learning.Events = append(p.Learning.Events, event)
	p.Learning.TotalEvents++

	if overflow := len(p.Learning.Events) - l.cfg.Lifecycle.MaxLearningEvents; overflow > 0 {
		p.Learning.Events = p.Learning.Events[overflow:]
	}
}
