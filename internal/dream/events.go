// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayasato/oneiro/internal/metrics"
)

// Bus topics. Consumers subscribe via Engine.Subscribe.
const (
	TopicFeedbackProcessed = "dream.feedback.processed"
	TopicClustersTrained   = "dream.clusters.trained"
	TopicProfileReset      = "dream.profile.reset"
)

// FeedbackProcessedEvent is published after every successful feedback
// update.
type FeedbackProcessedEvent struct {
	UserID          string       `json:"user_id"`
	MediaID         int          `json:"media_id"`
	Type            FeedbackType `json:"type"`
	TotalFeedback   int          `json:"total_feedback"`
	ConfidenceLevel float64      `json:"confidence_level"`
	Timestamp       time.Time    `json:"timestamp"`
}

// ClustersTrainedEvent is published after a successful cluster retraining.
type ClustersTrainedEvent struct {
	UserID           string    `json:"user_id"`
	Version          int       `json:"version"`
	ClusterCount     int       `json:"cluster_count"`
	TrainingDataSize int       `json:"training_data_size"`
	Timestamp        time.Time `json:"timestamp"`
}

// ProfileResetEvent is published when a profile is reset or deleted.
type ProfileResetEvent struct {
	UserID    string    `json:"user_id"`
	Deleted   bool      `json:"deleted"`
	Timestamp time.Time `json:"timestamp"`
}

// eventBus wraps an in-process gochannel pub/sub. Events are advisory:
// publish failures are logged and never fail the operation that produced
// them.
type eventBus struct {
	channel *gochannel.GoChannel
	logger  zerolog.Logger
}

func newEventBus(logger zerolog.Logger) *eventBus {
	wmLogger := watermill.NewStdLogger(false, false)
	return &eventBus{
		channel: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, wmLogger),
		logger: logger.With().Str("component", "eventbus").Logger(),
	}
}

// publish serializes payload and sends it on topic. Best effort.
func (b *eventBus) publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error().Err(err).Str("topic", topic).Msg("serialize event")
		return
	}

	msg := message.NewMessage(uuid.NewString(), data)
	if err := b.channel.Publish(topic, msg); err != nil {
		b.logger.Error().Err(err).Str("topic", topic).Msg("publish event")
		return
	}

	metrics.EventsPublished.WithLabelValues(topic).Inc()
}

func (b *eventBus) close() error {
	return b.channel.Close()
}
