package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/pubsub"
)

// MessagePublisher sends raw bytes to a topic.
type MessagePublisher interface {
	Publish(ctx context.Context, topicID string, data []byte) (string, error)
}

// PubSubAdapter provides message publishing using Google Cloud Pub/Sub
type PubSubAdapter struct {
	Client *pubsub.Client
}

func (a *PubSubAdapter) Publish(ctx context.Context, topicID string, data []byte) (string, error) {
	topic := a.Client.Topic(topicID)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	return res.Get(ctx)
}

// LogPublisher only logs. Used for local development.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, topicID string, data []byte) (string, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Publish (log only)", "topic", topicID, "payload", string(data))
	return "log-msg-id", nil
}

// AnalyzedEvent is the payload of an activities.analyzed event.
type AnalyzedEvent struct {
	UserID        string    `json:"user_id"`
	RunID         string    `json:"run_id"`
	ActivityCount int       `json:"activity_count"`
	AnalyzedAt    time.Time `json:"analyzed_at"`
}

// AnalyzedPublisher announces finished pipeline runs as CloudEvents.
type AnalyzedPublisher struct {
	publisher MessagePublisher
	topic     string
	now       func() time.Time
}

func NewAnalyzedPublisher(publisher MessagePublisher, topic string) *AnalyzedPublisher {
	return &AnalyzedPublisher{publisher: publisher, topic: topic, now: time.Now}
}

func (p *AnalyzedPublisher) PublishAnalyzed(ctx context.Context, userID, runID string, count int) error {
	e, err := NewCloudEvent(EventSource, EventTypeAnalyzed, AnalyzedEvent{
		UserID:        userID,
		RunID:         runID,
		ActivityCount: count,
		AnalyzedAt:    p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("build cloud event: %w", err)
	}
	e.SetSubject(userID)

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cloud event: %w", err)
	}

	if _, err := p.publisher.Publish(ctx, p.topic, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}
