package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/feeledger/pkg/enums"
)

// Publisher emits billing events.
type Publisher interface {
	Publish(ctx context.Context, eventType enums.BillingEventType, aggregateID uuid.UUID, data any) error
}

// PubSubPublisher publishes envelopes to a Pub/Sub topic.
type PubSubPublisher struct {
	topic *pubsub.Publisher
	now   func() time.Time
}

// NewPubSubPublisher wraps a topic publisher.
func NewPubSubPublisher(topic *pubsub.Publisher) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &PubSubPublisher{topic: topic, now: time.Now}, nil
}

// Publish encodes data and blocks until the server acknowledges the message.
func (p *PubSubPublisher) Publish(ctx context.Context, eventType enums.BillingEventType, aggregateID uuid.UUID, data any) error {
	msg, err := Encode(eventType, aggregateID, p.now(), data)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// NoopPublisher drops every event. It is used when no billing topic is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, enums.BillingEventType, uuid.UUID, any) error {
	return nil
}
