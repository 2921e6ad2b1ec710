// Package events defines the wire format of billing-related Pub/Sub messages.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/feeledger/pkg/enums"
)

const (
	// AttrEventType is the message attribute carrying the event type.
	AttrEventType = "event_type"
	// AttrAggregateID carries the id of the aggregate the event is about.
	AttrAggregateID = "aggregate_id"

	envelopeVersion = 1
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure carried in every message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// Message is an encoded event ready to publish.
type Message struct {
	Data       []byte
	Attributes map[string]string
}

// Encode wraps data in a fresh envelope and returns the message body plus attributes.
func Encode(eventType enums.BillingEventType, aggregateID uuid.UUID, occurredAt time.Time, data any) (Message, error) {
	if !eventType.IsValid() {
		return Message{}, fmt.Errorf("invalid event type %q", eventType)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	body, err := json.Marshal(PayloadEnvelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Data:       raw,
	})
	if err != nil {
		return Message{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return Message{
		Data: body,
		Attributes: map[string]string{
			AttrEventType:   string(eventType),
			AttrAggregateID: aggregateID.String(),
		},
	}, nil
}

// Decode parses a message body into its envelope and validates the event id.
func Decode(body []byte) (PayloadEnvelope, uuid.UUID, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return PayloadEnvelope{}, uuid.Nil, fmt.Errorf("decode envelope: %w", err)
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return PayloadEnvelope{}, uuid.Nil, fmt.Errorf("invalid event id %q: %w", envelope.EventID, err)
	}
	return envelope, eventID, nil
}
