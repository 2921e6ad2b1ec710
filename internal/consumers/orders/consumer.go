// Package orders consumes order lifecycle events and keeps the fee ledger in step.
package orders

import (
	"context"
	"errors"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/events"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

const consumerName = "ledger"

// Outcomes reported to the event observer.
const (
	ResultProcessed = "processed"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultRejected  = "rejected"
	ResultRetry     = "retry"
)

var errIgnored = errors.New("event not consumed by ledger")

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type eventHandler interface {
	Handle(ctx context.Context, eventType enums.BillingEventType, envelope events.PayloadEnvelope) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// EventObserver counts consumer outcomes per event type.
type EventObserver interface {
	ObserveEvent(eventType, result string)
}

type ConsumerParams struct {
	Subscription receiver
	Handler      eventHandler
	Idempotency  idempotencyChecker
	Logger       *logger.Logger
	Observer     EventObserver
}

// Consumer receives order events exactly once per event id.
type Consumer struct {
	subscription receiver
	handler      eventHandler
	manager      idempotencyChecker
	logg         *logger.Logger
	observer     EventObserver
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, errors.New("orders subscription is required")
	}
	if params.Handler == nil {
		return nil, errors.New("event handler is required")
	}
	if params.Idempotency == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		subscription: params.Subscription,
		handler:      params.Handler,
		manager:      params.Idempotency,
		logg:         params.Logger,
		observer:     params.Observer,
	}, nil
}

type processResult struct {
	nack   bool
	result string
}

// Run consumes messages until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if c.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}
	rawType := strings.TrimSpace(msg.Attributes[events.AttrEventType])
	fields["event_type"] = rawType
	logCtx := c.logg.WithFields(ctx, fields)

	eventType, err := enums.ParseBillingEventType(rawType)
	if err != nil {
		c.logg.Warn(logCtx, "unknown event type")
		return c.finish(rawType, processResult{result: ResultIgnored})
	}

	envelope, eventID, err := events.Decode(msg.Data)
	if err != nil {
		fields["error"] = err.Error()
		c.logg.Warn(c.logg.WithFields(ctx, fields), "invalid event envelope")
		return c.finish(rawType, processResult{result: ResultRejected})
	}
	fields["event_id"] = eventID.String()
	fields["aggregate_id"] = msg.Attributes[events.AttrAggregateID]
	logCtx = c.logg.WithFields(ctx, fields)

	already, err := c.manager.CheckAndMarkProcessed(logCtx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return c.finish(rawType, processResult{nack: true, result: ResultRetry})
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return c.finish(rawType, processResult{result: ResultDuplicate})
	}

	err = c.handler.Handle(logCtx, eventType, envelope)
	switch {
	case err == nil:
		c.logg.Info(logCtx, "order event applied")
		return c.finish(rawType, processResult{result: ResultProcessed})
	case errors.Is(err, errIgnored):
		c.logg.Debug(logCtx, "event ignored by ledger consumer")
		return c.finish(rawType, processResult{result: ResultIgnored})
	case pkgerrors.HasCode(err, pkgerrors.CodeConflict):
		c.logg.Info(logCtx, "ledger already reflects event")
		return c.finish(rawType, processResult{result: ResultDuplicate})
	case pkgerrors.IsRetryable(err) || pkgerrors.As(err) == nil:
		c.logg.Error(logCtx, "order event failed; will retry", err)
		if delErr := c.manager.Delete(logCtx, consumerName, eventID); delErr != nil {
			c.logg.Error(logCtx, "failed to clear idempotency marker", delErr)
		}
		return c.finish(rawType, processResult{nack: true, result: ResultRetry})
	default:
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "order event rejected")
		return c.finish(rawType, processResult{result: ResultRejected})
	}
}

func (c *Consumer) finish(eventType string, res processResult) processResult {
	if c.observer != nil {
		c.observer.ObserveEvent(eventTypeLabel(eventType), res.result)
	}
	return res
}

func eventTypeLabel(raw string) string {
	if _, err := enums.ParseBillingEventType(raw); err != nil {
		return "unknown"
	}
	return raw
}
