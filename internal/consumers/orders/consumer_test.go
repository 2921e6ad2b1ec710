package orders

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/events"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

type stubManager struct {
	seen     map[uuid.UUID]bool
	deleted  []uuid.UUID
	checkErr error
}

func (s *stubManager) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if s.checkErr != nil {
		return false, s.checkErr
	}
	if s.seen == nil {
		s.seen = map[uuid.UUID]bool{}
	}
	already := s.seen[eventID]
	s.seen[eventID] = true
	return already, nil
}

func (s *stubManager) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	s.deleted = append(s.deleted, eventID)
	delete(s.seen, eventID)
	return nil
}

type stubHandler struct {
	calls int
	err   error
}

func (s *stubHandler) Handle(context.Context, enums.BillingEventType, events.PayloadEnvelope) error {
	s.calls++
	return s.err
}

type recordedOutcome struct{ eventType, result string }

type recordingObserver struct{ outcomes []recordedOutcome }

func (r *recordingObserver) ObserveEvent(eventType, result string) {
	r.outcomes = append(r.outcomes, recordedOutcome{eventType, result})
}

type noopReceiver struct{}

func (noopReceiver) Receive(context.Context, func(context.Context, *gcppubsub.Message)) error {
	return nil
}

func newTestConsumer(t *testing.T, handler eventHandler, manager *stubManager, observer EventObserver) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(ConsumerParams{
		Subscription: noopReceiver{},
		Handler:      handler,
		Idempotency:  manager,
		Logger:       logger.New(logger.Options{ServiceName: "orders-consumer-test", Output: io.Discard}),
		Observer:     observer,
	})
	require.NoError(t, err)
	return consumer
}

func completedMessage(t *testing.T) *gcppubsub.Message {
	t.Helper()
	orderID := uuid.New()
	msg, err := events.Encode(enums.EventOrderCompleted, orderID, time.Now(), events.OrderCompletedEvent{
		OrderID:        orderID,
		SupplierID:     uuid.New(),
		OrderType:      enums.OrderTypeMaterial,
		EffectiveValue: decimal.NewFromInt(1000),
		CompletedAt:    time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return &gcppubsub.Message{ID: "m-1", Data: msg.Data, Attributes: msg.Attributes}
}

func TestNewConsumerRequiresDependencies(t *testing.T) {
	_, err := NewConsumer(ConsumerParams{})
	require.Error(t, err)
}

func TestProcessAppliesEventOnce(t *testing.T) {
	handler := &stubHandler{}
	manager := &stubManager{}
	observer := &recordingObserver{}
	consumer := newTestConsumer(t, handler, manager, observer)
	msg := completedMessage(t)

	res := consumer.process(context.Background(), msg)
	require.False(t, res.nack)
	require.Equal(t, ResultProcessed, res.result)

	res = consumer.process(context.Background(), msg)
	require.False(t, res.nack)
	require.Equal(t, ResultDuplicate, res.result)
	require.Equal(t, 1, handler.calls)
	require.Equal(t, []recordedOutcome{
		{"order_completed", ResultProcessed},
		{"order_completed", ResultDuplicate},
	}, observer.outcomes)
}

func TestProcessConflictIsAcked(t *testing.T) {
	handler := &stubHandler{err: pkgerrors.New(pkgerrors.CodeConflict, "exists")}
	consumer := newTestConsumer(t, handler, &stubManager{}, nil)

	res := consumer.process(context.Background(), completedMessage(t))
	require.False(t, res.nack)
	require.Equal(t, ResultDuplicate, res.result)
}

func TestProcessRetryableErrorClearsMarker(t *testing.T) {
	handler := &stubHandler{err: pkgerrors.New(pkgerrors.CodeBusy, "supplier busy")}
	manager := &stubManager{}
	consumer := newTestConsumer(t, handler, manager, nil)
	msg := completedMessage(t)

	res := consumer.process(context.Background(), msg)
	require.True(t, res.nack)
	require.Len(t, manager.deleted, 1)

	handler.err = nil
	res = consumer.process(context.Background(), msg)
	require.False(t, res.nack)
	require.Equal(t, ResultProcessed, res.result)
	require.Equal(t, 2, handler.calls)
}

func TestProcessUntypedErrorRetries(t *testing.T) {
	handler := &stubHandler{err: errors.New("connection reset")}
	consumer := newTestConsumer(t, handler, &stubManager{}, nil)
	require.True(t, consumer.process(context.Background(), completedMessage(t)).nack)
}

func TestProcessNonRetryableErrorIsAcked(t *testing.T) {
	handler := &stubHandler{err: pkgerrors.New(pkgerrors.CodeInvalidTransition, "paid")}
	consumer := newTestConsumer(t, handler, &stubManager{}, nil)

	res := consumer.process(context.Background(), completedMessage(t))
	require.False(t, res.nack)
	require.Equal(t, ResultRejected, res.result)
}

func TestProcessIdempotencyFailureNacks(t *testing.T) {
	handler := &stubHandler{}
	consumer := newTestConsumer(t, handler, &stubManager{checkErr: errors.New("redis down")}, nil)

	require.True(t, consumer.process(context.Background(), completedMessage(t)).nack)
	require.Zero(t, handler.calls)
}

func TestProcessMalformedMessagesAreDropped(t *testing.T) {
	handler := &stubHandler{}
	observer := &recordingObserver{}
	consumer := newTestConsumer(t, handler, &stubManager{}, observer)

	unknown := &gcppubsub.Message{ID: "m-2", Data: []byte(`{}`), Attributes: map[string]string{events.AttrEventType: "order_shipped"}}
	res := consumer.process(context.Background(), unknown)
	require.False(t, res.nack)
	require.Equal(t, ResultIgnored, res.result)

	garbled := &gcppubsub.Message{ID: "m-3", Data: []byte(`not json`), Attributes: map[string]string{events.AttrEventType: "order_completed"}}
	res = consumer.process(context.Background(), garbled)
	require.False(t, res.nack)
	require.Equal(t, ResultRejected, res.result)

	require.Zero(t, handler.calls)
	require.Equal(t, "unknown", observer.outcomes[0].eventType)
}
