package orders

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/feeledger/internal/invoices"
	"github.com/angelmondragon/feeledger/internal/ledger"
	"github.com/angelmondragon/feeledger/pkg/db/dbtest"
	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/events"
	"github.com/angelmondragon/feeledger/pkg/locks"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

type fixedRate struct{}

func (fixedRate) ResolveRate(context.Context, uuid.UUID, time.Time) (decimal.Decimal, error) {
	return decimal.NewFromInt(5), nil
}

func newTestHandler(t *testing.T) (*Handler, ledger.Service, invoices.Service) {
	t.Helper()
	client := dbtest.NewClient(t)
	locker := locks.NewLocalLocker(locks.Options{Timeout: time.Second})
	ledgerRepo := ledger.NewRepository(client.DB())
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledgerRepo,
		DB:     client,
		Rates:  fixedRate{},
		Locker: locker,
	})
	require.NoError(t, err)
	invoiceSvc, err := invoices.NewService(invoices.ServiceParams{
		Repo:       invoices.NewRepository(client.DB()),
		LedgerRepo: ledgerRepo,
		Ledger:     ledgerSvc,
		DB:         client,
		Locker:     locker,
		Logger:     logger.New(logger.Options{ServiceName: "orders-handler-test", Output: io.Discard}),
		DueDays:    15,
	})
	require.NoError(t, err)
	handler, err := NewHandler(ledgerSvc, invoiceSvc)
	require.NoError(t, err)
	return handler, ledgerSvc, invoiceSvc
}

func envelopeOf(t *testing.T, data any) events.PayloadEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return events.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now().UTC(), Data: raw}
}

func TestHandlerOrderLifecycle(t *testing.T) {
	handler, ledgerSvc, invoiceSvc := newTestHandler(t)
	ctx := context.Background()
	orderID, supplierID := uuid.New(), uuid.New()
	completedAt := time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)

	require.NoError(t, handler.Handle(ctx, enums.EventOrderCompleted, envelopeOf(t, events.OrderCompletedEvent{
		OrderID:        orderID,
		SupplierID:     supplierID,
		OrderType:      enums.OrderTypeRental,
		EffectiveValue: decimal.NewFromInt(1000),
		CompletedAt:    completedAt,
	})))
	entry, err := ledgerSvc.GetByOrderID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, "50.00", entry.FeeAmount.StringFixed(2))

	err = handler.Handle(ctx, enums.EventOrderCompleted, envelopeOf(t, events.OrderCompletedEvent{
		OrderID:        orderID,
		SupplierID:     supplierID,
		OrderType:      enums.OrderTypeRental,
		EffectiveValue: decimal.NewFromInt(1000),
		CompletedAt:    completedAt,
	}))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	require.NoError(t, handler.Handle(ctx, enums.EventOrderAdjusted, envelopeOf(t, events.OrderAdjustedEvent{
		OrderID:        orderID,
		EffectiveValue: decimal.NewFromInt(900),
	})))
	entry, err = ledgerSvc.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, "45.00", entry.FeeAmount.StringFixed(2))

	result, err := invoiceSvc.RunSupplier(ctx, supplierID, invoices.PeriodOf(completedAt))
	require.NoError(t, err)
	require.NoError(t, handler.Handle(ctx, enums.EventFeeInvoicePaid, envelopeOf(t, events.FeeInvoicePaidEvent{InvoiceID: result.Invoice.ID})))
	entry, err = ledgerSvc.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, enums.LedgerEntryStatusPaid, entry.Status)

	require.NoError(t, handler.Handle(ctx, enums.EventOrderPurged, envelopeOf(t, events.OrderPurgedEvent{OrderID: orderID})))
	entry, err = ledgerSvc.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	require.Nil(t, entry.OrderID)
}

func TestHandlerIgnoresOwnEvents(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	err := handler.Handle(context.Background(), enums.EventFeeInvoiceIssued, envelopeOf(t, map[string]string{}))
	require.ErrorIs(t, err, errIgnored)
}

func TestHandlerRejectsEmptyPayload(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	err := handler.Handle(context.Background(), enums.EventOrderPurged, events.PayloadEnvelope{EventID: uuid.NewString()})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
