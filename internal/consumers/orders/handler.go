package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/feeledger/internal/ledger"
	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/events"
)

type ledgerWriter interface {
	CreateEntry(ctx context.Context, input ledger.OrderCompletion) (*models.LedgerEntry, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error)
	AdjustEffectiveValue(ctx context.Context, entryID uuid.UUID, value decimal.Decimal) (*models.LedgerEntry, error)
	DetachOrder(ctx context.Context, orderID uuid.UUID) error
}

type invoicePayer interface {
	MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
}

// Handler applies one decoded order event to the ledger.
type Handler struct {
	ledger   ledgerWriter
	invoices invoicePayer
}

func NewHandler(ledgerSvc ledgerWriter, invoiceSvc invoicePayer) (*Handler, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if invoiceSvc == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	return &Handler{ledger: ledgerSvc, invoices: invoiceSvc}, nil
}

// Handle dispatches on eventType. Events the ledger does not consume return errIgnored.
func (h *Handler) Handle(ctx context.Context, eventType enums.BillingEventType, envelope events.PayloadEnvelope) error {
	switch eventType {
	case enums.EventOrderCompleted:
		var payload events.OrderCompletedEvent
		if err := decode(envelope, &payload); err != nil {
			return err
		}
		_, err := h.ledger.CreateEntry(ctx, ledger.OrderCompletion{
			OrderID:        payload.OrderID,
			SupplierID:     payload.SupplierID,
			OrderType:      payload.OrderType,
			EffectiveValue: payload.EffectiveValue,
			CompletedAt:    payload.CompletedAt,
			Notes:          payload.Notes,
		})
		return err

	case enums.EventOrderAdjusted:
		var payload events.OrderAdjustedEvent
		if err := decode(envelope, &payload); err != nil {
			return err
		}
		entry, err := h.ledger.GetByOrderID(ctx, payload.OrderID)
		if err != nil {
			return err
		}
		_, err = h.ledger.AdjustEffectiveValue(ctx, entry.ID, payload.EffectiveValue)
		return err

	case enums.EventOrderPurged:
		var payload events.OrderPurgedEvent
		if err := decode(envelope, &payload); err != nil {
			return err
		}
		return h.ledger.DetachOrder(ctx, payload.OrderID)

	case enums.EventFeeInvoicePaid:
		var payload events.FeeInvoicePaidEvent
		if err := decode(envelope, &payload); err != nil {
			return err
		}
		_, err := h.invoices.MarkInvoicePaid(ctx, payload.InvoiceID)
		return err

	default:
		return errIgnored
	}
}

func decode(envelope events.PayloadEnvelope, dst any) error {
	if len(envelope.Data) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "event payload is empty")
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event payload")
	}
	return nil
}
