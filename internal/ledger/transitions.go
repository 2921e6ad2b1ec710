package ledger

import (
	"fmt"

	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

// allowedTransitions lists every legal (from, to) pair. Leaving disputed is
// further restricted to the status recorded when the dispute began.
var allowedTransitions = map[enums.LedgerEntryStatus][]enums.LedgerEntryStatus{
	enums.LedgerEntryStatusPending:  {enums.LedgerEntryStatusInvoiced, enums.LedgerEntryStatusDisputed},
	enums.LedgerEntryStatusInvoiced: {enums.LedgerEntryStatusPaid, enums.LedgerEntryStatusDisputed},
	enums.LedgerEntryStatusPaid:     {enums.LedgerEntryStatusDisputed},
	enums.LedgerEntryStatusDisputed: {enums.LedgerEntryStatusPending, enums.LedgerEntryStatusInvoiced, enums.LedgerEntryStatusPaid},
}

// CanTransition reports whether (from, to) appears in the transition table.
func CanTransition(from, to enums.LedgerEntryStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func invalidTransition(from, to enums.LedgerEntryStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("ledger entry cannot move from %s to %s", from, to)).
		WithDetails(map[string]string{"from": from.String(), "to": to.String()})
}

func staleState(expected, actual enums.LedgerEntryStatus) error {
	return pkgerrors.New(pkgerrors.CodeStaleState, "ledger entry changed since it was read").
		WithDetails(map[string]string{"expected": expected.String(), "actual": actual.String()})
}

// checkRevert enforces that a disputed entry only returns to the status it held before.
func checkRevert(to enums.LedgerEntryStatus, prior *enums.LedgerEntryStatus) error {
	if prior == nil || *prior != to {
		return invalidTransition(enums.LedgerEntryStatusDisputed, to)
	}
	return nil
}

// checkInvoiceTarget rejects attaching entry to an invoice of another supplier,
// a paid invoice, or one whose period ends before the entry completed.
func checkInvoiceTarget(entry *models.LedgerEntry, invoice *models.Invoice) error {
	switch {
	case invoice.SupplierID != entry.SupplierID:
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice belongs to another supplier")
	case invoice.Finalized():
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "a paid invoice accepts no new entries").
			WithDetails(map[string]string{"invoice_status": invoice.Status.String()})
	case !entry.CompletedAt.Before(invoice.PeriodEnd.AddDate(0, 0, 1)):
		return pkgerrors.New(pkgerrors.CodeValidation, "entry completed after the invoice period")
	}
	return nil
}

// feeAdjustable reports whether the fee base of an entry may still change.
func feeAdjustable(status enums.LedgerEntryStatus, prior *enums.LedgerEntryStatus) bool {
	switch status {
	case enums.LedgerEntryStatusPending:
		return true
	case enums.LedgerEntryStatusDisputed:
		return prior == nil || *prior != enums.LedgerEntryStatusPaid
	default:
		return false
	}
}
