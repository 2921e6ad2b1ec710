// Package ledger owns the per-order fee obligations and their status lifecycle.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/internal/fees"
	"github.com/angelmondragon/feeledger/pkg/db"
	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/locks"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithReadTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TransitionObserver is notified after a status change is applied.
type TransitionObserver interface {
	ObserveTransition(from, to string)
}

// Service is the authoritative store of ledger entries.
//
// Methods without a Tx suffix acquire the supplier lock and open their own
// transaction. The Tx variants run inside a caller-owned transaction and assume
// the caller already holds the supplier lock.
type Service interface {
	CreateEntry(ctx context.Context, input OrderCompletion) (*models.LedgerEntry, error)
	Transition(ctx context.Context, input TransitionInput) (*models.LedgerEntry, error)
	TransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.LedgerEntry, error)
	InvoiceEntriesTx(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, entryIDs []uuid.UUID) error
	AdjustEffectiveValue(ctx context.Context, entryID uuid.UUID, value decimal.Decimal) (*models.LedgerEntry, error)
	AdjustEffectiveValueTx(ctx context.Context, tx *gorm.DB, entryID uuid.UUID, value decimal.Decimal) (*models.LedgerEntry, error)
	DetachOrder(ctx context.Context, orderID uuid.UUID) error
	ConfirmPayment(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error)
	GetByID(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID, from, to time.Time) ([]models.LedgerEntry, error)
}

// OrderCompletion is the fact that creates a ledger entry.
type OrderCompletion struct {
	OrderID        uuid.UUID
	SupplierID     uuid.UUID
	OrderType      enums.OrderType
	EffectiveValue decimal.Decimal
	CompletedAt    time.Time
	Notes          string
}

// TransitionInput requests a guarded status change. InvoiceID is required
// when moving pending entries to invoiced.
type TransitionInput struct {
	EntryID   uuid.UUID
	From      enums.LedgerEntryStatus
	To        enums.LedgerEntryStatus
	InvoiceID *uuid.UUID
}

type ServiceParams struct {
	Repo     Repository
	DB       txRunner
	Rates    fees.RateResolver
	Locker   locks.SupplierLocker
	Observer TransitionObserver
	Clock    func() time.Time
}

type service struct {
	repo     Repository
	db       txRunner
	rates    fees.RateResolver
	locker   locks.SupplierLocker
	observer TransitionObserver
	now      func() time.Time
}

var _ txRunner = (*db.Client)(nil)

// NewService wires the ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Rates == nil {
		return nil, fmt.Errorf("fee rate resolver required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("supplier locker required")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		db:       params.DB,
		rates:    params.Rates,
		locker:   params.Locker,
		observer: params.Observer,
		now:      now,
	}, nil
}

func (s *service) CreateEntry(ctx context.Context, input OrderCompletion) (*models.LedgerEntry, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	if !input.OrderType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order type %q", input.OrderType))
	}
	if input.CompletedAt.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "completed at is required")
	}

	rate, err := s.rates.ResolveRate(ctx, input.SupplierID, input.CompletedAt)
	if err != nil {
		return nil, err
	}
	feeAmount, err := fees.Calculate(input.EffectiveValue, rate)
	if err != nil {
		return nil, err
	}

	orderID := input.OrderID
	entry := &models.LedgerEntry{
		SupplierID:     input.SupplierID,
		OrderID:        &orderID,
		OrderType:      input.OrderType,
		EffectiveValue: input.EffectiveValue,
		FeePercentage:  rate,
		FeeAmount:      feeAmount,
		Status:         enums.LedgerEntryStatusPending,
		CompletedAt:    input.CompletedAt.UTC(),
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		entry.Notes = &notes
	}

	err = s.locker.WithSupplierLock(ctx, input.SupplierID, func(ctx context.Context) error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if _, err := repo.FindByOrderID(ctx, orderID); err == nil {
				return duplicateOrder(orderID)
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing ledger entry")
			}

			// A dispute opened before the order completed holds the entry from the start.
			dispute, err := repo.FindUnresolvedDispute(ctx, orderID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
			case err != nil:
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open dispute for order")
			case dispute.SupplierID != input.SupplierID:
				dispute = nil
			default:
				prior := enums.LedgerEntryStatusPending
				entry.Status = enums.LedgerEntryStatusDisputed
				entry.PriorStatus = &prior
			}

			if err := repo.Create(ctx, entry); err != nil {
				if db.IsUniqueViolation(err, "") {
					return duplicateOrder(orderID)
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ledger entry")
			}
			if dispute != nil {
				if _, err := repo.LinkDispute(ctx, dispute.ID, entry.ID); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link dispute to ledger entry")
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func duplicateOrder(orderID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("ledger entry already exists for order %s", orderID))
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.LedgerEntry, error) {
	if err := validateTransitionInput(input); err != nil {
		return nil, err
	}
	current, err := s.GetByID(ctx, input.EntryID)
	if err != nil {
		return nil, err
	}

	var updated *models.LedgerEntry
	err = s.locker.WithSupplierLock(ctx, current.SupplierID, func(ctx context.Context) error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			updated, err = s.transition(ctx, s.repo.WithTx(tx), input)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.observe(input.From, input.To)
	return updated, nil
}

func (s *service) TransitionTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.LedgerEntry, error) {
	if err := validateTransitionInput(input); err != nil {
		return nil, err
	}
	updated, err := s.transition(ctx, s.repo.WithTx(tx), input)
	if err != nil {
		return nil, err
	}
	s.observe(input.From, input.To)
	return updated, nil
}

func validateTransitionInput(input TransitionInput) error {
	if input.EntryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}
	if !input.From.IsValid() || !input.To.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "from and to must be valid ledger statuses")
	}
	if !CanTransition(input.From, input.To) {
		return invalidTransition(input.From, input.To)
	}
	if invoicing(input) {
		if input.InvoiceID == nil || *input.InvoiceID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required to invoice an entry")
		}
	}
	return nil
}

func invoicing(input TransitionInput) bool {
	return input.From == enums.LedgerEntryStatusPending && input.To == enums.LedgerEntryStatusInvoiced
}

func (s *service) transition(ctx context.Context, repo Repository, input TransitionInput) (*models.LedgerEntry, error) {
	current, err := findEntry(ctx, repo, input.EntryID)
	if err != nil {
		return nil, err
	}
	if current.Status != input.From {
		return nil, staleState(input.From, current.Status)
	}

	var invoice *models.Invoice
	if invoicing(input) {
		invoice, err = findInvoice(ctx, repo, *input.InvoiceID)
		if err != nil {
			return nil, err
		}
		if err := checkInvoiceTarget(current, invoice); err != nil {
			return nil, err
		}
	}

	updated, err := s.apply(ctx, repo, current, input)
	if err != nil {
		return nil, err
	}
	if invoice != nil {
		if _, _, err := repo.ReconcileInvoice(ctx, invoice.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile invoice total")
		}
	}
	return updated, nil
}

// InvoiceEntriesTx moves pending entries onto one invoice in the given order
// and reconciles its total once. The caller holds the supplier lock.
func (s *service) InvoiceEntriesTx(ctx context.Context, tx *gorm.DB, invoiceID uuid.UUID, entryIDs []uuid.UUID) error {
	if invoiceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required to invoice an entry")
	}
	repo := s.repo.WithTx(tx)
	invoice, err := findInvoice(ctx, repo, invoiceID)
	if err != nil {
		return err
	}
	for _, id := range entryIDs {
		current, err := findEntry(ctx, repo, id)
		if err != nil {
			return err
		}
		if current.Status != enums.LedgerEntryStatusPending {
			return staleState(enums.LedgerEntryStatusPending, current.Status)
		}
		if err := checkInvoiceTarget(current, invoice); err != nil {
			return err
		}
		if _, err := s.apply(ctx, repo, current, TransitionInput{
			EntryID:   id,
			From:      enums.LedgerEntryStatusPending,
			To:        enums.LedgerEntryStatusInvoiced,
			InvoiceID: &invoiceID,
		}); err != nil {
			return err
		}
		s.observe(enums.LedgerEntryStatusPending, enums.LedgerEntryStatusInvoiced)
	}
	if _, _, err := repo.ReconcileInvoice(ctx, invoiceID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile invoice total")
	}
	return nil
}

// apply writes the guarded status change for an entry already read in this transaction.
func (s *service) apply(ctx context.Context, repo Repository, current *models.LedgerEntry, input TransitionInput) (*models.LedgerEntry, error) {
	if input.From == enums.LedgerEntryStatusDisputed {
		if err := checkRevert(input.To, current.PriorStatus); err != nil {
			return nil, err
		}
	}

	change := StatusChange{
		From:            input.From,
		To:              input.To,
		ExpectedVersion: current.Version,
	}
	switch {
	case input.To == enums.LedgerEntryStatusDisputed:
		prior := input.From
		change.PriorStatus = &prior
	case input.From == enums.LedgerEntryStatusDisputed:
		change.ClearPrior = true
	}
	if invoicing(input) {
		change.InvoiceID = input.InvoiceID
	}

	rows, err := repo.UpdateStatus(ctx, current.ID, change)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ledger entry status")
	}
	if rows == 0 {
		return nil, s.explainMiss(ctx, repo, current.ID, input.From)
	}
	return findEntry(ctx, repo, current.ID)
}

// explainMiss turns a zero-row guarded update into NotFound or StaleState.
func (s *service) explainMiss(ctx context.Context, repo Repository, id uuid.UUID, expected enums.LedgerEntryStatus) error {
	latest, err := findEntry(ctx, repo, id)
	if err != nil {
		return err
	}
	return staleState(expected, latest.Status)
}

func (s *service) AdjustEffectiveValue(ctx context.Context, entryID uuid.UUID, value decimal.Decimal) (*models.LedgerEntry, error) {
	current, err := s.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	var updated *models.LedgerEntry
	err = s.locker.WithSupplierLock(ctx, current.SupplierID, func(ctx context.Context) error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			updated, err = s.AdjustEffectiveValueTx(ctx, tx, entryID, value)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AdjustEffectiveValueTx recomputes the fee with the entry's frozen rate and
// reconciles the owning invoice.
func (s *service) AdjustEffectiveValueTx(ctx context.Context, tx *gorm.DB, entryID uuid.UUID, value decimal.Decimal) (*models.LedgerEntry, error) {
	if entryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}
	repo := s.repo.WithTx(tx)
	current, err := findEntry(ctx, repo, entryID)
	if err != nil {
		return nil, err
	}
	if !feeAdjustable(current.Status, current.PriorStatus) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("effective value of a %s entry cannot change", describeStatus(current))).
			WithDetails(map[string]string{"status": current.Status.String()})
	}
	if current.InvoiceID != nil {
		invoice, err := findInvoice(ctx, repo, *current.InvoiceID)
		if err != nil {
			return nil, err
		}
		if invoice.Finalized() {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "effective value of an entry on a paid invoice cannot change").
				WithDetails(map[string]string{"invoice_status": invoice.Status.String()})
		}
	}
	feeAmount, err := fees.Calculate(value, current.FeePercentage)
	if err != nil {
		return nil, err
	}

	rows, err := repo.UpdateFee(ctx, current.ID, current.Version, value, feeAmount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ledger entry fee")
	}
	if rows == 0 {
		return nil, s.explainMiss(ctx, repo, current.ID, current.Status)
	}
	if current.InvoiceID != nil {
		if _, _, err := repo.ReconcileInvoice(ctx, *current.InvoiceID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile invoice total")
		}
	}
	return findEntry(ctx, repo, current.ID)
}

func describeStatus(entry *models.LedgerEntry) string {
	if entry.Status == enums.LedgerEntryStatusDisputed && entry.PriorStatus != nil {
		return fmt.Sprintf("disputed (previously %s)", *entry.PriorStatus)
	}
	return entry.Status.String()
}

// DetachOrder drops the order reference after the order record is purged.
// The entry itself is kept for the audit trail.
func (s *service) DetachOrder(ctx context.Context, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	current, err := s.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	return s.locker.WithSupplierLock(ctx, current.SupplierID, func(ctx context.Context) error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			if _, err := s.repo.WithTx(tx).ClearOrder(ctx, orderID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach order from ledger entry")
			}
			return nil
		})
	})
}

// ConfirmPayment settles one invoiced entry. Settling the last unpaid entry of
// an invoice closes the invoice.
func (s *service) ConfirmPayment(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	input := TransitionInput{
		EntryID: entryID,
		From:    enums.LedgerEntryStatusInvoiced,
		To:      enums.LedgerEntryStatusPaid,
	}
	current, err := s.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	var updated *models.LedgerEntry
	err = s.locker.WithSupplierLock(ctx, current.SupplierID, func(ctx context.Context) error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			var err error
			updated, err = s.transition(ctx, repo, input)
			if err != nil {
				return err
			}
			if updated.InvoiceID == nil {
				return nil
			}
			unsettled, err := repo.CountUnsettled(ctx, *updated.InvoiceID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unsettled invoice entries")
			}
			if unsettled > 0 {
				return nil
			}
			if _, err := repo.CloseInvoice(ctx, *updated.InvoiceID, s.now()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close settled invoice")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.observe(input.From, input.To)
	return updated, nil
}

func (s *service) GetByID(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	if entryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}
	var entry *models.LedgerEntry
	err := s.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = findEntry(ctx, s.repo.WithTx(tx), entryID)
		return err
	})
	return entry, err
}

func (s *service) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	var entry *models.LedgerEntry
	err := s.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		found, err := s.repo.WithTx(tx).FindByOrderID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found for order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger entry by order")
		}
		entry = found
		return nil
	})
	return entry, err
}

func (s *service) ListBySupplier(ctx context.Context, supplierID uuid.UUID, from, to time.Time) ([]models.LedgerEntry, error) {
	if supplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	if !to.After(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "range end must be after range start")
	}
	var entries []models.LedgerEntry
	err := s.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		entries, err = s.repo.WithTx(tx).ListBySupplier(ctx, supplierID, from, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
		}
		return nil
	})
	return entries, err
}

func (s *service) observe(from, to enums.LedgerEntryStatus) {
	if s.observer != nil {
		s.observer.ObserveTransition(from.String(), to.String())
	}
}

func findInvoice(ctx context.Context, repo Repository, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := repo.FindInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return invoice, nil
}

func findEntry(ctx context.Context, repo Repository, id uuid.UUID) (*models.LedgerEntry, error) {
	entry, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger entry")
	}
	return entry, nil
}
