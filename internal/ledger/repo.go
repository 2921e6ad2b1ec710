package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/enums"
)

// Filter narrows a ledger search. From is inclusive, To is exclusive.
type Filter struct {
	SupplierID *uuid.UUID
	From       *time.Time
	To         *time.Time
	OrderType  *enums.OrderType
	Status     *enums.LedgerEntryStatus
}

// StatusChange describes a guarded status update.
type StatusChange struct {
	From            enums.LedgerEntryStatus
	To              enums.LedgerEntryStatus
	ExpectedVersion int
	PriorStatus     *enums.LedgerEntryStatus
	ClearPrior      bool
	InvoiceID       *uuid.UUID
}

// Repository manages persistence for ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, change StatusChange) (int64, error)
	UpdateFee(ctx context.Context, id uuid.UUID, expectedVersion int, effectiveValue, feeAmount decimal.Decimal) (int64, error)
	ClearOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID, from, to time.Time) ([]models.LedgerEntry, error)
	ListPending(ctx context.Context, supplierID uuid.UUID, before time.Time) ([]models.LedgerEntry, error)
	SuppliersWithPending(ctx context.Context, before time.Time) ([]uuid.UUID, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.LedgerEntry, error)
	Search(ctx context.Context, filter Filter) ([]models.LedgerEntry, error)
	ReconcileInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, int, error)
	FindInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	CountUnsettled(ctx context.Context, invoiceID uuid.UUID) (int64, error)
	CloseInvoice(ctx context.Context, invoiceID uuid.UUID, paidAt time.Time) (int64, error)
	SettleDisputedPriors(ctx context.Context, invoiceID uuid.UUID) (int64, error)
	FindUnresolvedDispute(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	LinkDispute(ctx context.Context, disputeID, entryID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateStatus applies change only while the row still holds change.From at
// change.ExpectedVersion. It returns the number of rows updated.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, change StatusChange) (int64, error) {
	updates := map[string]any{
		"status":  change.To,
		"version": gorm.Expr("version + 1"),
	}
	if change.PriorStatus != nil {
		updates["prior_status"] = *change.PriorStatus
	}
	if change.ClearPrior {
		updates["prior_status"] = nil
	}
	if change.InvoiceID != nil {
		updates["invoice_id"] = *change.InvoiceID
	}
	res := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id = ? AND status = ? AND version = ?", id, change.From, change.ExpectedVersion).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateFee(ctx context.Context, id uuid.UUID, expectedVersion int, effectiveValue, feeAmount decimal.Decimal) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"effective_value": effectiveValue,
			"fee_amount":      feeAmount,
			"version":         gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ClearOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{
			"order_id": nil,
			"version":  gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ListBySupplier(ctx context.Context, supplierID uuid.UUID, from, to time.Time) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND completed_at >= ? AND completed_at < ?", supplierID, from.UTC(), to.UTC()).
		Order("completed_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListPending returns the supplier's pending entries completed before the cutoff
// in batch order.
func (r *repository) ListPending(ctx context.Context, supplierID uuid.UUID, before time.Time) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND status = ? AND completed_at < ?", supplierID, enums.LedgerEntryStatusPending, before.UTC()).
		Order("completed_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SuppliersWithPending(ctx context.Context, before time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Distinct("supplier_id").
		Where("status = ? AND completed_at < ?", enums.LedgerEntryStatusPending, before.UTC()).
		Order("supplier_id ASC").
		Pluck("supplier_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("completed_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) Search(ctx context.Context, filter Filter) ([]models.LedgerEntry, error) {
	q := r.db.WithContext(ctx).Model(&models.LedgerEntry{})
	if filter.SupplierID != nil {
		q = q.Where("supplier_id = ?", *filter.SupplierID)
	}
	if filter.From != nil {
		q = q.Where("completed_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("completed_at < ?", filter.To.UTC())
	}
	if filter.OrderType != nil {
		q = q.Where("order_type = ?", *filter.OrderType)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	var entries []models.LedgerEntry
	if err := q.Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ReconcileInvoice recomputes the invoice total from the entries that carry its id.
// Amounts are summed as decimals so the total never drifts from the entries.
func (r *repository) ReconcileInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, int, error) {
	var amounts []decimal.Decimal
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("invoice_id = ?", invoiceID).
		Pluck("fee_amount", &amounts).Error; err != nil {
		return decimal.Zero, 0, err
	}
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	total = total.Round(2)
	if err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", invoiceID).
		Updates(map[string]any{
			"total_fees":  total,
			"entry_count": len(amounts),
		}).Error; err != nil {
		return decimal.Zero, 0, err
	}
	return total, len(amounts), nil
}

func (r *repository) FindInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", invoiceID).Take(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// CountUnsettled counts the invoice's entries still awaiting payment, including
// disputed ones that were invoiced when the dispute began.
func (r *repository) CountUnsettled(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("invoice_id = ?", invoiceID).
		Where("status = ? OR (status = ? AND prior_status = ?)",
			enums.LedgerEntryStatusInvoiced, enums.LedgerEntryStatusDisputed, enums.LedgerEntryStatusInvoiced).
		Count(&count).Error
	return count, err
}

// CloseInvoice marks an open or overdue invoice paid.
func (r *repository) CloseInvoice(ctx context.Context, invoiceID uuid.UUID, paidAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", invoiceID, []enums.InvoiceStatus{enums.InvoiceStatusOpen, enums.InvoiceStatusOverdue}).
		Updates(map[string]any{
			"status":  enums.InvoiceStatusPaid,
			"paid_at": paidAt.UTC(),
		})
	return res.RowsAffected, res.Error
}

// SettleDisputedPriors records that a payment covered the invoice's disputed
// entries: a later revert returns them to paid instead of invoiced.
func (r *repository) SettleDisputedPriors(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("invoice_id = ? AND status = ? AND prior_status = ?",
			invoiceID, enums.LedgerEntryStatusDisputed, enums.LedgerEntryStatusInvoiced).
		Updates(map[string]any{
			"prior_status": enums.LedgerEntryStatusPaid,
			"version":      gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) FindUnresolvedDispute(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND status <> ?", orderID, enums.DisputeStatusResolved).
		Take(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

// LinkDispute points a dispute opened before its order completed at the new entry.
func (r *repository) LinkDispute(ctx context.Context, disputeID, entryID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ? AND ledger_entry_id IS NULL", disputeID).
		Update("ledger_entry_id", entryID)
	return res.RowsAffected, res.Error
}
