package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/enums"
)

// Repository manages persistence for invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindBySupplierPeriod(ctx context.Context, supplierID uuid.UUID, periodStart time.Time) (*models.Invoice, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Invoice, error)
	ListOutstanding(ctx context.Context, supplierID uuid.UUID) ([]models.Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (int64, error)
	SuppliersPastDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	MarkOverdue(ctx context.Context, supplierID uuid.UUID, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindBySupplierPeriod(ctx context.Context, supplierID uuid.UUID, periodStart time.Time) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND period_start = ?", supplierID, periodStart.UTC()).
		Take(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("period_start DESC").
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// ListOutstanding returns unpaid invoices ordered by due date.
func (r *repository) ListOutstanding(ctx context.Context, supplierID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND status IN ?", supplierID, []enums.InvoiceStatus{enums.InvoiceStatusOpen, enums.InvoiceStatusOverdue}).
		Order("due_date ASC").
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", id, []enums.InvoiceStatus{enums.InvoiceStatusOpen, enums.InvoiceStatusOverdue}).
		Updates(map[string]any{
			"status":  enums.InvoiceStatusPaid,
			"paid_at": paidAt.UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) SuppliersPastDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Distinct("supplier_id").
		Where("status = ? AND due_date < ?", enums.InvoiceStatusOpen, now.UTC()).
		Order("supplier_id ASC").
		Pluck("supplier_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) MarkOverdue(ctx context.Context, supplierID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("supplier_id = ? AND status = ? AND due_date < ?", supplierID, enums.InvoiceStatusOpen, now.UTC()).
		Update("status", enums.InvoiceStatusOverdue)
	return res.RowsAffected, res.Error
}
