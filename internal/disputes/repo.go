package disputes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/enums"
)

// Filter narrows the admin dispute queue.
type Filter struct {
	Status        *enums.DisputeStatus
	IssueCategory *enums.IssueCategory
	BuyerType     *enums.BuyerType
	SupplierID    *uuid.UUID
}

// Repository manages persistence for disputes and their notes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	UpdateFrom(ctx context.Context, id uuid.UUID, from enums.DisputeStatus, updates map[string]any) (int64, error)
	AddNote(ctx context.Context, note *models.DisputeNote) error
	List(ctx context.Context, filter Filter) ([]models.Dispute, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a dispute repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).
		Preload("AdminNotes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ?", id).
		Take(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

// UpdateFrom applies updates only while the dispute is still in status from.
func (r *repository) UpdateFrom(ctx context.Context, id uuid.UUID, from enums.DisputeStatus, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) AddNote(ctx context.Context, note *models.DisputeNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *repository) List(ctx context.Context, filter Filter) ([]models.Dispute, error) {
	q := r.db.WithContext(ctx).Model(&models.Dispute{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.IssueCategory != nil {
		q = q.Where("issue_category = ?", *filter.IssueCategory)
	}
	if filter.BuyerType != nil {
		q = q.Where("buyer_type = ?", *filter.BuyerType)
	}
	if filter.SupplierID != nil {
		q = q.Where("supplier_id = ?", *filter.SupplierID)
	}
	var disputes []models.Dispute
	if err := q.
		Preload("AdminNotes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Order("id ASC").
		Find(&disputes).Error; err != nil {
		return nil, err
	}
	return disputes, nil
}
