package fees

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/pkg/db/models"
)

// PolicyRepository persists supplier fee policies.
type PolicyRepository interface {
	WithTx(tx *gorm.DB) PolicyRepository
	Create(ctx context.Context, policy *models.SupplierFeePolicy) error
	ActiveAt(ctx context.Context, supplierID uuid.UUID, at time.Time) (*models.SupplierFeePolicy, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.SupplierFeePolicy, error)
}

type policyRepository struct {
	db *gorm.DB
}

// NewPolicyRepository returns a policy repository bound to the provided database.
func NewPolicyRepository(db *gorm.DB) PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) WithTx(tx *gorm.DB) PolicyRepository {
	if tx == nil {
		return r
	}
	return &policyRepository{db: tx}
}

func (r *policyRepository) Create(ctx context.Context, policy *models.SupplierFeePolicy) error {
	return r.db.WithContext(ctx).Create(policy).Error
}

// ActiveAt returns the newest policy effective at or before at, or nil when none exists.
func (r *policyRepository) ActiveAt(ctx context.Context, supplierID uuid.UUID, at time.Time) (*models.SupplierFeePolicy, error) {
	var policy models.SupplierFeePolicy
	err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND effective_from <= ?", supplierID, at.UTC()).
		Order("effective_from DESC").
		Order("created_at DESC").
		Take(&policy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

func (r *policyRepository) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.SupplierFeePolicy, error) {
	var policies []models.SupplierFeePolicy
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("effective_from ASC").
		Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}
