package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/feeledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

// RateResolver returns the fee percentage that applies to an order completed at a given time.
type RateResolver interface {
	ResolveRate(ctx context.Context, supplierID uuid.UUID, completedAt time.Time) (decimal.Decimal, error)
}

// Service manages fee policies and resolves rates.
type Service interface {
	RateResolver
	SetPolicy(ctx context.Context, input SetPolicyInput) (*models.SupplierFeePolicy, error)
	ListPolicies(ctx context.Context, supplierID uuid.UUID) ([]models.SupplierFeePolicy, error)
}

// SetPolicyInput captures an admin fee-policy change.
type SetPolicyInput struct {
	SupplierID    uuid.UUID
	FeePercentage decimal.Decimal
	EffectiveFrom time.Time
	CreatedBy     *uuid.UUID
}

type ServiceParams struct {
	Repo        PolicyRepository
	DefaultRate decimal.Decimal
	Clock       func() time.Time
}

type service struct {
	repo        PolicyRepository
	defaultRate decimal.Decimal
	now         func() time.Time
}

// NewService wires the fee policy service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("fee policy repository required")
	}
	if err := ValidatePercentage(params.DefaultRate); err != nil {
		return nil, fmt.Errorf("default fee rate: %w", err)
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, defaultRate: params.DefaultRate, now: now}, nil
}

func (s *service) ResolveRate(ctx context.Context, supplierID uuid.UUID, completedAt time.Time) (decimal.Decimal, error) {
	if supplierID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	policy, err := s.repo.ActiveAt(ctx, supplierID, completedAt)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fee policy")
	}
	if policy == nil {
		return s.defaultRate, nil
	}
	return policy.FeePercentage, nil
}

func (s *service) SetPolicy(ctx context.Context, input SetPolicyInput) (*models.SupplierFeePolicy, error) {
	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	if err := ValidatePercentage(input.FeePercentage); err != nil {
		return nil, err
	}
	effective := input.EffectiveFrom
	if effective.IsZero() {
		effective = s.now()
	}
	policy := &models.SupplierFeePolicy{
		SupplierID:    input.SupplierID,
		FeePercentage: input.FeePercentage,
		EffectiveFrom: effective.UTC(),
		CreatedBy:     input.CreatedBy,
	}
	if err := s.repo.Create(ctx, policy); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fee policy")
	}
	return policy, nil
}

func (s *service) ListPolicies(ctx context.Context, supplierID uuid.UUID) ([]models.SupplierFeePolicy, error) {
	if supplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	policies, err := s.repo.ListBySupplier(ctx, supplierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fee policies")
	}
	return policies, nil
}
