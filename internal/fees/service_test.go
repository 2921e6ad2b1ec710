package fees

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/feeledger/pkg/db/dbtest"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

func newPolicyService(t *testing.T, now time.Time) Service {
	t.Helper()
	repo := NewPolicyRepository(dbtest.NewSQLite(t))
	svc, err := NewService(ServiceParams{
		Repo:        repo,
		DefaultRate: decimal.NewFromInt(5),
		Clock:       func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceValidatesParams(t *testing.T) {
	_, err := NewService(ServiceParams{DefaultRate: decimal.NewFromInt(5)})
	require.Error(t, err)

	_, err = NewService(ServiceParams{Repo: NewPolicyRepository(nil), DefaultRate: decimal.NewFromInt(-1)})
	require.Error(t, err)
}

func TestResolveRateFallsBackToDefault(t *testing.T) {
	svc := newPolicyService(t, time.Now())

	rate, err := svc.ResolveRate(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.NewFromInt(5)))
}

func TestResolveRateUsesLatestEffectivePolicy(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	svc := newPolicyService(t, now)
	supplierID := uuid.New()

	_, err := svc.SetPolicy(ctx, SetPolicyInput{
		SupplierID:    supplierID,
		FeePercentage: decimal.NewFromInt(4),
		EffectiveFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = svc.SetPolicy(ctx, SetPolicyInput{
		SupplierID:    supplierID,
		FeePercentage: decimal.NewFromInt(3),
		EffectiveFrom: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	before, err := svc.ResolveRate(ctx, supplierID, time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, before.Equal(decimal.NewFromInt(5)))

	january, err := svc.ResolveRate(ctx, supplierID, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, january.Equal(decimal.NewFromInt(4)))

	february, err := svc.ResolveRate(ctx, supplierID, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, february.Equal(decimal.NewFromInt(3)))

	other, err := svc.ResolveRate(ctx, uuid.New(), time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, other.Equal(decimal.NewFromInt(5)))
}

func TestSetPolicyDefaultsEffectiveFromToNow(t *testing.T) {
	now := time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC)
	svc := newPolicyService(t, now)

	policy, err := svc.SetPolicy(context.Background(), SetPolicyInput{
		SupplierID:    uuid.New(),
		FeePercentage: decimal.RequireFromString("2.5"),
	})
	require.NoError(t, err)
	require.True(t, policy.EffectiveFrom.Equal(now))

	policies, err := svc.ListPolicies(context.Background(), policy.SupplierID)
	require.NoError(t, err)
	require.Len(t, policies, 1)
}

func TestSetPolicyRejectsOutOfRangeRate(t *testing.T) {
	svc := newPolicyService(t, time.Now())

	_, err := svc.SetPolicy(context.Background(), SetPolicyInput{
		SupplierID:    uuid.New(),
		FeePercentage: decimal.NewFromInt(101),
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
