package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey uint8

const (
	ctxUserID contextKey = iota
	ctxRole
	ctxSupplierID
	ctxRequestID
)

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func uuidValue(ctx context.Context, key contextKey) uuid.UUID {
	id, err := uuid.Parse(stringValue(ctx, key))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withValue(ctx, ctxRole, role)
}

// WithSupplierID scopes the request to one supplier's ledger.
func WithSupplierID(ctx context.Context, supplierID string) context.Context {
	return withValue(ctx, ctxSupplierID, supplierID)
}

func UserIDFromContext(ctx context.Context) string     { return stringValue(ctx, ctxUserID) }
func RoleFromContext(ctx context.Context) string       { return stringValue(ctx, ctxRole) }
func SupplierIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxSupplierID) }
func RequestIDFromContext(ctx context.Context) string  { return stringValue(ctx, ctxRequestID) }

// ActorID is the caller's user id, or uuid.Nil for anonymous requests.
func ActorID(ctx context.Context) uuid.UUID { return uuidValue(ctx, ctxUserID) }

// SupplierID is the caller's supplier id, or uuid.Nil when the caller is not a supplier.
func SupplierID(ctx context.Context) uuid.UUID { return uuidValue(ctx, ctxSupplierID) }
