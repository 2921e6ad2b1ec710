// Package auth verifies the marketplace access tokens presented to the billing
// API and maps them to a Principal.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/feeledger/pkg/enums"
)

// Principal is the authenticated caller. SupplierID is set for supplier
// accounts only.
type Principal struct {
	UserID     uuid.UUID
	Role       enums.Role
	SupplierID *uuid.UUID
}

func (p Principal) validate() error {
	if p.UserID == uuid.Nil {
		return errors.New("token is missing user_id")
	}
	if !p.Role.IsValid() {
		return fmt.Errorf("invalid role %q", p.Role)
	}
	if p.Role == enums.RoleSupplier && (p.SupplierID == nil || *p.SupplierID == uuid.Nil) {
		return errors.New("supplier tokens must carry supplier_id")
	}
	return nil
}

// claims is the JWT body shared with the marketplace identity service.
type claims struct {
	UserID     uuid.UUID  `json:"user_id"`
	Role       enums.Role `json:"role"`
	SupplierID *uuid.UUID `json:"supplier_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *claims) principal() Principal {
	return Principal{UserID: c.UserID, Role: c.Role, SupplierID: c.SupplierID}
}
