// Package models holds the GORM rows of the billing schema.
package models

// All lists every billing model in dependency order, for GORM AutoMigrate on
// SQLite where the goose migrations (Postgres-only) do not apply.
func All() []any {
	return []any{
		&SupplierFeePolicy{},
		&Invoice{},
		&LedgerEntry{},
		&Dispute{},
		&DisputeNote{},
	}
}
