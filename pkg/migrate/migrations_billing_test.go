package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/feeledger/pkg/migrate"
)

func embeddedMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := fs.Glob(migrate.Migrations(), "*_"+suffix+".sql")
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	body, err := fs.ReadFile(migrate.Migrations(), matches[0])
	require.NoError(t, err)
	return string(body)
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, migrate.ValidateFS(migrate.Migrations()))
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestSchemaConstraints(t *testing.T) {
	tests := map[string][]string{
		"create_ledger_entries": {
			"CREATE TABLE IF NOT EXISTS ledger_entries",
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_entries_order_id",
			"WHERE order_id IS NOT NULL",
			"CHECK (effective_value >= 0)",
			"CHECK (fee_amount >= 0)",
			"REFERENCES invoices(id) ON DELETE RESTRICT",
			"version integer NOT NULL DEFAULT 1",
			"DROP TABLE IF EXISTS ledger_entries",
		},
		"create_invoices": {
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_supplier_period",
			"ON invoices (supplier_id, period_start)",
			"DROP TABLE IF EXISTS invoices",
		},
		"create_disputes": {
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_disputes_order_id ON disputes (order_id)",
			"CREATE TABLE IF NOT EXISTS dispute_notes",
			"ON DELETE CASCADE",
		},
	}
	for suffix, statements := range tests {
		t.Run(suffix, func(t *testing.T) {
			body := embeddedMigration(t, suffix)
			for _, stmt := range statements {
				assert.Contains(t, body, stmt)
			}
		})
	}
}

func TestValidateFSRejectsBadMigrations(t *testing.T) {
	up := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	tests := map[string]fstest.MapFS{
		"bad name":          {"create_things.sql": {Data: up}},
		"duplicate version": {"20250101000000_a.sql": {Data: up}, "20250101000000_b.sql": {Data: up}},
		"missing down":      {"20250101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, migrate.ValidateFS(fsys))
		})
	}

	assert.NoError(t, migrate.ValidateFS(fstest.MapFS{
		"20250101000000_a.sql": {Data: up},
		"README.md":            {Data: []byte("notes")},
	}))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := migrate.CreateSQLMigration(dir, "Add Fee-Policy notes!", now)
	require.NoError(t, err)
	assert.Equal(t, "20250304050607_add_fee_policy_notes.sql", filepath.Base(path))
	require.NoError(t, migrate.ValidateDir(dir))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "-- +goose Up"))

	_, err = migrate.CreateSQLMigration(dir, "add fee policy notes", now)
	assert.Error(t, err, "same version and name must not overwrite")

	_, err = migrate.CreateSQLMigration(dir, "!!!", now)
	assert.Error(t, err)
}

func TestNewRunnerRequiresDB(t *testing.T) {
	_, err := migrate.NewRunner(nil, nil, nil)
	assert.Error(t, err)
}
