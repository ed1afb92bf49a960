package migrate_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorhub/marketplace-backend/pkg/migrate"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, migrate.Validate(migrate.Migrations()))
	require.NoError(t, migrate.Validate(os.DirFS("migrations")))
}

func TestOrdersMigrationDefinesSequenceAndTotals(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")
	for _, sub := range []string{
		"CREATE SEQUENCE IF NOT EXISTS order_number_seq",
		"DEFAULT nextval('order_number_seq')",
		"CHECK (total = subtotal - discount + shipping)",
		"CREATE TABLE IF NOT EXISTS order_status_histories",
		"DROP SEQUENCE IF EXISTS order_number_seq",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestWalletMigrationGuardsBalances(t *testing.T) {
	content := readMigration(t, "*_create_vendors_and_wallets.sql")
	for _, sub := range []string{
		"CHECK (pending_balance >= 0)",
		"CHECK (available_balance >= 0)",
		"CHECK (balance_after = balance_before + amount)",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestDisputesMigrationAllowsOneActiveDispute(t *testing.T) {
	content := readMigration(t, "*_create_payments_disputes_payouts.sql")
	assert.Contains(t, content, "idx_disputes_one_active_per_order")
	assert.Contains(t, content, "WHERE status IN ('OPEN', 'IN_REVIEW')")
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	path, err := migrate.CreateSQLMigration(dir, "Add Payout Index!", at)
	require.NoError(t, err)
	assert.Equal(t, "20260402083000_add_payout_index.sql", filepath.Base(path))
	require.NoError(t, migrate.Validate(os.DirFS(dir)))

	_, err = migrate.CreateSQLMigration(dir, "add payout index", at)
	require.Error(t, err, "same version twice")
	_, err = migrate.CreateSQLMigration(dir, "!!!", at)
	require.Error(t, err)
}

func TestValidateRejectsBrokenFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name":     {"1_x.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}},
		"missing down": {"20260101000000_x.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
		"unbalanced": {"20260101000000_x.sql": {Data: []byte(
			"-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")}},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, migrate.Validate(fsys))
		})
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}
