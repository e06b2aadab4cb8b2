package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/packfinderz-inventory/pkg/migrate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no %s migration found", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestInventoryRecordsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_inventory_records")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS inventory_records",
		"FOREIGN KEY (product_id) REFERENCES products(id)",
		"CHECK (reserved_quantity >= 0 AND reserved_quantity <= quantity)",
		"CHECK (available_quantity = quantity - reserved_quantity)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_inventory_records_key",
		"DROP TABLE IF EXISTS inventory_records",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestLedgerMigrationIsAppendOnlyAndIdempotent(t *testing.T) {
	content := readMigration(t, "create_inventory_transactions")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS inventory_transactions",
		"reserved_delta integer NOT NULL DEFAULT 0",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_inventory_transactions_reference",
		"WHERE reference_id IS NOT NULL",
		"BEFORE UPDATE OR DELETE ON inventory_transactions",
		"DROP TABLE IF EXISTS inventory_transactions",
	} {
		assert.Contains(t, content, sub)
	}
	for _, txType := range []string{"initial", "purchase", "sale", "adjustment", "return", "damaged", "transfer"} {
		assert.Contains(t, content, "'"+txType+"'")
	}
}

func TestOutboxMigrationCreatesBothTables(t *testing.T) {
	content := readMigration(t, "create_outbox_tables")
	assert.Contains(t, content, "CREATE TABLE IF NOT EXISTS outbox_events")
	assert.Contains(t, content, "CREATE TABLE IF NOT EXISTS outbox_dlq")
	assert.True(t, strings.Index(content, "DROP TABLE IF EXISTS outbox_dlq") < strings.Index(content, "DROP TABLE IF EXISTS outbox_events"))
}

func TestAutoMigrateModelsOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migrate_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(conn))
	for _, table := range []string{"products", "inventory_records", "inventory_transactions", "outbox_events", "outbox_dlq"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.Error(t, migrate.AutoMigrateModels(nil))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Bin Locations!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_bin_locations.sql"))
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}
