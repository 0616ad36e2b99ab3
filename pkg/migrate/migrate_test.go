package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	require.NoError(t, Validate(Migrations()))

	embedded, err := fs.Glob(Migrations(), "*.sql")
	require.NoError(t, err)
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	require.Len(t, embedded, len(onDisk))
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("20260301090200")
	require.NoError(t, err)
	require.EqualValues(t, 20260301090200, v)

	for _, bad := range []string{"", "2026", "2026030109020x", "202603010902001"} {
		_, err := ParseVersion(bad)
		require.Error(t, err, bad)
	}
}

func TestMigrationsDeclareGuardedTables(t *testing.T) {
	checks := map[string][]string{
		"*_create_catalog_tables.sql": {
			"CREATE TABLE IF NOT EXISTS products",
			"stock integer NOT NULL DEFAULT 0 CHECK (stock >= 0)",
			"REFERENCES categories(id) ON DELETE RESTRICT",
			"idx_products_vendor_low_stock",
		},
		"*_create_orders_tables.sql": {
			"restocked boolean NOT NULL DEFAULT false",
			"version integer NOT NULL DEFAULT 1",
			"CREATE TABLE IF NOT EXISTS vendor_stats",
		},
		"*_create_notifications_tables.sql": {
			"notification_receipts_notification_user_key UNIQUE (notification_id, user_id)",
		},
		"*_create_reviews_table.sql": {
			"reviews_client_product_key UNIQUE (client_id, product_id)",
			"CHECK (rating BETWEEN 1 AND 5)",
		},
	}

	for pattern, subs := range checks {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		require.NoError(t, err)
		require.Len(t, matches, 1, pattern)

		data, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		for _, sub := range subs {
			if !strings.Contains(string(data), sub) {
				t.Errorf("%s: missing %q", pattern, sub)
			}
		}
	}
}

func TestApplySQLiteIsRepeatable(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ApplySQLite(ctx, conn))
	require.NoError(t, ApplySQLite(ctx, conn))

	for _, table := range []string{"users", "products", "orders", "notification_receipts", "reviews", "outbox_events"} {
		require.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := createSQLMigrationAt(dir, "Add Review Index!", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20260301090000_add_review_index.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = createSQLMigrationAt(dir, "Add Review Index!", now)
	require.Error(t, err)

	_, err = createSQLMigrationAt(dir, "!!!", now)
	require.Error(t, err)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, ValidateDir(dir))
}
