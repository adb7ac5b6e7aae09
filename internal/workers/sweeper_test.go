package workers

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"shopmirror/internal/platform/config"
	"shopmirror/internal/platform/database"
	"shopmirror/internal/platform/repositories"
)

func TestSweepAll_RepairsAggregateDrift(t *testing.T) {
	dir := t.TempDir()

	globalDB, err := sql.Open("sqlite3", filepath.Join(dir, "global.db"))
	require.NoError(t, err)
	t.Cleanup(func() { globalDB.Close() })

	globalSchema, err := os.ReadFile("../../migrations/global/001_init.sql")
	require.NoError(t, err)
	_, err = globalDB.Exec(string(globalSchema))
	require.NoError(t, err)

	tenantPath := filepath.Join(dir, "tnt_1.db")
	_, err = globalDB.Exec(`
		INSERT INTO tenants (id, shop_domain, active, webhook_secret, key_version, db_file_path, created_at, updated_at)
		VALUES ('tnt_1', 'example.myshopify.com', 1, 'whsec_test', 1, ?, 1700000000, 1700000000)
	`, tenantPath)
	require.NoError(t, err)

	pool := database.NewTenantDBPool(config.TenantDBConfig{MaxConnectionsPerTenant: 4, BusyTimeoutMillis: 1000})
	t.Cleanup(pool.CloseAll)

	tenantDB, err := pool.Get("tnt_1", tenantPath)
	require.NoError(t, err)
	tenantSchema, err := os.ReadFile("../../migrations/tenant/001_init.sql")
	require.NoError(t, err)
	_, err = tenantDB.Exec(string(tenantSchema))
	require.NoError(t, err)

	// cust_1 has drifted aggregates, cust_2 is already correct.
	_, err = tenantDB.Exec(`
		INSERT INTO customers (external_id, orders_count, total_spent, created_at, updated_at)
		VALUES ('cust_1', 5, '999.99', 1700000000, 1700000000),
		       ('cust_2', 1, '20.00', 1700000000, 1700000000);

		INSERT INTO orders (external_id, customer_external_id, total, source_created_at, source_updated_at, created_at, updated_at)
		VALUES ('ord_1', 'cust_1', '50.00', 1709288100, 1709288100, 1700000000, 1700000000),
		       ('ord_2', 'cust_1', '39.97', 1709291700, 1709291700, 1700000000, 1700000000),
		       ('ord_3', 'cust_2', '20.00', 1709295300, 1709295300, 1700000000, 1700000000)
	`)
	require.NoError(t, err)

	var beforeUpdatedAt int64
	require.NoError(t, tenantDB.QueryRow(
		`SELECT updated_at FROM customers WHERE external_id = 'cust_2'`).Scan(&beforeUpdatedAt))

	sweeper := NewSweeper(repositories.NewTenantRepository(globalDB), pool)
	require.NoError(t, sweeper.SweepAll(context.Background()))

	var ordersCount int
	var totalSpent string
	var lastOrderAt sql.NullInt64
	require.NoError(t, tenantDB.QueryRow(
		`SELECT orders_count, total_spent, last_order_at FROM customers WHERE external_id = 'cust_1'`).
		Scan(&ordersCount, &totalSpent, &lastOrderAt))
	require.Equal(t, 2, ordersCount)
	require.Equal(t, "89.97", totalSpent)
	require.True(t, lastOrderAt.Valid)
	require.Equal(t, int64(1709291700), lastOrderAt.Int64)

	// The consistent customer is left untouched.
	var afterUpdatedAt int64
	require.NoError(t, tenantDB.QueryRow(
		`SELECT updated_at FROM customers WHERE external_id = 'cust_2'`).Scan(&afterUpdatedAt))
	require.Equal(t, beforeUpdatedAt, afterUpdatedAt)
}

func TestSweepAll_HonorsContextCancellation(t *testing.T) {
	dir := t.TempDir()

	globalDB, err := sql.Open("sqlite3", filepath.Join(dir, "global.db"))
	require.NoError(t, err)
	t.Cleanup(func() { globalDB.Close() })

	globalSchema, err := os.ReadFile("../../migrations/global/001_init.sql")
	require.NoError(t, err)
	_, err = globalDB.Exec(string(globalSchema))
	require.NoError(t, err)

	_, err = globalDB.Exec(`
		INSERT INTO tenants (id, shop_domain, active, webhook_secret, key_version, db_file_path, created_at, updated_at)
		VALUES ('tnt_1', 'example.myshopify.com', 1, 'whsec_test', 1, ?, 1700000000, 1700000000)
	`, filepath.Join(dir, "tnt_1.db"))
	require.NoError(t, err)

	pool := database.NewTenantDBPool(config.TenantDBConfig{MaxConnectionsPerTenant: 4, BusyTimeoutMillis: 1000})
	t.Cleanup(pool.CloseAll)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sweeper := NewSweeper(repositories.NewTenantRepository(globalDB), pool)
	require.ErrorIs(t, sweeper.SweepAll(ctx), context.Canceled)
}
