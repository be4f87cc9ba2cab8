package database

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// testDatabaseEnv names the DSN integration tests run against.
const testDatabaseEnv = "TEST_DATABASE_URL"

// appTables lists every table, children first.
var appTables = []string{
	"audit_logs", "notifications", "expense_approvals", "expenses",
	"approval_rule_steps", "approval_rules", "users", "companies",
}

var (
	sharedPool     *pgxpool.Pool
	sharedPoolOnce sync.Once
	sharedPoolErr  error
)

func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv(testDatabaseEnv)
	if dsn == "" {
		t.Skip(testDatabaseEnv + " not set, skipping integration test")
	}
	return dsn
}

// TestDB opens a private pool that is closed when the test ends.
func TestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool, err := Connect(context.Background(), testDSN(t))
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// TestPool returns the pool shared by every test in the binary, migrated on
// first use.
func TestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := testDSN(t)
	sharedPoolOnce.Do(func() {
		ctx := context.Background()
		if sharedPool, sharedPoolErr = Connect(ctx, dsn); sharedPoolErr == nil {
			sharedPoolErr = RunMigrations(ctx, sharedPool)
		}
	})
	if sharedPoolErr != nil {
		t.Fatalf("failed to setup test database: %v", sharedPoolErr)
	}
	return sharedPool
}

// TestTx returns a transaction on the shared pool that is rolled back when
// the test ends, so parallel tests never see each other's rows.
func TestTx(t *testing.T) Querier {
	t.Helper()
	tx, err := TestPool(t).Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

// CleanupTables truncates every application table.
func CleanupTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	for _, table := range appTables {
		if _, err := pool.Exec(context.Background(), "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}
