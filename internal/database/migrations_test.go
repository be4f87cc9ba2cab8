package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	pool := TestDB(t)
	ctx := context.Background()

	err := RunMigrations(ctx, pool)
	require.NoError(t, err)

	for _, table := range appTables {
		t.Run(table+" exists", func(t *testing.T) {
			var tableExists bool
			err := pool.QueryRow(ctx, `
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_name = $1
				)
			`, table).Scan(&tableExists)
			require.NoError(t, err)
			require.True(t, tableExists)
		})
	}
}

// TestRunMigrations_Idempotent tests that migrations can be run multiple times safely.
func TestRunMigrations_Idempotent(t *testing.T) {
	pool := TestDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, pool))
	require.NoError(t, RunMigrations(ctx, pool))

	var count int
	err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM expense_approvals").Scan(&count)
	require.NoError(t, err)
}

func TestMigrations_SchemaDetails(t *testing.T) {
	pool := TestDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, pool))

	t.Run("expense_approvals is unique per expense and approver", func(t *testing.T) {
		var exists bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.table_constraints
				WHERE table_name = 'expense_approvals'
				AND constraint_type = 'UNIQUE'
			)
		`).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("money columns are numeric", func(t *testing.T) {
		var dataType string
		err := pool.QueryRow(ctx, `
			SELECT data_type FROM information_schema.columns
			WHERE table_name = 'expenses' AND column_name = 'converted_amount'
		`).Scan(&dataType)
		require.NoError(t, err)
		require.Equal(t, "numeric", dataType)
	})

	t.Run("audit payload is jsonb", func(t *testing.T) {
		var dataType string
		err := pool.QueryRow(ctx, `
			SELECT data_type FROM information_schema.columns
			WHERE table_name = 'audit_logs' AND column_name = 'payload'
		`).Scan(&dataType)
		require.NoError(t, err)
		require.Equal(t, "jsonb", dataType)
	})
}

func TestSharedTestHelpers(t *testing.T) {
	require.Same(t, TestPool(t), TestPool(t))

	var n int
	require.NoError(t, TestTx(t).QueryRow(context.Background(), "SELECT 1").Scan(&n))
	require.Equal(t, 1, n)
}
