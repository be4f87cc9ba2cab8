package database

import (
	"context"
	"fmt"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, db Querier) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS companies (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			base_currency TEXT NOT NULL DEFAULT 'SGD',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			company_id BIGINT NOT NULL REFERENCES companies(id),
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL CHECK (role IN ('admin', 'manager', 'employee')),
			manager_id BIGINT REFERENCES users(id),
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			telegram_id BIGINT UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_company_role ON users(company_id, role) WHERE is_active`,

		`CREATE TABLE IF NOT EXISTS approval_rules (
			id BIGSERIAL PRIMARY KEY,
			company_id BIGINT NOT NULL REFERENCES companies(id),
			name TEXT NOT NULL,
			rule_type TEXT NOT NULL CHECK (rule_type IN ('sequential', 'percentage', 'specific_approver', 'hybrid')),
			min_amount DECIMAL(14, 2) NOT NULL DEFAULT 0,
			max_amount DECIMAL(14, 2),
			percentage_required INTEGER CHECK (percentage_required BETWEEN 1 AND 100),
			specific_approver_id BIGINT REFERENCES users(id),
			sequence_order INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_approval_rules_company ON approval_rules(company_id) WHERE is_active`,

		`CREATE TABLE IF NOT EXISTS approval_rule_steps (
			id BIGSERIAL PRIMARY KEY,
			rule_id BIGINT NOT NULL REFERENCES approval_rules(id) ON DELETE CASCADE,
			step_order INTEGER NOT NULL,
			approver_role TEXT NOT NULL CHECK (approver_role IN ('manager', 'admin', 'specific_user')),
			approver_id BIGINT REFERENCES users(id),
			is_required BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_approval_rule_steps_rule ON approval_rule_steps(rule_id, step_order)`,

		`CREATE TABLE IF NOT EXISTS expenses (
			id BIGSERIAL PRIMARY KEY,
			company_id BIGINT NOT NULL REFERENCES companies(id),
			employee_id BIGINT NOT NULL REFERENCES users(id),
			amount DECIMAL(14, 2) NOT NULL,
			currency TEXT NOT NULL DEFAULT 'SGD',
			converted_amount DECIMAL(14, 2) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			expense_date DATE NOT NULL DEFAULT CURRENT_DATE,
			receipt_ref TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processing', 'approved', 'rejected')),
			approval_rule_id BIGINT REFERENCES approval_rules(id) ON DELETE SET NULL,
			rule_type TEXT NOT NULL DEFAULT '',
			rule_percentage INT,
			rule_specific_approver_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`ALTER TABLE expenses ADD COLUMN IF NOT EXISTS rule_type TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE expenses ADD COLUMN IF NOT EXISTS rule_percentage INT`,
		`ALTER TABLE expenses ADD COLUMN IF NOT EXISTS rule_specific_approver_id BIGINT`,

		`CREATE INDEX IF NOT EXISTS idx_expenses_company_status ON expenses(company_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_employee ON expenses(employee_id)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_created_at ON expenses(created_at)`,

		`CREATE TABLE IF NOT EXISTS expense_approvals (
			id BIGSERIAL PRIMARY KEY,
			expense_id BIGINT NOT NULL REFERENCES expenses(id),
			approver_id BIGINT NOT NULL REFERENCES users(id),
			step_order INTEGER NOT NULL DEFAULT 1,
			is_required BOOLEAN NOT NULL DEFAULT TRUE,
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
			comments TEXT NOT NULL DEFAULT '',
			decided_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (expense_id, approver_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_expense_approvals_pending ON expense_approvals(approver_id) WHERE status = 'pending'`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			expense_id BIGINT NOT NULL REFERENCES expenses(id),
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			delivered_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_notifications_undelivered ON notifications(created_at) WHERE delivered_at IS NULL`,

		`CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			event_id UUID NOT NULL UNIQUE,
			user_id BIGINT NOT NULL REFERENCES users(id),
			expense_id BIGINT NOT NULL REFERENCES expenses(id),
			action TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_audit_logs_expense ON audit_logs(expense_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
