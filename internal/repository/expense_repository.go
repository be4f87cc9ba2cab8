package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/database"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// ExpenseRepository handles expense database operations.
type ExpenseRepository struct {
	db database.Querier
}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository(db database.Querier) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

const expenseColumns = `id, company_id, employee_id, amount, currency, converted_amount, description, category,
	expense_date, receipt_ref, status, approval_rule_id, rule_type, rule_percentage, rule_specific_approver_id,
	created_at, updated_at`

func scanExpense(row pgx.Row) (*models.Expense, error) {
	var exp models.Expense
	err := row.Scan(&exp.ID, &exp.CompanyID, &exp.EmployeeID, &exp.Amount, &exp.Currency, &exp.ConvertedAmount,
		&exp.Description, &exp.Category, &exp.ExpenseDate, &exp.ReceiptRef, &exp.Status, &exp.ApprovalRuleID,
		&exp.RuleType, &exp.RulePercentage, &exp.RuleSpecificApproverID, &exp.CreatedAt, &exp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

// CreateExpense adds a new expense.
func (r *ExpenseRepository) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.Status == "" {
		expense.Status = models.ExpenseStatusPending
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO expenses (company_id, employee_id, amount, currency, converted_amount, description, category,
			expense_date, receipt_ref, status, approval_rule_id, rule_type, rule_percentage, rule_specific_approver_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`, expense.CompanyID, expense.EmployeeID, expense.Amount, expense.Currency, expense.ConvertedAmount,
		expense.Description, expense.Category, expense.ExpenseDate, expense.ReceiptRef, expense.Status,
		expense.ApprovalRuleID, expense.RuleType, expense.RulePercentage, expense.RuleSpecificApproverID,
	).Scan(&expense.ID, &expense.CreatedAt, &expense.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense by ID.
func (r *ExpenseRepository) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	exp, err := scanExpense(r.db.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, approval.NotFound("expense", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return exp, nil
}

// LockExpense retrieves an expense and holds its row lock until the
// transaction ends.
func (r *ExpenseRepository) LockExpense(ctx context.Context, id int64) (*models.Expense, error) {
	exp, err := scanExpense(r.db.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, approval.NotFound("expense", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock expense: %w", err)
	}
	return exp, nil
}

// TransitionExpense moves a pending expense to status. The WHERE clause makes
// the transition happen at most once.
func (r *ExpenseRepository) TransitionExpense(ctx context.Context, id int64, status models.ExpenseStatus) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE expenses SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, status)
	if err != nil {
		return false, fmt.Errorf("failed to update expense status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListExpenses lists expenses matching filter, newest first.
func (r *ExpenseRepository) ListExpenses(ctx context.Context, filter approval.ExpenseFilter) ([]models.Expense, error) {
	query, args := ExpenseQueryFromFilter(filter).SQL()
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, nil
}

// CountExpensesByStatus counts a company's expenses per status.
func (r *ExpenseRepository) CountExpensesByStatus(ctx context.Context, companyID int64) (map[models.ExpenseStatus]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*) FROM expenses
		WHERE company_id = $1
		GROUP BY status
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count expenses: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ExpenseStatus]int)
	for rows.Next() {
		var status models.ExpenseStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan expense count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expense counts: %w", err)
	}
	return counts, nil
}
