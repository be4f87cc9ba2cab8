package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/database"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// ApprovalRepository handles expense_approvals ledger operations.
type ApprovalRepository struct {
	db database.Querier
}

// NewApprovalRepository creates a new ApprovalRepository.
func NewApprovalRepository(db database.Querier) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

const entryColumns = `id, expense_id, approver_id, step_order, is_required, status, comments, decided_at, created_at`

func scanEntry(row pgx.Row) (*models.ApprovalEntry, error) {
	var e models.ApprovalEntry
	err := row.Scan(&e.ID, &e.ExpenseID, &e.ApproverID, &e.StepOrder, &e.IsRequired, &e.Status,
		&e.Comments, &e.DecidedAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEntries inserts ledger rows in one batch.
func (r *ApprovalRepository) CreateEntries(ctx context.Context, entries []models.ApprovalEntry) error {
	for i := range entries {
		e := &entries[i]
		if e.Status == "" {
			e.Status = models.ApprovalStatusPending
		}
		err := r.db.QueryRow(ctx, `
			INSERT INTO expense_approvals (expense_id, approver_id, step_order, is_required, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, e.ExpenseID, e.ApproverID, e.StepOrder, e.IsRequired, e.Status).Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create approval for approver %d: %w", e.ApproverID, err)
		}
	}
	return nil
}

// PendingEntry returns the pending row for (expense, approver), or nil.
func (r *ApprovalRepository) PendingEntry(ctx context.Context, expenseID, approverID int64) (*models.ApprovalEntry, error) {
	e, err := scanEntry(r.db.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM expense_approvals
		WHERE expense_id = $1 AND approver_id = $2 AND status = 'pending'
	`, expenseID, approverID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending approval: %w", err)
	}
	return e, nil
}

// DecideEntry records a decision on a pending row.
func (r *ApprovalRepository) DecideEntry(
	ctx context.Context,
	entryID int64,
	status models.ApprovalStatus,
	comments string,
	decidedAt time.Time,
) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE expense_approvals SET status = $2, comments = $3, decided_at = $4
		WHERE id = $1 AND status = 'pending'
	`, entryID, status, comments, decidedAt)
	if err != nil {
		return false, fmt.Errorf("failed to record decision: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListEntries returns an expense's ledger ordered by step.
func (r *ApprovalRepository) ListEntries(ctx context.Context, expenseID int64) ([]models.ApprovalEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+` FROM expense_approvals
		WHERE expense_id = $1
		ORDER BY step_order, id
	`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvals: %w", err)
	}
	defer rows.Close()

	var entries []models.ApprovalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approvals: %w", err)
	}
	return entries, nil
}

// ForceClosePending sets every pending row of an expense to status.
func (r *ApprovalRepository) ForceClosePending(
	ctx context.Context,
	expenseID int64,
	status models.ApprovalStatus,
	comments string,
	decidedAt time.Time,
) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE expense_approvals SET status = $2, comments = $3, decided_at = $4
		WHERE expense_id = $1 AND status = 'pending'
	`, expenseID, status, comments, decidedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to close pending approvals: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListPendingForApprover lists rows awaiting the approver on pending expenses.
func (r *ApprovalRepository) ListPendingForApprover(ctx context.Context, approverID int64) ([]approval.PendingApproval, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.expense_id, a.approver_id, a.step_order, a.is_required, a.status, a.comments,
		       a.decided_at, a.created_at,
		       e.id, e.company_id, e.employee_id, e.amount, e.currency, e.converted_amount, e.description,
		       e.category, e.expense_date, e.receipt_ref, e.status, e.approval_rule_id,
		       e.rule_type, e.rule_percentage, e.rule_specific_approver_id, e.created_at, e.updated_at
		FROM expense_approvals a
		JOIN expenses e ON e.id = a.expense_id
		WHERE a.approver_id = $1 AND a.status = 'pending' AND e.status = 'pending'
		ORDER BY e.created_at, a.id
	`, approverID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending approvals: %w", err)
	}
	defer rows.Close()

	var out []approval.PendingApproval
	for rows.Next() {
		var p approval.PendingApproval
		a, exp := &p.Entry, &p.Expense
		if err := rows.Scan(
			&a.ID, &a.ExpenseID, &a.ApproverID, &a.StepOrder, &a.IsRequired, &a.Status, &a.Comments,
			&a.DecidedAt, &a.CreatedAt,
			&exp.ID, &exp.CompanyID, &exp.EmployeeID, &exp.Amount, &exp.Currency, &exp.ConvertedAmount,
			&exp.Description, &exp.Category, &exp.ExpenseDate, &exp.ReceiptRef, &exp.Status, &exp.ApprovalRuleID,
			&exp.RuleType, &exp.RulePercentage, &exp.RuleSpecificApproverID, &exp.CreatedAt, &exp.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending approval: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending approvals: %w", err)
	}
	return out, nil
}

// ApproversWithPending counts pending rows per active approver.
func (r *ApprovalRepository) ApproversWithPending(ctx context.Context) ([]approval.PendingSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+prefixedUserColumns("u")+`, COUNT(*)
		FROM expense_approvals a
		JOIN expenses e ON e.id = a.expense_id
		JOIN users u ON u.id = a.approver_id
		WHERE a.status = 'pending' AND e.status = 'pending' AND u.is_active
		GROUP BY u.id
		ORDER BY u.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query approvers with pending: %w", err)
	}
	defer rows.Close()

	var out []approval.PendingSummary
	for rows.Next() {
		var s approval.PendingSummary
		u := &s.Approver
		if err := rows.Scan(&u.ID, &u.CompanyID, &u.Name, &u.Email, &u.Role, &u.ManagerID, &u.IsActive,
			&u.TelegramID, &u.CreatedAt, &u.UpdatedAt, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan pending summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending summaries: %w", err)
	}
	return out, nil
}
