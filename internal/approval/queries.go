package approval

import (
	"context"

	"gitlab.com/yelinaung/expense-approvals/internal/authz"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// ExpenseDetail is an expense with its full decision trail.
type ExpenseDetail struct {
	Expense models.Expense
	Entries []models.ApprovalEntry
}

// User loads a user by id.
func (e *Engine) User(ctx context.Context, id int64) (*models.User, error) {
	var u *models.User
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		u, err = tx.GetUser(ctx, id)
		return err
	})
	return u, err
}

// UserByTelegramID loads the user linked to a Telegram account.
func (e *Engine) UserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u *models.User
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		u, err = tx.GetUserByTelegramID(ctx, telegramID)
		return err
	})
	return u, err
}

// PendingForApprover lists the ledger rows awaiting the user, oldest first.
// Rows of expenses that are already terminal are excluded.
func (e *Engine) PendingForApprover(ctx context.Context, approverID int64) ([]PendingApproval, error) {
	var pending []PendingApproval
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		pending, err = tx.ListPendingForApprover(ctx, approverID)
		return err
	})
	return pending, err
}

// ExpenseWithLedger returns an expense and its ledger if viewer may see it.
func (e *Engine) ExpenseWithLedger(ctx context.Context, viewer *models.User, expenseID int64) (*ExpenseDetail, error) {
	var detail *ExpenseDetail
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		expense, err := tx.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		if !authz.Can(viewer, authz.ActionViewExpense, authz.Owned(expense.CompanyID, expense.EmployeeID)) {
			// Another tenant's expense, or a colleague's, reads as missing.
			return NotFound("expense", expenseID)
		}
		entries, err := tx.ListEntries(ctx, expenseID)
		if err != nil {
			return err
		}
		detail = &ExpenseDetail{Expense: *expense, Entries: entries}
		return nil
	})
	return detail, err
}

// ListExpenses lists expenses visible to viewer. Employees only see their own.
func (e *Engine) ListExpenses(ctx context.Context, viewer *models.User, filter ExpenseFilter) ([]models.Expense, error) {
	if viewer == nil {
		return nil, authz.Require(nil, authz.ActionListExpenses, authz.Resource{})
	}
	filter.CompanyID = viewer.CompanyID
	if !authz.Can(viewer, authz.ActionListExpenses, authz.Company(viewer.CompanyID)) {
		self := viewer.ID
		filter.EmployeeID = &self
		if err := authz.Require(viewer, authz.ActionListExpenses, authz.Owned(viewer.CompanyID, self)); err != nil {
			return nil, err
		}
	}
	filter = filter.Normalize()

	var expenses []models.Expense
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		expenses, err = tx.ListExpenses(ctx, filter)
		return err
	})
	return expenses, err
}

// StatusCounts counts the company's expenses per status.
func (e *Engine) StatusCounts(ctx context.Context, viewer *models.User) (map[models.ExpenseStatus]int, error) {
	if err := authz.Require(viewer, authz.ActionViewReports, authz.Company(companyOf(viewer))); err != nil {
		return nil, err
	}
	var counts map[models.ExpenseStatus]int
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		counts, err = tx.CountExpensesByStatus(ctx, viewer.CompanyID)
		return err
	})
	return counts, err
}

// ApproversWithPending lists every approver with at least one pending row.
func (e *Engine) ApproversWithPending(ctx context.Context) ([]PendingSummary, error) {
	var out []PendingSummary
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.ApproversWithPending(ctx)
		return err
	})
	return out, err
}
