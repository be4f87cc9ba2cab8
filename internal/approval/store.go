package approval

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// Store opens units of work. Every mutation of an expense's ledger and status
// happens inside the fn passed to RunInTx; a returned error rolls back all of it.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside one unit of work.
type Tx interface {
	RuleReader
	RuleWriter
	ExpenseStore
	Ledger
	Directory
	EventWriter
}

// RuleReader reads company-scoped approval rules together with their steps.
type RuleReader interface {
	ListActiveRules(ctx context.Context, companyID int64) ([]models.ApprovalRule, error)
	ListRules(ctx context.Context, companyID int64) ([]models.ApprovalRule, error)
	GetRule(ctx context.Context, id int64) (*models.ApprovalRule, error)
}

// RuleWriter persists rule definitions. UpdateRule replaces the step set.
type RuleWriter interface {
	CreateRule(ctx context.Context, rule *models.ApprovalRule) error
	UpdateRule(ctx context.Context, rule *models.ApprovalRule) error
	DeleteRule(ctx context.Context, id int64) error
}

// ExpenseStore persists expenses. LockExpense must hold a row lock until the
// unit of work ends so concurrent decisions on the same expense serialise.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, id int64) (*models.Expense, error)
	LockExpense(ctx context.Context, id int64) (*models.Expense, error)
	// TransitionExpense moves a pending expense to a terminal status and reports
	// whether the row changed. It never modifies an already terminal expense.
	TransitionExpense(ctx context.Context, id int64, to models.ExpenseStatus) (bool, error)
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]models.Expense, error)
	CountExpensesByStatus(ctx context.Context, companyID int64) (map[models.ExpenseStatus]int, error)
}

// Ledger persists expense_approvals rows.
type Ledger interface {
	CreateEntries(ctx context.Context, entries []models.ApprovalEntry) error
	// PendingEntry returns the pending row for (expense, approver), or nil when none exists.
	PendingEntry(ctx context.Context, expenseID, approverID int64) (*models.ApprovalEntry, error)
	// DecideEntry sets a pending row's decision and reports whether the row changed.
	DecideEntry(ctx context.Context, entryID int64, status models.ApprovalStatus, comments string, decidedAt time.Time) (bool, error)
	ListEntries(ctx context.Context, expenseID int64) ([]models.ApprovalEntry, error)
	ForceClosePending(ctx context.Context, expenseID int64, status models.ApprovalStatus, comments string, decidedAt time.Time) (int, error)
	ListPendingForApprover(ctx context.Context, approverID int64) ([]PendingApproval, error)
	ApproversWithPending(ctx context.Context) ([]PendingSummary, error)
}

// Directory resolves users and companies.
type Directory interface {
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	// ActiveApprovers returns active managers and admins of a company ordered by id.
	ActiveApprovers(ctx context.Context, companyID int64) ([]models.User, error)
	// LowestActiveAdmin returns the active admin with the lowest id, or nil.
	LowestActiveAdmin(ctx context.Context, companyID int64) (*models.User, error)
}

// EventWriter records outbox notifications and audit rows in the same unit of work.
type EventWriter interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	InsertAudit(ctx context.Context, entry *models.AuditLog) error
}

// PendingApproval is a ledger row awaiting the approver, joined with its expense.
type PendingApproval struct {
	Entry   models.ApprovalEntry
	Expense models.Expense
}

// PendingSummary counts pending rows for one approver.
type PendingSummary struct {
	Approver models.User
	Count    int
}

// ExpenseFilter selects expenses for listing. Zero values mean "no constraint".
type ExpenseFilter struct {
	CompanyID  int64
	EmployeeID *int64
	Statuses   []models.ExpenseStatus
	From       *time.Time
	To         *time.Time
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	Limit      int
	Offset     int
}

// DefaultListLimit caps expense listings when no limit is given.
const DefaultListLimit = 50

// MaxListLimit is the largest page size accepted by ListExpenses.
const MaxListLimit = 500

// Normalize clamps limit and offset into accepted ranges.
func (f ExpenseFilter) Normalize() ExpenseFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
