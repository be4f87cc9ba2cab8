package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"gitlab.com/yelinaung/expense-approvals/internal/authz"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// SubmitInput is a new expense from an employee.
type SubmitInput struct {
	EmployeeID  int64
	Amount      decimal.Decimal
	Currency    string
	Description string
	Category    string
	ExpenseDate time.Time
	ReceiptRef  string
}

// SubmitResult is the created expense and its initial ledger.
type SubmitResult struct {
	Expense models.Expense
	Entries []models.ApprovalEntry
}

// MaxDescriptionLength bounds expense descriptions.
const MaxDescriptionLength = 500

func (in *SubmitInput) normalize() error {
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)

	if !in.Amount.IsPositive() {
		return Invalid("amount must be positive")
	}
	if in.Currency == "" {
		return Invalid("currency is required")
	}
	if _, ok := models.SupportedCurrencies[in.Currency]; !ok {
		return Invalid("unsupported currency %q", in.Currency)
	}
	if in.Description == "" {
		return Invalid("description is required")
	}
	if len(in.Description) > MaxDescriptionLength {
		return Invalid("description must be at most %d characters", MaxDescriptionLength)
	}
	return nil
}

// SubmitExpense creates an expense and its approval workflow in one unit of work.
// The amount is converted to the company base currency first; the rule is
// selected on the converted amount. With no matching rule the expense is
// approved immediately. A rule that resolves to no approvers fails the whole
// submission with a ConfigurationError.
func (e *Engine) SubmitExpense(ctx context.Context, in SubmitInput) (result SubmitResult, err error) {
	ctx, finish := e.startSpan(ctx, "SubmitExpense")
	defer func() { finish(err) }()

	if err := in.normalize(); err != nil {
		return SubmitResult{}, err
	}
	if in.ExpenseDate.IsZero() {
		in.ExpenseDate = e.now()
	}

	var (
		employee *models.User
		company  *models.Company
	)
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if employee, err = tx.GetUser(ctx, in.EmployeeID); err != nil {
			return err
		}
		company, err = tx.GetCompany(ctx, employee.CompanyID)
		return err
	})
	if err != nil {
		return SubmitResult{}, err
	}
	if err := authz.Require(employee, authz.ActionSubmitExpense, authz.Owned(employee.CompanyID, employee.ID)); err != nil {
		return SubmitResult{}, err
	}

	// Rate lookup happens outside the transaction so a slow provider never
	// holds database locks.
	converted, err := e.convert(ctx, in.Amount, in.Currency, company.BaseCurrency)
	if err != nil {
		return SubmitResult{}, err
	}

	expense := models.Expense{
		CompanyID:       employee.CompanyID,
		EmployeeID:      employee.ID,
		Amount:          in.Amount,
		Currency:        in.Currency,
		ConvertedAmount: converted,
		Description:     in.Description,
		Category:        in.Category,
		ExpenseDate:     in.ExpenseDate,
		ReceiptRef:      in.ReceiptRef,
		Status:          models.ExpenseStatusPending,
	}

	err = e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		rules, err := tx.ListActiveRules(ctx, expense.CompanyID)
		if err != nil {
			return fmt.Errorf("failed to load approval rules: %w", err)
		}
		rule := SelectRule(expense.ConvertedAmount, rules)

		if rule == nil {
			expense.Status = models.ExpenseStatusApproved
			if err := tx.CreateExpense(ctx, &expense); err != nil {
				return fmt.Errorf("failed to create expense: %w", err)
			}
			result = SubmitResult{Expense: expense}
			return notifyOwner(ctx, tx, &expense, expense.Status, models.NotificationExpenseAutoApproved)
		}

		entries, err := PlanWorkflow(ctx, tx, &expense, rule)
		if err != nil {
			return err
		}
		expense.CapturePolicy(rule)
		if err := tx.CreateExpense(ctx, &expense); err != nil {
			return fmt.Errorf("failed to create expense: %w", err)
		}
		for i := range entries {
			entries[i].ExpenseID = expense.ID
		}
		if err := tx.CreateEntries(ctx, entries); err != nil {
			return fmt.Errorf("failed to create approvals: %w", err)
		}

		notify := entries
		if rule.RuleType == models.RuleTypeSequential {
			notify = nextStep(entries)
		}
		if err := notifyApprovers(ctx, tx, &expense, notify); err != nil {
			return err
		}
		result = SubmitResult{Expense: expense, Entries: entries}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConfiguration) {
			e.metrics.add(ctx, e.metrics.submissions, attribute.String("outcome", "configuration_error"))
		}
		return SubmitResult{}, err
	}

	outcome := "workflow"
	if result.Expense.Status == models.ExpenseStatusApproved {
		outcome = "auto_approved"
		e.metrics.add(ctx, e.metrics.transitions,
			attribute.String("status", string(models.ExpenseStatusApproved)), attribute.String("cause", "auto"))
	}
	e.metrics.add(ctx, e.metrics.submissions, attribute.String("outcome", outcome))
	e.log.Info().
		Int64("expense_id", result.Expense.ID).
		Str("employee", logger.HashUserID(employee.ID)).
		Str("outcome", outcome).
		Int("approvers", len(result.Entries)).
		Msg("Expense submitted")
	return result, nil
}

func (e *Engine) convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if to == "" {
		to = models.DefaultCurrency
	}
	if from == to {
		return amount.Round(2), nil
	}
	if e.converter == nil {
		return decimal.Zero, fmt.Errorf("no currency converter configured for %s to %s", from, to)
	}
	res, err := e.converter.Convert(ctx, amount, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to convert %s to %s: %w", from, to, err)
	}
	return res.Amount, nil
}
