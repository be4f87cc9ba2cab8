package approval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"gitlab.com/yelinaung/expense-approvals/internal/authz"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// OverrideInput is an administrator forcing an expense to a terminal status.
type OverrideInput struct {
	ExpenseID int64
	AdminID   int64
	Action    models.ApprovalStatus
	Comments  string
}

// OverrideResult reports the forced status and how many pending rows were closed.
type OverrideResult struct {
	Status        models.ExpenseStatus
	ClosedEntries int
	EventID       string
}

// OverrideComment annotates ledger rows closed by an override.
func OverrideComment(adminID int64, comments string) string {
	prefix := fmt.Sprintf("[admin override by %d]", adminID)
	if comments = strings.TrimSpace(comments); comments == "" {
		return prefix
	}
	return prefix + " " + comments
}

// OverrideExpense forces a pending expense to the given terminal status,
// bypassing the rule's completion predicate. Every still-pending ledger row is
// closed with the same action and an annotated comment, and an audit record is
// written in the same unit of work.
func (e *Engine) OverrideExpense(ctx context.Context, in OverrideInput) (result OverrideResult, err error) {
	ctx, finish := e.startSpan(ctx, "OverrideExpense",
		attribute.Int64("expense.id", in.ExpenseID),
		attribute.String("override.action", string(in.Action)))
	defer func() { finish(err) }()

	if err := decisionAction(in.Action); err != nil {
		return OverrideResult{}, err
	}

	err = e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		admin, err := tx.GetUser(ctx, in.AdminID)
		if err != nil {
			return err
		}
		expense, err := tx.LockExpense(ctx, in.ExpenseID)
		if err != nil {
			return err
		}
		if err := authz.Require(admin, authz.ActionOverride, authz.Owned(expense.CompanyID, expense.EmployeeID)); err != nil {
			return err
		}
		if expense.Status.IsTerminal() {
			return &ConflictError{Reason: fmt.Sprintf("expense %d is already %s", expense.ID, expense.Status)}
		}

		previous := expense.Status
		target := in.Action.ExpenseStatus()
		closed, err := tx.ForceClosePending(ctx, expense.ID, in.Action, OverrideComment(admin.ID, in.Comments), e.now())
		if err != nil {
			return fmt.Errorf("failed to close pending approvals: %w", err)
		}
		moved, err := tx.TransitionExpense(ctx, expense.ID, target)
		if err != nil {
			return fmt.Errorf("failed to update expense status: %w", err)
		}
		if !moved {
			return &ConflictError{Reason: fmt.Sprintf("expense %d changed status concurrently", expense.ID)}
		}
		expense.Status = target

		eventID := e.newID()
		audit := &models.AuditLog{
			EventID:   eventID,
			UserID:    admin.ID,
			ExpenseID: expense.ID,
			Action:    models.AuditActionAdminOverride,
			Payload: map[string]any{
				"action":          string(in.Action),
				"comments":        strings.TrimSpace(in.Comments),
				"previous_status": string(previous),
				"new_status":      string(target),
				"closed_entries":  closed,
			},
		}
		if err := tx.InsertAudit(ctx, audit); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		if err := notifyOwner(ctx, tx, expense, target, models.NotificationExpenseOverridden); err != nil {
			return err
		}

		result = OverrideResult{Status: target, ClosedEntries: closed, EventID: eventID}
		return nil
	})
	if err != nil {
		return OverrideResult{}, err
	}

	e.metrics.add(ctx, e.metrics.overrides, attribute.String("action", string(in.Action)))
	e.metrics.add(ctx, e.metrics.transitions,
		attribute.String("status", string(result.Status)), attribute.String("cause", "override"))
	e.log.Info().
		Int64("expense_id", in.ExpenseID).
		Str("admin", logger.HashUserID(in.AdminID)).
		Str("status", string(result.Status)).
		Int("closed_entries", result.ClosedEntries).
		Msg("Expense overridden")
	return result, nil
}

func newEventID() string {
	return uuid.NewString()
}
