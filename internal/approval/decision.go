package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"gitlab.com/yelinaung/expense-approvals/internal/authz"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// DecisionInput is one approver's decision on one expense.
type DecisionInput struct {
	ExpenseID  int64
	ApproverID int64
	Action     models.ApprovalStatus
	Comments   string
}

// DecisionResult reports the recorded ledger row and, when the decision closed
// the expense, its new terminal status.
type DecisionResult struct {
	Updated   bool
	NewStatus *models.ExpenseStatus
	Entry     models.ApprovalEntry
}

// RecordDecision records one approver's decision and re-evaluates the expense.
// The expense row is locked for the whole unit of work so two concurrent
// decisions cannot both close it.
func (e *Engine) RecordDecision(ctx context.Context, in DecisionInput) (result DecisionResult, err error) {
	ctx, finish := e.startSpan(ctx, "RecordDecision",
		attribute.Int64("expense.id", in.ExpenseID),
		attribute.String("decision.action", string(in.Action)))
	defer func() { finish(err) }()

	if err := decisionAction(in.Action); err != nil {
		return DecisionResult{}, err
	}
	comments := strings.TrimSpace(in.Comments)

	err = e.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		expense, err := tx.LockExpense(ctx, in.ExpenseID)
		if err != nil {
			return err
		}
		if expense.Status.IsTerminal() {
			return &NotAuthorizedError{ExpenseID: in.ExpenseID, ApproverID: in.ApproverID, Reason: "expense is already " + string(expense.Status)}
		}

		approver, err := tx.GetUser(ctx, in.ApproverID)
		if errors.Is(err, ErrNotFound) {
			return &NotAuthorizedError{ExpenseID: in.ExpenseID, ApproverID: in.ApproverID, Reason: "unknown approver"}
		}
		if err != nil {
			return fmt.Errorf("failed to load approver: %w", err)
		}
		if err := authz.Require(approver, authz.ActionDecide, authz.Owned(expense.CompanyID, expense.EmployeeID)); err != nil {
			return err
		}

		entry, err := tx.PendingEntry(ctx, in.ExpenseID, in.ApproverID)
		if err != nil {
			return fmt.Errorf("failed to load pending approval: %w", err)
		}
		if entry == nil {
			return &NotAuthorizedError{ExpenseID: in.ExpenseID, ApproverID: in.ApproverID, Reason: "no pending approval assigned"}
		}

		decidedAt := e.now()
		changed, err := tx.DecideEntry(ctx, entry.ID, in.Action, comments, decidedAt)
		if err != nil {
			return fmt.Errorf("failed to record decision: %w", err)
		}
		if !changed {
			return &NotAuthorizedError{ExpenseID: in.ExpenseID, ApproverID: in.ApproverID, Reason: "approval already decided"}
		}
		entry.Status = in.Action
		entry.Comments = comments
		entry.DecidedAt = &decidedAt

		entries, err := tx.ListEntries(ctx, in.ExpenseID)
		if err != nil {
			return fmt.Errorf("failed to load approvals: %w", err)
		}
		policy, err := e.expensePolicy(ctx, tx, expense)
		if err != nil {
			return err
		}

		result = DecisionResult{Updated: true, Entry: *entry}

		status := Evaluate(policy, entries)
		if status.IsTerminal() {
			moved, err := tx.TransitionExpense(ctx, expense.ID, status)
			if err != nil {
				return fmt.Errorf("failed to update expense status: %w", err)
			}
			if !moved {
				return nil
			}
			expense.Status = status
			result.NewStatus = &status
			return notifyOwner(ctx, tx, expense, status, statusNotification(status))
		}

		if in.Action == models.ApprovalStatusApproved && (policy == nil || policy.RuleType == models.RuleTypeSequential) {
			next := nextStep(entries)
			if len(next) > 0 && next[0].StepOrder > entry.StepOrder {
				return notifyApprovers(ctx, tx, expense, next)
			}
		}
		return nil
	})
	if err != nil {
		return DecisionResult{}, err
	}

	e.metrics.add(ctx, e.metrics.decisions, attribute.String("action", string(in.Action)))
	ev := e.log.Info().
		Int64("expense_id", in.ExpenseID).
		Str("approver", logger.HashUserID(in.ApproverID)).
		Str("action", string(in.Action))
	if result.NewStatus != nil {
		e.metrics.add(ctx, e.metrics.transitions,
			attribute.String("status", string(*result.NewStatus)), attribute.String("cause", "decision"))
		ev = ev.Str("new_status", string(*result.NewStatus))
	}
	ev.Msg("Decision recorded")
	return result, nil
}

// expensePolicy returns the completion policy captured when the expense was
// submitted. Expenses stored without one fall back to the rule as it is now,
// and to sequential evaluation once that rule is gone.
func (e *Engine) expensePolicy(ctx context.Context, tx Tx, expense *models.Expense) (*models.ApprovalRule, error) {
	if policy := expense.Policy(); policy != nil {
		return policy, nil
	}
	if expense.ApprovalRuleID == nil {
		return nil, nil
	}
	rule, err := tx.GetRule(ctx, *expense.ApprovalRuleID)
	if errors.Is(err, ErrNotFound) {
		e.log.Warn().Int64("expense_id", expense.ID).Msg("Approval rule no longer exists, evaluating as sequential")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load approval rule: %w", err)
	}
	return rule, nil
}
