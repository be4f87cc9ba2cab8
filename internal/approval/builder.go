package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// PlanWorkflow resolves the approvers a rule requires for an expense and returns
// the pending ledger rows to create. ExpenseID is left for the caller to set.
//
// Approvers are resolved against the directory at call time; a manager change
// after submission does not move existing rows.
func PlanWorkflow(ctx context.Context, dir Directory, expense *models.Expense, rule *models.ApprovalRule) ([]models.ApprovalEntry, error) {
	var (
		entries []models.ApprovalEntry
		err     error
	)

	switch rule.RuleType {
	case models.RuleTypeSequential:
		entries, err = planSequential(ctx, dir, expense, rule)
	case models.RuleTypePercentage:
		entries, err = planPercentage(ctx, dir, expense, rule)
	case models.RuleTypeSpecificApprover:
		entries, err = planSpecific(ctx, dir, rule)
	case models.RuleTypeHybrid:
		entries, err = planHybrid(ctx, dir, expense, rule)
	default:
		return nil, &ConfigurationError{RuleID: rule.ID, Field: "rule_type", Reason: fmt.Sprintf("unknown rule type %q", rule.RuleType)}
	}
	if err != nil {
		return nil, err
	}

	for i := range entries {
		entries[i].ExpenseID = expense.ID
		entries[i].Status = models.ApprovalStatusPending
	}
	return entries, nil
}

func planSequential(ctx context.Context, dir Directory, expense *models.Expense, rule *models.ApprovalRule) ([]models.ApprovalEntry, error) {
	if len(rule.Steps) == 0 {
		return nil, &ConfigurationError{RuleID: rule.ID, Field: "steps", Reason: "sequential rule has no steps"}
	}

	steps := make([]models.ApprovalRuleStep, len(rule.Steps))
	copy(steps, rule.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })

	var entries []models.ApprovalEntry
	index := make(map[int64]int)
	for _, step := range steps {
		approverID, ok, err := resolveStep(ctx, dir, expense, step)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		// One row per approver; a repeat keeps the earlier step.
		if i, dup := index[approverID]; dup {
			entries[i].IsRequired = entries[i].IsRequired || step.IsRequired
			continue
		}
		index[approverID] = len(entries)
		entries = append(entries, models.ApprovalEntry{
			ApproverID: approverID,
			StepOrder:  step.StepOrder,
			IsRequired: step.IsRequired,
		})
	}

	if len(entries) == 0 {
		return nil, &ConfigurationError{RuleID: rule.ID, Field: "steps", Reason: "no step resolved to an active approver"}
	}
	return entries, nil
}

// resolveStep returns the approver for a sequential step, or ok=false when the
// step cannot be resolved and is skipped.
func resolveStep(ctx context.Context, dir Directory, expense *models.Expense, step models.ApprovalRuleStep) (int64, bool, error) {
	switch step.ApproverRole {
	case models.ApproverRoleSpecificUser:
		if step.ApproverID == nil {
			return 0, false, nil
		}
		return activeMember(ctx, dir, expense.CompanyID, *step.ApproverID)
	case models.ApproverRoleManager:
		employee, err := dir.GetUser(ctx, expense.EmployeeID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to load employee: %w", err)
		}
		if employee.ManagerID == nil {
			return 0, false, nil
		}
		return activeMember(ctx, dir, expense.CompanyID, *employee.ManagerID)
	case models.ApproverRoleAdmin:
		admin, err := dir.LowestActiveAdmin(ctx, expense.CompanyID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to resolve admin: %w", err)
		}
		if admin == nil {
			return 0, false, nil
		}
		return admin.ID, true, nil
	}
	return 0, false, nil
}

func activeMember(ctx context.Context, dir Directory, companyID, userID int64) (int64, bool, error) {
	u, err := dir.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load approver: %w", err)
	}
	if !u.IsActive || u.CompanyID != companyID {
		return 0, false, nil
	}
	return u.ID, true, nil
}

// percentagePool returns the active managers and admins of the company, minus
// the submitting employee.
func percentagePool(ctx context.Context, dir Directory, expense *models.Expense) ([]models.ApprovalEntry, error) {
	users, err := dir.ActiveApprovers(ctx, expense.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvers: %w", err)
	}
	entries := make([]models.ApprovalEntry, 0, len(users))
	for _, u := range users {
		if u.ID == expense.EmployeeID || !u.IsApprover() {
			continue
		}
		entries = append(entries, models.ApprovalEntry{ApproverID: u.ID, StepOrder: 1, IsRequired: true})
	}
	return entries, nil
}

func planPercentage(ctx context.Context, dir Directory, expense *models.Expense, rule *models.ApprovalRule) ([]models.ApprovalEntry, error) {
	entries, err := percentagePool(ctx, dir, expense)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &ConfigurationError{RuleID: rule.ID, Reason: "company has no active managers or admins"}
	}
	return entries, nil
}

func planSpecific(ctx context.Context, dir Directory, rule *models.ApprovalRule) ([]models.ApprovalEntry, error) {
	id, err := specificApprover(ctx, dir, rule)
	if err != nil {
		return nil, err
	}
	return []models.ApprovalEntry{{ApproverID: id, StepOrder: 1, IsRequired: true}}, nil
}

func planHybrid(ctx context.Context, dir Directory, expense *models.Expense, rule *models.ApprovalRule) ([]models.ApprovalEntry, error) {
	id, err := specificApprover(ctx, dir, rule)
	if err != nil {
		return nil, err
	}
	pool, err := percentagePool(ctx, dir, expense)
	if err != nil {
		return nil, err
	}

	entries := []models.ApprovalEntry{{ApproverID: id, StepOrder: 1, IsRequired: true}}
	for _, e := range pool {
		if e.ApproverID != id {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func specificApprover(ctx context.Context, dir Directory, rule *models.ApprovalRule) (int64, error) {
	if rule.SpecificApproverID == nil {
		return 0, &ConfigurationError{RuleID: rule.ID, Field: "specific_approver_id", Reason: "is required"}
	}
	id, ok, err := activeMember(ctx, dir, rule.CompanyID, *rule.SpecificApproverID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &ConfigurationError{
			RuleID: rule.ID,
			Field:  "specific_approver_id",
			Reason: fmt.Sprintf("user %d is not an active member of the company", *rule.SpecificApproverID),
		}
	}
	return id, nil
}
