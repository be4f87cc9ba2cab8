package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// ValidateRule checks a rule definition for the fields its type requires.
// It does not touch the directory; see ValidateRuleApprovers for that.
func ValidateRule(rule *models.ApprovalRule) error {
	cfgErr := func(field, reason string) error {
		return &ConfigurationError{RuleID: rule.ID, Field: field, Reason: reason}
	}

	name := strings.TrimSpace(rule.Name)
	if name == "" {
		return cfgErr("name", "is required")
	}
	if len(name) > models.MaxRuleNameLength {
		return cfgErr("name", fmt.Sprintf("must be at most %d characters", models.MaxRuleNameLength))
	}
	if !rule.RuleType.Valid() {
		return cfgErr("rule_type", fmt.Sprintf("unknown rule type %q", rule.RuleType))
	}
	if rule.MinAmount.IsNegative() {
		return cfgErr("min_amount", "must not be negative")
	}
	if rule.MaxAmount != nil && rule.MaxAmount.LessThan(rule.MinAmount) {
		return cfgErr("max_amount", "must not be less than min_amount")
	}

	switch rule.RuleType {
	case models.RuleTypePercentage, models.RuleTypeHybrid:
		if rule.PercentageRequired == nil {
			return cfgErr("percentage_required", "is required for "+string(rule.RuleType)+" rules")
		}
		if p := *rule.PercentageRequired; p < 1 || p > 100 {
			return cfgErr("percentage_required", "must be between 1 and 100")
		}
	}

	switch rule.RuleType {
	case models.RuleTypeSpecificApprover, models.RuleTypeHybrid:
		if rule.SpecificApproverID == nil {
			return cfgErr("specific_approver_id", "is required for "+string(rule.RuleType)+" rules")
		}
	}

	if rule.RuleType == models.RuleTypeSequential {
		if len(rule.Steps) == 0 {
			return cfgErr("steps", "sequential rules need at least one step")
		}
		seen := make(map[int]bool, len(rule.Steps))
		for _, step := range rule.Steps {
			if step.StepOrder < 1 {
				return cfgErr("steps", "step_order must be 1 or greater")
			}
			if seen[step.StepOrder] {
				return cfgErr("steps", fmt.Sprintf("duplicate step_order %d", step.StepOrder))
			}
			seen[step.StepOrder] = true
			if !step.ApproverRole.Valid() {
				return cfgErr("steps", fmt.Sprintf("unknown approver role %q", step.ApproverRole))
			}
			if step.ApproverRole == models.ApproverRoleSpecificUser && step.ApproverID == nil {
				return cfgErr("steps", fmt.Sprintf("step %d: approver_id is required for specific_user", step.StepOrder))
			}
		}
	} else if len(rule.Steps) > 0 {
		return cfgErr("steps", "only sequential rules have steps")
	}

	return nil
}

// ValidateRuleApprovers checks that every user referenced by the rule is an
// active member of the rule's company.
func ValidateRuleApprovers(ctx context.Context, dir Directory, rule *models.ApprovalRule) error {
	check := func(field string, id int64) error {
		u, err := dir.GetUser(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return &ConfigurationError{RuleID: rule.ID, Field: field, Reason: fmt.Sprintf("user %d does not exist", id)}
		}
		if err != nil {
			return err
		}
		if u.CompanyID != rule.CompanyID {
			return &ConfigurationError{RuleID: rule.ID, Field: field, Reason: fmt.Sprintf("user %d belongs to another company", id)}
		}
		if !u.IsActive {
			return &ConfigurationError{RuleID: rule.ID, Field: field, Reason: fmt.Sprintf("user %d is inactive", id)}
		}
		return nil
	}

	if rule.SpecificApproverID != nil {
		if err := check("specific_approver_id", *rule.SpecificApproverID); err != nil {
			return err
		}
	}
	for _, step := range rule.Steps {
		if step.ApproverID == nil {
			continue
		}
		if err := check("steps", *step.ApproverID); err != nil {
			return err
		}
	}
	return nil
}
