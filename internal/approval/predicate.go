package approval

import "gitlab.com/yelinaung/expense-approvals/internal/models"

// Evaluate computes the expense status implied by the ledger under policy.
// It returns ExpenseStatusPending while the completion predicate is unmet.
// Any rejected row rejects the expense whatever the rule type. A nil policy
// is evaluated as sequential. IsRequired on a row is informational only.
func Evaluate(policy *models.ApprovalRule, entries []models.ApprovalEntry) models.ExpenseStatus {
	for _, e := range entries {
		if e.Status == models.ApprovalStatusRejected {
			return models.ExpenseStatusRejected
		}
	}

	var done bool
	if policy == nil {
		done = allApproved(entries)
	} else {
		switch policy.RuleType {
		case models.RuleTypePercentage:
			done = percentageMet(entries, percentage(policy))
		case models.RuleTypeSpecificApprover:
			if row, ok := specificRow(policy, entries); ok {
				done = row.Status == models.ApprovalStatusApproved
			} else {
				done = allApproved(entries)
			}
		case models.RuleTypeHybrid:
			row, ok := specificRow(policy, entries)
			if ok && row.Status == models.ApprovalStatusApproved {
				done = true
			} else {
				done = percentageMet(othersThan(policy, entries), percentage(policy))
			}
		default:
			done = allApproved(entries)
		}
	}

	if done {
		return models.ExpenseStatusApproved
	}
	return models.ExpenseStatusPending
}

// allApproved holds when the ledger is non-empty and no row is left undecided.
func allApproved(entries []models.ApprovalEntry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if e.Status != models.ApprovalStatusApproved {
			return false
		}
	}
	return true
}

// percentageMet reports approved/total*100 >= required in integer arithmetic.
func percentageMet(entries []models.ApprovalEntry, required int) bool {
	total := len(entries)
	if total == 0 {
		return false
	}
	approved := 0
	for _, e := range entries {
		if e.Status == models.ApprovalStatusApproved {
			approved++
		}
	}
	return approved*100 >= required*total
}

func percentage(rule *models.ApprovalRule) int {
	if rule.PercentageRequired == nil {
		return 100
	}
	return *rule.PercentageRequired
}

func specificRow(rule *models.ApprovalRule, entries []models.ApprovalEntry) (models.ApprovalEntry, bool) {
	if rule.SpecificApproverID == nil {
		return models.ApprovalEntry{}, false
	}
	for _, e := range entries {
		if e.ApproverID == *rule.SpecificApproverID {
			return e, true
		}
	}
	return models.ApprovalEntry{}, false
}

func othersThan(rule *models.ApprovalRule, entries []models.ApprovalEntry) []models.ApprovalEntry {
	if rule.SpecificApproverID == nil {
		return entries
	}
	out := make([]models.ApprovalEntry, 0, len(entries))
	for _, e := range entries {
		if e.ApproverID != *rule.SpecificApproverID {
			out = append(out, e)
		}
	}
	return out
}

// nextStep returns the pending rows with the lowest step order, or nil when
// nothing is pending.
func nextStep(entries []models.ApprovalEntry) []models.ApprovalEntry {
	lowest := 0
	for _, e := range entries {
		if e.Status != models.ApprovalStatusPending {
			continue
		}
		if lowest == 0 || e.StepOrder < lowest {
			lowest = e.StepOrder
		}
	}
	if lowest == 0 {
		return nil
	}
	var out []models.ApprovalEntry
	for _, e := range entries {
		if e.Status == models.ApprovalStatusPending && e.StepOrder == lowest {
			out = append(out, e)
		}
	}
	return out
}
