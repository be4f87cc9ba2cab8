package approval

import (
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// SelectRule picks the single rule that governs an expense of the given amount.
// Among active rules whose inclusive range contains amount, the highest MinAmount
// wins; ties fall to the lowest SequenceOrder and then the lowest ID, so the result
// does not depend on the order of rules. Returns nil when nothing matches, in which
// case the caller auto-approves.
func SelectRule(amount decimal.Decimal, rules []models.ApprovalRule) *models.ApprovalRule {
	var best *models.ApprovalRule
	for i := range rules {
		r := &rules[i]
		if !r.IsActive || !r.Matches(amount) {
			continue
		}
		if best == nil || outranks(r, best) {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	selected := *best
	return &selected
}

func outranks(a, b *models.ApprovalRule) bool {
	if c := a.MinAmount.Cmp(b.MinAmount); c != 0 {
		return c > 0
	}
	if a.SequenceOrder != b.SequenceOrder {
		return a.SequenceOrder < b.SequenceOrder
	}
	return a.ID < b.ID
}
