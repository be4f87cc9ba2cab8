package approval

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

func rows(statuses ...models.ApprovalStatus) []models.ApprovalEntry {
	out := make([]models.ApprovalEntry, len(statuses))
	for i, s := range statuses {
		out[i] = models.ApprovalEntry{ID: int64(i + 1), ApproverID: int64(100 + i), StepOrder: 1, IsRequired: true, Status: s}
	}
	return out
}

const (
	pending  = models.ApprovalStatusPending
	approved = models.ApprovalStatusApproved
	rejected = models.ApprovalStatusRejected
)

func TestEvaluate_Percentage(t *testing.T) {
	t.Parallel()

	rule := &models.ApprovalRule{RuleType: models.RuleTypePercentage, PercentageRequired: intPtr(60)}

	require.Equal(t, models.ExpenseStatusPending, Evaluate(rule, rows(approved, pending, pending, pending, pending)))
	require.Equal(t, models.ExpenseStatusPending, Evaluate(rule, rows(approved, approved, pending, pending, pending)))
	require.Equal(t, models.ExpenseStatusApproved, Evaluate(rule, rows(approved, approved, approved, pending, pending)))

	t.Run("rounding uses exact integer comparison", func(t *testing.T) {
		t.Parallel()
		third := &models.ApprovalRule{RuleType: models.RuleTypePercentage, PercentageRequired: intPtr(34)}
		// 1/3 = 33.3% is below 34.
		require.Equal(t, models.ExpenseStatusPending, Evaluate(third, rows(approved, pending, pending)))
		require.Equal(t, models.ExpenseStatusApproved, Evaluate(third, rows(approved, approved, pending)))
	})

	t.Run("rejection vetoes", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, models.ExpenseStatusRejected, Evaluate(rule, rows(approved, approved, approved, rejected, pending)))
	})
}

func TestEvaluate_Sequential(t *testing.T) {
	t.Parallel()

	rule := &models.ApprovalRule{RuleType: models.RuleTypeSequential}

	require.Equal(t, models.ExpenseStatusPending, Evaluate(rule, rows(approved, pending)))
	require.Equal(t, models.ExpenseStatusApproved, Evaluate(rule, rows(approved, approved)))
	require.Equal(t, models.ExpenseStatusRejected, Evaluate(rule, rows(pending, rejected)))

	t.Run("optional rows still block and veto", func(t *testing.T) {
		t.Parallel()
		entries := rows(approved, pending)
		entries[1].IsRequired = false
		require.Equal(t, models.ExpenseStatusPending, Evaluate(rule, entries))
		entries[1].Status = approved
		require.Equal(t, models.ExpenseStatusApproved, Evaluate(rule, entries))

		entries = rows(pending, rejected)
		entries[1].IsRequired = false
		require.Equal(t, models.ExpenseStatusRejected, Evaluate(rule, entries))
	})

	t.Run("missing policy evaluates as sequential", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, models.ExpenseStatusPending, Evaluate(nil, rows(approved, pending)))
		require.Equal(t, models.ExpenseStatusApproved, Evaluate(nil, rows(approved, approved)))
	})

	t.Run("empty ledger never approves", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, models.ExpenseStatusPending, Evaluate(rule, nil))
	})
}

func TestEvaluate_SpecificAndHybrid(t *testing.T) {
	t.Parallel()

	specificID := int64(100)

	t.Run("specific approver", func(t *testing.T) {
		t.Parallel()
		rule := &models.ApprovalRule{RuleType: models.RuleTypeSpecificApprover, SpecificApproverID: &specificID}
		require.Equal(t, models.ExpenseStatusPending, Evaluate(rule, rows(pending)))
		require.Equal(t, models.ExpenseStatusApproved, Evaluate(rule, rows(approved)))
		require.Equal(t, models.ExpenseStatusRejected, Evaluate(rule, rows(rejected)))
	})

	hybrid := &models.ApprovalRule{RuleType: models.RuleTypeHybrid, SpecificApproverID: &specificID, PercentageRequired: intPtr(50)}

	t.Run("hybrid closes on the specific approver alone", func(t *testing.T) {
		t.Parallel()
		// rows() gives the first row approver 100, the specific approver.
		require.Equal(t, models.ExpenseStatusApproved, Evaluate(hybrid, rows(approved, pending, pending, pending, pending)))
	})

	t.Run("hybrid closes on percentage of the others", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, models.ExpenseStatusPending, Evaluate(hybrid, rows(pending, approved, pending, pending, pending)))
		require.Equal(t, models.ExpenseStatusApproved, Evaluate(hybrid, rows(pending, approved, approved, pending, pending)))
	})

	t.Run("hybrid veto", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, models.ExpenseStatusRejected, Evaluate(hybrid, rows(pending, approved, approved, rejected, pending)))
	})

	t.Run("hybrid with only the specific row", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, models.ExpenseStatusPending, Evaluate(hybrid, rows(pending)))
	})
}

func TestNextStep(t *testing.T) {
	t.Parallel()

	entries := rows(approved, pending, pending)
	entries[0].StepOrder = 1
	entries[1].StepOrder = 3
	entries[2].StepOrder = 2

	next := nextStep(entries)
	require.Len(t, next, 1)
	require.Equal(t, 2, next[0].StepOrder)

	require.Nil(t, nextStep(rows(approved, rejected)))
}

func TestPercentageMet_Properties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(1, 40).Draw(t, "total")
		approvedCount := rapid.IntRange(0, total).Draw(t, "approved")
		required := rapid.IntRange(1, 100).Draw(t, "required")

		statuses := make([]models.ApprovalStatus, total)
		for i := range statuses {
			statuses[i] = pending
			if i < approvedCount {
				statuses[i] = approved
			}
		}
		got := percentageMet(rows(statuses...), required)

		// Exact rational comparison: approved/total >= required/100.
		want := approvedCount*100 >= required*total
		if got != want {
			t.Fatalf("percentageMet(%d/%d, %d) = %v", approvedCount, total, required, got)
		}
		if approvedCount == total && !got {
			t.Fatalf("unanimous approval must satisfy %d%%", required)
		}
		if got && approvedCount < total {
			statuses[approvedCount] = approved
			if !percentageMet(rows(statuses...), required) {
				t.Fatalf("one more approval must not unsatisfy the predicate")
			}
		}
	})
}

func TestEvaluate_VetoProperty(t *testing.T) {
	t.Parallel()

	specificID := int64(100)
	policies := []*models.ApprovalRule{
		nil,
		{RuleType: models.RuleTypeSequential},
		{RuleType: models.RuleTypePercentage, PercentageRequired: intPtr(1)},
		{RuleType: models.RuleTypeSpecificApprover, SpecificApproverID: &specificID},
		{RuleType: models.RuleTypeHybrid, SpecificApproverID: &specificID, PercentageRequired: intPtr(1)},
	}

	rapid.Check(t, func(t *rapid.T) {
		statuses := rapid.SliceOfN(rapid.SampledFrom([]models.ApprovalStatus{pending, approved}), 0, 12).Draw(t, "statuses")
		at := rapid.IntRange(0, len(statuses)).Draw(t, "rejected_at")
		statuses = append(statuses[:at:at], append([]models.ApprovalStatus{rejected}, statuses[at:]...)...)

		entries := rows(statuses...)
		entries[at].IsRequired = rapid.Bool().Draw(t, "required")
		policy := rapid.SampledFrom(policies).Draw(t, "policy")

		if got := Evaluate(policy, entries); got != models.ExpenseStatusRejected {
			t.Fatalf("ledger with a rejection evaluated to %s", got)
		}
	})
}
