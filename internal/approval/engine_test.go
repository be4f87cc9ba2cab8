package approval_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/approval/memstore"
	"gitlab.com/yelinaung/expense-approvals/internal/exchange"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store    *memstore.Store
	engine   *approval.Engine
	company  models.Company
	admin    models.User
	manager  models.User
	employee models.User
}

func newFixture(t *testing.T, opts ...approval.Option) *fixture {
	t.Helper()
	store := memstore.New()
	f := &fixture{store: store}
	f.company = store.AddCompany(models.Company{Name: "Acme", BaseCurrency: "SGD"})
	f.admin = store.AddUser(models.User{CompanyID: f.company.ID, Name: "Ada", Role: models.RoleAdmin, IsActive: true})
	f.manager = store.AddUser(models.User{CompanyID: f.company.ID, Name: "Max", Role: models.RoleManager, IsActive: true})
	f.employee = store.AddUser(models.User{
		CompanyID: f.company.ID, Name: "Eve", Role: models.RoleEmployee, IsActive: true, ManagerID: &f.manager.ID,
	})
	opts = append([]approval.Option{
		approval.WithClock(func() time.Time { return fixedNow }),
		approval.WithEventIDs(func() string { return "evt-1" }),
	}, opts...)
	f.engine = approval.NewEngine(store, opts...)
	return f
}

func (f *fixture) addUser(t *testing.T, role models.Role) models.User {
	t.Helper()
	return f.store.AddUser(models.User{CompanyID: f.company.ID, Name: string(role), Role: role, IsActive: true})
}

func (f *fixture) addRule(t *testing.T, rule models.ApprovalRule) models.ApprovalRule {
	t.Helper()
	rule.CompanyID = f.company.ID
	rule.IsActive = true
	if rule.Name == "" {
		rule.Name = string(rule.RuleType)
	}
	err := f.store.RunInTx(context.Background(), func(ctx context.Context, tx approval.Tx) error {
		return tx.CreateRule(ctx, &rule)
	})
	require.NoError(t, err)
	return rule
}

func (f *fixture) submit(t *testing.T, amount string) approval.SubmitResult {
	t.Helper()
	res, err := f.engine.SubmitExpense(context.Background(), approval.SubmitInput{
		EmployeeID:  f.employee.ID,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "SGD",
		Description: "Team lunch",
		Category:    "Food",
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) decide(approverID, expenseID int64, action models.ApprovalStatus) (approval.DecisionResult, error) {
	return f.engine.RecordDecision(context.Background(), approval.DecisionInput{
		ExpenseID:  expenseID,
		ApproverID: approverID,
		Action:     action,
		Comments:   "ok",
	})
}

func (f *fixture) status(t *testing.T, expenseID int64) models.ExpenseStatus {
	t.Helper()
	e, ok := f.store.Expense(expenseID)
	require.True(t, ok)
	return e.Status
}

func notificationsOfType(store *memstore.Store, kind string) []models.Notification {
	var out []models.Notification
	for _, n := range store.Notifications() {
		if n.Type == kind {
			out = append(out, n)
		}
	}
	return out
}

func pct(n int) *int { return &n }

func id(n int64) *int64 { return &n }

func TestSubmitExpense_AutoApprovesWithoutRule(t *testing.T) {
	f := newFixture(t)

	res := f.submit(t, "25")

	require.Equal(t, models.ExpenseStatusApproved, res.Expense.Status)
	require.Nil(t, res.Expense.ApprovalRuleID)
	require.Empty(t, res.Entries)
	require.Empty(t, f.store.Entries(res.Expense.ID))

	auto := notificationsOfType(f.store, models.NotificationExpenseAutoApproved)
	require.Len(t, auto, 1)
	require.Equal(t, f.employee.ID, auto[0].UserID)
}

func TestSubmitExpense_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   approval.SubmitInput
	}{
		{"zero amount", approval.SubmitInput{EmployeeID: f.employee.ID, Amount: decimal.Zero, Currency: "SGD", Description: "x"}},
		{"unsupported currency", approval.SubmitInput{EmployeeID: f.employee.ID, Amount: decimal.NewFromInt(1), Currency: "XYZ", Description: "x"}},
		{"missing description", approval.SubmitInput{EmployeeID: f.employee.ID, Amount: decimal.NewFromInt(1), Currency: "SGD"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.SubmitExpense(ctx, tt.in)
			require.ErrorIs(t, err, approval.ErrInvalidInput)
		})
	}

	t.Run("unknown employee", func(t *testing.T) {
		_, err := f.engine.SubmitExpense(ctx, approval.SubmitInput{
			EmployeeID: 9999, Amount: decimal.NewFromInt(1), Currency: "SGD", Description: "x",
		})
		require.ErrorIs(t, err, approval.ErrNotFound)
	})

	t.Run("inactive employee", func(t *testing.T) {
		f.store.SetUserActive(f.employee.ID, false)
		defer f.store.SetUserActive(f.employee.ID, true)
		_, err := f.engine.SubmitExpense(ctx, approval.SubmitInput{
			EmployeeID: f.employee.ID, Amount: decimal.NewFromInt(1), Currency: "SGD", Description: "x",
		})
		require.ErrorIs(t, err, approval.ErrForbidden)
	})
}

type fakeConverter struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (c *fakeConverter) Convert(_ context.Context, amount decimal.Decimal, _, _ string) (exchange.ConversionResult, error) {
	c.calls++
	if c.err != nil {
		return exchange.ConversionResult{}, c.err
	}
	return exchange.ConversionResult{Amount: amount.Mul(c.rate).Round(2), Rate: c.rate, RateDate: fixedNow}, nil
}

func TestSubmitExpense_ConvertsBeforeSelecting(t *testing.T) {
	conv := &fakeConverter{rate: decimal.RequireFromString("1.35")}
	f := newFixture(t, approval.WithConverter(conv))
	// 100 USD is 135 SGD, which only the 120+ rule covers.
	f.addRule(t, models.ApprovalRule{RuleType: models.RuleTypeSpecificApprover, MinAmount: decimal.NewFromInt(120), SpecificApproverID: &f.admin.ID})

	res, err := f.engine.SubmitExpense(context.Background(), approval.SubmitInput{
		EmployeeID: f.employee.ID, Amount: decimal.NewFromInt(100), Currency: "usd", Description: "Taxi",
	})
	require.NoError(t, err)
	require.Equal(t, 1, conv.calls)
	require.Equal(t, "USD", res.Expense.Currency)
	require.True(t, res.Expense.ConvertedAmount.Equal(decimal.RequireFromString("135")))
	require.Equal(t, models.ExpenseStatusPending, res.Expense.Status)
	require.Len(t, res.Entries, 1)
	require.Equal(t, f.admin.ID, res.Entries[0].ApproverID)

	t.Run("conversion failure creates nothing", func(t *testing.T) {
		conv.err = errors.New("rate service down")
		_, err := f.engine.SubmitExpense(context.Background(), approval.SubmitInput{
			EmployeeID: f.employee.ID, Amount: decimal.NewFromInt(5), Currency: "USD", Description: "Taxi",
		})
		require.ErrorContains(t, err, "rate service down")
	})
}

func TestSubmitExpense_ConfigurationErrorRollsBack(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ApprovalRule{RuleType: models.RuleTypeSequential, MinAmount: decimal.Zero}) // no steps

	_, err := f.engine.SubmitExpense(context.Background(), approval.SubmitInput{
		EmployeeID: f.employee.ID, Amount: decimal.NewFromInt(10), Currency: "SGD", Description: "x",
	})
	require.ErrorIs(t, err, approval.ErrConfiguration)

	list, err := f.engine.ListExpenses(context.Background(), &f.admin, approval.ExpenseFilter{})
	require.NoError(t, err)
	require.Empty(t, list)
	require.Empty(t, f.store.Notifications())
}

func TestSequential_AnyOrderApprovesExactlyOnce(t *testing.T) {
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}}

	for _, order := range orders {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			f := newFixture(t)
			specific := f.addUser(t, models.RoleEmployee)
			f.addRule(t, models.ApprovalRule{
				RuleType:  models.RuleTypeSequential,
				MinAmount: decimal.Zero,
				Steps: []models.ApprovalRuleStep{
					{StepOrder: 1, ApproverRole: models.ApproverRoleManager, IsRequired: true},
					{StepOrder: 2, ApproverRole: models.ApproverRoleAdmin, IsRequired: true},
					{StepOrder: 3, ApproverRole: models.ApproverRoleSpecificUser, ApproverID: &specific.ID, IsRequired: true},
				},
			})
			res := f.submit(t, "80")
			require.Len(t, res.Entries, 3)
			approvers := []int64{f.manager.ID, f.admin.ID, specific.ID}
			for i, e := range res.Entries {
				require.Equal(t, approvers[i], e.ApproverID)
				require.Equal(t, i+1, e.StepOrder)
			}

			// Only the first step is asked at submission time.
			requested := notificationsOfType(f.store, models.NotificationApprovalRequested)
			require.Len(t, requested, 1)
			require.Equal(t, f.manager.ID, requested[0].UserID)

			transitions := 0
			for i, idx := range order {
				out, err := f.decide(approvers[idx], res.Expense.ID, models.ApprovalStatusApproved)
				require.NoError(t, err)
				require.True(t, out.Updated)
				if out.NewStatus != nil {
					transitions++
					require.Equal(t, len(order)-1, i, "closed before the last approval")
					require.Equal(t, models.ExpenseStatusApproved, *out.NewStatus)
				}
			}
			require.Equal(t, 1, transitions)
			require.Equal(t, models.ExpenseStatusApproved, f.status(t, res.Expense.ID))
			require.Len(t, notificationsOfType(f.store, models.NotificationExpenseApproved), 1)
		})
	}
}

func TestSequential_NotifiesNextStep(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ApprovalRule{
		RuleType:  models.RuleTypeSequential,
		MinAmount: decimal.Zero,
		Steps: []models.ApprovalRuleStep{
			{StepOrder: 1, ApproverRole: models.ApproverRoleManager, IsRequired: true},
			{StepOrder: 2, ApproverRole: models.ApproverRoleAdmin, IsRequired: true},
		},
	})
	res := f.submit(t, "50")

	_, err := f.decide(f.manager.ID, res.Expense.ID, models.ApprovalStatusApproved)
	require.NoError(t, err)

	requested := notificationsOfType(f.store, models.NotificationApprovalRequested)
	require.Len(t, requested, 2)
	require.Equal(t, f.admin.ID, requested[1].UserID)
}

func TestSequential_SkipsUnresolvableSteps(t *testing.T) {
	f := newFixture(t)
	orphan := f.addUser(t, models.RoleEmployee) // no manager
	f.addRule(t, models.ApprovalRule{
		RuleType:  models.RuleTypeSequential,
		MinAmount: decimal.Zero,
		Steps: []models.ApprovalRuleStep{
			{StepOrder: 1, ApproverRole: models.ApproverRoleManager, IsRequired: true},
			{StepOrder: 2, ApproverRole: models.ApproverRoleAdmin, IsRequired: true},
		},
	})

	res, err := f.engine.SubmitExpense(context.Background(), approval.SubmitInput{
		EmployeeID: orphan.ID, Amount: decimal.NewFromInt(10), Currency: "SGD", Description: "Parking",
	})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	require.Equal(t, f.admin.ID, res.Entries[0].ApproverID)
	require.Equal(t, 2, res.Entries[0].StepOrder)

	out, err := f.decide(f.admin.ID, res.Expense.ID, models.ApprovalStatusApproved)
	require.NoError(t, err)
	require.NotNil(t, out.NewStatus)
	require.Equal(t, models.ExpenseStatusApproved, *out.NewStatus)
}

func TestPercentage_SixtyOfFiveClosesOnThird(t *testing.T) {
	f := newFixture(t)
	extra := []models.User{f.addUser(t, models.RoleManager), f.addUser(t, models.RoleManager), f.addUser(t, models.RoleAdmin)}
	f.addUser(t, models.RoleEmployee) // not in the pool
	f.addRule(t, models.ApprovalRule{RuleType: models.RuleTypePercentage, MinAmount: decimal.Zero, PercentageRequired: pct(60)})

	res := f.submit(t, "300")
	require.Len(t, res.Entries, 5)
	for _, e := range res.Entries {
		require.Equal(t, 1, e.StepOrder)
		require.NotEqual(t, f.employee.ID, e.ApproverID)
	}
	require.Len(t, notificationsOfType(f.store, models.NotificationApprovalRequested), 5)

	approvers := []int64{extra[2].ID, f.manager.ID, extra[0].ID, f.admin.ID}
	for i, approverID := range approvers[:3] {
		out, err := f.decide(approverID, res.Expense.ID, models.ApprovalStatusApproved)
		require.NoError(t, err)
		if i < 2 {
			require.Nil(t, out.NewStatus, "closed after %d approvals", i+1)
			require.Equal(t, models.ExpenseStatusPending, f.status(t, res.Expense.ID))
			continue
		}
		require.NotNil(t, out.NewStatus)
		require.Equal(t, models.ExpenseStatusApproved, *out.NewStatus)
	}

	// A fourth approver arrives after the expense closed.
	_, err := f.decide(approvers[3], res.Expense.ID, models.ApprovalStatusApproved)
	require.ErrorIs(t, err, approval.ErrNotAuthorized)
	require.Len(t, notificationsOfType(f.store, models.NotificationExpenseApproved), 1)
}

func TestPercentage_NoApproversIsConfigurationError(t *testing.T) {
	store := memstore.New()
	company := store.AddCompany(models.Company{Name: "Solo"})
	emp := store.AddUser(models.User{CompanyID: company.ID, Role: models.RoleEmployee, IsActive: true})
	engine := approval.NewEngine(store)
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx approval.Tx) error {
		return tx.CreateRule(ctx, &models.ApprovalRule{
			CompanyID: company.ID, Name: "p", RuleType: models.RuleTypePercentage,
			MinAmount: decimal.Zero, PercentageRequired: pct(50), IsActive: true,
		})
	})
	require.NoError(t, err)

	_, err = engine.SubmitExpense(context.Background(), approval.SubmitInput{
		EmployeeID: emp.ID, Amount: decimal.NewFromInt(1), Currency: "SGD", Description: "x",
	})
	require.ErrorIs(t, err, approval.ErrConfiguration)
}

func TestRejection_VetoesAndBlocksFurtherDecisions(t *testing.T) {
	ruleTypes := map[string]func(f *fixture) models.ApprovalRule{
		"sequential": func(f *fixture) models.ApprovalRule {
			return models.ApprovalRule{RuleType: models.RuleTypeSequential, MinAmount: decimal.Zero, Steps: []models.ApprovalRuleStep{
				{StepOrder: 1, ApproverRole: models.ApproverRoleManager, IsRequired: true},
				{StepOrder: 2, ApproverRole: models.ApproverRoleAdmin, IsRequired: true},
			}}
		},
		"percentage": func(f *fixture) models.ApprovalRule {
			return models.ApprovalRule{RuleType: models.RuleTypePercentage, MinAmount: decimal.Zero, PercentageRequired: pct(50)}
		},
		"hybrid": func(f *fixture) models.ApprovalRule {
			return models.ApprovalRule{RuleType: models.RuleTypeHybrid, MinAmount: decimal.Zero, PercentageRequired: pct(100), SpecificApproverID: &f.admin.ID}
		},
	}

	for name, build := range ruleTypes {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.addRule(t, build(f))
			res := f.submit(t, "40")

			out, err := f.decide(f.manager.ID, res.Expense.ID, models.ApprovalStatusRejected)
			require.NoError(t, err)
			require.NotNil(t, out.NewStatus)
			require.Equal(t, models.ExpenseStatusRejected, *out.NewStatus)

			_, err = f.decide(f.admin.ID, res.Expense.ID, models.ApprovalStatusApproved)
			require.ErrorIs(t, err, approval.ErrNotAuthorized)
			require.Equal(t, models.ExpenseStatusRejected, f.status(t, res.Expense.ID))
			require.Len(t, notificationsOfType(f.store, models.NotificationExpenseRejected), 1)
		})
	}
}

func TestRecordDecision_TwiceIsNotAuthorized(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ApprovalRule{RuleType: models.RuleTypePercentage, MinAmount: decimal.Zero, PercentageRequired: pct(100)})
	res := f.submit(t, "40")

	_, err := f.decide(f.manager.ID, res.Expense.ID, models.ApprovalStatusApproved)
	require.NoError(t, err)
	before := f.status(t, res.Expense.ID)

	_, err = f.decide(f.manager.ID, res.Expense.ID, models.ApprovalStatusApproved)
	require.ErrorIs(t, err, approval.ErrNotAuthorized)
	var naErr *approval.NotAuthorizedError
	require.ErrorAs(t, err, &naErr)
	require.Equal(t, f.manager.ID, naErr.ApproverID)
	require.Equal(t, before, f.status(t, res.Expense.ID))
}

func TestRecordDecision_Errors(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ApprovalRule{RuleType: models.RuleTypeSpecificApprover, MinAmount: decimal.Zero, SpecificApproverID: &f.admin.ID})
	res := f.submit(t, "40")

	t.Run("wrong approver", func(t *testing.T) {
		_, err := f.decide(f.manager.ID, res.Expense.ID, models.ApprovalStatusApproved)
		require.ErrorIs(t, err, approval.ErrNotAuthorized)
	})

	t.Run("unknown expense", func(t *testing.T) {
		_, err := f.decide(f.admin.ID, 424242, models.ApprovalStatusApproved)
		require.ErrorIs(t, err, approval.ErrNotFound)
	})

	t.Run("invalid action", func(t *testing.T) {
		_, err := f.decide(f.admin.ID, res.Expense.ID, models.ApprovalStatusPending)
		require.ErrorIs(t, err, approval.ErrInvalidInput)
	})

	t.Run("decision is stamped", func(t *testing.T) {
		out, err := f.decide(f.admin.ID, res.Expense.ID, models.ApprovalStatusApproved)
		require.NoError(t, err)
		require.Equal(t, "ok", out.Entry.Comments)
		require.NotNil(t, out.Entry.DecidedAt)
		require.True(t, out.Entry.DecidedAt.Equal(fixedNow))
		require.Equal(t, models.ExpenseStatusApproved, *out.NewStatus)
	})
}

func TestHybrid_SpecificApproverShortcut(t *testing.T) {
	f := newFixture(t)
	// Pool: admin, manager and two more managers. The specific approver is outside it.
	f.addUser(t, models.RoleManager)
	f.addUser(t, models.RoleManager)
	cfo := f.addUser(t, models.RoleEmployee)
	f.addRule(t, models.ApprovalRule{
		RuleType: models.RuleTypeHybrid, MinAmount: decimal.Zero, PercentageRequired: pct(50), SpecificApproverID: &cfo.ID,
	})

	res := f.submit(t, "900")
	require.Len(t, res.Entries, 5)

	out, err := f.decide(cfo.ID, res.Expense.ID, models.ApprovalStatusApproved)
	require.NoError(t, err)
	require.NotNil(t, out.NewStatus)
	require.Equal(t, models.ExpenseStatusApproved, *out.NewStatus)

	pendingLeft := 0
	for _, e := range f.store.Entries(res.Expense.ID) {
		if e.Status == models.ApprovalStatusPending {
			pendingLeft++
		}
	}
	require.Equal(t, 4, pendingLeft)
}

func TestHybrid_DeduplicatesSpecificApprover(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ApprovalRule{
		RuleType: models.RuleTypeHybrid, MinAmount: decimal.Zero, PercentageRequired: pct(100), SpecificApproverID: &f.manager.ID,
	})

	res := f.submit(t, "10")
	require.Len(t, res.Entries, 2)

	// The manager approving closes it through the specific path.
	out, err := f.decide(f.manager.ID, res.Expense.ID, models.ApprovalStatusApproved)
	require.NoError(t, err)
	require.NotNil(t, out.NewStatus)
}

func TestOverride_ForceClosesSequentialWithNoDecisions(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ApprovalRule{
		RuleType:  models.RuleTypeSequential,
		MinAmount: decimal.Zero,
		Steps: []models.ApprovalRuleStep{
			{StepOrder: 1, ApproverRole: models.ApproverRoleManager, IsRequired: true},
			{StepOrder: 2, ApproverRole: models.ApproverRoleAdmin, IsRequired: true},
		},
	})
	res := f.submit(t, "60")

	out, err := f.engine.OverrideExpense(context.Background(), approval.OverrideInput{
		ExpenseID: res.Expense.ID, AdminID: f.admin.ID, Action: models.ApprovalStatusRejected, Comments: "duplicate claim",
	})
	require.NoError(t, err)
	require.Equal(t, models.ExpenseStatusRejected, out.Status)
	require.Equal(t, 2, out.ClosedEntries)
	require.Equal(t, "evt-1", out.EventID)
	require.Equal(t, models.ExpenseStatusRejected, f.status(t, res.Expense.ID))

	for _, e := range f.store.Entries(res.Expense.ID) {
		require.Equal(t, models.ApprovalStatusRejected, e.Status)
		require.Equal(t, fmt.Sprintf("[admin override by %d] duplicate claim", f.admin.ID), e.Comments)
	}

	audits := f.store.AuditLogs()
	require.Len(t, audits, 1)
	require.Equal(t, models.AuditActionAdminOverride, audits[0].Action)
	require.Equal(t, f.admin.ID, audits[0].UserID)
	require.Equal(t, res.Expense.ID, audits[0].ExpenseID)
	require.Equal(t, "pending", audits[0].Payload["previous_status"])
	require.Len(t, notificationsOfType(f.store, models.NotificationExpenseOverridden), 1)

	t.Run("terminal expense conflicts", func(t *testing.T) {
		_, err := f.engine.OverrideExpense(context.Background(), approval.OverrideInput{
			ExpenseID: res.Expense.ID, AdminID: f.admin.ID, Action: models.ApprovalStatusApproved,
		})
		require.ErrorIs(t, err, approval.ErrConflict)
		require.Len(t, f.store.AuditLogs(), 1)
	})
}

func TestOverride_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ApprovalRule{RuleType: models.RuleTypeSpecificApprover, MinAmount: decimal.Zero, SpecificApproverID: &f.manager.ID})
	res := f.submit(t, "60")

	_, err := f.engine.OverrideExpense(context.Background(), approval.OverrideInput{
		ExpenseID: res.Expense.ID, AdminID: f.manager.ID, Action: models.ApprovalStatusApproved,
	})
	require.ErrorIs(t, err, approval.ErrForbidden)
	require.Equal(t, models.ExpenseStatusPending, f.status(t, res.Expense.ID))
	require.Empty(t, f.store.AuditLogs())

	t.Run("admin of another company", func(t *testing.T) {
		other := f.store.AddCompany(models.Company{Name: "Other"})
		outsider := f.store.AddUser(models.User{CompanyID: other.ID, Role: models.RoleAdmin, IsActive: true})
		_, err := f.engine.OverrideExpense(context.Background(), approval.OverrideInput{
			ExpenseID: res.Expense.ID, AdminID: outsider.ID, Action: models.ApprovalStatusApproved,
		})
		require.ErrorIs(t, err, approval.ErrForbidden)
	})
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	f.addRule(t, models.ApprovalRule{RuleType: models.RuleTypePercentage, MinAmount: decimal.NewFromInt(100), PercentageRequired: pct(50)})
	big := f.submit(t, "150")
	small := f.submit(t, "20")
	ctx := context.Background()

	pending, err := f.engine.PendingForApprover(ctx, f.manager.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, big.Expense.ID, pending[0].Expense.ID)

	detail, err := f.engine.ExpenseWithLedger(ctx, &f.employee, big.Expense.ID)
	require.NoError(t, err)
	require.Len(t, detail.Entries, 2)

	colleague := f.addUser(t, models.RoleEmployee)
	_, err = f.engine.ExpenseWithLedger(ctx, &colleague, big.Expense.ID)
	require.ErrorIs(t, err, approval.ErrNotFound)

	approvedOnly, err := f.engine.ListExpenses(ctx, &f.admin, approval.ExpenseFilter{Statuses: []models.ExpenseStatus{models.ExpenseStatusApproved}})
	require.NoError(t, err)
	require.Len(t, approvedOnly, 1)
	require.Equal(t, small.Expense.ID, approvedOnly[0].ID)

	own, err := f.engine.ListExpenses(ctx, &colleague, approval.ExpenseFilter{})
	require.NoError(t, err)
	require.Empty(t, own)

	counts, err := f.engine.StatusCounts(ctx, &f.manager)
	require.NoError(t, err)
	require.Equal(t, 1, counts[models.ExpenseStatusPending])
	require.Equal(t, 1, counts[models.ExpenseStatusApproved])

	summaries, err := f.engine.ApproversWithPending(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, f.admin.ID, summaries[0].Approver.ID)
	require.Equal(t, 1, summaries[0].Count)
}
