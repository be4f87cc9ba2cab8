package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// tx is valid only while its Store's mutex is held by RunInTx.
type tx struct {
	s *Store
}

var _ approval.Tx = (*tx)(nil)

func (t *tx) st() *state { return t.s.st }

func (t *tx) ListActiveRules(_ context.Context, companyID int64) ([]models.ApprovalRule, error) {
	var out []models.ApprovalRule
	for _, r := range t.sortedRules(companyID) {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *tx) ListRules(_ context.Context, companyID int64) ([]models.ApprovalRule, error) {
	return t.sortedRules(companyID), nil
}

func (t *tx) sortedRules(companyID int64) []models.ApprovalRule {
	var out []models.ApprovalRule
	for _, r := range t.st().rules {
		if r.CompanyID == companyID {
			r.Steps = slices.Clone(r.Steps)
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SequenceOrder != out[j].SequenceOrder {
			return out[i].SequenceOrder < out[j].SequenceOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (t *tx) GetRule(_ context.Context, id int64) (*models.ApprovalRule, error) {
	r, ok := t.st().rules[id]
	if !ok {
		return nil, approval.NotFound("approval rule", id)
	}
	r.Steps = slices.Clone(r.Steps)
	return &r, nil
}

func (t *tx) CreateRule(_ context.Context, rule *models.ApprovalRule) error {
	st := t.st()
	rule.ID = st.id()
	now := t.s.now()
	rule.CreatedAt, rule.UpdatedAt = now, now
	t.assignSteps(rule)
	st.rules[rule.ID] = *rule
	return nil
}

func (t *tx) UpdateRule(_ context.Context, rule *models.ApprovalRule) error {
	st := t.st()
	existing, ok := st.rules[rule.ID]
	if !ok {
		return approval.NotFound("approval rule", rule.ID)
	}
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = t.s.now()
	t.assignSteps(rule)
	st.rules[rule.ID] = *rule
	return nil
}

func (t *tx) assignSteps(rule *models.ApprovalRule) {
	for i := range rule.Steps {
		rule.Steps[i].ID = t.st().id()
		rule.Steps[i].RuleID = rule.ID
	}
	rule.Steps = slices.Clone(rule.Steps)
}

func (t *tx) DeleteRule(_ context.Context, id int64) error {
	st := t.st()
	if _, ok := st.rules[id]; !ok {
		return approval.NotFound("approval rule", id)
	}
	delete(st.rules, id)
	for eid, e := range st.expenses {
		if e.ApprovalRuleID != nil && *e.ApprovalRuleID == id {
			e.ApprovalRuleID = nil
			st.expenses[eid] = e
		}
	}
	return nil
}

func (t *tx) CreateExpense(_ context.Context, expense *models.Expense) error {
	st := t.st()
	if _, ok := st.users[expense.EmployeeID]; !ok {
		return fmt.Errorf("employee %d does not exist", expense.EmployeeID)
	}
	expense.ID = st.id()
	now := t.s.now()
	expense.CreatedAt, expense.UpdatedAt = now, now
	st.expenses[expense.ID] = *expense
	return nil
}

func (t *tx) GetExpense(_ context.Context, id int64) (*models.Expense, error) {
	e, ok := t.st().expenses[id]
	if !ok {
		return nil, approval.NotFound("expense", id)
	}
	return &e, nil
}

// LockExpense is GetExpense: the store mutex already serialises units of work.
func (t *tx) LockExpense(ctx context.Context, id int64) (*models.Expense, error) {
	return t.GetExpense(ctx, id)
}

func (t *tx) TransitionExpense(_ context.Context, id int64, to models.ExpenseStatus) (bool, error) {
	st := t.st()
	e, ok := st.expenses[id]
	if !ok {
		return false, approval.NotFound("expense", id)
	}
	if e.Status != models.ExpenseStatusPending {
		return false, nil
	}
	e.Status = to
	e.UpdatedAt = t.s.now()
	st.expenses[id] = e
	return true, nil
}

func (t *tx) ListExpenses(_ context.Context, f approval.ExpenseFilter) ([]models.Expense, error) {
	f = f.Normalize()
	var out []models.Expense
	for _, e := range t.st().expenses {
		if matchesFilter(e, f) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpenseDate.Equal(out[j].ExpenseDate) {
			return out[i].ExpenseDate.After(out[j].ExpenseDate)
		}
		return out[i].ID > out[j].ID
	})
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matchesFilter(e models.Expense, f approval.ExpenseFilter) bool {
	if e.CompanyID != f.CompanyID {
		return false
	}
	if f.EmployeeID != nil && e.EmployeeID != *f.EmployeeID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, e.Status) {
		return false
	}
	if f.From != nil && e.ExpenseDate.Before(*f.From) {
		return false
	}
	if f.To != nil && !e.ExpenseDate.Before(*f.To) {
		return false
	}
	if f.MinAmount != nil && e.ConvertedAmount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && e.ConvertedAmount.GreaterThan(*f.MaxAmount) {
		return false
	}
	return true
}

func (t *tx) CountExpensesByStatus(_ context.Context, companyID int64) (map[models.ExpenseStatus]int, error) {
	counts := make(map[models.ExpenseStatus]int)
	for _, e := range t.st().expenses {
		if e.CompanyID == companyID {
			counts[e.Status]++
		}
	}
	return counts, nil
}

func (t *tx) CreateEntries(_ context.Context, entries []models.ApprovalEntry) error {
	st := t.st()
	for i := range entries {
		for _, existing := range st.entries {
			if existing.ExpenseID == entries[i].ExpenseID && existing.ApproverID == entries[i].ApproverID {
				return fmt.Errorf("duplicate approval for expense %d approver %d", entries[i].ExpenseID, entries[i].ApproverID)
			}
		}
		entries[i].ID = st.id()
		entries[i].CreatedAt = t.s.now()
		st.entries[entries[i].ID] = entries[i]
	}
	return nil
}

func (t *tx) PendingEntry(_ context.Context, expenseID, approverID int64) (*models.ApprovalEntry, error) {
	for _, e := range t.st().entries {
		if e.ExpenseID == expenseID && e.ApproverID == approverID && e.Status == models.ApprovalStatusPending {
			return &e, nil
		}
	}
	return nil, nil
}

func (t *tx) DecideEntry(_ context.Context, entryID int64, status models.ApprovalStatus, comments string, decidedAt time.Time) (bool, error) {
	st := t.st()
	e, ok := st.entries[entryID]
	if !ok || e.Status != models.ApprovalStatusPending {
		return false, nil
	}
	e.Status = status
	e.Comments = comments
	e.DecidedAt = &decidedAt
	st.entries[entryID] = e
	return true, nil
}

func (t *tx) ListEntries(_ context.Context, expenseID int64) ([]models.ApprovalEntry, error) {
	return t.st().entriesOf(expenseID), nil
}

func (t *tx) ForceClosePending(_ context.Context, expenseID int64, status models.ApprovalStatus, comments string, decidedAt time.Time) (int, error) {
	st := t.st()
	closed := 0
	for id, e := range st.entries {
		if e.ExpenseID != expenseID || e.Status != models.ApprovalStatusPending {
			continue
		}
		e.Status = status
		e.Comments = comments
		e.DecidedAt = &decidedAt
		st.entries[id] = e
		closed++
	}
	return closed, nil
}

func (t *tx) ListPendingForApprover(_ context.Context, approverID int64) ([]approval.PendingApproval, error) {
	st := t.st()
	var out []approval.PendingApproval
	for _, e := range st.entries {
		if e.ApproverID != approverID || e.Status != models.ApprovalStatusPending {
			continue
		}
		exp, ok := st.expenses[e.ExpenseID]
		if !ok || exp.Status.IsTerminal() {
			continue
		}
		out = append(out, approval.PendingApproval{Entry: e, Expense: exp})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Expense.CreatedAt.Equal(out[j].Expense.CreatedAt) {
			return out[i].Expense.CreatedAt.Before(out[j].Expense.CreatedAt)
		}
		return out[i].Entry.ID < out[j].Entry.ID
	})
	return out, nil
}

func (t *tx) ApproversWithPending(ctx context.Context) ([]approval.PendingSummary, error) {
	st := t.st()
	counts := make(map[int64]int)
	for _, e := range st.entries {
		if e.Status != models.ApprovalStatusPending {
			continue
		}
		if exp, ok := st.expenses[e.ExpenseID]; ok && !exp.Status.IsTerminal() {
			counts[e.ApproverID]++
		}
	}
	out := make([]approval.PendingSummary, 0, len(counts))
	for id, n := range counts {
		u, ok := st.users[id]
		if !ok || !u.IsActive {
			continue
		}
		out = append(out, approval.PendingSummary{Approver: u, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Approver.ID < out[j].Approver.ID })
	return out, nil
}

func (t *tx) GetCompany(_ context.Context, id int64) (*models.Company, error) {
	c, ok := t.st().companies[id]
	if !ok {
		return nil, approval.NotFound("company", id)
	}
	return &c, nil
}

func (t *tx) GetUser(_ context.Context, id int64) (*models.User, error) {
	u, ok := t.st().users[id]
	if !ok {
		return nil, approval.NotFound("user", id)
	}
	return &u, nil
}

func (t *tx) GetUserByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	for _, u := range t.st().users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			return &u, nil
		}
	}
	return nil, approval.NotFound("telegram user", telegramID)
}

func (t *tx) ActiveApprovers(_ context.Context, companyID int64) ([]models.User, error) {
	var out []models.User
	for _, u := range t.st().users {
		if u.CompanyID == companyID && u.IsApprover() {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *tx) LowestActiveAdmin(_ context.Context, companyID int64) (*models.User, error) {
	var best *models.User
	for _, u := range t.st().users {
		if u.CompanyID != companyID || u.Role != models.RoleAdmin || !u.IsActive {
			continue
		}
		if best == nil || u.ID < best.ID {
			found := u
			best = &found
		}
	}
	return best, nil
}

func (t *tx) InsertNotification(_ context.Context, n *models.Notification) error {
	st := t.st()
	n.ID = st.id()
	n.CreatedAt = t.s.now()
	st.notifications = append(st.notifications, *n)
	return nil
}

func (t *tx) InsertAudit(_ context.Context, entry *models.AuditLog) error {
	st := t.st()
	for _, a := range st.audits {
		if a.EventID == entry.EventID {
			return fmt.Errorf("duplicate audit event %s", entry.EventID)
		}
	}
	entry.ID = st.id()
	entry.CreatedAt = t.s.now()
	st.audits = append(st.audits, *entry)
	return nil
}
