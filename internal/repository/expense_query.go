package repository

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// ExpenseQuery builds a parameterised expense listing. Conditions are fixed SQL
// fragments; every value travels as a bind argument.
type ExpenseQuery struct {
	conds  []string
	args   []any
	limit  int
	offset int
}

// NewExpenseQuery starts a query scoped to one company.
func NewExpenseQuery(companyID int64) *ExpenseQuery {
	q := &ExpenseQuery{limit: approval.DefaultListLimit}
	q.where("company_id = %s", companyID)
	return q
}

// ExpenseQueryFromFilter translates an engine filter into a query.
func ExpenseQueryFromFilter(f approval.ExpenseFilter) *ExpenseQuery {
	f = f.Normalize()
	q := NewExpenseQuery(f.CompanyID)
	if f.EmployeeID != nil {
		q.Employee(*f.EmployeeID)
	}
	if len(f.Statuses) > 0 {
		q.Statuses(f.Statuses...)
	}
	if f.From != nil {
		q.From(*f.From)
	}
	if f.To != nil {
		q.To(*f.To)
	}
	if f.MinAmount != nil {
		q.MinAmount(*f.MinAmount)
	}
	if f.MaxAmount != nil {
		q.MaxAmount(*f.MaxAmount)
	}
	return q.Page(f.Limit, f.Offset)
}

// where appends cond with its single %s replaced by the next placeholder.
func (q *ExpenseQuery) where(cond string, arg any) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, strings.Replace(cond, "%s", "$"+strconv.Itoa(len(q.args)), 1))
}

// Employee restricts to one submitter.
func (q *ExpenseQuery) Employee(id int64) *ExpenseQuery {
	q.where("employee_id = %s", id)
	return q
}

// Statuses restricts to any of the given statuses.
func (q *ExpenseQuery) Statuses(statuses ...models.ExpenseStatus) *ExpenseQuery {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	q.where("status = ANY(%s)", values)
	return q
}

// From keeps expenses dated on or after t.
func (q *ExpenseQuery) From(t time.Time) *ExpenseQuery {
	q.where("expense_date >= %s", t)
	return q
}

// To keeps expenses dated before t.
func (q *ExpenseQuery) To(t time.Time) *ExpenseQuery {
	q.where("expense_date < %s", t)
	return q
}

// MinAmount keeps expenses whose converted amount is at least d.
func (q *ExpenseQuery) MinAmount(d decimal.Decimal) *ExpenseQuery {
	q.where("converted_amount >= %s", d)
	return q
}

// MaxAmount keeps expenses whose converted amount is at most d.
func (q *ExpenseQuery) MaxAmount(d decimal.Decimal) *ExpenseQuery {
	q.where("converted_amount <= %s", d)
	return q
}

// Page sets limit and offset.
func (q *ExpenseQuery) Page(limit, offset int) *ExpenseQuery {
	q.limit, q.offset = limit, offset
	return q
}

// SQL renders the statement and its arguments.
func (q *ExpenseQuery) SQL() (string, []any) {
	args := append([]any(nil), q.args...)
	args = append(args, q.limit, q.offset)

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(expenseColumns)
	b.WriteString(" FROM expenses WHERE ")
	b.WriteString(strings.Join(q.conds, " AND "))
	b.WriteString(" ORDER BY expense_date DESC, id DESC")
	b.WriteString(" LIMIT $" + strconv.Itoa(len(args)-1))
	b.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	return b.String(), args
}
