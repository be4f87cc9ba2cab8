package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/gemini"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

type expenseJSON struct {
	ID              int64           `json:"id"`
	CompanyID       int64           `json:"company_id"`
	EmployeeID      int64           `json:"employee_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	Description     string          `json:"description"`
	Category        string          `json:"category,omitempty"`
	ExpenseDate     string          `json:"expense_date"`
	ReceiptRef      string          `json:"receipt_ref,omitempty"`
	Status          string          `json:"status"`
	ApprovalRuleID  *int64          `json:"approval_rule_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toExpenseJSON(e models.Expense) expenseJSON {
	return expenseJSON{
		ID:              e.ID,
		CompanyID:       e.CompanyID,
		EmployeeID:      e.EmployeeID,
		Amount:          e.Amount,
		Currency:        e.Currency,
		ConvertedAmount: e.ConvertedAmount,
		Description:     e.Description,
		Category:        e.Category,
		ExpenseDate:     e.ExpenseDate.Format(time.DateOnly),
		ReceiptRef:      e.ReceiptRef,
		Status:          string(e.Status),
		ApprovalRuleID:  e.ApprovalRuleID,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toExpenseList(expenses []models.Expense) []expenseJSON {
	out := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseJSON(e))
	}
	return out
}

type entryJSON struct {
	ID         int64      `json:"id"`
	ExpenseID  int64      `json:"expense_id"`
	ApproverID int64      `json:"approver_id"`
	StepOrder  int        `json:"step_order"`
	IsRequired bool       `json:"is_required"`
	Status     string     `json:"status"`
	Comments   string     `json:"comments,omitempty"`
	DecidedAt  *time.Time `json:"decided_at"`
}

func toEntryJSON(e models.ApprovalEntry) entryJSON {
	return entryJSON{
		ID:         e.ID,
		ExpenseID:  e.ExpenseID,
		ApproverID: e.ApproverID,
		StepOrder:  e.StepOrder,
		IsRequired: e.IsRequired,
		Status:     string(e.Status),
		Comments:   e.Comments,
		DecidedAt:  e.DecidedAt,
	}
}

func toEntryList(entries []models.ApprovalEntry) []entryJSON {
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryJSON(e))
	}
	return out
}

type expenseDetailJSON struct {
	Expense   expenseJSON `json:"expense"`
	Approvals []entryJSON `json:"approvals"`
}

type submitRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ExpenseDate string          `json:"expense_date"`
	ReceiptRef  string          `json:"receipt_ref"`
}

func (req submitRequest) input(employeeID int64) (approval.SubmitInput, error) {
	in := approval.SubmitInput{
		EmployeeID:  employeeID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Category:    req.Category,
		ReceiptRef:  req.ReceiptRef,
	}
	if req.ExpenseDate != "" {
		d, err := time.Parse(time.DateOnly, req.ExpenseDate)
		if err != nil {
			return in, approval.Invalid("expense_date must be YYYY-MM-DD")
		}
		in.ExpenseDate = d
	}
	return in, nil
}

type decisionRequest struct {
	Action   string `json:"action"`
	Comments string `json:"comments"`
}

type decisionJSON struct {
	Updated   bool      `json:"updated"`
	NewStatus *string   `json:"new_status"`
	Approval  entryJSON `json:"approval"`
}

type overrideJSON struct {
	Status        string `json:"status"`
	ClosedEntries int    `json:"closed_entries"`
	EventID       string `json:"event_id"`
}

type pendingJSON struct {
	Approval entryJSON   `json:"approval"`
	Expense  expenseJSON `json:"expense"`
}

type stepJSON struct {
	StepOrder    int    `json:"step_order"`
	ApproverRole string `json:"approver_role"`
	ApproverID   *int64 `json:"approver_id,omitempty"`
	IsRequired   *bool  `json:"is_required,omitempty"`
}

type ruleJSON struct {
	ID                 int64            `json:"id"`
	Name               string           `json:"name"`
	RuleType           string           `json:"rule_type"`
	MinAmount          decimal.Decimal  `json:"min_amount"`
	MaxAmount          *decimal.Decimal `json:"max_amount"`
	PercentageRequired *int             `json:"percentage_required,omitempty"`
	SpecificApproverID *int64           `json:"specific_approver_id,omitempty"`
	SequenceOrder      int              `json:"sequence_order"`
	IsActive           *bool            `json:"is_active,omitempty"`
	Steps              []stepJSON       `json:"steps,omitempty"`
}

func toRuleJSON(r models.ApprovalRule) ruleJSON {
	active := r.IsActive
	out := ruleJSON{
		ID:                 r.ID,
		Name:               r.Name,
		RuleType:           string(r.RuleType),
		MinAmount:          r.MinAmount,
		MaxAmount:          r.MaxAmount,
		PercentageRequired: r.PercentageRequired,
		SpecificApproverID: r.SpecificApproverID,
		SequenceOrder:      r.SequenceOrder,
		IsActive:           &active,
	}
	for _, st := range r.Steps {
		required := st.IsRequired
		out.Steps = append(out.Steps, stepJSON{
			StepOrder:    st.StepOrder,
			ApproverRole: string(st.ApproverRole),
			ApproverID:   st.ApproverID,
			IsRequired:   &required,
		})
	}
	return out
}

// model converts a request body into a rule. Omitted is_active and
// is_required default to true.
func (req ruleJSON) model() models.ApprovalRule {
	rule := models.ApprovalRule{
		ID:                 req.ID,
		Name:               req.Name,
		RuleType:           models.RuleType(req.RuleType),
		MinAmount:          req.MinAmount,
		MaxAmount:          req.MaxAmount,
		PercentageRequired: req.PercentageRequired,
		SpecificApproverID: req.SpecificApproverID,
		SequenceOrder:      req.SequenceOrder,
		IsActive:           req.IsActive == nil || *req.IsActive,
	}
	for _, st := range req.Steps {
		rule.Steps = append(rule.Steps, models.ApprovalRuleStep{
			StepOrder:    st.StepOrder,
			ApproverRole: models.ApproverRole(st.ApproverRole),
			ApproverID:   st.ApproverID,
			IsRequired:   st.IsRequired == nil || *st.IsRequired,
		})
	}
	return rule
}

type receiptDraftJSON struct {
	Amount      *decimal.Decimal `json:"amount"`
	Currency    string           `json:"currency,omitempty"`
	Merchant    string           `json:"merchant,omitempty"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category,omitempty"`
	ExpenseDate string           `json:"expense_date,omitempty"`
	Confidence  float64          `json:"confidence"`
	Partial     bool             `json:"partial"`
}

func toReceiptDraftJSON(d *gemini.ReceiptDraft) receiptDraftJSON {
	out := receiptDraftJSON{
		Currency:    d.Currency,
		Merchant:    d.Merchant,
		Description: d.Description,
		Category:    d.Category,
		Confidence:  d.Confidence,
		Partial:     d.IsPartial(),
	}
	if d.HasAmount() {
		amount := d.Amount
		out.Amount = &amount
	}
	if !d.Date.IsZero() {
		out.ExpenseDate = d.Date.Format(time.DateOnly)
	}
	return out
}
