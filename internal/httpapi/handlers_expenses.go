package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

func (s *Server) handleSubmitExpense(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.input(user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.SubmitExpense(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, expenseDetailJSON{
		Expense:   toExpenseJSON(res.Expense),
		Approvals: toEntryList(res.Entries),
	})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseExpenseFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	expenses, err := s.engine.ListExpenses(r.Context(), currentUser(r.Context()), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": toExpenseList(expenses)})
}

// parseExpenseFilter reads listing filters from the query string. status may
// repeat; dates are YYYY-MM-DD and to is inclusive of the whole day.
func parseExpenseFilter(r *http.Request) (approval.ExpenseFilter, error) {
	q := r.URL.Query()
	var f approval.ExpenseFilter

	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			st := models.ExpenseStatus(strings.ToLower(strings.TrimSpace(part)))
			if st == "" {
				continue
			}
			if !st.Valid() {
				return f, approval.Invalid("unknown status %q", part)
			}
			f.Statuses = append(f.Statuses, st)
		}
	}

	if raw := q.Get("employee_id"); raw != "" {
		id, err := parseIDParam(raw, "employee_id")
		if err != nil {
			return f, err
		}
		f.EmployeeID = &id
	}

	if raw := q.Get("from"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return f, approval.Invalid("from must be YYYY-MM-DD")
		}
		f.From = &d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return f, approval.Invalid("to must be YYYY-MM-DD")
		}
		end := d.AddDate(0, 0, 1)
		f.To = &end
	}
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return f, approval.Invalid("to must not be before from")
	}

	for key, dst := range map[string]**decimal.Decimal{"min_amount": &f.MinAmount, "max_amount": &f.MaxAmount} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil || amount.IsNegative() {
			return f, approval.Invalid("%s must be a non-negative number", key)
		}
		*dst = &amount
	}

	var err error
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	if f.Limit < 0 || f.Offset < 0 {
		return f, approval.Invalid("limit and offset must not be negative")
	}
	return f, nil
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	detail, err := s.engine.ExpenseWithLedger(r.Context(), currentUser(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenseDetailJSON{
		Expense:   toExpenseJSON(detail.Expense),
		Approvals: toEntryList(detail.Entries),
	})
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.RecordDecision(r.Context(), approval.DecisionInput{
		ExpenseID:  id,
		ApproverID: currentUser(r.Context()).ID,
		Action:     decisionStatus(req.Action),
		Comments:   req.Comments,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := decisionJSON{Updated: res.Updated, Approval: toEntryJSON(res.Entry)}
	if res.NewStatus != nil {
		st := string(*res.NewStatus)
		out.NewStatus = &st
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.OverrideExpense(r.Context(), approval.OverrideInput{
		ExpenseID: id,
		AdminID:   currentUser(r.Context()).ID,
		Action:    decisionStatus(req.Action),
		Comments:  req.Comments,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overrideJSON{
		Status:        string(res.Status),
		ClosedEntries: res.ClosedEntries,
		EventID:       res.EventID,
	})
}

// decisionStatus accepts both verb and past-tense spellings. Anything else is
// passed through for the engine to reject.
func decisionStatus(action string) models.ApprovalStatus {
	switch a := strings.ToLower(strings.TrimSpace(action)); a {
	case "approve":
		return models.ApprovalStatusApproved
	case "reject":
		return models.ApprovalStatusRejected
	default:
		return models.ApprovalStatus(a)
	}
}

func (s *Server) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	pending, err := s.engine.PendingForApprover(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]pendingJSON, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingJSON{Approval: toEntryJSON(p.Entry), Expense: toExpenseJSON(p.Expense)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": out})
}

func (s *Server) handleStatusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.engine.StatusCounts(r.Context(), currentUser(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make(map[string]int, len(models.ExpenseStatuses))
	for _, st := range models.ExpenseStatuses {
		out[string(st)] = counts[st]
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": out})
}
