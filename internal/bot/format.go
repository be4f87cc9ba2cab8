package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// escapeHTML escapes text for Telegram's HTML parse mode.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func formatMoney(amount decimal.Decimal, currency string) string {
	return amount.StringFixed(2) + " " + currency
}

func statusIcon(status models.ExpenseStatus) string {
	switch status {
	case models.ExpenseStatusApproved:
		return "✅"
	case models.ExpenseStatusRejected:
		return "❌"
	case models.ExpenseStatusProcessing:
		return "⚙️"
	default:
		return "⏳"
	}
}

func entryIcon(status models.ApprovalStatus) string {
	switch status {
	case models.ApprovalStatusApproved:
		return "✅"
	case models.ApprovalStatusRejected:
		return "❌"
	default:
		return "⏳"
	}
}

// formatExpenseLine renders an expense on one line.
func formatExpenseLine(e models.Expense) string {
	return fmt.Sprintf("%s <b>#%d</b> %s · %s · %s",
		statusIcon(e.Status),
		e.ID,
		escapeHTML(formatMoney(e.Amount, e.Currency)),
		escapeHTML(e.Description),
		e.ExpenseDate.Format(time.DateOnly),
	)
}

// formatExpenseDetail renders an expense and its decision trail.
func formatExpenseDetail(d *approvalDetail) string {
	e := d.Expense
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>Expense #%d</b> (%s)\n\n", statusIcon(e.Status), e.ID, e.Status)
	fmt.Fprintf(&sb, "Amount: %s\n", escapeHTML(formatMoney(e.Amount, e.Currency)))
	if !e.ConvertedAmount.Equal(e.Amount) {
		fmt.Fprintf(&sb, "Converted: %s\n", e.ConvertedAmount.StringFixed(2))
	}
	fmt.Fprintf(&sb, "Description: %s\n", escapeHTML(e.Description))
	if e.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", escapeHTML(e.Category))
	}
	fmt.Fprintf(&sb, "Date: %s\n", e.ExpenseDate.Format(time.DateOnly))

	if len(d.Entries) == 0 {
		return sb.String()
	}
	sb.WriteString("\n<b>Approvals</b>\n")
	for _, entry := range d.Entries {
		name := d.Names[entry.ApproverID]
		if name == "" {
			name = fmt.Sprintf("user %d", entry.ApproverID)
		}
		fmt.Fprintf(&sb, "%s %d. %s", entryIcon(entry.Status), entry.StepOrder, escapeHTML(name))
		if !entry.IsRequired {
			sb.WriteString(" (optional)")
		}
		if entry.Comments != "" {
			fmt.Fprintf(&sb, " · <i>%s</i>", escapeHTML(entry.Comments))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
