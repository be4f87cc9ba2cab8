package bot

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// ParsedExpense represents a parsed /submit command.
type ParsedExpense struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Category    string
}

// amountRegex matches amounts like "5", "5.50", "5,50".
var amountRegex = regexp.MustCompile(`^(\d+(?:[.,]\d{1,2})?)(?:\s|$)`)

// extractCommandArgs strips the /command prefix (and optional @botname suffix)
// from a message and returns the remaining trimmed arguments.
func extractCommandArgs(text, command string) string {
	args := strings.TrimSpace(strings.TrimPrefix(text, command))
	if strings.HasPrefix(args, "@") {
		if spaceIdx := strings.Index(args, " "); spaceIdx != -1 {
			args = strings.TrimSpace(args[spaceIdx:])
		} else {
			args = ""
		}
	}
	return args
}

// ParseSubmitInput parses "<amount> [currency] <description> [#category]",
// for example "54.60 SGD Client dinner #Meals". Currency defaults to empty,
// leaving the choice to the caller. Returns nil if input is not an expense.
func ParseSubmitInput(input string) *ParsedExpense {
	input = strings.TrimSpace(input)
	m := amountRegex.FindStringSubmatch(input)
	if m == nil {
		return nil
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "."))
	if err != nil || !amount.IsPositive() {
		return nil
	}
	parsed := &ParsedExpense{Amount: amount}

	rest := strings.TrimSpace(input[len(m[1]):])
	code, tail, _ := strings.Cut(rest, " ")
	if upper := strings.ToUpper(code); upper != "" {
		if _, known := models.SupportedCurrencies[upper]; known {
			parsed.Currency = upper
			rest = strings.TrimSpace(tail)
		}
	}

	if idx := strings.LastIndex(rest, "#"); idx != -1 {
		parsed.Category = strings.TrimSpace(rest[idx+1:])
		rest = strings.TrimSpace(rest[:idx])
	}
	parsed.Description = rest

	if parsed.Description == "" {
		return nil
	}
	return parsed
}

// ParseSubmitCommand parses the /submit command.
func ParseSubmitCommand(text string) *ParsedExpense {
	return ParseSubmitInput(extractCommandArgs(text, "/submit"))
}
