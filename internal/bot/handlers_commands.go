package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	appmodels "gitlab.com/yelinaung/expense-approvals/internal/models"
)

const (
	// pendingPageSize caps how many pending approvals /pending shows.
	pendingPageSize = 10
	// recentExpensesLimit caps how many expenses /expenses shows.
	recentExpensesLimit = 10
)

// formatGreeting returns a greeting suffix with the user's name.
func formatGreeting(name string) string {
	if name == "" {
		return ""
	}
	return ", " + escapeHTML(name)
}

// send is SendMessage in HTML mode, logging failures.
func (b *Bot) send(ctx context.Context, tg TelegramAPI, chatID int64, text string, markup models.ReplyMarkup) {
	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   models.ParseModeHTML,
		ReplyMarkup: markup,
	})
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to send message")
	}
}

// errorText turns an engine error into a user-facing message.
func (b *Bot) errorText(err error) string {
	switch {
	case errors.Is(err, approval.ErrInvalidInput), errors.Is(err, approval.ErrConfiguration):
		return "❌ " + escapeHTML(err.Error())
	case errors.Is(err, approval.ErrNotAuthorized):
		var nae *approval.NotAuthorizedError
		if errors.As(err, &nae) && nae.Reason != "" {
			return "⛔ You cannot decide this expense: " + escapeHTML(nae.Reason) + "."
		}
		return "⛔ You cannot decide this expense."
	case errors.Is(err, approval.ErrForbidden):
		return "⛔ You are not allowed to do that."
	case errors.Is(err, approval.ErrNotFound):
		return "❓ Not found."
	case errors.Is(err, approval.ErrConflict):
		return "⚠️ " + escapeHTML(err.Error())
	default:
		b.log.Error().Err(err).Msg("Command failed")
		return "❌ Something went wrong. Please try again."
	}
}

// handleStart handles the /start command.
func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleStartCore(ctx, tgBot, update)
}

// handleStartCore is the testable implementation of handleStart.
func (b *Bot) handleStartCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	user := userFrom(ctx)

	text := fmt.Sprintf(`👋 Welcome%s!

I help you submit expenses and keep approvals moving.

<b>Quick Start:</b>
• Submit an expense: <code>/submit 54.60 SGD Client dinner</code>
• Upload a receipt photo to get a pre-filled submission
• See what waits for you with /pending

Use /help to see all available commands.`,
		formatGreeting(user.Name))

	b.send(ctx, tg, update.Message.Chat.ID, text, nil)
}

// handleHelp handles the /help command.
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleHelpCore(ctx, tgBot, update)
}

// handleHelpCore is the testable implementation of handleHelp.
func (b *Bot) handleHelpCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(`📚 <b>Available Commands</b>

<b>Expenses:</b>
• <code>/submit &lt;amount&gt; [currency] &lt;description&gt; [#category]</code> - Submit an expense
• <code>/expenses</code> - Your recent expenses
• <code>/status &lt;id&gt;</code> - Status and approval trail of an expense

<b>Approvals:</b>
• <code>/pending</code> - Expenses waiting for your decision
• <code>/approve &lt;id&gt; [comment]</code> - Approve an expense
• <code>/reject &lt;id&gt; [comment]</code> - Reject an expense`)

	if userFrom(ctx).IsApprover() {
		sb.WriteString(`

<b>Reports:</b>
• <code>/chart</code> - Company expenses by status
• <code>/chart categories</code> - This month's spend by category`)
	}

	b.send(ctx, tg, update.Message.Chat.ID, sb.String(), nil)
}

// handleSubmit handles the /submit command.
func (b *Bot) handleSubmit(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleSubmitCore(ctx, tgBot, update)
}

// handleSubmitCore is the testable implementation of handleSubmit.
func (b *Bot) handleSubmitCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	user := userFrom(ctx)

	parsed := ParseSubmitCommand(update.Message.Text)
	if parsed == nil {
		b.send(ctx, tg, chatID,
			"❌ Usage: <code>/submit &lt;amount&gt; [currency] &lt;description&gt; [#category]</code>\n\nExample: <code>/submit 54.60 SGD Client dinner #Meals</code>",
			nil)
		return
	}
	if parsed.Currency == "" {
		parsed.Currency = appmodels.DefaultCurrency
	}

	res, err := b.engine.SubmitExpense(ctx, approval.SubmitInput{
		EmployeeID:  user.ID,
		Amount:      parsed.Amount,
		Currency:    parsed.Currency,
		Description: parsed.Description,
		Category:    parsed.Category,
		ExpenseDate: b.now(),
	})
	if err != nil {
		b.send(ctx, tg, chatID, b.errorText(err), nil)
		return
	}

	e := res.Expense
	var text string
	if e.Status == appmodels.ExpenseStatusApproved {
		text = fmt.Sprintf("✅ Expense <b>#%d</b> (%s) was approved automatically.",
			e.ID, escapeHTML(formatMoney(e.Amount, e.Currency)))
	} else {
		text = fmt.Sprintf("📨 Expense <b>#%d</b> (%s) submitted for approval by %d approver(s).\n\nTrack it with <code>/status %d</code>.",
			e.ID, escapeHTML(formatMoney(e.Amount, e.Currency)), len(res.Entries), e.ID)
	}
	b.send(ctx, tg, chatID, text, nil)
}

// handleExpenses handles the /expenses command.
func (b *Bot) handleExpenses(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleExpensesCore(ctx, tgBot, update)
}

// handleExpensesCore lists the caller's own most recent expenses.
func (b *Bot) handleExpensesCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	user := userFrom(ctx)

	self := user.ID
	expenses, err := b.engine.ListExpenses(ctx, user, approval.ExpenseFilter{EmployeeID: &self, Limit: recentExpensesLimit})
	if err != nil {
		b.send(ctx, tg, chatID, b.errorText(err), nil)
		return
	}
	if len(expenses) == 0 {
		b.send(ctx, tg, chatID, "📭 You have not submitted any expenses yet.", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("🧾 <b>Your recent expenses</b>\n\n")
	for _, e := range expenses {
		sb.WriteString(formatExpenseLine(e))
		sb.WriteString("\n")
	}
	b.send(ctx, tg, chatID, sb.String(), nil)
}

// handlePending handles the /pending command.
func (b *Bot) handlePending(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handlePendingCore(ctx, tgBot, update)
}

// handlePendingCore sends one message per pending approval, each with
// approve and reject buttons.
func (b *Bot) handlePendingCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	user := userFrom(ctx)

	pending, err := b.engine.PendingForApprover(ctx, user.ID)
	if err != nil {
		b.send(ctx, tg, chatID, b.errorText(err), nil)
		return
	}
	if len(pending) == 0 {
		b.send(ctx, tg, chatID, "✅ Nothing is waiting for your approval.", nil)
		return
	}

	b.send(ctx, tg, chatID, fmt.Sprintf("⏳ <b>%d expense(s) waiting for your approval</b>", len(pending)), nil)
	for i, p := range pending {
		if i == pendingPageSize {
			b.send(ctx, tg, chatID, fmt.Sprintf("…and %d more. Decide these first, then run /pending again.", len(pending)-pendingPageSize), nil)
			break
		}
		b.send(ctx, tg, chatID, formatPending(p), approvalKeyboard(p.Expense.ID))
	}
}

func formatPending(p approval.PendingApproval) string {
	text := formatExpenseLine(p.Expense)
	if p.Expense.Category != "" {
		text += "\nCategory: " + escapeHTML(p.Expense.Category)
	}
	if !p.Entry.IsRequired {
		text += "\n<i>Your approval is optional.</i>"
	}
	return text
}

// handleApprove handles the /approve command.
func (b *Bot) handleApprove(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleDecisionCore(ctx, tgBot, update, "/approve", appmodels.ApprovalStatusApproved)
}

// handleReject handles the /reject command.
func (b *Bot) handleReject(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleDecisionCore(ctx, tgBot, update, "/reject", appmodels.ApprovalStatusRejected)
}

// parseDecisionArgs splits "<id> [comment]".
func parseDecisionArgs(args string) (int64, string, bool) {
	rawID, comment, _ := strings.Cut(args, " ")
	id, err := strconv.ParseInt(strings.TrimPrefix(rawID, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, strings.TrimSpace(comment), true
}

// handleDecisionCore is the testable implementation of /approve and /reject.
func (b *Bot) handleDecisionCore(
	ctx context.Context,
	tg TelegramAPI,
	update *models.Update,
	command string,
	action appmodels.ApprovalStatus,
) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	expenseID, comment, ok := parseDecisionArgs(extractCommandArgs(update.Message.Text, command))
	if !ok {
		b.send(ctx, tg, chatID, fmt.Sprintf("❌ Usage: <code>%s &lt;expense id&gt; [comment]</code>", command), nil)
		return
	}

	text, err := b.decide(ctx, userFrom(ctx), expenseID, action, comment)
	if err != nil {
		b.send(ctx, tg, chatID, b.errorText(err), nil)
		return
	}
	b.send(ctx, tg, chatID, text, nil)
}

// decide records a decision and describes the outcome.
func (b *Bot) decide(
	ctx context.Context,
	user *appmodels.User,
	expenseID int64,
	action appmodels.ApprovalStatus,
	comment string,
) (string, error) {
	res, err := b.engine.RecordDecision(ctx, approval.DecisionInput{
		ExpenseID:  expenseID,
		ApproverID: user.ID,
		Action:     action,
		Comments:   comment,
	})
	if err != nil {
		return "", err
	}

	verb := "approved"
	if action == appmodels.ApprovalStatusRejected {
		verb = "rejected"
	}
	text := fmt.Sprintf("%s You %s expense <b>#%d</b>.", entryIcon(action), verb, expenseID)
	if res.NewStatus != nil {
		text += fmt.Sprintf("\nThe expense is now <b>%s</b>.", *res.NewStatus)
	}

	b.log.Info().
		Int64("expense_id", expenseID).
		Str("user_hash", logger.HashUserID(user.ID)).
		Str("action", string(action)).
		Msg("Decision recorded from Telegram")
	return text, nil
}

// approvalDetail is an expense with its trail and the approvers' names.
type approvalDetail struct {
	*approval.ExpenseDetail
	Names map[int64]string
}

// handleStatus handles the /status command.
func (b *Bot) handleStatus(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleStatusCore(ctx, tgBot, update)
}

// handleStatusCore is the testable implementation of handleStatus.
func (b *Bot) handleStatusCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	expenseID, _, ok := parseDecisionArgs(extractCommandArgs(update.Message.Text, "/status"))
	if !ok {
		b.send(ctx, tg, chatID, "❌ Usage: <code>/status &lt;expense id&gt;</code>", nil)
		return
	}

	detail, err := b.engine.ExpenseWithLedger(ctx, userFrom(ctx), expenseID)
	if err != nil {
		b.send(ctx, tg, chatID, b.errorText(err), nil)
		return
	}

	names := make(map[int64]string, len(detail.Entries))
	for _, entry := range detail.Entries {
		if _, seen := names[entry.ApproverID]; seen {
			continue
		}
		if u, err := b.engine.User(ctx, entry.ApproverID); err == nil {
			names[entry.ApproverID] = u.Name
		}
	}

	b.send(ctx, tg, chatID, formatExpenseDetail(&approvalDetail{ExpenseDetail: detail, Names: names}), nil)
}
