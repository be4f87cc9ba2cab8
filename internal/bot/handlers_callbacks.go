package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	appmodels "gitlab.com/yelinaung/expense-approvals/internal/models"
)

// callbackPrefix marks approval button presses: "approval:<approve|reject>:<expense id>".
const callbackPrefix = "approval:"

const (
	callbackApprove = "approve"
	callbackReject  = "reject"
)

// approvalKeyboard creates the approve/reject buttons for one expense.
func approvalKeyboard(expenseID int64) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "✅ Approve", CallbackData: fmt.Sprintf("%s%s:%d", callbackPrefix, callbackApprove, expenseID)},
				{Text: "❌ Reject", CallbackData: fmt.Sprintf("%s%s:%d", callbackPrefix, callbackReject, expenseID)},
			},
		},
	}
}

// parseApprovalCallback decodes approval button data.
func parseApprovalCallback(data string) (appmodels.ApprovalStatus, int64, bool) {
	rest, ok := strings.CutPrefix(data, callbackPrefix)
	if !ok {
		return "", 0, false
	}
	verb, rawID, ok := strings.Cut(rest, ":")
	if !ok {
		return "", 0, false
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	switch verb {
	case callbackApprove:
		return appmodels.ApprovalStatusApproved, id, true
	case callbackReject:
		return appmodels.ApprovalStatusRejected, id, true
	}
	return "", 0, false
}

// handleApprovalCallback handles approve/reject button presses.
func (b *Bot) handleApprovalCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleApprovalCallbackCore(ctx, tgBot, update)
}

// handleApprovalCallbackCore records the decision, answers the button press
// and replaces the buttons with the outcome.
func (b *Bot) handleApprovalCallbackCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil {
		return
	}

	action, expenseID, ok := parseApprovalCallback(cq.Data)
	if !ok {
		b.log.Warn().Str("data", cq.Data).Msg("Unknown approval callback")
		_, _ = tg.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})
		return
	}

	text, err := b.decide(ctx, userFrom(ctx), expenseID, action, "")
	if err != nil {
		text = b.errorText(err)
	}

	_, _ = tg.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID})

	msg := cq.Message.Message
	if msg == nil {
		return
	}
	original := msg.Text
	if original != "" {
		original = escapeHTML(original) + "\n\n"
	}
	_, editErr := tg.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      original + text,
		ParseMode: models.ParseModeHTML,
	})
	if editErr != nil {
		b.log.Error().Err(editErr).Int64("expense_id", expenseID).Msg("Failed to update approval message")
	}
}
