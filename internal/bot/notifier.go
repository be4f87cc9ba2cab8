package bot

import (
	"context"
	"errors"
	"fmt"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	appmodels "gitlab.com/yelinaung/expense-approvals/internal/models"
	"gitlab.com/yelinaung/expense-approvals/internal/notify"
)

// UserLookup resolves notification recipients.
type UserLookup interface {
	User(ctx context.Context, id int64) (*appmodels.User, error)
}

// Notifier delivers outbox notifications as Telegram messages. Users without
// a linked Telegram account have no route.
type Notifier struct {
	api   TelegramAPI
	users UserLookup
}

var _ notify.Sender = (*Notifier)(nil)

// NewNotifier creates a Notifier.
func NewNotifier(api TelegramAPI, users UserLookup) *Notifier {
	return &Notifier{api: api, users: users}
}

// Send implements notify.Sender.
func (n *Notifier) Send(ctx context.Context, note appmodels.Notification) error {
	user, err := n.users.User(ctx, note.UserID)
	if errors.Is(err, approval.ErrNotFound) {
		return notify.ErrNoRoute
	}
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if user.TelegramID == nil || !user.IsActive {
		return notify.ErrNoRoute
	}

	params := &tgbot.SendMessageParams{
		ChatID:    *user.TelegramID,
		Text:      formatNotification(note),
		ParseMode: models.ParseModeHTML,
	}
	if note.Type == appmodels.NotificationApprovalRequested && note.ExpenseID > 0 {
		params.ReplyMarkup = approvalKeyboard(note.ExpenseID)
	}

	if _, err := n.api.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func formatNotification(note appmodels.Notification) string {
	icon := "🔔"
	switch note.Type {
	case appmodels.NotificationApprovalRequested:
		icon = "📨"
	case appmodels.NotificationExpenseApproved, appmodels.NotificationExpenseAutoApproved:
		icon = "✅"
	case appmodels.NotificationExpenseRejected:
		icon = "❌"
	case appmodels.NotificationExpenseOverridden:
		icon = "🛡️"
	}
	text := fmt.Sprintf("%s <b>%s</b>", icon, escapeHTML(note.Title))
	if note.Message != "" {
		text += "\n" + escapeHTML(note.Message)
	}
	return text
}
