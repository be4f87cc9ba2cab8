package bot

import (
	tgbot "github.com/go-telegram/bot"

	"gitlab.com/yelinaung/expense-approvals/internal/bot/mocks"
)

// TelegramAPI is the subset of the Telegram client the handlers, the
// notifier and the reminder loop use. It lives in mocks to avoid an import cycle.
type TelegramAPI = mocks.TelegramAPI

var _ TelegramAPI = (*tgbot.Bot)(nil)
