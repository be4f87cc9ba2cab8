// Package bot is the Telegram front end of the approval engine. Approvers
// review and decide expenses from chat, employees submit and track their own,
// and outbox notifications are delivered to linked accounts.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/config"
	"gitlab.com/yelinaung/expense-approvals/internal/gemini"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
	"gitlab.com/yelinaung/expense-approvals/internal/models"
)

// downloadTimeout bounds fetching a photo from Telegram's file servers.
const downloadTimeout = 30 * time.Second

// Engine is the part of approval.Engine the bot drives.
type Engine interface {
	User(ctx context.Context, id int64) (*models.User, error)
	UserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	SubmitExpense(ctx context.Context, in approval.SubmitInput) (approval.SubmitResult, error)
	RecordDecision(ctx context.Context, in approval.DecisionInput) (approval.DecisionResult, error)
	ExpenseWithLedger(ctx context.Context, viewer *models.User, expenseID int64) (*approval.ExpenseDetail, error)
	ListExpenses(ctx context.Context, viewer *models.User, filter approval.ExpenseFilter) ([]models.Expense, error)
	PendingForApprover(ctx context.Context, approverID int64) ([]approval.PendingApproval, error)
	StatusCounts(ctx context.Context, viewer *models.User) (map[models.ExpenseStatus]int, error)
	ApproversWithPending(ctx context.Context) ([]approval.PendingSummary, error)
}

// ReceiptParser extracts a submission draft from a receipt image.
type ReceiptParser interface {
	ParseReceipt(ctx context.Context, image []byte, mimeType string) (*gemini.ReceiptDraft, error)
}

var (
	_ Engine        = (*approval.Engine)(nil)
	_ ReceiptParser = (*gemini.Client)(nil)
)

// Bot wraps the Telegram bot with application dependencies.
type Bot struct {
	bot           *bot.Bot
	cfg           *config.Config
	engine        Engine
	receipts      ReceiptParser
	messageSender TelegramAPI
	httpClient    *http.Client
	log           zerolog.Logger
	now           func() time.Time
}

// Option configures a Bot.
type Option func(*Bot)

// WithReceiptParser enables receipt photo parsing.
func WithReceiptParser(p ReceiptParser) Option {
	return func(b *Bot) { b.receipts = p }
}

// New creates a new Bot instance.
func New(cfg *config.Config, engine Engine, opts ...Option) (*Bot, error) {
	b := newBot(cfg, engine, opts...)

	telegramBot, err := bot.New(cfg.TelegramBotToken,
		bot.WithMiddlewares(b.authMiddleware),
		bot.WithDefaultHandler(b.defaultHandler),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.bot = telegramBot
	b.messageSender = telegramBot
	b.registerHandlers()

	return b, nil
}

func newBot(cfg *config.Config, engine Engine, opts ...Option) *Bot {
	b := &Bot{
		cfg:    cfg,
		engine: engine,
		httpClient: &http.Client{
			Timeout:   downloadTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: logger.WithComponent("bot"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Notifier returns an outbox sender that delivers through this bot.
func (b *Bot) Notifier() *Notifier {
	return NewNotifier(b.messageSender, b.engine)
}

// Start runs the reminder loop and polls for updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	go b.startReminderLoop(ctx)
	b.log.Info().Msg("Bot started polling")
	b.bot.Start(ctx)
}

// registerHandlers sets up command handlers.
func (b *Bot) registerHandlers() {
	commands := map[string]bot.HandlerFunc{
		"/start":    b.handleStart,
		"/help":     b.handleHelp,
		"/submit":   b.handleSubmit,
		"/expenses": b.handleExpenses,
		"/pending":  b.handlePending,
		"/approve":  b.handleApprove,
		"/reject":   b.handleReject,
		"/status":   b.handleStatus,
		"/chart":    b.handleChart,
	}
	for command, handler := range commands {
		b.bot.RegisterHandler(bot.HandlerTypeMessageText, command, bot.MatchTypePrefix, handler)
	}
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, callbackPrefix, bot.MatchTypePrefix, b.handleApprovalCallback)
}

type userKey struct{}

func withUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// userFrom returns the linked account resolved by authMiddleware.
func userFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}

// authMiddleware resolves the sender to a linked, active account before any
// handler runs.
func (b *Bot) authMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
		user, ok := b.authorize(ctx, tgBot, update)
		if !ok {
			return
		}
		next(withUser(ctx, user), tgBot, update)
	}
}

func (b *Bot) authorize(ctx context.Context, tg TelegramAPI, update *tgmodels.Update) (*models.User, bool) {
	telegramID := extractUserID(update)
	if telegramID == 0 {
		return nil, false
	}
	b.logUserAction(telegramID, update)

	user, err := b.engine.UserByTelegramID(ctx, telegramID)
	switch {
	case errors.Is(err, approval.ErrNotFound):
		b.log.Warn().Str("telegram_hash", logger.HashTelegramID(telegramID)).Msg("Blocked unlinked Telegram account")
		b.reply(ctx, tg, update, "⛔ This Telegram account is not linked to an expense account. Ask your administrator to link it.")
		return nil, false
	case err != nil:
		b.log.Error().Err(err).Str("telegram_hash", logger.HashTelegramID(telegramID)).Msg("Failed to resolve Telegram account")
		b.reply(ctx, tg, update, "❌ Something went wrong. Please try again.")
		return nil, false
	case !user.IsActive:
		b.log.Warn().Str("user_hash", logger.HashUserID(user.ID)).Msg("Blocked inactive user")
		b.reply(ctx, tg, update, "⛔ Your account is inactive.")
		return nil, false
	}
	return user, true
}

// reply answers whatever kind of update arrived: a chat message for messages,
// an alert for button presses.
func (b *Bot) reply(ctx context.Context, tg TelegramAPI, update *tgmodels.Update, text string) {
	switch {
	case update.Message != nil:
		_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    update.Message.Chat.ID,
			Text:      text,
			ParseMode: tgmodels.ParseModeHTML,
		})
		if err != nil {
			b.log.Error().Err(err).Msg("Failed to send reply")
		}
	case update.CallbackQuery != nil:
		_, _ = tg.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
			Text:            text,
			ShowAlert:       true,
		})
	}
}

// logUserAction logs the user's input without the raw Telegram id or text.
func (b *Bot) logUserAction(telegramID int64, update *tgmodels.Update) {
	event := b.log.Info().Str("telegram_hash", logger.HashTelegramID(telegramID))
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.Text != "" {
			event = event.Str("text", logger.SanitizeText(msg.Text))
		}
		if len(msg.Photo) > 0 {
			event = event.Str("type", "photo")
		}
		if msg.Document != nil {
			event = event.Str("type", "document")
		}
		event.Msg("User input")
	case update.CallbackQuery != nil:
		event.Str("data", update.CallbackQuery.Data).Msg("Callback query")
	}
}

// extractUserID gets the Telegram user ID from various update types.
func extractUserID(update *tgmodels.Update) int64 {
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.ID
	}
	if update.CallbackQuery != nil {
		return update.CallbackQuery.From.ID
	}
	return 0
}

// defaultHandler routes receipt uploads and answers anything else with a hint.
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
	b.defaultHandlerCore(ctx, tgBot, update)
}

func (b *Bot) defaultHandlerCore(ctx context.Context, tg TelegramAPI, update *tgmodels.Update) {
	if update.Message == nil {
		return
	}
	if len(update.Message.Photo) > 0 || isImageDocument(update.Message.Document) {
		b.handlePhotoCore(ctx, tg, update)
		return
	}

	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      "I didn't understand that. Use /help to see available commands.",
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to send default response")
	}
}
