package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"

	"gitlab.com/yelinaung/expense-approvals/internal/approval"
	"gitlab.com/yelinaung/expense-approvals/internal/authz"
	appmodels "gitlab.com/yelinaung/expense-approvals/internal/models"
)

const (
	chartStatus     = "status"
	chartCategories = "categories"
)

// handleChart handles the /chart command.
func (b *Bot) handleChart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleChartCore(ctx, tgBot, update)
}

// handleChartCore is the testable implementation of handleChart.
func (b *Bot) handleChartCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	user := userFrom(ctx)

	if !authz.Can(user, authz.ActionViewReports, authz.Company(user.CompanyID)) {
		b.send(ctx, tg, chatID, "⛔ Charts are available to managers and admins.", nil)
		return
	}

	kind := strings.ToLower(extractCommandArgs(update.Message.Text, "/chart"))
	if kind == "" {
		kind = chartStatus
	}

	var (
		png     []byte
		caption string
		err     error
	)
	switch kind {
	case chartStatus:
		png, caption, err = b.statusChart(ctx, user)
	case chartCategories:
		png, caption, err = b.categoryChart(ctx, user)
	default:
		b.send(ctx, tg, chatID, "❌ Invalid chart type. Use <code>/chart</code> or <code>/chart categories</code>.", nil)
		return
	}
	if errors.Is(err, errNothingToChart) {
		b.send(ctx, tg, chatID, "📊 No expenses to chart yet.", nil)
		return
	}
	if err != nil {
		b.log.Error().Err(err).Str("chart", kind).Msg("Failed to generate chart")
		b.send(ctx, tg, chatID, "❌ Failed to generate chart. Please try again.", nil)
		return
	}

	b.log.Debug().Str("chart", kind).Int("bytes", len(png)).Msg("Sending chart")
	_, err = tg.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chatID,
		Document: &models.InputFileUpload{
			Filename: generateChartFilename(kind, b.now()),
			Data:     bytes.NewReader(png),
		},
		Caption:   caption,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to send chart")
		b.send(ctx, tg, chatID, "❌ Failed to send chart. Please try again.", nil)
	}
}

func (b *Bot) statusChart(ctx context.Context, user *appmodels.User) ([]byte, string, error) {
	counts, err := b.engine.StatusCounts(ctx, user)
	if err != nil {
		return nil, "", err
	}
	png, err := GenerateStatusChart(counts)
	if err != nil {
		return nil, "", err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	caption := fmt.Sprintf("📊 <b>Expenses by status</b>\n\nTotal: %d\nPending: %d",
		total, counts[appmodels.ExpenseStatusPending])
	return png, caption, nil
}

func (b *Bot) categoryChart(ctx context.Context, user *appmodels.User) ([]byte, string, error) {
	start, end := monthRange(b.now())
	expenses, err := b.engine.ListExpenses(ctx, user, approval.ExpenseFilter{
		From:  &start,
		To:    &end,
		Limit: approval.MaxListLimit,
	})
	if err != nil {
		return nil, "", err
	}

	period := start.Format("January 2006")
	png, err := GenerateCategoryChart(expenses, period)
	if err != nil {
		return nil, "", err
	}

	totals := aggregateByCategory(expenses)
	sum := decimal.Zero
	for _, v := range totals {
		sum = sum.Add(v)
	}
	caption := fmt.Sprintf("📊 <b>Spend by category</b>\n\nPeriod: %s\nTotal: %s\nExpenses: %d",
		period, sum.StringFixed(2), len(expenses))
	return png, caption, nil
}
