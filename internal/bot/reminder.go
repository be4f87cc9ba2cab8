package bot

import (
	"context"
	"fmt"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/expense-approvals/internal/logger"
)

const (
	// ReminderCheckInterval is how often the reminder loop checks whether to send reminders.
	ReminderCheckInterval = 30 * time.Minute
	// ReminderTimeout is the maximum time a single reminder check can take.
	ReminderTimeout = 2 * time.Minute
)

// startReminderLoop nudges approvers with pending decisions once a day at the
// configured hour.
func (b *Bot) startReminderLoop(ctx context.Context) {
	if !b.cfg.ReminderEnabled {
		b.log.Info().Msg("Approval reminders are disabled")
		return
	}

	loc, err := time.LoadLocation(b.cfg.ReminderTimezone)
	if err != nil {
		b.log.Error().Err(err).Str("timezone", b.cfg.ReminderTimezone).Msg("Failed to load reminder timezone, disabling reminders")
		return
	}

	b.log.Info().
		Int("hour", b.cfg.ReminderHour).
		Str("timezone", b.cfg.ReminderTimezone).
		Msg("Approval reminder loop started")

	reminded := make(map[int64]string)
	ticker := time.NewTicker(ReminderCheckInterval)
	defer ticker.Stop()

	// Check once immediately so a start during the reminder hour still sends.
	b.checkAndSendReminders(ctx, reminded, b.now().In(loc))

	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("Approval reminder loop stopped")
			return
		case <-ticker.C:
			b.checkAndSendReminders(ctx, reminded, b.now().In(loc))
		}
	}
}

// checkAndSendReminders reminds every linked approver with pending decisions.
// The reminded map records who was reminded on which day so each approver
// gets at most one reminder a day.
func (b *Bot) checkAndSendReminders(ctx context.Context, reminded map[int64]string, now time.Time) {
	if now.Hour() != b.cfg.ReminderHour {
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, ReminderTimeout)
	defer cancel()

	today := now.Format(time.DateOnly)

	// Prune entries from previous days so the map doesn't grow unbounded.
	for uid, day := range reminded {
		if day != today {
			delete(reminded, uid)
		}
	}

	summaries, err := b.engine.ApproversWithPending(checkCtx)
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to fetch approvers for reminders")
		return
	}

	for _, s := range summaries {
		approver := s.Approver
		if approver.TelegramID == nil || !approver.IsActive || reminded[approver.ID] == today {
			continue
		}

		text := fmt.Sprintf("⏰ Hi%s! You have <b>%d</b> expense(s) waiting for your approval.\n\nUse /pending to review them.",
			formatGreeting(approver.Name), s.Count)

		_, err := b.messageSender.SendMessage(checkCtx, &tgbot.SendMessageParams{
			ChatID:    *approver.TelegramID,
			Text:      text,
			ParseMode: models.ParseModeHTML,
		})
		if err != nil {
			b.log.Warn().Err(err).Str("user_hash", logger.HashUserID(approver.ID)).Msg("Failed to send approval reminder")
			continue
		}

		reminded[approver.ID] = today
		b.log.Debug().Str("user_hash", logger.HashUserID(approver.ID)).Int("pending", s.Count).Msg("Sent approval reminder")
	}
}
