package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/expense-approvals/internal/gemini"
	"gitlab.com/yelinaung/expense-approvals/internal/logger"
)

// maxReceiptBytes bounds downloaded receipt images.
const maxReceiptBytes = 10 << 20

var errReceiptTooLarge = errors.New("receipt image is too large")

func isImageDocument(doc *models.Document) bool {
	return doc != nil && strings.HasPrefix(doc.MimeType, "image/")
}

// handlePhotoCore turns a receipt photo into a ready-to-send /submit command.
// Nothing is submitted until the user sends it.
func (b *Bot) handlePhotoCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID
	user := userFrom(ctx)

	if b.receipts == nil {
		b.send(ctx, tg, chatID,
			"📷 Receipt parsing is not configured. Submit manually with <code>/submit &lt;amount&gt; &lt;description&gt;</code>", nil)
		return
	}

	var fileID, mimeType string
	switch {
	case len(msg.Photo) > 0:
		fileID = msg.Photo[len(msg.Photo)-1].FileID
		mimeType = "image/jpeg"
	case isImageDocument(msg.Document):
		fileID = msg.Document.FileID
		mimeType = msg.Document.MimeType
	default:
		return
	}

	b.send(ctx, tg, chatID, "📷 Processing receipt...", nil)

	image, err := b.downloadFile(ctx, tg, fileID)
	if err != nil {
		b.log.Error().Err(err).Str("user_hash", logger.HashUserID(user.ID)).Msg("Failed to download receipt")
		text := "❌ Failed to download photo. Please try again."
		if errors.Is(err, errReceiptTooLarge) {
			text = "❌ That image is too large. Please send a smaller photo."
		}
		b.send(ctx, tg, chatID, text, nil)
		return
	}

	draft, err := b.receipts.ParseReceipt(ctx, image, mimeType)
	if err != nil {
		b.log.Warn().Err(err).Str("user_hash", logger.HashUserID(user.ID)).Msg("Failed to parse receipt")
		text := "❌ Could not read this receipt. Please submit manually: <code>/submit &lt;amount&gt; &lt;description&gt;</code>"
		if errors.Is(err, gemini.ErrParseTimeout) {
			text = "⏱️ Receipt processing timed out. Please try again or submit manually."
		}
		b.send(ctx, tg, chatID, text, nil)
		return
	}

	b.send(ctx, tg, chatID, formatDraft(draft), nil)
}

// formatDraft shows what was read and the command that would submit it.
func formatDraft(d *gemini.ReceiptDraft) string {
	var sb strings.Builder
	sb.WriteString("🧾 <b>Receipt read</b>\n\n")
	if d.HasAmount() {
		amount := d.Amount.StringFixed(2)
		if d.Currency != "" {
			amount += " " + d.Currency
		}
		fmt.Fprintf(&sb, "Amount: %s\n", escapeHTML(amount))
	}
	if d.HasMerchant() {
		fmt.Fprintf(&sb, "Merchant: %s\n", escapeHTML(d.Merchant))
	}
	if d.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", escapeHTML(d.Category))
	}
	if !d.Date.IsZero() {
		fmt.Fprintf(&sb, "Date: %s\n", d.Date.Format(time.DateOnly))
	}

	if !d.HasAmount() {
		sb.WriteString("\n⚠️ The total could not be read. Submit with <code>/submit &lt;amount&gt; ")
		sb.WriteString(escapeHTML(d.Description))
		sb.WriteString("</code>")
		return sb.String()
	}

	cmd := "/submit " + d.Amount.StringFixed(2)
	if d.Currency != "" {
		cmd += " " + d.Currency
	}
	description := d.Description
	if description == "" {
		description = "Receipt"
	}
	cmd += " " + description
	if d.Category != "" {
		cmd += " #" + d.Category
	}
	sb.WriteString("\nTo submit, send:\n<code>")
	sb.WriteString(escapeHTML(cmd))
	sb.WriteString("</code>")
	return sb.String()
}

// downloadFile fetches a Telegram file into memory, bounded by maxReceiptBytes.
func (b *Bot) downloadFile(ctx context.Context, tg TelegramAPI, fileID string) ([]byte, error) {
	file, err := tg.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tg.FileDownloadLink(file), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReceiptBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > maxReceiptBytes {
		return nil, errReceiptTooLarge
	}
	return data, nil
}
