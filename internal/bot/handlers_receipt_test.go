package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/expense-approvals/internal/bot/mocks"
	"gitlab.com/yelinaung/expense-approvals/internal/gemini"
)

type fakeReceiptParser struct {
	draft   *gemini.ReceiptDraft
	err     error
	gotData []byte
	gotMIME string
}

func (p *fakeReceiptParser) ParseReceipt(_ context.Context, image []byte, mimeType string) (*gemini.ReceiptDraft, error) {
	p.gotData = image
	p.gotMIME = mimeType
	return p.draft, p.err
}

func receiptServer(t *testing.T, status int, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dinnerDraft() *gemini.ReceiptDraft {
	return &gemini.ReceiptDraft{
		Amount:      decimal.RequireFromString("54.60"),
		Currency:    "SGD",
		Merchant:    "Din Tai Fung",
		Description: "Team dinner",
		Category:    "Meals & Entertainment",
		Date:        time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
		Confidence:  0.9,
	}
}

func TestHandlePhotoCore(t *testing.T) {
	t.Parallel()

	t.Run("photo is parsed into a submit command", func(t *testing.T) {
		t.Parallel()
		parser := &fakeReceiptParser{draft: dinnerDraft()}
		f := newBotFixture(t, WithReceiptParser(parser))
		f.tg.FileDownloadLinkToReturn = receiptServer(t, http.StatusOK, []byte("jpeg-bytes")).URL

		f.bot.handlePhotoCore(as(f.employee), f.tg, mocks.PhotoUpdate(chatID, employeeTG, "receipt"))

		require.Equal(t, 2, f.tg.SentMessageCount())
		require.Contains(t, f.tg.SentMessages[0].Text, "Processing receipt")
		require.Equal(t, []byte("jpeg-bytes"), parser.gotData)
		require.Equal(t, "image/jpeg", parser.gotMIME)

		text := f.tg.LastSentMessage().Text
		require.Contains(t, text, "Merchant: Din Tai Fung")
		require.Contains(t, text, "Date: 2026-02-27")
		require.Contains(t, text, "/submit 54.60 SGD Team dinner #Meals &amp; Entertainment")
	})

	t.Run("image document keeps its mime type", func(t *testing.T) {
		t.Parallel()
		parser := &fakeReceiptParser{draft: dinnerDraft()}
		f := newBotFixture(t, WithReceiptParser(parser))
		f.tg.FileDownloadLinkToReturn = receiptServer(t, http.StatusOK, []byte("png-bytes")).URL

		f.bot.handlePhotoCore(as(f.employee), f.tg, mocks.DocumentUpdate(chatID, employeeTG, "scan", "scan.png", "image/png"))
		require.Equal(t, "image/png", parser.gotMIME)
	})

	t.Run("parsing not configured", func(t *testing.T) {
		t.Parallel()
		f := newBotFixture(t)

		f.bot.handlePhotoCore(as(f.employee), f.tg, mocks.PhotoUpdate(chatID, employeeTG, "receipt"))
		require.Equal(t, 1, f.tg.SentMessageCount())
		require.Contains(t, f.tg.LastSentMessage().Text, "not configured")
	})

	t.Run("download failure", func(t *testing.T) {
		t.Parallel()
		parser := &fakeReceiptParser{draft: dinnerDraft()}
		f := newBotFixture(t, WithReceiptParser(parser))
		f.tg.FileDownloadLinkToReturn = receiptServer(t, http.StatusNotFound, nil).URL

		f.bot.handlePhotoCore(as(f.employee), f.tg, mocks.PhotoUpdate(chatID, employeeTG, "receipt"))
		require.Contains(t, f.tg.LastSentMessage().Text, "Failed to download photo")
		require.Nil(t, parser.gotData)
	})

	t.Run("parse timeout", func(t *testing.T) {
		t.Parallel()
		parser := &fakeReceiptParser{err: gemini.ErrParseTimeout}
		f := newBotFixture(t, WithReceiptParser(parser))
		f.tg.FileDownloadLinkToReturn = receiptServer(t, http.StatusOK, []byte("jpeg")).URL

		f.bot.handlePhotoCore(as(f.employee), f.tg, mocks.PhotoUpdate(chatID, employeeTG, "receipt"))
		require.Contains(t, f.tg.LastSentMessage().Text, "timed out")
	})

	t.Run("unreadable receipt", func(t *testing.T) {
		t.Parallel()
		parser := &fakeReceiptParser{err: gemini.ErrNoData}
		f := newBotFixture(t, WithReceiptParser(parser))
		f.tg.FileDownloadLinkToReturn = receiptServer(t, http.StatusOK, []byte("jpeg")).URL

		f.bot.handlePhotoCore(as(f.employee), f.tg, mocks.PhotoUpdate(chatID, employeeTG, "receipt"))
		require.Contains(t, f.tg.LastSentMessage().Text, "Could not read this receipt")
	})
}

func TestFormatDraft(t *testing.T) {
	t.Parallel()

	t.Run("suggested command parses back", func(t *testing.T) {
		t.Parallel()
		d := dinnerDraft()
		parsed := ParseSubmitInput("54.60 SGD Team dinner #Meals & Entertainment")
		require.NotNil(t, parsed)
		require.True(t, parsed.Amount.Equal(d.Amount))
		require.Equal(t, d.Currency, parsed.Currency)
		require.Equal(t, d.Description, parsed.Description)
		require.Equal(t, d.Category, parsed.Category)
		require.Contains(t, formatDraft(d), "To submit, send:")
	})

	t.Run("missing amount warns", func(t *testing.T) {
		t.Parallel()
		text := formatDraft(&gemini.ReceiptDraft{Merchant: "Kopi", Description: "Kopi"})
		require.Contains(t, text, "total could not be read")
		require.NotContains(t, text, "To submit")
	})

	t.Run("missing description falls back", func(t *testing.T) {
		t.Parallel()
		text := formatDraft(&gemini.ReceiptDraft{Amount: decimal.NewFromInt(5)})
		require.Contains(t, text, "/submit 5.00 Receipt")
	})
}
