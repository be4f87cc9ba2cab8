// Package mocks provides a recording Telegram client for bot handler tests.
package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramAPI is the part of the Telegram client the bot uses. It is declared
// here rather than in package bot so both packages can refer to it.
type TelegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
}

var _ TelegramAPI = (*MockBot)(nil)

// SentMessage is a recorded SendMessage call.
type SentMessage struct {
	ChatID      any
	Text        string
	ParseMode   models.ParseMode
	ReplyMarkup models.ReplyMarkup
}

// EditedMessage is a recorded EditMessageText call.
type EditedMessage struct {
	ChatID      any
	MessageID   int
	Text        string
	ParseMode   models.ParseMode
	ReplyMarkup models.ReplyMarkup
}

// AnsweredCallback is a recorded AnswerCallbackQuery call.
type AnsweredCallback struct {
	CallbackQueryID string
	Text            string
	ShowAlert       bool
}

// SentDocument is a recorded SendDocument call. Data holds the uploaded bytes.
type SentDocument struct {
	ChatID    any
	Filename  string
	Data      []byte
	Caption   string
	ParseMode models.ParseMode
}

// MockBot records every call and answers with canned values. Set the *Error
// fields to make the matching call fail.
type MockBot struct {
	mu sync.RWMutex

	SentMessages      []SentMessage
	EditedMessages    []EditedMessage
	AnsweredCallbacks []AnsweredCallback
	SentDocuments     []SentDocument

	SendMessageError  error
	EditMessageError  error
	GetFileError      error
	SendDocumentError error

	// FileToReturn overrides the File returned by GetFile.
	FileToReturn *models.File
	// FileDownloadLinkToReturn overrides the URL returned by FileDownloadLink.
	// Point it at an httptest server to serve file contents.
	FileDownloadLinkToReturn string

	// NextMessageID is assigned to the next sent message and incremented.
	NextMessageID int
}

// NewMockBot creates an empty MockBot.
func NewMockBot() *MockBot {
	return &MockBot{NextMessageID: 1000}
}

// nextMessage assigns an id to an outgoing message. Callers hold mu.
func (m *MockBot) nextMessage(chatID any) *models.Message {
	msg := &models.Message{ID: m.NextMessageID, Chat: models.Chat{ID: chatIDToInt64(chatID)}}
	m.NextMessageID++
	return msg
}

// SendMessage records params.
func (m *MockBot) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendMessageError != nil {
		return nil, m.SendMessageError
	}

	m.SentMessages = append(m.SentMessages, SentMessage{
		ChatID:      params.ChatID,
		Text:        params.Text,
		ParseMode:   params.ParseMode,
		ReplyMarkup: params.ReplyMarkup,
	})
	msg := m.nextMessage(params.ChatID)
	msg.Text = params.Text
	return msg, nil
}

// EditMessageText records params.
func (m *MockBot) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EditMessageError != nil {
		return nil, m.EditMessageError
	}

	m.EditedMessages = append(m.EditedMessages, EditedMessage{
		ChatID:      params.ChatID,
		MessageID:   params.MessageID,
		Text:        params.Text,
		ParseMode:   params.ParseMode,
		ReplyMarkup: params.ReplyMarkup,
	})
	return &models.Message{ID: params.MessageID, Chat: models.Chat{ID: chatIDToInt64(params.ChatID)}, Text: params.Text}, nil
}

// AnswerCallbackQuery records params. It never fails.
func (m *MockBot) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AnsweredCallbacks = append(m.AnsweredCallbacks, AnsweredCallback{
		CallbackQueryID: params.CallbackQueryID,
		Text:            params.Text,
		ShowAlert:       params.ShowAlert,
	})
	return true, nil
}

// GetFile returns FileToReturn, or a placeholder photo.
func (m *MockBot) GetFile(_ context.Context, _ *bot.GetFileParams) (*models.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	switch {
	case m.GetFileError != nil:
		return nil, m.GetFileError
	case m.FileToReturn != nil:
		return m.FileToReturn, nil
	}
	return &models.File{FileID: "test-file-id", FilePath: "photos/test.jpg"}, nil
}

// FileDownloadLink returns FileDownloadLinkToReturn, or a Telegram-style URL.
func (m *MockBot) FileDownloadLink(f *models.File) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FileDownloadLinkToReturn != "" {
		return m.FileDownloadLinkToReturn
	}
	return "https://api.telegram.org/file/bot123/" + f.FilePath
}

// SendDocument records params and reads an uploaded file fully.
func (m *MockBot) SendDocument(_ context.Context, params *bot.SendDocumentParams) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendDocumentError != nil {
		return nil, m.SendDocumentError
	}

	doc := SentDocument{ChatID: params.ChatID, Caption: params.Caption, ParseMode: params.ParseMode}
	if upload, ok := params.Document.(*models.InputFileUpload); ok {
		doc.Filename = upload.Filename
		if upload.Data != nil {
			data, err := io.ReadAll(upload.Data)
			if err != nil {
				return nil, err
			}
			doc.Data = data
		}
	}
	m.SentDocuments = append(m.SentDocuments, doc)

	msg := m.nextMessage(params.ChatID)
	msg.Caption = params.Caption
	msg.Document = &models.Document{FileID: "mock_file_id", FileName: doc.Filename}
	return msg, nil
}

// Reset clears recorded calls and configured errors.
func (m *MockBot) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = nil
	m.EditedMessages = nil
	m.AnsweredCallbacks = nil
	m.SentDocuments = nil
	m.SendMessageError = nil
	m.EditMessageError = nil
	m.GetFileError = nil
	m.SendDocumentError = nil
}

func last[T any](mu *sync.RWMutex, items []T) *T {
	mu.RLock()
	defer mu.RUnlock()
	if len(items) == 0 {
		return nil
	}
	return &items[len(items)-1]
}

// LastSentMessage returns the most recent message, or nil.
func (m *MockBot) LastSentMessage() *SentMessage { return last(&m.mu, m.SentMessages) }

// LastEditedMessage returns the most recent edit, or nil.
func (m *MockBot) LastEditedMessage() *EditedMessage { return last(&m.mu, m.EditedMessages) }

// LastAnsweredCallback returns the most recent callback answer, or nil.
func (m *MockBot) LastAnsweredCallback() *AnsweredCallback { return last(&m.mu, m.AnsweredCallbacks) }

// LastSentDocument returns the most recent document, or nil.
func (m *MockBot) LastSentDocument() *SentDocument { return last(&m.mu, m.SentDocuments) }

// SentMessageCount returns the number of messages sent.
func (m *MockBot) SentMessageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentMessages)
}

// SentDocumentCount returns the number of documents sent.
func (m *MockBot) SentDocumentCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.SentDocuments)
}

func chatIDToInt64(chatID any) int64 {
	switch v := chatID.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
