package mocks

import (
	"github.com/go-telegram/bot/models"
)

// UpdateBuilder assembles Telegram updates for handler tests.
type UpdateBuilder struct {
	update *models.Update
}

// NewUpdateBuilder starts an empty update.
func NewUpdateBuilder() *UpdateBuilder {
	return &UpdateBuilder{update: &models.Update{}}
}

func sender(userID int64) models.User {
	return models.User{ID: userID, FirstName: "Test", LastName: "User", Username: "testuser"}
}

func privateChat(chatID int64) models.Chat {
	return models.Chat{ID: chatID, Type: "private"}
}

// ensureMessage gives attachment helpers a message to hang off.
func (b *UpdateBuilder) ensureMessage() *models.Message {
	if b.update.Message == nil {
		b.WithMessage(0, 0, "")
	}
	return b.update.Message
}

// WithMessage sets a private chat message from userID.
func (b *UpdateBuilder) WithMessage(chatID, userID int64, text string) *UpdateBuilder {
	from := sender(userID)
	b.update.Message = &models.Message{ID: 1, Chat: privateChat(chatID), From: &from, Text: text}
	return b
}

// WithMessageID overrides the message id.
func (b *UpdateBuilder) WithMessageID(messageID int) *UpdateBuilder {
	if b.update.Message != nil {
		b.update.Message.ID = messageID
	}
	return b
}

// WithFrom replaces the sender of the message and of the callback query.
func (b *UpdateBuilder) WithFrom(userID int64, username, firstName, lastName string) *UpdateBuilder {
	from := models.User{ID: userID, Username: username, FirstName: firstName, LastName: lastName}
	if b.update.Message != nil {
		b.update.Message.From = &from
	}
	if b.update.CallbackQuery != nil {
		b.update.CallbackQuery.From = from
	}
	return b
}

// WithCallbackQuery sets an inline button press on message messageID.
func (b *UpdateBuilder) WithCallbackQuery(callbackID string, chatID, userID int64, messageID int, data string) *UpdateBuilder {
	b.update.CallbackQuery = &models.CallbackQuery{
		ID:      callbackID,
		From:    sender(userID),
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{ID: messageID, Chat: privateChat(chatID)}},
		Data:    data,
	}
	return b
}

// WithCallbackMessageText sets the text of the message the pressed button belongs to.
func (b *UpdateBuilder) WithCallbackMessageText(text string) *UpdateBuilder {
	if cq := b.update.CallbackQuery; cq != nil && cq.Message.Message != nil {
		cq.Message.Message.Text = text
	}
	return b
}

// WithPhoto attaches a thumbnail and a full-size photo. fileID names the
// full-size one, which is what handlers download.
func (b *UpdateBuilder) WithPhoto(fileID string) *UpdateBuilder {
	b.ensureMessage().Photo = []models.PhotoSize{
		{FileID: fileID + "_small", FileUniqueID: fileID + "_small_unique", Width: 320, Height: 240},
		{FileID: fileID, FileUniqueID: fileID + "_unique", Width: 1280, Height: 960},
	}
	return b
}

// WithDocument attaches a file.
func (b *UpdateBuilder) WithDocument(fileID, fileName, mimeType string) *UpdateBuilder {
	b.ensureMessage().Document = &models.Document{
		FileID:       fileID,
		FileUniqueID: fileID + "_unique",
		FileName:     fileName,
		MimeType:     mimeType,
	}
	return b
}

// Build returns the update.
func (b *UpdateBuilder) Build() *models.Update {
	return b.update
}

// MessageUpdate is a plain text message.
func MessageUpdate(chatID, userID int64, text string) *models.Update {
	return NewUpdateBuilder().WithMessage(chatID, userID, text).Build()
}

// CommandUpdate is a command message such as "/pending".
func CommandUpdate(chatID, userID int64, command string) *models.Update {
	return MessageUpdate(chatID, userID, command)
}

// CallbackQueryUpdate is a button press with a fixed query id.
func CallbackQueryUpdate(chatID, userID int64, messageID int, data string) *models.Update {
	return NewUpdateBuilder().WithCallbackQuery("callback-query-id", chatID, userID, messageID, data).Build()
}

// PhotoUpdate is a message carrying only a photo.
func PhotoUpdate(chatID, userID int64, fileID string) *models.Update {
	return NewUpdateBuilder().WithMessage(chatID, userID, "").WithPhoto(fileID).Build()
}

// DocumentUpdate is a message carrying only a file.
func DocumentUpdate(chatID, userID int64, fileID, fileName, mimeType string) *models.Update {
	return NewUpdateBuilder().WithMessage(chatID, userID, "").WithDocument(fileID, fileName, mimeType).Build()
}
