// Package telegram implements the messaging transport against the Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender delivers notification messages through a Telegram bot.
type Sender struct {
	api telegramAPI
	log *slog.Logger
}

// New creates a Sender with the given bot token.
func New(token string, log *slog.Logger) (*Sender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Sender{api: api, log: log}, nil
}

// SendMessage sends a plain text message to the given chat.
func (s *Sender) SendMessage(_ context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

// SendPhoto sends an image by URL with a caption to the given chat.
func (s *Sender) SendPhoto(_ context.Context, chatID int64, photoURL, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	photo.Caption = caption
	if _, err := s.api.Send(photo); err != nil {
		return fmt.Errorf("send photo to %d: %w", chatID, err)
	}
	return nil
}
