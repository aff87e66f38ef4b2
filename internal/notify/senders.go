package notify

import (
	"context"
	"fmt"
	"html"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageAPI is the part of the Telegram client used for delivery.
type MessageAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers push reminders as Telegram messages.
type TelegramSender struct {
	api MessageAPI
}

func NewTelegramSender(api MessageAPI) *TelegramSender {
	return &TelegramSender{api: api}
}

func (s *TelegramSender) Send(_ context.Context, to Recipient, n Notification) error {
	if to.TelegramID == 0 {
		return fmt.Errorf("recipient %s has no telegram chat", to.UserID)
	}
	msg := tgbotapi.NewMessage(to.TelegramID, fmt.Sprintf("🔔 <b>%s</b>\n%s", html.EscapeString(n.Title), html.EscapeString(n.Body)))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// LogSender stands in for channels without a delivery integration yet
// (email, WhatsApp). It only records the notification.
type LogSender struct {
	Channel string
}

func (s LogSender) Send(_ context.Context, to Recipient, n Notification) error {
	log.Printf("[info] %s reminder to user=%s email=%q phone=%q: %s", s.Channel, to.UserID, to.Email, to.Phone, n.Body)
	return nil
}
