package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrUnknownRecipient is returned when a user id cannot be mapped to a Telegram chat
var ErrUnknownRecipient = errors.New("notify: user has no telegram chat")

// sender is the part of tgbotapi.BotAPI used for delivery
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers messages through a Telegram bot.
// User ids are expected to be numeric Telegram user ids, which equal the private chat id.
type Telegram struct {
	api    sender
	logger *slog.Logger
}

// NewTelegram returns a notifier sending through an authorized bot
func NewTelegram(api *tgbotapi.BotAPI, logger *slog.Logger) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telegram{api: api, logger: logger}
}

// Notify implements Notifier.
func (t *Telegram) Notify(ctx context.Context, userID string, message string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownRecipient, userID)
	}

	msg := tgbotapi.NewMessage(chatID, message)
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to user %s: %w", userID, err)
	}
	t.logger.Debug("sent telegram notification", "user_id", userID)
	return nil
}

var _ Notifier = (*Telegram)(nil)
