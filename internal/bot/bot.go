// Package bot is a Telegram front end to studying and practice sessions.
// Telegram user ids are used as user ids, so reminders reach the same chat.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/studysync/internal/apperr"
	"github.com/example/studysync/pkg/models"
)

// botAPI is the part of tgbotapi.BotAPI the bot uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// StudyService is the review item API used by the bot
type StudyService interface {
	AddItem(ctx context.Context, ownerID, itemID string, kind models.ItemKind) (*models.ReviewItem, bool, error)
	Review(ctx context.Context, ownerID, itemID string, quality int) (*models.ReviewItem, error)
	NextItems(ctx context.Context, ownerID string, limit int) ([]models.ReviewItem, error)
	Stats(ctx context.Context, ownerID string) (models.StudyStats, error)
}

// SessionCoordinator is the practice session API used by the bot
type SessionCoordinator interface {
	CreateSession(ctx context.Context, hostUserID string, maxParticipants int) (*models.PracticeSession, error)
	JoinSession(ctx context.Context, code, userID, displayName string) (*models.Participant, error)
	LeaveSession(ctx context.Context, sessionID, userID string) error
	EndSession(ctx context.Context, sessionID, callerUserID string) (*models.PracticeSession, error)
}

// ScoreTracker is the scoring API used by the bot
type ScoreTracker interface {
	ApplyAnswer(ctx context.Context, sessionID, userID string, delta int) (*models.Participant, error)
	Leaderboard(ctx context.Context, sessionID string) ([]models.LeaderboardEntry, error)
}

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Bot represents the Telegram bot application
type Bot struct {
	api         botAPI
	study       StudyService
	coordinator SessionCoordinator
	tracker     ScoreTracker
	config      *BotConfig
	logger      *slog.Logger
}

// New creates a new bot instance over an authorized API client
func New(api botAPI, study StudyService, coordinator SessionCoordinator, tracker ScoreTracker, config *BotConfig, logger *slog.Logger) *Bot {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:         api,
		study:       study,
		coordinator: coordinator,
		tracker:     tracker,
		config:      config,
		logger:      logger,
	}
}

// Run handles updates until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout

	updates := b.api.GetUpdatesChan(updateConfig)
	b.logger.Info("telegram bot started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		msg := update.Message
		if err := b.HandleCommand(ctx, msg); err != nil {
			b.replyError(ctx, msg.Chat.ID, msg.Command(), err)
		}
	case update.Message != nil:
		b.sendText(update.Message.Chat.ID, "I only understand commands. Use /help to see them.")
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if err := b.HandleCallback(ctx, cb); err != nil && cb.Message != nil {
			b.replyError(ctx, cb.Message.Chat.ID, "callback", err)
		}
	}
}

// replyError tells the user what went wrong; unexpected errors are logged and reported generically
func (b *Bot) replyError(ctx context.Context, chatID int64, command string, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		b.sendText(chatID, userMessage(appErr))
		return
	}
	b.logger.ErrorContext(ctx, "bot command failed", "command", command, "chat_id", chatID, "error", err)
	b.sendText(chatID, "Something went wrong, please try again later.")
}

func userMessage(err *apperr.Error) string {
	switch {
	case errors.Is(err, apperr.ErrSessionNotFound):
		return "No active session with that code."
	case errors.Is(err, apperr.ErrSessionFull):
		return "This session is full."
	case errors.Is(err, apperr.ErrParticipantNotFound):
		return "You have not joined this session."
	case errors.Is(err, apperr.ErrItemNotFound):
		return "No such item."
	case errors.Is(err, apperr.ErrUnauthorized):
		return "Only the host can end this session."
	}
	return err.Error()
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send telegram message", "error", err)
	}
}

func userKey(u *tgbotapi.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("user %d", u.ID)
}
