package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/studysync/internal/apperr"
	"github.com/example/studysync/pkg/models"
)

const helpText = `Study commands:
/add <item> [flashcard|question] - start studying an item
/due - list items due for review
/review <item> <quality 0-5> - record a review
/stats - show your progress

Practice sessions:
/newsession <max participants> - host a session
/join <code> [name] - join a session by code
/answer <session> <points> - add points to your score
/board <session> - show the leaderboard
/leave <session> - leave a session
/end <session> - end a session you host`

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message == nil || message.From == nil || message.Chat == nil {
		return fmt.Errorf("invalid message: required fields are missing")
	}
	args := strings.Fields(message.CommandArguments())

	switch message.Command() {
	case "start", "help":
		b.sendText(message.Chat.ID, helpText)
		return nil
	case "add":
		return b.handleAdd(ctx, message, args)
	case "due":
		return b.handleDue(ctx, message)
	case "review":
		return b.handleReview(ctx, message, args)
	case "stats":
		return b.handleStats(ctx, message)
	case "newsession":
		return b.handleNewSession(ctx, message, args)
	case "join":
		return b.handleJoin(ctx, message, args)
	case "answer":
		return b.handleAnswer(ctx, message, args)
	case "board":
		return b.handleBoard(ctx, message, args)
	case "leave":
		return b.handleLeave(ctx, message, args)
	case "end":
		return b.handleEnd(ctx, message, args)
	}
	b.sendText(message.Chat.ID, "Unknown command. Use /help to see what I can do.")
	return nil
}

func (b *Bot) handleAdd(ctx context.Context, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return apperr.Invalid("usage: /add <item> [flashcard|question]")
	}
	var kind models.ItemKind
	if len(args) == 2 {
		kind = models.ItemKind(strings.ToLower(args[1]))
	}
	item, created, err := b.study.AddItem(ctx, userKey(message.From), args[0], kind)
	if err != nil {
		return err
	}
	if !created {
		b.sendText(message.Chat.ID, fmt.Sprintf("%s is already scheduled for %s.", item.ItemID, item.NextReviewDate.Format("2006-01-02")))
		return nil
	}
	b.sendText(message.Chat.ID, fmt.Sprintf("Added %s (%s). It is due now.", item.ItemID, item.ItemKind))
	return nil
}

func (b *Bot) handleDue(ctx context.Context, message *tgbotapi.Message) error {
	items, err := b.study.NextItems(ctx, userKey(message.From), b.config.DueListLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		b.sendText(message.Chat.ID, "Nothing is due. Come back later!")
		return nil
	}

	var sb strings.Builder
	sb.WriteString("Due for review:\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, item.ItemID, item.ItemKind)
	}
	sb.WriteString("\nRate the first one:")

	msg := tgbotapi.NewMessage(message.Chat.ID, sb.String())
	msg.ReplyMarkup = createKeyboard(qualityButtons(items[0].ItemID))
	b.send(msg)
	return nil
}

// qualityButtons offers the six SM-2 grades for an item
func qualityButtons(itemID string) [][]MenuButton {
	row := make([]MenuButton, 0, 6)
	for q := 0; q <= 5; q++ {
		row = append(row, MenuButton{
			Text:         strconv.Itoa(q),
			CallbackData: fmt.Sprintf("review:%d:%s", q, itemID),
		})
	}
	return [][]MenuButton{row}
}

func (b *Bot) handleReview(ctx context.Context, message *tgbotapi.Message, args []string) error {
	if len(args) != 2 {
		return apperr.Invalid("usage: /review <item> <quality 0-5>")
	}
	quality, err := strconv.Atoi(args[1])
	if err != nil {
		return apperr.Invalid("quality must be a number from 0 to 5")
	}
	return b.review(ctx, message.From, message.Chat.ID, args[0], quality)
}

func (b *Bot) review(ctx context.Context, user *tgbotapi.User, chatID int64, itemID string, quality int) error {
	item, err := b.study.Review(ctx, userKey(user), itemID, quality)
	if err != nil {
		return err
	}
	b.sendText(chatID, fmt.Sprintf("%s: next review on %s (in %d day(s)), easiness %.2f",
		item.ItemID, item.NextReviewDate.Format("2006-01-02"), item.IntervalDays, item.EasinessFactor))
	return nil
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) error {
	stats, err := b.study.Stats(ctx, userKey(message.From))
	if err != nil {
		return err
	}
	b.sendText(message.Chat.ID, fmt.Sprintf(
		"Items: %d\nDue today: %d\nReviewed today: %d\nMastered: %d\nAverage easiness: %.2f",
		stats.TotalItems, stats.DueToday, stats.ReviewedToday, stats.MasteredItems, stats.AverageEasiness))
	return nil
}

func (b *Bot) handleNewSession(ctx context.Context, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return apperr.Invalid("usage: /newsession <max participants>")
	}
	maxParticipants, err := strconv.Atoi(args[0])
	if err != nil {
		return apperr.Invalid("max participants must be a number")
	}
	session, err := b.coordinator.CreateSession(ctx, userKey(message.From), maxParticipants)
	if err != nil {
		return err
	}
	b.sendText(message.Chat.ID, fmt.Sprintf("Session created. Share the code %s\nSession id: %s",
		session.SessionCode, session.SessionID))
	return nil
}

func (b *Bot) handleJoin(ctx context.Context, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		return apperr.Invalid("usage: /join <code> [name]")
	}
	name := displayName(message.From)
	if len(args) > 1 {
		name = strings.Join(args[1:], " ")
	}
	p, err := b.coordinator.JoinSession(ctx, args[0], userKey(message.From), name)
	if err != nil {
		return err
	}
	b.sendText(message.Chat.ID, fmt.Sprintf("Joined as %s. Score: %d\nSession id: %s", p.DisplayName, p.Score, p.SessionID))
	return nil
}

func (b *Bot) handleAnswer(ctx context.Context, message *tgbotapi.Message, args []string) error {
	if len(args) != 2 {
		return apperr.Invalid("usage: /answer <session> <points>")
	}
	delta, err := strconv.Atoi(args[1])
	if err != nil {
		return apperr.Invalid("points must be a whole number")
	}
	p, err := b.tracker.ApplyAnswer(ctx, args[0], userKey(message.From), delta)
	if err != nil {
		return err
	}
	b.sendText(message.Chat.ID, fmt.Sprintf("Your score: %d", p.Score))
	return nil
}

func (b *Bot) handleBoard(ctx context.Context, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return apperr.Invalid("usage: /board <session>")
	}
	entries, err := b.tracker.Leaderboard(ctx, args[0])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		b.sendText(message.Chat.ID, "Nobody has joined yet.")
		return nil
	}
	var sb strings.Builder
	for _, e := range entries {
		marker := ""
		if e.Active {
			marker = " •"
		}
		fmt.Fprintf(&sb, "%d. %s - %d%s\n", e.Rank, e.DisplayName, e.Score, marker)
	}
	b.sendText(message.Chat.ID, sb.String())
	return nil
}

func (b *Bot) handleLeave(ctx context.Context, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return apperr.Invalid("usage: /leave <session>")
	}
	if err := b.coordinator.LeaveSession(ctx, args[0], userKey(message.From)); err != nil {
		return err
	}
	b.sendText(message.Chat.ID, "You left the session.")
	return nil
}

func (b *Bot) handleEnd(ctx context.Context, message *tgbotapi.Message, args []string) error {
	if len(args) != 1 {
		return apperr.Invalid("usage: /end <session>")
	}
	if _, err := b.coordinator.EndSession(ctx, args[0], userKey(message.From)); err != nil {
		return err
	}
	b.sendText(message.Chat.ID, "Session ended.")
	return nil
}

// HandleCallback handles inline keyboard presses
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.From == nil || callback.Message == nil || callback.Message.Chat == nil {
		return fmt.Errorf("invalid callback: required fields are missing")
	}
	// Убираем "часики" на кнопке
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Warn("failed to answer callback", "error", err)
	}

	parts := strings.SplitN(callback.Data, ":", 3)
	if len(parts) != 3 || parts[0] != "review" {
		return apperr.Invalid("unknown button %q", callback.Data)
	}
	quality, err := strconv.Atoi(parts[1])
	if err != nil {
		return apperr.Invalid("unknown button %q", callback.Data)
	}
	return b.review(ctx, callback.From, callback.Message.Chat.ID, parts[2], quality)
}
