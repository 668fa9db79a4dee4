package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegramNotify(t *testing.T) {
	fake := &fakeSender{}
	n := &Telegram{api: fake, logger: slog.Default()}

	require.NoError(t, n.Notify(context.Background(), "123456", "5 cards are due"))

	require.Len(t, fake.sent, 1)
	assert.Equal(t, int64(123456), fake.sent[0].ChatID)
	assert.Equal(t, "5 cards are due", fake.sent[0].Text)
}

func TestTelegramNotifyNonNumericUser(t *testing.T) {
	fake := &fakeSender{}
	n := &Telegram{api: fake, logger: slog.Default()}

	err := n.Notify(context.Background(), "user-abc", "hi")

	assert.ErrorIs(t, err, ErrUnknownRecipient)
	assert.Empty(t, fake.sent)
}

func TestTelegramNotifySendFailure(t *testing.T) {
	boom := errors.New("network down")
	n := &Telegram{api: &fakeSender{err: boom}, logger: slog.Default()}

	err := n.Notify(context.Background(), "42", "hi")

	assert.ErrorIs(t, err, boom)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Notify(context.Background(), "u1", "hello"))

	assert.Equal(t, []Message{{UserID: "u1", Text: "hello"}}, r.Messages())

	r.Err = errors.New("down")
	assert.Error(t, r.Notify(context.Background(), "u1", "again"))
	assert.Len(t, r.Messages(), 1)
}
