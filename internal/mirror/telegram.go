package mirror

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// telegramTextLimit is the Bot API message size limit.
const telegramTextLimit = 4096

// TelegramSender posts plain-text messages to one chat (and optional forum thread).
type TelegramSender struct {
	bot      *tele.Bot
	chat     *tele.Chat
	threadID int
}

func NewTelegramSender(token string, chatID int64, threadID int) (*TelegramSender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	// Offline skips getMe at construction; the first send surfaces bad tokens.
	b, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: b, chat: &tele.Chat{ID: chatID}, threadID: threadID}, nil
}

func (t *TelegramSender) Send(ctx context.Context, text string) error {
	if len(text) > telegramTextLimit {
		text = text[:telegramTextLimit-3] + "..."
	}
	errCh := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(t.chat, text, &tele.SendOptions{
			DisableWebPagePreview: true,
			ThreadID:              t.threadID,
		})
		errCh <- err
	}()
	// telebot has no per-call context; bound the wait instead.
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(15 * time.Second):
		return context.DeadlineExceeded
	}
}
