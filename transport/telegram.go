// Package transport implements the outbound message senders for the chat
// channels the survey runs on.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/m3rciful/surveybot/core/logger"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// TelegramSender delivers texts through the Telegram Bot API.
type TelegramSender struct {
	bot *tele.Bot
}

// NewTelegramSender validates the token against the Bot API and returns a
// sender. A bad token fails here, at startup, rather than on the first reply.
func NewTelegramSender(token string, client *http.Client) (*TelegramSender, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Client: client,
		// Outbound-only: updates arrive over our own webhook route, so the
		// bot never polls.
		Synchronous: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramSender{bot: bot}, nil
}

// Name implements survey.Sender.
func (s *TelegramSender) Name() string { return "telegram" }

// Send implements survey.Sender. The userKey is the decimal chat id.
func (s *TelegramSender) Send(ctx context.Context, userKey, text string) error {
	chatID, err := strconv.ParseInt(userKey, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram send: bad chat id %q: %w", logger.SanitizeLimit(userKey, 64), err)
	}

	start := time.Now()
	_, err = s.bot.Send(&tele.Chat{ID: chatID}, text)
	if err != nil {
		logger.TG.Error("send failed",
			slog.String("event", "send.fail"),
			slog.String("user_key", userKey),
			slog.String("err", Redact(err)),
			slog.String("err_kind", Classify(err)),
			slog.Duration("duration", logger.Took(start)),
		)
		return fmt.Errorf("telegram send: %s", Redact(err))
	}

	logger.TG.Debug("send ok",
		slog.String("event", "send.ok"),
		slog.String("user_key", userKey),
		slog.String("payload", logger.SanitizeLimit(text, 128)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}
