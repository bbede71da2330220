package support

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"coachsync/pkg/logger"
)

// Telegram relays support messages into an operator chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram authenticates against the Bot API with token and targets
// chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger.Info("telegram_support_ready", "account", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID}, nil
}

var _ Messenger = (*Telegram)(nil)

func (t *Telegram) Relay(ctx context.Context, userID, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, fmt.Sprintf("Support request from %s:\n\n%s", userID, text))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	logger.Info("support_message_relayed", "user", userID, "length", len(text))
	return nil
}
