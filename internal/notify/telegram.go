package notify

import (
	"context"
	"fmt"

	"hotelier/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Telegram caps messages at 4096 chars; leave headroom.
const maxMessageLength = 4000

// TelegramSender pushes notifications to the staff chat. It satisfies
// worker.Sender.
type TelegramSender struct {
	bot    domain.TelegramSender
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramSender(bot domain.TelegramSender, chatID int64, logger *zerolog.Logger) *TelegramSender {
	return &TelegramSender{bot: bot, chatID: chatID, logger: logger}
}

func (s *TelegramSender) SendText(ctx context.Context, text string) error {
	if s.chatID == 0 {
		return fmt.Errorf("staff chat id is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(text) > maxMessageLength {
		text = text[:maxMessageLength]
	}

	msg := tgbotapi.NewMessage(s.chatID, text)
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	s.logger.Debug().Int64("chat_id", s.chatID).Msg("notification delivered")
	return nil
}
