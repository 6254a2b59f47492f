package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ShouldObserve reports whether a message marks its sender as recently active.
// Private chats, bots, commands and messages without a sender are skipped.
func ShouldObserve(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil || message.From == nil {
		return false
	}
	if message.Chat.IsPrivate() || message.From.IsBot {
		return false
	}
	if message.IsCommand() || strings.HasPrefix(message.Text, "/") {
		return false
	}
	return true
}

// sendMessage sends text and logs failures; notices never fail the caller
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	if err := b.transport.SendMessage(ctx, chatID, text); err != nil {
		b.logger.Warn("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

func (b *Bot) answerCallback(ctx context.Context, callbackID, text string, showAlert bool) {
	if err := b.transport.AnswerCallback(ctx, callbackID, text, showAlert); err != nil {
		b.logger.Warn("Failed to answer callback query", zap.Error(err))
	}
}
