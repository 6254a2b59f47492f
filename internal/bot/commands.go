package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// handleStart shows welcome message and available commands
func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	text := `👋 Hi! I help administrators moderate their groups.

Make me an administrator in your group, then use /admin here to open the control panel.

Available commands:
/admin - Choose a group to manage
/help - Show this message`

	b.sendMessage(ctx, message.Chat.ID, text)
}

// handleAdmin lists the managed chats. Rights are checked when a chat is picked.
func (b *Bot) handleAdmin(ctx context.Context, message *tgbotapi.Message) {
	if !message.Chat.IsPrivate() {
		b.sendMessage(ctx, message.Chat.ID, "Please use /admin in a private chat with me.")
		return
	}

	managed, err := b.chats.List(ctx)
	if err != nil {
		b.logger.Error("Failed to list managed chats", zap.Error(err))
		b.sendMessage(ctx, message.Chat.ID, "❌ Could not load the list of groups. Please try again later.")
		return
	}

	if len(managed) == 0 {
		b.sendMessage(ctx, message.Chat.ID, "I do not manage any groups yet. Make me an administrator in a group and it will appear here.")
		return
	}

	text := "Choose a group to manage. The panel opens only for administrators of the selected group:"
	if err := b.transport.SendChatPicker(ctx, message.Chat.ID, text, managed); err != nil {
		b.logger.Error("Failed to send chat picker",
			zap.Int64("chat_id", message.Chat.ID),
			zap.Error(err),
		)
	}
}
