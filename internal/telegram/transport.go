// Package telegram adapts the Bot API client to the operations the moderator needs.
package telegram

import (
	"context"
	"time"

	"moderator/internal/models"
)

// Transport is the full set of platform operations used by the bot.
// Consumers depend on the narrower interfaces they declare themselves.
type Transport interface {
	GetChatMember(ctx context.Context, chatID, userID int64) (models.ChatMember, error)
	GetChatAdministrators(ctx context.Context, chatID int64) ([]models.ChatMember, error)
	BanChatMember(ctx context.Context, chatID, userID int64) error
	UnbanChatMember(ctx context.Context, chatID, userID int64, onlyIfBanned bool) error
	RestrictChatMember(ctx context.Context, chatID, userID int64, until time.Time) error
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendChatPicker(ctx context.Context, chatID int64, text string, chats []models.ManagedChat) error
	SendWebAppKeyboard(ctx context.Context, chatID int64, text, buttonText, url string) error
	AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error
	ProfilePhotoURL(ctx context.Context, userID int64) (string, error)
}

// CallbackManageChat prefixes the callback data of chat picker buttons
const CallbackManageChat = "manage_chat_"

// AllowedUpdates lists the update kinds the bot subscribes to
var AllowedUpdates = []string{"message", "callback_query", "my_chat_member"}
