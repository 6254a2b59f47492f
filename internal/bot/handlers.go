package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"moderator/internal/chats"
	"moderator/internal/models"
	"moderator/internal/telegram"
)

// HandleUpdate processes a single update from polling or the webhook
func (b *Bot) HandleUpdate(ctx context.Context, update telegram.Update) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic while handling update",
				zap.Int("update_id", update.UpdateID),
				zap.Any("panic", r),
			)
		}
	}()

	switch {
	case update.MyChatMember != nil:
		b.handleMyChatMember(ctx, update.MyChatMember)
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message, update.WebAppData)
	}
}

// handleMessage processes a single message
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message, webAppData *telegram.WebAppData) {
	if message.Chat == nil {
		return
	}

	if webAppData != nil {
		if message.From == nil {
			return
		}
		// The outcome is reported to the actor by the executor itself
		_ = b.moderator.Handle(ctx, message.Chat.ID, toChatUser(message.From), []byte(webAppData.Data))
		return
	}

	if ShouldObserve(message) {
		b.chats.ObserveManaged(ctx, message.Chat.ID, models.RecentMember{
			UserID:    message.From.ID,
			FirstName: message.From.FirstName,
			LastName:  message.From.LastName,
			Username:  message.From.UserName,
		})
		return
	}

	if !message.IsCommand() {
		return
	}

	switch message.Command() {
	case "start", "help":
		b.handleStart(ctx, message)
	case "admin":
		b.handleAdmin(ctx, message)
	default:
		// stay quiet in groups
		if message.Chat.IsPrivate() {
			b.sendMessage(ctx, message.Chat.ID, "Unknown command. Use /start to see available commands.")
		}
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if strings.HasPrefix(query.Data, telegram.CallbackManageChat) {
		b.handleManageChat(ctx, query)
		return
	}

	// Answer the callback query to remove loading state
	b.answerCallback(ctx, query.ID, "", false)
}

// handleMyChatMember keeps the registry in line with the bot's own rank
func (b *Bot) handleMyChatMember(ctx context.Context, update *tgbotapi.ChatMemberUpdated) {
	// a user blocking the bot in private is not a chat to manage
	if update.Chat.IsPrivate() {
		return
	}

	status := models.MemberStatus(update.NewChatMember.Status)
	change, err := b.chats.ApplyMembership(ctx, update.Chat.ID, update.Chat.Title, status)
	if err != nil {
		b.logger.Error("Failed to apply membership change",
			zap.Int64("chat_id", update.Chat.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}

	title := html.EscapeString(change.Title)
	switch change.Transition {
	case chats.TransitionPromoted:
		text := fmt.Sprintf("✅ The control panel for <b>%s</b> is now active. Administrators can open it with /admin in a private chat with me.", title)
		b.sendMessage(ctx, change.ChatID, text)

	case chats.TransitionDemoted:
		if b.options.OwnerID != 0 && change.WasManaged {
			text := fmt.Sprintf("❌ I am no longer an administrator in <b>%s</b>.", title)
			b.sendMessage(ctx, b.options.OwnerID, text)
		}
	}
}

func toChatUser(user *tgbotapi.User) models.ChatUser {
	return models.ChatUser{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.UserName,
		IsBot:     user.IsBot,
	}
}
