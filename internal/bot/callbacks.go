package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"moderator/internal/storage"
	"moderator/internal/telegram"
)

// handleManageChat opens the web panel for a chat picked from /admin
func (b *Bot) handleManageChat(ctx context.Context, query *tgbotapi.CallbackQuery) {
	data := strings.TrimPrefix(query.Data, telegram.CallbackManageChat)
	chatID, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		b.logger.Warn("Invalid manage chat callback", zap.String("callback_data", query.Data))
		b.answerCallback(ctx, query.ID, "Unknown chat.", true)
		return
	}

	chat, err := b.chats.Managed(ctx, chatID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			b.logger.Error("Failed to load chat", zap.Int64("chat_id", chatID), zap.Error(err))
			b.answerCallback(ctx, query.ID, "Something went wrong, please try again.", true)
			return
		}
		b.answerCallback(ctx, query.ID, "I no longer manage this group.", true)
		return
	}

	if !b.authorizer.IsAdmin(ctx, query.From.ID, chatID) {
		b.logger.Info("Panel access denied",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", query.From.ID),
		)
		b.answerCallback(ctx, query.ID, "Access denied. You are not an administrator of this group.", true)
		return
	}

	b.answerCallback(ctx, query.ID, "", false)

	panelURL, err := PanelURL(b.options.WebAppURL, chatID)
	if err != nil {
		b.logger.Error("Invalid web app URL", zap.Error(err))
		return
	}

	text := fmt.Sprintf("Managing <b>%s</b>. Use the button below to open the panel.", html.EscapeString(chat.Title))
	buttonText := fmt.Sprintf("🚀 Open panel for %s", chat.Title)
	if err := b.transport.SendWebAppKeyboard(ctx, query.From.ID, text, buttonText, panelURL); err != nil {
		b.logger.Error("Failed to send panel button",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", query.From.ID),
			zap.Error(err),
		)
	}
}

// PanelURL adds the chat_id query parameter to the web app URL
func PanelURL(webAppURL string, chatID int64) (string, error) {
	u, err := url.Parse(webAppURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse web app url: %w", err)
	}
	query := u.Query()
	query.Set("chat_id", strconv.FormatInt(chatID, 10))
	u.RawQuery = query.Encode()
	return u.String(), nil
}
