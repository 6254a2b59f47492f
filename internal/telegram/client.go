package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"moderator/internal/models"
)

const (
	pollTimeoutSeconds = 60
	pollRetryDelay     = 3 * time.Second
)

// Client implements Transport on top of the Bot API.
// Every call is bounded by the configured timeout.
type Client struct {
	api     *tgbotapi.BotAPI
	timeout time.Duration
	logger  *zap.Logger
}

var _ Transport = (*Client)(nil)

// NewClient creates a Bot API client and verifies the token with getMe
func NewClient(token string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	return newClient(token, tgbotapi.APIEndpoint, timeout, logger)
}

// newClient talks to endpoint, a format string taking the token and the method
func newClient(token, endpoint string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	httpClient := &http.Client{
		// long polling holds the connection for pollTimeoutSeconds
		Timeout: timeout + pollTimeoutSeconds*time.Second,
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	return &Client{
		api:     api,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Username returns the bot's own username
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// call runs fn and gives up when ctx or the client timeout expires first.
// fn itself is bounded by the HTTP client timeout.
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn()
		done <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.value, wrapError(r.err)
	}
}

func (c *Client) request(ctx context.Context, config tgbotapi.Chattable) error {
	_, err := call(ctx, c.timeout, func() (*tgbotapi.APIResponse, error) {
		return c.api.Request(config)
	})
	return err
}

func (c *Client) makeRequest(ctx context.Context, endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	return call(ctx, c.timeout, func() (*tgbotapi.APIResponse, error) {
		return c.api.MakeRequest(endpoint, params)
	})
}

func toChatMember(member tgbotapi.ChatMember) models.ChatMember {
	var user models.ChatUser
	if member.User != nil {
		user = models.ChatUser{
			ID:        member.User.ID,
			FirstName: member.User.FirstName,
			LastName:  member.User.LastName,
			Username:  member.User.UserName,
			IsBot:     member.User.IsBot,
		}
	}
	return models.ChatMember{User: user, Status: models.MemberStatus(member.Status)}
}

func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (models.ChatMember, error) {
	member, err := call(ctx, c.timeout, func() (tgbotapi.ChatMember, error) {
		return c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
		})
	})
	if err != nil {
		return models.ChatMember{}, err
	}
	return toChatMember(member), nil
}

func (c *Client) GetChatAdministrators(ctx context.Context, chatID int64) ([]models.ChatMember, error) {
	admins, err := call(ctx, c.timeout, func() ([]tgbotapi.ChatMember, error) {
		return c.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
			ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
		})
	})
	if err != nil {
		return nil, err
	}

	members := make([]models.ChatMember, 0, len(admins))
	for _, admin := range admins {
		members = append(members, toChatMember(admin))
	}
	return members, nil
}

func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) error {
	return c.request(ctx, tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	})
}

func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64, onlyIfBanned bool) error {
	return c.request(ctx, tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     onlyIfBanned,
	})
}

// RestrictChatMember revokes every send permission until the given time
func (c *Client) RestrictChatMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	return c.request(ctx, tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		UntilDate:        until.Unix(),
		Permissions:      &tgbotapi.ChatPermissions{},
	})
}

// SendMessage sends an HTML formatted message
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return c.request(ctx, msg)
}

// SendChatPicker sends one inline button per managed chat
func (c *Client) SendChatPicker(ctx context.Context, chatID int64, text string, chats []models.ManagedChat) error {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, chat := range chats {
		button := tgbotapi.NewInlineKeyboardButtonData(
			chat.Title,
			CallbackManageChat+strconv.FormatInt(chat.ChatID, 10),
		)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	return c.request(ctx, msg)
}

type webAppInfo struct {
	URL string `json:"url"`
}

type webAppButton struct {
	Text   string     `json:"text"`
	WebApp webAppInfo `json:"web_app"`
}

type webAppKeyboard struct {
	Keyboard        [][]webAppButton `json:"keyboard"`
	ResizeKeyboard  bool             `json:"resize_keyboard"`
	OneTimeKeyboard bool             `json:"one_time_keyboard"`
}

// SendWebAppKeyboard sends a reply keyboard with a single Mini App button.
// Only keyboard buttons (not inline ones) let the Mini App call sendData.
func (c *Client) SendWebAppKeyboard(ctx context.Context, chatID int64, text, buttonText, url string) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params["text"] = text
	params["parse_mode"] = tgbotapi.ModeHTML
	err := params.AddInterface("reply_markup", webAppKeyboard{
		Keyboard:        [][]webAppButton{{{Text: buttonText, WebApp: webAppInfo{URL: url}}}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	})
	if err != nil {
		return fmt.Errorf("failed to encode keyboard: %w", err)
	}

	_, err = c.makeRequest(ctx, "sendMessage", params)
	return err
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	callback.ShowAlert = showAlert
	return c.request(ctx, callback)
}

// ProfilePhotoURL returns a download URL of the user's current profile photo,
// or "" when the user has none. The URL embeds the bot token.
func (c *Client) ProfilePhotoURL(ctx context.Context, userID int64) (string, error) {
	photos, err := call(ctx, c.timeout, func() (tgbotapi.UserProfilePhotos, error) {
		return c.api.GetUserProfilePhotos(tgbotapi.UserProfilePhotosConfig{UserID: userID, Limit: 1})
	})
	if err != nil {
		return "", err
	}
	if len(photos.Photos) == 0 || len(photos.Photos[0]) == 0 {
		return "", nil
	}

	sizes := photos.Photos[0]
	largest := sizes[len(sizes)-1]
	return call(ctx, c.timeout, func() (string, error) {
		return c.api.GetFileDirectURL(largest.FileID)
	})
}

// Poll long-polls getUpdates and hands every update to handle until ctx is done
func (c *Client) Poll(ctx context.Context, handle func(context.Context, Update)) error {
	c.logger.Info("Starting bot in polling mode")

	// Remove webhook (if any was set previously)
	if err := c.request(ctx, tgbotapi.DeleteWebhookConfig{}); err != nil {
		c.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	offset := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		params := tgbotapi.Params{}
		params.AddNonZero("offset", offset)
		params.AddNonZero("timeout", pollTimeoutSeconds)
		if err := params.AddInterface("allowed_updates", AllowedUpdates); err != nil {
			return fmt.Errorf("failed to encode allowed updates: %w", err)
		}

		resp, err := call(ctx, c.timeout+pollTimeoutSeconds*time.Second, func() (*tgbotapi.APIResponse, error) {
			return c.api.MakeRequest("getUpdates", params)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("Failed to get updates, retrying", zap.Error(err))
			if !sleep(ctx, pollRetryDelay) {
				return nil
			}
			continue
		}

		updates, next, err := c.decodeUpdates(resp.Result, offset)
		if err != nil {
			c.logger.Error("Failed to decode updates, retrying", zap.Error(err))
			if !sleep(ctx, pollRetryDelay) {
				return nil
			}
			continue
		}
		offset = next

		for _, update := range updates {
			handle(ctx, update)
		}
	}
}

// decodeUpdates decodes one getUpdates batch and returns the offset of the next poll.
// Updates that fail to decode are skipped; the offset still moves past them.
// An error means the batch made no progress at all.
func (c *Client) decodeUpdates(result json.RawMessage, offset int) ([]Update, int, error) {
	var batch []json.RawMessage
	if err := json.Unmarshal(result, &batch); err != nil {
		return nil, offset, fmt.Errorf("failed to decode update batch: %w", err)
	}

	next := offset
	updates := make([]Update, 0, len(batch))
	for _, raw := range batch {
		var head struct {
			UpdateID int `json:"update_id"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			c.logger.Warn("Skipping update without id", zap.Error(err))
			continue
		}
		if head.UpdateID >= next {
			next = head.UpdateID + 1
		}

		var update Update
		if err := json.Unmarshal(raw, &update); err != nil {
			c.logger.Warn("Skipping undecodable update",
				zap.Int("update_id", head.UpdateID),
				zap.Error(err),
			)
			continue
		}
		updates = append(updates, update)
	}

	if len(batch) > 0 && next == offset {
		return nil, offset, fmt.Errorf("no update in a batch of %d carries a new update_id", len(batch))
	}
	return updates, next, nil
}

// sleep waits for d and reports false when ctx ends first
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// SetWebhook registers baseURL+path as the update endpoint
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) error {
	c.logger.Info("Setting up webhook", zap.String("webhook_url", webhookURL))

	params := tgbotapi.Params{}
	params["url"] = webhookURL
	params.AddNonZero("max_connections", 40)
	params.AddNonEmpty("secret_token", secret)
	if err := params.AddInterface("allowed_updates", AllowedUpdates); err != nil {
		return fmt.Errorf("failed to encode allowed updates: %w", err)
	}

	if _, err := c.makeRequest(ctx, "setWebhook", params); err != nil {
		c.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", webhookURL))
		return err
	}

	// Get webhook info to verify
	info, err := call(ctx, c.timeout, func() (tgbotapi.WebhookInfo, error) {
		return c.api.GetWebhookInfo()
	})
	if err != nil {
		c.logger.Warn("Failed to get webhook info", zap.Error(err))
	} else {
		c.logger.Info("Webhook set successfully",
			zap.String("url", info.URL),
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}
	return nil
}
