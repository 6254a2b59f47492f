package bot

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"moderator/internal/chats"
	"moderator/internal/models"
	"moderator/internal/telegram"
)

// Authorizer answers whether a user administers a chat
type Authorizer interface {
	IsAdmin(ctx context.Context, userID, chatID int64) bool
}

// Moderator executes moderation payloads sent from the web panel
type Moderator interface {
	Handle(ctx context.Context, replyChatID int64, actor models.ChatUser, payload []byte) error
}

// Updater delivers updates by long polling or registers a webhook
type Updater interface {
	Poll(ctx context.Context, handle func(context.Context, telegram.Update)) error
	SetWebhook(ctx context.Context, url, secret string) error
}

// Options holds the bot settings taken from configuration
type Options struct {
	WebAppURL string
	// OwnerID receives a private notice when the bot loses admin rank; 0 disables it
	OwnerID int64
}

// Bot routes platform updates to the chat state service and the moderation executor
type Bot struct {
	transport  telegram.Transport
	chats      *chats.Service
	moderator  Moderator
	authorizer Authorizer
	options    Options
	logger     *zap.Logger

	// inflight tracks updates processed outside the caller's goroutine
	inflight sync.WaitGroup
}
