package bot

import (
	"go.uber.org/zap"

	"moderator/internal/chats"
	"moderator/internal/telegram"
)

// NewBot creates the update router
func NewBot(
	transport telegram.Transport,
	chatService *chats.Service,
	moderator Moderator,
	authorizer Authorizer,
	options Options,
	logger *zap.Logger,
) *Bot {
	return &Bot{
		transport:  transport,
		chats:      chatService,
		moderator:  moderator,
		authorizer: authorizer,
		options:    options,
		logger:     logger,
	}
}
