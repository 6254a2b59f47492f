package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"moderator/internal/models"
)

// MemberLookup fetches the live membership record of a user in a chat
type MemberLookup interface {
	GetChatMember(ctx context.Context, chatID, userID int64) (models.ChatMember, error)
}

// AdminChecker answers whether a user currently administers a chat.
// Answers are never cached and every failure counts as "not an admin".
type AdminChecker struct {
	members MemberLookup
	timeout time.Duration
	logger  *zap.Logger
}

// NewAdminChecker creates a checker; a non-positive timeout means the caller's context alone bounds the lookup
func NewAdminChecker(members MemberLookup, timeout time.Duration, logger *zap.Logger) *AdminChecker {
	return &AdminChecker{
		members: members,
		timeout: timeout,
		logger:  logger,
	}
}

// IsAdmin reports whether userID is an administrator or the creator of chatID
func (c *AdminChecker) IsAdmin(ctx context.Context, userID, chatID int64) bool {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	member, err := c.members.GetChatMember(ctx, chatID, userID)
	if err != nil {
		c.logger.Warn("Admin check failed, denying",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return false
	}
	return member.Status.IsAdmin()
}
