package storage

import (
	"context"
	"errors"

	"moderator/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// ChatRegistry persists the chats where the bot is an administrator
type ChatRegistry interface {
	// UpsertChat inserts the chat or updates its title
	UpsertChat(ctx context.Context, chat models.ManagedChat) error
	// DeleteChat removes the chat; deleting an absent chat is not an error
	DeleteChat(ctx context.Context, chatID int64) error
	// GetChat returns ErrNotFound for chats that are not managed
	GetChat(ctx context.Context, chatID int64) (models.ManagedChat, error)
	ListChats(ctx context.Context) ([]models.ManagedChat, error)
}

// BanLedger persists the local shadow of bans issued through the bot
type BanLedger interface {
	// RecordBan inserts the record unless one already exists for (chat, user);
	// a second insert under the same key is a no-op, not an error
	RecordBan(ctx context.Context, record models.BanRecord) error
	// ClearBan removes the record for (chat, user) if present
	ClearBan(ctx context.Context, chatID, userID int64) error
	IsBanned(ctx context.Context, chatID, userID int64) (bool, error)
	ListBans(ctx context.Context, chatID int64) ([]models.BanRecord, error)
}

// Storage defines the interface for data storage operations
type Storage interface {
	ChatRegistry
	BanLedger

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
