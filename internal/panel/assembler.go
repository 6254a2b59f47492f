// Package panel builds the member listing shown by the web panel.
package panel

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"moderator/internal/models"
	"moderator/internal/storage"
)

// ErrNotManaged is returned for chats absent from the registry
var ErrNotManaged = errors.New("chat is not managed")

const photoConcurrency = 8

// ChatSource provides the registry entry and recency entries of a chat
type ChatSource interface {
	Managed(ctx context.Context, chatID int64) (models.ManagedChat, error)
	Recent(chatID int64) []models.RecentMember
}

// Platform provides the live data the panel needs from the transport
type Platform interface {
	GetChatAdministrators(ctx context.Context, chatID int64) ([]models.ChatMember, error)
	ProfilePhotoURL(ctx context.Context, userID int64) (string, error)
}

// Assembler composes registry, admins, recency cache and ban ledger into PanelData
type Assembler struct {
	chats    ChatSource
	platform Platform
	ledger   storage.BanLedger
	photos   bool
	logger   *zap.Logger
}

// NewAssembler creates an assembler; withPhotos adds profile photo URLs
func NewAssembler(chats ChatSource, platform Platform, ledger storage.BanLedger, withPhotos bool, logger *zap.Logger) *Assembler {
	return &Assembler{
		chats:    chats,
		platform: platform,
		ledger:   ledger,
		photos:   withPhotos,
		logger:   logger,
	}
}

// Assemble returns the chat title and its members: administrators first in
// platform order, then recently active members most recent first.
// The caller must already be authorized for the chat.
func (a *Assembler) Assemble(ctx context.Context, chatID int64) (models.PanelData, error) {
	chat, err := a.chats.Managed(ctx, chatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.PanelData{}, ErrNotManaged
		}
		return models.PanelData{}, fmt.Errorf("failed to load chat: %w", err)
	}

	admins, err := a.platform.GetChatAdministrators(ctx, chatID)
	if err != nil {
		return models.PanelData{}, fmt.Errorf("failed to get administrators: %w", err)
	}

	bans, err := a.ledger.ListBans(ctx, chatID)
	if err != nil {
		return models.PanelData{}, fmt.Errorf("failed to list bans: %w", err)
	}
	banned := make(map[int64]bool, len(bans))
	for _, ban := range bans {
		banned[ban.UserID] = true
	}

	members := make([]models.PanelMember, 0, len(admins))
	seen := make(map[int64]bool, len(admins))
	for _, admin := range admins {
		if admin.User.IsBot || seen[admin.User.ID] {
			continue
		}
		seen[admin.User.ID] = true
		members = append(members, models.PanelMember{
			ID:        admin.User.ID,
			FirstName: admin.User.FirstName,
			LastName:  admin.User.LastName,
			Username:  admin.User.Username,
			IsAdmin:   true,
			IsBanned:  banned[admin.User.ID],
		})
	}

	for _, member := range a.chats.Recent(chatID) {
		if seen[member.UserID] {
			continue
		}
		seen[member.UserID] = true
		members = append(members, models.PanelMember{
			ID:        member.UserID,
			FirstName: member.FirstName,
			LastName:  member.LastName,
			Username:  member.Username,
			IsBanned:  banned[member.UserID],
		})
	}

	if a.photos {
		a.attachPhotos(ctx, members)
	}

	return models.PanelData{ChatTitle: chat.Title, Members: members}, nil
}

// attachPhotos fills PhotoURL in place; a failed lookup leaves it empty
func (a *Assembler) attachPhotos(ctx context.Context, members []models.PanelMember) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(photoConcurrency)

	for i := range members {
		member := &members[i]
		g.Go(func() error {
			url, err := a.platform.ProfilePhotoURL(ctx, member.ID)
			if err != nil {
				a.logger.Debug("Failed to fetch profile photo",
					zap.Int64("user_id", member.ID),
					zap.Error(err),
				)
				return nil
			}
			member.PhotoURL = url
			return nil
		})
	}
	_ = g.Wait()
}
