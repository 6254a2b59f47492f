// Package chats owns the state the bot keeps per chat: the persistent
// registry of managed chats and the in-memory recency cache.
package chats

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"moderator/internal/models"
	"moderator/internal/recent"
	"moderator/internal/storage"
)

// Transition is the effect a bot membership change had on the registry
type Transition string

const (
	TransitionPromoted Transition = "promoted"
	TransitionDemoted  Transition = "demoted"
	TransitionIgnored  Transition = "ignored"
)

// Change describes an applied membership change
type Change struct {
	Transition Transition
	ChatID     int64
	// Title is the chat title from the event, or the registered title when
	// the event carried none
	Title string
	// WasManaged reports whether the chat was in the registry before the change
	WasManaged bool
}

// Service is the single owner of chat state
type Service struct {
	registry storage.ChatRegistry
	recent   *recent.Cache
	logger   *zap.Logger
}

// NewService creates the chat state service
func NewService(registry storage.ChatRegistry, cache *recent.Cache, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		recent:   cache,
		logger:   logger,
	}
}

// Managed returns the registry entry of the chat.
// A chat absent from the registry yields storage.ErrNotFound.
func (s *Service) Managed(ctx context.Context, chatID int64) (models.ManagedChat, error) {
	return s.registry.GetChat(ctx, chatID)
}

// List returns every managed chat
func (s *Service) List(ctx context.Context) ([]models.ManagedChat, error) {
	return s.registry.ListChats(ctx)
}

// Observe records that member just posted in the chat
func (s *Service) Observe(chatID int64, member models.RecentMember) {
	s.recent.Observe(chatID, member)
}

// ObserveManaged records the member only while the chat is in the registry,
// so messages arriving after a demotion do not bring the chat's entry back.
// It reports whether the member was recorded.
func (s *Service) ObserveManaged(ctx context.Context, chatID int64, member models.RecentMember) bool {
	if _, err := s.registry.GetChat(ctx, chatID); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to check chat before observing member",
				zap.Int64("chat_id", chatID),
				zap.Error(err),
			)
		}
		return false
	}
	s.recent.Observe(chatID, member)
	return true
}

// Recent returns the members recently seen in the chat, most recent first
func (s *Service) Recent(chatID int64) []models.RecentMember {
	return s.recent.Snapshot(chatID)
}

// ApplyMembership reacts to a change of the bot's own status in a chat.
// Applying the same change twice leaves the same state.
func (s *Service) ApplyMembership(ctx context.Context, chatID int64, title string, status models.MemberStatus) (Change, error) {
	change := Change{ChatID: chatID, Title: title}

	previous, err := s.registry.GetChat(ctx, chatID)
	switch {
	case err == nil:
		change.WasManaged = true
		if change.Title == "" {
			change.Title = previous.Title
		}
	case !errors.Is(err, storage.ErrNotFound):
		s.logger.Warn("Failed to look up chat before membership change",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}

	switch status {
	case models.StatusAdministrator:
		change.Transition = TransitionPromoted
		if err := s.registry.UpsertChat(ctx, models.ManagedChat{ChatID: chatID, Title: change.Title}); err != nil {
			return change, fmt.Errorf("failed to register chat %d: %w", chatID, err)
		}
		s.logger.Info("Chat is now managed",
			zap.Int64("chat_id", chatID),
			zap.String("title", change.Title),
		)

	case models.StatusMember, models.StatusLeft, models.StatusKicked:
		change.Transition = TransitionDemoted
		s.recent.Drop(chatID)
		if err := s.registry.DeleteChat(ctx, chatID); err != nil {
			return change, fmt.Errorf("failed to unregister chat %d: %w", chatID, err)
		}
		s.logger.Info("Chat is no longer managed",
			zap.Int64("chat_id", chatID),
			zap.String("status", string(status)),
		)

	default:
		change.Transition = TransitionIgnored
		s.logger.Debug("Ignoring membership change",
			zap.Int64("chat_id", chatID),
			zap.String("status", string(status)),
		)
	}

	membershipTransitions.WithLabelValues(string(change.Transition)).Inc()
	return change, nil
}

// CachedChats returns the number of chats with recency entries
func (s *Service) CachedChats() int {
	return s.recent.Chats()
}
