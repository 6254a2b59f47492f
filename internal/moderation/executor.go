// Package moderation executes ban, kick, mute and warn requests coming from the web panel.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"time"

	"go.uber.org/zap"

	"moderator/internal/models"
	"moderator/internal/storage"
	"moderator/internal/telegram"
)

// DefaultMuteDuration bounds a mute when no duration is configured
const DefaultMuteDuration = time.Hour

// ChatGate tells whether the bot manages a chat
type ChatGate interface {
	Managed(ctx context.Context, chatID int64) (models.ManagedChat, error)
}

// Authorizer answers whether a user administers a chat
type Authorizer interface {
	IsAdmin(ctx context.Context, userID, chatID int64) bool
}

// Platform is the subset of the transport the executor drives
type Platform interface {
	GetChatMember(ctx context.Context, chatID, userID int64) (models.ChatMember, error)
	BanChatMember(ctx context.Context, chatID, userID int64) error
	UnbanChatMember(ctx context.Context, chatID, userID int64, onlyIfBanned bool) error
	RestrictChatMember(ctx context.Context, chatID, userID int64, until time.Time) error
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Result describes a completed moderation action
type Result struct {
	Request    Request
	ChatTitle  string
	TargetName string
	// MutedUntil is set for mute
	MutedUntil time.Time
}

// Executor drives a request through authorization, the platform and the ban ledger
type Executor struct {
	chats        ChatGate
	authorizer   Authorizer
	platform     Platform
	ledger       storage.BanLedger
	muteDuration time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewExecutor creates an executor; a non-positive muteDuration means DefaultMuteDuration
func NewExecutor(
	chats ChatGate,
	authorizer Authorizer,
	platform Platform,
	ledger storage.BanLedger,
	muteDuration time.Duration,
	logger *zap.Logger,
) *Executor {
	if muteDuration <= 0 {
		muteDuration = DefaultMuteDuration
	}
	return &Executor{
		chats:        chats,
		authorizer:   authorizer,
		platform:     platform,
		ledger:       ledger,
		muteDuration: muteDuration,
		logger:       logger,
		now:          time.Now,
	}
}

// Execute runs an already parsed request. Nothing is changed on the platform
// or in the ledger unless the chat is managed and the actor administers it.
func (e *Executor) Execute(ctx context.Context, req Request) (Result, error) {
	result := Result{Request: req}

	chat, err := e.chats.Managed(ctx, req.ChatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return result, &Error{Kind: KindNotManaged}
		}
		return result, &Error{Kind: KindInternal, Err: fmt.Errorf("failed to load chat: %w", err)}
	}
	result.ChatTitle = chat.Title

	if !e.authorizer.IsAdmin(ctx, req.ActorID, req.ChatID) {
		return result, &Error{Kind: KindForbidden}
	}

	result.TargetName = e.resolveName(ctx, req.ChatID, req.TargetID)

	switch req.Action {
	case ActionBan:
		err = e.ban(ctx, req)
	case ActionKick:
		err = e.kick(ctx, req)
	case ActionMute:
		result.MutedUntil, err = e.mute(ctx, req)
	case ActionWarn:
		err = e.warn(ctx, req, result.TargetName)
	default:
		return result, &Error{Kind: KindUnknownAction, Reason: string(req.Action)}
	}
	if err != nil {
		return result, &Error{Kind: KindPlatform, Reason: telegram.Reason(err), Err: err}
	}
	return result, nil
}

// resolveName degrades to the numeric id when the lookup fails
func (e *Executor) resolveName(ctx context.Context, chatID, userID int64) string {
	member, err := e.platform.GetChatMember(ctx, chatID, userID)
	if err != nil {
		e.logger.Debug("Failed to resolve user name",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return strconv.FormatInt(userID, 10)
	}
	member.User.ID = userID
	return member.User.DisplayName()
}

func (e *Executor) ban(ctx context.Context, req Request) error {
	if err := e.platform.BanChatMember(ctx, req.ChatID, req.TargetID); err != nil {
		return err
	}

	record := models.BanRecord{
		ChatID:   req.ChatID,
		UserID:   req.TargetID,
		BannedAt: e.now(),
		AdminID:  req.ActorID,
	}
	if err := e.ledger.RecordBan(ctx, record); err != nil {
		// the platform ban stands; the panel flag stays stale
		e.logger.Error("Failed to record ban",
			zap.Int64("chat_id", req.ChatID),
			zap.Int64("user_id", req.TargetID),
			zap.Error(err),
		)
	}
	return nil
}

// kick removes the target with a transient ban and never leaves a ban record
func (e *Executor) kick(ctx context.Context, req Request) error {
	if err := e.platform.BanChatMember(ctx, req.ChatID, req.TargetID); err != nil {
		return err
	}
	if err := e.platform.UnbanChatMember(ctx, req.ChatID, req.TargetID, true); err != nil {
		e.logger.Error("Kick left the user banned",
			zap.Int64("chat_id", req.ChatID),
			zap.Int64("user_id", req.TargetID),
			zap.Error(err),
		)
		return err
	}

	if err := e.ledger.ClearBan(ctx, req.ChatID, req.TargetID); err != nil {
		e.logger.Error("Failed to clear ban record",
			zap.Int64("chat_id", req.ChatID),
			zap.Int64("user_id", req.TargetID),
			zap.Error(err),
		)
	}
	return nil
}

func (e *Executor) mute(ctx context.Context, req Request) (time.Time, error) {
	until := e.now().Add(e.muteDuration)
	if err := e.platform.RestrictChatMember(ctx, req.ChatID, req.TargetID, until); err != nil {
		return time.Time{}, err
	}
	return until, nil
}

func (e *Executor) warn(ctx context.Context, req Request, targetName string) error {
	text := fmt.Sprintf("⚠️ <b>%s</b>, you have received a warning from the administrators.", html.EscapeString(targetName))
	return e.platform.SendMessage(ctx, req.ChatID, text)
}

// Handle parses payload sent by actor and executes it. The outcome is
// reported to replyChatID; successful actions are also announced in the
// moderated chat. Failed notifications never undo a completed action.
func (e *Executor) Handle(ctx context.Context, replyChatID int64, actor models.ChatUser, payload []byte) error {
	req, err := ParseRequest(actor.ID, payload)
	if err != nil {
		e.logger.Debug("Rejected moderation payload",
			zap.Int64("actor_id", actor.ID),
			zap.Error(err),
		)
		actionsTotal.WithLabelValues("invalid", KindOf(err).String()).Inc()
		e.reportFailure(ctx, replyChatID, err)
		return err
	}

	logger := e.logger.With(
		zap.String("action", string(req.Action)),
		zap.Int64("chat_id", req.ChatID),
		zap.Int64("actor_id", req.ActorID),
		zap.Int64("target_id", req.TargetID),
	)

	result, err := e.Execute(ctx, req)
	if err != nil {
		kind := KindOf(err)
		switch kind {
		case KindPlatform, KindInternal:
			logger.Error("Moderation action failed", zap.Error(err))
		default:
			logger.Info("Moderation request rejected", zap.String("kind", kind.String()))
		}
		actionsTotal.WithLabelValues(string(req.Action), kind.String()).Inc()
		e.reportFailure(ctx, replyChatID, err)
		return err
	}

	actionsTotal.WithLabelValues(string(req.Action), "success").Inc()
	logger.Info("Moderation action completed")

	e.announce(ctx, logger, actor, result)

	confirmation := fmt.Sprintf("✅ %s applied to <b>%s</b> in <b>%s</b>.",
		actionTitle(req.Action),
		html.EscapeString(result.TargetName),
		html.EscapeString(result.ChatTitle),
	)
	if err := e.platform.SendMessage(ctx, replyChatID, confirmation); err != nil {
		logger.Warn("Failed to confirm moderation action", zap.Error(err))
	}
	return nil
}

// announce posts the chat notice; warn already was one
func (e *Executor) announce(ctx context.Context, logger *zap.Logger, actor models.ChatUser, result Result) {
	target := html.EscapeString(result.TargetName)
	admin := html.EscapeString(actor.DisplayName())

	var text string
	switch result.Request.Action {
	case ActionBan:
		text = fmt.Sprintf("🚫 <b>%s</b> was banned by %s.", target, admin)
	case ActionKick:
		text = fmt.Sprintf("👢 <b>%s</b> was removed from the chat by %s.", target, admin)
	case ActionMute:
		text = fmt.Sprintf("🔇 <b>%s</b> was muted for %s by %s.", target, formatDuration(e.muteDuration), admin)
	default:
		return
	}

	if err := e.platform.SendMessage(ctx, result.Request.ChatID, text); err != nil {
		logger.Warn("Failed to announce moderation action", zap.Error(err))
	}
}

func (e *Executor) reportFailure(ctx context.Context, replyChatID int64, err error) {
	var modErr *Error
	if !errors.As(err, &modErr) {
		modErr = &Error{Kind: KindInternal, Err: err}
	}
	if sendErr := e.platform.SendMessage(ctx, replyChatID, html.EscapeString(modErr.UserMessage())); sendErr != nil {
		e.logger.Warn("Failed to report moderation failure",
			zap.Int64("chat_id", replyChatID),
			zap.Error(sendErr),
		)
	}
}

func actionTitle(action Action) string {
	switch action {
	case ActionBan:
		return "Ban"
	case ActionKick:
		return "Kick"
	case ActionMute:
		return "Mute"
	case ActionWarn:
		return "Warning"
	}
	return string(action)
}

func formatDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d min", int(d/time.Minute))
	}
	return d.String()
}
