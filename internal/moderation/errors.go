package moderation

import (
	"errors"
	"fmt"
)

// Kind classifies why a moderation request failed
type Kind int

const (
	KindInput Kind = iota
	KindUnknownAction
	KindNotManaged
	KindForbidden
	KindPlatform
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindUnknownAction:
		return "unknown_action"
	case KindNotManaged:
		return "not_managed"
	case KindForbidden:
		return "forbidden"
	case KindPlatform:
		return "platform"
	default:
		return "internal"
	}
}

// Error is a failed moderation request.
// Reason carries the platform's explanation for KindPlatform.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := "moderation " + e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage is the text reported back to the actor
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindInput:
		return "❌ Incomplete data: the request must name an action, a user and a chat."
	case KindUnknownAction:
		return "❌ Unknown action."
	case KindNotManaged:
		return "❌ The bot does not manage this chat."
	case KindForbidden:
		return "⛔ Insufficient rights: you are not an administrator of this chat."
	case KindPlatform:
		return fmt.Sprintf("❌ Action failed: %s", e.Reason)
	default:
		return "❌ Internal error, please try again later."
	}
}

// KindOf returns the kind of a moderation error, or KindInternal for any other error
func KindOf(err error) Kind {
	var modErr *Error
	if errors.As(err, &modErr) {
		return modErr.Kind
	}
	return KindInternal
}
