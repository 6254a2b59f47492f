package moderation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Action is a moderation action the panel can request
type Action string

const (
	ActionBan  Action = "ban"
	ActionKick Action = "kick"
	ActionMute Action = "mute"
	ActionWarn Action = "warn"
)

// ParseAction maps the wire name of an action; ok is false for anything unknown
func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionBan:
		return ActionBan, true
	case ActionKick:
		return ActionKick, true
	case ActionMute:
		return ActionMute, true
	case ActionWarn:
		return ActionWarn, true
	}
	return "", false
}

// Request is one validated moderation request
type Request struct {
	Action   Action
	ActorID  int64
	TargetID int64
	ChatID   int64
}

// id accepts a JSON number or a string holding an integer
type id int64

func (v *id) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}

	parsed, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer id: %s", data)
	}
	*v = id(parsed)
	return nil
}

type wireRequest struct {
	Action string `json:"action"`
	UserID id     `json:"user_id"`
	ChatID id     `json:"chat_id"`
}

// ParseRequest validates a panel payload {action, user_id, chat_id} sent by actorID.
// Any unrecognized shape is rejected before anything else happens.
func ParseRequest(actorID int64, payload []byte) (Request, error) {
	var wire wireRequest
	if err := json.Unmarshal(payload, &wire); err != nil {
		return Request{}, &Error{Kind: KindInput, Err: fmt.Errorf("malformed payload: %w", err)}
	}

	if strings.TrimSpace(wire.Action) == "" || wire.UserID == 0 || wire.ChatID == 0 || actorID == 0 {
		return Request{}, &Error{Kind: KindInput, Err: fmt.Errorf("incomplete payload")}
	}

	action, ok := ParseAction(wire.Action)
	if !ok {
		return Request{}, &Error{Kind: KindUnknownAction, Reason: wire.Action}
	}

	return Request{
		Action:   action,
		ActorID:  actorID,
		TargetID: int64(wire.UserID),
		ChatID:   int64(wire.ChatID),
	}, nil
}
