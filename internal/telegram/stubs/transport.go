package stubs

import (
	"context"
	"sync"
	"time"

	"moderator/internal/models"
	"moderator/internal/telegram"
)

// Call is one recorded transport invocation
type Call struct {
	Method string
	ChatID int64
	UserID int64
	Text   string
	Until  time.Time
}

type memberKey struct {
	chatID int64
	userID int64
}

// Transport is an in-memory telegram.Transport that records every call.
// Members and failures are configured per test.
type Transport struct {
	mu      sync.Mutex
	calls   []Call
	members map[memberKey]models.ChatMember
	admins  map[int64][]models.ChatMember
	photos  map[int64]string
	errs    map[string]error
}

var _ telegram.Transport = (*Transport)(nil)

// NewTransport creates an empty fake transport
func NewTransport() *Transport {
	return &Transport{
		members: make(map[memberKey]models.ChatMember),
		admins:  make(map[int64][]models.ChatMember),
		photos:  make(map[int64]string),
		errs:    make(map[string]error),
	}
}

// SetMember registers the status GetChatMember reports for the pair.
// Administrators and creators are also listed by GetChatAdministrators.
func (t *Transport) SetMember(chatID int64, user models.ChatUser, status models.MemberStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	member := models.ChatMember{User: user, Status: status}
	t.members[memberKey{chatID: chatID, userID: user.ID}] = member

	admins := t.admins[chatID][:0:0]
	for _, admin := range t.admins[chatID] {
		if admin.User.ID != user.ID {
			admins = append(admins, admin)
		}
	}
	if status.IsAdmin() {
		admins = append(admins, member)
	}
	t.admins[chatID] = admins
}

// SetPhoto registers the profile photo URL of a user
func (t *Transport) SetPhoto(userID int64, url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.photos[userID] = url
}

// FailOn makes every call to method return err; a nil err clears the failure
func (t *Transport) FailOn(method string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.errs, method)
		return
	}
	t.errs[method] = err
}

// Calls returns a copy of the recorded calls
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	calls := make([]Call, len(t.calls))
	copy(calls, t.calls)
	return calls
}

// CallsTo returns the recorded calls of one method
func (t *Transport) CallsTo(method string) []Call {
	var calls []Call
	for _, c := range t.Calls() {
		if c.Method == method {
			calls = append(calls, c)
		}
	}
	return calls
}

// Reset forgets the recorded calls
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
}

func (t *Transport) record(c Call) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, c)
	return t.errs[c.Method]
}

func (t *Transport) GetChatMember(ctx context.Context, chatID, userID int64) (models.ChatMember, error) {
	if err := t.record(Call{Method: "GetChatMember", ChatID: chatID, UserID: userID}); err != nil {
		return models.ChatMember{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.ChatMember{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	member, ok := t.members[memberKey{chatID: chatID, userID: userID}]
	if !ok {
		return models.ChatMember{User: models.ChatUser{ID: userID}, Status: models.StatusLeft}, nil
	}
	return member, nil
}

func (t *Transport) GetChatAdministrators(ctx context.Context, chatID int64) ([]models.ChatMember, error) {
	if err := t.record(Call{Method: "GetChatAdministrators", ChatID: chatID}); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	admins := make([]models.ChatMember, len(t.admins[chatID]))
	copy(admins, t.admins[chatID])
	return admins, nil
}

func (t *Transport) BanChatMember(ctx context.Context, chatID, userID int64) error {
	return t.record(Call{Method: "BanChatMember", ChatID: chatID, UserID: userID})
}

func (t *Transport) UnbanChatMember(ctx context.Context, chatID, userID int64, onlyIfBanned bool) error {
	return t.record(Call{Method: "UnbanChatMember", ChatID: chatID, UserID: userID})
}

func (t *Transport) RestrictChatMember(ctx context.Context, chatID, userID int64, until time.Time) error {
	return t.record(Call{Method: "RestrictChatMember", ChatID: chatID, UserID: userID, Until: until})
}

func (t *Transport) SendMessage(ctx context.Context, chatID int64, text string) error {
	return t.record(Call{Method: "SendMessage", ChatID: chatID, Text: text})
}

func (t *Transport) SendChatPicker(ctx context.Context, chatID int64, text string, chats []models.ManagedChat) error {
	return t.record(Call{Method: "SendChatPicker", ChatID: chatID, Text: text})
}

func (t *Transport) SendWebAppKeyboard(ctx context.Context, chatID int64, text, buttonText, url string) error {
	return t.record(Call{Method: "SendWebAppKeyboard", ChatID: chatID, Text: url})
}

func (t *Transport) AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error {
	return t.record(Call{Method: "AnswerCallback", Text: text})
}

func (t *Transport) ProfilePhotoURL(ctx context.Context, userID int64) (string, error) {
	if err := t.record(Call{Method: "ProfilePhotoURL", UserID: userID}); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.photos[userID], nil
}
