package models

import (
	"strconv"
	"strings"
	"time"
)

// ManagedChat is a chat where the bot currently holds administrator rank
type ManagedChat struct {
	ChatID int64
	Title  string
}

// BanRecord is the local shadow of a ban issued through the bot.
// The messaging platform stays the enforcer; the two may diverge.
type BanRecord struct {
	ChatID   int64
	UserID   int64
	BannedAt time.Time
	AdminID  int64
}

// RecentMember is a non-admin member seen posting in a chat
type RecentMember struct {
	UserID    int64
	FirstName string
	LastName  string
	Username  string
}

// MemberStatus is the platform-reported rank of a chat member
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// IsAdmin reports whether the status carries moderation rights
func (s MemberStatus) IsAdmin() bool {
	return s == StatusCreator || s == StatusAdministrator
}

// ChatUser is the basic profile of a platform user
type ChatUser struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	IsBot     bool
}

// DisplayName returns a human readable name, falling back to the numeric id
func (u ChatUser) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

// ChatMember is a user together with its status in one chat
type ChatMember struct {
	User   ChatUser
	Status MemberStatus
}

// PanelMember is one entry of the web panel member picker
type PanelMember struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url,omitempty"`
	IsAdmin   bool   `json:"is_admin"`
	IsBanned  bool   `json:"is_banned"`
}

// PanelData is the payload served to the web panel
type PanelData struct {
	ChatTitle string        `json:"chat_title"`
	Members   []PanelMember `json:"members"`
}
