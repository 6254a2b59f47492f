// Package recent keeps a bounded, per-chat set of recently active members.
//
// The platform does not expose member lists of large chats, so the panel
// supplements the admin list with whoever was seen posting lately. The data
// lives in process memory only and is rebuilt as messages arrive.
package recent

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"moderator/internal/models"
)

// DefaultCapacity is the number of members remembered per chat
const DefaultCapacity = 100

type chatSet = lru.Cache[int64, models.RecentMember]

// Cache maps a chat to its own LRU set. Each set carries its own lock, so
// observations in different chats never contend and compound operations
// within one chat (move to front, evict oldest) never interleave.
type Cache struct {
	capacity int
	chats    *xsync.MapOf[int64, *chatSet]
}

// New creates a cache holding at most capacity members per chat
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		chats:    xsync.NewMapOf[int64, *chatSet](),
	}
}

// Observe records that member posted in chatID just now
func (c *Cache) Observe(chatID int64, member models.RecentMember) {
	set, _ := c.chats.LoadOrCompute(chatID, func() *chatSet {
		// capacity is positive, New cannot fail
		set, _ := lru.New[int64, models.RecentMember](c.capacity)
		return set
	})
	set.Add(member.UserID, member)
}

// Snapshot returns the chat's members, most recent first. It does not
// change recency order.
func (c *Cache) Snapshot(chatID int64) []models.RecentMember {
	set, ok := c.chats.Load(chatID)
	if !ok {
		return nil
	}

	values := set.Values() // oldest to newest
	members := make([]models.RecentMember, len(values))
	for i, member := range values {
		members[len(values)-1-i] = member
	}
	return members
}

// Drop forgets everything about the chat
func (c *Cache) Drop(chatID int64) {
	c.chats.Delete(chatID)
}

// Len returns the number of members remembered for the chat
func (c *Cache) Len(chatID int64) int {
	set, ok := c.chats.Load(chatID)
	if !ok {
		return 0
	}
	return set.Len()
}

// Chats returns the number of chats with at least one observation
func (c *Cache) Chats() int {
	return c.chats.Size()
}
