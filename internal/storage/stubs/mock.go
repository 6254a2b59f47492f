package stubs

import (
	"context"
	"sort"
	"sync"

	"moderator/internal/models"
	"moderator/internal/storage"
)

type banKey struct {
	chatID int64
	userID int64
}

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu    sync.RWMutex
	chats map[int64]models.ManagedChat
	bans  map[banKey]models.BanRecord
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		chats: make(map[int64]models.ManagedChat),
		bans:  make(map[banKey]models.BanRecord),
	}
}

// Initialize does nothing; the mock starts empty
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// UpsertChat inserts the chat or updates its title
func (m *MockDB) UpsertChat(ctx context.Context, chat models.ManagedChat) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.chats[chat.ChatID] = chat
	return nil
}

// DeleteChat removes the chat if present
func (m *MockDB) DeleteChat(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.chats, chatID)
	return nil
}

// GetChat returns a managed chat by id
func (m *MockDB) GetChat(ctx context.Context, chatID int64) (models.ManagedChat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, ok := m.chats[chatID]
	if !ok {
		return models.ManagedChat{}, storage.ErrNotFound
	}
	return chat, nil
}

// ListChats returns all managed chats sorted by title
func (m *MockDB) ListChats(ctx context.Context) ([]models.ManagedChat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chats := make([]models.ManagedChat, 0, len(m.chats))
	for _, chat := range m.chats {
		chats = append(chats, chat)
	}

	sort.Slice(chats, func(i, j int) bool {
		if chats[i].Title != chats[j].Title {
			return chats[i].Title < chats[j].Title
		}
		return chats[i].ChatID < chats[j].ChatID
	})

	return chats, nil
}

// RecordBan stores the record unless the pair is already banned
func (m *MockDB) RecordBan(ctx context.Context, record models.BanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := banKey{chatID: record.ChatID, userID: record.UserID}
	if _, exists := m.bans[key]; exists {
		return nil
	}
	m.bans[key] = record
	return nil
}

// ClearBan removes the record for the pair if present
func (m *MockDB) ClearBan(ctx context.Context, chatID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.bans, banKey{chatID: chatID, userID: userID})
	return nil
}

// IsBanned reports whether a record exists for the pair
func (m *MockDB) IsBanned(ctx context.Context, chatID, userID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.bans[banKey{chatID: chatID, userID: userID}]
	return ok, nil
}

// ListBans returns the records of one chat ordered by user id
func (m *MockDB) ListBans(ctx context.Context, chatID int64) ([]models.BanRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []models.BanRecord
	for key, record := range m.bans {
		if key.chatID == chatID {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UserID < records[j].UserID
	})

	return records, nil
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}
