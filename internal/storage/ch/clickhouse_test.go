package ch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clickhouseTC "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"moderator/internal/models"
	"moderator/internal/storage"
)

// runMigrations manually creates the ClickHouse schema
func runMigrations(ctx context.Context, db *ClickHouseDB) error {
	// Drop existing tables
	_ = db.conn.Exec(ctx, "DROP TABLE IF EXISTS banned_users")
	_ = db.conn.Exec(ctx, "DROP TABLE IF EXISTS managed_chats")

	err := db.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS managed_chats (
			chat_id Int64,
			chat_title String,
			is_deleted UInt8 DEFAULT 0,
			version UInt64
		) ENGINE = ReplacingMergeTree(version, is_deleted)
		ORDER BY chat_id
	`)
	if err != nil {
		return err
	}

	return db.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS banned_users (
			chat_id Int64,
			user_id Int64,
			ban_time DateTime64(3, 'UTC'),
			admin_id Int64,
			is_deleted UInt8 DEFAULT 0,
			version UInt64
		) ENGINE = ReplacingMergeTree(version, is_deleted)
		ORDER BY (chat_id, user_id)
	`)
}

// setupTestDB creates a test ClickHouse instance using testcontainers
func setupTestDB(t *testing.T) (*ClickHouseDB, func()) {
	ctx := context.Background()

	// Start ClickHouse container
	clickhouseContainer, err := clickhouseTC.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouseTC.WithUsername("default"),
		clickhouseTC.WithPassword(""),
		clickhouseTC.WithDatabase("default"),
	)
	require.NoError(t, err, "Failed to start ClickHouse container")

	host, err := clickhouseContainer.Host(ctx)
	require.NoError(t, err)

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	db, err := NewClickHouseDB(Options{
		Host:     host,
		Port:     port.Int(),
		Database: "default",
		User:     "default",
	})
	require.NoError(t, err, "Failed to connect to ClickHouse")

	// Run migrations manually (goose doesn't work well with ClickHouse)
	err = runMigrations(ctx, db)
	require.NoError(t, err, "Failed to run migrations")

	cleanup := func() {
		db.Close()
		clickhouseContainer.Terminate(ctx)
	}

	return db, cleanup
}

// TestClickHouseDB_ChatRegistry tests upsert, lookup and delete of managed chats
func TestClickHouseDB_ChatRegistry(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, db.UpsertChat(ctx, models.ManagedChat{ChatID: 100, Title: "Old Title"}))
	require.NoError(t, db.UpsertChat(ctx, models.ManagedChat{ChatID: 100, Title: "Test Group"}))
	require.NoError(t, db.UpsertChat(ctx, models.ManagedChat{ChatID: 200, Title: "Another Group"}))

	chat, err := db.GetChat(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Test Group", chat.Title)

	chats, err := db.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "Another Group", chats[0].Title)
	assert.Equal(t, "Test Group", chats[1].Title)

	// Delete twice: the second delete is a no-op
	require.NoError(t, db.DeleteChat(ctx, 100))
	require.NoError(t, db.DeleteChat(ctx, 100))

	_, err = db.GetChat(ctx, 100)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	chats, err = db.ListChats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	// A chat can be managed again after removal
	require.NoError(t, db.UpsertChat(ctx, models.ManagedChat{ChatID: 100, Title: "Back Again"}))
	chat, err = db.GetChat(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Back Again", chat.Title)
}

// TestClickHouseDB_RecordBanIdempotent tests insert-or-ignore semantics
func TestClickHouseDB_RecordBanIdempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	bannedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordBan(ctx, models.BanRecord{ChatID: 100, UserID: 55, AdminID: 7, BannedAt: bannedAt}))
	require.NoError(t, db.RecordBan(ctx, models.BanRecord{ChatID: 100, UserID: 55, AdminID: 8, BannedAt: bannedAt.Add(time.Hour)}))

	records, err := db.ListBans(ctx, 100)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0].AdminID)
	assert.WithinDuration(t, bannedAt, records[0].BannedAt, time.Second)

	banned, err := db.IsBanned(ctx, 100, 55)
	require.NoError(t, err)
	assert.True(t, banned)
}

// TestClickHouseDB_ClearBan tests removing ban records
func TestClickHouseDB_ClearBan(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, db.RecordBan(ctx, models.BanRecord{ChatID: 100, UserID: 55, AdminID: 7}))
	require.NoError(t, db.RecordBan(ctx, models.BanRecord{ChatID: 100, UserID: 56, AdminID: 7}))

	require.NoError(t, db.ClearBan(ctx, 100, 55))
	// Clearing an absent record is fine
	require.NoError(t, db.ClearBan(ctx, 100, 99))

	banned, err := db.IsBanned(ctx, 100, 55)
	require.NoError(t, err)
	assert.False(t, banned)

	records, err := db.ListBans(ctx, 100)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(56), records[0].UserID)

	// Banning again after a clear creates a fresh record
	require.NoError(t, db.RecordBan(ctx, models.BanRecord{ChatID: 100, UserID: 55, AdminID: 9}))
	banned, err = db.IsBanned(ctx, 100, 55)
	require.NoError(t, err)
	assert.True(t, banned)
}

// TestClickHouseDB_ConcurrentOperations tests concurrent duplicate bans
func TestClickHouseDB_ConcurrentOperations(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(admin int64) {
			defer wg.Done()
			assert.NoError(t, db.RecordBan(ctx, models.BanRecord{ChatID: 100, UserID: 55, AdminID: admin}))
		}(int64(i + 1))
	}
	wg.Wait()

	records, err := db.ListBans(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// TestClickHouseDB_Close tests connection closing
func TestClickHouseDB_Close(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := db.Close()
	assert.NoError(t, err)

	// Second close should not panic
	err = db.Close()
	assert.NoError(t, err)
}
