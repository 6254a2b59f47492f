package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moderator/internal/models"
	"moderator/internal/storage"
)

// setupTestDB connects to POSTGRES_TEST_DSN, applies migrations and empties the tables
func setupTestDB(t *testing.T) *PostgresDB {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN is not set")
	}

	ctx := context.Background()
	db, err := NewPostgresDB(ctx, dsn, true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Initialize(ctx))

	_, err = db.pool.Exec(ctx, `TRUNCATE banned_users, managed_chats`)
	require.NoError(t, err)

	return db
}

func TestNewPostgresDB_RequiresDSN(t *testing.T) {
	_, err := NewPostgresDB(context.Background(), "", false)
	require.Error(t, err)
}

func TestPostgresDB_ChatRegistry(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertChat(ctx, models.ManagedChat{ChatID: 100, Title: "Old Title"}))
	require.NoError(t, db.UpsertChat(ctx, models.ManagedChat{ChatID: 100, Title: "Test Group"}))

	chat, err := db.GetChat(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Test Group", chat.Title)

	chats, err := db.ListChats(ctx)
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	require.NoError(t, db.DeleteChat(ctx, 100))
	require.NoError(t, db.DeleteChat(ctx, 100))

	_, err = db.GetChat(ctx, 100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresDB_BanLedger(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	bannedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordBan(ctx, models.BanRecord{ChatID: 100, UserID: 55, AdminID: 7, BannedAt: bannedAt}))
	require.NoError(t, db.RecordBan(ctx, models.BanRecord{ChatID: 100, UserID: 55, AdminID: 8}))

	records, err := db.ListBans(ctx, 100)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0].AdminID)
	assert.WithinDuration(t, bannedAt, records[0].BannedAt, time.Second)

	require.NoError(t, db.ClearBan(ctx, 100, 55))

	banned, err := db.IsBanned(ctx, 100, 55)
	require.NoError(t, err)
	assert.False(t, banned)
}
