package ch

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moderator/internal/models"
	"moderator/internal/storage"
	"moderator/migrations"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseDB implements storage.Storage on ClickHouse.
// Rows are never updated in place: upserts and deletes are inserts with a newer
// version into ReplacingMergeTree tables, and every read uses FINAL.
type ClickHouseDB struct {
	conn        clickhouse.Conn
	options     *clickhouse.Options
	autoMigrate bool
	now         func() time.Time
}

// Options holds the ClickHouse connection settings
type Options struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	UseTLS      bool
	AutoMigrate bool
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(opts Options) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.User,
			Password: opts.Password,
		},
		DialTimeout: 10 * time.Second,
	}

	// Configure TLS if enabled
	if opts.UseTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{
		conn:        conn,
		options:     options,
		autoMigrate: opts.AutoMigrate,
		now:         time.Now,
	}, nil
}

// Initialize applies the embedded migrations when auto-migration is enabled.
// Otherwise tables are managed via cmd/migrate.
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	if !db.autoMigrate {
		return nil
	}

	sqlDB := clickhouse.OpenDB(db.options)
	defer sqlDB.Close()

	if _, err := migrations.Up(ctx, sqlDB, migrations.DialectClickHouse); err != nil {
		return err
	}
	return nil
}

func (db *ClickHouseDB) version() uint64 {
	return uint64(db.now().UnixNano())
}

// UpsertChat inserts the chat or updates its title
func (db *ClickHouseDB) UpsertChat(ctx context.Context, chat models.ManagedChat) error {
	err := db.conn.Exec(ctx, `INSERT INTO managed_chats (chat_id, chat_title, is_deleted, version) VALUES (?, ?, 0, ?)`,
		chat.ChatID, chat.Title, db.version())
	if err != nil {
		return fmt.Errorf("failed to upsert chat: %w", err)
	}
	return nil
}

// DeleteChat writes a tombstone for the chat
func (db *ClickHouseDB) DeleteChat(ctx context.Context, chatID int64) error {
	err := db.conn.Exec(ctx, `INSERT INTO managed_chats (chat_id, chat_title, is_deleted, version) VALUES (?, '', 1, ?)`,
		chatID, db.version())
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}

// GetChat returns a managed chat by id
func (db *ClickHouseDB) GetChat(ctx context.Context, chatID int64) (models.ManagedChat, error) {
	var chat models.ManagedChat
	row := db.conn.QueryRow(ctx, `SELECT chat_id, chat_title FROM managed_chats FINAL WHERE chat_id = ? AND is_deleted = 0`, chatID)
	if err := row.Scan(&chat.ChatID, &chat.Title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ManagedChat{}, storage.ErrNotFound
		}
		return models.ManagedChat{}, fmt.Errorf("failed to get chat: %w", err)
	}
	return chat, nil
}

// ListChats returns all managed chats ordered by title
func (db *ClickHouseDB) ListChats(ctx context.Context) ([]models.ManagedChat, error) {
	rows, err := db.conn.Query(ctx, `SELECT chat_id, chat_title FROM managed_chats FINAL WHERE is_deleted = 0 ORDER BY chat_title, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.ManagedChat
	for rows.Next() {
		var chat models.ManagedChat
		if err := rows.Scan(&chat.ChatID, &chat.Title); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// RecordBan stores the record unless the pair is already banned.
// Concurrent first bans may both insert; FINAL still collapses them to one row.
func (db *ClickHouseDB) RecordBan(ctx context.Context, record models.BanRecord) error {
	banned, err := db.IsBanned(ctx, record.ChatID, record.UserID)
	if err != nil {
		return err
	}
	if banned {
		return nil
	}

	bannedAt := record.BannedAt
	if bannedAt.IsZero() {
		bannedAt = db.now()
	}

	err = db.conn.Exec(ctx, `INSERT INTO banned_users (chat_id, user_id, ban_time, admin_id, is_deleted, version) VALUES (?, ?, ?, ?, 0, ?)`,
		record.ChatID, record.UserID, bannedAt.UTC(), record.AdminID, db.version())
	if err != nil {
		return fmt.Errorf("failed to record ban: %w", err)
	}
	return nil
}

// ClearBan writes a tombstone for the pair
func (db *ClickHouseDB) ClearBan(ctx context.Context, chatID, userID int64) error {
	err := db.conn.Exec(ctx, `INSERT INTO banned_users (chat_id, user_id, ban_time, admin_id, is_deleted, version) VALUES (?, ?, ?, 0, 1, ?)`,
		chatID, userID, db.now().UTC(), db.version())
	if err != nil {
		return fmt.Errorf("failed to clear ban: %w", err)
	}
	return nil
}

// IsBanned reports whether a live record exists for the pair
func (db *ClickHouseDB) IsBanned(ctx context.Context, chatID, userID int64) (bool, error) {
	var count uint64
	row := db.conn.QueryRow(ctx, `SELECT count() FROM banned_users FINAL WHERE chat_id = ? AND user_id = ? AND is_deleted = 0`, chatID, userID)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check ban: %w", err)
	}
	return count > 0, nil
}

// ListBans returns the live records of one chat ordered by user id
func (db *ClickHouseDB) ListBans(ctx context.Context, chatID int64) ([]models.BanRecord, error) {
	rows, err := db.conn.Query(ctx, `SELECT chat_id, user_id, ban_time, admin_id FROM banned_users FINAL WHERE chat_id = ? AND is_deleted = 0 ORDER BY user_id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bans: %w", err)
	}
	defer rows.Close()

	var records []models.BanRecord
	for rows.Next() {
		var record models.BanRecord
		if err := rows.Scan(&record.ChatID, &record.UserID, &record.BannedAt, &record.AdminID); err != nil {
			return nil, fmt.Errorf("failed to scan ban: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}
