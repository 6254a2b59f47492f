package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"moderator/internal/models"
	"moderator/internal/storage"
	"moderator/migrations"
)

// PostgresDB implements storage.Storage on PostgreSQL
type PostgresDB struct {
	pool        *pgxpool.Pool
	autoMigrate bool
}

// NewPostgresDB opens a connection pool and verifies it with a ping
func NewPostgresDB(ctx context.Context, dsn string, autoMigrate bool) (*PostgresDB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool, autoMigrate: autoMigrate}, nil
}

// Initialize applies the embedded migrations when auto-migration is enabled
func (db *PostgresDB) Initialize(ctx context.Context) error {
	if !db.autoMigrate {
		return nil
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	defer sqlDB.Close()

	if _, err := migrations.Up(ctx, sqlDB, migrations.DialectPostgres); err != nil {
		return err
	}
	return nil
}

func (db *PostgresDB) UpsertChat(ctx context.Context, chat models.ManagedChat) error {
	_, err := db.pool.Exec(ctx, `
INSERT INTO managed_chats (chat_id, chat_title)
VALUES ($1, $2)
ON CONFLICT (chat_id) DO UPDATE SET chat_title = EXCLUDED.chat_title
`, chat.ChatID, chat.Title)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}

func (db *PostgresDB) DeleteChat(ctx context.Context, chatID int64) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM managed_chats WHERE chat_id = $1`, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

func (db *PostgresDB) GetChat(ctx context.Context, chatID int64) (models.ManagedChat, error) {
	var chat models.ManagedChat
	err := db.pool.QueryRow(ctx, `SELECT chat_id, chat_title FROM managed_chats WHERE chat_id = $1`, chatID).
		Scan(&chat.ChatID, &chat.Title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ManagedChat{}, storage.ErrNotFound
		}
		return models.ManagedChat{}, fmt.Errorf("get chat: %w", err)
	}
	return chat, nil
}

func (db *PostgresDB) ListChats(ctx context.Context) ([]models.ManagedChat, error) {
	rows, err := db.pool.Query(ctx, `SELECT chat_id, chat_title FROM managed_chats ORDER BY chat_title, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []models.ManagedChat
	for rows.Next() {
		var chat models.ManagedChat
		if err := rows.Scan(&chat.ChatID, &chat.Title); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

// RecordBan relies on UNIQUE (chat_id, user_id): a repeated ban is ignored
func (db *PostgresDB) RecordBan(ctx context.Context, record models.BanRecord) error {
	bannedAt := record.BannedAt
	if bannedAt.IsZero() {
		bannedAt = time.Now()
	}

	_, err := db.pool.Exec(ctx, `
INSERT INTO banned_users (chat_id, user_id, ban_time, admin_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (chat_id, user_id) DO NOTHING
`, record.ChatID, record.UserID, bannedAt, record.AdminID)
	if err != nil {
		return fmt.Errorf("record ban: %w", err)
	}
	return nil
}

func (db *PostgresDB) ClearBan(ctx context.Context, chatID, userID int64) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM banned_users WHERE chat_id = $1 AND user_id = $2`, chatID, userID); err != nil {
		return fmt.Errorf("clear ban: %w", err)
	}
	return nil
}

func (db *PostgresDB) IsBanned(ctx context.Context, chatID, userID int64) (bool, error) {
	var banned bool
	err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM banned_users WHERE chat_id = $1 AND user_id = $2)`, chatID, userID).
		Scan(&banned)
	if err != nil {
		return false, fmt.Errorf("check ban: %w", err)
	}
	return banned, nil
}

func (db *PostgresDB) ListBans(ctx context.Context, chatID int64) ([]models.BanRecord, error) {
	rows, err := db.pool.Query(ctx, `
SELECT chat_id, user_id, ban_time, COALESCE(admin_id, 0)
FROM banned_users
WHERE chat_id = $1
ORDER BY user_id
`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	defer rows.Close()

	var records []models.BanRecord
	for rows.Next() {
		var record models.BanRecord
		if err := rows.Scan(&record.ChatID, &record.UserID, &record.BannedAt, &record.AdminID); err != nil {
			return nil, fmt.Errorf("scan ban: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bans: %w", err)
	}
	return records, nil
}

func (db *PostgresDB) Close() error {
	if db.pool != nil {
		db.pool.Close()
		db.pool = nil
	}
	return nil
}
