// Package migrations embeds the goose SQL migrations of every storage backend.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// FS holds one directory of migrations per dialect
//
//go:embed clickhouse/*.sql postgres/*.sql
var FS embed.FS

const (
	DialectClickHouse = "clickhouse"
	DialectPostgres   = "postgres"
)

// Up applies all pending migrations of the given dialect
func Up(ctx context.Context, db *sql.DB, dialect string) ([]string, error) {
	var gooseDialect goose.Dialect
	switch dialect {
	case DialectClickHouse:
		gooseDialect = goose.DialectClickHouse
	case DialectPostgres:
		gooseDialect = goose.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	dir, err := fs.Sub(FS, dialect)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s migrations: %w", dialect, err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s migrations: %w", dialect, err)
	}

	applied := make([]string, 0, len(results))
	for _, result := range results {
		applied = append(applied, result.Source.Path)
	}
	return applied, nil
}
