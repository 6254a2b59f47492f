package migrations

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ContainsBothDialects(t *testing.T) {
	for _, dialect := range []string{DialectClickHouse, DialectPostgres} {
		entries, err := fs.ReadDir(FS, dialect)
		require.NoError(t, err, dialect)
		require.NotEmpty(t, entries, dialect)

		content, err := fs.ReadFile(FS, dialect+"/"+entries[0].Name())
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(content), "-- +goose Up"), dialect)
		assert.True(t, strings.Contains(string(content), "banned_users"), dialect)
		assert.True(t, strings.Contains(string(content), "managed_chats"), dialect)
	}
}

func TestUp_RejectsUnknownDialect(t *testing.T) {
	_, err := Up(context.Background(), nil, "sqlite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}
