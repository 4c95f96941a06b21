package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.SQL.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestNewDB(t *testing.T) {
	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data", "meal-planner.db")
		db, err := NewDB(path)
		require.NoError(t, err)
		defer db.Close()

		assert.True(t, tableExists(t, db, "autofill_runs"))
		assert.True(t, tableExists(t, db, "telegram_pending"))

		var mode string
		require.NoError(t, db.SQL.QueryRow("PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode)
	})

	t.Run("Memory", func(t *testing.T) {
		db, err := NewDB(MemoryPath)
		require.NoError(t, err)
		defer db.Close()

		assert.True(t, tableExists(t, db, "autofill_runs"))
	})

	t.Run("ReopenIsIdempotent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "meal-planner.db")
		first, err := NewDB(path)
		require.NoError(t, err)
		require.NoError(t, first.Close())

		second, err := NewDB(path)
		require.NoError(t, err)
		defer second.Close()
		assert.True(t, tableExists(t, second, "telegram_pending"))
	})
}
