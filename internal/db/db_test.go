package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenForTesting(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	assert.NoError(t, db.Ping())
}

func TestMigrationsApply(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	var tableName string

	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='pins'").Scan(&tableName)
	assert.NoError(t, err)
	assert.Equal(t, "pins", tableName)

	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='journal_entries'").Scan(&tableName)
	assert.NoError(t, err)
	assert.Equal(t, "journal_entries", tableName)

	// Applying again is a no-op.
	assert.NoError(t, runMigrations(db))
}

func TestForeignKeysEnforced(t *testing.T) {
	db, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	_, err = db.Exec(`
		INSERT INTO journal_entries (pin_id, user_id, fish_type, tackle, date_time)
		VALUES (42, 'u1', 'Bass', 'Jig', '2024-06-01 10:00:00')
	`)
	assert.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catchlogs.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening an already migrated file succeeds.
	db, err = Open(path)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}
