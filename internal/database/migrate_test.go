package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateNewDB(t *testing.T) {
	db := openTestDB(t)

	version, err := schemaVersion(db.conn.DB, db.driver)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idem.db")

	db1, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := Open(dbPath)
	require.NoError(t, err)
	defer db2.Close()

	version, err := schemaVersion(db2.conn.DB, db2.driver)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestMigrationDirs(t *testing.T) {
	dir, dialect := migrationDir(DriverPostgres)
	assert.Equal(t, "migrations/postgres", dir)
	assert.Equal(t, "postgres", dialect)

	entries, err := migrationsFS.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	dir, dialect = migrationDir(DriverSQLite)
	assert.Equal(t, "migrations/sqlite", dir)
	assert.Equal(t, "sqlite3", dialect)
}
