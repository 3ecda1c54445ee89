package database

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// goose keeps its dialect and base FS in package state.
var gooseMu sync.Mutex

func migrationDir(driver string) (dir, dialect string) {
	if driver == DriverPostgres {
		return "migrations/postgres", "postgres"
	}
	return "migrations/sqlite", "sqlite3"
}

// migrate brings the schema up to the latest embedded migration.
func migrate(conn *sql.DB, driver string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, dialect := migrationDir(driver)
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.Up(conn, dir); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// schemaVersion returns the latest applied migration version.
func schemaVersion(conn *sql.DB, driver string) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	_, dialect := migrationDir(driver)
	if err := goose.SetDialect(dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(conn)
}
