package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/eugenenazirov/alx-travel/internal/config"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS auth_user (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(150) NOT NULL UNIQUE,
		email VARCHAR(254) NOT NULL DEFAULT '',
		password VARCHAR(128) NOT NULL,
		is_staff BOOL NOT NULL DEFAULT FALSE,
		is_superuser BOOL NOT NULL DEFAULT FALSE,
		is_active BOOL NOT NULL DEFAULT TRUE,
		date_joined BIGINT NOT NULL,
		last_login BIGINT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token CHAR(43) NOT NULL PRIMARY KEY,
		data BLOB NOT NULL,
		expiry BIGINT NOT NULL,
		INDEX sessions_expiry_idx (expiry)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS auth_user (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		password TEXT NOT NULL,
		is_staff INTEGER NOT NULL DEFAULT 0,
		is_superuser INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		date_joined INTEGER NOT NULL,
		last_login INTEGER NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions (expiry)`,
}

// Migrate creates the user and session tables if they do not exist. Listing
// tables belong to the listings component and are not touched here.
func Migrate(ctx context.Context, db *sqlx.DB, engine config.Engine) error {
	var statements []string
	switch engine {
	case config.EngineMySQL:
		statements = mysqlSchema
	case config.EngineSQLite:
		statements = sqliteSchema
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedEngine, engine)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
