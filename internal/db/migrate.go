package db

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/nekidev/nekos-api/internal/db/migrations"
)

//go:embed migrations/*.sql
var Migrations embed.FS

// Migrate runs all pending registry migrations: the embedded SQL files plus the
// dialect-aware Go migrations in the migrations package. It must be called
// before the registry or the HTTP server touches the database.
func Migrate(db *sqlx.DB, driver string) error {
	dialect, err := GooseDialect(driver)
	if err != nil {
		return err
	}

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	migrations.SetDialect(dialect)

	sub, err := fs.Sub(Migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sub migrations fs: %w", err)
	}

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)
	if err := goose.Up(db.DB, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// GooseDialect maps a configured driver name to its goose dialect.
func GooseDialect(driver string) (string, error) {
	switch driver {
	case "sqlite3":
		return "sqlite3", nil
	case "mysql":
		return "mysql", nil
	case "postgres", "pgx":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unknown driver for goose dialect: %q", driver)
	}
}
