package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nekidev/nekos-api/internal/db"
)

// NewTestDB opens an in-memory SQLite DB and runs all registry migrations.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn := open(t, t.Name())
	// Shared-cache connections fail with SQLITE_LOCKED instead of waiting
	// when they touch a table another connection is writing.
	conn.SetMaxOpenConns(1)
	if err := db.Migrate(conn, "sqlite3"); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return conn
}

// NewTargetDB opens an empty in-memory SQLite DB, separate from the one
// returned by NewTestDB, for the apply-engine to build entity tables in.
func NewTargetDB(t *testing.T) *sqlx.DB {
	t.Helper()
	return open(t, t.Name()+"_target")
}

func open(t *testing.T, name string) *sqlx.DB {
	t.Helper()

	// A file URI with shared cache lets every pool connection see the same
	// in-memory database. Each test gets a unique name to avoid cross-test
	// interference.
	dsn := "file:" + name + "?mode=memory&cache=shared&_pragma=busy_timeout(5000)"
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
