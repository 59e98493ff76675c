package db

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// New opens a database connection for the given driver and DSN.
// Supported drivers: sqlite3, mysql, postgres (lib/pq) and pgx.
func New(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite3":
		// modernc/sqlite uses "sqlite" as the driver name (CGO-free)
		db, err := sqlx.Open("sqlite", SQLiteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil
	case "mysql":
		// Registry timestamps are scanned into time.Time, which needs parseTime=true.
		db, err := sqlx.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		return db, nil
	case "postgres":
		db, err := sqlx.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	case "pgx":
		db, err := sqlx.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open pgx: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported DB driver %q: must be sqlite3, mysql, postgres, or pgx", driver)
	}
}

// sqliteParams are applied to every pooled connection. Writers wait on the
// busy timeout instead of failing with SQLITE_BUSY, and BEGIN IMMEDIATE takes
// the write lock up front so a read-then-write transaction never has to
// upgrade it.
var sqliteParams = []struct{ key, value string }{
	{"_pragma", "busy_timeout(5000)"},
	{"_pragma", "journal_mode(WAL)"},
	{"_txlock", "immediate"},
}

// SQLiteDSN adds the connection parameters New relies on to dsn, keeping any
// the caller already set.
func SQLiteDSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqliteParams {
		marker := p.key + "="
		if p.key == "_pragma" {
			name, _, _ := strings.Cut(p.value, "(")
			marker += name
		}
		if strings.Contains(dsn, marker) {
			continue
		}
		b.WriteString(sep + p.key + "=" + p.value)
		sep = "&"
	}
	return b.String()
}
