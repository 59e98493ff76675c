// Package migrations holds the registry's own goose migrations. Tables whose
// column types differ by database are created from Go; the rest are plain SQL.
package migrations

// dialect is set by the parent db package before migrations are applied.
var dialect string

// SetDialect configures the SQL dialect for Go migrations.
// Must be called before goose.Up. Valid values: "sqlite3", "postgres", "mysql".
func SetDialect(d string) {
	dialect = d
}
