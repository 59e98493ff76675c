package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateSchemaRegistry, downCreateSchemaRegistry)
}

// Operations are stored as JSON: JSONB on PostgreSQL, JSON on MySQL and TEXT
// on SQLite.
func upCreateSchemaRegistry(ctx context.Context, tx *sql.Tx) error {
	var records, tips string
	switch dialect {
	case "postgres":
		records = `CREATE TABLE IF NOT EXISTS schema_records (
    id          UUID PRIMARY KEY,
    lineage     VARCHAR(63) NOT NULL,
    name        VARCHAR(255) NOT NULL,
    seq         BIGINT NOT NULL,
    predecessor VARCHAR(255) NOT NULL DEFAULT '',
    operations  JSONB NOT NULL,
    checksum    CHAR(64) NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    UNIQUE (lineage, seq),
    UNIQUE (lineage, name)
)`
		tips = `CREATE TABLE IF NOT EXISTS lineage_tips (
    lineage    VARCHAR(63) PRIMARY KEY,
    tip_name   VARCHAR(255) NOT NULL,
    tip_seq    BIGINT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`
	case "mysql":
		records = `CREATE TABLE IF NOT EXISTS schema_records (
    id          CHAR(36) PRIMARY KEY,
    lineage     VARCHAR(63) NOT NULL,
    name        VARCHAR(255) NOT NULL,
    seq         BIGINT NOT NULL,
    predecessor VARCHAR(255) NOT NULL DEFAULT '',
    operations  JSON NOT NULL,
    checksum    CHAR(64) NOT NULL,
    created_at  TIMESTAMP(6) NOT NULL,
    UNIQUE KEY schema_records_lineage_seq (lineage, seq),
    UNIQUE KEY schema_records_lineage_name (lineage, name)
)`
		tips = `CREATE TABLE IF NOT EXISTS lineage_tips (
    lineage    VARCHAR(63) PRIMARY KEY,
    tip_name   VARCHAR(255) NOT NULL,
    tip_seq    BIGINT NOT NULL,
    updated_at TIMESTAMP(6) NOT NULL
)`
	default: // sqlite3
		records = `CREATE TABLE IF NOT EXISTS schema_records (
    id          TEXT PRIMARY KEY,
    lineage     TEXT NOT NULL,
    name        TEXT NOT NULL,
    seq         INTEGER NOT NULL,
    predecessor TEXT NOT NULL DEFAULT '',
    operations  TEXT NOT NULL,
    checksum    TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL,
    UNIQUE (lineage, seq),
    UNIQUE (lineage, name)
)`
		tips = `CREATE TABLE IF NOT EXISTS lineage_tips (
    lineage    TEXT PRIMARY KEY,
    tip_name   TEXT NOT NULL,
    tip_seq    INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`
	}
	if _, err := tx.ExecContext(ctx, records); err != nil {
		return fmt.Errorf("create schema_records table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tips); err != nil {
		return fmt.Errorf("create lineage_tips table: %w", err)
	}
	return nil
}

func downCreateSchemaRegistry(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS lineage_tips`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS schema_records`)
	return err
}
