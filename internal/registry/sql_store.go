package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nekidev/nekos-api/internal/schema"
)

// recordRow is a row in the schema_records table.
type recordRow struct {
	ID          string    `db:"id"`
	Lineage     string    `db:"lineage"`
	Name        string    `db:"name"`
	Seq         int64     `db:"seq"`
	Predecessor string    `db:"predecessor"`
	Operations  string    `db:"operations"`
	Checksum    string    `db:"checksum"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r recordRow) record() (*schema.Record, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("record %s/%s: bad id: %w", r.Lineage, r.Name, err)
	}
	var ops []schema.Operation
	if err := json.Unmarshal([]byte(r.Operations), &ops); err != nil {
		return nil, fmt.Errorf("record %s/%s: decode operations: %w", r.Lineage, r.Name, err)
	}
	return &schema.Record{
		ID:          id,
		Lineage:     r.Lineage,
		Name:        r.Name,
		Seq:         r.Seq,
		Predecessor: r.Predecessor,
		Operations:  ops,
		Checksum:    r.Checksum,
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}

// SQLStore is the sqlx-backed Store over schema_records and lineage_tips.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a new SQLStore.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// q rebinds ? placeholders to the driver's native format ($1,$2,... for PostgreSQL).
func (s *SQLStore) q(query string) string { return s.db.Rebind(query) }

func (s *SQLStore) Tip(ctx context.Context, lineage string) (*schema.Record, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row, s.q(`
		SELECT r.* FROM schema_records r
		INNER JOIN lineage_tips t ON t.lineage = r.lineage AND t.tip_name = r.name
		WHERE t.lineage = ?
	`), lineage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.record()
}

// Insert moves the lineage tip and writes the record in one transaction. The
// tip update is conditional on the current tip name, so a concurrent writer
// that got there first leaves zero affected rows.
func (s *SQLStore) Insert(ctx context.Context, rec *schema.Record) error {
	ops, err := json.Marshal(rec.Operations)
	if err != nil {
		return fmt.Errorf("encode operations: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if rec.Predecessor == "" {
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO lineage_tips (lineage, tip_name, tip_seq, updated_at) VALUES (?, ?, ?, ?)
		`), rec.Lineage, rec.Name, rec.Seq, now)
		if isUniqueConstraintError(err) {
			return ErrTipMoved
		}
		if err != nil {
			return err
		}
	} else {
		res, err := tx.ExecContext(ctx, s.q(`
			UPDATE lineage_tips SET tip_name = ?, tip_seq = ?, updated_at = ?
			WHERE lineage = ? AND tip_name = ?
		`), rec.Name, rec.Seq, now, rec.Lineage, rec.Predecessor)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrTipMoved
		}
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO schema_records (id, lineage, name, seq, predecessor, operations, checksum, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), rec.ID.String(), rec.Lineage, rec.Name, rec.Seq, rec.Predecessor, string(ops), rec.Checksum, rec.CreatedAt.UTC())
	if isUniqueConstraintError(err) {
		return ErrTipMoved
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Page(ctx context.Context, lineage string, afterSeq int64, limit int) ([]*schema.Record, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows, s.q(`
		SELECT * FROM schema_records WHERE lineage = ? AND seq > ? ORDER BY seq ASC LIMIT ?
	`), lineage, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*schema.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLStore) Get(ctx context.Context, lineage, name string) (*schema.Record, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row, s.q(`
		SELECT * FROM schema_records WHERE lineage = ? AND name = ?
	`), lineage, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.record()
}

func (s *SQLStore) Lineages(ctx context.Context) ([]LineageTip, error) {
	var tips []LineageTip
	err := s.db.SelectContext(ctx, &tips, `
		SELECT lineage, tip_name, tip_seq, updated_at FROM lineage_tips ORDER BY lineage ASC
	`)
	if err != nil {
		return nil, err
	}
	for i := range tips {
		tips[i].UpdatedAt = tips[i].UpdatedAt.UTC()
	}
	return tips, nil
}

// isUniqueConstraintError checks whether err indicates a unique constraint violation.
// Works across SQLite, PostgreSQL, and MySQL.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // SQLite & PostgreSQL
		strings.Contains(msg, "duplicate key") || // PostgreSQL
		strings.Contains(msg, "duplicate entry") // MySQL
}
