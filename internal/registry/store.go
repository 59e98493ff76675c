// Package registry persists schema-change records per lineage and enforces
// that each lineage forms a single, tamper-evident chain.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/nekidev/nekos-api/internal/schema"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTipMoved is returned by Store.Insert when the lineage tip no longer
	// matches the record's predecessor.
	ErrTipMoved = errors.New("lineage tip moved")

	// ErrBrokenChain is returned while resolving a lineage whose stored
	// records do not link up or whose checksums do not verify.
	ErrBrokenChain = errors.New("broken record chain")
)

// LineageTip summarises one lineage: its newest record and its length.
type LineageTip struct {
	Lineage   string    `db:"lineage" json:"lineage"`
	TipName   string    `db:"tip_name" json:"tip"`
	TipSeq    int64     `db:"tip_seq" json:"records"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Store is a keyed lineage → tip store with append-only record history.
type Store interface {
	// Tip returns the newest record of lineage, or nil when it has none.
	Tip(ctx context.Context, lineage string) (*schema.Record, error)
	// Insert appends rec. It succeeds only while the stored tip name equals
	// rec.Predecessor and returns ErrTipMoved otherwise.
	Insert(ctx context.Context, rec *schema.Record) error
	// Page returns up to limit records with Seq > afterSeq in ascending order.
	Page(ctx context.Context, lineage string, afterSeq int64, limit int) ([]*schema.Record, error)
	// Get returns the named record or ErrNotFound.
	Get(ctx context.Context, lineage, name string) (*schema.Record, error)
	// Lineages lists every lineage with at least one record, by name.
	Lineages(ctx context.Context) ([]LineageTip, error)
}
