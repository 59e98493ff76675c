package apply

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/nekidev/nekos-api/internal/metrics"
	"github.com/nekidev/nekos-api/internal/registry"
	"github.com/nekidev/nekos-api/internal/schema"
)

// VersionTablePrefix prefixes the per-lineage table recording applied records.
const VersionTablePrefix = "schema_apply_"

// Step is one record's planned DDL.
type Step struct {
	Record     string   `json:"record"`
	Seq        int64    `json:"seq"`
	Statements []string `json:"statements"`
}

// Result describes one record applied by Apply.
type Result struct {
	Record   string        `json:"record"`
	Seq      int64         `json:"seq"`
	Duration time.Duration `json:"duration"`
}

// RecordStatus reports whether a record has reached the target store.
type RecordStatus struct {
	Record    string     `json:"record"`
	Seq       int64      `json:"seq"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// Engine applies registry lineages to a target database.
type Engine struct {
	db       *sqlx.DB
	dialect  Dialect
	registry *registry.Registry
}

// NewEngine creates an Engine writing to db in the given dialect.
func NewEngine(db *sqlx.DB, dialect Dialect, reg *registry.Registry) *Engine {
	return &Engine{db: db, dialect: dialect, registry: reg}
}

// lineagePlan is the resolved chain of a lineage with the DDL of each record.
type lineagePlan struct {
	steps []Step
}

func (e *Engine) plan(ctx context.Context, lineage string) (*lineagePlan, error) {
	if err := schema.ValidateLineageName(lineage); err != nil {
		return nil, err
	}
	lp := &lineagePlan{}
	var before schema.Schema
	for rec, err := range e.registry.Resolve(ctx, lineage) {
		if err != nil {
			return nil, err
		}
		stmts, err := Translate(e.dialect, lineage, before, rec)
		if err != nil {
			return nil, err
		}
		next, err := before.ApplyRecord(rec)
		if err != nil {
			return nil, err
		}
		before = next
		lp.steps = append(lp.steps, Step{Record: rec.Name, Seq: rec.Seq, Statements: stmts})
	}
	return lp, nil
}

// provider builds a goose provider with one Go migration per record. Version
// numbers are record sequence numbers, tracked in schema_apply_<lineage>.
// The provider shares e.db, so it is never closed.
func (e *Engine) provider(lineage string, lp *lineagePlan) (*goose.Provider, error) {
	store, err := database.NewStore(gooseDialect(e.dialect), VersionTablePrefix+lineage)
	if err != nil {
		return nil, fmt.Errorf("version store for %s: %w", lineage, err)
	}

	migrations := make([]*goose.Migration, 0, len(lp.steps))
	for _, step := range lp.steps {
		stmts := step.Statements
		migrations = append(migrations, goose.NewGoMigration(step.Seq, &goose.GoFunc{
			RunTx: func(ctx context.Context, tx *sql.Tx) error {
				for _, stmt := range stmts {
					if _, err := tx.ExecContext(ctx, stmt); err != nil {
						return fmt.Errorf("%s: %w", stmt, err)
					}
				}
				return nil
			},
		}, nil))
	}

	return goose.NewProvider("", e.db.DB, nil,
		goose.WithStore(store),
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(migrations...),
	)
}

func gooseDialect(d Dialect) database.Dialect {
	switch d {
	case Postgres:
		return database.DialectPostgres
	case MySQL:
		return database.DialectMySQL
	default:
		return database.DialectSQLite3
	}
}

func (e *Engine) versionTableExists(ctx context.Context, lineage string) (bool, error) {
	var query string
	switch e.dialect {
	case Postgres:
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`
	case MySQL:
		query = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`
	default:
		query = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	}
	var n int
	if err := e.db.GetContext(ctx, &n, e.db.Rebind(query), VersionTablePrefix+lineage); err != nil {
		return false, fmt.Errorf("look up version table of %s: %w", lineage, err)
	}
	return n > 0, nil
}

// Plan returns the DDL of every record of lineage not yet applied.
func (e *Engine) Plan(ctx context.Context, lineage string) ([]Step, error) {
	lp, err := e.plan(ctx, lineage)
	if err != nil {
		return nil, err
	}
	statuses, err := e.status(ctx, lineage, lp)
	if err != nil {
		return nil, err
	}
	var pending []Step
	for i, st := range statuses {
		if !st.Applied {
			pending = append(pending, lp.steps[i])
		}
	}
	return pending, nil
}

// Status reports, per record, whether it has been applied.
func (e *Engine) Status(ctx context.Context, lineage string) ([]RecordStatus, error) {
	lp, err := e.plan(ctx, lineage)
	if err != nil {
		return nil, err
	}
	return e.status(ctx, lineage, lp)
}

func (e *Engine) status(ctx context.Context, lineage string, lp *lineagePlan) ([]RecordStatus, error) {
	out := make([]RecordStatus, len(lp.steps))
	for i, step := range lp.steps {
		out[i] = RecordStatus{Record: step.Record, Seq: step.Seq}
	}
	if len(lp.steps) == 0 {
		return out, nil
	}
	exists, err := e.versionTableExists(ctx, lineage)
	if err != nil {
		return nil, err
	}
	if !exists {
		return out, nil
	}

	p, err := e.provider(lineage, lp)
	if err != nil {
		return nil, err
	}

	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("status of %s: %w", lineage, err)
	}
	applied := make(map[int64]time.Time, len(statuses))
	for _, st := range statuses {
		if st.State == goose.StateApplied {
			applied[st.Source.Version] = st.AppliedAt
		}
	}
	for i := range out {
		if at, ok := applied[out[i].Seq]; ok {
			at := at.UTC()
			out[i].Applied = true
			out[i].AppliedAt = &at
		}
	}
	return out, nil
}

// Apply brings the target table of lineage up to the lineage tip. Each record
// runs in its own transaction; the first failure stops the lineage and is
// returned as *schema.ApplyError alongside the records applied before it.
func (e *Engine) Apply(ctx context.Context, lineage string) ([]Result, error) {
	start := time.Now()
	defer func() { metrics.ApplyDuration.Observe(time.Since(start).Seconds()) }()

	lp, err := e.plan(ctx, lineage)
	if err != nil {
		return nil, err
	}
	if len(lp.steps) == 0 {
		return nil, nil
	}

	p, err := e.provider(lineage, lp)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(lp.steps))
	for _, step := range lp.steps {
		names[step.Seq] = step.Record
	}

	results, err := p.Up(ctx)
	var partial *goose.PartialError
	if errors.As(err, &partial) {
		results = partial.Applied
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		v := r.Source.Version
		out = append(out, Result{Record: names[v], Seq: v, Duration: r.Duration})
		log.Info().Str("lineage", lineage).Str("record", names[v]).Dur("duration", r.Duration).Msg("schema record applied")
	}
	metrics.RecordsApplied.WithLabelValues(lineage).Add(float64(len(out)))

	if err != nil {
		metrics.ApplyFailures.WithLabelValues(lineage).Inc()
		failed := ""
		if partial != nil && partial.Failed != nil {
			failed = names[partial.Failed.Source.Version]
			err = partial.Err
		}
		log.Error().Err(err).Str("lineage", lineage).Str("record", failed).Msg("schema record apply failed")
		return out, &schema.ApplyError{Lineage: lineage, Record: failed, Err: err}
	}
	return out, nil
}

// ApplyAll applies every known lineage. Lineages run concurrently, records
// within a lineage in order. SQLite allows one writer, so its lineages run one
// at a time. A failing lineage stops only itself; the returned error joins
// the failure of every lineage that did not reach its tip.
func (e *Engine) ApplyAll(ctx context.Context) (map[string][]Result, error) {
	tips, err := e.registry.Lineages(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		out  = make(map[string][]Result, len(tips))
		errs []error
		g    errgroup.Group
	)
	if e.dialect == SQLite {
		g.SetLimit(1)
	} else {
		g.SetLimit(4)
	}
	for _, tip := range tips {
		lineage := tip.Lineage
		g.Go(func() error {
			res, err := e.Apply(ctx, lineage)
			mu.Lock()
			defer mu.Unlock()
			out[lineage] = res
			if err != nil {
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, errors.Join(errs...)
}
