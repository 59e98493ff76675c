// Package apply materializes registry lineages into a relational store: each
// lineage becomes a table and each record becomes one transactional batch of
// DDL statements.
package apply

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/nekidev/nekos-api/internal/schema"
)

// Dialect is the SQL dialect DDL is generated for.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return SQLite, nil
	case "postgres", "pgx":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	}
	return "", fmt.Errorf("unsupported dialect %q: must be sqlite3, postgres, or mysql", driver)
}

func (d Dialect) quote(ident string) string {
	if d == MySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

func (d Dialect) idColumn() string {
	switch d {
	case Postgres:
		return d.quote("id") + " BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	case MySQL:
		return d.quote("id") + " BIGINT AUTO_INCREMENT PRIMARY KEY"
	default:
		return d.quote("id") + " INTEGER PRIMARY KEY"
	}
}

// columnType returns the store type for a field definition.
func (d Dialect) columnType(f schema.FieldDefinition) string {
	switch f.Type {
	case schema.TypeString:
		if d == SQLite {
			return "TEXT"
		}
		return fmt.Sprintf("VARCHAR(%d)", f.MaxLength)
	case schema.TypeText:
		return "TEXT"
	case schema.TypeInteger:
		if d == MySQL {
			return "INT"
		}
		return "INTEGER"
	case schema.TypeSmallInteger:
		if d == SQLite {
			return "INTEGER"
		}
		return "SMALLINT"
	case schema.TypeBoolean:
		return "BOOLEAN"
	case schema.TypeTimestamp:
		switch d {
		case Postgres:
			return "TIMESTAMPTZ"
		case MySQL:
			return "DATETIME(6)"
		}
		return "TIMESTAMP"
	case schema.TypeArray:
		switch d {
		case Postgres:
			base := schema.FieldDefinition{Type: f.BaseType}
			return d.columnType(base) + "[]"
		case MySQL:
			return "JSON"
		}
		// JSON-encoded list.
		return "TEXT"
	}
	return "TEXT"
}

// defaultLiteral renders the field default as a SQL literal. ok is false when
// the field has no default.
func (d Dialect) defaultLiteral(f schema.FieldDefinition) (lit string, ok bool) {
	if f.Default == nil {
		return "", false
	}
	v := *f.Default
	switch f.Type {
	case schema.TypeInteger, schema.TypeSmallInteger:
		return v, true
	case schema.TypeBoolean:
		truthy, _ := strconv.ParseBool(v)
		if d == Postgres {
			if truthy {
				return "TRUE", true
			}
			return "FALSE", true
		}
		if truthy {
			return "1", true
		}
		return "0", true
	}
	lit = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	if d == MySQL && f.Type == schema.TypeText {
		// MySQL only accepts expression defaults on TEXT columns.
		lit = "(" + lit + ")"
	}
	return lit, true
}

// checkName is the constraint name for a categorical field's CHECK IN clause,
// kept under the 63-byte identifier limit shared by PostgreSQL and MySQL.
func checkName(lineage, field string) string {
	name := lineage + "_" + field + "_choices"
	if len(name) <= 63 {
		return name
	}
	sum := sha256.Sum256([]byte(lineage + "." + field))
	return "chk_" + hex.EncodeToString(sum[:8])
}

func (d Dialect) checkClause(lineage string, f schema.FieldDefinition) string {
	quoted := make([]string, len(f.Choices))
	for i, c := range f.Choices {
		quoted[i] = "'" + strings.ReplaceAll(c.Value, "'", "''") + "'"
	}
	return fmt.Sprintf("CONSTRAINT %s CHECK (%s IN (%s))",
		d.quote(checkName(lineage, f.Name)), d.quote(f.Name), strings.Join(quoted, ", "))
}

// columnDef renders a full column definition. withCheck controls whether the
// categorical CHECK constraint is inlined.
func (d Dialect) columnDef(lineage string, f schema.FieldDefinition, withCheck bool) string {
	var b strings.Builder
	b.WriteString(d.quote(f.Name))
	b.WriteByte(' ')
	b.WriteString(d.columnType(f))
	if !f.Nullable {
		b.WriteString(" NOT NULL")
	}
	if lit, ok := d.defaultLiteral(f); ok {
		b.WriteString(" DEFAULT ")
		b.WriteString(lit)
	}
	if withCheck && f.IsCategorical() {
		b.WriteByte(' ')
		b.WriteString(d.checkClause(lineage, f))
	}
	return b.String()
}

func (d Dialect) createTable(table string, lineage string, fields []schema.FieldDefinition) string {
	cols := make([]string, 0, len(fields)+1)
	cols = append(cols, d.idColumn())
	for _, f := range fields {
		cols = append(cols, d.columnDef(lineage, f, true))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", d.quote(table), strings.Join(cols, ",\n    "))
}

// Translate returns the DDL that moves a table from schema before to the
// schema after rec. The root record creates the table with all of its fields.
func Translate(d Dialect, lineage string, before schema.Schema, rec *schema.Record) ([]string, error) {
	if err := schema.ValidateLineageName(lineage); err != nil {
		return nil, err
	}

	if rec.IsRoot() {
		after, err := before.ApplyRecord(rec)
		if err != nil {
			return nil, err
		}
		return []string{d.createTable(lineage, lineage, after.Fields())}, nil
	}

	var stmts []string
	table := d.quote(lineage)
	s := before
	for _, op := range rec.Operations {
		next, err := s.Apply(op)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.Name, err)
		}

		switch op.Kind {
		case schema.OpAdd:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, d.columnDef(lineage, *op.Definition, true)))
		case schema.OpRemove:
			old, _ := s.Field(op.Field)
			if d == MySQL && old.IsCategorical() {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CHECK %s", table, d.quote(checkName(lineage, op.Field))))
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, d.quote(op.Field)))
		case schema.OpAlter:
			old, _ := s.Field(op.Field)
			stmts = append(stmts, d.alter(lineage, old, *op.Definition, next)...)
		}
		s = next
	}
	return stmts, nil
}

func (d Dialect) alter(lineage string, old, def schema.FieldDefinition, after schema.Schema) []string {
	table := d.quote(lineage)
	col := d.quote(def.Name)
	var stmts []string

	// Existing NULLs would violate a new NOT NULL; backfill them from the default.
	backfill := ""
	if lit, ok := d.defaultLiteral(def); ok && old.Nullable && !def.Nullable {
		backfill = fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL", table, col, lit, col)
	}

	switch d {
	case Postgres:
		if old.IsCategorical() {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", table, d.quote(checkName(lineage, def.Name))))
		}
		if d.columnType(old) != d.columnType(def) {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", table, col, d.columnType(def)))
		}
		if lit, ok := d.defaultLiteral(def); ok {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", table, col, lit))
		} else if old.Default != nil {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", table, col))
		}
		if backfill != "" {
			stmts = append(stmts, backfill)
		}
		if def.Nullable {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", table, col))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, col))
		}
		if def.IsCategorical() {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD %s", table, d.checkClause(lineage, def)))
		}
	case MySQL:
		if old.IsCategorical() {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CHECK %s", table, d.quote(checkName(lineage, def.Name))))
		}
		if backfill != "" {
			stmts = append(stmts, backfill)
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", table, d.columnDef(lineage, def, false)))
		if def.IsCategorical() {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD %s", table, d.checkClause(lineage, def)))
		}
	default:
		// SQLite cannot alter a column in place: rebuild the table.
		if backfill != "" {
			stmts = append(stmts, backfill)
		}
		tmp := lineage + "__new"
		names := append([]string{"id"}, after.Names()...)
		cols := make([]string, len(names))
		for i, n := range names {
			cols[i] = d.quote(n)
		}
		list := strings.Join(cols, ", ")
		stmts = append(stmts,
			d.createTable(tmp, lineage, after.Fields()),
			fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", d.quote(tmp), list, list, table),
			fmt.Sprintf("DROP TABLE %s", table),
			fmt.Sprintf("ALTER TABLE %s RENAME TO %s", d.quote(tmp), table),
		)
	}
	return stmts
}
