// Package export copies the library into a SQLite database, one table per
// collection, for use with generic SQL tools.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Masterminds/squirrel"
	"github.com/huandu/go-sqlbuilder"
	_ "modernc.org/sqlite"

	"github.com/arthur-debert/bookshelf/bookshelf/field"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

// TableCount is the number of rows written to one table
type TableCount struct {
	Table string
	Rows  int
}

// Exporter writes collections into a SQLite database
type Exporter struct {
	env    schema.Env
	logger *slog.Logger
	sq     squirrel.StatementBuilderType
}

// New creates an Exporter over env
func New(env schema.Env, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		env:    env,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
}

// ToSQLite writes the given tables, or all registered tables, into the
// database at path. Existing tables of the same name are replaced.
func (e *Exporter) ToSQLite(ctx context.Context, path string, tables ...string) ([]TableCount, error) {
	if len(tables) == 0 {
		tables = e.env.Registry.Names()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var counts []TableCount
	for _, table := range tables {
		n, err := e.exportTable(ctx, tx, table)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", table, err)
		}
		counts = append(counts, TableCount{Table: table, Rows: n})
		e.logger.Debug("table exported", "table", table, "rows", n)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	e.logger.Info("export finished", "path", path, "tables", len(counts))
	return counts, nil
}

func (e *Exporter) exportTable(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	s, err := e.env.Schema(table)
	if err != nil {
		return 0, err
	}
	coll, err := e.env.Collection(table)
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(table)); err != nil {
		return 0, fmt.Errorf("failed to drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, CreateTableSQL(s)); err != nil {
		return 0, fmt.Errorf("failed to create table: %w", err)
	}

	columns := Columns(s)
	titles := schema.Titles{Env: e.env}
	records := coll.All()
	for _, r := range records {
		values, err := rowValues(s, titles, r)
		if err != nil {
			return 0, err
		}
		query, args, err := e.sq.Insert(quote(table)).Columns(quoteAll(columns)...).Values(values...).ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("failed to insert %s: %w", r.Key(), err)
		}
	}
	return len(records), nil
}

// Columns lists the exported columns of a schema: id, key, one column per
// field and the JSON document.
func Columns(s *schema.Schema) []string {
	cols := []string{"id", "key"}
	for _, f := range s.Fields() {
		cols = append(cols, f.Name())
	}
	return append(cols, "document")
}

// CreateTableSQL returns the CREATE TABLE statement for a schema
func CreateTableSQL(s *schema.Schema) string {
	ctb := sqlbuilder.NewCreateTableBuilder()
	ctb.SetFlavor(sqlbuilder.SQLite)
	ctb.CreateTable(quote(s.Name()))
	ctb.Define(quote("id"), "INTEGER", "PRIMARY KEY")
	ctb.Define(quote("key"), "TEXT", "NOT NULL", "UNIQUE")
	for _, f := range s.Fields() {
		ctb.Define(quote(f.Name()), "TEXT")
	}
	ctb.Define(quote("document"), "TEXT", "NOT NULL")
	return ctb.String()
}

// rowValues renders a record as it is shown in listings. Empty values are
// stored as NULL.
func rowValues(s *schema.Schema, r field.Resolver, rec store.Record) ([]any, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", rec.Key(), err)
	}
	values := []any{rec.ID(), rec.Key()}
	for _, f := range s.Fields() {
		text := f.Format(r, rec[f.Name()])
		if text == "" {
			values = append(values, nil)
			continue
		}
		values = append(values, text)
	}
	return append(values, string(doc)), nil
}

func quote(name string) string { return `"` + name + `"` }

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return out
}
