package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mbolis/typeform-etl/config"
	"github.com/mbolis/typeform-etl/log"
	"github.com/mbolis/typeform-etl/model"
)

// Loader merges a dataset into the destination tables through staging
// tables: stage, upsert, drop. Re-running it with the same dataset is a
// no-op on existing keys.
type Loader struct {
	db        *sql.DB
	dialect   Dialect
	prefix    string
	chunkSize int
}

func NewLoader(db *sql.DB, dialect Dialect, prefix string, chunkSize int) *Loader {
	if chunkSize <= 0 {
		chunkSize = config.DefaultChunkSize
	}
	return &Loader{
		db:        db,
		dialect:   dialect,
		prefix:    prefix,
		chunkSize: chunkSize,
	}
}

func (l *Loader) Load(ctx context.Context, ds model.Dataset) error {
	for _, table := range entityTables() {
		if err := l.loadTable(ctx, table, table.rows(ds)); err != nil {
			return fmt.Errorf("load %q: %w", table.name, err)
		}
	}
	return nil
}

func (l *Loader) loadTable(ctx context.Context, table tableSpec, rows [][]any) error {
	dest := l.prefix + table.name
	staging := dest + "_temp"
	log.Debugf("db.load.%s: %d rows", table.name, len(rows))

	// a failed previous run may have left the staging table behind
	if _, err := l.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(staging)); err != nil {
		return fmt.Errorf("drop stale staging table: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, l.dialect.CreateStagingSQL(staging, dest)); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	if err := l.fillStaging(ctx, staging, table.columns, rows); err != nil {
		return fmt.Errorf("write staging table: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, upsertSQL(dest, staging, table.columns)); err != nil {
		return fmt.Errorf("merge staging table: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, "DROP TABLE "+quoteIdent(staging)); err != nil {
		return fmt.Errorf("drop staging table: %w", err)
	}
	return nil
}

// fillStaging writes the rows in one shot, unless they exceed the chunk
// threshold by a worthwhile margin, in which case successive fixed-size
// chunks bound memory and statement size.
func (l *Loader) fillStaging(ctx context.Context, staging string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	chunk := len(rows)
	if len(rows) > l.chunkSize+l.chunkSize/4 {
		chunk = l.chunkSize
	}
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		if err := l.insertChunk(ctx, staging, columns, rows[start:end]); err != nil {
			return err
		}
		log.Debugf("db.load.staging: wrote %s [%d:%d)", staging, start, end)
	}
	return nil
}

func (l *Loader) insertChunk(ctx context.Context, staging string, columns []string, rows [][]any) error {
	var stmt strings.Builder
	stmt.WriteString("INSERT INTO " + quoteIdent(staging) + " (" + joinIdents(columns) + ") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	n := 1
	for i, row := range rows {
		if i > 0 {
			stmt.WriteByte(',')
		}
		stmt.WriteByte('(')
		for j := range columns {
			if j > 0 {
				stmt.WriteByte(',')
			}
			stmt.WriteString(l.dialect.Placeholder(n))
			n++
			args = append(args, row[j])
		}
		stmt.WriteByte(')')
	}

	_, err := l.db.ExecContext(ctx, stmt.String(), args...)
	return err
}

// upsertSQL merges staging into the destination: new keys insert,
// existing keys are overwritten with the staged values. The "WHERE true"
// keeps SQLite's parser from reading ON CONFLICT as a join clause.
func upsertSQL(dest, staging string, columns []string) string {
	assignments := make([]string, 0, len(columns)-1)
	for _, column := range columns[1:] {
		assignments = append(assignments, quoteIdent(column)+" = excluded."+quoteIdent(column))
	}
	return fmt.Sprintf(`
	INSERT INTO %s (%s)
	SELECT %s FROM %s WHERE true
	ON CONFLICT (%s) DO UPDATE SET %s`,
		quoteIdent(dest), joinIdents(columns),
		joinIdents(columns), quoteIdent(staging),
		quoteIdent(columns[0]), strings.Join(assignments, ", "))
}
