package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mbolis/typeform-etl/config"
)

// Open connects to the destination database, applies pending schema
// migrations and validates the table contract before anything is
// fetched. A connection failure is fatal for the whole run.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, Dialect, error) {
	driver, dsn, dialect := resolveDriver(cfg.DBUrl)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("can't connect to DB: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("can't connect to DB: %w", err)
	}

	if dialect.Name() == "sqlite3" {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	// db tuning options: one sync runs at a time, keep the pool small
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := migrateDB(db, dialect, cfg.TablePrefix); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate schema: %w", err)
	}
	if err := validateSchema(ctx, db, cfg.TablePrefix); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, dialect, nil
}

// resolveDriver picks the SQL driver from the URL shape: PostgreSQL URLs
// go to pq, everything else is treated as an SQLite3 file path.
func resolveDriver(dbURL string) (driver, dsn string, dialect Dialect) {
	switch {
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		return "postgres", dbURL, postgresDialect{}
	default:
		dsn = strings.TrimPrefix(dbURL, "sqlite3://")
		dsn = strings.TrimPrefix(dsn, "sqlite://")
		return "sqlite3", dsn, sqliteDialect{}
	}
}

// validateSchema checks that every destination table exposes the columns
// the loader is going to write. The destination schema is an explicit
// contract: failing here is better than failing halfway through a merge.
func validateSchema(ctx context.Context, db *sql.DB, prefix string) error {
	for _, table := range append(entityTables(), bookkeepingTables()...) {
		name := prefix + table.name

		rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 0 = 1", quoteIdent(name)))
		if err != nil {
			return fmt.Errorf("table %q: %w", name, err)
		}
		columns, err := rows.Columns()
		rows.Close()
		if err != nil {
			return fmt.Errorf("table %q: %w", name, err)
		}

		present := make(map[string]bool, len(columns))
		for _, column := range columns {
			present[strings.ToLower(column)] = true
		}
		for _, want := range table.columns {
			if !present[want] {
				return fmt.Errorf("table %q is missing column %q", name, want)
			}
		}
	}
	return nil
}
