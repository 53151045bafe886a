package database

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect covers the few statements that differ between the supported
// destination engines: placeholder style and staging-table creation.
// The destination table is authoritative for the staging schema, so
// staging is always derived from it, never from the in-memory rows.
type Dialect interface {
	Name() string
	Placeholder(n int) string
	CreateStagingSQL(staging, dest string) string
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite3" }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) CreateStagingSQL(staging, dest string) string {
	return fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s WHERE 0", quoteIdent(staging), quoteIdent(dest))
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) CreateStagingSQL(staging, dest string) string {
	return fmt.Sprintf("CREATE TABLE %s (LIKE %s INCLUDING DEFAULTS)", quoteIdent(staging), quoteIdent(dest))
}

func quoteIdent(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func joinIdents(identifiers []string) string {
	quoted := make([]string, len(identifiers))
	for i, identifier := range identifiers {
		quoted[i] = quoteIdent(identifier)
	}
	return strings.Join(quoted, ", ")
}
