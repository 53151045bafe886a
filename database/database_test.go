package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveDriver(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantDriver string
		wantDSN    string
	}{
		{"postgres url", "postgres://etl:pw@localhost/forms", "postgres", "postgres://etl:pw@localhost/forms"},
		{"postgresql url", "postgresql://localhost/forms", "postgres", "postgresql://localhost/forms"},
		{"sqlite3 scheme", "sqlite3:///var/lib/etl/forms.db", "sqlite3", "/var/lib/etl/forms.db"},
		{"sqlite scheme", "sqlite://forms.db", "sqlite3", "forms.db"},
		{"bare path", "forms.db", "sqlite3", "forms.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, dsn, dialect := resolveDriver(tt.url)
			require.Equal(t, tt.wantDriver, driver)
			require.Equal(t, tt.wantDSN, dsn)
			require.Equal(t, tt.wantDriver, dialect.Name())
		})
	}
}

func TestDialectStatements(t *testing.T) {
	t.Run("sqlite", func(t *testing.T) {
		d := sqliteDialect{}
		require.Equal(t, "?", d.Placeholder(1))
		require.Equal(t, "?", d.Placeholder(7))
		require.Equal(t,
			`CREATE TABLE "tf_forms_temp" AS SELECT * FROM "tf_forms" WHERE 0`,
			d.CreateStagingSQL("tf_forms_temp", "tf_forms"))
	})
	t.Run("postgres", func(t *testing.T) {
		d := postgresDialect{}
		require.Equal(t, "$1", d.Placeholder(1))
		require.Equal(t, "$7", d.Placeholder(7))
		require.Equal(t,
			`CREATE TABLE "tf_forms_temp" (LIKE "tf_forms" INCLUDING DEFAULTS)`,
			d.CreateStagingSQL("tf_forms_temp", "tf_forms"))
	})
	t.Run("quoting", func(t *testing.T) {
		require.Equal(t, `"weird""name"`, quoteIdent(`weird"name`))
	})
}
