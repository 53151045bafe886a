package database

import (
	"bytes"
	"database/sql"
	"embed"
	"errors"
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratelite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var dbMigrations embed.FS

// migrateDB applies pending schema migrations. The migration sources are
// templates: table names carry a {{prefix}} placeholder, rendered here,
// so multiple prefixed deployments can share one database. The
// migrations bookkeeping table is prefixed too.
func migrateDB(db *sql.DB, dialect Dialect, prefix string) error {
	src, err := iofs.New(renderedFS{base: dbMigrations, prefix: prefix}, "migrations")
	if err != nil {
		return err
	}

	var dst migratedb.Driver
	switch dialect.Name() {
	case "postgres":
		dst, err = migratepg.WithInstance(db, &migratepg.Config{
			MigrationsTable: prefix + "schema_migrations",
		})
	default:
		dst, err = migratelite.WithInstance(db, &migratelite.Config{
			MigrationsTable: prefix + "schema_migrations",
		})
	}
	if err != nil {
		return err
	}

	migrator, err := migrate.NewWithInstance("iofs", src, dialect.Name(), dst)
	if err != nil {
		return err
	}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		// db already up to date
		return nil
	default:
		return err
	}
}

// renderedFS serves the embedded migrations with the {{prefix}}
// placeholder expanded. Directories pass through untouched so directory
// listing keeps working.
type renderedFS struct {
	base   fs.FS
	prefix string
}

func (r renderedFS) Open(name string) (fs.File, error) {
	file, err := r.base.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		return file, nil
	}

	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		return nil, err
	}
	data = bytes.ReplaceAll(data, []byte("{{prefix}}"), []byte(r.prefix))
	return &renderedFile{name: path.Base(name), Reader: bytes.NewReader(data)}, nil
}

type renderedFile struct {
	name string
	*bytes.Reader
}

func (f *renderedFile) Stat() (fs.FileInfo, error) { return f, nil }
func (f *renderedFile) Close() error               { return nil }

func (f *renderedFile) Name() string       { return f.name }
func (f *renderedFile) Size() int64        { return f.Reader.Size() }
func (f *renderedFile) Mode() fs.FileMode  { return 0444 }
func (f *renderedFile) ModTime() time.Time { return time.Time{} }
func (f *renderedFile) IsDir() bool        { return false }
func (f *renderedFile) Sys() any           { return nil }
