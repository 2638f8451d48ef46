package dbtest

import (
	"database/sql"
	"net/http"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	migrate "github.com/rubenv/sql-migrate"

	"github.com/starkescrow/starkescrow/internal/db/migrations"
)

// DB is a throwaway SQLite database living in the test's temporary directory.
type DB struct {
	DSN  string
	path string
	t    *testing.T
}

// Open returns a database with every migration applied.
func Open(t *testing.T) *DB {
	t.Helper()
	db := OpenWithoutMigrations(t)

	conn := db.Open()
	defer conn.Close()

	m := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(migrations.FS)}
	if _, err := migrate.Exec(conn, "sqlite3", m, migrate.Up); err != nil {
		t.Fatal(err)
	}

	return db
}

// OpenWithoutMigrations returns an empty database.
func OpenWithoutMigrations(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "starkescrow.db")
	return &DB{DSN: "file:" + path, path: path, t: t}
}

// Open opens a raw connection to the database. Callers close it.
func (db *DB) Open() *sql.DB {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		db.t.Fatal(err)
	}
	return conn
}

// Close is a no-op kept so tests can defer it; the file is removed with the temporary directory.
func (db *DB) Close() {}
