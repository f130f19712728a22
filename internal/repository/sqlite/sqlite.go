// Package sqlite implements the repository interfaces on SQLite.
//
// A plain path or ":memory:" opens a local database through the pure-Go
// modernc driver; a libsql:// (or wss://) URL opens a remote Turso database
// through the libSQL client. Both speak the same SQL dialect, so every query
// in this package serves either.
//
// The schema lives in migrations/*.sql and is applied with goose on open.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/pressly/goose/v3"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // registers "libsql"
	_ "modernc.org/sqlite"                               // registers "sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sql.DB connection pool and implements every repository
// interface in internal/repository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dsn and runs pending migrations.
//
// dsn examples:
//   - "data/linkspark.db"           → local file
//   - ":memory:"                    → in-memory (tests)
//   - "libsql://db-org.turso.io?authToken=..." → remote libSQL
func New(dsn string) (*DB, error) {
	driver := driverFor(dsn)

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite has a single writer. One pooled connection serialises writers
	// instead of surfacing SQLITE_BUSY, and keeps ":memory:" databases from
	// splitting into one database per connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if driver == "sqlite" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	// Foreign keys are off by default; links and tokens cascade with users.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func driverFor(dsn string) string {
	if strings.HasPrefix(dsn, "libsql://") || strings.HasPrefix(dsn, "wss://") ||
		strings.HasPrefix(dsn, "https://") {
		return "libsql"
	}
	return "sqlite"
}

// migrate applies the embedded goose migrations.
func (db *DB) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db.conn, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the current schema version.
func (db *DB) MigrationVersion(ctx context.Context) (int64, error) {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return 0, err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.conn, fsys)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

// uniqueViolation reports whether err is a UNIQUE constraint failure and, if
// so, which "table.column" it hit. Both drivers report constraint failures
// with SQLite's own message text.
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	msg := err.Error()
	const marker = "UNIQUE constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", false
	}
	column := msg[i+len(marker):]
	if j := strings.IndexAny(column, " ,)"); j >= 0 {
		column = column[:j]
	}
	return column, true
}

// rollback is deferred after BeginTx; it is a no-op once Commit succeeded.
func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}

// nullString maps "" to NULL so UNIQUE columns can be left unset by many rows.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
