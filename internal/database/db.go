// Package database provides the message store: durable append, full-scan
// retrieval and bulk deletion of chat messages over SQLite, DynamoDB or
// process memory.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
	"github.com/PbVrCt/serverless-chat-demo/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// busyTimeout is how long a connection waits on a locked database file.
const busyTimeout = 5 * time.Second

// OpenSQLite connects to the SQLite database at path (a file path, a file:
// URI or ":memory:"), migrates the messages schema to the latest version and
// returns the pool. The pool holds a single connection: SQLite serialises
// writers, and an in-memory database lives only as long as its connection.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := logger.With("component", "store", "backend", "sqlite", "path", path)

	db, err := sqlx.ConnectContext(ctx, "sqlite", sqliteDSN(path))
	if err != nil {
		return nil, errs.NewStoreError("failed to connect to sqlite", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if !isInMemory(path) {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	version, err := migrateSchema(db.DB, migrationTarget(path), log)
	if err != nil {
		closeSQLite(db, log)
		return nil, errs.NewStoreError("failed to migrate messages schema", err)
	}

	log.InfoContext(ctx, "SQLite store ready", "schema_version", version)
	return db, nil
}

// sqliteDSN appends the connection pragmas to path. Journal mode only
// applies to file databases.
func sqliteDSN(path string) string {
	pragmas := url.Values{}
	pragmas.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	pragmas.Add("_pragma", "foreign_keys(1)")
	if !isInMemory(path) {
		pragmas.Add("_pragma", "journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + pragmas.Encode()
}

func closeSQLite(db *sqlx.DB, log *slog.Logger) {
	if db == nil {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing sqlite connection", "error", err)
		return
	}
	log.Info("SQLite connection closed")
}

// migrateSchema applies every pending embedded migration and returns the
// resulting schema version. A database left dirty by an interrupted
// migration is reported rather than used.
func migrateSchema(db *sql.DB, name string, log *slog.Logger) (uint, error) {
	if db == nil {
		return 0, errors.New("nil database handle")
	}
	if name == "" {
		return 0, errors.New("empty database name")
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("open embedded migrations: %w", err)
	}
	target, err := sqlite.WithInstance(db, &sqlite.Config{DatabaseName: name})
	if err != nil {
		return 0, fmt.Errorf("create sqlite migration driver: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}

	switch err := migrator.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("Messages schema already up to date")
	case err != nil:
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// migrationTarget reduces a DSN to the database name the migration driver
// records: no file: scheme, no query, percent-decoded.
func migrationTarget(path string) string {
	path = strings.TrimPrefix(path, "file:")
	path, _, _ = strings.Cut(path, "?")

	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}
	return path
}

func isInMemory(path string) bool {
	return strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
}
