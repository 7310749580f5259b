package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

// deleteChunkSize bounds the number of ids bound into one DELETE statement.
const deleteChunkSize = 100

// Store defines the message store operations. Full scan is the only read
// path; there is no pagination or secondary index, which limits the service
// to demo-scale logs.
//
// Backend failures are reported as errs.ErrStoreUnavailable. No operation
// retries on its own.
type Store interface {
	// Ping checks the backend connection.
	Ping(ctx context.Context) error

	// Append persists a fully populated message. Id and timestamp are
	// assigned by the caller.
	Append(ctx context.Context, message *Message) error

	// ScanAll returns every stored message. The SQL and memory backends
	// return them in insertion order; DynamoDB returns its scan order.
	ScanAll(ctx context.Context) ([]Message, error)

	// DeleteAll reads the full set, then deletes every entry it read, and
	// returns the number deleted. It is not atomic with concurrent appends:
	// a message appended after the read survives the call.
	DeleteAll(ctx context.Context) (int, error)

	// RunMaintenance performs backend housekeeping.
	RunMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store", "backend", "sqlite"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.NewStoreError("database ping failed", err)
	}
	return nil
}

func (s *sqlxStore) Append(ctx context.Context, message *Message) error {
	if err := validateMessage(message); err != nil {
		return err
	}

	query := `
        INSERT INTO messages (id, created_at, text, ai_generated, username, tenant_id)
        VALUES (:id, :created_at, :text, :ai_generated, :username, :tenant_id);
    `

	result, err := s.db.NamedExecContext(ctx, query, toMessageRow(message))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error appending message",
			"message_id", message.ID, "tenant_id", message.TenantID, "error", err)
		return errs.NewStoreError("failed to append message", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected != 1 {
		s.logger.WarnContext(ctx, "Unexpected number of rows affected when appending message",
			"message_id", message.ID, "affected", affected)
	}

	s.logger.DebugContext(ctx, "Message appended",
		"message_id", message.ID, "tenant_id", message.TenantID, "ai_generated", message.AIGenerated)
	return nil
}

func (s *sqlxStore) ScanAll(ctx context.Context) ([]Message, error) {
	var rows []messageRow
	query := `
        SELECT id, created_at, text, ai_generated, username, tenant_id
        FROM messages
        ORDER BY rowid;
    `

	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		s.logger.ErrorContext(ctx, "Error scanning messages", "error", err)
		return nil, errs.NewStoreError("failed to scan messages", err)
	}

	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		m, err := row.toMessage()
		if err != nil {
			s.logger.WarnContext(ctx, "Stored message has an unparsable created_at",
				"message_id", row.ID, "created_at", row.CreatedAt, "error", err)
		}
		messages = append(messages, m)
	}

	s.logger.DebugContext(ctx, "Scanned messages", "count", len(messages))
	return messages, nil
}

func (s *sqlxStore) DeleteAll(ctx context.Context) (int, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM messages`); err != nil {
		s.logger.ErrorContext(ctx, "Error reading message ids for deletion", "error", err)
		return 0, errs.NewStoreError("failed to read messages for deletion", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for deletion", "error", err)
		return 0, errs.NewStoreError("failed to begin transaction", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	deleted := 0
	for start := 0; start < len(ids); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(ids))

		query, args, err := sqlx.In(`DELETE FROM messages WHERE id IN (?)`, ids[start:end])
		if err != nil {
			return 0, errs.NewStoreError("failed to build delete query", err)
		}

		result, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error deleting messages", "error", err)
			return 0, errs.NewStoreError("failed to delete messages", err)
		}
		if affected, err := result.RowsAffected(); err == nil {
			deleted += int(affected)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit deletion", "error", err)
		return 0, errs.NewStoreError("failed to commit deletion", err)
	}
	tx = nil

	s.logger.InfoContext(ctx, "Deleted all messages", "read", len(ids), "deleted", deleted)
	return deleted, nil
}

// RunMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return errs.NewStoreError("failed to execute VACUUM", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
