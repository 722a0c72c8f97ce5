// Package sqlite keeps notification history in a local SQLite file, for
// single-instance deployments without Firestore.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.

	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

// DefaultListLimit applies when List is called with a non-positive limit.
const DefaultListLimit = 50

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE notification_history (
    id                  TEXT PRIMARY KEY,
    operation_id        TEXT NOT NULL,
    channel             TEXT NOT NULL,
    status              TEXT NOT NULL,
    message             TEXT NOT NULL DEFAULT '',
    provider_message_id TEXT NOT NULL DEFAULT '',
    error_code          TEXT NOT NULL DEFAULT '',
    error               TEXT NOT NULL DEFAULT '',
    requested_by        TEXT NOT NULL DEFAULT '',
    source              TEXT NOT NULL DEFAULT '',
    created_at          INTEGER NOT NULL
);
CREATE INDEX idx_notification_history_created ON notification_history(created_at DESC);
`,
	},
}

// Open opens (or creates) the database at dbPath and applies pending
// migrations. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite is single-writer; serialize all access through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("querying current schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			m.version, time.Now().UTC(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

// HistoryStore implements dispatch.HistoryStore on SQLite.
type HistoryStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewHistoryStore(db *sql.DB, logger *slog.Logger) *HistoryStore {
	return &HistoryStore{db: db, logger: logger.With("component", "SQLiteHistoryStore")}
}

// Record inserts rec. Re-recording an id replaces the earlier row.
func (s *HistoryStore) Record(ctx context.Context, rec notification.NotificationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO notification_history
		    (id, operation_id, channel, status, message, provider_message_id,
		     error_code, error, requested_by, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OperationID, string(rec.Channel), string(rec.Status), rec.Message, rec.ProviderID,
		rec.ErrorCode, rec.Error, rec.RequestedBy, string(rec.Source), rec.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("inserting notification history: %w", err)
	}
	return nil
}

// List returns the newest records first.
func (s *HistoryStore) List(ctx context.Context, limit int) (records []notification.NotificationRecord, err error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation_id, channel, status, message, provider_message_id,
		       error_code, error, requested_by, source, created_at
		FROM notification_history
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notification history: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cerr)
		}
	}()

	records = make([]notification.NotificationRecord, 0, limit)
	for rows.Next() {
		var (
			rec                     notification.NotificationRecord
			channel, status, source string
			createdAt               int64
		)
		if err := rows.Scan(&rec.ID, &rec.OperationID, &channel, &status, &rec.Message, &rec.ProviderID,
			&rec.ErrorCode, &rec.Error, &rec.RequestedBy, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning notification history row: %w", err)
		}
		rec.Channel = notification.ChannelKind(channel)
		rec.Status = notification.EnvelopeStatus(status)
		rec.Source = notification.Source(source)
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notification history rows: %w", err)
	}
	return records, nil
}
