package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq" // postgres driver

	"github.com/apifactory/llm-gateway/services/audit"
)

// PostgresWriter persists archive records in Postgres.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection pool for the given DSN and verifies
// connectivity.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging archive database: %w", err)
	}
	return &PostgresWriter{db: db}, nil
}

// NewPostgresWriterFromDB wraps an existing pool, mainly for tests.
func NewPostgresWriterFromDB(db *sql.DB) *PostgresWriter {
	return &PostgresWriter{db: db}
}

// Close releases the connection pool.
func (w *PostgresWriter) Close() error {
	return w.db.Close()
}

// InitSchema creates the archive tables if they do not exist.
func (w *PostgresWriter) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS archived_keys (
			id         TEXT PRIMARY KEY,
			fields     JSONB NOT NULL,
			disabled   BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			entry_hash    TEXT PRIMARY KEY,
			ts            TIMESTAMPTZ NOT NULL,
			action        TEXT NOT NULL,
			user_id       TEXT NOT NULL,
			resource_id   TEXT NOT NULL,
			details       JSONB,
			previous_hash TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS retention_records (
			data_id    TEXT PRIMARY KEY,
			record     JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initializing archive schema: %w", err)
		}
	}
	return nil
}

// WriteKeyRecord upserts a key record snapshot.
func (w *PostgresWriter) WriteKeyRecord(ctx context.Context, id string, fields map[string]string) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding key record: %w", err)
	}
	_, err = w.db.ExecContext(ctx,
		`INSERT INTO archived_keys (id, fields, disabled, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (id) DO UPDATE SET fields = EXCLUDED.fields, disabled = EXCLUDED.disabled, updated_at = NOW()`,
		id, payload, fields["disabled"] == "1")
	return err
}

// MarkKeyDisabled flags an archived key record as disabled.
func (w *PostgresWriter) MarkKeyDisabled(ctx context.Context, id string) error {
	_, err := w.db.ExecContext(ctx,
		`UPDATE archived_keys SET disabled = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// WriteAuditEntry inserts an audit entry. Entries are immutable, so a
// replayed hash is a no-op.
func (w *PostgresWriter) WriteAuditEntry(ctx context.Context, e audit.Entry) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("encoding audit details: %w", err)
	}
	_, err = w.db.ExecContext(ctx,
		`INSERT INTO audit_entries (entry_hash, ts, action, user_id, resource_id, details, previous_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (entry_hash) DO NOTHING`,
		e.EntryHash, e.Timestamp, e.Action, e.UserID, e.ResourceID, details, e.PreviousHash)
	return err
}

// WriteRetentionRecord upserts a retention record.
func (w *PostgresWriter) WriteRetentionRecord(ctx context.Context, id string, record map[string]interface{}) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding retention record: %w", err)
	}
	_, err = w.db.ExecContext(ctx,
		`INSERT INTO retention_records (data_id, record, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (data_id) DO UPDATE SET record = EXCLUDED.record, updated_at = NOW()`,
		id, payload)
	return err
}
