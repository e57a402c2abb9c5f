// Package spool is a local SQLite dead-letter store. It takes quarantined
// events while the primary store is unreachable.
package spool

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter"
)

//go:embed schema.sql
var schemaSQL string

const timeLayout = time.RFC3339Nano

// Spool uses WAL mode with a single connection.
type Spool struct {
	db  *sql.DB
	now func() time.Time
}

var _ deadletter.Store = (*Spool)(nil)

// Open creates or opens the spool file at path and applies the schema.
func Open(path string) (*Spool, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to spool: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply spool schema: %w", err)
	}
	return &Spool{db: db, now: time.Now}, nil
}

func (s *Spool) Quarantine(ctx context.Context, e deadletter.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_letters (id, topic, event_id, event_type, payload, first_seen_at, last_attempt_at, retry_count, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (topic, event_id) DO NOTHING`,
		e.ID, e.Topic, e.EventID, e.EventType, e.Payload,
		e.FirstSeenAt.UTC().Format(timeLayout), e.LastAttemptAt.UTC().Format(timeLayout),
		e.RetryCount, e.LastError,
	)
	if err != nil {
		return fmt.Errorf("spool quarantine %s/%s: %w", e.Topic, e.EventID, err)
	}
	return nil
}

func (s *Spool) Pending(ctx context.Context, limit int) ([]deadletter.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, event_id, event_type, payload, first_seen_at, last_attempt_at, retry_count, last_error
		FROM dead_letters
		WHERE resolved_at IS NULL
		ORDER BY first_seen_at, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("spool pending: %w", err)
	}
	defer rows.Close()

	var out []deadletter.Entry
	for rows.Next() {
		var e deadletter.Entry
		var first, last string
		if err := rows.Scan(&e.ID, &e.Topic, &e.EventID, &e.EventType, &e.Payload, &first, &last, &e.RetryCount, &e.LastError); err != nil {
			return nil, fmt.Errorf("spool scan: %w", err)
		}
		if e.FirstSeenAt, err = time.Parse(timeLayout, first); err != nil {
			return nil, fmt.Errorf("spool first_seen_at of %s: %w", e.ID, err)
		}
		if e.LastAttemptAt, err = time.Parse(timeLayout, last); err != nil {
			return nil, fmt.Errorf("spool last_attempt_at of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Spool) MarkFailed(ctx context.Context, id string, cause error) error {
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE dead_letters
		SET retry_count = retry_count + 1, last_error = ?, last_attempt_at = ?
		WHERE id = ?`,
		lastError, s.now().UTC().Format(timeLayout), id)
	return affected(res, err, id)
}

func (s *Spool) Resolve(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE dead_letters SET resolved_at = ? WHERE id = ?`,
		s.now().UTC().Format(timeLayout), id)
	return affected(res, err, id)
}

func (s *Spool) Close() error {
	return s.db.Close()
}

func affected(res sql.Result, err error, id string) error {
	if err != nil {
		return fmt.Errorf("spool update %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("spool update %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", deadletter.ErrNotFound, id)
	}
	return nil
}
