package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"tradedesk/internal/refresh"
)

// Compile-time interface check.
var _ Recorder = (*SQLiteRecorder)(nil)

// SQLiteRecorder implements Recorder backed by a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS refresh_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	ok          INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_refresh_events_finished
	ON refresh_events (finished_at DESC);
`

// NewSQLiteRecorder opens (or creates) a SQLite database at dbPath and
// ensures the schema exists.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &SQLiteRecorder{db: db}, nil
}

// Close closes the underlying database connection.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

// Record appends one refresh event.
func (r *SQLiteRecorder) Record(ctx context.Context, ev Event) error {
	ok := 0
	if ev.OK {
		ok = 1
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_events (source, started_at, finished_at, ok, error)
		 VALUES (?, ?, ?, ?, ?)`,
		string(ev.Source), ev.StartedAt.UnixMilli(), ev.FinishedAt.UnixMilli(), ok, ev.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting refresh event: %w", err)
	}
	return nil
}

// Recent returns the most recent events, newest first, up to limit.
func (r *SQLiteRecorder) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, source, started_at, finished_at, ok, error
		 FROM refresh_events ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying refresh events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev               Event
			source           string
			started, finished int64
			ok               int
		)
		if err := rows.Scan(&ev.ID, &source, &started, &finished, &ok, &ev.Error); err != nil {
			return nil, fmt.Errorf("scanning refresh event: %w", err)
		}
		ev.Source = refresh.Source(source)
		ev.StartedAt = time.UnixMilli(started)
		ev.FinishedAt = time.UnixMilli(finished)
		ev.OK = ok == 1
		events = append(events, ev)
	}
	return events, rows.Err()
}
