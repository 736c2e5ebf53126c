// Package catalog indexes persisted recordings in SQLite so sessions can be
// resolved by id without scanning the recordings directory.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS recordings (
	session_id  TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	start_time  INTEGER NOT NULL,
	end_time    INTEGER NOT NULL,
	event_count INTEGER NOT NULL,
	device_name TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recordings_start ON recordings(start_time DESC);`

// Record describes one persisted recording.
type Record struct {
	SessionID  string    `json:"session_id"`
	Path       string    `json:"path"`
	Start      time.Time `json:"start_time"`
	End        time.Time `json:"end_time"`
	EventCount int       `json:"event_count"`
	DeviceName string    `json:"device_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SQLiteCatalog implements the recording catalog on a single SQLite file.
type SQLiteCatalog struct {
	db  *sql.DB
	mu  sync.Mutex // single writer
	now func() time.Time
}

// Open opens (creating if needed) the catalog at dbPath.
func Open(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: failed to initialize schema: %w", err)
	}
	return &SQLiteCatalog{db: db, now: time.Now}, nil
}

// Register inserts or replaces the entry for r.SessionID.
func (c *SQLiteCatalog) Register(ctx context.Context, r Record) error {
	if r.SessionID == "" {
		return errors.New("catalog: session id must not be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO recordings (
			session_id, path, start_time, end_time, event_count, device_name, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Path, r.Start.UnixNano(), r.End.UnixNano(), r.EventCount, r.DeviceName, c.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("catalog: failed to register %s: %w", r.SessionID, err)
	}
	return nil
}

// Lookup returns the entry for sessionID.
func (c *SQLiteCatalog) Lookup(ctx context.Context, sessionID string) (Record, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT session_id, path, start_time, end_time, event_count, device_name, created_at
		FROM recordings
		WHERE session_id = ?`, sessionID)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("catalog: failed to scan recording: %w", err)
	}
	return r, nil
}

// List returns up to limit entries, newest start first. A limit <= 0 lists
// everything.
func (c *SQLiteCatalog) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT session_id, path, start_time, end_time, event_count, device_name, created_at
		FROM recordings
		ORDER BY start_time DESC, session_id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to list recordings: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: failed to scan recording: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Remove deletes the entry for sessionID. Removing a missing entry is not an
// error.
func (c *SQLiteCatalog) Remove(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM recordings WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("catalog: failed to remove %s: %w", sessionID, err)
	}
	return nil
}

// Count returns the number of catalogued recordings.
func (c *SQLiteCatalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog: failed to count recordings: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		r                        Record
		start, end, createdAtUTC int64
	)
	if err := s.Scan(&r.SessionID, &r.Path, &start, &end, &r.EventCount, &r.DeviceName, &createdAtUTC); err != nil {
		return Record{}, err
	}
	r.Start = time.Unix(0, start).UTC()
	r.End = time.Unix(0, end).UTC()
	r.CreatedAt = time.Unix(0, createdAtUTC).UTC()
	return r, nil
}
