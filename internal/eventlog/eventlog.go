// Package eventlog keeps a small local history of routed events in SQLite so
// `hubwatch events` can show what was delivered after the fact. The log is
// observability only: routing never blocks on it and write failures are
// logged and dropped.
package eventlog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	delivery_id TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	action      TEXT NOT NULL DEFAULT '',
	pr_number   INTEGER NOT NULL,
	sessions    TEXT NOT NULL DEFAULT '',
	received_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_pr ON events(pr_number);
`

// Entry is one routed event as recorded in the log.
type Entry struct {
	DeliveryID string
	EventType  string
	Action     string
	PRNumber   int
	Sessions   []string
	ReceivedAt time.Time
}

// Log is a SQLite-backed event history.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the event log at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	// One writer at a time keeps modernc's file locking happy.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init event log schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close releases the underlying database.
func (l *Log) Close() error { return l.db.Close() }

// Record appends one routed event.
func (l *Log) Record(entry Entry) error {
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT INTO events (delivery_id, event_type, action, pr_number, sessions, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.DeliveryID, entry.EventType, entry.Action, entry.PRNumber,
		strings.Join(entry.Sessions, ","), entry.ReceivedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A prNumber of 0 means all
// pull requests.
func (l *Log) Recent(prNumber, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT delivery_id, event_type, action, pr_number, sessions, received_at
	          FROM events`
	args := []any{}
	if prNumber > 0 {
		query += " WHERE pr_number = ?"
		args = append(args, prNumber)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query event log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var sessions, received string
		if err := rows.Scan(&e.DeliveryID, &e.EventType, &e.Action, &e.PRNumber, &sessions, &received); err != nil {
			return nil, fmt.Errorf("scan event log row: %w", err)
		}
		if sessions != "" {
			e.Sessions = strings.Split(sessions, ",")
		}
		e.ReceivedAt, _ = time.Parse(time.RFC3339, received)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the total number of recorded events.
func (l *Log) Count() (int, error) {
	var n int
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
