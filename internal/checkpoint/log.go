// Package checkpoint keeps an append-only step log in SQLite. The log is a
// diagnostics aid for status display; resume decisions always come from
// re-scanning the artifact store, never from here.
package checkpoint

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS steps (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	stage   TEXT NOT NULL,
	chapter INTEGER NOT NULL DEFAULT 0,
	action  TEXT NOT NULL,
	detail  TEXT NOT NULL DEFAULT '',
	at      TIMESTAMP NOT NULL
);`

// Entry is one logged step.
type Entry struct {
	Seq     int64
	Stage   string
	Chapter int
	Action  string
	Detail  string
	At      time.Time
}

// Log is an append-only SQLite step log.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the checkpoint database at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening checkpoint db: %w", err)
	}
	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing checkpoint schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Append records one step.
func (l *Log) Append(stage string, chapter int, action, detail string) error {
	_, err := l.db.Exec(
		`INSERT INTO steps (stage, chapter, action, detail, at) VALUES (?, ?, ?, ?, ?)`,
		stage, chapter, action, detail, time.Now().UTC(),
	)
	return err
}

// Recent returns the most recent entries, newest first.
func (l *Log) Recent(limit int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT seq, stage, chapter, action, detail, at FROM steps ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Stage, &e.Chapter, &e.Action, &e.Detail, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the total number of logged steps.
func (l *Log) Count() (int64, error) {
	var n int64
	err := l.db.QueryRow(`SELECT COUNT(*) FROM steps`).Scan(&n)
	return n, err
}

func (l *Log) Close() error {
	return l.db.Close()
}
