// Package runlog records a one-row-per-run audit trail of completed
// ingests to a local SQLite database, the way entitydb's tools query
// its entity store with database/sql over mattn/go-sqlite3
// (tools/entities/list_entities.go). It is write-mostly: nothing in the
// ingest path ever reads it back.
package runlog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Log is a handle to the run-log database.
type Log struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: opening %s: %w", path, err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	input_path  TEXT NOT NULL,
	maxrect     INTEGER NOT NULL,
	begin_time  INTEGER NOT NULL,
	end_time    INTEGER NOT NULL,
	notags      INTEGER NOT NULL,
	rect_count  INTEGER NOT NULL,
	coalesced   INTEGER NOT NULL,
	elisions    INTEGER NOT NULL,
	events      INTEGER NOT NULL,
	err         TEXT NOT NULL DEFAULT '',
	finished_at INTEGER NOT NULL
);`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: creating schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Close closes the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Run is one completed ingest, ready to be appended to the log.
type Run struct {
	RunID      string
	InputPath  string
	MaxRect    int64
	Begin      int64
	End        int64
	NoTags     bool
	RectCount  int
	Coalesced  int64
	Elisions   int64
	Events     int64
	Err        string
	FinishedAt time.Time
}

// Append inserts one completed run. A run_id collision is an error --
// each Engine is assigned a fresh UUID, so this should never happen in
// practice.
func (l *Log) Append(r Run) error {
	const stmt = `
INSERT INTO runs
	(run_id, input_path, maxrect, begin_time, end_time, notags,
	 rect_count, coalesced, elisions, events, err, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := l.db.Exec(stmt,
		r.RunID, r.InputPath, r.MaxRect, r.Begin, r.End, r.NoTags,
		r.RectCount, r.Coalesced, r.Elisions, r.Events, r.Err,
		r.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("runlog: appending run %s: %w", r.RunID, err)
	}
	return nil
}
