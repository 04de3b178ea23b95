// Package history records connection events in a local SQLite
// database, so `ovpn3ctl history` can show what happened to a profile
// and when.
package history

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ovpn3-tools/ovpn3ctl/common"
)

// Event kinds recorded by the CLI.
const (
	KindConnect    = "connect"
	KindDisconnect = "disconnect"
	KindFailure    = "failure"
)

// Event is one recorded connection event.
type Event struct {
	ID      string
	Profile string
	Kind    string
	Detail  string
	At      time.Time
}

// Store is the SQLite-backed event log.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id      TEXT PRIMARY KEY,
	profile TEXT NOT NULL,
	kind    TEXT NOT NULL,
	detail  TEXT NOT NULL DEFAULT '',
	at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS events_at ON events (at);
`

// Open opens (and if needed initializes) the event log at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, common.WrapError(err, "failed to open history database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, common.WrapError(err, "failed to initialize history database")
	}
	return &Store{db: db}, nil
}

// OpenDefault opens the event log in the application data directory.
func OpenDefault() (*Store, error) {
	dataDir, err := common.GetDataDir()
	if err != nil {
		return nil, err
	}
	return Open(filepath.Join(dataDir, common.HistoryFileName))
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one event.
func (s *Store) Record(profile, kind, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO events (id, profile, kind, detail, at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), profile, kind, detail, time.Now().UTC(),
	)
	if err != nil {
		return common.WrapError(err, "failed to record event")
	}
	return nil
}

// Recent returns the most recent events, newest first.
func (s *Store) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, profile, kind, detail, at FROM events ORDER BY at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, common.WrapError(err, "failed to query events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Profile, &e.Kind, &e.Detail, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
