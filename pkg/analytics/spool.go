package analytics

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// Spool is the durable on-disk event buffer. Events are written here first
// and deleted only after the uploader has delivered them, so events survive
// a process restart while the device is offline.
type Spool struct {
	db *sql.DB
}

// OpenSpool opens (and migrates) the sqlite spool at path.
func OpenSpool(path string) (*Spool, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open analytics spool: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payload TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate analytics spool: %w", err)
	}
	return &Spool{db: db}, nil
}

func (s *Spool) Close() error { return s.db.Close() }

// Put appends one event.
func (s *Spool) Put(e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO events (payload) VALUES (?)`, string(payload))
	return err
}

// Peek returns up to limit of the oldest spooled events plus the id of the
// newest one returned, for Trim after a successful upload.
func (s *Spool) Peek(limit int) ([]Event, int64, error) {
	rows, err := s.db.Query(`SELECT id, payload FROM events ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out    []Event
		lastID int64
	)
	for rows.Next() {
		var (
			id      int64
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, 0, err
		}
		var e Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			// A corrupt row is skipped but still trimmed.
			lastID = id
			continue
		}
		out = append(out, e)
		lastID = id
	}
	return out, lastID, rows.Err()
}

// Trim deletes all events with id <= upto.
func (s *Spool) Trim(upto int64) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE id <= ?`, upto)
	return err
}

// Len returns the number of spooled events.
func (s *Spool) Len() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}
