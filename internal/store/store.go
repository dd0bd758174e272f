// Package store keeps a local history of AirWave events (gestures, voice
// commands, moods, agent status changes) in a SQLite database so the
// history command can answer questions after the fact.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"airwave/internal/bus"
	"airwave/internal/logging"
)

// Event kinds recorded in the history.
const (
	KindGesture = "gesture"
	KindVoice   = "voice"
	KindMood    = "mood"
	KindStatus  = "status"
)

// Event is one row of history.
type Event struct {
	ID        int64
	EventID   string // uuid from the wire payload, empty for local records
	Kind      string
	Device    string
	Detail    string
	Payload   string // raw JSON as published
	CreatedAt time.Time
}

// Store is a SQLite-backed event log. Safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	log *logging.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT,
	kind TEXT NOT NULL,
	device TEXT NOT NULL DEFAULT '',
	detail TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_event_id
	ON events(event_id) WHERE event_id != '';
CREATE INDEX IF NOT EXISTS idx_events_kind_created ON events(kind, created_at);
`

// Open opens (creating if needed) the history database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &Store{db: db, log: logging.Get(logging.CategoryStore)}

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			s.log.Debug("pragma failed: %s: %v", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	s.log.Info("history database ready: %s", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// RecordGesture stores a gesture or voice event. Duplicate event IDs (the
// launcher and an agent both logging the same message) are ignored.
func (s *Store) RecordGesture(ev bus.GestureEvent) error {
	kind := KindGesture
	if ev.Source == bus.SourceVoice {
		kind = KindVoice
	}
	return s.insert(ev.ID, kind, ev.Device, ev.Type, ev)
}

// RecordMood stores a mood classification event.
func (s *Store) RecordMood(ev bus.MoodEvent) error {
	return s.insert(ev.ID, KindMood, "pi2", ev.Mood, ev)
}

// RecordStatus stores an agent status change.
func (s *Store) RecordStatus(device, status string, payload interface{}) error {
	return s.insert("", KindStatus, device, status, payload)
}

func (s *Store) insert(eventID, kind, device, detail string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO events (event_id, kind, device, detail, payload) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		eventID, kind, device, detail, string(data),
	)
	if err != nil {
		return fmt.Errorf("insert %s event: %w", kind, err)
	}
	return nil
}

// Recent returns the newest events, optionally filtered by kind, newest
// first.
func (s *Store) Recent(kind string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, event_id, kind, device, detail, payload, created_at
		FROM events`
	args := []interface{}{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.EventID, &e.Kind, &e.Device, &e.Detail, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Summary returns event counts per detail value for one kind, e.g. how many
// of each gesture were seen.
func (s *Store) Summary(kind string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(
		`SELECT detail, COUNT(*) FROM events WHERE kind = ? GROUP BY detail`, kind)
	if err != nil {
		return nil, fmt.Errorf("summarize events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var detail string
		var n int
		if err := rows.Scan(&detail, &n); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		counts[detail] = n
	}
	return counts, rows.Err()
}

// Prune deletes events older than the retention window and returns how
// many were removed.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		`DELETE FROM events WHERE created_at < datetime('now', ?)`,
		fmt.Sprintf("-%d seconds", int(olderThan.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

// migration is one additive schema change for databases created by older
// builds.
type migration struct {
	table  string
	column string
	def    string
}

var pendingMigrations = []migration{
	{"events", "device", "TEXT NOT NULL DEFAULT ''"},
	{"events", "payload", "TEXT NOT NULL DEFAULT ''"},
}

func (s *Store) migrate() error {
	for _, m := range pendingMigrations {
		if s.columnExists(m.table, m.column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, m.column, m.def)
		if _, err := s.db.Exec(query); err != nil {
			s.log.Warn("migration failed (may already exist): %s.%s: %v", m.table, m.column, err)
			continue
		}
		s.log.Info("migration applied: %s.%s", m.table, m.column)
	}
	return nil
}

func (s *Store) columnExists(table, column string) bool {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
