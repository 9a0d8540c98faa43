package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRecorder stores events in a single interactions table.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteRecorder(path string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			user_message TEXT NOT NULL,
			assistant_response TEXT NOT NULL,
			outcome TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_interactions_timestamp ON interactions(timestamp);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &SQLiteRecorder{db: db}, nil
}

func (r *SQLiteRecorder) AppendInteraction(event Event) error {
	_, err := r.db.Exec(
		`INSERT INTO interactions (timestamp, session_id, channel, user_message, assistant_response, outcome)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.Timestamp.UnixNano(), event.SessionID, event.Channel,
		event.UserMessage, event.AssistantResponse, event.Outcome,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) LoadInteractions() ([]Event, error) {
	rows, err := r.db.Query(
		`SELECT timestamp, session_id, channel, user_message, assistant_response, outcome
		 FROM interactions ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev Event
			ts int64
		)
		if err := rows.Scan(&ts, &ev.SessionID, &ev.Channel, &ev.UserMessage, &ev.AssistantResponse, &ev.Outcome); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		ev.Timestamp = time.Unix(0, ts).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return events, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
