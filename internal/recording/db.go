// Package recording persists ingest traffic to SQLite so a session can be
// inspected with tailsql and replayed into a viewer later.
package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/slamviewer/internal/monitoring"
)

var logf = monitoring.Component("Recording")

// ErrNoSession is returned when a recording has no matching session.
var ErrNoSession = errors.New("recording: no such session")

// DB is a recording database.
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates the database at path and applies pending
// migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Recorder writes arrive from the MQTT goroutine; one connection keeps
	// SQLite from returning SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// Session describes one recorded session.
type Session struct {
	ID        string    `json:"id"`
	Prefix    string    `json:"prefix"`
	Window    int       `json:"window"`
	StartedAt time.Time `json:"started_at"`
	Messages  int       `json:"messages"`
}

// Sessions lists recorded sessions, newest first.
func (db *DB) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.session_id, s.prefix, s.window_size, s.started_unix_ns,
			(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.session_id)
		FROM sessions s
		ORDER BY s.started_unix_ns DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s       Session
			started int64
		)
		if err := rows.Scan(&s.ID, &s.Prefix, &s.Window, &started, &s.Messages); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(0, started).UTC()
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Session returns one session by id. An empty id selects the newest.
func (db *DB) Session(ctx context.Context, id string) (Session, error) {
	sessions, err := db.Sessions(ctx)
	if err != nil {
		return Session{}, err
	}
	for _, s := range sessions {
		if id == "" || s.ID == id {
			return s, nil
		}
	}
	if id == "" {
		return Session{}, ErrNoSession
	}
	return Session{}, fmt.Errorf("%w: %s", ErrNoSession, id)
}

// message is one recorded ingest message.
type message struct {
	ID      int64
	Offset  time.Duration
	Suffix  string
	Payload []byte
}

// messages returns up to limit messages of a session after message id after.
func (db *DB) messages(ctx context.Context, session string, after int64, limit int) ([]message, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT message_id, offset_ns, topic, payload
		FROM messages
		WHERE session_id = ? AND message_id > ?
		ORDER BY message_id
		LIMIT ?`, session, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []message
	for rows.Next() {
		var (
			m      message
			offset int64
		)
		if err := rows.Scan(&m.ID, &offset, &m.Suffix, &m.Payload); err != nil {
			return nil, err
		}
		m.Offset = time.Duration(offset)
		out = append(out, m)
	}
	return out, rows.Err()
}
