package recording

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/slamviewer/internal/timeutil"
)

// RecorderStats counts recorder writes.
type RecorderStats struct {
	Session string `json:"session"`
	Written int64  `json:"written"`
	Failed  int64  `json:"failed"`
}

// Recorder appends messages to one session. It is safe for concurrent use.
type Recorder struct {
	db      *DB
	session string
	clock   timeutil.Clock
	start   time.Time

	written atomic.Int64
	failed  atomic.Int64
}

// NewSession starts a session for messages under prefix, for a viewer with
// the given window size.
func (db *DB) NewSession(ctx context.Context, prefix string, window int, clock timeutil.Clock) (*Recorder, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	r := &Recorder{
		db:      db,
		session: uuid.NewString(),
		clock:   clock,
		start:   clock.Now(),
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, prefix, window_size, started_unix_ns) VALUES (?, ?, ?, ?)`,
		r.session, prefix, window, r.start.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	logf("recording session %s to %s", r.session, db.path)
	return r, nil
}

// Session returns the session id.
func (r *Recorder) Session() string {
	return r.session
}

// Record stores one message. Failures are counted and logged.
func (r *Recorder) Record(suffix string, payload []byte) {
	offset := r.clock.Since(r.start)
	_, err := r.db.Exec(
		`INSERT INTO messages (session_id, offset_ns, topic, payload) VALUES (?, ?, ?, ?)`,
		r.session, offset.Nanoseconds(), suffix, payload)
	if err != nil {
		if r.failed.Add(1) == 1 {
			logf("record %s failed: %v", suffix, err)
		}
		return
	}
	r.written.Add(1)
}

// Stats returns the write counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Session: r.session,
		Written: r.written.Load(),
		Failed:  r.failed.Load(),
	}
}
