package recording

import (
	"context"
	"time"

	"github.com/banshee-data/slamviewer/internal/timeutil"
)

const replayBatch = 500

// PlayerStats counts replayed messages.
type PlayerStats struct {
	Applied int64 `json:"applied"`
	Dropped int64 `json:"dropped"`
}

// Player replays a session in recorded order.
type Player struct {
	db    *DB
	clock timeutil.Clock

	// Speed scales recorded time; 2 plays twice as fast. Zero or negative
	// replays as fast as possible.
	Speed float64
	// Tick is how often the player checks for due messages.
	Tick time.Duration
}

// NewPlayer creates a real-time player.
func NewPlayer(db *DB) *Player {
	return &Player{
		db:    db,
		clock: timeutil.RealClock{},
		Speed: 1,
		Tick:  5 * time.Millisecond,
	}
}

// SetClock replaces the pacing clock.
func (p *Player) SetClock(c timeutil.Clock) {
	p.clock = c
}

// Play feeds every message of session to apply, each no earlier than its
// recorded offset divided by Speed. An empty session id plays the newest.
// apply errors are counted, not returned.
func (p *Player) Play(ctx context.Context, session string, apply func(suffix string, payload []byte) error) (PlayerStats, error) {
	var st PlayerStats
	s, err := p.db.Session(ctx, session)
	if err != nil {
		return st, err
	}
	logf("replaying session %s (%d messages) at %.2gx", s.ID, s.Messages, p.Speed)

	start := p.clock.Now()
	var ticker timeutil.Ticker
	if p.Speed > 0 {
		tick := p.Tick
		if tick <= 0 {
			tick = 5 * time.Millisecond
		}
		ticker = p.clock.NewTicker(tick)
		defer ticker.Stop()
	}

	var after int64
	for {
		batch, err := p.db.messages(ctx, s.ID, after, replayBatch)
		if err != nil {
			return st, err
		}
		if len(batch) == 0 {
			break
		}
		for _, m := range batch {
			if ticker != nil {
				due := time.Duration(float64(m.Offset) / p.Speed)
				for p.clock.Since(start) < due {
					select {
					case <-ctx.Done():
						return st, ctx.Err()
					case <-ticker.C():
					}
				}
			} else if err := ctx.Err(); err != nil {
				return st, err
			}

			if err := apply(m.Suffix, m.Payload); err != nil {
				st.Dropped++
			} else {
				st.Applied++
			}
			after = m.ID
		}
	}
	logf("replay of %s done: applied=%d dropped=%d", s.ID, st.Applied, st.Dropped)
	return st, nil
}
