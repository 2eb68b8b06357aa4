// Package ingest feeds estimator output into a viewer.State over MQTT. Each
// category has its own topic under a common prefix and a small JSON payload.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/slamviewer/internal/monitoring"
	"github.com/banshee-data/slamviewer/internal/viewer"
)

var logf = monitoring.Component("Ingest")

// Topic suffixes, appended to the configured prefix.
const (
	TopicRawPosition       = "raw_position"
	TopicPosition          = "position"
	TopicOrientation       = "orientation"
	TopicLandmarks         = "landmarks"
	TopicLoop              = "loop"
	TopicFullBAPosition    = "full_ba_position"
	DefaultPrefix          = "slam/"
	defaultSubscriptionQoS = 0
)

// Topics lists every suffix the subscriber listens on.
var Topics = []string{
	TopicRawPosition,
	TopicPosition,
	TopicOrientation,
	TopicLandmarks,
	TopicLoop,
	TopicFullBAPosition,
}

var (
	ErrUnknownTopic = errors.New("ingest: unknown topic")
	ErrMalformed    = errors.New("ingest: malformed payload")
)

// PositionMessage carries a trajectory sample. Offset is ignored for full-BA
// positions.
type PositionMessage struct {
	P      *[3]float64 `json:"p"`
	Offset int         `json:"offset,omitempty"`
}

// OrientationMessage carries a row-major 3x3 rotation.
type OrientationMessage struct {
	R *[9]float64 `json:"r"`
}

// LandmarksMessage carries a complete landmark set keyed by id.
type LandmarksMessage struct {
	Landmarks map[int64][3]float64 `json:"landmarks"`
}

// LoopMessage carries a loop closure between two absolute frame indices.
type LoopMessage struct {
	Ref *int `json:"ref"`
	Cur *int `json:"cur"`
}

func vec(a [3]float64) viewer.Point {
	return viewer.Point{X: a[0], Y: a[1], Z: a[2]}
}

func arr(p viewer.Point) *[3]float64 {
	return &[3]float64{p.X, p.Y, p.Z}
}

// Stats counts handled messages.
type Stats struct {
	Accepted uint64
	Dropped  uint64
}

// Recorder receives every accepted message, keyed by topic suffix.
type Recorder interface {
	Record(suffix string, payload []byte)
}

// Handler decodes payloads and applies them to a State.
type Handler struct {
	state    *viewer.State
	prefix   string
	recorder Recorder

	accepted atomic.Uint64
	dropped  atomic.Uint64
}

// NewHandler creates a handler for topics under prefix.
func NewHandler(state *viewer.State, prefix string) *Handler {
	return &Handler{state: state, prefix: prefix}
}

// Stats returns the message counters.
func (h *Handler) Stats() Stats {
	return Stats{Accepted: h.accepted.Load(), Dropped: h.dropped.Load()}
}

// Prefix returns the topic prefix the handler accepts.
func (h *Handler) Prefix() string {
	return h.prefix
}

// SetRecorder tees accepted messages to r. Call before messages flow.
func (h *Handler) SetRecorder(r Recorder) {
	h.recorder = r
}

// Handle applies one message. Errors are counted and returned; the caller
// decides whether to log them.
func (h *Handler) Handle(topic string, payload []byte) error {
	suffix, ok := strings.CutPrefix(topic, h.prefix)
	if !ok {
		h.dropped.Add(1)
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	return h.HandleSuffix(suffix, payload)
}

// HandleSuffix applies a message addressed by topic suffix alone, as
// replayed recordings are.
func (h *Handler) HandleSuffix(suffix string, payload []byte) error {
	if err := h.apply(suffix, payload); err != nil {
		h.dropped.Add(1)
		return err
	}
	h.accepted.Add(1)
	if h.recorder != nil {
		h.recorder.Record(suffix, payload)
	}
	return nil
}

func (h *Handler) apply(suffix string, payload []byte) error {
	switch suffix {
	case TopicRawPosition, TopicPosition, TopicFullBAPosition:
		var m PositionMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformed, suffix, err)
		}
		if m.P == nil {
			return fmt.Errorf("%w: %s: missing p", ErrMalformed, suffix)
		}
		switch suffix {
		case TopicRawPosition:
			return h.state.PushRawPosition(vec(*m.P), m.Offset)
		case TopicPosition:
			return h.state.PushPosition(vec(*m.P), m.Offset)
		default:
			h.state.PushOptimizedPosition(vec(*m.P))
			return nil
		}

	case TopicOrientation:
		var m OrientationMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformed, suffix, err)
		}
		if m.R == nil {
			return fmt.Errorf("%w: %s: missing r", ErrMalformed, suffix)
		}
		return h.state.PushOrientation(mat.NewDense(3, 3, m.R[:]))

	case TopicLandmarks:
		var m LandmarksMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformed, suffix, err)
		}
		set := make(map[int64]viewer.Point, len(m.Landmarks))
		for id, p := range m.Landmarks {
			set[id] = vec(p)
		}
		h.state.PushLandmarks(set)
		return nil

	case TopicLoop:
		var m LoopMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformed, suffix, err)
		}
		if m.Ref == nil || m.Cur == nil {
			return fmt.Errorf("%w: %s: missing ref or cur", ErrMalformed, suffix)
		}
		return h.state.PushLoopLink(*m.Ref, *m.Cur)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownTopic, h.prefix+suffix)
	}
}
