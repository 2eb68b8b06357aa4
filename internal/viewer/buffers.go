package viewer

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

// TrajectorySnapshot is a copy of a trajectory buffer taken under its lock.
type TrajectorySnapshot struct {
	Points []Point
	// Base is the absolute index of the first slot of the active window.
	// Always zero for the raw and optimized trajectories.
	Base  int
	Ready bool
}

// Last returns the most recent sample, if any.
func (s TrajectorySnapshot) Last() (Point, bool) {
	if len(s.Points) == 0 {
		return Point{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// trajectoryBuffer is an addressable, growable store of samples.
type trajectoryBuffer struct {
	mu     sync.Mutex
	points []Point
	ready  bool
}

// writeLocked stores p at absolute index i. Writing past the end grows the
// store up to i; gap slots take the same value so no zero sample is drawn.
// Caller holds mu.
func (b *trajectoryBuffer) writeLocked(i int, p Point) {
	if i < len(b.points) {
		b.points[i] = p
		return
	}
	for len(b.points) <= i {
		b.points = append(b.points, p)
	}
}

func (b *trajectoryBuffer) appendPoint(p Point) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.points = append(b.points, p)
	b.ready = true
	return len(b.points)
}

func (b *trajectoryBuffer) clearLocked() {
	b.points = nil
	b.ready = false
}

func (b *trajectoryBuffer) snapshot() TrajectorySnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return TrajectorySnapshot{
		Points: append([]Point(nil), b.points...),
		Ready:  b.ready,
	}
}

// windowedTrajectory is the trajectory re-estimated over a sliding window.
// base is only written with mu held but may be read without it by the raw
// trajectory, which addresses samples with the same frame index.
type windowedTrajectory struct {
	trajectoryBuffer
	window int
	base   atomic.Int64
}

// push writes p at base+offset and slides the window when the last slot of
// a full window is written. It reports whether the base advanced and the
// resulting store length.
func (w *windowedTrajectory) push(p Point, offset int) (advanced bool, size int, err error) {
	if offset >= w.window {
		return false, 0, fmt.Errorf("%w: offset %d, window %d", ErrOffsetOutOfWindow, offset, w.window)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	i := int(w.base.Load()) + offset
	if i < 0 {
		return false, 0, fmt.Errorf("%w: base %d + offset %d", ErrNegativeIndex, w.base.Load(), offset)
	}
	w.writeLocked(i, p)
	if len(w.points) >= w.window && offset == w.window-1 {
		w.base.Add(1)
		advanced = true
	}
	w.ready = true
	return advanced, len(w.points), nil
}

func (w *windowedTrajectory) snapshot() TrajectorySnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return TrajectorySnapshot{
		Points: append([]Point(nil), w.points...),
		Base:   int(w.base.Load()),
		Ready:  w.ready,
	}
}

// rawTrajectory is the unsmoothed trajectory. It has no window of its own.
type rawTrajectory struct {
	trajectoryBuffer
	base *atomic.Int64
}

func (r *rawTrajectory) push(p Point, offset int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := int(r.base.Load())
	i := base + offset
	if i < 0 {
		return 0, fmt.Errorf("%w: base %d + offset %d", ErrNegativeIndex, base, offset)
	}
	r.writeLocked(i, p)
	r.ready = true
	return len(r.points), nil
}

// OrientationSnapshot is a copy of the latest rotation.
type OrientationSnapshot struct {
	Rotation *mat.Dense
	Ready    bool
}

type orientationBuffer struct {
	mu       sync.Mutex
	rotation [9]float64 // row-major
	ready    bool
}

func (o *orientationBuffer) push(r mat.Matrix) error {
	rows, cols := r.Dims()
	if rows != 3 || cols != 3 {
		return fmt.Errorf("%w: got %dx%d", ErrNotRotation, rows, cols)
	}

	var data [9]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			data[i*3+j] = r.At(i, j)
		}
	}

	o.mu.Lock()
	o.rotation = data
	o.ready = true
	o.mu.Unlock()
	return nil
}

func (o *orientationBuffer) snapshot() OrientationSnapshot {
	o.mu.Lock()
	data, ready := o.rotation, o.ready
	o.mu.Unlock()

	if !ready {
		return OrientationSnapshot{}
	}
	return OrientationSnapshot{Rotation: mat.NewDense(3, 3, data[:]), Ready: true}
}

// LandmarkSnapshot is a copy of the latest landmark set, ordered by ID.
type LandmarkSnapshot struct {
	Landmarks []Landmark
	Ready     bool
}

// Positions returns the landmark positions in ID order.
func (s LandmarkSnapshot) Positions() []Point {
	out := make([]Point, len(s.Landmarks))
	for i, lm := range s.Landmarks {
		out[i] = lm.Position
	}
	return out
}

type landmarkBuffer struct {
	mu        sync.Mutex
	landmarks map[int64]Point
	ready     bool
}

func (l *landmarkBuffer) replace(m map[int64]Point) int {
	owned := make(map[int64]Point, len(m))
	for id, p := range m {
		owned[id] = p
	}

	l.mu.Lock()
	l.landmarks = owned
	l.ready = true
	l.mu.Unlock()
	return len(owned)
}

func (l *landmarkBuffer) snapshot() LandmarkSnapshot {
	l.mu.Lock()
	out := make([]Landmark, 0, len(l.landmarks))
	for id, p := range l.landmarks {
		out = append(out, Landmark{ID: id, Position: p})
	}
	ready := l.ready
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return LandmarkSnapshot{Landmarks: out, Ready: ready}
}

// LoopSnapshot is a copy of every loop link pushed so far.
type LoopSnapshot struct {
	Links []LoopLink
	Ready bool
}

type loopBuffer struct {
	mu    sync.Mutex
	links []LoopLink
	ready bool
}

func (l *loopBuffer) push(link LoopLink) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.links = append(l.links, link)
	l.ready = true
	return len(l.links)
}

func (l *loopBuffer) snapshot() LoopSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LoopSnapshot{
		Links: append([]LoopLink(nil), l.links...),
		Ready: l.ready,
	}
}
