package viewer

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// State is the visualisation state shared by every producer goroutine and
// the render loop. Construct one with NewState before the pipeline starts
// and pass the same pointer to both sides.
type State struct {
	window int

	orientation orientationBuffer
	windowed    windowedTrajectory
	raw         rawTrajectory
	landmarks   landmarkBuffer
	loops       loopBuffer
	optimized   trajectoryBuffer

	followMu sync.Mutex
	follow   Transform

	metrics *Metrics
}

// NewState creates an empty State whose windowed trajectory slides over
// the last window samples. A window below 1 is treated as 1.
func NewState(window int) *State {
	if window < 1 {
		logf("window %d is invalid, using 1", window)
		window = 1
	}
	s := &State{window: window}
	s.windowed.window = window
	s.raw.base = &s.windowed.base
	return s
}

// SetMetrics attaches prometheus metrics. Call before sharing the State.
func (s *State) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Window returns the sliding window size.
func (s *State) Window() int {
	return s.window
}

// PushRawPosition stores the unsmoothed position of the frame at the
// current window base plus offset.
func (s *State) PushRawPosition(p Point, offset int) error {
	size, err := s.raw.push(p, offset)
	if err != nil {
		s.metrics.usageError(CategoryRawTrajectory)
		return err
	}
	s.metrics.pushed(CategoryRawTrajectory)
	s.metrics.trajectorySize(CategoryRawTrajectory, size)
	return nil
}

// PushPosition stores the windowed estimate of the frame at the current
// window base plus offset. Writing the last slot of a full window slides
// the window forward by one.
func (s *State) PushPosition(p Point, offset int) error {
	advanced, size, err := s.windowed.push(p, offset)
	if err != nil {
		s.metrics.usageError(CategoryTrajectory)
		return err
	}
	s.metrics.pushed(CategoryTrajectory)
	s.metrics.trajectorySize(CategoryTrajectory, size)
	if advanced {
		s.metrics.windowAdvanced()
	}
	return nil
}

// PushOrientation replaces the latest body orientation. r is copied.
func (s *State) PushOrientation(r mat.Matrix) error {
	if err := s.orientation.push(r); err != nil {
		s.metrics.usageError(CategoryOrientation)
		return err
	}
	s.metrics.pushed(CategoryOrientation)
	return nil
}

// PushLandmarks replaces the whole landmark set. The map is copied.
func (s *State) PushLandmarks(landmarks map[int64]Point) {
	n := s.landmarks.replace(landmarks)
	s.metrics.pushed(CategoryLandmarks)
	s.metrics.landmarkCount(n)
}

// PushLoopLink appends a loop closure between two absolute frame indices.
func (s *State) PushLoopLink(ref, cur int) error {
	if ref < 0 || cur < 0 {
		s.metrics.usageError(CategoryLoopLinks)
		return fmt.Errorf("%w: loop link (%d, %d)", ErrNegativeIndex, ref, cur)
	}
	s.loops.push(LoopLink{Ref: ref, Cur: cur})
	s.metrics.pushed(CategoryLoopLinks)
	return nil
}

// PushOptimizedPosition appends a position from a full bundle adjustment.
func (s *State) PushOptimizedPosition(p Point) {
	size := s.optimized.appendPoint(p)
	s.metrics.pushed(CategoryOptimizedTrajectory)
	s.metrics.trajectorySize(CategoryOptimizedTrajectory, size)
}

// RawTrajectory returns a copy of the raw trajectory.
func (s *State) RawTrajectory() TrajectorySnapshot {
	return s.raw.snapshot()
}

// Trajectory returns a copy of the windowed trajectory and its base.
func (s *State) Trajectory() TrajectorySnapshot {
	return s.windowed.snapshot()
}

// Orientation returns a copy of the latest rotation.
func (s *State) Orientation() OrientationSnapshot {
	return s.orientation.snapshot()
}

// Landmarks returns a copy of the latest landmark set.
func (s *State) Landmarks() LandmarkSnapshot {
	return s.landmarks.snapshot()
}

// LoopLinks returns a copy of every loop link.
func (s *State) LoopLinks() LoopSnapshot {
	return s.loops.snapshot()
}

// OptimizedTrajectory returns a copy of the full-BA trajectory.
func (s *State) OptimizedTrajectory() TrajectorySnapshot {
	return s.optimized.snapshot()
}

// ResetTrajectories clears the windowed and raw trajectories together.
// Both locks are held for the whole clear, so no snapshot of either can
// observe one cleared and the other not mid-way.
func (s *State) ResetTrajectories() {
	s.windowed.mu.Lock()
	s.raw.mu.Lock()

	s.windowed.clearLocked()
	s.windowed.base.Store(0)
	s.raw.clearLocked()

	s.raw.mu.Unlock()
	s.windowed.mu.Unlock()

	s.metrics.reset()
}

// FollowTransform combines the latest orientation and the latest windowed
// sample into the body-to-world transform the camera follows. Until both
// categories are ready it returns the previous result, which starts as
// the identity.
func (s *State) FollowTransform() Transform {
	var (
		rot  [9]float64
		last Point
		ok   bool
	)

	s.orientation.mu.Lock()
	s.windowed.mu.Lock()
	if s.orientation.ready && s.windowed.ready && len(s.windowed.points) > 0 {
		rot = s.orientation.rotation
		last = s.windowed.points[len(s.windowed.points)-1]
		ok = true
	}
	s.windowed.mu.Unlock()
	s.orientation.mu.Unlock()

	s.followMu.Lock()
	defer s.followMu.Unlock()
	if ok {
		s.follow = NewTransform(mat.NewDense(3, 3, rot[:]), last)
	}
	return s.follow
}

// LastFollowTransform returns the most recently computed follow transform
// without recomputing it.
func (s *State) LastFollowTransform() Transform {
	s.followMu.Lock()
	defer s.followMu.Unlock()
	return s.follow
}
