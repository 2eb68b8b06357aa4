package viewer

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// Point is a trajectory sample or landmark position.
type Point = r3.Vec

// LoopLink connects two absolute trajectory indices found to be the same
// place by loop closure.
type LoopLink struct {
	Ref int
	Cur int
}

// Landmark is one entry of a landmark set.
type Landmark struct {
	ID       int64
	Position Point
}

// Segment is a line segment in world coordinates.
type Segment struct {
	From Point
	To   Point
}

// Color is an RGB triple in [0, 1].
type Color struct {
	R, G, B float64
}

// Style is the fixed visual style of a draw call.
type Style struct {
	PointSize float64
	LineWidth float64
	Color     Color
}

// Category names one kind of visualisation state.
type Category string

const (
	CategoryRawTrajectory       Category = "raw_trajectory"
	CategoryTrajectory          Category = "trajectory"
	CategoryOrientation         Category = "orientation"
	CategoryLandmarks           Category = "landmarks"
	CategoryLoopLinks           Category = "loop_links"
	CategoryOptimizedTrajectory Category = "optimized_trajectory"
)

var (
	// ErrNegativeIndex is returned when a push resolves to an absolute
	// index below zero. It is a producer bug, never a transient condition.
	ErrNegativeIndex = errors.New("viewer: negative trajectory index")

	// ErrOffsetOutOfWindow is returned when a windowed push uses an offset
	// at or beyond the window size.
	ErrOffsetOutOfWindow = errors.New("viewer: offset outside window")

	// ErrNotRotation is returned when an orientation is not 3x3.
	ErrNotRotation = errors.New("viewer: orientation must be a 3x3 matrix")
)
