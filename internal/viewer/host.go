package viewer

import (
	"context"
)

// Window size of the host surface, in pixels.
const (
	WindowWidth  = 1024
	WindowHeight = 768
)

// AxisPreset is the up-axis convention of the viewpoint.
type AxisPreset int

const (
	AxisNone AxisPreset = iota
	AxisNegX
	AxisX
	AxisNegY
	AxisY
	AxisNegZ
	AxisZ
)

func (a AxisPreset) String() string {
	switch a {
	case AxisNone:
		return "none"
	case AxisNegX:
		return "-x"
	case AxisX:
		return "+x"
	case AxisNegY:
		return "-y"
	case AxisY:
		return "+y"
	case AxisNegZ:
		return "-z"
	case AxisZ:
		return "+z"
	default:
		return "invalid"
	}
}

// Valid reports whether a is one of the seven presets.
func (a AxisPreset) Valid() bool {
	return a >= AxisNone && a <= AxisZ
}

// View is the camera the host activates for a frame.
type View struct {
	Axis  AxisPreset
	Eye   Point
	Focal float64

	// Follow is the transform the camera re-centres on when Following.
	Follow    Transform
	Following bool
}

// Host is the window toolkit the render loop drives. Every method is
// called from the render goroutine only, and never with a State lock held.
type Host interface {
	// Menu returns the panel state for this frame. Buttons report pressed
	// once and are cleared by the call.
	Menu() Menu

	// Clear starts a frame with the given background colour.
	Clear(background Color)

	// Activate sets the camera for the rest of the frame.
	Activate(view View)

	DrawPoints(points []Point, style Style)
	DrawLines(segments []Segment, style Style)

	// SaveWindow and SaveObject export the current frame. They do not touch
	// viewer state.
	SaveWindow(name string) error
	SaveObject(name string) error

	// FinishFrame presents the frame and blocks until the next one is due.
	// It is the only place the loop yields.
	FinishFrame(ctx context.Context) error

	// ShouldQuit reports a close request from the window system.
	ShouldQuit() bool
}
