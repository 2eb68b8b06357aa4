package viewer

import (
	"github.com/banshee-data/slamviewer/internal/config"
)

// Category colours.
var (
	ColorHistorical = Color{R: 0.2, G: 0.6, B: 0.2}
	ColorRecent     = Color{R: 0.8, G: 0.1, B: 0.1}
	ColorRaw        = Color{R: 0.6, G: 0.2, B: 0.2}
	ColorOptimized  = Color{R: 0.1, G: 0.1, B: 0.8}
	ColorLandmark   = Color{R: 0.2, G: 0.2, B: 0.6}
	ColorLoopLink   = Color{R: 0.2, G: 0.4, B: 0.4}
	ColorCamera     = Color{R: 0.6, G: 0.2, B: 0.2}

	ColorBlack = Color{}
	ColorWhite = Color{R: 1, G: 1, B: 1}
)

// recentPointGrowth is how much larger recent trajectory points are drawn.
const recentPointGrowth = 4

// axisLineWidth is the fixed width of the coordinate axes.
const axisLineWidth = 2

// Sizes holds the configured point sizes and line widths.
type Sizes struct {
	Point           float64
	Landmark        float64
	Line            float64
	Camera          float64
	CameraLineWidth float64
}

// SizesFromConfig reads the draw sizes from cfg.
func SizesFromConfig(cfg *config.ViewerConfig) Sizes {
	return Sizes{
		Point:           cfg.GetPointSize(),
		Landmark:        cfg.GetLandmarkSize(),
		Line:            cfg.GetLineWidth(),
		Camera:          cfg.GetCameraSize(),
		CameraLineWidth: cfg.GetCameraLineWidth(),
	}
}

// HistoricalCount returns how many leading samples of a trajectory of the
// given size are drawn in the historical style. The rest form the recent
// window. A trajectory shorter than the window is entirely historical.
func HistoricalCount(size, window int) int {
	n := size - window
	if n < 0 {
		return size
	}
	return n
}

// Polyline connects consecutive points in sequence order.
func Polyline(points []Point) []Segment {
	if len(points) < 2 {
		return nil
	}
	segs := make([]Segment, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		segs = append(segs, Segment{From: points[i], To: points[i+1]})
	}
	return segs
}

// LoopSegments resolves loop links against a trajectory. Links naming an
// index outside the trajectory (stale after a reset, or not yet pushed)
// are skipped and counted.
func LoopSegments(links []LoopLink, trajectory []Point) (segs []Segment, stale int) {
	n := len(trajectory)
	for _, l := range links {
		if l.Ref < 0 || l.Ref >= n || l.Cur < 0 || l.Cur >= n {
			stale++
			continue
		}
		segs = append(segs, Segment{From: trajectory[l.Ref], To: trajectory[l.Cur]})
	}
	return segs, stale
}

// CameraMarker returns the wire frustum of the body camera, of width w,
// placed by t.
func CameraMarker(w float64, t Transform) []Segment {
	h := w * 0.75
	z := w * 0.5

	o := Point{}
	a := Point{X: w, Y: h, Z: z}
	b := Point{X: w, Y: -h, Z: z}
	c := Point{X: -w, Y: -h, Z: z}
	d := Point{X: -w, Y: h, Z: z}

	body := []Segment{
		{o, a}, {o, b}, {o, c}, {o, d},
		{a, b}, {d, c}, {d, a}, {c, b},
	}
	for i := range body {
		body[i].From = t.Apply(body[i].From)
		body[i].To = t.Apply(body[i].To)
	}
	return body
}

// AxisSegment is one unit axis of the world frame.
type AxisSegment struct {
	Segment
	Color Color
}

// CoordinateAxes returns the unit X, Y and Z axes in red, green and blue.
func CoordinateAxes() []AxisSegment {
	o := Point{}
	return []AxisSegment{
		{Segment{o, Point{X: 1}}, Color{R: 1}},
		{Segment{o, Point{Y: 1}}, Color{G: 1}},
		{Segment{o, Point{Z: 1}}, Color{B: 1}},
	}
}
