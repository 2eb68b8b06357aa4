package viewer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamviewer/internal/config"
)

func TestHistoricalCount(t *testing.T) {
	tests := []struct {
		size, window, want int
	}{
		{0, 10, 0},
		{3, 10, 3},
		{10, 10, 0},
		{11, 10, 1},
		{25, 10, 15},
		{3, 3, 0},
	}
	for _, tt := range tests {
		if got := HistoricalCount(tt.size, tt.window); got != tt.want {
			t.Errorf("HistoricalCount(%d, %d) = %d, expected %d", tt.size, tt.window, got, tt.want)
		}
	}
}

func TestPolyline(t *testing.T) {
	if segs := Polyline(nil); segs != nil {
		t.Errorf("expected nil for empty input, got %v", segs)
	}
	if segs := Polyline([]Point{{X: 1}}); segs != nil {
		t.Errorf("expected nil for single point, got %v", segs)
	}

	pts := []Point{{X: 0}, {X: 1}, {X: 2}}
	want := []Segment{
		{From: Point{X: 0}, To: Point{X: 1}},
		{From: Point{X: 1}, To: Point{X: 2}},
	}
	if diff := cmp.Diff(want, Polyline(pts)); diff != "" {
		t.Errorf("polyline mismatch (-want +got):\n%s", diff)
	}
}

func TestLoopSegments_SkipsStale(t *testing.T) {
	links := []LoopLink{{Ref: 2, Cur: 10}}

	short := make([]Point, 5)
	segs, stale := LoopSegments(links, short)
	if len(segs) != 0 || stale != 1 {
		t.Errorf("expected link skipped, got segs=%v stale=%d", segs, stale)
	}

	long := make([]Point, 11)
	for i := range long {
		long[i] = Point{X: float64(i)}
	}
	segs, stale = LoopSegments(links, long)
	want := []Segment{{From: Point{X: 2}, To: Point{X: 10}}}
	if diff := cmp.Diff(want, segs); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	if stale != 0 {
		t.Errorf("expected no stale links, got %d", stale)
	}
}

func TestCameraMarker(t *testing.T) {
	segs := CameraMarker(0.4, IdentityTransform())
	require.Len(t, segs, 8)

	// Four edges start at the optical centre.
	for _, s := range segs[:4] {
		assert.Equal(t, Point{}, s.From)
		assert.InDelta(t, 0.2, s.To.Z, 1e-12)
	}
	assert.InDelta(t, 0.4, segs[0].To.X, 1e-12)
	assert.InDelta(t, 0.3, segs[0].To.Y, 1e-12)

	moved := CameraMarker(0.4, NewTransform(identity3(), Point{X: 5}))
	for i := range segs {
		assert.InDelta(t, segs[i].From.X+5, moved[i].From.X, 1e-12)
		assert.InDelta(t, segs[i].To.Y, moved[i].To.Y, 1e-12)
	}
}

func TestCoordinateAxes(t *testing.T) {
	axes := CoordinateAxes()
	require.Len(t, axes, 3)
	assert.Equal(t, Point{X: 1}, axes[0].To)
	assert.Equal(t, Color{R: 1}, axes[0].Color)
	assert.Equal(t, Point{Z: 1}, axes[2].To)
	assert.Equal(t, Color{B: 1}, axes[2].Color)
}

func TestSizesFromConfig(t *testing.T) {
	cfg := config.EmptyViewerConfig()
	sz := SizesFromConfig(cfg)
	assert.Equal(t, cfg.GetPointSize(), sz.Point)
	assert.Equal(t, cfg.GetCameraSize(), sz.Camera)
}
