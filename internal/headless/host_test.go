package headless

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamviewer/internal/timeutil"
	"github.com/banshee-data/slamviewer/internal/viewer"
)

func TestHost_MenuCommandsAreOneShot(t *testing.T) {
	h := New(DefaultConfig())
	h.Press(viewer.CommandReset)
	h.Press(viewer.CommandSaveWindow)

	m := h.Menu()
	assert.True(t, m.Reset)
	assert.True(t, m.SaveWindow)
	assert.False(t, m.Exit)
	assert.Equal(t, viewer.DefaultToggles(), m.Toggles)

	m = h.Menu()
	assert.False(t, m.Reset, "commands must clear after being read")
	assert.False(t, m.SaveWindow)
}

func TestHost_SetToggle(t *testing.T) {
	h := New(DefaultConfig())
	require.True(t, h.SetToggle(viewer.ToggleShowRawPosition, true))
	require.False(t, h.SetToggle("Show Nothing", true))
	assert.True(t, h.Menu().ShowRawPosition)

	h.SetToggles(viewer.Toggles{})
	assert.Equal(t, viewer.Toggles{}, h.Toggles())
}

func TestHost_RecordsFrames(t *testing.T) {
	h := New(Config{FrameRate: 0})
	ctx := context.Background()

	_, ok := h.LastFrame()
	require.False(t, ok)

	h.Clear(viewer.ColorWhite)
	h.Activate(viewer.View{Axis: viewer.AxisZ})
	h.DrawPoints([]viewer.Point{{X: 1}}, viewer.Style{PointSize: 3})
	h.DrawLines([]viewer.Segment{{To: viewer.Point{X: 1}}}, viewer.Style{LineWidth: 1})
	require.NoError(t, h.FinishFrame(ctx))

	f, ok := h.LastFrame()
	require.True(t, ok)
	assert.Equal(t, uint64(1), f.Index)
	assert.Equal(t, viewer.ColorWhite, f.Background)
	assert.Equal(t, viewer.AxisZ, f.View.Axis)
	assert.Len(t, f.Points, 1)
	assert.Len(t, f.Lines, 1)

	h.Clear(viewer.ColorBlack)
	require.NoError(t, h.FinishFrame(ctx))
	f, _ = h.LastFrame()
	assert.Equal(t, uint64(2), f.Index)
	assert.Empty(t, f.Points)
}

func TestHost_FramePacing(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	h := New(Config{FrameRate: 10})
	h.SetClock(clock)

	done := make(chan error, 1)
	h.Clear(viewer.ColorBlack)
	go func() { done <- h.FinishFrame(context.Background()) }()

	// The ticker is created inside FinishFrame.
	require.Eventually(t, func() bool { return len(clock.Tickers()) == 1 }, time.Second, time.Millisecond)
	select {
	case <-done:
		t.Fatal("FinishFrame returned before the tick")
	default:
	}

	clock.Advance(100 * time.Millisecond)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("FinishFrame did not return after the tick")
	}

	h.Close()
	assert.True(t, clock.Tickers()[0].Stopped())
}

func TestHost_FinishFrameCancelled(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	h := New(Config{FrameRate: 1})
	h.SetClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.FinishFrame(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
}

func TestHost_Quit(t *testing.T) {
	h := New(DefaultConfig())
	assert.False(t, h.ShouldQuit())
	h.RequestQuit()
	assert.True(t, h.ShouldQuit())
}

func TestHost_SessionID(t *testing.T) {
	assert.NotEmpty(t, New(Config{}).SessionID())
	assert.Equal(t, "abc", New(Config{SessionID: "abc"}).SessionID())
}

func testFrame(h *Host) {
	h.Clear(viewer.ColorBlack)
	h.Activate(viewer.View{Axis: viewer.AxisNegY})
	h.DrawPoints([]viewer.Point{{X: 0}, {X: 1, Y: 1, Z: 1}}, viewer.Style{PointSize: 3, Color: viewer.ColorHistorical})
	h.DrawLines(viewer.Polyline([]viewer.Point{{}, {X: 1}, {X: 1, Y: 1}}), viewer.Style{LineWidth: 1, Color: viewer.ColorLoopLink})
}

func TestHost_SaveWindow(t *testing.T) {
	dir := t.TempDir()
	h := New(Config{OutputDir: dir, SessionID: "0123456789abcdef"})
	testFrame(h)

	require.NoError(t, h.SaveWindow("window"))
	saved := h.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, filepath.Join(dir, "window_01234567_000001.png"), saved[0])

	data, err := os.ReadFile(saved[0])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\x89PNG"), "expected a PNG file")
}

func TestHost_SaveWindowEmptyFrame(t *testing.T) {
	h := New(Config{OutputDir: t.TempDir()})
	h.Clear(viewer.ColorWhite)
	require.NoError(t, h.SaveWindow("window"))
}

func TestHost_SaveObject(t *testing.T) {
	dir := t.TempDir()
	h := New(Config{OutputDir: dir, SessionID: "s1"})
	testFrame(h)

	require.NoError(t, h.SaveObject("object"))
	saved := h.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, filepath.Join(dir, "object_s1_000001.html"), saved[0])

	data, err := os.ReadFile(saved[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "scatter3D")
	assert.Contains(t, string(data), "session s1")
}

func TestHost_SaveToMissingDir(t *testing.T) {
	h := New(Config{OutputDir: filepath.Join(t.TempDir(), "missing")})
	testFrame(h)
	assert.Error(t, h.SaveWindow("window"))
	assert.Error(t, h.SaveObject("object"))
	assert.Empty(t, h.Saved())
}

func TestProject(t *testing.T) {
	p := viewer.Point{X: 1, Y: 2, Z: 3}
	tests := []struct {
		axis viewer.AxisPreset
		x, y float64
	}{
		{viewer.AxisNone, 1, 2},
		{viewer.AxisZ, 1, 2},
		{viewer.AxisNegZ, -1, 2},
		{viewer.AxisY, 1, 3},
		{viewer.AxisNegY, -1, 3},
		{viewer.AxisX, 2, 3},
		{viewer.AxisNegX, -2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.axis.String(), func(t *testing.T) {
			x, y := Project(p, tt.axis)
			if x != tt.x || y != tt.y {
				t.Errorf("expected (%v, %v), got (%v, %v)", tt.x, tt.y, x, y)
			}
		})
	}
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, "#ffffff", hexColor(viewer.ColorWhite))
	assert.Equal(t, "#000000", hexColor(viewer.ColorBlack))
	assert.Equal(t, "#ff0000", hexColor(viewer.Color{R: 2}))
}

func TestHost_DrivesViewerLoop(t *testing.T) {
	state := viewer.NewState(3)
	for i := 0; i < 4; i++ {
		require.NoError(t, state.PushPosition(viewer.Point{X: float64(i)}, 2))
	}

	h := New(Config{FrameRate: 0, OutputDir: t.TempDir()})
	h.Press(viewer.CommandExit)
	loop := viewer.NewLoop(state, h, viewer.LoopConfig{Sizes: viewer.Sizes{Point: 2, Line: 1}})
	require.NoError(t, loop.Run(context.Background()))

	f, ok := h.LastFrame()
	require.True(t, ok)
	assert.NotEmpty(t, f.Points)
	assert.Equal(t, viewer.StateExiting, loop.State())
}
