// Package headless is a window-less viewer host. It paces frames on a
// ticker, records each frame's primitives, takes menu input from other
// goroutines, and exports frames as PNG images and interactive 3D HTML.
package headless

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/slamviewer/internal/monitoring"
	"github.com/banshee-data/slamviewer/internal/timeutil"
	"github.com/banshee-data/slamviewer/internal/viewer"
)

var logf = monitoring.Component("Headless")

// Config holds headless host settings.
type Config struct {
	// FrameRate is the target frames per second. Zero or negative renders
	// back to back.
	FrameRate float64

	// OutputDir receives saved windows and objects.
	OutputDir string

	// SessionID tags saved files. Generated when empty.
	SessionID string
}

// DefaultConfig returns a 30 fps host writing to the working directory.
func DefaultConfig() Config {
	return Config{FrameRate: 30, OutputDir: "."}
}

// PointBatch is one DrawPoints call.
type PointBatch struct {
	Points []viewer.Point
	Style  viewer.Style
}

// LineBatch is one DrawLines call.
type LineBatch struct {
	Segments []viewer.Segment
	Style    viewer.Style
}

// Frame is everything drawn between Clear and FinishFrame.
type Frame struct {
	Index      uint64
	Background viewer.Color
	View       viewer.View
	Points     []PointBatch
	Lines      []LineBatch
}

// Host implements viewer.Host without a window. Draw methods are called from
// the render goroutine; the menu and quit methods may be called from any.
type Host struct {
	cfg   Config
	clock timeutil.Clock

	ticker timeutil.Ticker

	// Render goroutine only.
	building *Frame
	index    uint64

	mu      sync.Mutex
	toggles viewer.Toggles
	pending viewer.Menu
	quit    bool
	last    *Frame
	saved   []string
}

// New creates a host with the default menu toggles.
func New(cfg Config) *Host {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	return &Host{
		cfg:     cfg,
		clock:   timeutil.RealClock{},
		toggles: viewer.DefaultToggles(),
	}
}

// SetClock replaces the clock used for frame pacing. Call before the first
// frame.
func (h *Host) SetClock(c timeutil.Clock) {
	h.clock = c
}

// SessionID returns the id used in saved file names.
func (h *Host) SessionID() string {
	return h.cfg.SessionID
}

// SetToggle switches one menu toggle by panel name.
func (h *Host) SetToggle(name string, on bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.toggles.Set(name, on)
}

// SetToggles replaces every toggle.
func (h *Host) SetToggles(t viewer.Toggles) {
	h.mu.Lock()
	h.toggles = t
	h.mu.Unlock()
}

// Toggles returns the current toggles.
func (h *Host) Toggles() viewer.Toggles {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.toggles
}

// Press queues a one-shot command for the next frame.
func (h *Host) Press(c viewer.Command) {
	h.mu.Lock()
	h.pending.Press(c)
	h.mu.Unlock()
	logf("menu %q pressed", c)
}

// RequestQuit asks the render loop to stop, as closing a window would.
func (h *Host) RequestQuit() {
	h.mu.Lock()
	h.quit = true
	h.mu.Unlock()
}

// LastFrame returns the most recently finished frame.
func (h *Host) LastFrame() (Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return Frame{}, false
	}
	return *h.last, true
}

// Saved returns the paths written by SaveWindow and SaveObject.
func (h *Host) Saved() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.saved...)
}

// Menu returns the toggles plus the commands pressed since the last call.
func (h *Host) Menu() viewer.Menu {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.pending
	m.Toggles = h.toggles
	h.pending = viewer.Menu{}
	return m
}

// Clear starts a new frame.
func (h *Host) Clear(background viewer.Color) {
	h.index++
	h.building = &Frame{Index: h.index, Background: background}
}

// Activate records the frame's view.
func (h *Host) Activate(view viewer.View) {
	h.frame().View = view
}

// DrawPoints records a point batch.
func (h *Host) DrawPoints(points []viewer.Point, style viewer.Style) {
	f := h.frame()
	f.Points = append(f.Points, PointBatch{Points: points, Style: style})
}

// DrawLines records a line batch.
func (h *Host) DrawLines(segments []viewer.Segment, style viewer.Style) {
	f := h.frame()
	f.Lines = append(f.Lines, LineBatch{Segments: segments, Style: style})
}

func (h *Host) frame() *Frame {
	if h.building == nil {
		h.Clear(viewer.ColorBlack)
	}
	return h.building
}

// FinishFrame publishes the frame and waits for the next tick.
func (h *Host) FinishFrame(ctx context.Context) error {
	f := h.frame()
	h.mu.Lock()
	h.last = f
	h.mu.Unlock()
	h.building = nil

	if h.cfg.FrameRate <= 0 {
		return ctx.Err()
	}
	if h.ticker == nil {
		h.ticker = h.clock.NewTicker(time.Duration(float64(time.Second) / h.cfg.FrameRate))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ticker.C():
		return nil
	}
}

// ShouldQuit reports whether RequestQuit was called.
func (h *Host) ShouldQuit() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.quit
}

// Close stops the frame ticker.
func (h *Host) Close() {
	if h.ticker != nil {
		h.ticker.Stop()
	}
}

// SaveWindow writes the frame being built as a PNG.
func (h *Host) SaveWindow(name string) error {
	path := h.outputPath(name, "png")
	if err := renderPNG(*h.frame(), path); err != nil {
		return err
	}
	h.recordSave(path)
	return nil
}

// SaveObject writes the frame being built as an interactive 3D HTML page.
func (h *Host) SaveObject(name string) error {
	path := h.outputPath(name, "html")
	if err := renderHTML(*h.frame(), h.cfg.SessionID, path); err != nil {
		return err
	}
	h.recordSave(path)
	return nil
}

func (h *Host) recordSave(path string) {
	h.mu.Lock()
	h.saved = append(h.saved, path)
	h.mu.Unlock()
	logf("saved %s", path)
}

var _ viewer.Host = (*Host)(nil)
