package viewer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/slamviewer/internal/config"
	"github.com/banshee-data/slamviewer/internal/monitoring"
	"github.com/banshee-data/slamviewer/internal/timeutil"
)

var logf = monitoring.Component("Viewer")

// LoopState is the render loop's lifecycle state.
type LoopState int32

const (
	StateRunning LoopState = iota
	StateExiting
)

func (s LoopState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// Saved file names passed to the host.
const (
	SaveWindowName = "window"
	SaveObjectName = "object"
)

// LoopConfig holds the render loop's fixed parameters.
type LoopConfig struct {
	Sizes      Sizes
	Background Color
	Axis       AxisPreset
	Eye        Point
	Focal      float64

	// StatsInterval is how often frame stats are logged. Zero disables.
	StatsInterval time.Duration
}

// LoopConfigFromViewer derives the loop parameters from the viewer config.
func LoopConfigFromViewer(cfg *config.ViewerConfig) LoopConfig {
	bg := ColorBlack
	if cfg.GetBackground() == 1 {
		bg = ColorWhite
	}
	return LoopConfig{
		Sizes:      SizesFromConfig(cfg),
		Background: bg,
		Axis:       AxisPreset(cfg.GetAxisDirection()),
		Eye: Point{
			X: cfg.GetViewpointX(),
			Y: cfg.GetViewpointY(),
			Z: cfg.GetViewpointZ(),
		},
		Focal:         cfg.GetViewpointF(),
		StatsInterval: 5 * time.Second,
	}
}

// LoopStats is a snapshot of render loop counters.
type LoopStats struct {
	State      LoopState
	Frames     uint64
	StaleLinks int
	Resets     uint64
}

// Loop is the single-goroutine render cycle. It owns no viewer data; each
// frame it snapshots the enabled categories of a State and draws them on
// a Host.
type Loop struct {
	state *State
	host  Host
	cfg   LoopConfig
	clock timeutil.Clock

	current    atomic.Int32
	frames     atomic.Uint64
	resets     atomic.Uint64
	staleLinks atomic.Int64

	listenersMu sync.Mutex
	listeners   []func(LoopState)

	lastStatsTime  time.Time
	lastStatsFrame uint64
}

// NewLoop creates a loop in StateRunning.
func NewLoop(state *State, host Host, cfg LoopConfig) *Loop {
	if !cfg.Axis.Valid() {
		logf("axis preset %d is invalid, using none", cfg.Axis)
		cfg.Axis = AxisNone
	}
	return &Loop{
		state: state,
		host:  host,
		cfg:   cfg,
		clock: timeutil.RealClock{},
	}
}

// SetClock replaces the clock used for stats logging and frame timing.
func (l *Loop) SetClock(c timeutil.Clock) {
	l.clock = c
}

// OnStateChange registers fn to be called with every state the loop
// enters, starting with the current one. Listeners run under the loop's
// listener lock and must not call OnStateChange.
func (l *Loop) OnStateChange(fn func(LoopState)) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	l.listeners = append(l.listeners, fn)
	fn(l.State())
}

// State returns the current lifecycle state.
func (l *Loop) State() LoopState {
	return LoopState(l.current.Load())
}

// Stats returns the loop counters.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		State:      l.State(),
		Frames:     l.frames.Load(),
		StaleLinks: int(l.staleLinks.Load()),
		Resets:     l.resets.Load(),
	}
}

func (l *Loop) transition(s LoopState) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	if LoopState(l.current.Swap(int32(s))) == s {
		return
	}
	logf("render loop %s", s)
	for _, fn := range l.listeners {
		fn(s)
	}
}

// Run drives frames until the exit command, a host close request, or ctx
// cancellation. The frame in progress always completes. Exiting is
// terminal: a second Run returns immediately.
func (l *Loop) Run(ctx context.Context) error {
	l.lastStatsTime = l.clock.Now()
	for l.State() == StateRunning {
		if ctx.Err() != nil || l.host.ShouldQuit() {
			l.transition(StateExiting)
			break
		}
		if exit := l.frame(ctx); exit {
			l.transition(StateExiting)
		}
	}
	return nil
}

// frame runs one iteration and reports whether the exit command was given.
func (l *Loop) frame(ctx context.Context) bool {
	start := l.clock.Now()

	l.host.Clear(l.cfg.Background)
	menu := l.host.Menu()

	follow := l.state.LastFollowTransform()
	// The pose marker is drawn at the current transform even when not following.
	if menu.FollowBody || menu.ShowPose {
		follow = l.state.FollowTransform()
	}
	l.host.Activate(View{
		Axis:      l.cfg.Axis,
		Eye:       l.cfg.Eye,
		Focal:     l.cfg.Focal,
		Follow:    follow,
		Following: menu.FollowBody,
	})

	if menu.ShowCoordinate {
		l.drawAxes()
	}
	if menu.ShowRawPosition {
		l.drawRawTrajectory()
	}

	// The trajectory snapshot is shared by the trajectory and loop link
	// draws so both see the same samples.
	var traj TrajectorySnapshot
	if menu.ShowPosition || menu.ShowLoopConnection {
		traj = l.state.Trajectory()
	}
	if menu.ShowPosition {
		l.drawTrajectory(traj)
	}
	if menu.ShowPose {
		l.drawPose(follow)
	}
	if menu.ShowLandmark {
		l.drawLandmarks()
	}
	if menu.ShowLoopConnection {
		l.drawLoopLinks(traj)
	}
	if menu.ShowFullBAPosition {
		l.drawOptimizedTrajectory()
	}

	if menu.Reset {
		l.state.ResetTrajectories()
		l.resets.Add(1)
		logf("trajectories reset")
	}
	if menu.SaveWindow {
		if err := l.host.SaveWindow(SaveWindowName); err != nil {
			logf("save window failed: %v", err)
		}
	}
	if menu.SaveObject {
		if err := l.host.SaveObject(SaveObjectName); err != nil {
			logf("save object failed: %v", err)
		}
	}

	l.state.metrics.frameDone(l.clock.Since(start).Seconds())
	count := l.frames.Add(1)
	l.logPeriodicStats(count)

	if err := l.host.FinishFrame(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logf("finish frame: %v", err)
	}

	return menu.Exit
}

func (l *Loop) drawAxes() {
	for _, a := range CoordinateAxes() {
		l.host.DrawLines([]Segment{a.Segment}, Style{LineWidth: axisLineWidth, Color: a.Color})
	}
}

func (l *Loop) drawRawTrajectory() {
	snap := l.state.RawTrajectory()
	if !snap.Ready || len(snap.Points) == 0 {
		l.state.metrics.skipped(CategoryRawTrajectory)
		return
	}
	l.host.DrawPoints(snap.Points, Style{PointSize: l.cfg.Sizes.Point, Color: ColorRaw})
	if segs := Polyline(snap.Points); len(segs) > 0 {
		l.host.DrawLines(segs, Style{LineWidth: l.cfg.Sizes.Line, Color: ColorRaw})
	}
}

func (l *Loop) drawTrajectory(snap TrajectorySnapshot) {
	if !snap.Ready || len(snap.Points) == 0 {
		l.state.metrics.skipped(CategoryTrajectory)
		return
	}

	n := HistoricalCount(len(snap.Points), l.state.Window())
	if n > 0 {
		l.host.DrawPoints(snap.Points[:n], Style{PointSize: l.cfg.Sizes.Point, Color: ColorHistorical})
	}
	if n < len(snap.Points) {
		l.host.DrawPoints(snap.Points[n:], Style{PointSize: l.cfg.Sizes.Point + recentPointGrowth, Color: ColorRecent})
	}
	if segs := Polyline(snap.Points); len(segs) > 0 {
		l.host.DrawLines(segs, Style{LineWidth: l.cfg.Sizes.Line, Color: ColorHistorical})
	}
}

func (l *Loop) drawPose(follow Transform) {
	if !l.state.Orientation().Ready {
		l.state.metrics.skipped(CategoryOrientation)
		return
	}
	l.host.DrawLines(CameraMarker(l.cfg.Sizes.Camera, follow), Style{
		LineWidth: l.cfg.Sizes.CameraLineWidth,
		Color:     ColorCamera,
	})
}

func (l *Loop) drawLandmarks() {
	snap := l.state.Landmarks()
	if !snap.Ready {
		l.state.metrics.skipped(CategoryLandmarks)
		return
	}
	if len(snap.Landmarks) == 0 {
		return
	}
	l.host.DrawPoints(snap.Positions(), Style{PointSize: l.cfg.Sizes.Landmark, Color: ColorLandmark})
}

func (l *Loop) drawLoopLinks(traj TrajectorySnapshot) {
	snap := l.state.LoopLinks()
	if !snap.Ready {
		l.state.metrics.skipped(CategoryLoopLinks)
		return
	}

	segs, stale := LoopSegments(snap.Links, traj.Points)
	l.staleLinks.Store(int64(stale))
	l.state.metrics.stale(stale)
	if len(segs) > 0 {
		l.host.DrawLines(segs, Style{LineWidth: l.cfg.Sizes.Line, Color: ColorLoopLink})
	}
}

func (l *Loop) drawOptimizedTrajectory() {
	snap := l.state.OptimizedTrajectory()
	if !snap.Ready || len(snap.Points) == 0 {
		l.state.metrics.skipped(CategoryOptimizedTrajectory)
		return
	}
	l.host.DrawPoints(snap.Points, Style{PointSize: l.cfg.Sizes.Point, Color: ColorOptimized})
	if segs := Polyline(snap.Points); len(segs) > 0 {
		l.host.DrawLines(segs, Style{LineWidth: l.cfg.Sizes.Line, Color: ColorOptimized})
	}
}

// logPeriodicStats logs frame rate every StatsInterval.
func (l *Loop) logPeriodicStats(frames uint64) {
	if l.cfg.StatsInterval <= 0 {
		return
	}
	now := l.clock.Now()
	elapsed := now.Sub(l.lastStatsTime)
	if elapsed < l.cfg.StatsInterval {
		return
	}
	inInterval := frames - l.lastStatsFrame
	fps := float64(inInterval) / elapsed.Seconds()
	traj := l.state.Trajectory()
	logf("Stats: fps=%.1f frames=%d samples=%d base=%d stale_links=%d",
		fps, inInterval, len(traj.Points), traj.Base, l.staleLinks.Load())
	l.lastStatsTime = now
	l.lastStatsFrame = frames
}
