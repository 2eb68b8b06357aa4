// Package synthetic is a stand-in estimator. It drives every push operation
// of a viewer from several goroutines at different rates, the way a real
// odometry, mapping and global optimisation pipeline would.
package synthetic

import (
	"context"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/slamviewer/internal/monitoring"
	"github.com/banshee-data/slamviewer/internal/timeutil"
	"github.com/banshee-data/slamviewer/internal/viewer"
)

var logf = monitoring.Component("Synthetic")

// Sink receives estimator output. *viewer.State and *ingest.Publisher both
// satisfy it.
type Sink interface {
	PushRawPosition(p viewer.Point, offset int) error
	PushPosition(p viewer.Point, offset int) error
	PushOrientation(r mat.Matrix) error
	PushLandmarks(landmarks map[int64]viewer.Point)
	PushLoopLink(ref, cur int) error
	PushOptimizedPosition(p viewer.Point)
}

// Config controls the synthetic trajectory and producer rates.
type Config struct {
	Window             int           // sliding window size, as configured on the viewer
	Radius             float64       // circle radius in metres
	StepsPerRevolution int           // frames per lap; a loop link is emitted every lap
	Interval           time.Duration // odometry period
	MapEvery           int           // odometry steps per landmark update
	FullBAEvery        int           // odometry steps per full bundle adjustment
	Landmarks          int           // landmarks on the ring
	Revision           float64       // amplitude of windowed re-estimation noise
	RawNoise           float64       // amplitude of raw position noise
	Seed               uint64
}

// DefaultConfig returns a 30 Hz estimator on a 5 m circle.
func DefaultConfig() Config {
	return Config{
		Window:             10,
		Radius:             5,
		StepsPerRevolution: 300,
		Interval:           33 * time.Millisecond,
		MapEvery:           3,
		FullBAEvery:        30,
		Landmarks:          72,
		Revision:           0.05,
		RawNoise:           0.15,
		Seed:               1,
	}
}

// Stats counts generator output.
type Stats struct {
	Frames    int64
	LoopLinks int64
	FullBA    int64
	Errors    int64
}

// Generator produces a synthetic SLAM stream into a Sink.
type Generator struct {
	cfg   Config
	sink  Sink
	clock timeutil.Clock

	frame     atomic.Int64 // newest frame pushed, -1 before the first
	loopLinks atomic.Int64
	fullBA    atomic.Int64
	errors    atomic.Int64
}

// New creates a generator. Invalid config values fall back to defaults.
func New(cfg Config, sink Sink) *Generator {
	def := DefaultConfig()
	if cfg.Window < 1 {
		cfg.Window = def.Window
	}
	if cfg.Radius <= 0 {
		cfg.Radius = def.Radius
	}
	if cfg.StepsPerRevolution < 1 {
		cfg.StepsPerRevolution = def.StepsPerRevolution
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MapEvery < 1 {
		cfg.MapEvery = def.MapEvery
	}
	if cfg.FullBAEvery < 1 {
		cfg.FullBAEvery = def.FullBAEvery
	}
	if cfg.Landmarks < 1 {
		cfg.Landmarks = def.Landmarks
	}
	g := &Generator{cfg: cfg, sink: sink, clock: timeutil.RealClock{}}
	g.frame.Store(-1)
	return g
}

// SetClock replaces the clock used for producer tickers.
func (g *Generator) SetClock(c timeutil.Clock) {
	g.clock = c
}

// Stats returns the output counters.
func (g *Generator) Stats() Stats {
	return Stats{
		Frames:    g.frame.Load() + 1,
		LoopLinks: g.loopLinks.Load(),
		FullBA:    g.fullBA.Load(),
		Errors:    g.errors.Load(),
	}
}

// Pose returns the ground-truth position and body rotation of frame k.
func (g *Generator) Pose(k int) (viewer.Point, *mat.Dense) {
	theta := 2 * math.Pi * float64(k) / float64(g.cfg.StepsPerRevolution)
	p := viewer.Point{
		X: g.cfg.Radius * math.Cos(theta),
		Y: g.cfg.Radius * math.Sin(theta),
		Z: 0.1 * g.cfg.Radius * math.Sin(3*theta),
	}
	// Heading is tangent to the circle.
	yaw := theta + math.Pi/2
	c, s := math.Cos(yaw), math.Sin(yaw)
	r := mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
	return p, r
}

func (g *Generator) fail(op string, err error) {
	if err == nil {
		return
	}
	if g.errors.Add(1) == 1 {
		logf("%s: %v", op, err)
	}
}

func jitter(rng *rand.Rand, amp float64) viewer.Point {
	return viewer.Point{
		X: amp * (2*rng.Float64() - 1),
		Y: amp * (2*rng.Float64() - 1),
		Z: amp * (2*rng.Float64() - 1),
	}
}

// Step pushes frame k: its raw position, a re-estimate of every frame in
// the current window, and its orientation. Frames must be stepped in order
// from 0, since the viewer derives indices from its window base.
func (g *Generator) Step(k int, rng *rand.Rand) {
	w := g.cfg.Window
	newest := min(k, w-1)
	first := k - newest

	truth, rot := g.Pose(k)
	g.fail("raw position", g.sink.PushRawPosition(r3.Add(truth, jitter(rng, g.cfg.RawNoise)), newest))

	for off := 0; off <= newest; off++ {
		p, _ := g.Pose(first + off)
		// Older samples in the window have converged further.
		amp := g.cfg.Revision * float64(off+1) / float64(w)
		g.fail("position", g.sink.PushPosition(r3.Add(p, jitter(rng, amp)), off))
	}
	g.fail("orientation", g.sink.PushOrientation(rot))
	g.frame.Store(int64(k))
}

// MapStep replaces the landmark set with the part of the ring near frame k
// and closes a loop when k completes a lap.
func (g *Generator) MapStep(k int, rng *rand.Rand) {
	n := g.cfg.Landmarks
	theta := 2 * math.Pi * float64(k) / float64(g.cfg.StepsPerRevolution)
	set := make(map[int64]viewer.Point)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		d := math.Abs(math.Remainder(a-theta, 2*math.Pi))
		if d > math.Pi/3 {
			continue
		}
		r := g.cfg.Radius * 1.5
		base := viewer.Point{X: r * math.Cos(a), Y: r * math.Sin(a), Z: float64(i%3) * 0.5}
		set[int64(i)] = r3.Add(base, jitter(rng, 0.02))
	}
	g.sink.PushLandmarks(set)

	lap := g.cfg.StepsPerRevolution
	if k >= lap {
		if done := int64(k / lap); done > g.loopLinks.Load() {
			g.fail("loop link", g.sink.PushLoopLink(k-lap, k))
			g.loopLinks.Store(done)
		}
	}
}

// Run drives the producers until ctx is cancelled: odometry every Interval,
// mapping every MapEvery steps and full BA every FullBAEvery steps, each on
// its own goroutine and ticker.
func (g *Generator) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		rng := rand.New(rand.NewPCG(g.cfg.Seed, 1))
		t := g.clock.NewTicker(g.cfg.Interval)
		defer t.Stop()
		for k := 0; ; k++ {
			g.Step(k, rng)
			select {
			case <-ctx.Done():
				return nil
			case <-t.C():
			}
		}
	})

	eg.Go(func() error {
		rng := rand.New(rand.NewPCG(g.cfg.Seed, 2))
		t := g.clock.NewTicker(g.cfg.Interval * time.Duration(g.cfg.MapEvery))
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C():
			}
			if k := g.frame.Load(); k >= 0 {
				g.MapStep(int(k), rng)
			}
		}
	})

	eg.Go(func() error {
		t := g.clock.NewTicker(g.cfg.Interval * time.Duration(g.cfg.FullBAEvery))
		defer t.Stop()
		next := 0
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C():
			}
			for latest := int(g.frame.Load()); next <= latest; next++ {
				p, _ := g.Pose(next)
				g.sink.PushOptimizedPosition(p)
				g.fullBA.Add(1)
			}
		}
	})

	logf("producing on a %.1fm circle, window=%d, interval=%s", g.cfg.Radius, g.cfg.Window, g.cfg.Interval)
	err := eg.Wait()
	st := g.Stats()
	logf("stopped: frames=%d loop_links=%d full_ba=%d errors=%d", st.Frames, st.LoopLinks, st.FullBA, st.Errors)
	return err
}
