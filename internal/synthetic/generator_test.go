package synthetic

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/slamviewer/internal/viewer"
)

func TestNew_Defaults(t *testing.T) {
	g := New(Config{}, viewer.NewState(1))
	assert.Equal(t, DefaultConfig().Window, g.cfg.Window)
	assert.Equal(t, DefaultConfig().Interval, g.cfg.Interval)
	assert.Equal(t, int64(0), g.Stats().Frames)
}

func TestPose(t *testing.T) {
	g := New(Config{Radius: 2, StepsPerRevolution: 4}, viewer.NewState(1))

	p, r := g.Pose(1)
	assert.InDelta(t, 0, p.X, 1e-12)
	assert.InDelta(t, 2, p.Y, 1e-12)

	// Rotation is orthonormal.
	var rrT mat.Dense
	rrT.Mul(r, r.T())
	assert.True(t, mat.EqualApprox(&rrT, mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-12))

	p0, _ := g.Pose(0)
	p4, _ := g.Pose(4)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(p0, p4)), 1e-9, "a lap returns to the start")
}

func TestStep_FollowsWindowBase(t *testing.T) {
	const window, steps = 4, 25
	s := viewer.NewState(window)
	g := New(Config{Window: window, Revision: 0.01, RawNoise: 0.01}, s)
	rng := rand.New(rand.NewPCG(1, 1))

	for k := 0; k < steps; k++ {
		g.Step(k, rng)
	}

	st := g.Stats()
	assert.Equal(t, int64(steps), st.Frames)
	assert.Equal(t, int64(0), st.Errors)

	traj := s.Trajectory()
	require.Len(t, traj.Points, steps)
	assert.Equal(t, steps-window+1, traj.Base)
	assert.Len(t, s.RawTrajectory().Points, steps)

	for k, p := range traj.Points {
		truth, _ := g.Pose(k)
		assert.InDelta(t, 0, r3.Norm(r3.Sub(p, truth)), 0.05, "sample %d far from truth", k)
	}
	assert.True(t, s.Orientation().Ready)
}

func TestMapStep_LandmarksAndLoops(t *testing.T) {
	s := viewer.NewState(3)
	g := New(Config{Window: 3, StepsPerRevolution: 10, Landmarks: 12}, s)
	rng := rand.New(rand.NewPCG(1, 2))

	for k := 0; k < 25; k++ {
		g.Step(k, rng)
		g.MapStep(k, rng)
	}

	lms := s.Landmarks()
	require.True(t, lms.Ready)
	// A third of the ring is visible.
	assert.InDelta(t, 5, len(lms.Landmarks), 1)

	links := s.LoopLinks().Links
	assert.Equal(t, []viewer.LoopLink{{Ref: 0, Cur: 10}, {Ref: 10, Cur: 20}}, links)
	assert.Equal(t, int64(2), g.Stats().LoopLinks)

	// Closed loops land on the same place.
	traj := s.Trajectory().Points
	for _, l := range links {
		assert.Less(t, r3.Norm(r3.Sub(traj[l.Ref], traj[l.Cur])), 0.1)
	}
}

func TestRun(t *testing.T) {
	s := viewer.NewState(5)
	g := New(Config{
		Window:             5,
		StepsPerRevolution: 20,
		Interval:           time.Millisecond,
		MapEvery:           2,
		FullBAEvery:        5,
	}, s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool {
		st := g.Stats()
		return st.Frames > 25 && st.FullBA > 0 && st.LoopLinks > 0
	}, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	assert.Equal(t, int64(0), g.Stats().Errors)
	assert.True(t, s.OptimizedTrajectory().Ready)
	assert.True(t, s.Landmarks().Ready)
	assert.False(t, math.IsNaN(s.FollowTransform().Translation().X))
}
