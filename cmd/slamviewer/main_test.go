package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/slamviewer/internal/config"
	"github.com/banshee-data/slamviewer/internal/ingest"
	"github.com/banshee-data/slamviewer/internal/recording"
	"github.com/banshee-data/slamviewer/internal/server"
	"github.com/banshee-data/slamviewer/internal/viewer"
)

func testOptions(t *testing.T) options {
	t.Helper()
	dir := t.TempDir()
	fps := 200.0
	window := 6
	return options{
		Config: &config.ViewerConfig{
			OutputDir:  &dir,
			FrameRate:  &fps,
			WindowSize: &window,
		},
		MQTTPrefix: "slam/",
		GRPCAddr:   "127.0.0.1:0",
		DebugAddr:  "127.0.0.1:0",
		Synthetic:  true,
	}
}

func TestRun_CancelledContext(t *testing.T) {
	opts := testOptions(t)
	opts.GRPCAddr = ""
	opts.DebugAddr = ""

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, run(ctx, opts))
}

func TestApp_SyntheticSession(t *testing.T) {
	opts := testOptions(t)
	a := newApp(opts)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		a.stop()
		wg.Wait()
	}()
	require.NoError(t, a.start(ctx, &wg))
	require.NotNil(t, a.health.Addr())

	done := make(chan error, 1)
	go func() { done <- a.loop.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.loop.Stats().Frames > 3 && a.state.Trajectory().Ready
	}, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + a.debugLis.Addr().String() + "/debug/viewer")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st server.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "running", st.Loop)
	assert.Equal(t, 6, st.Window)
	assert.Contains(t, st.Extra, "synthetic")

	a.host.Press(viewer.CommandSaveWindow)
	a.host.Press(viewer.CommandExit)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("render loop did not exit")
	}
	assert.Equal(t, viewer.StateExiting, a.loop.State())

	saved := a.host.Saved()
	require.Len(t, saved, 1)
	assert.Equal(t, ".png", filepath.Ext(saved[0]))
	_, err = os.Stat(saved[0])
	assert.NoError(t, err)
}

func TestApp_Replay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	db, err := recording.Open(path)
	require.NoError(t, err)
	rec, err := db.NewSession(context.Background(), ingest.DefaultPrefix, 6, nil)
	require.NoError(t, err)
	rec.Record(ingest.TopicPosition, []byte(`{"p":[1,2,3]}`))
	rec.Record(ingest.TopicLandmarks, []byte(`{"landmarks":{"4":[0,0,1]}}`))
	require.NoError(t, db.Close())

	opts := testOptions(t)
	opts.Synthetic = false
	opts.GRPCAddr = ""
	opts.ReplayPath = path
	opts.ReplaySpeed = 0
	a := newApp(opts)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		a.stop()
		wg.Wait()
		a.closeRecordings()
	}()
	require.NoError(t, a.start(ctx, &wg))

	require.Eventually(t, func() bool {
		return a.state.Trajectory().Ready && a.state.Landmarks().Ready
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, viewer.Point{X: 1, Y: 2, Z: 3}, a.state.Trajectory().Points[0])

	resp, err := http.Get("http://" + a.debugLis.Addr().String() + "/debug/recordings")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sessions []recording.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, rec.Session(), sessions[0].ID)
}

func TestApp_RecordAndReplayConflict(t *testing.T) {
	opts := testOptions(t)
	opts.RecordPath = filepath.Join(t.TempDir(), "a.db")
	opts.ReplayPath = filepath.Join(t.TempDir(), "b.db")
	a := newApp(opts)

	var wg sync.WaitGroup
	err := a.start(context.Background(), &wg)
	require.Error(t, err)
	a.stop()
	wg.Wait()
}
