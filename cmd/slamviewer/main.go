package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/banshee-data/slamviewer/internal/config"
	"github.com/banshee-data/slamviewer/internal/headless"
	"github.com/banshee-data/slamviewer/internal/ingest"
	"github.com/banshee-data/slamviewer/internal/recording"
	"github.com/banshee-data/slamviewer/internal/server"
	"github.com/banshee-data/slamviewer/internal/synthetic"
	"github.com/banshee-data/slamviewer/internal/version"
	"github.com/banshee-data/slamviewer/internal/viewer"
)

var (
	configFile    = flag.String("config", "", "Path to viewer config JSON (defaults when empty)")
	mqttBroker    = flag.String("mqtt-broker", "", "MQTT broker to ingest estimator output from, e.g. tcp://localhost:1883")
	mqttPrefix    = flag.String("mqtt-prefix", ingest.DefaultPrefix, "Topic prefix for estimator messages")
	grpcAddr      = flag.String("grpc-addr", ":50061", "gRPC health listen address (empty disables)")
	debugAddr     = flag.String("debug-addr", "127.0.0.1:8090", "Debug HTTP listen address (empty disables)")
	runSynthetic  = flag.Bool("synthetic", false, "Feed the viewer from the built-in synthetic estimator")
	syntheticMQTT = flag.Bool("synthetic-mqtt", false, "Publish the synthetic estimator through -mqtt-broker instead of pushing directly")
	outputDir     = flag.String("output-dir", "", "Directory for saved windows and objects (overrides config)")
	windowSize    = flag.Int("window", 0, "Sliding window size (overrides config)")
	frameRate     = flag.Float64("fps", 0, "Target frame rate (overrides config)")
	recordDB      = flag.String("record", "", "SQLite file to record ingested messages to")
	replayDB      = flag.String("replay", "", "SQLite recording to replay into the viewer")
	replaySession = flag.String("replay-session", "", "Session id to replay (newest when empty)")
	replaySpeed   = flag.Float64("replay-speed", 1, "Replay speed multiplier (0 for as fast as possible)")
	versionFlag   = flag.Bool("version", false, "Print version and exit")
)

// options are the resolved command line settings.
type options struct {
	Config        *config.ViewerConfig
	MQTTBroker    string
	MQTTPrefix    string
	GRPCAddr      string
	DebugAddr     string
	Synthetic     bool
	SyntheticMQTT bool
	RecordPath    string
	ReplayPath    string
	ReplaySession string
	ReplaySpeed   float64
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Summary())
		return
	}

	cfg := config.EmptyViewerConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadViewerConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if *windowSize != 0 {
		cfg.WindowSize = windowSize
	}
	if *frameRate != 0 {
		cfg.FrameRate = frameRate
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if *syntheticMQTT && *mqttBroker == "" {
		log.Fatal("-synthetic-mqtt requires -mqtt-broker")
	}
	if *replayDB != "" && (*runSynthetic || *syntheticMQTT || *mqttBroker != "") {
		log.Fatal("-replay cannot be combined with live ingest or -synthetic")
	}
	if *recordDB != "" && *mqttBroker == "" {
		log.Fatal("-record requires -mqtt-broker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		Config:        cfg,
		MQTTBroker:    *mqttBroker,
		MQTTPrefix:    *mqttPrefix,
		GRPCAddr:      *grpcAddr,
		DebugAddr:     *debugAddr,
		Synthetic:     *runSynthetic || *syntheticMQTT,
		SyntheticMQTT: *syntheticMQTT,
		RecordPath:    *recordDB,
		ReplayPath:    *replayDB,
		ReplaySession: *replaySession,
		ReplaySpeed:   *replaySpeed,
	}
	if err := run(ctx, opts); err != nil {
		log.Fatalf("slamviewer: %v", err)
	}
	log.Print("graceful shutdown complete")
}

// app is the wired process. Producers run in the background; the render
// loop runs on the caller's goroutine.
type app struct {
	opts     options
	registry *prometheus.Registry
	state    *viewer.State
	host     *headless.Host
	loop     *viewer.Loop
	health   *server.Health
	debug    *server.Debug

	debugServer *http.Server
	debugLis    net.Listener
	subscriber  *ingest.Subscriber
	publisher   *ingest.Publisher
	generator   *synthetic.Generator
	recordings  []*recording.DB
}

func newApp(opts options) *app {
	cfg := opts.Config

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	state := viewer.NewState(cfg.GetWindowSize())
	state.SetMetrics(viewer.NewMetrics(reg))

	host := headless.New(headless.Config{
		FrameRate: cfg.GetFrameRate(),
		OutputDir: cfg.GetOutputDir(),
	})
	loop := viewer.NewLoop(state, host, viewer.LoopConfigFromViewer(cfg))

	return &app{
		opts:     opts,
		registry: reg,
		state:    state,
		host:     host,
		loop:     loop,
		debug:    server.NewDebug(state, loop, host, reg),
	}
}

// start brings up the operator surfaces and the producers.
func (a *app) start(ctx context.Context, wg *sync.WaitGroup) error {
	if a.opts.GRPCAddr != "" {
		a.health = server.NewHealth(a.opts.GRPCAddr)
		a.health.FollowLoop(a.loop)
		if err := a.health.Start(); err != nil {
			return fmt.Errorf("health server: %w", err)
		}
	}

	if a.opts.RecordPath != "" && a.opts.ReplayPath != "" {
		return errors.New("cannot record and replay in one session")
	}
	var recordDB, replayDB *recording.DB
	if a.opts.RecordPath != "" {
		db, err := a.openRecording(a.opts.RecordPath)
		if err != nil {
			return err
		}
		recordDB = db
	}
	if a.opts.ReplayPath != "" {
		db, err := a.openRecording(a.opts.ReplayPath)
		if err != nil {
			return err
		}
		replayDB = db
	}

	if a.opts.DebugAddr != "" {
		mux := http.NewServeMux()
		a.debug.AttachAdminRoutes(mux)
		for _, db := range a.recordings {
			db.AttachAdminRoutes(mux)
		}
		lis, err := net.Listen("tcp", a.opts.DebugAddr)
		if err != nil {
			return fmt.Errorf("debug server: failed to listen: %w", err)
		}
		a.debugLis = lis
		a.debugServer = &http.Server{Handler: mux}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("debug server listening on %s", lis.Addr())
			if err := a.debugServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("debug server error: %v", err)
			}
		}()
	}

	mqttCfg := ingest.DefaultConfig()
	mqttCfg.Broker = a.opts.MQTTBroker
	mqttCfg.Prefix = a.opts.MQTTPrefix

	if a.opts.MQTTBroker != "" {
		a.subscriber = ingest.NewSubscriber(mqttCfg, a.state)
		if recordDB != nil {
			rec, err := recordDB.NewSession(ctx, mqttCfg.Prefix, a.state.Window(), nil)
			if err != nil {
				return fmt.Errorf("recording: %w", err)
			}
			a.subscriber.Handler().SetRecorder(rec)
			a.debug.AddStatus("recorder", func() any { return rec.Stats() })
		}
		if err := a.subscriber.Start(ctx); err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		a.debug.AddStatus("ingest", func() any { return a.subscriber.Handler().Stats() })
	}

	if a.opts.Synthetic {
		var sink synthetic.Sink = a.state
		if a.opts.SyntheticMQTT {
			a.publisher = ingest.NewPublisher(mqttCfg, nil)
			if err := a.publisher.Start(ctx); err != nil {
				return fmt.Errorf("synthetic publisher: %w", err)
			}
			sink = a.publisher
		}
		scfg := synthetic.DefaultConfig()
		scfg.Window = a.state.Window()
		a.generator = synthetic.New(scfg, sink)
		a.debug.AddStatus("synthetic", func() any { return a.generator.Stats() })

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.generator.Run(ctx); err != nil {
				log.Printf("synthetic estimator stopped: %v", err)
			}
		}()
	}
	if replayDB != nil {
		handler := ingest.NewHandler(a.state, a.opts.MQTTPrefix)
		player := recording.NewPlayer(replayDB)
		player.Speed = a.opts.ReplaySpeed
		a.debug.AddStatus("replay", func() any { return handler.Stats() })

		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := player.Play(ctx, a.opts.ReplaySession, handler.HandleSuffix); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("replay stopped: %v", err)
			}
		}()
	}
	return nil
}

func (a *app) openRecording(path string) (*recording.DB, error) {
	db, err := recording.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", path, err)
	}
	a.recordings = append(a.recordings, db)
	return db, nil
}

// stop tears down everything start brought up.
func (a *app) stop() {
	if a.subscriber != nil {
		a.subscriber.Stop()
	}
	if a.publisher != nil {
		a.publisher.Stop()
	}
	if a.debugServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.debugServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("debug server shutdown error: %v", err)
		}
		cancel()
	}
	if a.health != nil {
		a.health.Stop()
	}
	a.host.Close()
}

// closeRecordings runs after producers have stopped writing.
func (a *app) closeRecordings() {
	for _, db := range a.recordings {
		if err := db.Close(); err != nil {
			log.Printf("failed to close %s: %v", db.Path(), err)
		}
	}
}

// run wires the viewer and blocks until the render loop exits.
func run(ctx context.Context, opts options) error {
	log.Printf("%s window=%d", version.Summary(), opts.Config.GetWindowSize())

	a := newApp(opts)

	producerCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		a.stop()
		wg.Wait()
		a.closeRecordings()
	}()

	if err := a.start(producerCtx, &wg); err != nil {
		return err
	}

	if err := a.loop.Run(ctx); err != nil {
		return fmt.Errorf("render loop: %w", err)
	}
	st := a.loop.Stats()
	log.Printf("render loop exited after %d frames (%d resets)", st.Frames, st.Resets)
	return nil
}
