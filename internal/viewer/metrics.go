package viewer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes push and render activity. A nil *Metrics is valid and
// records nothing, so tests and embedders can skip it.
type Metrics struct {
	pushes         *prometheus.CounterVec
	usageErrors    *prometheus.CounterVec
	trajectoryLen  *prometheus.GaugeVec
	landmarks      prometheus.Gauge
	windowAdvances prometheus.Counter
	resets         prometheus.Counter

	frames        prometheus.Counter
	frameDuration prometheus.Histogram
	skippedDraws  *prometheus.CounterVec
	staleLinks    prometheus.Gauge
}

// NewMetrics registers the viewer metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		pushes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slamviewer_pushes_total",
			Help: "Accepted pushes per category",
		}, []string{"category"}),
		usageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slamviewer_push_usage_errors_total",
			Help: "Rejected pushes per category (producer bugs)",
		}, []string{"category"}),
		trajectoryLen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slamviewer_trajectory_samples",
			Help: "Stored samples per trajectory category",
		}, []string{"category"}),
		landmarks: f.NewGauge(prometheus.GaugeOpts{
			Name: "slamviewer_landmarks",
			Help: "Landmarks in the latest landmark set",
		}),
		windowAdvances: f.NewCounter(prometheus.CounterOpts{
			Name: "slamviewer_window_advances_total",
			Help: "Times the trajectory window base advanced",
		}),
		resets: f.NewCounter(prometheus.CounterOpts{
			Name: "slamviewer_trajectory_resets_total",
			Help: "Trajectory resets issued from the menu",
		}),
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "slamviewer_frames_total",
			Help: "Frames rendered by the render loop",
		}),
		frameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "slamviewer_frame_build_seconds",
			Help:    "Time spent snapshotting and drawing one frame, excluding present",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		skippedDraws: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slamviewer_draws_skipped_total",
			Help: "Enabled categories skipped because they were not ready",
		}, []string{"category"}),
		staleLinks: f.NewGauge(prometheus.GaugeOpts{
			Name: "slamviewer_loop_links_stale",
			Help: "Loop links skipped in the last frame for indexing outside the trajectory",
		}),
	}
}

func (m *Metrics) pushed(c Category) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) usageError(c Category) {
	if m == nil {
		return
	}
	m.usageErrors.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) trajectorySize(c Category, n int) {
	if m == nil {
		return
	}
	m.trajectoryLen.WithLabelValues(string(c)).Set(float64(n))
}

func (m *Metrics) landmarkCount(n int) {
	if m == nil {
		return
	}
	m.landmarks.Set(float64(n))
}

func (m *Metrics) windowAdvanced() {
	if m == nil {
		return
	}
	m.windowAdvances.Inc()
}

func (m *Metrics) reset() {
	if m == nil {
		return
	}
	m.resets.Inc()
	m.trajectoryLen.WithLabelValues(string(CategoryTrajectory)).Set(0)
	m.trajectoryLen.WithLabelValues(string(CategoryRawTrajectory)).Set(0)
}

func (m *Metrics) frameDone(seconds float64) {
	if m == nil {
		return
	}
	m.frames.Inc()
	m.frameDuration.Observe(seconds)
}

func (m *Metrics) skipped(c Category) {
	if m == nil {
		return
	}
	m.skippedDraws.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) stale(n int) {
	if m == nil {
		return
	}
	m.staleLinks.Set(float64(n))
}
