// Package server exposes the viewer to operators: a gRPC health service that
// reports SERVING while the render loop runs, and a debug HTTP surface.
package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/banshee-data/slamviewer/internal/monitoring"
	"github.com/banshee-data/slamviewer/internal/viewer"
)

var logf = monitoring.Component("Server")

// ViewerService is the service name reported alongside the overall status.
const ViewerService = "slamviewer.Viewer"

// Health serves grpc.health.v1 for the viewer process.
type Health struct {
	addr     string
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewHealth creates a health server for addr. It reports NOT_SERVING until
// SetRunning(true).
func NewHealth(addr string) *Health {
	h := &Health{
		addr:   addr,
		server: grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	reflection.Register(h.server)
	h.SetRunning(false)
	return h
}

// SetRunning flips the overall and viewer status.
func (h *Health) SetRunning(running bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if running {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ViewerService, status)
}

// FollowLoop keeps the status in step with the loop's lifecycle.
func (h *Health) FollowLoop(loop *viewer.Loop) {
	loop.OnStateChange(func(s viewer.LoopState) {
		h.SetRunning(s == viewer.StateRunning)
	})
}

// Start listens on the configured address and serves in the background.
func (h *Health) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	h.Serve(lis)
	return nil
}

// Serve serves on lis in the background.
func (h *Health) Serve(lis net.Listener) {
	h.listener = lis
	h.running.Store(true)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		logf("gRPC health listening on %s", lis.Addr())
		if err := h.server.Serve(lis); err != nil && h.running.Load() {
			logf("gRPC server error: %v", err)
		}
	}()
}

// Addr returns the listening address, or nil before Start.
func (h *Health) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

// Stop marks every service NOT_SERVING and stops gracefully.
func (h *Health) Stop() {
	if !h.running.Swap(false) {
		return
	}
	h.health.Shutdown()
	h.server.GracefulStop()
	h.wg.Wait()
	logf("gRPC health stopped")
}
