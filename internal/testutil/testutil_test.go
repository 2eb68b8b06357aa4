package testutil

import (
	"errors"
	"net/http"
	"testing"

	"github.com/banshee-data/slamviewer/internal/monitoring"
)

func TestAssertStatusCode_Matching(t *testing.T) {
	fakeT := &testing.T{}
	AssertStatusCode(fakeT, http.StatusOK, http.StatusOK)
	if fakeT.Failed() {
		t.Error("expected no failure for matching status codes")
	}
}

func TestAssertNoError_NilErr(t *testing.T) {
	fakeT := &testing.T{}
	AssertNoError(fakeT, nil)
	if fakeT.Failed() {
		t.Error("expected no failure for nil error")
	}
}

func TestNewLoopbackRequest(t *testing.T) {
	req := NewLoopbackRequest(http.MethodPost, "/debug/viewer", nil)
	if req.RemoteAddr != LoopbackAddr {
		t.Errorf("expected remote addr %s, got %s", LoopbackAddr, req.RemoteAddr)
	}
	if req.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", req.Method)
	}
}

func TestCaptureLogs(t *testing.T) {
	var c *LogCapture
	t.Run("capture", func(t *testing.T) {
		c = CaptureLogs(t)
		monitoring.Logf("[Viewer] frame %d", 3)
		monitoring.Component("Ingest")("dropped: %v", errors.New("bad"))
	})

	lines := c.Lines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	if !c.Contains("[Ingest] dropped: bad") {
		t.Errorf("missing component line in %v", lines)
	}

	// Restored after the subtest.
	monitoring.Logf("after capture")
	if c.Contains("after capture") {
		t.Error("logger not restored")
	}
}
