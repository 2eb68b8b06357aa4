package version

import "testing"

func TestSummary(t *testing.T) {
	prev := Version
	defer func() { Version = prev }()

	Version = "1.2.3"
	want := "slamviewer 1.2.3 (" + GitSHA + ", built " + BuildTime + ")"
	if got := Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}
