package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAnalyzeFrame(t *testing.T) {
	frame := make([]uint32, 10)
	frame[0] = 0x00FFFFFF
	frame[1] = 0x00FFFFFF
	frame[2] = 0x00123456

	a := AnalyzeFrame(frame, 4)
	if a.Frame != 4 || a.UniqueColors != 3 || a.NonBlack != 3 {
		t.Errorf("analysis = %+v", a)
	}
	if a.Dominant != 0 || a.DominantShare != 0.7 {
		t.Errorf("dominant = #%06X %.2f, want #000000 0.70", a.Dominant, a.DominantShare)
	}
}

func TestSession_Lifecycle(t *testing.T) {
	session := NewSession(t.TempDir(), FormatPPM, 1)
	if err := session.Stop(); err == nil {
		t.Error("Stop before Start should fail")
	}
	if err := session.ProcessFrame(testFrame(), 0); err != nil {
		t.Errorf("ProcessFrame on an inactive session should be a no-op: %v", err)
	}

	if err := session.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := session.Start(); err == nil {
		t.Error("Second Start should fail")
	}
	for n := uint64(1); n <= 3; n++ {
		if err := session.ProcessFrame(testFrame(), n); err != nil {
			t.Fatalf("ProcessFrame %d: %v", n, err)
		}
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if len(session.Analyses()) != 3 {
		t.Errorf("Analyses = %d, want 3", len(session.Analyses()))
	}
	for _, name := range []string{"session_info.txt", "report.txt", "frame_000001.ppm", "frame_000003.ppm"} {
		if _, err := os.Stat(filepath.Join(session.OutputDir(), name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	report, _ := os.ReadFile(filepath.Join(session.OutputDir(), "report.txt"))
	if !strings.Contains(string(report), "Frames Dumped: 3") {
		t.Errorf("report does not list the dump count:\n%s", report)
	}
}
