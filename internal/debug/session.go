package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FrameAnalysis summarizes the colors of one frame
type FrameAnalysis struct {
	Frame         uint64
	UniqueColors  int
	NonBlack      int
	Dominant      uint32
	DominantShare float64
}

// AnalyzeFrame counts the colors in frame
func AnalyzeFrame(frame []uint32, frameNum uint64) FrameAnalysis {
	freq := make(map[uint32]int)
	a := FrameAnalysis{Frame: frameNum}
	for _, pixel := range frame {
		freq[pixel]++
		if pixel != 0 {
			a.NonBlack++
		}
	}
	a.UniqueColors = len(freq)

	best := -1
	for color, count := range freq {
		if count > best || (count == best && color < a.Dominant) {
			a.Dominant, best = color, count
		}
	}
	if len(frame) > 0 {
		a.DominantShare = float64(best) / float64(len(frame))
	}
	return a
}

// Session groups the frame dumps of one run in a timestamped directory and
// writes a summary report when stopped.
type Session struct {
	outputDir string
	sessionID string
	startTime time.Time
	dumper    *FrameDumper
	analyses  []FrameAnalysis
	active    bool
}

// NewSession prepares a dump session under outputDir
func NewSession(outputDir string, format Format, scale int) *Session {
	now := time.Now()
	sessionID := fmt.Sprintf("dump_%s", now.Format("20060102_150405"))
	dir := filepath.Join(outputDir, sessionID)

	dumper := NewFrameDumper(dir, format)
	dumper.SetScale(scale)
	return &Session{
		outputDir: dir,
		sessionID: sessionID,
		startTime: now,
		dumper:    dumper,
	}
}

// Dumper returns the session's frame dumper for further configuration
func (s *Session) Dumper() *FrameDumper {
	return s.dumper
}

// Start creates the session directory and its info file
func (s *Session) Start() error {
	if s.active {
		return fmt.Errorf("dump session already active")
	}
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	info := fmt.Sprintf("Dump Session\n============\n\nSession ID: %s\nStart Time: %s\nFormat: %s\nScale: %dx\n",
		s.sessionID, s.startTime.Format(time.RFC3339), s.dumper.format, s.dumper.scale)
	if err := os.WriteFile(filepath.Join(s.outputDir, "session_info.txt"), []byte(info), 0644); err != nil {
		return fmt.Errorf("failed to write session info: %w", err)
	}
	s.active = true
	return nil
}

// ProcessFrame dumps the frame and records its analysis when written
func (s *Session) ProcessFrame(frame []uint32, frameNum uint64) error {
	if !s.active {
		return nil
	}
	path, err := s.dumper.Dump(frame, frameNum)
	if err != nil {
		return err
	}
	if path != "" {
		s.analyses = append(s.analyses, AnalyzeFrame(frame, frameNum))
	}
	return nil
}

// Stop ends the session and writes report.txt
func (s *Session) Stop() error {
	if !s.active {
		return fmt.Errorf("dump session not active")
	}
	s.active = false

	file, err := os.Create(filepath.Join(s.outputDir, "report.txt"))
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "Dump Session Report\n===================\n\n")
	fmt.Fprintf(file, "Session ID: %s\n", s.sessionID)
	fmt.Fprintf(file, "Duration: %v\n", time.Since(s.startTime).Round(time.Millisecond))
	fmt.Fprintf(file, "Frames Dumped: %d\n\n", s.dumper.Dumped())

	sort.Slice(s.analyses, func(i, j int) bool { return s.analyses[i].Frame < s.analyses[j].Frame })
	fmt.Fprintf(file, "Frame    | Colors | Non-black | Dominant\n")
	fmt.Fprintf(file, "---------|--------|-----------|---------------\n")
	for _, a := range s.analyses {
		fmt.Fprintf(file, "%8d | %6d | %9d | #%06X %5.1f%%\n",
			a.Frame, a.UniqueColors, a.NonBlack, a.Dominant, a.DominantShare*100)
	}
	return nil
}

// Analyses returns the analyses of the dumped frames
func (s *Session) Analyses() []FrameAnalysis {
	return s.analyses
}

// OutputDir returns the session directory
func (s *Session) OutputDir() string {
	return s.outputDir
}

// IsActive reports whether the session is recording
func (s *Session) IsActive() bool {
	return s.active
}
