package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"nescore/internal/cartridge"
	"nescore/internal/console"
)

// fakeClock advances only when slept on or moved explicitly
type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept += d
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// recordingSink collects every pushed sample
type recordingSink struct {
	samples []float32
	pushes  int
}

func (s *recordingSink) PushSamples(samples []float32) {
	s.samples = append(s.samples, samples...)
	s.pushes++
}

// toneProgram starts a pulse tone, turns on rendering and spins
func toneProgram(b *cartridge.TestROMBuilder) {
	b.WithCode(0x8000,
		0xA9, 0x0F, 0x8D, 0x15, 0x40, // LDA #$0F; STA $4015
		0xA9, 0xBF, 0x8D, 0x00, 0x40, // LDA #$BF; STA $4000
		0xA9, 0xFD, 0x8D, 0x02, 0x40, // LDA #$FD; STA $4002
		0xA9, 0x08, 0x8D, 0x03, 0x40, // LDA #$08; STA $4003
		0xA9, 0x1E, 0x8D, 0x01, 0x20, // LDA #$1E; STA $2001
		0xE6, 0x10,                   // INC $10
		0x4C, 0x19, 0x80,             // JMP $8019
	)
}

func newTestConsole(t *testing.T, configure func(b *cartridge.TestROMBuilder)) *console.Console {
	t.Helper()
	b := cartridge.NewTestROMBuilder()
	if configure != nil {
		configure(b)
	}
	cart, err := b.BuildCartridge()
	if err != nil {
		t.Fatalf("Failed to build test cartridge: %v", err)
	}
	return console.New(cart)
}

// writeTestROM writes an iNES image into dir and returns its path
func writeTestROM(t *testing.T, dir, name string, configure func(b *cartridge.TestROMBuilder)) string {
	t.Helper()
	b := cartridge.NewTestROMBuilder()
	if configure != nil {
		configure(b)
	}
	data, err := b.Build()
	if err != nil {
		t.Fatalf("Failed to build test ROM: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write test ROM: %v", err)
	}
	return path
}

func runFrames(t *testing.T, c *console.Console, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.StepFrame(); err != nil {
			t.Fatalf("StepFrame %d failed: %v", i, err)
		}
	}
}

// testConfig returns defaults with every output directory under dir
func testConfig(dir string) *Config {
	cfg := NewConfig()
	cfg.Video.Backend = "headless"
	cfg.Audio.Enabled = false
	cfg.Emulation.Speed = 0
	cfg.Paths = PathsConfig{
		SaveData:    filepath.Join(dir, "saves"),
		SaveStates:  filepath.Join(dir, "states"),
		Screenshots: filepath.Join(dir, "screenshots"),
		Recordings:  filepath.Join(dir, "recordings"),
	}
	return cfg
}
