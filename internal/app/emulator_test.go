package app

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"nescore/internal/apu"
	"nescore/internal/console"
)

func newTestEmulator(t *testing.T, speed float64) (*Emulator, *fakeClock) {
	t.Helper()
	cfg := NewConfig()
	cfg.Emulation.Speed = speed
	e := NewEmulator(newTestConsole(t, toneProgram), cfg)
	clock := newFakeClock()
	e.SetClock(clock)
	return e, clock
}

// cyclesDuration is the wall time n cycles take at nominal speed
func cyclesDuration(n uint64) time.Duration {
	return time.Duration(float64(n) / apu.CPUFrequency * float64(time.Second))
}

func TestEmulator_Throttle_ShouldSleepForEmulatedTime(t *testing.T) {
	e, clock := newTestEmulator(t, 1.0)

	if err := e.RunFrame(); err != nil {
		t.Fatalf("RunFrame failed: %v", err)
	}
	e.throttle()

	want := cyclesDuration(e.Console().Cycles())
	if diff := clock.slept - want; diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("slept %v, want %v", clock.slept, want)
	}
}

func TestEmulator_Throttle_DoubleSpeed_ShouldSleepHalf(t *testing.T) {
	e, clock := newTestEmulator(t, 2.0)

	if err := e.RunFrame(); err != nil {
		t.Fatalf("RunFrame failed: %v", err)
	}
	e.throttle()

	want := cyclesDuration(e.Console().Cycles()) / 2
	if diff := clock.slept - want; diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("slept %v, want %v", clock.slept, want)
	}
}

func TestEmulator_Throttle_ZeroSpeed_ShouldNeverSleep(t *testing.T) {
	e, clock := newTestEmulator(t, 0)

	for i := 0; i < 5; i++ {
		if err := e.RunFrame(); err != nil {
			t.Fatalf("RunFrame failed: %v", err)
		}
		e.throttle()
	}
	if clock.slept != 0 {
		t.Errorf("slept %v with unlimited speed", clock.slept)
	}
}

func TestEmulator_Throttle_FarBehind_ShouldResyncInsteadOfCatchingUp(t *testing.T) {
	e, clock := newTestEmulator(t, 1.0)

	if err := e.RunFrame(); err != nil {
		t.Fatalf("RunFrame failed: %v", err)
	}
	clock.Advance(time.Second)
	e.throttle()
	if clock.slept != 0 {
		t.Fatalf("slept %v while behind", clock.slept)
	}

	before := e.Console().Cycles()
	if err := e.RunFrame(); err != nil {
		t.Fatalf("RunFrame failed: %v", err)
	}
	e.throttle()

	want := cyclesDuration(e.Console().Cycles() - before)
	if diff := clock.slept - want; diff < -time.Microsecond || diff > time.Microsecond {
		t.Errorf("slept %v after resync, want one frame (%v)", clock.slept, want)
	}
}

func TestEmulator_Speed_ShouldReportNominalClockWhenPaced(t *testing.T) {
	e, _ := newTestEmulator(t, 1.0)

	if e.Speed() != 0 {
		t.Errorf("Speed() = %v before the first report, want 0", e.Speed())
	}
	for e.Console().Cycles() < 2*apu.CPUFrequency {
		if err := e.RunFrame(); err != nil {
			t.Fatalf("RunFrame failed: %v", err)
		}
		e.throttle()
	}

	if speed := e.Speed(); math.Abs(speed-1) > 0.05 {
		t.Errorf("Speed() = %.3f, want about 1.0", speed)
	}
}

func TestEmulator_RunFrame_ShouldForwardAudioToSinks(t *testing.T) {
	e, _ := newTestEmulator(t, 0)
	first, second := &recordingSink{}, &recordingSink{}
	e.AddAudioSink(first)
	e.AddAudioSink(second)

	// The first frame after power-on is short, so measure over the second
	if err := e.RunFrame(); err != nil {
		t.Fatalf("RunFrame failed: %v", err)
	}
	start, before := e.Console().Cycles(), len(first.samples)
	if err := e.RunFrame(); err != nil {
		t.Fatalf("RunFrame failed: %v", err)
	}

	elapsed := e.Console().Cycles() - start
	want := int(elapsed * apu.SampleRate / apu.CPUFrequency)
	if n := len(first.samples) - before; n < want-1 || n > want+1 {
		t.Errorf("first sink got %d samples over %d cycles, want %d", n, elapsed, want)
	}
	if elapsed < 29770 || elapsed > 29795 {
		t.Errorf("second frame took %d cycles, want about 29781", elapsed)
	}
	if len(second.samples) != len(first.samples) {
		t.Errorf("second sink got %d samples, first got %d", len(second.samples), len(first.samples))
	}
	for i, s := range first.samples {
		if s < 0 || s >= 1 {
			t.Fatalf("sample %d = %v out of [0,1)", i, s)
		}
	}
}

func TestEmulator_StepSeconds_ShouldRunWithoutPacing(t *testing.T) {
	e, clock := newTestEmulator(t, 1.0)

	if err := e.StepSeconds(0.5); err != nil {
		t.Fatalf("StepSeconds failed: %v", err)
	}
	want := uint64(apu.CPUFrequency / 2)
	if got := e.Console().Cycles(); got < want || got > want+10 {
		t.Errorf("Cycles() = %d, want about %d", got, want)
	}
	if clock.slept != 0 {
		t.Errorf("StepSeconds slept %v", clock.slept)
	}
}

func TestEmulator_Run_CancelledContext_ShouldReturnAndPause(t *testing.T) {
	e, _ := newTestEmulator(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if e.Console().RunState() != console.Paused {
		t.Error("console should be paused after Run returns")
	}
}

// pausingSink pauses the console after a number of pushes
type pausingSink struct {
	console *console.Console
	after   int
	pushes  int
}

func (s *pausingSink) PushSamples([]float32) {
	s.pushes++
	if s.pushes == s.after {
		s.console.Pause()
	}
}

func TestEmulator_Run_PausedDuringFrame_ShouldStopAtFrameBoundary(t *testing.T) {
	e, _ := newTestEmulator(t, 0)
	sink := &pausingSink{console: e.Console(), after: 3}
	e.AddAudioSink(sink)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sink.pushes != 3 {
		t.Errorf("ran %d frames, want 3", sink.pushes)
	}
}

func TestEmulator_Reset_ShouldClearCountersAndPause(t *testing.T) {
	e, _ := newTestEmulator(t, 0)
	e.Console().Run()
	for i := 0; i < 3; i++ {
		if err := e.RunFrame(); err != nil {
			t.Fatalf("RunFrame failed: %v", err)
		}
	}

	e.Reset()

	if e.Console().Cycles() != 0 {
		t.Errorf("Cycles() = %d after reset, want 0", e.Console().Cycles())
	}
	if e.Console().RunState() != console.Paused {
		t.Error("console should be paused after reset")
	}
	if e.AverageFrameTime() != 0 {
		t.Error("frame timings should be discarded on reset")
	}
}

func TestCircularTimingBuffer_Full_ShouldAverageMostRecent(t *testing.T) {
	ctb := NewCircularTimingBuffer(2)
	if ctb.GetAverage() != 0 {
		t.Errorf("empty average = %v, want 0", ctb.GetAverage())
	}

	ctb.Add(10 * time.Millisecond)
	ctb.Add(20 * time.Millisecond)
	ctb.Add(30 * time.Millisecond)

	if got := ctb.GetAverage(); got != 25*time.Millisecond {
		t.Errorf("GetAverage() = %v, want 25ms", got)
	}
}
