package app

import (
	"context"
	"log"
	"time"

	"nescore/internal/apu"
	"nescore/internal/console"
	"nescore/internal/cpu"
)

// AudioSink receives the samples drained from the console after each
// emulation slice, mono float32 at apu.SampleRate.
type AudioSink interface {
	PushSamples(samples []float32)
}

// Clock abstracts wall time for pacing
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// maxLag is how far pacing may fall behind wall time before it resyncs
// instead of running flat out to catch up.
const maxLag = 250 * time.Millisecond

// Emulator drives a console in real time: it paces emulation to the
// configured speed, forwards audio to sinks and reports the achieved clock.
type Emulator struct {
	console *console.Console
	config  *Config
	clock   Clock
	sinks   []AudioSink

	// Pacing window
	paceStart  time.Time
	paceCycles uint64

	// Speed reporting window, one emulated second long
	reportStart  time.Time
	reportCycles uint64
	lastSpeed    float64

	frameTimes *CircularTimingBuffer
}

// NewEmulator creates a run-loop driver for c. CPU tracing and input
// logging are installed here when the configuration asks for them.
func NewEmulator(c *console.Console, config *Config) *Emulator {
	e := &Emulator{
		console:    c,
		config:     config,
		clock:      systemClock{},
		frameTimes: NewCircularTimingBuffer(60),
	}
	c.SetAudioQueueSize(config.Emulation.AudioQueueSize)
	if config.Debug.CPUTracing {
		c.SetTracer(func(entry cpu.TraceEntry) {
			log.Printf("[CPU] %s", entry)
		})
	}
	c.EnableInputDebug(config.Debug.InputLogging)
	e.resetPacing()
	return e
}

// SetClock replaces the wall clock used for pacing
func (e *Emulator) SetClock(clock Clock) {
	e.clock = clock
	e.resetPacing()
}

// AddAudioSink registers a receiver for emulated audio
func (e *Emulator) AddAudioSink(sink AudioSink) {
	e.sinks = append(e.sinks, sink)
}

// Console returns the driven console
func (e *Emulator) Console() *console.Console {
	return e.console
}

func (e *Emulator) resetPacing() {
	now := e.clock.Now()
	e.paceStart, e.paceCycles = now, 0
	e.reportStart, e.reportCycles = now, 0
}

// Reset resets the console and the pacing windows
func (e *Emulator) Reset() {
	e.console.Reset()
	e.frameTimes.Reset()
	e.resetPacing()
	log.Printf("[EMULATOR] Console reset")
}

// RunFrame emulates one video frame and hands its audio to the sinks
func (e *Emulator) RunFrame() error {
	start := e.clock.Now()
	before := e.console.Cycles()
	err := e.console.StepFrame()
	e.account(e.console.Cycles() - before)
	e.frameTimes.Add(e.clock.Now().Sub(start))
	return err
}

// StepSeconds emulates the given amount of console time without pacing
func (e *Emulator) StepSeconds(seconds float64) error {
	cycles, err := e.console.StepSeconds(seconds)
	e.account(uint64(cycles))
	return err
}

// account flushes audio and updates the speed report after cycles ran
func (e *Emulator) account(cycles uint64) {
	if samples := e.console.AudioSamples(); len(samples) > 0 {
		for _, sink := range e.sinks {
			sink.PushSamples(samples)
		}
	}

	e.paceCycles += cycles
	e.reportCycles += cycles
	if e.reportCycles < apu.CPUFrequency {
		return
	}

	elapsed := e.clock.Now().Sub(e.reportStart)
	if elapsed > 0 {
		hz := float64(e.reportCycles) / elapsed.Seconds()
		e.lastSpeed = hz / apu.CPUFrequency
		if e.config.Emulation.ReportSpeed {
			log.Printf("[EMULATOR] Clock=%.0fHz (%.2fx)", hz, e.lastSpeed)
		}
	}
	e.reportStart, e.reportCycles = e.clock.Now(), 0
}

// throttle sleeps until wall time catches up with emulated time
func (e *Emulator) throttle() {
	speed := e.config.Emulation.Speed
	if speed <= 0 {
		return
	}
	target := time.Duration(float64(e.paceCycles) / (speed * apu.CPUFrequency) * float64(time.Second))
	elapsed := e.clock.Now().Sub(e.paceStart)

	switch {
	case target > elapsed:
		e.clock.Sleep(target - elapsed)
	case elapsed-target > maxLag:
		e.paceStart, e.paceCycles = e.clock.Now(), 0
	}
}

// Run emulates frames until ctx is cancelled, the console is paused from
// another goroutine, or emulation fails. The run flag is checked once per
// frame.
func (e *Emulator) Run(ctx context.Context) error {
	e.console.Run()
	defer e.console.Pause()
	e.resetPacing()

	for e.console.RunState() == console.Running {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := e.RunFrame(); err != nil {
			return err
		}
		e.throttle()
	}
	return nil
}

// Speed returns the ratio of achieved to nominal clock over the last
// completed emulated second, or 0 before the first report.
func (e *Emulator) Speed() float64 {
	return e.lastSpeed
}

// AverageFrameTime returns the mean wall time spent emulating recent frames
func (e *Emulator) AverageFrameTime() time.Duration {
	return e.frameTimes.GetAverage()
}

// CircularTimingBuffer keeps the most recent durations
type CircularTimingBuffer struct {
	buffer []time.Duration
	index  int
	count  int
}

// NewCircularTimingBuffer creates a buffer holding capacity durations
func NewCircularTimingBuffer(capacity int) *CircularTimingBuffer {
	return &CircularTimingBuffer{buffer: make([]time.Duration, capacity)}
}

// Add records d, replacing the oldest entry when full
func (ctb *CircularTimingBuffer) Add(d time.Duration) {
	ctb.buffer[ctb.index] = d
	ctb.index = (ctb.index + 1) % len(ctb.buffer)
	if ctb.count < len(ctb.buffer) {
		ctb.count++
	}
}

// GetAverage returns the mean of the recorded durations
func (ctb *CircularTimingBuffer) GetAverage() time.Duration {
	if ctb.count == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < ctb.count; i++ {
		total += ctb.buffer[i]
	}
	return total / time.Duration(ctb.count)
}

// Reset discards all recorded durations
func (ctb *CircularTimingBuffer) Reset() {
	ctb.index = 0
	ctb.count = 0
}
