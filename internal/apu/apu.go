// Package apu implements the Audio Processing Unit for the NES.
package apu

import "nescore/internal/state"

const (
	// CPUFrequency is the NTSC CPU clock in Hz
	CPUFrequency = 1789773
	// SampleRate is the rate of the produced sample stream in Hz
	SampleRate = 44100

	dmcStallCycles = 4
)

// Frame sequencer events, in CPU cycles since the last reset of the sequence
const (
	frameStep1 = 7457
	frameStep2 = 14913
	frameStep3 = 22371
	frameStep4 = 29829
	frameEnd4  = 29830
	frameStep5 = 37281
	frameEnd5  = 37282
)

// Channel indexes for ChannelOutput and IsChannelEnabled
const (
	ChannelPulse1 = iota
	ChannelPulse2
	ChannelTriangle
	ChannelNoise
	ChannelDMC
)

const (
	pulseTableSize = 31
	tndTableSize   = 203
)

// MemoryReader is the bus view the DMC uses to fetch sample bytes
type MemoryReader interface {
	Read(address uint16) uint8
}

var (
	pulseTable [pulseTableSize]float32
	tndTable   [tndTableSize]float32
)

func init() {
	for i := 1; i < pulseTableSize; i++ {
		pulseTable[i] = float32(95.52 / (8128.0/float64(i) + 100))
	}
	for i := 1; i < tndTableSize; i++ {
		tndTable[i] = float32(163.67 / (24329.0/float64(i) + 100))
	}
}

// APU represents the NES Audio Processing Unit
type APU struct {
	pulse1   PulseChannel
	pulse2   PulseChannel
	triangle TriangleChannel
	noise    NoiseChannel
	dmc      DMCChannel

	// Frame counter
	frameCycle   uint16
	fiveStep     bool
	irqInhibit   bool
	frameIRQFlag bool

	memory      MemoryReader
	stallCycles int

	queue             *SampleQueue
	sampleAccumulator uint32

	cycles uint64
}

// New creates a new APU with a queue of DefaultQueueSize samples
func New() *APU {
	apu := &APU{queue: NewSampleQueue(DefaultQueueSize)}
	apu.Reset()
	return apu
}

// SetMemory connects the DMC to the CPU bus
func (apu *APU) SetMemory(memory MemoryReader) {
	apu.memory = memory
}

// SetQueueSize replaces the sample queue with one of the given capacity
func (apu *APU) SetQueueSize(size int) {
	apu.queue = NewSampleQueue(size)
}

// Reset returns the APU to its power-on state. Queued samples are discarded.
func (apu *APU) Reset() {
	apu.pulse1 = PulseChannel{channel: 1}
	apu.pulse2 = PulseChannel{channel: 2}
	apu.triangle = TriangleChannel{}
	apu.noise = NoiseChannel{shiftRegister: 1, timerPeriod: noiseTable[0]}
	apu.dmc = DMCChannel{
		timerPeriod:       dmcTable[0],
		sampleBufferEmpty: true,
		bitsRemaining:     8,
		sampleAddress:     0xC000,
		sampleLength:      1,
	}

	apu.frameCycle = 0
	apu.fiveStep = false
	apu.irqInhibit = false
	apu.frameIRQFlag = false

	apu.stallCycles = 0
	apu.sampleAccumulator = 0
	apu.cycles = 0
	apu.queue.Clear()
}

// Step advances the APU by the given number of CPU cycles
func (apu *APU) Step(cpuCycles int) {
	for i := 0; i < cpuCycles; i++ {
		apu.tick()
	}
}

func (apu *APU) tick() {
	apu.cycles++
	apu.stepFrameCounter()

	apu.triangle.clockTimer()
	apu.noise.clockTimer()
	if apu.cycles&1 == 0 {
		apu.pulse1.clockTimer()
		apu.pulse2.clockTimer()
	}
	apu.dmc.clockTimer()
	apu.stallCycles += apu.dmc.fetch(apu.memory)

	apu.generateSample()
}

// stepFrameCounter handles frame counter timing
func (apu *APU) stepFrameCounter() {
	apu.frameCycle++

	switch apu.frameCycle {
	case frameStep1, frameStep3:
		apu.clockQuarterFrame()
	case frameStep2:
		apu.clockQuarterFrame()
		apu.clockHalfFrame()
	case frameStep4:
		if !apu.fiveStep {
			apu.clockQuarterFrame()
			apu.clockHalfFrame()
			if !apu.irqInhibit {
				apu.frameIRQFlag = true
			}
		}
	case frameEnd4:
		if !apu.fiveStep {
			apu.frameCycle = 0
		}
	case frameStep5:
		apu.clockQuarterFrame()
		apu.clockHalfFrame()
	case frameEnd5:
		apu.frameCycle = 0
	}
}

// clockQuarterFrame clocks envelope and linear counter units
func (apu *APU) clockQuarterFrame() {
	apu.pulse1.envelope.clock()
	apu.pulse2.envelope.clock()
	apu.noise.envelope.clock()
	apu.triangle.clockLinear()
}

// clockHalfFrame clocks length counters and sweep units
func (apu *APU) clockHalfFrame() {
	apu.pulse1.clockLength()
	apu.pulse1.clockSweep()
	apu.pulse2.clockLength()
	apu.pulse2.clockSweep()
	apu.triangle.clockLength()
	apu.noise.clockLength()
}

// generateSample emits one mixed sample every CPUFrequency/SampleRate cycles
func (apu *APU) generateSample() {
	apu.sampleAccumulator += SampleRate
	if apu.sampleAccumulator < CPUFrequency {
		return
	}
	apu.sampleAccumulator -= CPUFrequency
	apu.queue.Push(apu.mix())
}

// mix applies the NES non-linear mixer via lookup tables. Output is in [0, 1).
func (apu *APU) mix() float32 {
	pulse := apu.pulse1.output() + apu.pulse2.output()
	tnd := 3*int(apu.triangle.output()) + 2*int(apu.noise.output()) + int(apu.dmc.output())
	return pulseTable[pulse] + tndTable[tnd]
}

// WriteRegister writes to an APU register
func (apu *APU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x4000:
		apu.pulse1.writeControl(value)
	case 0x4001:
		apu.pulse1.writeSweep(value)
	case 0x4002:
		apu.pulse1.writeTimerLow(value)
	case 0x4003:
		apu.pulse1.writeTimerHigh(value)

	case 0x4004:
		apu.pulse2.writeControl(value)
	case 0x4005:
		apu.pulse2.writeSweep(value)
	case 0x4006:
		apu.pulse2.writeTimerLow(value)
	case 0x4007:
		apu.pulse2.writeTimerHigh(value)

	case 0x4008:
		apu.triangle.writeControl(value)
	case 0x400A:
		apu.triangle.writeTimerLow(value)
	case 0x400B:
		apu.triangle.writeTimerHigh(value)

	case 0x400C:
		apu.noise.writeControl(value)
	case 0x400E:
		apu.noise.writePeriod(value)
	case 0x400F:
		apu.noise.writeLength(value)

	case 0x4010:
		apu.dmc.writeControl(value)
	case 0x4011:
		apu.dmc.writeDirectLoad(value)
	case 0x4012:
		apu.dmc.writeAddress(value)
	case 0x4013:
		apu.dmc.writeLength(value)

	case 0x4015:
		apu.writeChannelEnable(value)
	case 0x4017:
		apu.writeFrameCounter(value)
	}
}

// ReadStatus reads the APU status register ($4015). Reading clears the
// frame IRQ flag but not the DMC one.
func (apu *APU) ReadStatus() uint8 {
	var status uint8
	if apu.pulse1.lengthCounter > 0 {
		status |= 0x01
	}
	if apu.pulse2.lengthCounter > 0 {
		status |= 0x02
	}
	if apu.triangle.lengthCounter > 0 {
		status |= 0x04
	}
	if apu.noise.lengthCounter > 0 {
		status |= 0x08
	}
	if apu.dmc.bytesRemaining > 0 {
		status |= 0x10
	}
	if apu.frameIRQFlag {
		status |= 0x40
	}
	if apu.dmc.irqFlag {
		status |= 0x80
	}
	apu.frameIRQFlag = false
	return status
}

// writeChannelEnable writes to channel enable register ($4015)
func (apu *APU) writeChannelEnable(value uint8) {
	apu.pulse1.enabled = value&0x01 != 0
	apu.pulse2.enabled = value&0x02 != 0
	apu.triangle.enabled = value&0x04 != 0
	apu.noise.enabled = value&0x08 != 0
	apu.dmc.enabled = value&0x10 != 0

	if !apu.pulse1.enabled {
		apu.pulse1.lengthCounter = 0
	}
	if !apu.pulse2.enabled {
		apu.pulse2.lengthCounter = 0
	}
	if !apu.triangle.enabled {
		apu.triangle.lengthCounter = 0
	}
	if !apu.noise.enabled {
		apu.noise.lengthCounter = 0
	}
	if !apu.dmc.enabled {
		apu.dmc.bytesRemaining = 0
	} else if apu.dmc.bytesRemaining == 0 {
		apu.dmc.restart()
	}
	apu.dmc.irqFlag = false
}

// writeFrameCounter writes to frame counter register ($4017)
func (apu *APU) writeFrameCounter(value uint8) {
	apu.fiveStep = value&0x80 != 0
	apu.irqInhibit = value&0x40 != 0
	if apu.irqInhibit {
		apu.frameIRQFlag = false
	}
	apu.frameCycle = 0
	if apu.fiveStep {
		apu.clockQuarterFrame()
		apu.clockHalfFrame()
	}
}

// IRQ reports whether the frame sequencer or the DMC is asserting the IRQ line
func (apu *APU) IRQ() bool {
	return apu.frameIRQFlag || apu.dmc.irqFlag
}

// TakeStallCycles returns the CPU cycles stolen by DMC fetches since the
// previous call and resets the count.
func (apu *APU) TakeStallCycles() int {
	n := apu.stallCycles
	apu.stallCycles = 0
	return n
}

// Samples drains the sample queue
func (apu *APU) Samples() []float32 {
	return apu.queue.Drain()
}

// QueuedSamples reports how many samples are waiting in the queue
func (apu *APU) QueuedSamples() int {
	return apu.queue.Len()
}

// DroppedSamples reports how many samples were discarded because the queue was full
func (apu *APU) DroppedSamples() uint64 {
	return apu.queue.Dropped()
}

// ChannelOutput returns the current output level of one channel (for debugging)
func (apu *APU) ChannelOutput(channel int) uint8 {
	switch channel {
	case ChannelPulse1:
		return apu.pulse1.output()
	case ChannelPulse2:
		return apu.pulse2.output()
	case ChannelTriangle:
		return apu.triangle.output()
	case ChannelNoise:
		return apu.noise.output()
	case ChannelDMC:
		return apu.dmc.output()
	default:
		return 0
	}
}

// IsChannelEnabled returns whether a channel is enabled in $4015
func (apu *APU) IsChannelEnabled(channel int) bool {
	switch channel {
	case ChannelPulse1:
		return apu.pulse1.enabled
	case ChannelPulse2:
		return apu.pulse2.enabled
	case ChannelTriangle:
		return apu.triangle.enabled
	case ChannelNoise:
		return apu.noise.enabled
	case ChannelDMC:
		return apu.dmc.enabled
	default:
		return false
	}
}

func (apu *APU) SaveState(e *state.Encoder) {
	apu.pulse1.save(e.Scope("pulse1"))
	apu.pulse2.save(e.Scope("pulse2"))
	apu.triangle.save(e.Scope("triangle"))
	apu.noise.save(e.Scope("noise"))
	apu.dmc.save(e.Scope("dmc"))

	e.Uint16("frame_cycle", apu.frameCycle)
	e.Bool("five_step", apu.fiveStep)
	e.Bool("irq_inhibit", apu.irqInhibit)
	e.Bool("frame_irq", apu.frameIRQFlag)
	e.Int("stall_cycles", apu.stallCycles)
	e.Uint32("sample_accumulator", apu.sampleAccumulator)
	e.Uint64("cycles", apu.cycles)

	q := e.Scope("queue")
	q.Float32s("samples", apu.queue.Peek())
	q.Uint64("dropped", apu.queue.Dropped())
}

func (apu *APU) LoadState(d *state.Decoder) error {
	apu.pulse1.load(d.Scope("pulse1"))
	apu.pulse2.load(d.Scope("pulse2"))
	apu.triangle.load(d.Scope("triangle"))
	apu.noise.load(d.Scope("noise"))
	apu.dmc.load(d.Scope("dmc"))

	apu.frameCycle = d.Uint16("frame_cycle")
	apu.fiveStep = d.Bool("five_step")
	apu.irqInhibit = d.Bool("irq_inhibit")
	apu.frameIRQFlag = d.Bool("frame_irq")
	apu.stallCycles = d.Int("stall_cycles")
	apu.sampleAccumulator = d.Uint32("sample_accumulator")
	apu.cycles = d.Uint64("cycles")

	q := d.Scope("queue")
	samples := q.Float32s("samples")
	dropped := q.Uint64("dropped")
	if err := d.Err(); err != nil {
		return err
	}
	apu.queue.restore(samples, dropped)
	return nil
}
