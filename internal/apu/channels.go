package apu

import "nescore/internal/state"

var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30,
}

var dutyTable = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

var triangleTable = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// Noise and DMC periods in CPU cycles (NTSC)
var noiseTable = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068,
}

var dmcTable = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54,
}

// Envelope is the volume generator shared by the pulse and noise channels
type Envelope struct {
	start    bool
	loop     bool
	constant bool
	volume   uint8 // constant volume, also the divider period
	divider  uint8
	decay    uint8
}

func (e *Envelope) write(value uint8) {
	e.loop = value&0x20 != 0
	e.constant = value&0x10 != 0
	e.volume = value & 0x0F
}

func (e *Envelope) clock() {
	if e.start {
		e.start = false
		e.decay = 15
		e.divider = e.volume
		return
	}
	if e.divider > 0 {
		e.divider--
		return
	}
	e.divider = e.volume
	if e.decay > 0 {
		e.decay--
	} else if e.loop {
		e.decay = 15
	}
}

func (e *Envelope) output() uint8 {
	if e.constant {
		return e.volume
	}
	return e.decay
}

func (e *Envelope) save(enc *state.Encoder) {
	enc.Bool("env_start", e.start)
	enc.Bool("env_loop", e.loop)
	enc.Bool("env_constant", e.constant)
	enc.Uint8("env_volume", e.volume)
	enc.Uint8("env_divider", e.divider)
	enc.Uint8("env_decay", e.decay)
}

func (e *Envelope) load(d *state.Decoder) {
	e.start = d.Bool("env_start")
	e.loop = d.Bool("env_loop")
	e.constant = d.Bool("env_constant")
	e.volume = d.Uint8("env_volume")
	e.divider = d.Uint8("env_divider")
	e.decay = d.Uint8("env_decay")
}

// PulseChannel represents a pulse wave channel
type PulseChannel struct {
	channel uint8 // 1 or 2; pulse 1 negates with ones' complement
	enabled bool

	duty    uint8
	dutyPos uint8

	timerPeriod uint16
	timerValue  uint16

	lengthCounter uint8
	lengthHalt    bool

	envelope Envelope

	sweepEnabled bool
	sweepPeriod  uint8
	sweepNegate  bool
	sweepShift   uint8
	sweepReload  bool
	sweepDivider uint8
}

func (p *PulseChannel) writeControl(value uint8) {
	p.duty = value >> 6
	p.lengthHalt = value&0x20 != 0
	p.envelope.write(value)
}

func (p *PulseChannel) writeSweep(value uint8) {
	p.sweepEnabled = value&0x80 != 0
	p.sweepPeriod = (value >> 4) & 0x07
	p.sweepNegate = value&0x08 != 0
	p.sweepShift = value & 0x07
	p.sweepReload = true
}

func (p *PulseChannel) writeTimerLow(value uint8) {
	p.timerPeriod = p.timerPeriod&0xFF00 | uint16(value)
}

func (p *PulseChannel) writeTimerHigh(value uint8) {
	p.timerPeriod = p.timerPeriod&0x00FF | uint16(value&0x07)<<8
	if p.enabled {
		p.lengthCounter = lengthTable[value>>3]
	}
	p.dutyPos = 0
	p.envelope.start = true
}

func (p *PulseChannel) clockTimer() {
	if p.timerValue == 0 {
		p.timerValue = p.timerPeriod
		p.dutyPos = (p.dutyPos + 1) & 7
	} else {
		p.timerValue--
	}
}

func (p *PulseChannel) clockLength() {
	if !p.lengthHalt && p.lengthCounter > 0 {
		p.lengthCounter--
	}
}

func (p *PulseChannel) sweepTarget() uint16 {
	change := p.timerPeriod >> p.sweepShift
	if !p.sweepNegate {
		return p.timerPeriod + change
	}
	target := p.timerPeriod - change
	if p.channel == 1 {
		target--
	}
	// Results below zero clamp to zero
	if change > p.timerPeriod || (p.channel == 1 && change == p.timerPeriod) {
		return 0
	}
	return target
}

func (p *PulseChannel) muted() bool {
	return p.timerPeriod < 8 || (!p.sweepNegate && p.sweepTarget() > 0x7FF)
}

func (p *PulseChannel) clockSweep() {
	if p.sweepDivider == 0 && p.sweepEnabled && p.sweepShift > 0 && !p.muted() {
		p.timerPeriod = p.sweepTarget()
	}
	if p.sweepDivider == 0 || p.sweepReload {
		p.sweepDivider = p.sweepPeriod
		p.sweepReload = false
	} else {
		p.sweepDivider--
	}
}

func (p *PulseChannel) output() uint8 {
	if !p.enabled || p.lengthCounter == 0 || p.muted() || dutyTable[p.duty][p.dutyPos] == 0 {
		return 0
	}
	return p.envelope.output()
}

func (p *PulseChannel) save(e *state.Encoder) {
	e.Bool("enabled", p.enabled)
	e.Uint8("duty", p.duty)
	e.Uint8("duty_pos", p.dutyPos)
	e.Uint16("timer_period", p.timerPeriod)
	e.Uint16("timer_value", p.timerValue)
	e.Uint8("length", p.lengthCounter)
	e.Bool("length_halt", p.lengthHalt)
	p.envelope.save(e)
	e.Bool("sweep_enabled", p.sweepEnabled)
	e.Uint8("sweep_period", p.sweepPeriod)
	e.Bool("sweep_negate", p.sweepNegate)
	e.Uint8("sweep_shift", p.sweepShift)
	e.Bool("sweep_reload", p.sweepReload)
	e.Uint8("sweep_divider", p.sweepDivider)
}

func (p *PulseChannel) load(d *state.Decoder) {
	p.enabled = d.Bool("enabled")
	p.duty = d.Uint8("duty") & 3
	p.dutyPos = d.Uint8("duty_pos") & 7
	p.timerPeriod = d.Uint16("timer_period")
	p.timerValue = d.Uint16("timer_value")
	p.lengthCounter = d.Uint8("length")
	p.lengthHalt = d.Bool("length_halt")
	p.envelope.load(d)
	p.sweepEnabled = d.Bool("sweep_enabled")
	p.sweepPeriod = d.Uint8("sweep_period")
	p.sweepNegate = d.Bool("sweep_negate")
	p.sweepShift = d.Uint8("sweep_shift")
	p.sweepReload = d.Bool("sweep_reload")
	p.sweepDivider = d.Uint8("sweep_divider")
}

// TriangleChannel represents the triangle wave channel
type TriangleChannel struct {
	enabled bool

	timerPeriod uint16
	timerValue  uint16
	sequencePos uint8

	lengthCounter uint8
	// Control doubles as the length counter halt flag
	control bool

	linearReloadValue uint8
	linearCounter     uint8
	linearReload      bool
}

func (t *TriangleChannel) writeControl(value uint8) {
	t.control = value&0x80 != 0
	t.linearReloadValue = value & 0x7F
}

func (t *TriangleChannel) writeTimerLow(value uint8) {
	t.timerPeriod = t.timerPeriod&0xFF00 | uint16(value)
}

func (t *TriangleChannel) writeTimerHigh(value uint8) {
	t.timerPeriod = t.timerPeriod&0x00FF | uint16(value&0x07)<<8
	if t.enabled {
		t.lengthCounter = lengthTable[value>>3]
	}
	t.linearReload = true
}

func (t *TriangleChannel) clockTimer() {
	if t.timerValue == 0 {
		t.timerValue = t.timerPeriod
		if t.lengthCounter > 0 && t.linearCounter > 0 {
			t.sequencePos = (t.sequencePos + 1) & 31
		}
	} else {
		t.timerValue--
	}
}

func (t *TriangleChannel) clockLinear() {
	if t.linearReload {
		t.linearCounter = t.linearReloadValue
	} else if t.linearCounter > 0 {
		t.linearCounter--
	}
	if !t.control {
		t.linearReload = false
	}
}

func (t *TriangleChannel) clockLength() {
	if !t.control && t.lengthCounter > 0 {
		t.lengthCounter--
	}
}

func (t *TriangleChannel) output() uint8 {
	if !t.enabled || t.lengthCounter == 0 || t.linearCounter == 0 {
		return 0
	}
	return triangleTable[t.sequencePos]
}

func (t *TriangleChannel) save(e *state.Encoder) {
	e.Bool("enabled", t.enabled)
	e.Uint16("timer_period", t.timerPeriod)
	e.Uint16("timer_value", t.timerValue)
	e.Uint8("sequence_pos", t.sequencePos)
	e.Uint8("length", t.lengthCounter)
	e.Bool("control", t.control)
	e.Uint8("linear_reload_value", t.linearReloadValue)
	e.Uint8("linear_counter", t.linearCounter)
	e.Bool("linear_reload", t.linearReload)
}

func (t *TriangleChannel) load(d *state.Decoder) {
	t.enabled = d.Bool("enabled")
	t.timerPeriod = d.Uint16("timer_period")
	t.timerValue = d.Uint16("timer_value")
	t.sequencePos = d.Uint8("sequence_pos") & 31
	t.lengthCounter = d.Uint8("length")
	t.control = d.Bool("control")
	t.linearReloadValue = d.Uint8("linear_reload_value")
	t.linearCounter = d.Uint8("linear_counter")
	t.linearReload = d.Bool("linear_reload")
}

// NoiseChannel represents the noise channel
type NoiseChannel struct {
	enabled bool

	shortMode   bool
	timerPeriod uint16
	timerValue  uint16
	// 15-bit linear feedback shift register
	shiftRegister uint16

	lengthCounter uint8
	lengthHalt    bool

	envelope Envelope
}

func (n *NoiseChannel) writeControl(value uint8) {
	n.lengthHalt = value&0x20 != 0
	n.envelope.write(value)
}

func (n *NoiseChannel) writePeriod(value uint8) {
	n.shortMode = value&0x80 != 0
	n.timerPeriod = noiseTable[value&0x0F]
}

func (n *NoiseChannel) writeLength(value uint8) {
	if n.enabled {
		n.lengthCounter = lengthTable[value>>3]
	}
	n.envelope.start = true
}

func (n *NoiseChannel) clockTimer() {
	if n.timerValue > 0 {
		n.timerValue--
		return
	}
	n.timerValue = n.timerPeriod - 1
	tap := uint16(1)
	if n.shortMode {
		tap = 6
	}
	feedback := (n.shiftRegister & 1) ^ ((n.shiftRegister >> tap) & 1)
	n.shiftRegister = n.shiftRegister>>1 | feedback<<14
}

func (n *NoiseChannel) clockLength() {
	if !n.lengthHalt && n.lengthCounter > 0 {
		n.lengthCounter--
	}
}

func (n *NoiseChannel) output() uint8 {
	if !n.enabled || n.lengthCounter == 0 || n.shiftRegister&1 == 1 {
		return 0
	}
	return n.envelope.output()
}

func (n *NoiseChannel) save(e *state.Encoder) {
	e.Bool("enabled", n.enabled)
	e.Bool("short_mode", n.shortMode)
	e.Uint16("timer_period", n.timerPeriod)
	e.Uint16("timer_value", n.timerValue)
	e.Uint16("shift", n.shiftRegister)
	e.Uint8("length", n.lengthCounter)
	e.Bool("length_halt", n.lengthHalt)
	n.envelope.save(e)
}

func (n *NoiseChannel) load(d *state.Decoder) {
	n.enabled = d.Bool("enabled")
	n.shortMode = d.Bool("short_mode")
	n.timerPeriod = d.Uint16("timer_period")
	n.timerValue = d.Uint16("timer_value")
	n.shiftRegister = d.Uint16("shift")
	n.lengthCounter = d.Uint8("length")
	n.lengthHalt = d.Bool("length_halt")
	n.envelope.load(d)
}

// DMCChannel represents the Delta Modulation Channel
type DMCChannel struct {
	enabled bool

	irqEnable bool
	loop      bool
	irqFlag   bool

	timerPeriod uint16
	timerValue  uint16

	sampleAddress  uint16
	sampleLength   uint16
	currentAddress uint16
	bytesRemaining uint16

	sampleBuffer      uint8
	sampleBufferEmpty bool

	shiftRegister uint8
	bitsRemaining uint8
	silence       bool

	outputLevel uint8 // 7-bit DAC value
}

func (d *DMCChannel) writeControl(value uint8) {
	d.irqEnable = value&0x80 != 0
	d.loop = value&0x40 != 0
	d.timerPeriod = dmcTable[value&0x0F]
	if !d.irqEnable {
		d.irqFlag = false
	}
}

func (d *DMCChannel) writeDirectLoad(value uint8) {
	d.outputLevel = value & 0x7F
}

func (d *DMCChannel) writeAddress(value uint8) {
	d.sampleAddress = 0xC000 | uint16(value)<<6
}

func (d *DMCChannel) writeLength(value uint8) {
	d.sampleLength = uint16(value)<<4 | 1
}

func (d *DMCChannel) restart() {
	d.currentAddress = d.sampleAddress
	d.bytesRemaining = d.sampleLength
}

// fetch fills an empty sample buffer from memory and returns the CPU cycles
// the read stole.
func (d *DMCChannel) fetch(memory MemoryReader) int {
	if !d.sampleBufferEmpty || d.bytesRemaining == 0 || memory == nil {
		return 0
	}
	d.sampleBuffer = memory.Read(d.currentAddress)
	d.sampleBufferEmpty = false
	if d.currentAddress == 0xFFFF {
		d.currentAddress = 0x8000
	} else {
		d.currentAddress++
	}
	d.bytesRemaining--
	if d.bytesRemaining == 0 {
		if d.loop {
			d.restart()
		} else if d.irqEnable {
			d.irqFlag = true
		}
	}
	return dmcStallCycles
}

func (d *DMCChannel) clockTimer() {
	if d.timerValue > 0 {
		d.timerValue--
		return
	}
	d.timerValue = d.timerPeriod - 1

	if !d.silence {
		if d.shiftRegister&1 != 0 {
			if d.outputLevel <= 125 {
				d.outputLevel += 2
			}
		} else if d.outputLevel >= 2 {
			d.outputLevel -= 2
		}
	}
	d.shiftRegister >>= 1

	if d.bitsRemaining > 0 {
		d.bitsRemaining--
	}
	if d.bitsRemaining == 0 {
		d.bitsRemaining = 8
		if d.sampleBufferEmpty {
			d.silence = true
		} else {
			d.silence = false
			d.shiftRegister = d.sampleBuffer
			d.sampleBufferEmpty = true
		}
	}
}

func (d *DMCChannel) output() uint8 {
	return d.outputLevel
}

func (d *DMCChannel) save(e *state.Encoder) {
	e.Bool("enabled", d.enabled)
	e.Bool("irq_enable", d.irqEnable)
	e.Bool("loop", d.loop)
	e.Bool("irq_flag", d.irqFlag)
	e.Uint16("timer_period", d.timerPeriod)
	e.Uint16("timer_value", d.timerValue)
	e.Uint16("sample_address", d.sampleAddress)
	e.Uint16("sample_length", d.sampleLength)
	e.Uint16("current_address", d.currentAddress)
	e.Uint16("bytes_remaining", d.bytesRemaining)
	e.Uint8("sample_buffer", d.sampleBuffer)
	e.Bool("sample_buffer_empty", d.sampleBufferEmpty)
	e.Uint8("shift", d.shiftRegister)
	e.Uint8("bits_remaining", d.bitsRemaining)
	e.Bool("silence", d.silence)
	e.Uint8("output_level", d.outputLevel)
}

func (d *DMCChannel) load(dec *state.Decoder) {
	d.enabled = dec.Bool("enabled")
	d.irqEnable = dec.Bool("irq_enable")
	d.loop = dec.Bool("loop")
	d.irqFlag = dec.Bool("irq_flag")
	d.timerPeriod = dec.Uint16("timer_period")
	d.timerValue = dec.Uint16("timer_value")
	d.sampleAddress = dec.Uint16("sample_address")
	d.sampleLength = dec.Uint16("sample_length")
	d.currentAddress = dec.Uint16("current_address")
	d.bytesRemaining = dec.Uint16("bytes_remaining")
	d.sampleBuffer = dec.Uint8("sample_buffer")
	d.sampleBufferEmpty = dec.Bool("sample_buffer_empty")
	d.shiftRegister = dec.Uint8("shift")
	d.bitsRemaining = dec.Uint8("bits_remaining")
	d.silence = dec.Bool("silence")
	d.outputLevel = dec.Uint8("output_level")
}
