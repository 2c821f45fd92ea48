// Package console wires the CPU, PPU, APU, controllers and cartridge into a
// single machine and owns its cycle counter and save states.
package console

import (
	"fmt"
	"sync/atomic"

	"nescore/internal/apu"
	"nescore/internal/bus"
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/input"
	"nescore/internal/memory"
	"nescore/internal/ppu"
	"nescore/internal/state"
)

// OAM DMA halts the CPU for 513 cycles, plus one when it starts on an odd cycle
const oamDMACycles = 513

// RunState is the run/stop flag checked by run loops between steps
type RunState int32

const (
	Paused RunState = iota
	Running
)

func (s RunState) String() string {
	switch s {
	case Paused:
		return "paused"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("RunState(%d)", int32(s))
	}
}

// Console is one NES. All methods except Run, Pause and RunState must be
// called from a single goroutine.
type Console struct {
	cart   *cartridge.Cartridge
	mapper cartridge.Mapper

	cpu   *cpu.CPU
	ppu   *ppu.PPU
	vram  *memory.PPUMemory
	apu   *apu.APU
	input *input.InputState
	bus   *bus.Bus

	cycles     uint64
	dots       uint64
	dmaStall   int
	dmaPending bool

	runState atomic.Int32
}

// New builds a console around cart and applies a reset
func New(cart *cartridge.Cartridge) *Console {
	c := &Console{
		cart:   cart,
		mapper: cart.Mapper(),
	}

	c.vram = memory.NewPPUMemory(c.mapper)
	c.ppu = ppu.New()
	c.ppu.SetMemory(c.vram)
	c.apu = apu.New()
	c.input = input.NewInputState()

	c.bus = bus.New(c.ppu, c.apu, c.input, c.mapper)
	c.bus.SetDMACallback(c.oamDMA)
	c.apu.SetMemory(c.bus)
	c.cpu = cpu.New(c.bus)

	c.Reset()
	return c
}

// Reset applies the console reset line. Mapper banks, RAM and VRAM keep
// their contents; the CPU reloads PC from $FFFC.
func (c *Console) Reset() {
	c.ppu.Reset()
	c.apu.Reset()
	c.input.Reset()
	c.cpu.Reset()
	c.cpu.SetIRQ(false)

	c.cycles = 0
	c.dots = 0
	c.dmaStall = 0
	c.dmaPending = false
	c.runState.Store(int32(Paused))
}

// oamDMA copies a page into OAM. The stall is charged by Step once the
// cycle of the write is known.
func (c *Console) oamDMA(page uint8) {
	c.bus.CopyOAM(page)
	c.dmaPending = true
}

// Step executes one CPU instruction and advances the PPU and APU by the
// cycles it took, including DMA stalls. Interrupts raised during the advance
// are serviced at the start of the next Step. On an illegal opcode the
// cycles already consumed are still accounted and the error is returned.
func (c *Console) Step() (int, error) {
	cycles, err := c.cpu.Step()
	if c.dmaPending {
		// An extra alignment cycle is needed when the transfer would start
		// on an odd cycle
		c.dmaPending = false
		c.dmaStall += oamDMACycles
		if (c.cycles+uint64(cycles))&1 == 1 {
			c.dmaStall++
		}
	}
	cycles += c.dmaStall
	c.dmaStall = 0
	c.advance(cycles)

	if stall := c.apu.TakeStallCycles(); stall > 0 {
		c.advance(stall)
		cycles += stall
	}

	if err != nil {
		return cycles, fmt.Errorf("step at cycle %d: %w", c.cycles, err)
	}
	return cycles, nil
}

func (c *Console) advance(cycles int) {
	if c.ppu.Step(cycles) {
		c.cpu.TriggerNMI()
	}
	c.apu.Step(cycles)
	c.cpu.SetIRQ(c.apu.IRQ() || c.mapper.IRQPending())

	c.cycles += uint64(cycles)
	c.dots += uint64(cycles) * 3
}

// StepFrame runs until the PPU completes the current frame
func (c *Console) StepFrame() error {
	frame := c.ppu.Frame()
	for c.ppu.Frame() == frame {
		if _, err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}

// StepSeconds runs for at least the given amount of emulated time and
// returns the cycles executed.
func (c *Console) StepSeconds(seconds float64) (int, error) {
	target := int(seconds * apu.CPUFrequency)
	total := 0
	for total < target {
		cycles, err := c.Step()
		total += cycles
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Run marks the console as running. It is safe to call from any goroutine.
func (c *Console) Run() {
	c.runState.Store(int32(Running))
}

// Pause marks the console as paused. It is safe to call from any goroutine.
func (c *Console) Pause() {
	c.runState.Store(int32(Paused))
}

// RunState returns the current run flag
func (c *Console) RunState() RunState {
	return RunState(c.runState.Load())
}

// Cycles returns the CPU cycles elapsed since the last reset, stalls included
func (c *Console) Cycles() uint64 { return c.cycles }

// Dots returns the PPU dots elapsed since the last reset
func (c *Console) Dots() uint64 { return c.dots }

// Frame returns the number of frames the PPU has completed
func (c *Console) Frame() uint64 { return c.ppu.Frame() }

// FrameBuffer returns the 256x240 0x00RRGGBB pixel grid. The slice aliases
// PPU memory and is overwritten by the next frame.
func (c *Console) FrameBuffer() []uint32 { return c.ppu.FrameBuffer() }

// AudioSamples drains the queued audio samples
func (c *Console) AudioSamples() []float32 { return c.apu.Samples() }

// DroppedAudioSamples reports samples lost to a full audio queue
func (c *Console) DroppedAudioSamples() uint64 { return c.apu.DroppedSamples() }

// SetAudioQueueSize sets the capacity of the audio sample queue
func (c *Console) SetAudioQueueSize(size int) { c.apu.SetQueueSize(size) }

// SetButtons sets the buttons held on controller port 0 or 1
func (c *Console) SetButtons(port int, buttons [8]bool) {
	c.input.SetButtons(port, buttons)
}

// SetTracer installs a callback invoked before every instruction
func (c *Console) SetTracer(fn cpu.Tracer) { c.cpu.SetTracer(fn) }

// EnableInputDebug toggles controller debug logging
func (c *Console) EnableInputDebug(enable bool) { c.input.EnableDebug(enable) }

// Cartridge returns the loaded cartridge
func (c *Console) Cartridge() *cartridge.Cartridge { return c.cart }

// CPURegisters returns a copy of the CPU registers
func (c *Console) CPURegisters() cpu.Registers { return c.cpu.Registers() }

// RAM returns the 2KB internal RAM for inspection
func (c *Console) RAM() []uint8 { return c.bus.RAM() }

// components lists every snapshot contributor under its key prefix
func (c *Console) components() []struct {
	scope string
	saver state.Saver
} {
	return []struct {
		scope string
		saver state.Saver
	}{
		{"cpu", c.cpu},
		{"ppu", c.ppu},
		{"vram", c.vram},
		{"apu", c.apu},
		{"bus", c.bus},
		{"input", c.input},
		{"mapper", c.mapper},
	}
}

// Snapshot captures the complete machine state. It must only be called
// between steps.
func (c *Console) Snapshot() state.Snapshot {
	e := state.NewEncoder()
	for _, comp := range c.components() {
		comp.saver.SaveState(e.Scope(comp.scope))
	}
	con := e.Scope("console")
	con.Uint64("cycles", c.cycles)
	con.Uint64("dots", c.dots)
	con.Int("dma_stall", c.dmaStall)
	return e.Snapshot()
}

// Restore replaces the machine state with snap. If any field is missing or
// malformed the previous state is kept and the error is returned.
func (c *Console) Restore(snap state.Snapshot) error {
	backup := c.Snapshot()
	if err := c.load(snap); err != nil {
		if rerr := c.load(backup); rerr != nil {
			return fmt.Errorf("restore failed (%v) and rollback failed: %w", err, rerr)
		}
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}

func (c *Console) load(snap state.Snapshot) error {
	d := state.NewDecoder(snap)
	for _, comp := range c.components() {
		if err := comp.saver.LoadState(d.Scope(comp.scope)); err != nil {
			return err
		}
	}
	con := d.Scope("console")
	cycles := con.Uint64("cycles")
	dots := con.Uint64("dots")
	dmaStall := con.Int("dma_stall")
	if err := d.Err(); err != nil {
		return err
	}
	c.cycles, c.dots, c.dmaStall = cycles, dots, dmaStall
	return nil
}
