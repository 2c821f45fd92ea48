// Package cpu implements the 6502 CPU emulation for the NES.
package cpu

import (
	"fmt"

	"nescore/internal/state"
)

// Addressing modes
type AddressingMode uint8

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	// Status register bit masks
	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	pageMask = 0xFF00

	// Interrupt vectors
	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE

	// InterruptCycles is the cost of servicing NMI or IRQ
	InterruptCycles = 7
)

// IllegalOpcodeError is returned by Step for the JAM opcodes and the
// undocumented opcodes whose behavior differs between chips. PC is left on
// the opcode.
type IllegalOpcodeError struct {
	Opcode uint8
	PC     uint16
}

func (e *IllegalOpcodeError) Error() string {
	return fmt.Sprintf("illegal opcode $%02X (%s) at $%04X", e.Opcode, instructions[e.Opcode].Name(), e.PC)
}

// MemoryInterface defines the interface for CPU memory access
type MemoryInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// Registers is a copy of the programmer-visible CPU state.
type Registers struct {
	PC     uint16
	A      uint8
	X      uint8
	Y      uint8
	SP     uint8
	P      uint8
	Cycles uint64
}

// Tracer receives the state before each instruction executes.
type Tracer func(entry TraceEntry)

// TraceEntry describes one instruction about to execute.
type TraceEntry struct {
	Registers
	Opcode      uint8
	Operands    [2]uint8
	Instruction Instruction
}

// String formats the entry in the nestest log layout.
func (t TraceEntry) String() string {
	raw := fmt.Sprintf("%02X", t.Opcode)
	for i := 0; i < int(t.Instruction.Bytes())-1; i++ {
		raw += fmt.Sprintf(" %02X", t.Operands[i])
	}
	return fmt.Sprintf("%04X  %-8s  %s  A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d",
		t.PC, raw, t.Instruction.Name(), t.A, t.X, t.Y, t.P, t.SP, t.Cycles)
}

// CPU represents the 6502 processor used in the NES
type CPU struct {
	A  uint8  // Accumulator
	X  uint8  // X register
	Y  uint8  // Y register
	SP uint8  // Stack pointer
	PC uint16 // Program counter

	// Status register flags. The break bit only exists on the stack.
	C bool // Carry
	Z bool // Zero
	I bool // Interrupt disable
	D bool // Decimal mode (no effect on the 2A03)
	V bool // Overflow
	N bool // Negative

	memory MemoryInterface

	// Cycles executed since power on
	cycles uint64

	// nmiPending is the NMI edge latch, irqLine the level of the IRQ input
	nmiPending bool
	irqLine    bool

	tracer Tracer
}

// New creates a new CPU instance
func New(memory MemoryInterface) *CPU {
	return &CPU{memory: memory, SP: 0xFD, I: true}
}

// Reset puts the CPU in its power-on state and loads PC from the reset
// vector. The sequence takes 7 cycles.
func (cpu *CPU) Reset() {
	cpu.A, cpu.X, cpu.Y = 0, 0, 0
	cpu.SP = 0xFD
	cpu.SetStatusByte(unusedMask | iFlagMask)
	cpu.nmiPending = false
	cpu.irqLine = false
	cpu.PC = cpu.read16(resetVector)
	cpu.cycles = InterruptCycles
}

// SetTracer installs fn to be called before every instruction. nil removes
// the tracer.
func (cpu *CPU) SetTracer(fn Tracer) {
	cpu.tracer = fn
}

// TriggerNMI latches a non-maskable interrupt; it is serviced once at the
// start of the next Step.
func (cpu *CPU) TriggerNMI() {
	cpu.nmiPending = true
}

// SetIRQ sets the IRQ line level.
func (cpu *CPU) SetIRQ(level bool) {
	cpu.irqLine = level
}

// NMIPending reports whether an NMI is latched.
func (cpu *CPU) NMIPending() bool { return cpu.nmiPending }

// Cycles returns the cycles executed since power on.
func (cpu *CPU) Cycles() uint64 { return cpu.cycles }

// Step services a pending interrupt if one is latched and unmasked, then
// executes exactly one instruction. It returns the cycles consumed,
// including the interrupt sequence.
func (cpu *CPU) Step() (int, error) {
	cycles := 0
	if cpu.nmiPending {
		cpu.nmiPending = false
		cpu.interrupt(nmiVector)
		cycles += InterruptCycles
	} else if cpu.irqLine && !cpu.I {
		cpu.interrupt(irqVector)
		cycles += InterruptCycles
	}

	pc := cpu.PC
	opcode := cpu.memory.Read(pc)
	inst := instructions[opcode]
	if inst.Illegal() {
		cpu.cycles += uint64(cycles)
		return cycles, &IllegalOpcodeError{Opcode: opcode, PC: pc}
	}

	if cpu.tracer != nil {
		cpu.trace(opcode, inst)
	}

	cpu.PC++
	address, pageCrossed := cpu.operandAddress(inst.Mode)

	cycles += int(inst.Cycles)
	if pageCrossed {
		cycles += int(inst.PageCycles)
	}
	cycles += cpu.execute(inst, address, pageCrossed)

	cpu.cycles += uint64(cycles)
	return cycles, nil
}

func (cpu *CPU) trace(opcode uint8, inst Instruction) {
	entry := TraceEntry{
		Registers:   cpu.Registers(),
		Opcode:      opcode,
		Instruction: inst,
	}
	for i := 0; i < int(inst.Bytes())-1; i++ {
		entry.Operands[i] = cpu.memory.Read(cpu.PC + 1 + uint16(i))
	}
	cpu.tracer(entry)
}

// Registers returns a copy of the register file.
func (cpu *CPU) Registers() Registers {
	return Registers{
		PC:     cpu.PC,
		A:      cpu.A,
		X:      cpu.X,
		Y:      cpu.Y,
		SP:     cpu.SP,
		P:      cpu.GetStatusByte(),
		Cycles: cpu.cycles,
	}
}

// fetch reads the byte at PC and advances PC.
func (cpu *CPU) fetch() uint8 {
	v := cpu.memory.Read(cpu.PC)
	cpu.PC++
	return v
}

func (cpu *CPU) fetch16() uint16 {
	low := uint16(cpu.fetch())
	return uint16(cpu.fetch())<<8 | low
}

func (cpu *CPU) read16(address uint16) uint16 {
	low := uint16(cpu.memory.Read(address))
	return uint16(cpu.memory.Read(address+1))<<8 | low
}

// read16Wrapped reads a pointer whose high byte comes from the same page
// as the low byte.
func (cpu *CPU) read16Wrapped(address uint16) uint16 {
	low := uint16(cpu.memory.Read(address))
	next := address&pageMask | uint16(uint8(address)+1)
	return uint16(cpu.memory.Read(next))<<8 | low
}

// operandAddress consumes the operand bytes for mode and returns the
// effective address, plus whether indexing crossed a page. For Relative the
// address is the branch target.
func (cpu *CPU) operandAddress(mode AddressingMode) (uint16, bool) {
	switch mode {
	case Immediate:
		address := cpu.PC
		cpu.PC++
		return address, false

	case ZeroPage:
		return uint16(cpu.fetch()), false

	case ZeroPageX:
		return uint16(cpu.fetch() + cpu.X), false

	case ZeroPageY:
		return uint16(cpu.fetch() + cpu.Y), false

	case Relative:
		offset := int8(cpu.fetch())
		target := uint16(int32(cpu.PC) + int32(offset))
		return target, !samePage(cpu.PC, target)

	case Absolute:
		return cpu.fetch16(), false

	case AbsoluteX:
		base := cpu.fetch16()
		address := base + uint16(cpu.X)
		return address, !samePage(base, address)

	case AbsoluteY:
		base := cpu.fetch16()
		address := base + uint16(cpu.Y)
		return address, !samePage(base, address)

	case Indirect:
		// JMP ($xxFF) fetches the high byte from $xx00
		return cpu.read16Wrapped(cpu.fetch16()), false

	case IndexedIndirect:
		ptr := cpu.fetch() + cpu.X
		return cpu.read16Wrapped(uint16(ptr)), false

	case IndirectIndexed:
		base := cpu.read16Wrapped(uint16(cpu.fetch()))
		address := base + uint16(cpu.Y)
		return address, !samePage(base, address)
	}
	return 0, false
}

func samePage(a, b uint16) bool {
	return a&pageMask == b&pageMask
}

// Stack operations
func (cpu *CPU) push(value uint8) {
	cpu.memory.Write(stackBase|uint16(cpu.SP), value)
	cpu.SP--
}

func (cpu *CPU) pop() uint8 {
	cpu.SP++
	return cpu.memory.Read(stackBase | uint16(cpu.SP))
}

func (cpu *CPU) push16(value uint16) {
	cpu.push(uint8(value >> 8))
	cpu.push(uint8(value))
}

func (cpu *CPU) pop16() uint16 {
	low := uint16(cpu.pop())
	return uint16(cpu.pop())<<8 | low
}

// interrupt pushes PC and status with B clear, sets I and jumps through
// vector.
func (cpu *CPU) interrupt(vector uint16) {
	cpu.push16(cpu.PC)
	cpu.push(cpu.GetStatusByte())
	cpu.I = true
	cpu.PC = cpu.read16(vector)
}

func (cpu *CPU) setZN(value uint8) {
	cpu.Z = value == 0
	cpu.N = value&nFlagMask != 0
}

// GetStatusByte returns the status register with bit 5 set and B clear
func (cpu *CPU) GetStatusByte() uint8 {
	status := uint8(unusedMask)
	for _, f := range []struct {
		set  bool
		mask uint8
	}{
		{cpu.N, nFlagMask}, {cpu.V, vFlagMask}, {cpu.D, dFlagMask},
		{cpu.I, iFlagMask}, {cpu.Z, zFlagMask}, {cpu.C, cFlagMask},
	} {
		if f.set {
			status |= f.mask
		}
	}
	return status
}

// SetStatusByte loads the flags from a byte; bits 4 and 5 are ignored
func (cpu *CPU) SetStatusByte(status uint8) {
	cpu.N = status&nFlagMask != 0
	cpu.V = status&vFlagMask != 0
	cpu.D = status&dFlagMask != 0
	cpu.I = status&iFlagMask != 0
	cpu.Z = status&zFlagMask != 0
	cpu.C = status&cFlagMask != 0
}

func (cpu *CPU) SaveState(e *state.Encoder) {
	e.Uint16("pc", cpu.PC)
	e.Uint8("a", cpu.A)
	e.Uint8("x", cpu.X)
	e.Uint8("y", cpu.Y)
	e.Uint8("sp", cpu.SP)
	e.Uint8("p", cpu.GetStatusByte())
	e.Uint64("cycles", cpu.cycles)
	e.Bool("nmi_pending", cpu.nmiPending)
	e.Bool("irq_line", cpu.irqLine)
}

func (cpu *CPU) LoadState(d *state.Decoder) error {
	cpu.PC = d.Uint16("pc")
	cpu.A = d.Uint8("a")
	cpu.X = d.Uint8("x")
	cpu.Y = d.Uint8("y")
	cpu.SP = d.Uint8("sp")
	cpu.SetStatusByte(d.Uint8("p"))
	cpu.cycles = d.Uint64("cycles")
	cpu.nmiPending = d.Bool("nmi_pending")
	cpu.irqLine = d.Bool("irq_line")
	return d.Err()
}
