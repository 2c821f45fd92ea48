package cpu

// execute performs inst and returns cycles beyond the table cost, which
// only taken branches produce.
func (cpu *CPU) execute(inst Instruction, address uint16, pageCrossed bool) int {
	switch inst.Mnemonic {
	// Loads and stores
	case LDA:
		cpu.A = cpu.memory.Read(address)
		cpu.setZN(cpu.A)
	case LDX:
		cpu.X = cpu.memory.Read(address)
		cpu.setZN(cpu.X)
	case LDY:
		cpu.Y = cpu.memory.Read(address)
		cpu.setZN(cpu.Y)
	case STA:
		cpu.memory.Write(address, cpu.A)
	case STX:
		cpu.memory.Write(address, cpu.X)
	case STY:
		cpu.memory.Write(address, cpu.Y)

	// Arithmetic and logic
	case ADC:
		cpu.addWithCarry(cpu.memory.Read(address))
	case SBC:
		cpu.addWithCarry(^cpu.memory.Read(address))
	case AND:
		cpu.A &= cpu.memory.Read(address)
		cpu.setZN(cpu.A)
	case ORA:
		cpu.A |= cpu.memory.Read(address)
		cpu.setZN(cpu.A)
	case EOR:
		cpu.A ^= cpu.memory.Read(address)
		cpu.setZN(cpu.A)
	case CMP:
		cpu.compare(cpu.A, cpu.memory.Read(address))
	case CPX:
		cpu.compare(cpu.X, cpu.memory.Read(address))
	case CPY:
		cpu.compare(cpu.Y, cpu.memory.Read(address))
	case BIT:
		value := cpu.memory.Read(address)
		cpu.N = value&nFlagMask != 0
		cpu.V = value&vFlagMask != 0
		cpu.Z = cpu.A&value == 0

	// Shifts, rotates and memory increments
	case ASL:
		cpu.modify(inst.Mode, address, cpu.shiftLeft)
	case LSR:
		cpu.modify(inst.Mode, address, cpu.shiftRight)
	case ROL:
		cpu.modify(inst.Mode, address, cpu.rotateLeft)
	case ROR:
		cpu.modify(inst.Mode, address, cpu.rotateRight)
	case INC:
		cpu.modify(inst.Mode, address, func(v uint8) uint8 { return v + 1 })
	case DEC:
		cpu.modify(inst.Mode, address, func(v uint8) uint8 { return v - 1 })

	// Register increments and transfers
	case INX:
		cpu.X++
		cpu.setZN(cpu.X)
	case INY:
		cpu.Y++
		cpu.setZN(cpu.Y)
	case DEX:
		cpu.X--
		cpu.setZN(cpu.X)
	case DEY:
		cpu.Y--
		cpu.setZN(cpu.Y)
	case TAX:
		cpu.X = cpu.A
		cpu.setZN(cpu.X)
	case TAY:
		cpu.Y = cpu.A
		cpu.setZN(cpu.Y)
	case TXA:
		cpu.A = cpu.X
		cpu.setZN(cpu.A)
	case TYA:
		cpu.A = cpu.Y
		cpu.setZN(cpu.A)
	case TSX:
		cpu.X = cpu.SP
		cpu.setZN(cpu.X)
	case TXS:
		cpu.SP = cpu.X

	// Stack
	case PHA:
		cpu.push(cpu.A)
	case PLA:
		cpu.A = cpu.pop()
		cpu.setZN(cpu.A)
	case PHP:
		cpu.push(cpu.GetStatusByte() | bFlagMask)
	case PLP:
		cpu.SetStatusByte(cpu.pop())

	// Flags
	case CLC:
		cpu.C = false
	case SEC:
		cpu.C = true
	case CLI:
		cpu.I = false
	case SEI:
		cpu.I = true
	case CLV:
		cpu.V = false
	case CLD:
		cpu.D = false
	case SED:
		cpu.D = true

	// Control flow
	case JMP:
		cpu.PC = address
	case JSR:
		cpu.push16(cpu.PC - 1)
		cpu.PC = address
	case RTS:
		cpu.PC = cpu.pop16() + 1
	case RTI:
		cpu.SetStatusByte(cpu.pop())
		cpu.PC = cpu.pop16()
	case BRK:
		// The byte after BRK is padding and is skipped on return
		cpu.push16(cpu.PC + 1)
		cpu.push(cpu.GetStatusByte() | bFlagMask)
		cpu.I = true
		cpu.PC = cpu.read16(irqVector)

	case BCC:
		return cpu.branch(!cpu.C, address, pageCrossed)
	case BCS:
		return cpu.branch(cpu.C, address, pageCrossed)
	case BNE:
		return cpu.branch(!cpu.Z, address, pageCrossed)
	case BEQ:
		return cpu.branch(cpu.Z, address, pageCrossed)
	case BPL:
		return cpu.branch(!cpu.N, address, pageCrossed)
	case BMI:
		return cpu.branch(cpu.N, address, pageCrossed)
	case BVC:
		return cpu.branch(!cpu.V, address, pageCrossed)
	case BVS:
		return cpu.branch(cpu.V, address, pageCrossed)

	case NOP:
		// Undocumented NOPs with an operand still perform the read
		if inst.Mode != Implied {
			cpu.memory.Read(address)
		}

	// Stable undocumented opcodes
	case LAX:
		cpu.A = cpu.memory.Read(address)
		cpu.X = cpu.A
		cpu.setZN(cpu.A)
	case SAX:
		cpu.memory.Write(address, cpu.A&cpu.X)
	case DCP:
		value := cpu.modify(inst.Mode, address, func(v uint8) uint8 { return v - 1 })
		cpu.compare(cpu.A, value)
	case ISC:
		value := cpu.modify(inst.Mode, address, func(v uint8) uint8 { return v + 1 })
		cpu.addWithCarry(^value)
	case SLO:
		cpu.A |= cpu.modify(inst.Mode, address, cpu.shiftLeft)
		cpu.setZN(cpu.A)
	case RLA:
		cpu.A &= cpu.modify(inst.Mode, address, cpu.rotateLeft)
		cpu.setZN(cpu.A)
	case SRE:
		cpu.A ^= cpu.modify(inst.Mode, address, cpu.shiftRight)
		cpu.setZN(cpu.A)
	case RRA:
		cpu.addWithCarry(cpu.modify(inst.Mode, address, cpu.rotateRight))
	case ANC:
		cpu.A &= cpu.memory.Read(address)
		cpu.setZN(cpu.A)
		cpu.C = cpu.N
	case ALR:
		cpu.A = cpu.shiftRight(cpu.A & cpu.memory.Read(address))
	case ARR:
		cpu.A &= cpu.memory.Read(address)
		cpu.A = cpu.A >> 1
		if cpu.C {
			cpu.A |= 0x80
		}
		cpu.setZN(cpu.A)
		cpu.C = cpu.A&0x40 != 0
		cpu.V = (cpu.A>>6)&1 != (cpu.A>>5)&1
	case AXS:
		ax := cpu.A & cpu.X
		value := cpu.memory.Read(address)
		cpu.C = ax >= value
		cpu.X = ax - value
		cpu.setZN(cpu.X)
	}
	return 0
}

// addWithCarry implements ADC; SBC passes the complemented operand.
func (cpu *CPU) addWithCarry(value uint8) {
	sum := uint16(cpu.A) + uint16(value)
	if cpu.C {
		sum++
	}
	result := uint8(sum)
	cpu.V = (cpu.A^result)&(value^result)&0x80 != 0
	cpu.C = sum > 0xFF
	cpu.A = result
	cpu.setZN(result)
}

func (cpu *CPU) compare(register, value uint8) {
	cpu.C = register >= value
	cpu.setZN(register - value)
}

// modify applies op to the accumulator or to memory and returns the result
// with Z and N set from it.
func (cpu *CPU) modify(mode AddressingMode, address uint16, op func(uint8) uint8) uint8 {
	if mode == Accumulator {
		cpu.A = op(cpu.A)
		cpu.setZN(cpu.A)
		return cpu.A
	}
	value := op(cpu.memory.Read(address))
	cpu.memory.Write(address, value)
	cpu.setZN(value)
	return value
}

func (cpu *CPU) shiftLeft(v uint8) uint8 {
	cpu.C = v&0x80 != 0
	return v << 1
}

func (cpu *CPU) shiftRight(v uint8) uint8 {
	cpu.C = v&0x01 != 0
	v >>= 1
	cpu.setZN(v)
	return v
}

func (cpu *CPU) rotateLeft(v uint8) uint8 {
	carry := uint8(0)
	if cpu.C {
		carry = 1
	}
	cpu.C = v&0x80 != 0
	return v<<1 | carry
}

func (cpu *CPU) rotateRight(v uint8) uint8 {
	carry := uint8(0)
	if cpu.C {
		carry = 0x80
	}
	cpu.C = v&0x01 != 0
	return v>>1 | carry
}

// branch jumps when taken and returns 1, or 2 when the target is on
// another page.
func (cpu *CPU) branch(taken bool, target uint16, pageCrossed bool) int {
	if !taken {
		return 0
	}
	cpu.PC = target
	if pageCrossed {
		return 2
	}
	return 1
}
