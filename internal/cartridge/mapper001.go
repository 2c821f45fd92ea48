package cartridge

import "nescore/internal/state"

// Mapper001 implements MMC1 (mapper 1). Registers are loaded one bit at a
// time through a 5-bit shift register; the fifth write commits the value to
// the register selected by address bits 13-14.
type Mapper001 struct {
	cart *Cartridge

	shift   uint8
	control uint8
	chr0    uint8
	chr1    uint8
	prg     uint8

	prgOffsets [2]int
	chrOffsets [2]int
}

// NewMapper001 creates an MMC1 mapper in its power-on state: PRG mode 3
// with the last bank fixed at 0xC000.
func NewMapper001(cart *Cartridge) *Mapper001 {
	m := &Mapper001{cart: cart, shift: 0x10, control: 0x0C}
	m.updateOffsets()
	return m
}

func (m *Mapper001) Read(address uint16) uint8 {
	switch {
	case address < 0x2000:
		bank := address / 0x1000
		return m.cart.chrROM[m.chrOffsets[bank]+int(address%0x1000)]
	case address >= 0x8000:
		a := address - 0x8000
		bank := a / 0x4000
		return m.cart.prgROM[m.prgOffsets[bank]+int(a%0x4000)]
	case address >= 0x6000:
		return m.cart.readPRGRAM(address)
	}
	return 0
}

func (m *Mapper001) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		bank := address / 0x1000
		m.cart.writeCHR(m.chrOffsets[bank]+int(address%0x1000), value)
	case address >= 0x8000:
		m.loadRegister(address, value)
	case address >= 0x6000:
		m.cart.writePRGRAM(address, value)
	}
}

func (m *Mapper001) loadRegister(address uint16, value uint8) {
	if value&0x80 != 0 {
		m.shift = 0x10
		m.control |= 0x0C
		m.updateOffsets()
		return
	}
	complete := m.shift&1 == 1
	m.shift = (m.shift >> 1) | ((value & 1) << 4)
	if complete {
		m.writeRegister(address, m.shift)
		m.shift = 0x10
	}
}

func (m *Mapper001) writeRegister(address uint16, value uint8) {
	switch {
	case address <= 0x9FFF:
		m.control = value
	case address <= 0xBFFF:
		m.chr0 = value
	case address <= 0xDFFF:
		m.chr1 = value
	default:
		m.prg = value & 0x0F
	}
	m.updateOffsets()
}

func (m *Mapper001) updateOffsets() {
	prgSize, chrSize := len(m.cart.prgROM), len(m.cart.chrROM)
	switch (m.control >> 2) & 3 {
	case 0, 1:
		m.prgOffsets[0] = bankOffset(prgSize, 0x4000, int(m.prg&0xFE))
		m.prgOffsets[1] = bankOffset(prgSize, 0x4000, int(m.prg|0x01))
	case 2:
		m.prgOffsets[0] = 0
		m.prgOffsets[1] = bankOffset(prgSize, 0x4000, int(m.prg))
	case 3:
		m.prgOffsets[0] = bankOffset(prgSize, 0x4000, int(m.prg))
		m.prgOffsets[1] = bankOffset(prgSize, 0x4000, -1)
	}
	if m.control&0x10 == 0 {
		m.chrOffsets[0] = bankOffset(chrSize, 0x1000, int(m.chr0&0xFE))
		m.chrOffsets[1] = bankOffset(chrSize, 0x1000, int(m.chr0|0x01))
	} else {
		m.chrOffsets[0] = bankOffset(chrSize, 0x1000, int(m.chr0))
		m.chrOffsets[1] = bankOffset(chrSize, 0x1000, int(m.chr1))
	}
}

func (m *Mapper001) Mirroring() MirrorMode {
	switch m.control & 3 {
	case 0:
		return MirrorSingleScreen0
	case 1:
		return MirrorSingleScreen1
	case 2:
		return MirrorVertical
	}
	return MirrorHorizontal
}

func (m *Mapper001) IRQPending() bool { return false }
func (m *Mapper001) NotifyScanline()  {}

func (m *Mapper001) SaveState(e *state.Encoder) {
	e.Uint8("shift", m.shift)
	e.Uint8("control", m.control)
	e.Uint8("chr0", m.chr0)
	e.Uint8("chr1", m.chr1)
	e.Uint8("prg", m.prg)
	m.cart.saveRAM(e)
}

func (m *Mapper001) LoadState(d *state.Decoder) error {
	m.shift = d.Uint8("shift")
	m.control = d.Uint8("control")
	m.chr0 = d.Uint8("chr0")
	m.chr1 = d.Uint8("chr1")
	m.prg = d.Uint8("prg")
	m.cart.loadRAM(d)
	m.updateOffsets()
	return d.Err()
}
