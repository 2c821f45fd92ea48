package cartridge

import "nescore/internal/state"

// Mapper004 implements MMC3 (mapper 4): 8KB PRG banks, 1KB/2KB CHR banks,
// switchable mirroring and a scanline counter that raises IRQ.
//
// Register pairs are decoded by address range and address parity:
//
//	$8000/$8001 bank select / bank data
//	$A000/$A001 mirroring / PRG RAM protect
//	$C000/$C001 IRQ latch / IRQ reload
//	$E000/$E001 IRQ disable / IRQ enable
type Mapper004 struct {
	cart *Cartridge

	register  uint8
	registers [8]uint8
	prgMode   uint8
	chrMode   uint8
	mirror    MirrorMode

	reload     uint8
	counter    uint8
	irqEnable  bool
	irqPending bool

	prgOffsets [4]int
	chrOffsets [8]int
}

// NewMapper004 creates a new MMC3 mapper
func NewMapper004(cart *Cartridge) *Mapper004 {
	m := &Mapper004{cart: cart, mirror: cart.mirror}
	m.updateOffsets()
	return m
}

func (m *Mapper004) Read(address uint16) uint8 {
	switch {
	case address < 0x2000:
		bank := address / 0x0400
		return m.cart.chrROM[m.chrOffsets[bank]+int(address%0x0400)]
	case address >= 0x8000:
		a := address - 0x8000
		bank := a / 0x2000
		return m.cart.prgROM[m.prgOffsets[bank]+int(a%0x2000)]
	case address >= 0x6000:
		return m.cart.readPRGRAM(address)
	}
	return 0
}

func (m *Mapper004) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		bank := address / 0x0400
		m.cart.writeCHR(m.chrOffsets[bank]+int(address%0x0400), value)
	case address >= 0x8000:
		m.writeRegister(address, value)
	case address >= 0x6000:
		m.cart.writePRGRAM(address, value)
	}
}

func (m *Mapper004) writeRegister(address uint16, value uint8) {
	even := address%2 == 0
	switch {
	case address <= 0x9FFF && even:
		m.register = value & 7
		m.prgMode = (value >> 6) & 1
		m.chrMode = (value >> 7) & 1
		m.updateOffsets()
	case address <= 0x9FFF:
		m.registers[m.register] = value
		m.updateOffsets()
	case address <= 0xBFFF && even:
		if m.cart.mirror != MirrorFourScreen {
			if value&1 == 0 {
				m.mirror = MirrorVertical
			} else {
				m.mirror = MirrorHorizontal
			}
		}
	case address <= 0xBFFF:
		// PRG RAM protect, not emulated
	case address <= 0xDFFF && even:
		m.reload = value
	case address <= 0xDFFF:
		m.counter = 0
	case even:
		m.irqEnable = false
		m.irqPending = false
	default:
		m.irqEnable = true
	}
}

func (m *Mapper004) updateOffsets() {
	prgSize, chrSize := len(m.cart.prgROM), len(m.cart.chrROM)
	prg := func(bank int) int { return bankOffset(prgSize, 0x2000, bank) }
	chr := func(bank int) int { return bankOffset(chrSize, 0x0400, bank) }
	r := m.registers

	if m.prgMode == 0 {
		m.prgOffsets = [4]int{prg(int(r[6])), prg(int(r[7])), prg(-2), prg(-1)}
	} else {
		m.prgOffsets = [4]int{prg(-2), prg(int(r[7])), prg(int(r[6])), prg(-1)}
	}

	twoK := [4]int{chr(int(r[0] & 0xFE)), chr(int(r[0] | 0x01)), chr(int(r[1] & 0xFE)), chr(int(r[1] | 0x01))}
	oneK := [4]int{chr(int(r[2])), chr(int(r[3])), chr(int(r[4])), chr(int(r[5]))}
	if m.chrMode == 0 {
		copy(m.chrOffsets[0:4], twoK[:])
		copy(m.chrOffsets[4:8], oneK[:])
	} else {
		copy(m.chrOffsets[0:4], oneK[:])
		copy(m.chrOffsets[4:8], twoK[:])
	}
}

func (m *Mapper004) Mirroring() MirrorMode { return m.mirror }

func (m *Mapper004) IRQPending() bool { return m.irqPending }

// NotifyScanline clocks the IRQ counter.
func (m *Mapper004) NotifyScanline() {
	if m.counter == 0 {
		m.counter = m.reload
	} else {
		m.counter--
	}
	if m.counter == 0 && m.irqEnable {
		m.irqPending = true
	}
}

func (m *Mapper004) SaveState(e *state.Encoder) {
	e.Uint8("register", m.register)
	e.Bytes("registers", m.registers[:])
	e.Uint8("prg_mode", m.prgMode)
	e.Uint8("chr_mode", m.chrMode)
	e.Uint8("mirror", uint8(m.mirror))
	e.Uint8("irq_reload", m.reload)
	e.Uint8("irq_counter", m.counter)
	e.Bool("irq_enable", m.irqEnable)
	e.Bool("irq_pending", m.irqPending)
	m.cart.saveRAM(e)
}

func (m *Mapper004) LoadState(d *state.Decoder) error {
	m.register = d.Uint8("register") & 7
	d.BytesInto("registers", m.registers[:])
	m.prgMode = d.Uint8("prg_mode")
	m.chrMode = d.Uint8("chr_mode")
	m.mirror = MirrorMode(d.Uint8("mirror"))
	m.reload = d.Uint8("irq_reload")
	m.counter = d.Uint8("irq_counter")
	m.irqEnable = d.Bool("irq_enable")
	m.irqPending = d.Bool("irq_pending")
	m.cart.loadRAM(d)
	m.updateOffsets()
	return d.Err()
}
