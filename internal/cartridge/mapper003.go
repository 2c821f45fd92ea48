package cartridge

import "nescore/internal/state"

// Mapper003 implements CNROM (mapper 3): fixed PRG like NROM and a
// switchable 8KB CHR bank selected by any write to 0x8000-0xFFFF.
type Mapper003 struct {
	cart *Cartridge
	bank uint8
}

// NewMapper003 creates a new CNROM mapper
func NewMapper003(cart *Cartridge) *Mapper003 {
	return &Mapper003{cart: cart}
}

func (m *Mapper003) Read(address uint16) uint8 {
	switch {
	case address < 0x2000:
		offset := bankOffset(len(m.cart.chrROM), 0x2000, int(m.bank))
		return m.cart.chrROM[offset+int(address)]
	case address >= 0x8000:
		return m.cart.prgROM[int(address-0x8000)%len(m.cart.prgROM)]
	case address >= 0x6000:
		return m.cart.readPRGRAM(address)
	}
	return 0
}

func (m *Mapper003) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		offset := bankOffset(len(m.cart.chrROM), 0x2000, int(m.bank))
		m.cart.writeCHR(offset+int(address), value)
	case address >= 0x8000:
		m.bank = value
	case address >= 0x6000:
		m.cart.writePRGRAM(address, value)
	}
}

func (m *Mapper003) Mirroring() MirrorMode { return m.cart.mirror }
func (m *Mapper003) IRQPending() bool      { return false }
func (m *Mapper003) NotifyScanline()       {}

func (m *Mapper003) SaveState(e *state.Encoder) {
	e.Uint8("bank", m.bank)
	m.cart.saveRAM(e)
}

func (m *Mapper003) LoadState(d *state.Decoder) error {
	m.bank = d.Uint8("bank")
	m.cart.loadRAM(d)
	return d.Err()
}
