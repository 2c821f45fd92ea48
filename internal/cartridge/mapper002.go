package cartridge

import "nescore/internal/state"

// Mapper002 implements UxROM (mapper 2): a switchable 16KB bank at 0x8000
// and the last bank fixed at 0xC000. Pattern memory is usually CHR RAM.
type Mapper002 struct {
	cart *Cartridge
	bank uint8
}

// NewMapper002 creates a new UxROM mapper
func NewMapper002(cart *Cartridge) *Mapper002 {
	return &Mapper002{cart: cart}
}

func (m *Mapper002) Read(address uint16) uint8 {
	switch {
	case address < 0x2000:
		return m.cart.chrROM[int(address)%len(m.cart.chrROM)]
	case address >= 0xC000:
		last := bankOffset(len(m.cart.prgROM), 0x4000, -1)
		return m.cart.prgROM[last+int(address-0xC000)]
	case address >= 0x8000:
		offset := bankOffset(len(m.cart.prgROM), 0x4000, int(m.bank))
		return m.cart.prgROM[offset+int(address-0x8000)]
	case address >= 0x6000:
		return m.cart.readPRGRAM(address)
	}
	return 0
}

func (m *Mapper002) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.cart.writeCHR(int(address), value)
	case address >= 0x8000:
		m.bank = value
	case address >= 0x6000:
		m.cart.writePRGRAM(address, value)
	}
}

func (m *Mapper002) Mirroring() MirrorMode { return m.cart.mirror }
func (m *Mapper002) IRQPending() bool      { return false }
func (m *Mapper002) NotifyScanline()       {}

func (m *Mapper002) SaveState(e *state.Encoder) {
	e.Uint8("bank", m.bank)
	m.cart.saveRAM(e)
}

func (m *Mapper002) LoadState(d *state.Decoder) error {
	m.bank = d.Uint8("bank")
	m.cart.loadRAM(d)
	return d.Err()
}
