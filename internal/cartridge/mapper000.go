package cartridge

import "nescore/internal/state"

// Mapper000 implements NROM (mapper 0)
// NROM is the simplest mapper with no bank switching capabilities.
// It supports:
// - 16KB or 32KB PRG ROM (16KB is mirrored to fill 32KB address space)
// - 8KB CHR ROM or CHR RAM
// - 8KB PRG RAM at 0x6000-0x7FFF (optionally battery-backed)
type Mapper000 struct {
	cart *Cartridge
}

// NewMapper000 creates a new NROM mapper
func NewMapper000(cart *Cartridge) *Mapper000 {
	return &Mapper000{cart: cart}
}

func (m *Mapper000) Read(address uint16) uint8 {
	switch {
	case address < 0x2000:
		return m.cart.chrROM[int(address)%len(m.cart.chrROM)]
	case address >= 0x8000:
		return m.cart.prgROM[int(address-0x8000)%len(m.cart.prgROM)]
	case address >= 0x6000:
		return m.cart.readPRGRAM(address)
	}
	return 0
}

func (m *Mapper000) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.cart.writeCHR(int(address), value)
	case address >= 0x6000 && address < 0x8000:
		m.cart.writePRGRAM(address, value)
	}
	// Writes to ROM area are ignored
}

func (m *Mapper000) Mirroring() MirrorMode { return m.cart.mirror }
func (m *Mapper000) IRQPending() bool      { return false }
func (m *Mapper000) NotifyScanline()       {}

func (m *Mapper000) SaveState(e *state.Encoder) {
	m.cart.saveRAM(e)
}

func (m *Mapper000) LoadState(d *state.Decoder) error {
	m.cart.loadRAM(d)
	return d.Err()
}
