package cartridge

import "nescore/internal/state"

// Mapper is the bank-switching unit sitting between the cartridge and the
// console. Addresses below 0x2000 are PPU pattern space, 0x6000-0x7FFF is
// PRG RAM and 0x8000-0xFFFF is PRG ROM.
type Mapper interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)

	// Mirroring returns the current nametable layout.
	Mirroring() MirrorMode

	// IRQPending reports the level of the cartridge interrupt line.
	IRQPending() bool

	// NotifyScanline is called once per rendered scanline.
	NotifyScanline()

	state.Saver
}

type mapperEntry struct {
	name   string
	create func(*Cartridge) Mapper
}

// mapperTable is consulted once at load time.
var mapperTable = map[uint8]mapperEntry{
	0: {"NROM", func(c *Cartridge) Mapper { return NewMapper000(c) }},
	1: {"MMC1", func(c *Cartridge) Mapper { return NewMapper001(c) }},
	2: {"UxROM", func(c *Cartridge) Mapper { return NewMapper002(c) }},
	3: {"CNROM", func(c *Cartridge) Mapper { return NewMapper003(c) }},
	4: {"MMC3", func(c *Cartridge) Mapper { return NewMapper004(c) }},
}

// SupportedMappers lists the implemented mapper ids in ascending order.
func SupportedMappers() []uint8 {
	var ids []uint8
	for id := 0; id < 256; id++ {
		if _, ok := mapperTable[uint8(id)]; ok {
			ids = append(ids, uint8(id))
		}
	}
	return ids
}

// readPRGRAM and writePRGRAM serve 0x6000-0x7FFF for every board.
func (c *Cartridge) readPRGRAM(address uint16) uint8 {
	return c.prgRAM[int(address-0x6000)%len(c.prgRAM)]
}

func (c *Cartridge) writePRGRAM(address uint16, value uint8) {
	c.prgRAM[int(address-0x6000)%len(c.prgRAM)] = value
}

// writeCHR stores into pattern memory only when it is RAM.
func (c *Cartridge) writeCHR(offset int, value uint8) {
	if c.chrRAM {
		c.chrROM[offset%len(c.chrROM)] = value
	}
}

// saveRAM and loadRAM persist the writable cartridge regions.
func (c *Cartridge) saveRAM(e *state.Encoder) {
	e.Bytes("prg_ram", c.prgRAM)
	if c.chrRAM {
		e.Bytes("chr_ram", c.chrROM)
	}
}

func (c *Cartridge) loadRAM(d *state.Decoder) {
	d.BytesInto("prg_ram", c.prgRAM)
	if c.chrRAM {
		d.BytesInto("chr_ram", c.chrROM)
	}
}

// bankOffset maps a possibly negative bank index onto a byte offset, with
// negative values counting back from the last bank.
func bankOffset(size, bankSize, bank int) int {
	count := size / bankSize
	if count == 0 {
		return 0
	}
	bank %= count
	if bank < 0 {
		bank += count
	}
	return bank * bankSize
}
