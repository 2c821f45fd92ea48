// Package bus implements the CPU address decoder that routes every processor
// access to internal RAM, PPU registers, APU and I/O registers or the
// cartridge mapper.
package bus

import "nescore/internal/state"

// PPUInterface defines the interface for PPU register access
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APUInterface defines the interface for APU register access
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// InputInterface defines the interface for the controller ports. Read
// returns the serial data bit for $4016 or $4017.
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface defines the interface for mapper access
type CartridgeInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// Bus represents the NES CPU memory map
type Bus struct {
	// Internal RAM (2KB, mirrored to 8KB)
	ram [0x800]uint8

	ppu   PPUInterface
	apu   APUInterface
	input InputInterface
	cart  CartridgeInterface

	dmaCallback func(page uint8)

	// Last value driven on the data bus, returned for unmapped reads
	openBus uint8
}

// New creates a new Bus
func New(ppu PPUInterface, apu APUInterface, input InputInterface, cart CartridgeInterface) *Bus {
	return &Bus{
		ppu:   ppu,
		apu:   apu,
		input: input,
		cart:  cart,
	}
}

// SetDMACallback sets the handler for writes to $4014. Without one the
// transfer is performed immediately with no stall accounting.
func (b *Bus) SetDMACallback(callback func(page uint8)) {
	b.dmaCallback = callback
}

// Reset clears internal RAM and the open bus latch.
func (b *Bus) Reset() {
	b.ram = [0x800]uint8{}
	b.openBus = 0
}

// Read reads a byte from the given address
func (b *Bus) Read(address uint16) uint8 {
	var value uint8

	switch {
	case address < 0x2000:
		value = b.ram[address&0x07FF]

	case address < 0x4000:
		value = b.ppu.ReadRegister(0x2000 + (address & 0x0007))

	case address == 0x4015:
		value = b.apu.ReadStatus()

	case address == 0x4016 || address == 0x4017:
		value = 0x40 | (b.input.Read(address) & 1)

	case address < 0x4020:
		// Write-only APU registers and the $4018-$401F test registers
		value = b.openBus

	default:
		value = b.cart.Read(address)
	}

	b.openBus = value
	return value
}

// Write writes a byte to the given address
func (b *Bus) Write(address uint16, value uint8) {
	b.openBus = value

	switch {
	case address < 0x2000:
		b.ram[address&0x07FF] = value

	case address < 0x4000:
		b.ppu.WriteRegister(0x2000+(address&0x0007), value)

	case address == 0x4014:
		if b.dmaCallback != nil {
			b.dmaCallback(value)
		} else {
			b.CopyOAM(value)
		}

	case address == 0x4016:
		b.input.Write(address, value)

	case address <= 0x4013 || address == 0x4015 || address == 0x4017:
		b.apu.WriteRegister(address, value)

	case address < 0x4020:
		// $4018-$401F test mode registers are ignored

	default:
		b.cart.Write(address, value)
	}
}

// CopyOAM transfers page $XX00-$XXFF into OAM through OAMDATA.
func (b *Bus) CopyOAM(page uint8) {
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		b.ppu.WriteRegister(0x2004, b.Read(base+i))
	}
}

// RAM returns the 2KB internal RAM for inspection.
func (b *Bus) RAM() []uint8 {
	return b.ram[:]
}

func (b *Bus) SaveState(e *state.Encoder) {
	e.Bytes("ram", b.ram[:])
	e.Uint8("open_bus", b.openBus)
}

func (b *Bus) LoadState(d *state.Decoder) error {
	d.BytesInto("ram", b.ram[:])
	b.openBus = d.Uint8("open_bus")
	return d.Err()
}
