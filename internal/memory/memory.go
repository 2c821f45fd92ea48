// Package memory implements the PPU address space: pattern tables served by
// the cartridge mapper, nametable VRAM with mirroring and palette RAM.
package memory

import (
	"nescore/internal/cartridge"
	"nescore/internal/state"
)

// Cartridge is the subset of a mapper the PPU address space needs.
type Cartridge interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
	Mirroring() cartridge.MirrorMode
	NotifyScanline()
}

// PPUMemory represents the PPU's 14-bit memory space
type PPUMemory struct {
	vram       [0x1000]uint8 // 4KB so four-screen boards have their own tables
	paletteRAM [32]uint8
	cartridge  Cartridge
}

// NewPPUMemory creates a new PPU memory instance
func NewPPUMemory(cart Cartridge) *PPUMemory {
	mem := &PPUMemory{cartridge: cart}
	mem.Reset()
	return mem
}

// Reset clears VRAM and sets the background entries of every palette to
// black.
func (pm *PPUMemory) Reset() {
	pm.vram = [0x1000]uint8{}
	pm.paletteRAM = [32]uint8{}
	for i := 0; i < 32; i += 4 {
		pm.paletteRAM[i] = 0x0F
	}
}

// Read reads from PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		return pm.cartridge.Read(address)
	case address < 0x3F00:
		// $3000-$3EFF mirrors $2000-$2EFF
		return pm.vram[pm.nametableIndex(address)]
	default:
		return pm.paletteRAM[paletteIndex(address)]
	}
}

// Write writes to PPU memory space ($0000-$3FFF)
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		pm.cartridge.Write(address, value)
	case address < 0x3F00:
		pm.vram[pm.nametableIndex(address)] = value
	default:
		pm.paletteRAM[paletteIndex(address)] = value
	}
}

// NotifyScanline forwards the PPU's per-scanline signal to the cartridge.
func (pm *PPUMemory) NotifyScanline() {
	pm.cartridge.NotifyScanline()
}

// ReadPalette returns palette entry index (0-31) without side effects.
func (pm *PPUMemory) ReadPalette(index uint8) uint8 {
	return pm.paletteRAM[paletteIndex(uint16(index))]
}

// nametableIndex calculates the VRAM index for the cartridge's current
// mirroring mode.
func (pm *PPUMemory) nametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	table := address >> 10
	offset := address & 0x3FF

	switch pm.cartridge.Mirroring() {
	case cartridge.MirrorHorizontal:
		// $2000/$2400 share the first 1KB, $2800/$2C00 the second
		return (table>>1)*0x400 + offset
	case cartridge.MirrorVertical:
		// $2000/$2800 share the first 1KB, $2400/$2C00 the second
		return (table&1)*0x400 + offset
	case cartridge.MirrorSingleScreen0:
		return offset
	case cartridge.MirrorSingleScreen1:
		return 0x400 + offset
	case cartridge.MirrorFourScreen:
		return table*0x400 + offset
	}
	return offset
}

// paletteIndex folds the sprite backdrop entries onto the background ones.
func paletteIndex(address uint16) uint16 {
	index := address & 0x1F
	if index >= 0x10 && index&0x03 == 0 {
		index -= 0x10
	}
	return index
}

func (pm *PPUMemory) SaveState(e *state.Encoder) {
	e.Bytes("vram", pm.vram[:])
	e.Bytes("palette", pm.paletteRAM[:])
}

func (pm *PPUMemory) LoadState(d *state.Decoder) error {
	d.BytesInto("vram", pm.vram[:])
	d.BytesInto("palette", pm.paletteRAM[:])
	return d.Err()
}
