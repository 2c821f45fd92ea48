package cartridge

import (
	"fmt"
)

// TestROMBuilder provides a fluent interface for building iNES images in
// memory, used by tests across the module.
type TestROMBuilder struct {
	prgBanks    uint8
	chrBanks    uint8
	mapperID    uint8
	mirroring   MirrorMode
	battery     bool
	trainer     []uint8
	reserved    [7]uint8
	code        map[uint16][]uint8
	chrData     []uint8
	resetVector uint16
	nmiVector   uint16
	irqVector   uint16
}

// NewTestROMBuilder creates a builder for a 16KB PRG / 8KB CHR NROM image
// with all vectors pointing at 0x8000.
func NewTestROMBuilder() *TestROMBuilder {
	return &TestROMBuilder{
		prgBanks:    1,
		chrBanks:    1,
		code:        make(map[uint16][]uint8),
		resetVector: 0x8000,
		nmiVector:   0x8000,
		irqVector:   0x8000,
	}
}

// WithPRGSize sets the PRG ROM size in 16KB units
func (b *TestROMBuilder) WithPRGSize(banks uint8) *TestROMBuilder {
	b.prgBanks = banks
	return b
}

// WithCHRSize sets the CHR ROM size in 8KB units (0 = CHR RAM)
func (b *TestROMBuilder) WithCHRSize(banks uint8) *TestROMBuilder {
	b.chrBanks = banks
	return b
}

// WithMapper sets the mapper ID
func (b *TestROMBuilder) WithMapper(id uint8) *TestROMBuilder {
	b.mapperID = id
	return b
}

// WithMirroring sets the nametable mirroring mode
func (b *TestROMBuilder) WithMirroring(m MirrorMode) *TestROMBuilder {
	b.mirroring = m
	return b
}

// WithBattery marks PRG RAM as battery backed
func (b *TestROMBuilder) WithBattery() *TestROMBuilder {
	b.battery = true
	return b
}

// WithTrainer adds a 512-byte trainer
func (b *TestROMBuilder) WithTrainer(data []uint8) *TestROMBuilder {
	b.trainer = make([]uint8, trainerSize)
	copy(b.trainer, data)
	return b
}

// WithReservedByte sets one of header bytes 9-15.
func (b *TestROMBuilder) WithReservedByte(offset int, value uint8) *TestROMBuilder {
	b.reserved[offset-9] = value
	return b
}

// WithCode places bytes at a CPU address in 0x8000-0xFFFF. Addresses from
// 0xC000 land in the last 16KB bank.
func (b *TestROMBuilder) WithCode(address uint16, code ...uint8) *TestROMBuilder {
	b.code[address] = append([]uint8(nil), code...)
	return b
}

// WithCHRData sets the leading bytes of CHR ROM
func (b *TestROMBuilder) WithCHRData(data []uint8) *TestROMBuilder {
	b.chrData = append([]uint8(nil), data...)
	return b
}

// WithResetVector sets the reset vector
func (b *TestROMBuilder) WithResetVector(address uint16) *TestROMBuilder {
	b.resetVector = address
	return b
}

// WithNMIVector sets the NMI vector
func (b *TestROMBuilder) WithNMIVector(address uint16) *TestROMBuilder {
	b.nmiVector = address
	return b
}

// WithIRQVector sets the IRQ vector
func (b *TestROMBuilder) WithIRQVector(address uint16) *TestROMBuilder {
	b.irqVector = address
	return b
}

// Header returns the 16 header bytes the builder will emit.
func (b *TestROMBuilder) Header() []byte {
	header := make([]byte, headerSize)
	copy(header[0:4], inesMagic[:])
	header[4] = b.prgBanks
	header[5] = b.chrBanks

	flags6 := (b.mapperID & 0x0F) << 4
	if b.mirroring == MirrorVertical {
		flags6 |= 0x01
	}
	if b.battery {
		flags6 |= 0x02
	}
	if b.trainer != nil {
		flags6 |= 0x04
	}
	if b.mirroring == MirrorFourScreen {
		flags6 |= 0x08
	}
	header[6] = flags6
	header[7] = b.mapperID & 0xF0
	copy(header[9:], b.reserved[:])
	return header
}

// Build generates the iNES image.
func (b *TestROMBuilder) Build() ([]byte, error) {
	if b.prgBanks == 0 {
		return nil, fmt.Errorf("PRG ROM size cannot be zero")
	}
	size := int(b.prgBanks) * prgBankSize
	prg := make([]byte, size)

	for address, code := range b.code {
		if address < 0x8000 {
			return nil, fmt.Errorf("code address 0x%04X outside PRG space", address)
		}
		for i, v := range code {
			prg[prgOffset(address+uint16(i), size)] = v
		}
	}
	putVector := func(address, value uint16) {
		prg[prgOffset(address, size)] = uint8(value)
		prg[prgOffset(address+1, size)] = uint8(value >> 8)
	}
	putVector(0xFFFA, b.nmiVector)
	putVector(0xFFFC, b.resetVector)
	putVector(0xFFFE, b.irqVector)

	image := b.Header()
	image = append(image, b.trainer...)
	image = append(image, prg...)
	if b.chrBanks > 0 {
		chr := make([]byte, int(b.chrBanks)*chrBankSize)
		copy(chr, b.chrData)
		image = append(image, chr...)
	}
	return image, nil
}

// BuildCartridge generates and loads the ROM as a cartridge
func (b *TestROMBuilder) BuildCartridge() (*Cartridge, error) {
	image, err := b.Build()
	if err != nil {
		return nil, err
	}
	return LoadFromBytes(image)
}

func prgOffset(address uint16, size int) int {
	if address >= 0xC000 {
		return size - 0x4000 + int(address-0xC000)
	}
	return int(address-0x8000) % size
}
