// Package cartridge implements ROM loading and parsing for NES cartridges.
package cartridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	headerSize     = 16
	trainerSize    = 512
	prgBankSize    = 0x4000
	chrBankSize    = 0x2000
	prgRAMBankSize = 0x2000
)

var inesMagic = [4]uint8{'N', 'E', 'S', 0x1A}

// MirrorMode represents nametable mirroring mode
type MirrorMode uint8

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingleScreen0
	MirrorSingleScreen1
	MirrorFourScreen
)

func (m MirrorMode) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorSingleScreen0:
		return "single-screen-0"
	case MirrorSingleScreen1:
		return "single-screen-1"
	case MirrorFourScreen:
		return "four-screen"
	}
	return fmt.Sprintf("MirrorMode(%d)", uint8(m))
}

// FormatError reports an invalid or truncated cartridge image.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid iNES image: %s: %v", e.Reason, e.Err)
	}
	return "invalid iNES image: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// UnsupportedMapperError reports a mapper id with no implementation.
type UnsupportedMapperError struct {
	MapperID uint8
}

func (e *UnsupportedMapperError) Error() string {
	return fmt.Sprintf("unsupported mapper %d", e.MapperID)
}

// Header is the 16-byte iNES file header.
type Header struct {
	Magic       [4]uint8
	PRGROMBanks uint8 // in 16KB units
	CHRROMBanks uint8 // in 8KB units, 0 means CHR RAM
	Flags6      uint8
	Flags7      uint8
	PRGRAMBanks uint8 // in 8KB units
	Reserved    [7]uint8
}

// ParseHeader reads and validates a 16-byte iNES header.
func ParseHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return Header{}, &FormatError{Reason: "truncated header", Err: err}
	}
	if err := h.Validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// Validate checks the magic signature and the reserved bytes. NES 2.0
// headers use bytes 8-15 for extended fields and are accepted as is.
func (h Header) Validate() error {
	if h.Magic != inesMagic {
		return &FormatError{Reason: fmt.Sprintf("bad magic % X", h.Magic[:])}
	}
	if h.PRGROMBanks == 0 {
		return &FormatError{Reason: "PRG ROM size cannot be zero"}
	}
	if h.IsNES20() {
		return nil
	}
	for i, b := range h.Reserved {
		if b != 0 {
			return &FormatError{Reason: fmt.Sprintf("reserved byte %d is 0x%02X, want 0", 9+i, b)}
		}
	}
	return nil
}

// IsNES20 reports whether the header declares the NES 2.0 format.
func (h Header) IsNES20() bool {
	return h.Flags7&0x0C == 0x08
}

// MapperID combines the two mapper nibbles.
func (h Header) MapperID() uint8 {
	return (h.Flags7 & 0xF0) | (h.Flags6 >> 4)
}

// Mirroring decodes the nametable layout from flags 6.
func (h Header) Mirroring() MirrorMode {
	switch {
	case h.Flags6&0x08 != 0:
		return MirrorFourScreen
	case h.Flags6&0x01 != 0:
		return MirrorVertical
	default:
		return MirrorHorizontal
	}
}

func (h Header) HasBattery() bool { return h.Flags6&0x02 != 0 }
func (h Header) HasTrainer() bool { return h.Flags6&0x04 != 0 }

// Bytes re-encodes the header.
func (h Header) Bytes() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, h)
	return buf.Bytes()
}

// Cartridge represents a NES cartridge
type Cartridge struct {
	header Header

	// ROM data, never written after load
	prgROM []uint8
	chrROM []uint8

	// RAM regions
	prgRAM     []uint8
	chrRAM     bool // chrROM holds CHR RAM when set
	hasBattery bool

	mapperID uint8
	mirror   MirrorMode
	mapper   Mapper
}

// LoadFromFile loads a cartridge from an iNES file
func LoadFromFile(filename string) (*Cartridge, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromBytes loads a cartridge from an in-memory iNES image.
func LoadFromBytes(data []byte) (*Cartridge, error) {
	return LoadFromReader(bytes.NewReader(data))
}

// LoadFromReader parses an iNES image and constructs its cartridge.
func LoadFromReader(r io.Reader) (*Cartridge, error) {
	header, err := ParseHeader(r)
	if err != nil {
		return nil, err
	}

	if header.HasTrainer() {
		if _, err := io.CopyN(io.Discard, r, trainerSize); err != nil {
			return nil, &FormatError{Reason: "truncated trainer", Err: err}
		}
	}

	prg := make([]uint8, int(header.PRGROMBanks)*prgBankSize)
	if _, err := io.ReadFull(r, prg); err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("PRG ROM shorter than declared %d bytes", len(prg)), Err: err}
	}

	var chr []uint8
	if header.CHRROMBanks > 0 {
		chr = make([]uint8, int(header.CHRROMBanks)*chrBankSize)
		if _, err := io.ReadFull(r, chr); err != nil {
			return nil, &FormatError{Reason: fmt.Sprintf("CHR ROM shorter than declared %d bytes", len(chr)), Err: err}
		}
	}

	return newCartridge(prg, chr, header, header.Mirroring())
}

// Load constructs a cartridge from raw ROM images. An empty chr selects 8KB
// of CHR RAM. It fails with UnsupportedMapperError when no mapper implements
// mapperID.
func Load(prg, chr []byte, mapperID uint8, mirroring MirrorMode) (*Cartridge, error) {
	if len(prg) == 0 || len(prg)%prgBankSize != 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("PRG ROM size %d is not a multiple of 16KB", len(prg))}
	}
	if len(chr)%chrBankSize != 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("CHR ROM size %d is not a multiple of 8KB", len(chr))}
	}
	h := Header{
		Magic:       inesMagic,
		PRGROMBanks: uint8(len(prg) / prgBankSize),
		CHRROMBanks: uint8(len(chr) / chrBankSize),
		Flags6:      mapperID << 4,
		Flags7:      mapperID & 0xF0,
	}
	switch mirroring {
	case MirrorVertical:
		h.Flags6 |= 0x01
	case MirrorFourScreen:
		h.Flags6 |= 0x08
	}
	return newCartridge(append([]byte(nil), prg...), append([]byte(nil), chr...), h, mirroring)
}

func newCartridge(prg, chr []byte, header Header, mirror MirrorMode) (*Cartridge, error) {
	entry, ok := mapperTable[header.MapperID()]
	if !ok {
		return nil, &UnsupportedMapperError{MapperID: header.MapperID()}
	}

	ramBanks := int(header.PRGRAMBanks)
	if ramBanks == 0 || header.IsNES20() {
		ramBanks = 1
	}

	cart := &Cartridge{
		header:     header,
		prgROM:     prg,
		chrROM:     chr,
		prgRAM:     make([]uint8, ramBanks*prgRAMBankSize),
		hasBattery: header.HasBattery(),
		mapperID:   header.MapperID(),
		mirror:     mirror,
	}
	if len(cart.chrROM) == 0 {
		cart.chrROM = make([]uint8, chrBankSize)
		cart.chrRAM = true
	}
	cart.mapper = entry.create(cart)
	return cart, nil
}

// Mapper returns the bank-switching unit that owns this cartridge.
func (c *Cartridge) Mapper() Mapper { return c.mapper }

// Header returns the iNES header the cartridge was built from.
func (c *Cartridge) Header() Header { return c.header }

// MapperID returns the iNES mapper number.
func (c *Cartridge) MapperID() uint8 { return c.mapperID }

// MapperName returns a short name for the cartridge board.
func (c *Cartridge) MapperName() string { return mapperTable[c.mapperID].name }

// Mirroring returns the mirroring mode declared at load time.
func (c *Cartridge) Mirroring() MirrorMode { return c.mirror }

// HasBattery reports whether PRG RAM is battery backed.
func (c *Cartridge) HasBattery() bool { return c.hasBattery }

// HasCHRRAM reports whether pattern memory is writable RAM.
func (c *Cartridge) HasCHRRAM() bool { return c.chrRAM }

// PRGROMSize returns the PRG ROM length in bytes.
func (c *Cartridge) PRGROMSize() int { return len(c.prgROM) }

// CHRSize returns the CHR ROM or RAM length in bytes.
func (c *Cartridge) CHRSize() int { return len(c.chrROM) }

// Image returns the PRG and CHR ROM bytes concatenated, for checksums.
func (c *Cartridge) Image() []byte {
	out := make([]byte, 0, len(c.prgROM)+len(c.chrROM))
	out = append(out, c.prgROM...)
	if !c.chrRAM {
		out = append(out, c.chrROM...)
	}
	return out
}

// SaveRAM returns a copy of PRG RAM for battery save files.
func (c *Cartridge) SaveRAM() []byte {
	return append([]byte(nil), c.prgRAM...)
}

// LoadRAM restores PRG RAM from a battery save file.
func (c *Cartridge) LoadRAM(data []byte) error {
	if len(data) != len(c.prgRAM) {
		return errors.New("battery RAM size mismatch")
	}
	copy(c.prgRAM, data)
	return nil
}
