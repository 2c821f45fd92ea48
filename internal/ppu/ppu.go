// Package ppu implements the Picture Processing Unit for the NES.
package ppu

import "nescore/internal/state"

const (
	ScreenWidth  = 256
	ScreenHeight = 240

	dotsPerScanline   = 341
	scanlinesPerFrame = 262
	vblankScanline    = 241
	preRenderLine     = 261

	// PPUCTRL bits
	ctrlIncrement32     = 0x04
	ctrlSpriteTable     = 0x08
	ctrlBackgroundTable = 0x10
	ctrlSpriteSize      = 0x20
	ctrlNMIEnable       = 0x80

	// PPUMASK bits
	maskGrayscale      = 0x01
	maskShowLeftBack   = 0x02
	maskShowLeftSprite = 0x04
	maskShowBackground = 0x08
	maskShowSprites    = 0x10

	// PPUSTATUS bits
	statusOverflow   = 0x20
	statusSpriteZero = 0x40
	statusVBlank     = 0x80
)

// Memory is the PPU view of the 14-bit video address space
type Memory interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
	ReadPalette(index uint8) uint8
	NotifyScanline()
}

// PPU represents the NES Picture Processing Unit (2C02)
type PPU struct {
	// CPU-visible registers
	ppuCtrl   uint8 // $2000
	ppuMask   uint8 // $2001
	ppuStatus uint8 // $2002, bits 5-7
	oamAddr   uint8 // $2003

	// Last value written to any register, returned for write-only reads
	ioLatch uint8
	// PPUDATA read buffer
	readBuffer uint8

	// Internal scroll registers
	v uint16 // Current VRAM address (15 bits)
	t uint16 // Temporary VRAM address (15 bits)
	x uint8  // Fine X scroll (3 bits)
	w bool   // Write toggle

	memory Memory

	scanline   int // 0-261, 261 is the pre-render line
	dot        int // 0-340
	frameCount uint64
	oddFrame   bool

	// Background fetch latches and the 16-pixel shifter, 4 bits per pixel
	nameTableByte      uint8
	attributeTableByte uint8
	lowTileByte        uint8
	highTileByte       uint8
	tileData           uint64

	// Sprites
	oam              [256]uint8
	spriteCount      int
	spritePatterns   [8]uint32
	spritePositions  [8]uint8
	spritePriorities [8]uint8
	spriteIndexes    [8]uint8

	nmiRequested bool

	frameBuffer [ScreenWidth * ScreenHeight]uint32
}

// New creates a new PPU instance
func New() *PPU {
	p := &PPU{}
	p.Reset()
	return p
}

// SetMemory sets the PPU memory interface
func (p *PPU) SetMemory(memory Memory) {
	p.memory = memory
}

// Reset puts the PPU at the top of the first visible scanline with
// rendering disabled.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0
	p.oamAddr = 0
	p.ioLatch = 0
	p.readBuffer = 0
	p.v, p.t, p.x, p.w = 0, 0, 0, false
	p.scanline = 0
	p.dot = 0
	p.frameCount = 0
	p.oddFrame = false
	p.tileData = 0
	p.spriteCount = 0
	p.oam = [256]uint8{}
	p.frameBuffer = [ScreenWidth * ScreenHeight]uint32{}
}

// Step advances the PPU by three dots per CPU cycle. It returns true when
// vertical blank was entered during the advance with NMI enabled.
func (p *PPU) Step(cpuCycles int) bool {
	p.nmiRequested = false
	for i := 0; i < cpuCycles*3; i++ {
		p.tick()
	}
	return p.nmiRequested
}

func (p *PPU) renderingEnabled() bool {
	return p.ppuMask&(maskShowBackground|maskShowSprites) != 0
}

// advance moves the dot and scanline counters, skipping the last dot of
// the pre-render line on odd frames while rendering.
func (p *PPU) advance() {
	if p.renderingEnabled() && p.oddFrame && p.scanline == preRenderLine && p.dot == 339 {
		p.dot = 0
		p.scanline = 0
		p.oddFrame = false
		return
	}
	p.dot++
	if p.dot >= dotsPerScanline {
		p.dot = 0
		p.scanline++
		if p.scanline >= scanlinesPerFrame {
			p.scanline = 0
			p.oddFrame = !p.oddFrame
		}
	}
}

func (p *PPU) tick() {
	p.advance()

	rendering := p.renderingEnabled()
	visibleLine := p.scanline < ScreenHeight
	preLine := p.scanline == preRenderLine
	renderLine := visibleLine || preLine
	visibleDot := p.dot >= 1 && p.dot <= 256
	prefetchDot := p.dot >= 321 && p.dot <= 336
	fetchDot := visibleDot || prefetchDot

	if rendering {
		if visibleLine && visibleDot {
			p.renderPixel()
		}
		if renderLine && fetchDot {
			p.tileData <<= 4
			switch p.dot % 8 {
			case 1:
				p.fetchNameTableByte()
			case 3:
				p.fetchAttributeTableByte()
			case 5:
				p.fetchLowTileByte()
			case 7:
				p.fetchHighTileByte()
			case 0:
				p.storeTileData()
			}
		}
		if preLine && p.dot >= 280 && p.dot <= 304 {
			p.copyY()
		}
		if renderLine {
			if fetchDot && p.dot%8 == 0 {
				p.incrementX()
			}
			if p.dot == 256 {
				p.incrementY()
			}
			if p.dot == 257 {
				p.copyX()
			}
		}
		if p.dot == 257 {
			if visibleLine {
				p.evaluateSprites()
			} else {
				p.spriteCount = 0
			}
		}
		if renderLine && p.dot == 260 && p.memory != nil {
			p.memory.NotifyScanline()
		}
	}

	if p.scanline == vblankScanline && p.dot == 1 {
		p.ppuStatus |= statusVBlank
		p.frameCount++
		if p.ppuCtrl&ctrlNMIEnable != 0 {
			p.nmiRequested = true
		}
	}

	if preLine && p.dot == 1 {
		p.ppuStatus &^= statusVBlank | statusSpriteZero | statusOverflow
	}
}

func (p *PPU) renderPixel() {
	x := p.dot - 1
	y := p.scanline

	background := p.backgroundPixel()
	i, sprite := p.spritePixel()

	if x < 8 && p.ppuMask&maskShowLeftBack == 0 {
		background = 0
	}
	if x < 8 && p.ppuMask&maskShowLeftSprite == 0 {
		sprite = 0
	}

	opaqueBackground := background%4 != 0
	opaqueSprite := sprite%4 != 0

	var color uint8
	switch {
	case !opaqueBackground && !opaqueSprite:
		color = 0
	case !opaqueBackground:
		color = sprite | 0x10
	case !opaqueSprite:
		color = background
	default:
		if p.spriteIndexes[i] == 0 && x < 255 {
			p.ppuStatus |= statusSpriteZero
		}
		if p.spritePriorities[i] == 0 {
			color = sprite | 0x10
		} else {
			color = background
		}
	}

	index := p.memory.ReadPalette(color) & 0x3F
	if p.ppuMask&maskGrayscale != 0 {
		index &= 0x30
	}
	p.frameBuffer[y*ScreenWidth+x] = NESColorToRGB(index)
}

func (p *PPU) backgroundPixel() uint8 {
	if p.ppuMask&maskShowBackground == 0 {
		return 0
	}
	data := uint32(p.tileData>>32) >> ((7 - p.x) * 4)
	return uint8(data & 0x0F)
}

func (p *PPU) spritePixel() (int, uint8) {
	if p.ppuMask&maskShowSprites == 0 {
		return 0, 0
	}
	for i := 0; i < p.spriteCount; i++ {
		offset := p.dot - 1 - int(p.spritePositions[i])
		if offset < 0 || offset > 7 {
			continue
		}
		offset = 7 - offset
		color := uint8((p.spritePatterns[i] >> uint(offset*4)) & 0x0F)
		if color%4 == 0 {
			continue
		}
		return i, color
	}
	return 0, 0
}

func (p *PPU) spriteHeight() int {
	if p.ppuCtrl&ctrlSpriteSize != 0 {
		return 16
	}
	return 8
}

// evaluateSprites selects up to eight sprites for the next scanline and
// sets the overflow flag the way the hardware does.
func (p *PPU) evaluateSprites() {
	height := p.spriteHeight()
	inRange := func(y uint8) bool {
		row := p.scanline - int(y)
		return row >= 0 && row < height
	}

	count := 0
	n := 0
	for ; n < 64 && count < 8; n++ {
		if !inRange(p.oam[n*4]) {
			continue
		}
		attributes := p.oam[n*4+2]
		p.spritePatterns[count] = p.fetchSpritePattern(n, p.scanline-int(p.oam[n*4]))
		p.spritePositions[count] = p.oam[n*4+3]
		p.spritePriorities[count] = (attributes >> 5) & 1
		p.spriteIndexes[count] = uint8(n)
		count++
	}
	p.spriteCount = count

	// Once eight are found the scan also advances the byte offset on every
	// miss, so tile, attribute and X bytes get compared as Y coordinates.
	for m := 0; count == 8 && n < 64; n++ {
		if inRange(p.oam[n*4+m]) {
			p.ppuStatus |= statusOverflow
			return
		}
		m = (m + 1) & 3
	}
}

// fetchSpritePattern returns eight 4-bit pixels for one row of sprite i
func (p *PPU) fetchSpritePattern(i, row int) uint32 {
	tile := p.oam[i*4+1]
	attributes := p.oam[i*4+2]

	var address uint16
	if p.spriteHeight() == 8 {
		if attributes&0x80 != 0 {
			row = 7 - row
		}
		table := uint16(0)
		if p.ppuCtrl&ctrlSpriteTable != 0 {
			table = 0x1000
		}
		address = table + uint16(tile)*16 + uint16(row)
	} else {
		if attributes&0x80 != 0 {
			row = 15 - row
		}
		table := uint16(tile&1) * 0x1000
		tile &= 0xFE
		if row > 7 {
			tile++
			row -= 8
		}
		address = table + uint16(tile)*16 + uint16(row)
	}

	low := p.memory.Read(address)
	high := p.memory.Read(address + 8)
	palette := (attributes & 3) << 2

	var data uint32
	for i := 0; i < 8; i++ {
		var p1, p2 uint8
		if attributes&0x40 != 0 {
			p1 = low & 1
			p2 = (high & 1) << 1
			low >>= 1
			high >>= 1
		} else {
			p1 = (low & 0x80) >> 7
			p2 = (high & 0x80) >> 6
			low <<= 1
			high <<= 1
		}
		data <<= 4
		data |= uint32(palette | p1 | p2)
	}
	return data
}

func (p *PPU) backgroundTable() uint16 {
	if p.ppuCtrl&ctrlBackgroundTable != 0 {
		return 0x1000
	}
	return 0
}

func (p *PPU) fetchNameTableByte() {
	p.nameTableByte = p.memory.Read(0x2000 | (p.v & 0x0FFF))
}

func (p *PPU) fetchAttributeTableByte() {
	v := p.v
	address := 0x23C0 | (v & 0x0C00) | ((v >> 4) & 0x38) | ((v >> 2) & 0x07)
	shift := ((v >> 4) & 4) | (v & 2)
	p.attributeTableByte = ((p.memory.Read(address) >> shift) & 3) << 2
}

func (p *PPU) fetchLowTileByte() {
	fineY := (p.v >> 12) & 7
	p.lowTileByte = p.memory.Read(p.backgroundTable() + uint16(p.nameTableByte)*16 + fineY)
}

func (p *PPU) fetchHighTileByte() {
	fineY := (p.v >> 12) & 7
	p.highTileByte = p.memory.Read(p.backgroundTable() + uint16(p.nameTableByte)*16 + fineY + 8)
}

func (p *PPU) storeTileData() {
	var data uint32
	for i := 0; i < 8; i++ {
		p1 := (p.lowTileByte & 0x80) >> 7
		p2 := (p.highTileByte & 0x80) >> 6
		p.lowTileByte <<= 1
		p.highTileByte <<= 1
		data <<= 4
		data |= uint32(p.attributeTableByte | p1 | p2)
	}
	p.tileData |= uint64(data)
}

// incrementX increments the coarse X and wraps to next nametable if needed
func (p *PPU) incrementX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

// incrementY increments fine Y, and if it overflows, increments coarse Y
func (p *PPU) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03E0) | (y << 5)
}

// copyX copies all X-related bits from t to v (bits 10, 4-0)
func (p *PPU) copyX() {
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}

// copyY copies all Y-related bits from t to v (bits 11, 14-5)
func (p *PPU) copyY() {
	p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
}

// FrameBuffer returns the live 256x240 frame buffer in 0x00RRGGBB. It is
// overwritten in place as scanlines render.
func (p *PPU) FrameBuffer() []uint32 {
	return p.frameBuffer[:]
}

// Frame returns the number of vertical blanks entered since reset
func (p *PPU) Frame() uint64 { return p.frameCount }

// Scanline returns the current scanline, 261 being the pre-render line
func (p *PPU) Scanline() int { return p.scanline }

// Dot returns the current dot within the scanline
func (p *PPU) Dot() int { return p.dot }

// IsVBlank reports whether the vblank status flag is set
func (p *PPU) IsVBlank() bool { return p.ppuStatus&statusVBlank != 0 }

// OAM returns the 256-byte sprite attribute memory
func (p *PPU) OAM() []uint8 { return p.oam[:] }

func (p *PPU) SaveState(e *state.Encoder) {
	e.Uint8("ctrl", p.ppuCtrl)
	e.Uint8("mask", p.ppuMask)
	e.Uint8("status", p.ppuStatus)
	e.Uint8("oam_addr", p.oamAddr)
	e.Uint8("io_latch", p.ioLatch)
	e.Uint8("read_buffer", p.readBuffer)
	e.Uint16("v", p.v)
	e.Uint16("t", p.t)
	e.Uint8("x", p.x)
	e.Bool("w", p.w)
	e.Int("scanline", p.scanline)
	e.Int("dot", p.dot)
	e.Uint64("frame", p.frameCount)
	e.Bool("odd_frame", p.oddFrame)
	e.Uint8("nametable_byte", p.nameTableByte)
	e.Uint8("attribute_byte", p.attributeTableByte)
	e.Uint8("low_tile_byte", p.lowTileByte)
	e.Uint8("high_tile_byte", p.highTileByte)
	e.Uint64("tile_data", p.tileData)
	e.Bytes("oam", p.oam[:])
	e.Int("sprite_count", p.spriteCount)
	e.Uint32s("sprite_patterns", p.spritePatterns[:])
	e.Bytes("sprite_positions", p.spritePositions[:])
	e.Bytes("sprite_priorities", p.spritePriorities[:])
	e.Bytes("sprite_indexes", p.spriteIndexes[:])
	e.Uint32s("frame_buffer", p.frameBuffer[:])
}

func (p *PPU) LoadState(d *state.Decoder) error {
	p.ppuCtrl = d.Uint8("ctrl")
	p.ppuMask = d.Uint8("mask")
	p.ppuStatus = d.Uint8("status")
	p.oamAddr = d.Uint8("oam_addr")
	p.ioLatch = d.Uint8("io_latch")
	p.readBuffer = d.Uint8("read_buffer")
	p.v = d.Uint16("v")
	p.t = d.Uint16("t")
	p.x = d.Uint8("x")
	p.w = d.Bool("w")
	p.scanline = d.IntInRange("scanline", 0, scanlinesPerFrame-1)
	p.dot = d.IntInRange("dot", 0, dotsPerScanline-1)
	p.frameCount = d.Uint64("frame")
	p.oddFrame = d.Bool("odd_frame")
	p.nameTableByte = d.Uint8("nametable_byte")
	p.attributeTableByte = d.Uint8("attribute_byte")
	p.lowTileByte = d.Uint8("low_tile_byte")
	p.highTileByte = d.Uint8("high_tile_byte")
	p.tileData = d.Uint64("tile_data")
	d.BytesInto("oam", p.oam[:])
	p.spriteCount = d.IntInRange("sprite_count", 0, 8)
	d.Uint32sInto("sprite_patterns", p.spritePatterns[:])
	d.BytesInto("sprite_positions", p.spritePositions[:])
	d.BytesInto("sprite_priorities", p.spritePriorities[:])
	d.BytesInto("sprite_indexes", p.spriteIndexes[:])
	d.Uint32sInto("frame_buffer", p.frameBuffer[:])
	return d.Err()
}
