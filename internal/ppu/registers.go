package ppu

// ReadRegister reads from a PPU register (CPU $2000-$2007)
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2002: // PPUSTATUS
		status := p.ppuStatus | p.ioLatch&0x1F
		p.ppuStatus &^= statusVBlank
		p.w = false
		return status
	case 0x2004: // OAMDATA
		value := p.oam[p.oamAddr]
		// Attribute bits 2-4 do not exist
		if p.oamAddr&0x03 == 0x02 {
			value &= 0xE3
		}
		return value
	case 0x2007: // PPUDATA
		return p.readData()
	default:
		// Write-only registers return the I/O latch
		return p.ioLatch
	}
}

// WriteRegister writes to a PPU register (CPU $2000-$2007)
func (p *PPU) WriteRegister(address uint16, value uint8) {
	p.ioLatch = value
	switch address {
	case 0x2000: // PPUCTRL
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | (uint16(value&0x03) << 10)
	case 0x2001: // PPUMASK
		p.ppuMask = value
	case 0x2003: // OAMADDR
		p.oamAddr = value
	case 0x2004: // OAMDATA
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005: // PPUSCROLL
		p.writeScroll(value)
	case 0x2006: // PPUADDR
		p.writeAddress(value)
	case 0x2007: // PPUDATA
		p.memory.Write(p.v, value)
		p.incrementAddress()
	}
}

func (p *PPU) writeScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
	} else {
		p.t = (p.t & 0x8FFF) | (uint16(value&0x07) << 12)
		p.t = (p.t & 0xFC1F) | (uint16(value&0xF8) << 2)
	}
	p.w = !p.w
}

func (p *PPU) writeAddress(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | (uint16(value&0x3F) << 8)
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
	}
	p.w = !p.w
}

// readData returns the buffered byte for VRAM reads; palette reads return
// immediately and refill the buffer from the nametable underneath.
func (p *PPU) readData() uint8 {
	value := p.memory.Read(p.v)
	if p.v&0x3FFF < 0x3F00 {
		buffered := p.readBuffer
		p.readBuffer = value
		value = buffered
	} else {
		p.readBuffer = p.memory.Read(p.v - 0x1000)
	}
	p.incrementAddress()
	return value
}

func (p *PPU) incrementAddress() {
	if p.ppuCtrl&ctrlIncrement32 != 0 {
		p.v += 32
	} else {
		p.v++
	}
}

// NES 2C02 Color Palette (NTSC)
var nesColorPalette = [64]uint32{
	0x666666, 0x002A88, 0x1412A7, 0x3B00A4, 0x5C007E, 0x6E0040, 0x6C0600, 0x561D00,
	0x333500, 0x0B4800, 0x005200, 0x004F08, 0x00404D, 0x000000, 0x000000, 0x000000,
	0xADADAD, 0x155FD9, 0x4240FF, 0x7527FE, 0xA01ACC, 0xB71E7B, 0xB53120, 0x994E00,
	0x6B6D00, 0x388700, 0x0C9300, 0x008F32, 0x007C8D, 0x000000, 0x000000, 0x000000,
	0xFFFEFF, 0x64B0FF, 0x9290FF, 0xC676FF, 0xF36AFF, 0xFE6ECC, 0xFE8170, 0xEA9E22,
	0xBCBE00, 0x88D800, 0x5CE430, 0x45E082, 0x48CDDE, 0x4F4F4F, 0x000000, 0x000000,
	0xFFFEFF, 0xC0DFFF, 0xD3D2FF, 0xE8C8FF, 0xFBC2FF, 0xFEC4EA, 0xFECCC5, 0xF7D8A5,
	0xE4E594, 0xCFF29B, 0xBEFBB3, 0xB8F8D8, 0xB8F8F8, 0x000000, 0x000000, 0x000000,
}

// NESColorToRGB converts a NES color index to 0x00RRGGBB
func NESColorToRGB(colorIndex uint8) uint32 {
	return nesColorPalette[colorIndex&0x3F]
}
