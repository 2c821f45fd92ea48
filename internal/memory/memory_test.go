package memory

import (
	"testing"

	"nescore/internal/cartridge"
	"nescore/internal/state"
)

type RegisterWrite struct {
	Address uint16
	Value   uint8
}

// MockCartridge implements Cartridge for testing
type MockCartridge struct {
	chrData   [0x2000]uint8
	mirroring cartridge.MirrorMode
	chrReads  []uint16
	chrWrites []RegisterWrite
	scanlines int
}

func (m *MockCartridge) Read(address uint16) uint8 {
	m.chrReads = append(m.chrReads, address)
	return m.chrData[address&0x1FFF]
}

func (m *MockCartridge) Write(address uint16, value uint8) {
	m.chrWrites = append(m.chrWrites, RegisterWrite{Address: address, Value: value})
	m.chrData[address&0x1FFF] = value
}

func (m *MockCartridge) Mirroring() cartridge.MirrorMode { return m.mirroring }
func (m *MockCartridge) NotifyScanline()                 { m.scanlines++ }

func TestPPUMemory_PatternTables_ShouldUseCartridge(t *testing.T) {
	cart := &MockCartridge{}
	mem := NewPPUMemory(cart)

	mem.Write(0x1ABC, 0x5A)
	if len(cart.chrWrites) != 1 || cart.chrWrites[0].Address != 0x1ABC {
		t.Fatalf("Expected one CHR write at 0x1ABC, got %v", cart.chrWrites)
	}
	if got := mem.Read(0x1ABC); got != 0x5A {
		t.Errorf("Read(0x1ABC) = %02X, want 5A", got)
	}
	// 14-bit address space wraps
	if got := mem.Read(0x5ABC); got != 0x5A {
		t.Errorf("Read(0x5ABC) = %02X, want 5A", got)
	}
}

func TestPPUMemory_NametableMirroring(t *testing.T) {
	tests := []struct {
		name      string
		mirroring cartridge.MirrorMode
		// shared lists nametable base pairs that must alias
		shared   [][2]uint16
		distinct [][2]uint16
	}{
		{
			name:      "Horizontal",
			mirroring: cartridge.MirrorHorizontal,
			shared:    [][2]uint16{{0x2000, 0x2400}, {0x2800, 0x2C00}},
			distinct:  [][2]uint16{{0x2000, 0x2800}},
		},
		{
			name:      "Vertical",
			mirroring: cartridge.MirrorVertical,
			shared:    [][2]uint16{{0x2000, 0x2800}, {0x2400, 0x2C00}},
			distinct:  [][2]uint16{{0x2000, 0x2400}},
		},
		{
			name:      "SingleScreen0",
			mirroring: cartridge.MirrorSingleScreen0,
			shared:    [][2]uint16{{0x2000, 0x2400}, {0x2000, 0x2800}, {0x2000, 0x2C00}},
		},
		{
			name:      "SingleScreen1",
			mirroring: cartridge.MirrorSingleScreen1,
			shared:    [][2]uint16{{0x2000, 0x2400}, {0x2400, 0x2C00}},
		},
		{
			name:      "FourScreen",
			mirroring: cartridge.MirrorFourScreen,
			distinct:  [][2]uint16{{0x2000, 0x2400}, {0x2000, 0x2800}, {0x2400, 0x2C00}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, pair := range tt.shared {
				mem := NewPPUMemory(&MockCartridge{mirroring: tt.mirroring})
				mem.Write(pair[0]+0x10, 0x42)
				if got := mem.Read(pair[1] + 0x10); got != 0x42 {
					t.Errorf("Expected %04X to alias %04X, read %02X", pair[1], pair[0], got)
				}
			}
			for _, pair := range tt.distinct {
				mem := NewPPUMemory(&MockCartridge{mirroring: tt.mirroring})
				mem.Write(pair[0]+0x10, 0x42)
				if got := mem.Read(pair[1] + 0x10); got != 0 {
					t.Errorf("Expected %04X separate from %04X, read %02X", pair[1], pair[0], got)
				}
			}
		})
	}
}

func TestPPUMemory_MirroringFollowsCartridge(t *testing.T) {
	cart := &MockCartridge{mirroring: cartridge.MirrorVertical}
	mem := NewPPUMemory(cart)
	mem.Write(0x2000, 0x11)
	mem.Write(0x2400, 0x22)

	cart.mirroring = cartridge.MirrorHorizontal
	if got := mem.Read(0x2400); got != 0x11 {
		t.Errorf("After switching to horizontal, Read(0x2400) = %02X, want 11", got)
	}
}

func TestPPUMemory_NametableUpperMirror(t *testing.T) {
	mem := NewPPUMemory(&MockCartridge{mirroring: cartridge.MirrorVertical})
	mem.Write(0x2123, 0x77)
	if got := mem.Read(0x3123); got != 0x77 {
		t.Errorf("Read(0x3123) = %02X, want 77", got)
	}
	mem.Write(0x3EFF, 0x66)
	if got := mem.Read(0x2EFF); got != 0x66 {
		t.Errorf("Read(0x2EFF) = %02X, want 66", got)
	}
}

func TestPPUMemory_PaletteMirroring(t *testing.T) {
	mem := NewPPUMemory(&MockCartridge{})

	for _, index := range []uint16{0x10, 0x14, 0x18, 0x1C} {
		mem.Write(0x3F00+index, uint8(index))
		if got := mem.Read(0x3F00 + index - 0x10); got != uint8(index) {
			t.Errorf("Palette %02X should alias %02X, read %02X", index, index-0x10, got)
		}
	}

	mem.Write(0x3F11, 0x2A)
	if got := mem.Read(0x3F01); got == 0x2A {
		t.Error("Palette 0x11 must not alias 0x01")
	}
	if got := mem.Read(0x3F31); got != 0x2A {
		t.Errorf("Read(0x3F31) = %02X, want 2A", got)
	}
	if got := mem.ReadPalette(0x11); got != 0x2A {
		t.Errorf("ReadPalette(0x11) = %02X, want 2A", got)
	}
}

func TestPPUMemory_PowerOnPalette(t *testing.T) {
	mem := NewPPUMemory(&MockCartridge{})
	for i := uint8(0); i < 32; i += 4 {
		if got := mem.ReadPalette(i); got != 0x0F {
			t.Errorf("Palette %02X = %02X, want 0F", i, got)
		}
	}
}

func TestPPUMemory_NotifyScanline(t *testing.T) {
	cart := &MockCartridge{}
	mem := NewPPUMemory(cart)
	mem.NotifyScanline()
	mem.NotifyScanline()
	if cart.scanlines != 2 {
		t.Errorf("Expected 2 scanline notifications, got %d", cart.scanlines)
	}
}

func TestPPUMemory_State(t *testing.T) {
	src := NewPPUMemory(&MockCartridge{mirroring: cartridge.MirrorFourScreen})
	src.Write(0x2C05, 0x99)
	src.Write(0x3F03, 0x21)

	e := state.NewEncoder()
	src.SaveState(e)

	dst := NewPPUMemory(&MockCartridge{mirroring: cartridge.MirrorFourScreen})
	if err := dst.LoadState(state.NewDecoder(e.Snapshot())); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if got := dst.Read(0x2C05); got != 0x99 {
		t.Errorf("Restored VRAM = %02X, want 99", got)
	}
	if got := dst.Read(0x3F03); got != 0x21 {
		t.Errorf("Restored palette = %02X, want 21", got)
	}
}
