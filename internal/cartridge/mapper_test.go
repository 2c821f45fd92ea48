package cartridge

import (
	"errors"
	"testing"

	"nescore/internal/state"
)

// bankedPRG returns a PRG image whose every bankSize chunk is filled with its
// own bank index.
func bankedPRG(banks16K, bankSize int) []byte {
	prg := make([]byte, banks16K*0x4000)
	for i := range prg {
		prg[i] = uint8(i / bankSize)
	}
	return prg
}

func bankedCHR(banks8K, bankSize int) []byte {
	chr := make([]byte, banks8K*0x2000)
	for i := range chr {
		chr[i] = uint8(i / bankSize)
	}
	return chr
}

func mustLoad(t *testing.T, prg, chr []byte, mapperID uint8, mirror MirrorMode) *Cartridge {
	t.Helper()
	cart, err := Load(prg, chr, mapperID, mirror)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cart
}

func assertRead(t *testing.T, m Mapper, address uint16, expected uint8) {
	t.Helper()
	if got := m.Read(address); got != expected {
		t.Errorf("Read(0x%04X): expected 0x%02X, got 0x%02X", address, expected, got)
	}
}

func TestMapper000_PRGMirroring_16KB(t *testing.T) {
	cart := mustLoad(t, bankedPRG(1, 0x2000), nil, 0, MirrorHorizontal)
	m := cart.Mapper()

	m.Write(0x8000, 0xFF) // ROM writes are ignored
	assertRead(t, m, 0x8000, 0)
	assertRead(t, m, 0xA000, 1)
	assertRead(t, m, 0xC000, 0)
	assertRead(t, m, 0xE000, 1)
}

func TestMapper000_CHRRAM_ShouldBeWritable(t *testing.T) {
	cart := mustLoad(t, bankedPRG(1, 0x4000), nil, 0, MirrorHorizontal)
	m := cart.Mapper()
	m.Write(0x1234, 0x77)
	assertRead(t, m, 0x1234, 0x77)

	rom := mustLoad(t, bankedPRG(1, 0x4000), bankedCHR(1, 0x2000), 0, MirrorHorizontal)
	rom.Mapper().Write(0x0010, 0x77)
	assertRead(t, rom.Mapper(), 0x0010, 0)
}

func TestMapper000_PRGRAM(t *testing.T) {
	m := mustLoad(t, bankedPRG(2, 0x4000), nil, 0, MirrorVertical).Mapper()
	m.Write(0x6000, 0x11)
	m.Write(0x7FFF, 0x22)
	assertRead(t, m, 0x6000, 0x11)
	assertRead(t, m, 0x7FFF, 0x22)
	if m.Mirroring() != MirrorVertical {
		t.Errorf("Expected vertical mirroring, got %v", m.Mirroring())
	}
}

// writeMMC1 feeds value through the MMC1 serial port, LSB first.
func writeMMC1(m Mapper, address uint16, value uint8) {
	for i := 0; i < 5; i++ {
		m.Write(address, (value>>i)&1)
	}
}

func TestMapper001_PowerOn_ShouldFixLastBank(t *testing.T) {
	m := mustLoad(t, bankedPRG(8, 0x4000), nil, 1, MirrorHorizontal).Mapper()
	assertRead(t, m, 0x8000, 0)
	assertRead(t, m, 0xC000, 7)
}

func TestMapper001_PRGModes(t *testing.T) {
	tests := []struct {
		name     string
		control  uint8
		prg      uint8
		expect80 uint8
		expectC0 uint8
	}{
		{"mode 3 switch low", 0x0C, 3, 3, 7},
		{"mode 2 switch high", 0x08, 5, 0, 5},
		{"mode 0 32KB even", 0x00, 4, 4, 5},
		{"mode 1 32KB odd ignored", 0x04, 5, 4, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustLoad(t, bankedPRG(8, 0x4000), nil, 1, MirrorHorizontal).Mapper()
			writeMMC1(m, 0x8000, tt.control)
			writeMMC1(m, 0xE000, tt.prg)
			assertRead(t, m, 0x8000, tt.expect80)
			assertRead(t, m, 0xC000, tt.expectC0)
		})
	}
}

func TestMapper001_CHRBanking(t *testing.T) {
	m := mustLoad(t, bankedPRG(2, 0x4000), bankedCHR(4, 0x1000), 1, MirrorHorizontal).Mapper()

	writeMMC1(m, 0x8000, 0x1C) // 4KB CHR mode
	writeMMC1(m, 0xA000, 5)
	writeMMC1(m, 0xC000, 2)
	assertRead(t, m, 0x0000, 5)
	assertRead(t, m, 0x1000, 2)

	writeMMC1(m, 0x8000, 0x0C) // 8KB CHR mode
	writeMMC1(m, 0xA000, 3)
	assertRead(t, m, 0x0000, 2)
	assertRead(t, m, 0x1000, 3)
}

func TestMapper001_Mirroring(t *testing.T) {
	expected := []MirrorMode{MirrorSingleScreen0, MirrorSingleScreen1, MirrorVertical, MirrorHorizontal}
	m := mustLoad(t, bankedPRG(2, 0x4000), nil, 1, MirrorHorizontal).Mapper()
	for mode, want := range expected {
		writeMMC1(m, 0x8000, 0x0C|uint8(mode))
		if got := m.Mirroring(); got != want {
			t.Errorf("Control %d: expected %v, got %v", mode, want, got)
		}
	}
}

func TestMapper001_ResetBit_ShouldClearShiftRegister(t *testing.T) {
	m := mustLoad(t, bankedPRG(8, 0x4000), nil, 1, MirrorHorizontal).Mapper()
	m.Write(0xE000, 1)
	m.Write(0xE000, 1)
	m.Write(0xE000, 0x80)
	writeMMC1(m, 0xE000, 2)
	assertRead(t, m, 0x8000, 2)
}

func TestMapper002_BankSwitching(t *testing.T) {
	m := mustLoad(t, bankedPRG(8, 0x4000), nil, 2, MirrorVertical).Mapper()
	assertRead(t, m, 0x8000, 0)
	assertRead(t, m, 0xC000, 7)

	m.Write(0x8000, 3)
	assertRead(t, m, 0x8000, 3)
	assertRead(t, m, 0xBFFF, 3)
	assertRead(t, m, 0xFFFF, 7)

	m.Write(0xFFFF, 9) // wraps modulo bank count
	assertRead(t, m, 0x8000, 1)
}

func TestMapper003_CHRBankSwitching(t *testing.T) {
	m := mustLoad(t, bankedPRG(2, 0x4000), bankedCHR(4, 0x2000), 3, MirrorHorizontal).Mapper()
	assertRead(t, m, 0x0000, 0)

	m.Write(0x8000, 2)
	assertRead(t, m, 0x0000, 2)
	assertRead(t, m, 0x1FFF, 2)

	m.Write(0xC000, 5)
	assertRead(t, m, 0x0000, 1)
	assertRead(t, m, 0x8000, 0)
	assertRead(t, m, 0xC000, 1)
}

func TestMapper004_PRGBanking(t *testing.T) {
	m := mustLoad(t, bankedPRG(4, 0x2000), bankedCHR(1, 0x0400), 4, MirrorHorizontal).Mapper()

	m.Write(0x8000, 6)
	m.Write(0x8001, 3)
	m.Write(0x8000, 7)
	m.Write(0x8001, 4)
	assertRead(t, m, 0x8000, 3)
	assertRead(t, m, 0xA000, 4)
	assertRead(t, m, 0xC000, 6)
	assertRead(t, m, 0xE000, 7)

	m.Write(0x8000, 0x40) // swap 0x8000 and 0xC000
	assertRead(t, m, 0x8000, 6)
	assertRead(t, m, 0xC000, 3)
	assertRead(t, m, 0xE000, 7)
}

func TestMapper004_CHRBanking(t *testing.T) {
	m := mustLoad(t, bankedPRG(2, 0x2000), bankedCHR(2, 0x0400), 4, MirrorHorizontal).Mapper()

	m.Write(0x8000, 0)
	m.Write(0x8001, 4) // 2KB bank at 0x0000
	m.Write(0x8000, 2)
	m.Write(0x8001, 9) // 1KB bank at 0x1000

	assertRead(t, m, 0x0000, 4)
	assertRead(t, m, 0x0400, 5)
	assertRead(t, m, 0x1000, 9)

	m.Write(0x8000, 0x80) // invert CHR halves
	assertRead(t, m, 0x0000, 9)
	assertRead(t, m, 0x1000, 4)
	assertRead(t, m, 0x1400, 5)
}

func TestMapper004_Mirroring(t *testing.T) {
	m := mustLoad(t, bankedPRG(2, 0x2000), nil, 4, MirrorHorizontal).Mapper()
	m.Write(0xA000, 0)
	if m.Mirroring() != MirrorVertical {
		t.Errorf("Expected vertical, got %v", m.Mirroring())
	}
	m.Write(0xA000, 1)
	if m.Mirroring() != MirrorHorizontal {
		t.Errorf("Expected horizontal, got %v", m.Mirroring())
	}

	four := mustLoad(t, bankedPRG(2, 0x2000), nil, 4, MirrorFourScreen).Mapper()
	four.Write(0xA000, 0)
	if four.Mirroring() != MirrorFourScreen {
		t.Errorf("Expected four-screen to be fixed, got %v", four.Mirroring())
	}
}

func TestMapper004_ScanlineIRQ(t *testing.T) {
	m := mustLoad(t, bankedPRG(2, 0x2000), nil, 4, MirrorHorizontal).Mapper()
	m.Write(0xC000, 2) // latch
	m.Write(0xC001, 0) // reload
	m.Write(0xE001, 0) // enable

	m.NotifyScanline() // counter reloads to 2
	if m.IRQPending() {
		t.Fatal("IRQ asserted after reload")
	}
	m.NotifyScanline()
	if m.IRQPending() {
		t.Fatal("IRQ asserted at counter 1")
	}
	m.NotifyScanline()
	if !m.IRQPending() {
		t.Fatal("Expected IRQ when counter reaches zero")
	}

	m.Write(0xE000, 0)
	if m.IRQPending() {
		t.Error("Expected IRQ acknowledged by $E000")
	}
	for i := 0; i < 6; i++ {
		m.NotifyScanline()
	}
	if m.IRQPending() {
		t.Error("Expected no IRQ while disabled")
	}
}

func TestMapperState_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		mapperID uint8
		setup    func(m Mapper)
		probe    []uint16
	}{
		{"NROM", 0, func(m Mapper) { m.Write(0x6100, 0x42); m.Write(0x0100, 0x24) }, []uint16{0x6100, 0x0100}},
		{"MMC1", 1, func(m Mapper) { writeMMC1(m, 0x8000, 0x0E); writeMMC1(m, 0xE000, 5); m.Write(0xE000, 1) }, []uint16{0x8000, 0xC000}},
		{"UxROM", 2, func(m Mapper) { m.Write(0x8000, 6) }, []uint16{0x8000, 0xC000}},
		{"CNROM", 3, func(m Mapper) { m.Write(0x8000, 1); m.Write(0x6000, 9) }, []uint16{0x0000, 0x6000}},
		{"MMC3", 4, func(m Mapper) { m.Write(0x8000, 0x46); m.Write(0x8001, 5); m.Write(0xC000, 7); m.Write(0xE001, 0) }, []uint16{0x8000, 0xC000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := mustLoad(t, bankedPRG(8, 0x2000), nil, tt.mapperID, MirrorHorizontal).Mapper()
			tt.setup(src)
			e := state.NewEncoder()
			src.SaveState(e)

			dst := mustLoad(t, bankedPRG(8, 0x2000), nil, tt.mapperID, MirrorHorizontal).Mapper()
			if err := dst.LoadState(state.NewDecoder(e.Snapshot())); err != nil {
				t.Fatalf("LoadState failed: %v", err)
			}
			for _, address := range tt.probe {
				if a, b := src.Read(address), dst.Read(address); a != b {
					t.Errorf("Read(0x%04X): source 0x%02X, restored 0x%02X", address, a, b)
				}
			}
			if src.Mirroring() != dst.Mirroring() {
				t.Errorf("Mirroring mismatch: %v vs %v", src.Mirroring(), dst.Mirroring())
			}
		})
	}
}

func TestMapperState_MissingKey_ShouldFail(t *testing.T) {
	m := mustLoad(t, bankedPRG(2, 0x2000), nil, 4, MirrorHorizontal).Mapper()
	e := state.NewEncoder()
	m.SaveState(e)
	snap := e.Snapshot()
	delete(snap, "irq_counter")

	err := m.LoadState(state.NewDecoder(snap))
	var missing *state.MissingStateError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingStateError, got %v", err)
	}
	if missing.Key != "irq_counter" {
		t.Errorf("Expected key irq_counter, got %q", missing.Key)
	}
}

func TestMMC3State_BadRegisterSelect_ShouldBeMasked(t *testing.T) {
	m := mustLoad(t, bankedPRG(8, 0x2000), nil, 4, MirrorHorizontal).Mapper()
	e := state.NewEncoder()
	m.SaveState(e)
	snap := e.Snapshot()
	snap["register"] = []byte{0xFF}

	if err := m.LoadState(state.NewDecoder(snap)); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	m.Write(0x8001, 3)
	if got := m.Read(0xA000); got != 3 {
		t.Errorf("Read(0xA000) = %d, want bank 3 through R7", got)
	}
}
