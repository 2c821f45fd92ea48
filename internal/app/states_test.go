package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"nescore/internal/cartridge"
)

func newTestStateManager(t *testing.T) *StateManager {
	t.Helper()
	sm, err := NewStateManager(filepath.Join(t.TempDir(), "states"), 4)
	if err != nil {
		t.Fatalf("NewStateManager failed: %v", err)
	}
	return sm
}

func TestStateManager_SaveLoad_ShouldRestoreConsole(t *testing.T) {
	sm := newTestStateManager(t)
	c := newTestConsole(t, toneProgram)
	runFrames(t, c, 5)

	if err := sm.Save(c, 1, "game.nes"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	wantCycles, wantFrame := c.Cycles(), c.Frame()
	wantRAM := append([]uint8(nil), c.RAM()...)
	wantPixels := append([]uint32(nil), c.FrameBuffer()...)

	runFrames(t, c, 7)
	if c.Cycles() == wantCycles {
		t.Fatal("console did not advance")
	}

	if err := sm.Load(c, 1, "game.nes"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Cycles() != wantCycles || c.Frame() != wantFrame {
		t.Errorf("restored cycles/frame = %d/%d, want %d/%d", c.Cycles(), c.Frame(), wantCycles, wantFrame)
	}
	if !bytes.Equal(c.RAM(), wantRAM) {
		t.Error("RAM differs after load")
	}
	for i, p := range c.FrameBuffer() {
		if p != wantPixels[i] {
			t.Fatalf("pixel %d = %06X after load, want %06X", i, p, wantPixels[i])
		}
	}
}

func TestStateManager_Load_ShouldContinueDeterministically(t *testing.T) {
	sm := newTestStateManager(t)
	c := newTestConsole(t, toneProgram)
	runFrames(t, c, 3)
	if err := sm.Save(c, 0, "game.nes"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	runFrames(t, c, 4)
	wantRAM := append([]uint8(nil), c.RAM()...)
	wantCycles := c.Cycles()

	if err := sm.Load(c, 0, "game.nes"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	runFrames(t, c, 4)

	if c.Cycles() != wantCycles || !bytes.Equal(c.RAM(), wantRAM) {
		t.Error("replay after load diverged from the original run")
	}
}

func TestStateManager_Load_DifferentROM_ShouldReturnMismatch(t *testing.T) {
	sm := newTestStateManager(t)
	saved := newTestConsole(t, toneProgram)
	runFrames(t, saved, 2)
	if err := sm.Save(saved, 0, "game.nes"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	other := newTestConsole(t, func(b *cartridge.TestROMBuilder) {
		b.WithCode(0x8000, 0x4C, 0x00, 0x80)
	})
	runFrames(t, other, 1)
	before := other.Cycles()

	err := sm.Load(other, 0, "game.nes")
	var mismatch *StateMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Load error = %v, want StateMismatchError", err)
	}
	if other.Cycles() != before {
		t.Error("console changed after a rejected load")
	}
}

func TestStateManager_Import_WrongFormat_ShouldReturnMismatch(t *testing.T) {
	sm := newTestStateManager(t)
	c := newTestConsole(t, toneProgram)

	saved := sm.capture(c, 0, "game.nes")
	saved.Format = saveStateFormat + 1
	data, err := json.Marshal(saved)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "future.state")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	var mismatch *StateMismatchError
	if err := sm.ImportState(c, path); !errors.As(err, &mismatch) {
		t.Errorf("ImportState error = %v, want StateMismatchError", err)
	}
}

func TestStateManager_Import_MissingField_ShouldKeepConsole(t *testing.T) {
	sm := newTestStateManager(t)
	c := newTestConsole(t, toneProgram)
	runFrames(t, c, 2)

	saved := sm.capture(c, 0, "game.nes")
	delete(saved.State, "console.cycles")
	data, err := json.Marshal(saved)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "partial.state")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	before := c.Cycles()
	if err := sm.ImportState(c, path); err == nil {
		t.Fatal("ImportState should fail for a missing field")
	}
	if c.Cycles() != before {
		t.Error("console changed after a failed import")
	}
}

func TestStateManager_ExportImport_ShouldRoundTrip(t *testing.T) {
	sm := newTestStateManager(t)
	c := newTestConsole(t, toneProgram)
	runFrames(t, c, 2)

	path := filepath.Join(t.TempDir(), "export", "snap.state")
	if err := sm.ExportState(c, path, "game.nes"); err != nil {
		t.Fatalf("ExportState failed: %v", err)
	}
	want := c.Cycles()
	runFrames(t, c, 2)

	if err := sm.ImportState(c, path); err != nil {
		t.Fatalf("ImportState failed: %v", err)
	}
	if c.Cycles() != want {
		t.Errorf("Cycles() = %d after import, want %d", c.Cycles(), want)
	}
}

func TestStateManager_Slots_ShouldTrackUsage(t *testing.T) {
	sm := newTestStateManager(t)
	c := newTestConsole(t, toneProgram)
	runFrames(t, c, 1)

	if sm.HasSaveState(2, "game.nes") {
		t.Error("slot 2 should start empty")
	}
	if err := sm.Save(c, 2, "game.nes"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !sm.HasSaveState(2, "game.nes") {
		t.Error("slot 2 should be used after save")
	}
	if sm.HasSaveState(2, "other.nes") {
		t.Error("slots must be kept per ROM")
	}

	infos := sm.SlotInfo("game.nes")
	if len(infos) != sm.MaxSlots() {
		t.Fatalf("SlotInfo returned %d slots, want %d", len(infos), sm.MaxSlots())
	}
	for _, info := range infos {
		if info.Used != (info.SlotNumber == 2) {
			t.Errorf("slot %d used = %v", info.SlotNumber, info.Used)
		}
	}
	if infos[2].FrameCount != c.Frame() || infos[2].FileSize == 0 {
		t.Errorf("slot 2 info = %+v", infos[2])
	}

	if err := sm.DeleteState(2, "game.nes"); err != nil {
		t.Fatalf("DeleteState failed: %v", err)
	}
	if sm.HasSaveState(2, "game.nes") {
		t.Error("slot 2 should be empty after delete")
	}
	if err := sm.DeleteState(2, "game.nes"); err == nil {
		t.Error("deleting an empty slot should fail")
	}
}

func TestStateManager_InvalidSlot_ShouldFail(t *testing.T) {
	sm := newTestStateManager(t)
	c := newTestConsole(t, toneProgram)

	for _, slot := range []int{-1, sm.MaxSlots()} {
		if err := sm.Save(c, slot, "game.nes"); err == nil {
			t.Errorf("Save(slot %d) should fail", slot)
		}
		if err := sm.Load(c, slot, "game.nes"); err == nil {
			t.Errorf("Load(slot %d) should fail", slot)
		}
	}
}

func TestROMChecksum_ShouldDependOnROMContents(t *testing.T) {
	a := newTestConsole(t, toneProgram)
	b := newTestConsole(t, toneProgram)
	c := newTestConsole(t, nil)

	if ROMChecksum(a.Cartridge()) != ROMChecksum(b.Cartridge()) {
		t.Error("identical ROMs should have the same checksum")
	}
	if ROMChecksum(a.Cartridge()) == ROMChecksum(c.Cartridge()) {
		t.Error("different ROMs should have different checksums")
	}
	if len(ROMChecksum(a.Cartridge())) != 64 {
		t.Error("checksum should be hex SHA-256")
	}
}
