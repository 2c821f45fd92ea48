package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nescore/internal/cartridge"
	"nescore/internal/console"
	"nescore/internal/state"
	"nescore/internal/version"
)

// saveStateFormat is bumped whenever the snapshot key set changes
const saveStateFormat = 1

// StateManager stores console snapshots in numbered slots per ROM
type StateManager struct {
	saveDirectory string
	maxSlots      int
}

// SaveState is the on-disk form of one snapshot. Snapshot values are
// base64 encoded by encoding/json.
type SaveState struct {
	Format      int            `json:"format"`
	Version     string         `json:"version"`
	Timestamp   time.Time      `json:"timestamp"`
	ROMPath     string         `json:"rom_path"`
	ROMChecksum string         `json:"rom_checksum"`
	SlotNumber  int            `json:"slot_number"`
	FrameCount  uint64         `json:"frame_count"`
	CycleCount  uint64         `json:"cycle_count"`
	State       state.Snapshot `json:"state"`
}

// StateSlotInfo contains information about a save state slot
type StateSlotInfo struct {
	SlotNumber int       `json:"slot_number"`
	Used       bool      `json:"used"`
	Timestamp  time.Time `json:"timestamp"`
	FrameCount uint64    `json:"frame_count"`
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
}

// StateMismatchError is returned when a save state belongs to another ROM
// or an incompatible build.
type StateMismatchError struct {
	Path   string
	Reason string
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("save state %s: %s", e.Path, e.Reason)
}

// NewStateManager creates a state manager writing into saveDirectory
func NewStateManager(saveDirectory string, maxSlots int) (*StateManager, error) {
	if maxSlots <= 0 {
		maxSlots = 10
	}
	if err := os.MkdirAll(saveDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &StateManager{saveDirectory: saveDirectory, maxSlots: maxSlots}, nil
}

// ROMChecksum returns the hex SHA-256 of the cartridge ROM image
func ROMChecksum(cart *cartridge.Cartridge) string {
	sum := sha256.Sum256(cart.Image())
	return hex.EncodeToString(sum[:])
}

// Save writes the console state into slot
func (sm *StateManager) Save(c *console.Console, slot int, romPath string) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	return sm.writeFile(sm.slotPath(slot, romPath), sm.capture(c, slot, romPath))
}

// Load restores slot into the console. The console is left untouched on error.
func (sm *StateManager) Load(c *console.Console, slot int, romPath string) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	return sm.restoreFile(c, sm.slotPath(slot, romPath))
}

// ExportState writes the console state to an arbitrary file
func (sm *StateManager) ExportState(c *console.Console, filePath, romPath string) error {
	return sm.writeFile(filePath, sm.capture(c, -1, romPath))
}

// ImportState restores the console from an arbitrary file
func (sm *StateManager) ImportState(c *console.Console, filePath string) error {
	return sm.restoreFile(c, filePath)
}

func (sm *StateManager) capture(c *console.Console, slot int, romPath string) *SaveState {
	return &SaveState{
		Format:      saveStateFormat,
		Version:     version.GetVersion(),
		Timestamp:   time.Now(),
		ROMPath:     romPath,
		ROMChecksum: ROMChecksum(c.Cartridge()),
		SlotNumber:  slot,
		FrameCount:  c.Frame(),
		CycleCount:  c.Cycles(),
		State:       c.Snapshot(),
	}
}

func (sm *StateManager) restoreFile(c *console.Console, filePath string) error {
	saved, err := readSaveState(filePath)
	if err != nil {
		return err
	}
	if saved.Format != saveStateFormat {
		return &StateMismatchError{Path: filePath, Reason: fmt.Sprintf("format %d, want %d", saved.Format, saveStateFormat)}
	}
	if want := ROMChecksum(c.Cartridge()); saved.ROMChecksum != want {
		return &StateMismatchError{Path: filePath, Reason: "saved for a different ROM"}
	}
	if err := c.Restore(saved.State); err != nil {
		return fmt.Errorf("failed to restore %s: %w", filePath, err)
	}
	return nil
}

func (sm *StateManager) writeFile(filePath string, saved *SaveState) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal save state: %w", err)
	}
	// Write then rename so a crash never leaves a truncated slot behind
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write save state: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write save state: %w", err)
	}
	return nil
}

func readSaveState(filePath string) (*SaveState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read save state: %w", err)
	}
	var saved SaveState
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("failed to parse save state %s: %w", filePath, err)
	}
	return &saved, nil
}

func (sm *StateManager) checkSlot(slot int) error {
	if slot < 0 || slot >= sm.maxSlots {
		return fmt.Errorf("invalid save slot: %d (must be 0-%d)", slot, sm.maxSlots-1)
	}
	return nil
}

// slotPath names slot files after the ROM so different games never collide
func (sm *StateManager) slotPath(slot int, romPath string) string {
	name := strings.TrimSuffix(filepath.Base(romPath), filepath.Ext(romPath))
	return filepath.Join(sm.saveDirectory, fmt.Sprintf("%s_slot%d.state", name, slot))
}

// SlotInfo lists every slot for romPath
func (sm *StateManager) SlotInfo(romPath string) []StateSlotInfo {
	infos := make([]StateSlotInfo, sm.maxSlots)
	for slot := range infos {
		path := sm.slotPath(slot, romPath)
		infos[slot] = StateSlotInfo{SlotNumber: slot, FilePath: path}
		stat, err := os.Stat(path)
		if err != nil {
			continue
		}
		infos[slot].Used = true
		infos[slot].FileSize = stat.Size()
		if saved, err := readSaveState(path); err == nil {
			infos[slot].Timestamp = saved.Timestamp
			infos[slot].FrameCount = saved.FrameCount
		}
	}
	return infos
}

// HasSaveState reports whether slot holds a state for romPath
func (sm *StateManager) HasSaveState(slot int, romPath string) bool {
	if sm.checkSlot(slot) != nil {
		return false
	}
	_, err := os.Stat(sm.slotPath(slot, romPath))
	return err == nil
}

// DeleteState removes a slot file
func (sm *StateManager) DeleteState(slot int, romPath string) error {
	if err := sm.checkSlot(slot); err != nil {
		return err
	}
	err := os.Remove(sm.slotPath(slot, romPath))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no save state in slot %d", slot)
	}
	return err
}

// MaxSlots returns the number of slots
func (sm *StateManager) MaxSlots() int {
	return sm.maxSlots
}
