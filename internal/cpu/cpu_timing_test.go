package cpu

import "testing"

func TestTiming_PageCrossPenalty(t *testing.T) {
	tests := []struct {
		name    string
		program []uint8
		x, y    uint8
		cycles  int
	}{
		{"LDA abs,X same page", []uint8{0xBD, 0x00, 0x02}, 0x10, 0, 4},
		{"LDA abs,X crossed", []uint8{0xBD, 0xFF, 0x02}, 0x01, 0, 5},
		{"LDA abs,Y crossed", []uint8{0xB9, 0xF0, 0x02}, 0, 0x20, 5},
		{"STA abs,X crossed has no penalty", []uint8{0x9D, 0xFF, 0x02}, 0x01, 0, 5},
		{"INC abs,X crossed has no penalty", []uint8{0xFE, 0xFF, 0x02}, 0x01, 0, 7},
		{"DCP abs,Y crossed has no penalty", []uint8{0xDB, 0xFF, 0x02}, 0, 0x01, 7},
		{"LAX abs,Y crossed", []uint8{0xBF, 0xFF, 0x02}, 0, 0x01, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			helper := NewCPUTestHelper()
			helper.LoadProgram(0x8000, tt.program...)
			helper.CPU.X, helper.CPU.Y = tt.x, tt.y
			if cycles := helper.Run(t, 1); cycles != tt.cycles {
				t.Errorf("Took %d cycles, want %d", cycles, tt.cycles)
			}
		})
	}
}

func TestTiming_IndirectIndexedPageCross(t *testing.T) {
	helper := NewCPUTestHelper()
	helper.LoadProgram(0x8000, 0xB1, 0x20)
	helper.Memory.SetBytes(0x0020, 0xFF, 0x02)
	helper.CPU.Y = 0x01
	if cycles := helper.Run(t, 1); cycles != 6 {
		t.Errorf("LDA (zp),Y crossed took %d cycles, want 6", cycles)
	}
}

func TestTiming_Branches(t *testing.T) {
	tests := []struct {
		name   string
		origin uint16
		offset uint8
		zero   bool
		cycles int
		pc     uint16
	}{
		{"not taken", 0x8000, 0x10, true, 2, 0x8002},
		{"taken forward", 0x8000, 0x10, false, 3, 0x8012},
		{"taken backward", 0x8010, 0xFC, false, 3, 0x800E},
		{"taken across page", 0x80F0, 0x20, false, 4, 0x8112},
		{"taken backward across page", 0x8000, 0xF0, false, 4, 0x7FF2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			helper := NewCPUTestHelper()
			helper.CPU.PC = tt.origin
			helper.LoadProgram(tt.origin, 0xD0, tt.offset) // BNE
			helper.CPU.Z = tt.zero

			if cycles := helper.Run(t, 1); cycles != tt.cycles {
				t.Errorf("Took %d cycles, want %d", cycles, tt.cycles)
			}
			if helper.CPU.PC != tt.pc {
				t.Errorf("PC = %04X, want %04X", helper.CPU.PC, tt.pc)
			}
		})
	}
}

func TestTiming_AllBranchConditions(t *testing.T) {
	tests := []struct {
		opcode uint8
		set    func(c *CPU)
	}{
		{0x10, func(c *CPU) { c.N = false }},
		{0x30, func(c *CPU) { c.N = true }},
		{0x50, func(c *CPU) { c.V = false }},
		{0x70, func(c *CPU) { c.V = true }},
		{0x90, func(c *CPU) { c.C = false }},
		{0xB0, func(c *CPU) { c.C = true }},
		{0xD0, func(c *CPU) { c.Z = false }},
		{0xF0, func(c *CPU) { c.Z = true }},
	}
	for _, tt := range tests {
		helper := NewCPUTestHelper()
		helper.LoadProgram(0x8000, tt.opcode, 0x04)
		tt.set(helper.CPU)
		helper.Run(t, 1)
		if helper.CPU.PC != 0x8006 {
			t.Errorf("Branch %02X not taken, PC = %04X", tt.opcode, helper.CPU.PC)
		}
	}
}

func TestTiming_CycleCounterAccumulates(t *testing.T) {
	helper := NewCPUTestHelper()
	// LDA #$01 (2); STA $10 (3); INC $10 (5); JMP $8000 (3)
	helper.LoadProgram(0x8000, 0xA9, 0x01, 0x85, 0x10, 0xE6, 0x10, 0x4C, 0x00, 0x80)

	total := helper.Run(t, 8)
	if total != 26 {
		t.Errorf("Two loop passes took %d cycles, want 26", total)
	}
	if helper.CPU.Cycles() != 7+26 {
		t.Errorf("Cycles() = %d, want %d", helper.CPU.Cycles(), 7+26)
	}
}
