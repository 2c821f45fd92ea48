package cpu

import "testing"

func newInterruptHelper() *CPUTestHelper {
	helper := NewCPUTestHelper()
	helper.Memory.SetBytes(nmiVector, 0x00, 0x90)
	helper.Memory.SetBytes(irqVector, 0x00, 0xA0)
	helper.LoadProgram(0x8000, 0xEA, 0xEA, 0xEA)
	helper.LoadProgram(0x9000, 0xEA, 0xEA, 0xEA)
	helper.LoadProgram(0xA000, 0xEA, 0xEA, 0xEA)
	return helper
}

func TestNMI_ShouldBeServicedBeforeNextInstruction(t *testing.T) {
	helper := newInterruptHelper()
	helper.CPU.TriggerNMI()

	cycles := helper.Run(t, 1)

	if cycles != InterruptCycles+2 {
		t.Errorf("Expected %d cycles, got %d", InterruptCycles+2, cycles)
	}
	helper.AssertRegisters(t, "NMI", 0, 0, 0, 0xFA, 0x9001)
	helper.AssertMemory(t, "return high", 0x01FD, 0x80)
	helper.AssertMemory(t, "return low", 0x01FC, 0x00)
	helper.AssertMemory(t, "pushed status", 0x01FB, 0x24)
	if helper.CPU.NMIPending() {
		t.Error("NMI latch should be cleared once serviced")
	}
}

func TestNMI_ShouldIgnoreInterruptDisable(t *testing.T) {
	helper := newInterruptHelper()
	if !helper.CPU.I {
		t.Fatal("I should be set after reset")
	}
	helper.CPU.TriggerNMI()
	helper.Run(t, 1)
	if helper.CPU.PC != 0x9001 {
		t.Errorf("PC = %04X, want 9001", helper.CPU.PC)
	}
}

func TestNMI_ShouldBeServicedOnce(t *testing.T) {
	helper := newInterruptHelper()
	helper.CPU.TriggerNMI()
	helper.CPU.TriggerNMI()
	helper.Run(t, 1)
	if cycles := helper.Run(t, 1); cycles != 2 {
		t.Errorf("Second step should be a plain NOP, took %d cycles", cycles)
	}
}

func TestIRQ_ShouldBeMaskedByInterruptDisable(t *testing.T) {
	helper := newInterruptHelper()
	helper.CPU.SetIRQ(true)
	helper.Run(t, 1)
	if helper.CPU.PC != 0x8001 {
		t.Errorf("Masked IRQ was taken, PC = %04X", helper.CPU.PC)
	}
}

func TestIRQ_LevelTriggered(t *testing.T) {
	helper := newInterruptHelper()
	helper.LoadProgram(0x8000, 0x58, 0xEA) // CLI; NOP
	helper.Run(t, 1)

	helper.CPU.SetIRQ(true)
	if cycles := helper.Run(t, 1); cycles != InterruptCycles+2 {
		t.Errorf("Expected %d cycles, got %d", InterruptCycles+2, cycles)
	}
	if helper.CPU.PC != 0xA001 {
		t.Errorf("PC = %04X, want A001", helper.CPU.PC)
	}
	helper.AssertMemory(t, "pushed status", 0x01FB, 0x20)

	// The line is still asserted but I is now set
	helper.Run(t, 1)
	if helper.CPU.PC != 0xA002 {
		t.Errorf("IRQ re-entered while masked, PC = %04X", helper.CPU.PC)
	}
}

func TestIRQ_ReleasedLine_ShouldNotInterrupt(t *testing.T) {
	helper := newInterruptHelper()
	helper.LoadProgram(0x8000, 0x58, 0xEA)
	helper.Run(t, 1)
	helper.CPU.SetIRQ(true)
	helper.CPU.SetIRQ(false)
	helper.Run(t, 1)
	if helper.CPU.PC != 0x8002 {
		t.Errorf("PC = %04X, want 8002", helper.CPU.PC)
	}
}

func TestNMI_ShouldTakePriorityOverIRQ(t *testing.T) {
	helper := newInterruptHelper()
	helper.CPU.I = false
	helper.CPU.SetIRQ(true)
	helper.CPU.TriggerNMI()

	helper.Run(t, 1)
	if helper.CPU.PC != 0x9001 {
		t.Errorf("PC = %04X, want NMI handler", helper.CPU.PC)
	}
}

func TestInterrupt_BeforeIllegalOpcode_ShouldReportServiceCycles(t *testing.T) {
	helper := newInterruptHelper()
	helper.LoadProgram(0x9000, 0x02)
	helper.CPU.TriggerNMI()

	cycles, err := helper.CPU.Step()
	if err == nil {
		t.Fatal("Expected an illegal opcode error")
	}
	if cycles != InterruptCycles {
		t.Errorf("Expected %d cycles, got %d", InterruptCycles, cycles)
	}
	if helper.CPU.PC != 0x9000 {
		t.Errorf("PC = %04X, want 9000", helper.CPU.PC)
	}
}
