package vcs

import (
	"testing"

	"github.com/atari2600-core/vcscore/cartridge"
	"github.com/atari2600-core/vcscore/cpu"
)

// romWithProgram is a tiny convenience builder for hand-assembled test
// programs, mirroring the style of cpu_test.go's setup helper.
func romWithProgram(prog []uint8, loadAt uint16) []uint8 {
	rom := make([]uint8, 4096)
	off := loadAt - 0x1000
	copy(rom[off:], prog)
	// Reset vector -> loadAt.
	rom[0x0FFC] = uint8(loadAt & 0xFF)
	rom[0x0FFD] = uint8(loadAt >> 8)
	return rom
}

func newTestEmulator(t *testing.T, prog []uint8) *Emulator {
	t.Helper()
	rom := romWithProgram(prog, 0x1000)
	e, err := Init(&Def{ROM: rom, Scheme: cartridge.Scheme4K})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return e
}

func TestInitPowersOnAtResetVector(t *testing.T) {
	e := newTestEmulator(t, []uint8{0xEA}) // NOP
	if e.cpu.PC != 0x1000 {
		t.Errorf("PC after PowerOn = 0x%04X, want 0x1000", e.cpu.PC)
	}
}

func TestStepAdvancesTIAThreeTimesCPUCycles(t *testing.T) {
	e := newTestEmulator(t, []uint8{0xEA}) // NOP, 2 cycles
	if err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if e.tia.Cycle() != e.cpu.Cycle*3 {
		t.Errorf("tia cycle = %d, want 3x cpu cycle %d", e.tia.Cycle(), e.cpu.Cycle)
	}
}

func TestRAMReadWriteThroughBus(t *testing.T) {
	// LDA #$42 ; STA $80 ; LDA $80
	e := newTestEmulator(t, []uint8{0xA9, 0x42, 0x85, 0x80, 0xA5, 0x80})
	for i := 0; i < 3; i++ {
		if err := e.Step(); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	if e.cpu.A != 0x42 {
		t.Errorf("A after round trip through RAM = 0x%02X, want 0x42", e.cpu.A)
	}
}

func TestRAMMirrorAliasesPrimaryRAM(t *testing.T) {
	// STA $80 leaves a value readable at its 0x0180 mirror.
	e := newTestEmulator(t, []uint8{0xA9, 0x7E, 0x85, 0x80})
	for i := 0; i < 2; i++ {
		if err := e.Step(); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	got, err := e.bus.ReadByte(0x0180)
	if err != nil {
		t.Fatalf("ReadByte(0x0180): %v", err)
	}
	if got != 0x7E {
		t.Errorf("mirror read = 0x%02X, want 0x7E", got)
	}
}

func TestROMMirroredAtTopOfAddressSpace(t *testing.T) {
	e := newTestEmulator(t, []uint8{0xEA})
	got, err := e.bus.ReadByte(0xF000)
	if err != nil {
		t.Fatalf("ReadByte(0xF000): %v", err)
	}
	if got != 0xEA {
		t.Errorf("ROM mirror at 0xF000 = 0x%02X, want 0xEA (the NOP at 0x1000)", got)
	}
}

func TestWSyncStallsToNextScanline(t *testing.T) {
	// STA WSYNC ($02); A is irrelevant here.
	e := newTestEmulator(t, []uint8{0x85, 0x02})
	if err := e.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if e.tia.Cycle()%228 != 0 {
		t.Errorf("tia cycle %d not aligned to a scanline boundary after WSYNC", e.tia.Cycle())
	}
}

func TestFatalFaultOnInvalidOpcode(t *testing.T) {
	e := newTestEmulator(t, []uint8{0x02}) // no documented meaning
	err := e.Step()
	if err == nil {
		t.Fatal("expected a fatal fault for an invalid opcode")
	}
	ff, ok := err.(*FatalFault)
	if !ok {
		t.Fatalf("error type = %T, want *FatalFault", err)
	}
	if ff.Dump == "" {
		t.Error("FatalFault.Dump should contain a register/chip snapshot")
	}
	var halt cpu.HaltOpcode
	if !asHaltOpcode(ff.Err, &halt) {
		t.Errorf("underlying error = %v, want a HaltOpcode", ff.Err)
	}
}

func asHaltOpcode(err error, out *cpu.HaltOpcode) bool {
	h, ok := err.(cpu.HaltOpcode)
	if ok {
		*out = h
	}
	return ok
}

func TestInputsRoundTripThroughPIASWCHA(t *testing.T) {
	e := newTestEmulator(t, []uint8{0xEA})
	e.Inputs().P0Up.Set(true)
	v := e.pia.BusRead(0x00) // SWCHA
	if v&0x10 != 0 {
		t.Errorf("SWCHA = 0x%02X, want bit 4 (P0 up) clear when pressed (active-low)", v)
	}
	if v&0x20 == 0 {
		t.Errorf("SWCHA = 0x%02X, want bit 5 (P0 down) set when not pressed", v)
	}
}

func TestStopHaltsRun(t *testing.T) {
	e := newTestEmulator(t, []uint8{0xEA})
	e.Stop()
	if err := e.Run(); err != nil {
		t.Fatalf("Run after Stop: %v", err)
	}
}

func TestBRKWithZeroVectorExitsCleanly(t *testing.T) {
	e := newTestEmulator(t, []uint8{0x00}) // BRK; ROM's IRQ vector is zero (unset)
	err := e.Step()
	if _, ok := err.(cpu.ProgramExit); !ok {
		t.Fatalf("error type = %T, want cpu.ProgramExit", err)
	}
	if err := e.Run(); err != nil {
		t.Errorf("Run after a clean ProgramExit should see running already cleared: %v", err)
	}
}
