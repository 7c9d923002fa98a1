// Package vcs wires the registers/flags, memory bus, CPU, PIA, and TIA
// packages into a single Atari 2600 core. The CPU consumes whole
// instructions and TIA/PIA catch up to the cycles that instruction
// cost, rather than ticking one color clock at a time.
package vcs

import (
	"bytes"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/atari2600-core/vcscore/cartridge"
	"github.com/atari2600-core/vcscore/cpu"
	"github.com/atari2600-core/vcscore/memory"
	"github.com/atari2600-core/vcscore/pia"
	"github.com/atari2600-core/vcscore/tia"
)

// Memory map constants.
const (
	addrTIA          = uint16(0x0000)
	addrTIAEnd       = uint16(0x007F)
	addrRAM          = uint16(0x0080)
	addrRAMEnd       = uint16(0x00FF)
	addrTIAMirror    = uint16(0x0100)
	addrTIAMirEnd    = uint16(0x017F)
	addrRAMMirror    = uint16(0x0180)
	addrRAMMirEnd    = uint16(0x01FF)
	addrPIA          = uint16(0x0280)
	addrPIAEnd       = uint16(0x0297)
	addrPIAMirror    = uint16(0x0380)
	addrPIAMirEnd    = uint16(0x0397)
	addrROM          = uint16(0x1000)
	addrROMWindowEnd = uint16(0x1FFF)

	ramSize = 128
)

// toggleLine is a concurrency-safe io.Line: single writer (the
// presentation/input thread), single reader (the emulation thread).
// Out-of-order observation across two lines is tolerated, so a plain
// atomic bool is enough - no stronger synchronization is needed.
type toggleLine struct {
	v atomic.Bool
}

// Input implements io.Line.
func (t *toggleLine) Input() bool { return t.v.Load() }

// Set stores the line's new state. Safe to call from any goroutine.
func (t *toggleLine) Set(pressed bool) { t.v.Store(pressed) }

// Inputs holds the boolean input lines the console reads: the four
// directions are per-player via the embedded joystick pairs, the two
// fire buttons feed the TIA directly.
type Inputs struct {
	P0Up, P0Down, P0Left, P0Right toggleLine
	P1Up, P1Down, P1Left, P1Right toggleLine
	Fire0, Fire1                  toggleLine
}

// FatalFault is returned by Run/Step when the core hits an
// unrecoverable condition (an unmapped bus access, a write to ROM, or
// an undocumented opcode). Error carries the underlying error's text;
// Dump is a register/RAM/TIA/PIA snapshot meant to be written to
// standard error before the caller exits.
type FatalFault struct {
	Err  error
	Dump string
}

// Error implements error.
func (f *FatalFault) Error() string { return f.Err.Error() }

// Unwrap supports errors.Is/As against the underlying bus/cpu error.
func (f *FatalFault) Unwrap() error { return f.Err }

// Def supplies everything needed to build an Emulator.
type Def struct {
	ROM    []uint8
	Scheme cartridge.Scheme

	// FrameDone is invoked on every completed frame (TIA VSYNC falling
	// edge) with the just-finished frame. It runs on the emulation
	// goroutine; callers must copy the frame rather than retain the
	// pointer. A presentation thread can instead call Emulator.Frame,
	// which copies the last completed frame under the emulator's lock.
	FrameDone func(*tia.Frame)

	// Logger receives per-chip Debug() lines when Debug is true.
	// Defaults to log.Default() if nil.
	Logger *log.Logger
	Debug  bool
}

// Emulator owns the bus, CPU, PIA, and TIA for one running VCS, plus
// the cross-thread objects a concurrent frontend needs: a
// mutex-guarded framebuffer copy, the Inputs atomic booleans, and an
// atomic audio snapshot. Nothing outside this package holds a direct
// reference to any one chip; every access goes through the bus.
type Emulator struct {
	bus   *memory.Bus
	cpu   *cpu.Chip
	cache *cpu.Cache
	pia   *pia.Chip
	tia   *tia.TIA

	inputs Inputs

	logger *log.Logger
	debug  bool

	frameMu   sync.Mutex
	lastFrame tia.Frame

	running atomic.Bool
}

// Init builds the full 64K memory map and returns a powered-on
// Emulator. ROM size/scheme mismatches surface as the cartridge
// package's ErrSizeMismatch, a fatal condition the caller should
// report the same way as any other load failure.
func Init(def *Def) (*Emulator, error) {
	logger := def.Logger
	if logger == nil {
		logger = log.Default()
	}

	e := &Emulator{logger: logger, debug: def.Debug}

	bus := memory.NewBus(0x0100)

	romRegion, err := cartridge.Load(def.ROM, def.Scheme, addrROM)
	if err != nil {
		return nil, fmt.Errorf("vcs: cartridge load: %w", err)
	}

	userFrameDone := def.FrameDone
	tiaChip := tia.Init(&tia.Def{
		Fire0: &e.inputs.Fire0,
		Fire1: &e.inputs.Fire1,
		FrameDone: func(f *tia.Frame) {
			e.onFrameDone(f, userFrameDone)
		},
	})

	joysticks := pia.Joysticks{
		P0Up: &e.inputs.P0Up, P0Down: &e.inputs.P0Down,
		P0Left: &e.inputs.P0Left, P0Right: &e.inputs.P0Right,
		P1Up: &e.inputs.P1Up, P1Down: &e.inputs.P1Down,
		P1Left: &e.inputs.P1Left, P1Right: &e.inputs.P1Right,
	}
	piaChip := pia.Init(&pia.Def{Joysticks: joysticks})

	ramIdx := bus.AddRegion(memory.NewRAM(addrRAM, ramSize))
	tiaIdx := bus.AddRegion(&memory.Mapped{
		Start: addrTIA, End: addrTIAEnd,
		ReadFn: tiaChip.BusRead, WriteFn: tiaChip.BusWrite,
	})
	bus.AddRegion(&memory.Mirror{Start: addrTIAMirror, End: addrTIAMirEnd, TargetIndex: tiaIdx, Delta: int32(addrTIA) - int32(addrTIAMirror)})
	bus.AddRegion(&memory.Mirror{Start: addrRAMMirror, End: addrRAMMirEnd, TargetIndex: ramIdx, Delta: int32(addrRAM) - int32(addrRAMMirror)})
	piaIdx := bus.AddRegion(&memory.Mapped{
		Start: addrPIA, End: addrPIAEnd,
		ReadFn: piaChip.BusRead, WriteFn: piaChip.BusWrite,
	})
	bus.AddRegion(&memory.Mirror{Start: addrPIAMirror, End: addrPIAMirEnd, TargetIndex: piaIdx, Delta: int32(addrPIA) - int32(addrPIAMirror)})
	romIdx := bus.AddRegion(romRegion)

	// The CPU only has 13 address pins; every address above 0x1FFF
	// aliases the low 8K block bit-for-bit. That 8K pattern (TIA, RAM,
	// their +0x100 mirrors, PIA, and the 4K ROM window) therefore
	// repeats 8 times across the 64K space, landing the ROM window at
	// 0x1000, 0x3000, 0x5000, ..., 0xF000, with TIA/RAM/PIA re-aliased
	// into the low half of each of those same 8K blocks.
	const block = uint32(0x2000)
	for b := uint32(1); b < 8; b++ {
		base := uint16(b * block)
		mirror := func(start, end uint16, target int, primaryStart uint16) {
			bus.AddRegion(&memory.Mirror{
				Start: base + start, End: base + end, TargetIndex: target,
				Delta: int32(primaryStart) - int32(base+start),
			})
		}
		mirror(addrTIA, addrTIAEnd, tiaIdx, addrTIA)
		mirror(addrRAM, addrRAMEnd, ramIdx, addrRAM)
		mirror(addrTIAMirror, addrTIAMirEnd, tiaIdx, addrTIA)
		mirror(addrRAMMirror, addrRAMMirEnd, ramIdx, addrRAM)
		mirror(addrPIA, addrPIAEnd, piaIdx, addrPIA)
		mirror(addrPIAMirror, addrPIAMirEnd, piaIdx, addrPIA)
		mirror(addrROM, addrROMWindowEnd, romIdx, addrROM)
	}

	cpuChip := cpu.New(cpu.NMOS)
	if err := cpuChip.PowerOn(bus); err != nil {
		return nil, fmt.Errorf("vcs: cpu power-on: %w", err)
	}

	e.bus = bus
	e.cpu = cpuChip
	e.cache = cpu.NewCache()
	e.pia = piaChip
	e.tia = tiaChip
	e.running.Store(true)
	return e, nil
}

// Inputs returns the emulator's input-line block. Callers set
// direction/fire state from an input-polling goroutine; the emulation
// goroutine reads it through the PIA/TIA each Step.
func (e *Emulator) Inputs() *Inputs { return &e.inputs }

// Frame copies the last completed frame (saved at the TIA's most
// recent VSYNC falling edge) under Emulator's own lock, held only for
// the duration of the copy. Call this from the
// presentation thread on buffer swap, not from the emulation
// goroutine.
func (e *Emulator) Frame(dst *tia.Frame) {
	e.frameMu.Lock()
	*dst = e.lastFrame
	e.frameMu.Unlock()
}

// AudioSnapshot returns the current per-channel (volume, frequency,
// waveform) triples. Safe to call from any goroutine; tearing between
// the three fields of one triple is tolerated by callers.
func (e *Emulator) AudioSnapshot() [2]tia.AudioTriple { return e.tia.AudioSnapshot() }

// Stop clears a cooperative running flag. Run observes it between
// instructions, never mid-instruction.
func (e *Emulator) Stop() { e.running.Store(false) }

// onFrameDone is installed as the TIA's FrameDone callback at Init
// time via a closure over e, so Init can pass both the caller's
// FrameDone (if any) and this bookkeeping through to the same TIA
// instance without the TIA holding a reference back to Emulator.
func (e *Emulator) onFrameDone(f *tia.Frame, userCB func(*tia.Frame)) {
	e.frameMu.Lock()
	e.lastFrame = *f
	e.frameMu.Unlock()
	if userCB != nil {
		userCB(f)
	}
}

// Step executes exactly one CPU instruction, then advances TIA by
// three color clocks per consumed cycle and PIA by one pre-divider
// tick per consumed cycle: the CPU drives time, and TIA/PIA catch up
// lazily behind it. WSYNC's stall is folded into the same catch-up:
// if the instruction wrote WSYNC, extra cycles are added to the CPU's
// count (and thus to TIA/PIA's catch-up) before returning, so the
// next Step starts at the next scanline's hblank boundary without
// Step itself blocking.
func (e *Emulator) Step() error {
	before := e.cpu.Cycle
	if err := e.cpu.Step(e.bus, e.cache); err != nil {
		if exit, ok := err.(cpu.ProgramExit); ok {
			e.running.Store(false)
			return exit
		}
		return e.fault(err)
	}

	instrCycles := e.cpu.Cycle - before
	e.tia.CatchUp(instrCycles)
	e.pia.Tick(instrCycles)

	// WSYNC's extra cycles are computed from the TIA's position after
	// this instruction's own catch-up (the beam has already moved by
	// the instruction's cost by the time the stall takes effect), then
	// caught up themselves so TIA/PIA land exactly where the stalled
	// CPU cycle counter says they should.
	if e.tia.ConsumeWSyncPending() {
		extra := e.tia.WSyncExtraCycles()
		e.cpu.Cycle += extra
		e.tia.CatchUp(extra)
		e.pia.Tick(extra)
	}

	if e.debug {
		e.logger.Printf("CPU: %s", e.cpu.Debug())
		e.logger.Printf("PIA: %s", e.pia.Debug())
		e.logger.Printf("TIA: %s", e.tia.Debug())
	}
	return nil
}

// Run steps the emulator until Stop is called, a BRK with a zero IRQ
// vector cleanly exits the program (cpu.ProgramExit, exit code 0), or
// a fatal fault occurs (*FatalFault, exit code -1). There is no other
// cancellation path: a fault is unrecoverable and always returned to
// the caller, who is expected to print FatalFault.Dump to stderr.
func (e *Emulator) Run() error {
	for e.running.Load() {
		if err := e.Step(); err != nil {
			return err
		}
	}
	return nil
}

// fault wraps err as a FatalFault carrying a register/RAM/TIA/PIA
// dump; this package leaves the actual exit to the caller
// (cmd/vcscheck) rather than calling os.Exit from library code.
func (e *Emulator) fault(err error) error {
	e.running.Store(false)
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "FATAL: %v\n", err)
	fmt.Fprintf(&buf, "CPU:   %s\n", e.cpu.Debug())
	fmt.Fprintf(&buf, "PIA:   %s\n", e.pia.Debug())
	fmt.Fprintf(&buf, "TIA:   %s\n", e.tia.Debug())
	buf.WriteString("RAM:\n")
	for row := uint16(0); row < ramSize; row += 16 {
		fmt.Fprintf(&buf, "  %04X:", addrRAM+row)
		for col := uint16(0); col < 16; col++ {
			// Plain RAM has no read side effects, so dumping through the
			// bus is safe even mid-fault.
			v, rerr := e.bus.ReadByte(addrRAM + row + col)
			if rerr != nil {
				buf.WriteString(" ??")
				continue
			}
			fmt.Fprintf(&buf, " %02X", v)
		}
		buf.WriteByte('\n')
	}
	return &FatalFault{Err: err, Dump: buf.String()}
}
