// Package tia implements the Television Interface Adapter: the
// pixel-pumping state machine that drives playfield, sprite,
// collision, and audio-parameter state in lockstep with the CPU. One
// CPU cycle always corresponds to exactly three TIA color clocks; the
// vcs package drives that ratio by calling CatchUp after every CPU
// instruction.
package tia

import (
	"fmt"

	"github.com/atari2600-core/vcscore/io"
)

// Geometry constants for the scanline/color-clock grid.
const (
	lineClocks    = 228 // color clocks per scanline
	hblankClocks  = 68  // leading blanked clocks
	visibleClocks = lineClocks - hblankClocks

	linesVSync    = 3
	linesVBlank   = 37
	linesVisible  = 192
	linesOverscan = 30
	linesPerFrame = linesVSync + linesVBlank + linesVisible + linesOverscan

	firstVisibleLine = linesVSync + linesVBlank // 40
)

// Write register addresses (masked to 6 bits on the bus).
const (
	regVSYNC  = 0x00
	regVBLANK = 0x01
	regWSYNC  = 0x02
	regRSYNC  = 0x03
	regNUSIZ0 = 0x04
	regNUSIZ1 = 0x05
	regCOLUP0 = 0x06
	regCOLUP1 = 0x07
	regCOLUPF = 0x08
	regCOLUBK = 0x09
	regCTRLPF = 0x0A
	regREFP0  = 0x0B
	regREFP1  = 0x0C
	regPF0    = 0x0D
	regPF1    = 0x0E
	regPF2    = 0x0F
	regRESP0  = 0x10
	regRESP1  = 0x11
	regRESM0  = 0x12
	regRESM1  = 0x13
	regRESBL  = 0x14
	regAUDC0  = 0x15
	regAUDC1  = 0x16
	regAUDF0  = 0x17
	regAUDF1  = 0x18
	regAUDV0  = 0x19
	regAUDV1  = 0x1A
	regGRP0   = 0x1B
	regGRP1   = 0x1C
	regENAM0  = 0x1D
	regENAM1  = 0x1E
	regENABL  = 0x1F
	regHMP0   = 0x20
	regHMP1   = 0x21
	regHMM0   = 0x22
	regHMM1   = 0x23
	regHMBL   = 0x24
	regVDELP0 = 0x25
	regVDELP1 = 0x26
	regVDELBL = 0x27
	regRESMP0 = 0x28
	regRESMP1 = 0x29
	regHMOVE  = 0x2A
	regHMCLR  = 0x2B
	regCXCLR  = 0x2C
)

// Read register addresses (masked to 4 bits on the bus).
const (
	regCXM0P  = 0x00
	regCXM1P  = 0x01
	regCXP0FB = 0x02
	regCXP1FB = 0x03
	regCXM0FB = 0x04
	regCXM1FB = 0x05
	regCXBLPF = 0x06
	regCXPPMM = 0x07
	regINPT0  = 0x08
	regINPT1  = 0x09
	regINPT2  = 0x0A
	regINPT3  = 0x0B
	regINPT4  = 0x0C
	regINPT5  = 0x0D
)

// kCollisionBase is the constant bit pattern a collision register read
// carries below the two latch bits: D1 is wired high, D5-D0 otherwise
// undriven and read as zero.
const kCollisionBase = uint8(0x02)

// collision latch indices, one per read register (two booleans packed
// into bits 7/6, except CXBLPF which uses only bit 7).
const (
	cM0P0 = iota
	cM0P1
	cM1P0
	cM1P1
	cP0PF
	cP0BL
	cP1PF
	cP1BL
	cM0PF
	cM0BL
	cM1PF
	cM1BL
	cBLPF
	cP0P1
	cM0M1
	collisionLatchCount
)

// player holds one of the two 8-pixel player sprites. mask is stored
// bit-reversed relative to the byte written to GRPn so that hit
// testing can index it left-to-right with a plain right shift.
type player struct {
	x       int
	motion  int8
	mask    uint8
	maskBuf uint8
	vdel    bool
	reflect bool
	color   uint8
	dup     int
	scale   int
}

type missileObj struct {
	x      int
	motion int8
	size   int
	enable bool
	dup    int
	resmp  bool
}

type ballObj struct {
	x         int
	motion    int8
	size      int
	enable    bool
	enableBuf bool
	vdel      bool
}

type playfield struct {
	pf0, pf1, pf2 uint8
	mask          uint64 // 40 valid bits
	mirrored      bool
	scoreMode     bool
	priority      bool
	color         uint8
}

// AudioTriple is one channel's (volume, frequency divisor, waveform code)
// triple, stored verbatim for the external display's audio synthesis.
type AudioTriple struct {
	Volume   uint8 // 0-15
	Freq     uint8 // 0-31
	Waveform uint8 // 0-15
}

// Frame is the palette-indexed framebuffer the emulator presents.
// Pixels are indexed [row][col], row 0..191, col 0..159.
type Frame struct {
	Pixels [linesVisible][visibleClocks]uint8
}

// Def supplies the TIA's input lines and frame-complete callback.
type Def struct {
	Fire0 io.Line // INPT4, joystick 0 trigger (active low on the real pin; true == pressed here).
	Fire1 io.Line // INPT5, joystick 1 trigger.

	// FrameDone is invoked on the VSYNC falling edge with the
	// just-completed frame. The callback must not retain the pointer
	// past the call (the TIA reuses the same Frame).
	FrameDone func(*Frame)
}

// TIA implements the full video/collision/audio state machine.
type TIA struct {
	fire0, fire1 io.Line
	frameDone    func(*Frame)

	cycle uint64 // TIA color-clock counter, monotonic
	y     int    // scanline within the current frame

	vsync, vblank bool

	bg uint8
	pf playfield
	p  [2]player
	m  [2]missileObj
	bl ballObj

	collision [collisionLatchCount]uint8
	audio     [2]AudioTriple

	frame Frame

	wsyncPending bool

	pendingHas  bool
	pendingAddr uint16
	pendingVal  uint8
}

// Init returns a powered-on TIA.
func Init(def *Def) *TIA {
	t := &TIA{fire0: def.Fire0, fire1: def.Fire1, frameDone: def.FrameDone}
	t.PowerOn()
	return t
}

// PowerOn resets all chip state. Sprite scales/sizes default to the
// NUSIZ=0 decoding (scale 1, size 1, no duplicates).
func (t *TIA) PowerOn() {
	*t = TIA{fire0: t.fire0, fire1: t.fire1, frameDone: t.frameDone}
	t.p[0].scale, t.p[1].scale = 1, 1
	t.m[0].size, t.m[1].size = 1, 1
	t.bl.size = 1
}

// BusRead implements the memory.Mapped ReadFn contract for the TIA's
// read-side registers (collisions + input ports). Unlike writes,
// reads are never deferred: the staging slot writes go through exists
// purely to model RESxx/store timing.
func (t *TIA) BusRead(addr uint16) uint8 {
	addr &= 0x0F
	switch addr {
	case regCXM0P:
		return kCollisionBase | t.collision[cM0P0]<<7 | t.collision[cM0P1]<<6
	case regCXM1P:
		return kCollisionBase | t.collision[cM1P0]<<7 | t.collision[cM1P1]<<6
	case regCXP0FB:
		return kCollisionBase | t.collision[cP0PF]<<7 | t.collision[cP0BL]<<6
	case regCXP1FB:
		return kCollisionBase | t.collision[cP1PF]<<7 | t.collision[cP1BL]<<6
	case regCXM0FB:
		return kCollisionBase | t.collision[cM0PF]<<7 | t.collision[cM0BL]<<6
	case regCXM1FB:
		return kCollisionBase | t.collision[cM1PF]<<7 | t.collision[cM1BL]<<6
	case regCXBLPF:
		return kCollisionBase | t.collision[cBLPF]<<7
	case regCXPPMM:
		return kCollisionBase | t.collision[cP0P1]<<7 | t.collision[cM0M1]<<6
	case regINPT0, regINPT1, regINPT2, regINPT3:
		return 0 // paddles unimplemented
	case regINPT4:
		if t.fire0 == nil || !t.fire0.Input() {
			return 0x80
		}
		return 0
	case regINPT5:
		if t.fire1 == nil || !t.fire1.Input() {
			return 0x80
		}
		return 0
	}
	return 0
}

// BusWrite implements the memory.Mapped WriteFn contract. WSYNC is
// handled immediately since it is a stall signal, not register state;
// every other address is staged and applied by CatchUp at the end of
// the TIA catch-up for the instruction that issued the store, so a
// RESxx lands at the color clock where the store actually completes.
func (t *TIA) BusWrite(addr uint16, val uint8) {
	addr &= 0x3F
	if addr == regWSYNC {
		t.wsyncPending = true
		return
	}
	t.pendingHas = true
	t.pendingAddr = addr
	t.pendingVal = val
}

// ConsumeWSyncPending reports and clears whether WSYNC was written
// since the last call.
func (t *TIA) ConsumeWSyncPending() bool {
	v := t.wsyncPending
	t.wsyncPending = false
	return v
}

// WSyncExtraCycles returns how many additional CPU cycles WSYNC must
// stall for, computed from the TIA's current (last-committed) color
// clock position as ceil(remaining_color_clocks/3).
func (t *TIA) WSyncExtraCycles() uint64 {
	x := t.cycle % lineClocks
	remaining := lineClocks - x
	return (remaining + 2) / 3
}

// CatchUp advances the TIA by cpuCycles*3 color clocks, then commits
// whatever write BusWrite staged during those CPU cycles.
func (t *TIA) CatchUp(cpuCycles uint64) {
	for i := uint64(0); i < cpuCycles*3; i++ {
		t.tick()
	}
	if t.pendingHas {
		t.commit(t.pendingAddr, t.pendingVal)
		t.pendingHas = false
	}
}

// tick runs exactly one color clock: draw (or blank) the current
// pixel, evaluate collisions, and advance the beam position.
func (t *TIA) tick() {
	x := int(t.cycle % lineClocks)
	if x == 0 && t.cycle != 0 {
		t.y++
	}
	visibleX := x - hblankClocks
	if !t.vblank && visibleX >= 0 && visibleX < visibleClocks {
		t.drawPixel(visibleX)
	}
	t.cycle++
}

// Frame returns the framebuffer being written to. Callers that need a
// stable snapshot across presentation (see vcs.Emulator) must copy it
// under their own lock; the TIA does not synchronize access itself.
func (t *TIA) Frame() *Frame { return &t.frame }

// Cycle returns the TIA's monotonic color-clock counter, mainly for
// tests asserting the tia_cycle == 3*cpu_cycle invariant.
func (t *TIA) Cycle() uint64 { return t.cycle }

// AudioSnapshot returns the two channels' (volume, frequency divisor,
// waveform code) triples. Safe to call at any time; tearing between
// the three fields of a triple is tolerated by callers.
func (t *TIA) AudioSnapshot() [2]AudioTriple { return t.audio }

// Debug returns a single-line snapshot, matching the density of the
// CPU/PIA Debug() methods.
func (t *TIA) Debug() string {
	return fmt.Sprintf("TIA cycle:%d y:%d x:%d vsync:%t vblank:%t",
		t.cycle, t.y, int(t.cycle%lineClocks), t.vsync, t.vblank)
}
