// Package pia implements the Atari-specific subset of the 6532
// Peripheral Interface Adapter: the programmable timer, the joystick
// switch read port, and the console switch stub. The 128 bytes of
// general-purpose RAM the real chip also provides are registered
// directly on the bus as a plain memory.RAM region (see vcs.Init) so
// the CPU's dirty-page tracking applies to it the same way it does to
// every other writable page; this chip only answers the I/O address
// range.
package pia

import (
	"fmt"

	"github.com/atari2600-core/vcscore/io"
)

// Register addresses, relative to the PIA I/O base. The 0x0100 alias
// is handled by the caller's Mirror region, not here.
const (
	regSWCHA  = 0x00
	regSWACNT = 0x01
	regSWCHB  = 0x02
	regSWBCNT = 0x03
	regINTIM  = 0x04
	regINSTAT = 0x05
	regTIM1T  = 0x14
	regTIM8T  = 0x15
	regTIM64T = 0x16
	regT1024T = 0x17
)

const kMaskRW = uint16(0x1F)

const (
	flagUnderflowSinceWrite = uint8(0x80)
	flagUnderflowSinceRead  = uint8(0x40)
)

// Joysticks supplies the eight digital directions SWCHA reports:
// bits 0-3 are joystick 1 (up/down/left/right), bits 4-7 are
// joystick 0.
type Joysticks struct {
	P0Up, P0Down, P0Left, P0Right io.Line
	P1Up, P1Down, P1Left, P1Right io.Line
}

func (j *Joysticks) read(l io.Line) bool { return l != nil && l.Input() }

// swcha computes the inverted joystick byte: a set bit means the
// direction is NOT asserted, matching the real switch wiring.
func (j *Joysticks) swcha() uint8 {
	var v uint8
	set := func(bit uint, pressed bool) {
		if !pressed {
			v |= 1 << bit
		}
	}
	set(0, j.read(j.P1Up))
	set(1, j.read(j.P1Down))
	set(2, j.read(j.P1Left))
	set(3, j.read(j.P1Right))
	set(4, j.read(j.P0Up))
	set(5, j.read(j.P0Down))
	set(6, j.read(j.P0Left))
	set(7, j.read(j.P0Right))
	return v
}

// Def supplies the PIA's external wiring.
type Def struct {
	Joysticks Joysticks
}

// Chip is the timer/switch half of the 6532 used on the VCS.
type Chip struct {
	joysticks Joysticks

	intim    uint8
	interval uint16 // one of 1, 8, 64, 1024
	counter  uint16 // within-interval countdown, 0..interval-1 (interval right after a timer write)

	underflowSinceWrite bool
	underflowSinceRead  bool
}

// Init returns a powered-on Chip.
func Init(d *Def) *Chip {
	c := &Chip{joysticks: d.Joysticks}
	c.PowerOn()
	return c
}

// PowerOn resets the timer to the chip's documented startup state: a
// free-running divide-by-1024 counter, matching the 6532's real
// power-on behavior that some ROMs rely on without programming the
// timer first.
func (c *Chip) PowerOn() {
	c.intim = 0
	c.interval = 1024
	c.counter = 1023
	c.underflowSinceWrite = false
	c.underflowSinceRead = false
}

// Tick services n elapsed CPU cycles' worth of the pre-divider,
// decrementing INTIM (with wraparound) each time the interval boundary
// is crossed.
func (c *Chip) Tick(n uint64) {
	for i := uint64(0); i < n; i++ {
		if c.counter == 0 {
			c.counter = c.interval - 1
			if c.intim == 0 {
				c.intim = 0xFF
				c.underflowSinceWrite = true
				c.underflowSinceRead = true
			} else {
				c.intim--
			}
		} else {
			c.counter--
		}
	}
}

// BusRead implements the memory.Mapped ReadFn contract for the PIA I/O
// range.
func (c *Chip) BusRead(addr uint16) uint8 {
	switch addr & kMaskRW {
	case regSWCHA:
		return c.joysticks.swcha()
	case regSWACNT:
		return 0 // direction register, unused on the VCS wiring
	case regSWCHB:
		return 0x3F // console switches: stubbed, all "off"/default
	case regSWBCNT:
		return 0
	case regINTIM:
		return c.intim
	case regINSTAT:
		var v uint8
		if c.underflowSinceWrite {
			v |= flagUnderflowSinceWrite
		}
		if c.underflowSinceRead {
			v |= flagUnderflowSinceRead
		}
		c.underflowSinceRead = false
		return v
	}
	return 0
}

// BusWrite implements the memory.Mapped WriteFn contract for the PIA
// I/O range. Writes to SWCHA/SWACNT/SWCHB/SWBCNT are accepted and
// dropped: the VCS wiring never drives those pins as outputs.
func (c *Chip) BusWrite(addr uint16, val uint8) {
	switch addr & kMaskRW {
	case regTIM1T:
		c.setTimer(1, val)
	case regTIM8T:
		c.setTimer(8, val)
	case regTIM64T:
		c.setTimer(64, val)
	case regT1024T:
		c.setTimer(1024, val)
	}
}

// setTimer loads a new interval and start value. The counter is loaded
// with the full interval rather than the steady-state reload value of
// interval-1, so the first decrement after a write lands one tick
// later than every subsequent one: the synchronizer latency a real
// 6532 shows when the prescaler is reloaded mid-cycle.
func (c *Chip) setTimer(interval uint16, val uint8) {
	c.interval = interval
	c.intim = val
	c.counter = interval
	c.underflowSinceWrite = false
	c.underflowSinceRead = false
}

// Debug returns a single-line snapshot, matching the density of the
// CPU/TIA Debug() methods. It does not read INSTAT directly since that
// read has the side effect of clearing the underflow-since-read flag.
func (c *Chip) Debug() string {
	return fmt.Sprintf("PIA intim:0x%02X interval:%d counter:%d underflowW:%t underflowR:%t",
		c.intim, c.interval, c.counter, c.underflowSinceWrite, c.underflowSinceRead)
}
