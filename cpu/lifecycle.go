package cpu

import (
	"fmt"

	"github.com/atari2600-core/vcscore/memory"
)

// PowerOn runs the reset sequence: S is set to the traditional 0xFD
// (three phantom stack pushes during real reset decrement it from
// 0x00), P is set to just the always-one bit plus interrupt-disable
// (so decimal mode and every other flag start clear), and PC loads
// from RESET_VECTOR.
func (p *Chip) PowerOn(bus *memory.Bus) error {
	p.A, p.X, p.Y = 0, 0, 0
	p.S = 0xFD
	p.P = P_S1 | P_INTERRUPT
	p.Cycle = 0
	p.halted = false
	vec, err := bus.ReadWord(RESET_VECTOR)
	if err != nil {
		return err
	}
	p.PC = vec
	return nil
}

// Debug returns a single-line snapshot of the register file.
func (p *Chip) Debug() string {
	return fmt.Sprintf("PC:%04X A:%02X X:%02X Y:%02X S:%02X P:%02X Cycle:%d",
		p.PC, p.A, p.X, p.Y, p.S, p.P, p.Cycle)
}
