package cpu

import (
	"fmt"

	"github.com/atari2600-core/vcscore/memory"
)

// resolveAddr computes the effective address for every addressing
// mode except implied, accumulator, and immediate (those are handled
// inline by the caller). It returns whether an indexed access crossed
// a page boundary, since that costs the CPU an extra cycle on reads.
func (p *Chip) resolveAddr(bus *memory.Bus, d *decodedInsn) (addr uint16, crossed bool, err error) {
	switch d.Mode {
	case modeZeroPage:
		return uint16(d.Operand1), false, nil
	case modeZeroPageX:
		return uint16(d.Operand1 + p.X), false, nil
	case modeZeroPageY:
		return uint16(d.Operand1 + p.Y), false, nil
	case modeAbsolute:
		return uint16(d.Operand2)<<8 | uint16(d.Operand1), false, nil
	case modeAbsoluteX:
		base := uint16(d.Operand2)<<8 | uint16(d.Operand1)
		addr = base + uint16(p.X)
		return addr, (base & 0xFF00) != (addr & 0xFF00), nil
	case modeAbsoluteY:
		base := uint16(d.Operand2)<<8 | uint16(d.Operand1)
		addr = base + uint16(p.Y)
		return addr, (base & 0xFF00) != (addr & 0xFF00), nil
	case modeIndirectX:
		ptr := d.Operand1 + p.X
		lo, err := bus.ReadByte(uint16(ptr))
		if err != nil {
			return 0, false, err
		}
		hi, err := bus.ReadByte(uint16(ptr + 1))
		if err != nil {
			return 0, false, err
		}
		return uint16(hi)<<8 | uint16(lo), false, nil
	case modeIndirectY:
		lo, err := bus.ReadByte(uint16(d.Operand1))
		if err != nil {
			return 0, false, err
		}
		hi, err := bus.ReadByte(uint16(d.Operand1 + 1))
		if err != nil {
			return 0, false, err
		}
		base := uint16(hi)<<8 | uint16(lo)
		addr = base + uint16(p.Y)
		return addr, (base & 0xFF00) != (addr & 0xFF00), nil
	case modeIndirect:
		ptr := uint16(d.Operand2)<<8 | uint16(d.Operand1)
		lo, err := bus.ReadByte(ptr)
		if err != nil {
			return 0, false, err
		}
		// Deliberately not reproducing the NMOS page-wrap bug where the
		// high byte fetch wraps within the same page instead of
		// crossing into ptr+1 - see DESIGN.md.
		hi, err := bus.ReadByte(ptr + 1)
		if err != nil {
			return 0, false, err
		}
		return uint16(hi)<<8 | uint16(lo), false, nil
	}
	return 0, false, InvalidCPUState{Reason: fmt.Sprintf("resolveAddr: unexpected mode %d", d.Mode)}
}

// Step decodes (via cache) and executes exactly one instruction at
// p.PC, advancing p.Cycle by its cost. Bus faults (unmapped access,
// ROM write), HaltOpcode and InvalidCPUState are fatal to the
// emulation; ProgramExit (BRK with a zero IRQ vector) is a clean stop.
func (p *Chip) Step(bus *memory.Bus, cache *Cache) error {
	d, err := cache.Get(bus, p.PC)
	if err != nil {
		if h, ok := err.(HaltOpcode); ok {
			p.halted = true
			p.haltOpcode = h.Opcode
		}
		return err
	}

	startPC := p.PC
	p.PC += uint16(d.Length)
	extra := 0

	switch d.Mnemonic {
	case "ADC", "AND", "CMP", "EOR", "LDA", "LDX", "LDY", "ORA", "SBC", "BIT", "CPX", "CPY":
		val, crossed, err := p.fetchValue(bus, d)
		if err != nil {
			return err
		}
		if d.PageCross && crossed {
			extra++
		}
		p.execRead(d.Mnemonic, val)

	case "ASL", "LSR", "ROL", "ROR":
		if d.Mode == modeAccumulator {
			p.execRMWAcc(d.Mnemonic)
			break
		}
		addr, _, err := p.resolveAddr(bus, d)
		if err != nil {
			return err
		}
		old, err := bus.ReadByte(addr)
		if err != nil {
			return err
		}
		newVal := p.execRMW(d.Mnemonic, old)
		if err := bus.WriteByte(addr, newVal); err != nil {
			return err
		}

	case "INC", "DEC":
		addr, _, err := p.resolveAddr(bus, d)
		if err != nil {
			return err
		}
		old, err := bus.ReadByte(addr)
		if err != nil {
			return err
		}
		var newVal uint8
		if d.Mnemonic == "INC" {
			newVal = old + 1
		} else {
			newVal = old - 1
		}
		if err := bus.WriteByte(addr, newVal); err != nil {
			return err
		}
		p.zeroCheck(newVal)
		p.negativeCheck(newVal)

	case "STA", "STX", "STY":
		addr, _, err := p.resolveAddr(bus, d)
		if err != nil {
			return err
		}
		var v uint8
		switch d.Mnemonic {
		case "STA":
			v = p.A
		case "STX":
			v = p.X
		case "STY":
			v = p.Y
		}
		if err := bus.WriteByte(addr, v); err != nil {
			return err
		}

	case "JMP":
		addr, _, err := p.resolveAddr(bus, d)
		if err != nil {
			return err
		}
		p.PC = addr

	case "JSR":
		addr, _, err := p.resolveAddr(bus, d)
		if err != nil {
			return err
		}
		if err := bus.PushWord(&p.S, p.PC-1); err != nil {
			return err
		}
		p.PC = addr

	case "RTS":
		ret, err := bus.PopWord(&p.S)
		if err != nil {
			return err
		}
		p.PC = ret + 1

	case "RTI":
		pv, err := bus.PopByte(&p.S)
		if err != nil {
			return err
		}
		p.P = (pv &^ P_BREAK) | P_S1
		ret, err := bus.PopWord(&p.S)
		if err != nil {
			return err
		}
		p.PC = ret

	case "BRK":
		vec, err := bus.ReadWord(IRQ_VECTOR)
		if err != nil {
			return err
		}
		if vec == 0 {
			return ProgramExit{PC: startPC}
		}
		if p.P&P_INTERRUPT == 0 {
			ret := startPC + 2
			if err := bus.PushWord(&p.S, ret); err != nil {
				return err
			}
			if err := bus.PushByte(&p.S, p.P|P_BREAK|P_S1); err != nil {
				return err
			}
			p.P |= P_INTERRUPT
			p.PC = vec
		}

	case "PHA":
		if err := bus.PushByte(&p.S, p.A); err != nil {
			return err
		}
	case "PHP":
		if err := bus.PushByte(&p.S, p.P|P_BREAK|P_S1); err != nil {
			return err
		}
	case "PLA":
		v, err := bus.PopByte(&p.S)
		if err != nil {
			return err
		}
		p.loadRegister(&p.A, v)
	case "PLP":
		v, err := bus.PopByte(&p.S)
		if err != nil {
			return err
		}
		p.P = (v &^ P_BREAK) | P_S1

	case "BCC":
		extra += p.branch(startPC, d, p.P&P_CARRY == 0)
	case "BCS":
		extra += p.branch(startPC, d, p.P&P_CARRY != 0)
	case "BEQ":
		extra += p.branch(startPC, d, p.P&P_ZERO != 0)
	case "BNE":
		extra += p.branch(startPC, d, p.P&P_ZERO == 0)
	case "BMI":
		extra += p.branch(startPC, d, p.P&P_NEGATIVE != 0)
	case "BPL":
		extra += p.branch(startPC, d, p.P&P_NEGATIVE == 0)
	case "BVC":
		extra += p.branch(startPC, d, p.P&P_OVERFLOW == 0)
	case "BVS":
		extra += p.branch(startPC, d, p.P&P_OVERFLOW != 0)

	case "CLC":
		p.P &^= P_CARRY
	case "SEC":
		p.P |= P_CARRY
	case "CLD":
		p.P &^= P_DECIMAL
	case "SED":
		p.P |= P_DECIMAL
	case "CLI":
		p.P &^= P_INTERRUPT
	case "SEI":
		p.P |= P_INTERRUPT
	case "CLV":
		p.P &^= P_OVERFLOW

	case "DEX":
		p.loadRegister(&p.X, p.X-1)
	case "DEY":
		p.loadRegister(&p.Y, p.Y-1)
	case "INX":
		p.loadRegister(&p.X, p.X+1)
	case "INY":
		p.loadRegister(&p.Y, p.Y+1)
	case "TAX":
		p.loadRegister(&p.X, p.A)
	case "TAY":
		p.loadRegister(&p.Y, p.A)
	case "TXA":
		p.loadRegister(&p.A, p.X)
	case "TYA":
		p.loadRegister(&p.A, p.Y)
	case "TSX":
		p.loadRegister(&p.X, p.S)
	case "TXS":
		p.S = p.X // TXS does not touch flags.

	case "NOP":
		// Nothing.

	default:
		return InvalidCPUState{Reason: fmt.Sprintf("unhandled mnemonic %q", d.Mnemonic)}
	}

	p.Cycle += uint64(d.Cycles + extra)
	return nil
}

// fetchValue returns the operand value for a read-class instruction:
// immediate mode reads it straight from the decoded operand byte,
// every other mode resolves an address and loads from the bus.
func (p *Chip) fetchValue(bus *memory.Bus, d *decodedInsn) (uint8, bool, error) {
	if d.Mode == modeImmediate {
		return d.Operand1, false, nil
	}
	addr, crossed, err := p.resolveAddr(bus, d)
	if err != nil {
		return 0, false, err
	}
	v, err := bus.ReadByte(addr)
	return v, crossed, err
}

// branch applies a taken/not-taken branch's cycle cost and PC update.
// startPC is the address of the branch opcode itself; p.PC has
// already been advanced past the 2-byte instruction by the time this
// runs, so the offset is relative to that.
func (p *Chip) branch(startPC uint16, d *decodedInsn, taken bool) int {
	_ = startPC
	if !taken {
		return 0
	}
	base := p.PC
	offset := int8(d.Operand1)
	target := uint16(int32(base) + int32(offset))
	p.PC = target
	if base&0xFF00 != target&0xFF00 {
		return 2
	}
	return 1
}

// execRead applies a read-class instruction's effect given its
// already-fetched operand value.
func (p *Chip) execRead(mnemonic string, val uint8) {
	switch mnemonic {
	case "ADC":
		p.iADC(val)
	case "SBC":
		p.iSBC(val)
	case "AND":
		p.loadRegister(&p.A, p.A&val)
	case "ORA":
		p.loadRegister(&p.A, p.A|val)
	case "EOR":
		p.loadRegister(&p.A, p.A^val)
	case "LDA":
		p.loadRegister(&p.A, val)
	case "LDX":
		p.loadRegister(&p.X, val)
	case "LDY":
		p.loadRegister(&p.Y, val)
	case "CMP":
		p.compare(p.A, val)
	case "CPX":
		p.compare(p.X, val)
	case "CPY":
		p.compare(p.Y, val)
	case "BIT":
		p.zeroCheck(p.A & val)
		p.negativeCheck(val)
		p.P &^= P_OVERFLOW
		if val&P_OVERFLOW != 0 {
			p.P |= P_OVERFLOW
		}
	}
}

// compare implements CMP/CPX/CPY: subtract without storing, set flags
// as if by SBC with carry forced in.
func (p *Chip) compare(reg, val uint8) {
	p.zeroCheck(reg - val)
	p.negativeCheck(reg - val)
	p.carryCheck(uint16(reg) - uint16(val) + 0x100)
}

// iADC implements ADC including BCD mode, grounded on the standard
// decimal-fixup algorithm (http://6502.org/tutorials/decimal_mode.html).
func (p *Chip) iADC(val uint8) {
	carry := p.P & P_CARRY

	if p.P&P_DECIMAL != 0 && p.cpuType != NMOSRicoh {
		aL := (p.A & 0x0F) + (val & 0x0F) + carry
		if aL >= 0x0A {
			aL = ((aL + 0x06) & 0x0F) + 0x10
		}
		sum := uint16(p.A&0xF0) + uint16(val&0xF0) + uint16(aL)
		if sum >= 0xA0 {
			sum += 0x60
		}
		res := uint8(sum & 0xFF)
		seq := (p.A & 0xF0) + (val & 0xF0) + aL
		bin := p.A + val + carry
		p.overflowCheck(p.A, val, seq)
		p.carryCheck(sum)
		p.negativeCheck(seq)
		p.zeroCheck(bin)
		p.A = res
		return
	}

	sum := p.A + val + carry
	p.overflowCheck(p.A, val, sum)
	p.carryCheck(uint16(p.A) + uint16(val) + uint16(carry))
	p.loadRegister(&p.A, sum)
}

// iSBC implements SBC including BCD mode.
func (p *Chip) iSBC(val uint8) {
	if p.P&P_DECIMAL != 0 && p.cpuType != NMOSRicoh {
		carry := p.P & P_CARRY
		aL := int8(p.A&0x0F) - int8(val&0x0F) + int8(carry) - 1
		if aL < 0 {
			aL = ((aL - 0x06) & 0x0F) - 0x10
		}
		sum := int16(p.A&0xF0) - int16(val&0xF0) + int16(aL)
		if sum < 0x0000 {
			sum -= 0x60
		}
		res := uint8(sum & 0xFF)

		b := p.A + ^val + carry
		p.overflowCheck(p.A, ^val, b)
		p.negativeCheck(b)
		p.carryCheck(uint16(p.A) + uint16(^val) + uint16(carry))
		p.zeroCheck(b)
		p.A = res
		return
	}
	p.iADC(^val)
}

// execRMWAcc applies ASL/LSR/ROL/ROR in accumulator mode.
func (p *Chip) execRMWAcc(mnemonic string) {
	switch mnemonic {
	case "ASL":
		p.carryCheck(uint16(p.A) << 1)
		p.loadRegister(&p.A, p.A<<1)
	case "LSR":
		p.P &^= P_CARRY
		if p.A&0x01 != 0 {
			p.P |= P_CARRY
		}
		p.loadRegister(&p.A, p.A>>1)
	case "ROL":
		carryIn := p.P & P_CARRY
		p.carryCheck(uint16(p.A) << 1)
		p.loadRegister(&p.A, (p.A<<1)|carryIn)
	case "ROR":
		carryIn := p.P & P_CARRY
		newCarry := p.A & 0x01
		res := (p.A >> 1) | (carryIn << 7)
		p.P &^= P_CARRY
		if newCarry != 0 {
			p.P |= P_CARRY
		}
		p.loadRegister(&p.A, res)
	}
}

// execRMW applies ASL/LSR/ROL/ROR to a memory operand and returns the
// new value; the caller writes it back.
func (p *Chip) execRMW(mnemonic string, old uint8) uint8 {
	var res uint8
	switch mnemonic {
	case "ASL":
		p.carryCheck(uint16(old) << 1)
		res = old << 1
	case "LSR":
		p.P &^= P_CARRY
		if old&0x01 != 0 {
			p.P |= P_CARRY
		}
		res = old >> 1
	case "ROL":
		carryIn := p.P & P_CARRY
		p.carryCheck(uint16(old) << 1)
		res = (old << 1) | carryIn
	case "ROR":
		carryIn := p.P & P_CARRY
		newCarry := old & 0x01
		res = (old >> 1) | (carryIn << 7)
		p.P &^= P_CARRY
		if newCarry != 0 {
			p.P |= P_CARRY
		}
	}
	p.zeroCheck(res)
	p.negativeCheck(res)
	return res
}
