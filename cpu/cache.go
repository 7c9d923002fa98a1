package cpu

import "github.com/atari2600-core/vcscore/memory"

// decodedInsn is one cached, fully-parsed instruction: the opcode
// byte plus whatever operand bytes follow it in ROM/RAM. It never
// stores a resolved effective address since indexed modes depend on
// X/Y at execution time, not at decode time.
type decodedInsn struct {
	PC       uint16
	Opcode   uint8
	Mnemonic string
	Mode     addrMode
	Cycles   int
	PageCross bool
	Length   int
	Operand1 uint8
	Operand2 uint8
}

// Cache is the decoded-instruction cache keyed by PC. A 256-byte page
// is invalidated as a whole the first time any PC in it is looked up
// after the bus reports that page dirty, matching the bus's
// dirty-page bitmap (memory.Bus.IsDirty/MarkClean).
type Cache struct {
	entries map[uint16]*decodedInsn
}

// NewCache returns an empty decode cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[uint16]*decodedInsn)}
}

// invalidatePage drops every cached entry whose PC falls in page.
func (c *Cache) invalidatePage(page uint8) {
	for pc := range c.entries {
		if uint8(pc>>8) == page {
			delete(c.entries, pc)
		}
	}
}

// Get returns the decoded instruction at pc, decoding (and, where
// safe, prefetching the rest of the page) on a miss. It returns
// HaltOpcode for an opcode byte with no documented meaning, or the
// bus error if pc itself cannot be read.
func (c *Cache) Get(bus *memory.Bus, pc uint16) (*decodedInsn, error) {
	page := uint8(pc >> 8)
	if bus.IsDirty(page) {
		c.invalidatePage(page)
		bus.MarkClean(page)
	}
	if d, ok := c.entries[pc]; ok {
		return d, nil
	}

	// Fill forward from pc to the end of the page, stopping at the
	// first invalid opcode or the first address whose fetch would
	// itself be a side effect (code can't live in a device register).
	// Whatever got decoded before that point stays cached. If the stop
	// condition trips at pc itself, that instruction is decoded fresh
	// below without being entered into the cache.
	cur := pc
	var first *decodedInsn
	for cur>>8 == uint16(page) {
		if bus.HasSideEffect(cur) {
			break
		}
		op, err := bus.ReadByte(cur)
		if err != nil {
			break
		}
		info := opcodes[op]
		if info.Mnemonic == "" {
			break
		}
		length := 1 + operandLength(info.Mode)
		d := &decodedInsn{
			PC:        cur,
			Opcode:    op,
			Mnemonic:  info.Mnemonic,
			Mode:      info.Mode,
			Cycles:    info.Cycles,
			PageCross: info.PageCross,
			Length:    length,
		}
		// An operand byte that lands on a device register is never
		// speculatively read: it is treated as zero and this is the
		// last entry this pass caches.
		stopAfter := false
		if length > 1 {
			if bus.HasSideEffect(cur + 1) {
				stopAfter = true
			} else {
				d.Operand1, _ = bus.ReadByte(cur + 1)
			}
		}
		if length > 2 && !stopAfter {
			if bus.HasSideEffect(cur + 2) {
				stopAfter = true
			} else {
				d.Operand2, _ = bus.ReadByte(cur + 2)
			}
		}
		c.entries[cur] = d
		if cur == pc {
			first = d
		}
		if stopAfter {
			break
		}
		next := cur + uint16(length)
		if next <= cur { // wrapped past 0xFFFF
			break
		}
		cur = next
	}

	if first != nil {
		return first, nil
	}

	// pc itself couldn't be prefetched (invalid opcode, or its own
	// fetch address has a side effect); the CPU still must execute
	// something, so decode it directly without caching.
	op, err := bus.ReadByte(pc)
	if err != nil {
		return nil, err
	}
	info := opcodes[op]
	if info.Mnemonic == "" {
		return nil, HaltOpcode{Opcode: op, PC: pc}
	}
	length := 1 + operandLength(info.Mode)
	d := &decodedInsn{PC: pc, Opcode: op, Mnemonic: info.Mnemonic, Mode: info.Mode, Cycles: info.Cycles, PageCross: info.PageCross, Length: length}
	if length > 1 {
		d.Operand1, _ = bus.ReadByte(pc + 1)
	}
	if length > 2 {
		d.Operand2, _ = bus.ReadByte(pc + 2)
	}
	return d, nil
}
