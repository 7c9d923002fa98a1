// Package memory implements the VCS address bus: an address-ordered
// list of regions (RAM, ROM, memory-mapped device, mirror, banked
// ROM), a per-page resolution cache, and the dirty-page bitmap the
// CPU's instruction cache keys invalidation off of.
package memory

import "fmt"

const pageCount = 256 // 16-bit address space / 256-byte pages.

// Bus resolves reads and writes against a registered list of Region
// implementations, in registration order, the first whose range
// contains the address wins. This is the only path any device uses to
// reach another device: no device holds a direct handle to any other.
type Bus struct {
	regions    []Region
	pageRegion [pageCount]int16 // cached region index per page, -1 = unknown.
	dirty      [pageCount]bool
	stackBase  uint16

	// mirrorsByTarget lets MarkDirtyRange (used by BankedROM's bank
	// switch side effect) also dirty every mirror of the switched
	// window, not just its primary address range. On the VCS a cart's
	// ROM window is aliased 8 times across the 16-bit space; code
	// commonly executes from a high mirror (e.g.
	// 0xF000) while the hotspot lives at the same relative offset in
	// every alias, so a bank switch must invalidate the instruction
	// cache for whichever mirror the CPU is actually running from too.
	mirrorsByTarget map[int][]*Mirror
}

// NewBus creates an empty bus. stackBase is the fixed page (e.g.
// 0x0100 for the standard 6502 stack convention) that PushByte/PopByte
// address via stackBase+S; it resolves through the normal region list
// like any other address, so on the VCS it lands on whichever of the
// TIA mirror or RAM mirror S happens to select.
func NewBus(stackBase uint16) *Bus {
	b := &Bus{stackBase: stackBase}
	for i := range b.pageRegion {
		b.pageRegion[i] = -1
	}
	return b
}

// dirtyNotifier is implemented by regions (BankedROM) that need to
// tell the bus which pages became dirty as a side effect of a bank
// switch, beyond the single written address the bus already handles
// for plain RAM.
type dirtyNotifier interface {
	setDirtyNotifier(func(startAddr, endAddr uint16))
}

// AddRegion appends r to the region list and returns its index. Order
// matters: earlier regions shadow later ones on overlapping ranges.
func (b *Bus) AddRegion(r Region) int {
	idx := len(b.regions)
	b.regions = append(b.regions, r)
	if dn, ok := r.(dirtyNotifier); ok {
		dn.setDirtyNotifier(b.MarkDirtyRange)
	}
	if m, ok := r.(*Mirror); ok {
		if b.mirrorsByTarget == nil {
			b.mirrorsByTarget = make(map[int][]*Mirror)
		}
		b.mirrorsByTarget[m.TargetIndex] = append(b.mirrorsByTarget[m.TargetIndex], m)
	}
	return idx
}

// resolveIndex returns the region index covering addr, using and
// refreshing the per-page cache. A cache hit is revalidated with
// Contains before being trusted, since a page can host more than one
// region (e.g. page 0 holds both TIA and RAM on the VCS map).
func (b *Bus) resolveIndex(addr uint16) (int, error) {
	page := addr >> 8
	if idx := b.pageRegion[page]; idx >= 0 && b.regions[idx].Contains(addr) {
		return int(idx), nil
	}
	for i, r := range b.regions {
		if r.Contains(addr) {
			b.pageRegion[page] = int16(i)
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: 0x%04X", ErrUnmapped, addr)
}

// resolve follows at most one level of Mirror indirection (mirrors
// alias a single target, never chain) and returns the concrete region
// plus the address to use against it.
func (b *Bus) resolve(addr uint16) (Region, uint16, error) {
	idx, err := b.resolveIndex(addr)
	if err != nil {
		return nil, 0, err
	}
	r := b.regions[idx]
	if m, ok := r.(*Mirror); ok {
		ta := m.translate(addr)
		return b.regions[m.TargetIndex], ta, nil
	}
	return r, addr, nil
}

// ReadByte resolves addr and returns the stored byte. Returns
// ErrUnmapped (wrapped) if no region covers it - a fatal condition
// callers surface via their own fatal-fault path.
func (b *Bus) ReadByte(addr uint16) (uint8, error) {
	r, a, err := b.resolve(addr)
	if err != nil {
		return 0, err
	}
	return r.Read(a), nil
}

// WriteByte resolves addr and stores val, marking the affected
// page(s) dirty if the target is RAM. Returns an error (ROM write,
// unmapped access) that is fatal to the whole process.
func (b *Bus) WriteByte(addr uint16, val uint8) error {
	r, a, err := b.resolve(addr)
	if err != nil {
		return err
	}
	if err := r.Write(a, val); err != nil {
		return err
	}
	if _, ok := r.(*RAM); ok {
		b.MarkDirty(uint8(addr >> 8))
		if a != addr {
			b.MarkDirty(uint8(a >> 8))
		}
	}
	return nil
}

// ReadWord reads a little-endian 16-bit value: low byte at addr, high
// byte at addr+1.
func (b *Bus) ReadWord(addr uint16) (uint16, error) {
	lo, err := b.ReadByte(addr)
	if err != nil {
		return 0, err
	}
	hi, err := b.ReadByte(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// PushByte stores v at stackBase+*sp then decrements *sp (8-bit wrap).
func (b *Bus) PushByte(sp *uint8, v uint8) error {
	if err := b.WriteByte(b.stackBase+uint16(*sp), v); err != nil {
		return err
	}
	*sp--
	return nil
}

// PopByte increments *sp (8-bit wrap) then reads stackBase+*sp.
func (b *Bus) PopByte(sp *uint8) (uint8, error) {
	*sp++
	return b.ReadByte(b.stackBase + uint16(*sp))
}

// PushWord pushes the high byte first so PopWord reads low then high.
func (b *Bus) PushWord(sp *uint8, v uint16) error {
	if err := b.PushByte(sp, uint8(v>>8)); err != nil {
		return err
	}
	return b.PushByte(sp, uint8(v))
}

// PopWord pops the low byte then the high byte (inverse of PushWord).
func (b *Bus) PopWord(sp *uint8) (uint16, error) {
	lo, err := b.PopByte(sp)
	if err != nil {
		return 0, err
	}
	hi, err := b.PopByte(sp)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// HasSideEffect reports whether addr resolves to a region where
// reading or writing does more than touch a plain byte (memory-mapped
// device, or a bank-switch magic address). Unmapped addresses report
// false; the instruction-cache parser that consults this already
// treats an unmapped byte within a page as "stop parsing" via the
// decode failure path, not this method.
func (b *Bus) HasSideEffect(addr uint16) bool {
	r, a, err := b.resolve(addr)
	if err != nil {
		return false
	}
	return r.HasSideEffect(a)
}

// MarkDirty sets the dirty bit for page.
func (b *Bus) MarkDirty(page uint8) { b.dirty[page] = true }

// MarkDirtyRange marks every page touched by [startAddr, endAddr]
// (inclusive) dirty, then does the same for every registered Mirror
// whose target is the region covering startAddr - so a BankedROM's
// bank-switch side effect invalidates the instruction cache for every
// alias of the switched window, not only its primary address range.
func (b *Bus) MarkDirtyRange(startAddr, endAddr uint16) {
	b.markRangeDirty(startAddr, endAddr)
	idx, err := b.resolveIndex(startAddr)
	if err != nil {
		return
	}
	for _, m := range b.mirrorsByTarget[idx] {
		b.markRangeDirty(m.Start, m.End)
	}
}

func (b *Bus) markRangeDirty(startAddr, endAddr uint16) {
	for p := startAddr >> 8; ; p++ {
		b.MarkDirty(uint8(p))
		if p == endAddr>>8 {
			break
		}
	}
}

// IsDirty reports whether page has been written since the last
// MarkClean.
func (b *Bus) IsDirty(page uint8) bool { return b.dirty[page] }

// MarkClean clears the dirty bit for page once cache management has
// reconciled with it.
func (b *Bus) MarkClean(page uint8) { b.dirty[page] = false }
