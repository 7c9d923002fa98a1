package memory

import "fmt"

// Region models one addressable slice of the bus. The concrete kinds
// (RAM, ROM, Mapped, Mirror, BankedROM) are distinct types behind a
// common interface rather than a hand-rolled tagged union, with no
// dispatch table of our own to manage.
type Region interface {
	// Contains reports whether addr falls within this region's range.
	Contains(addr uint16) bool
	// Read returns the byte at addr. Only ever called when
	// Contains(addr) is true.
	Read(addr uint16) uint8
	// Write stores val at addr. Only ever called when Contains(addr)
	// is true. Returns a fatal error if the region refuses the write
	// (ROM, or a bank-switched ROM write to a non-magic address).
	Write(addr uint16, val uint8) error
	// HasSideEffect reports whether reading or writing addr does more
	// than return/store a byte: memory-mapped device registers and
	// bank-switch magic addresses both report true so the instruction
	// prefetcher never touches them speculatively.
	HasSideEffect(addr uint16) bool
}

// RAM is a fixed block of read/write storage, e.g. the PIA's 128
// bytes. Writes through a RAM region are what the bus dirties a page
// for.
type RAM struct {
	Start uint16
	bytes []uint8
}

// NewRAM allocates a RAM region covering [start, start+size).
func NewRAM(start uint16, size int) *RAM {
	return &RAM{Start: start, bytes: make([]uint8, size)}
}

// Contains implements Region.
func (r *RAM) Contains(addr uint16) bool {
	return addr >= r.Start && int(addr-r.Start) < len(r.bytes)
}

// Read implements Region.
func (r *RAM) Read(addr uint16) uint8 { return r.bytes[addr-r.Start] }

// Write implements Region.
func (r *RAM) Write(addr uint16, val uint8) error {
	r.bytes[addr-r.Start] = val
	return nil
}

// HasSideEffect implements Region. Plain RAM never has one.
func (r *RAM) HasSideEffect(uint16) bool { return false }

// ROM is a fixed, immutable block. Any write is fatal.
type ROM struct {
	Start uint16
	bytes []uint8
}

// NewROM wraps data as an immutable region starting at start.
func NewROM(start uint16, data []uint8) *ROM {
	cp := make([]uint8, len(data))
	copy(cp, data)
	return &ROM{Start: start, bytes: cp}
}

// Contains implements Region.
func (r *ROM) Contains(addr uint16) bool {
	return addr >= r.Start && int(addr-r.Start) < len(r.bytes)
}

// Read implements Region.
func (r *ROM) Read(addr uint16) uint8 { return r.bytes[addr-r.Start] }

// Write implements Region. ROM cannot be written.
func (r *ROM) Write(addr uint16, val uint8) error {
	return fmt.Errorf("%w: write to ROM at 0x%04X", ErrWriteToROM, addr)
}

// HasSideEffect implements Region. Plain ROM never has one.
func (r *ROM) HasSideEffect(uint16) bool { return false }

// Mapped is a memory-mapped device register block (TIA or PIA I/O),
// dispatched through captured function objects - the device itself is
// the closure's captured state, so the bus never holds a direct
// handle to a device type.
type Mapped struct {
	Start, End uint16
	ReadFn     func(addr uint16) uint8
	WriteFn    func(addr uint16, val uint8)
}

// Contains implements Region.
func (m *Mapped) Contains(addr uint16) bool { return addr >= m.Start && addr <= m.End }

// Read implements Region.
func (m *Mapped) Read(addr uint16) uint8 { return m.ReadFn(addr) }

// Write implements Region.
func (m *Mapped) Write(addr uint16, val uint8) error {
	m.WriteFn(addr, val)
	return nil
}

// HasSideEffect implements Region. Every device register address is
// presumed to have a side effect (collision latches, timer state,
// etc.) so it's never prefetched speculatively.
func (m *Mapped) HasSideEffect(uint16) bool { return true }

// Mirror aliases a range onto another region already registered with
// the bus. It targets the region by index into the bus's region table
// rather than by pointer, avoiding reference cycles and keeping the
// bus the sole owner of region lifetime.
type Mirror struct {
	Start, End  uint16
	TargetIndex int
	// Delta is target.Start - Start, added to an incoming address
	// before delegating.
	Delta int32
}

// Contains implements Region.
func (m *Mirror) Contains(addr uint16) bool { return addr >= m.Start && addr <= m.End }

// Read is never called directly; the bus resolves through TargetIndex
// instead. Present only to satisfy Region.
func (m *Mirror) Read(addr uint16) uint8 { panic("memory: Mirror.Read must be resolved by Bus") }

// Write is never called directly; see Read.
func (m *Mirror) Write(addr uint16, val uint8) error {
	panic("memory: Mirror.Write must be resolved by Bus")
}

// HasSideEffect delegates would be resolved by Bus; Mirror itself
// never answers this directly in practice.
func (m *Mirror) HasSideEffect(uint16) bool { panic("memory: Mirror.HasSideEffect must be resolved by Bus") }

// translate maps addr (known to be within [Start,End]) to the
// corresponding address in the target region.
func (m *Mirror) translate(addr uint16) uint16 {
	return uint16(int32(addr) + m.Delta)
}
