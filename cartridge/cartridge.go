// Package cartridge loads a ROM image into a memory.Region according
// to a caller-selected bank-switching scheme. The scheme is always an
// explicit argument; this package never sniffs the ROM bytes to guess
// one.
package cartridge

import (
	"fmt"

	"github.com/atari2600-core/vcscore/memory"
)

// Scheme identifies a cartridge's size and bank-switching behavior.
type Scheme int

const (
	// Scheme2K is a 2KB ROM, self-mirrored to fill the 4K window.
	Scheme2K Scheme = iota
	// Scheme4K is a plain 4KB ROM with no bank switching.
	Scheme4K
	// SchemeF8 is the 8K Atari scheme: two 4K banks, hotspots at the
	// low-12-bit addresses 0xFF8/0xFF9.
	SchemeF8
	// SchemeF6 is the 16K Atari scheme: four 4K banks, hotspots at
	// 0xFF6-0xFF9.
	SchemeF6
	// SchemeF4 is the 32K Atari scheme: eight 4K banks, hotspots at
	// 0xFF4-0xFFB.
	SchemeF4
)

const bankSize = 4096

// schemeInfo describes the bank count and first magic low-12-bit
// offset for a banked scheme (0xFF8,0xFF9 for 8K; +0xFF6,0xFF7 for
// 16K; 0xFF4..0xFFB for 32K).
type schemeInfo struct {
	banks      int
	firstMagic uint16
}

var bankedSchemes = map[Scheme]schemeInfo{
	SchemeF8: {banks: 2, firstMagic: 0x0FF8},
	SchemeF6: {banks: 4, firstMagic: 0x0FF6},
	SchemeF4: {banks: 8, firstMagic: 0x0FF4},
}

// ErrSizeMismatch reports that the ROM's length does not match what
// the requested scheme requires.
var ErrSizeMismatch = fmt.Errorf("cartridge: ROM size does not match scheme")

// Load builds the memory.Region for rom under scheme, anchored at
// start (the base of the 4K cartridge window, e.g. the bus's canonical
// 0x1000-0x1FFF range; vcs.Init mirrors it up to 0xF000-0xFFFF).
func Load(rom []uint8, scheme Scheme, start uint16) (memory.Region, error) {
	switch scheme {
	case Scheme2K:
		if len(rom) != 2048 {
			return nil, fmt.Errorf("%w: 2K scheme wants 2048 bytes, got %d", ErrSizeMismatch, len(rom))
		}
		full := make([]uint8, bankSize)
		copy(full, rom)
		copy(full[2048:], rom)
		return memory.NewROM(start, full), nil
	case Scheme4K:
		if len(rom) != bankSize {
			return nil, fmt.Errorf("%w: 4K scheme wants 4096 bytes, got %d", ErrSizeMismatch, len(rom))
		}
		return memory.NewROM(start, rom), nil
	case SchemeF8, SchemeF6, SchemeF4:
		info := bankedSchemes[scheme]
		want := info.banks * bankSize
		if len(rom) != want {
			return nil, fmt.Errorf("%w: scheme wants %d bytes, got %d", ErrSizeMismatch, want, len(rom))
		}
		hotspots := make(map[uint16]int, info.banks)
		for i := 0; i < info.banks; i++ {
			hotspots[start+info.firstMagic+uint16(i)] = i
		}
		// Power-on lands in bank 0.
		return memory.NewBankedROM(start, bankSize, rom, hotspots, 0)
	default:
		return nil, fmt.Errorf("cartridge: unknown scheme %d", scheme)
	}
}

// SchemeForSize returns the conventional scheme for a ROM of the given
// length, for callers (cmd/vcscheck) that want a sensible default
// before the user overrides it; it does not inspect ROM contents.
func SchemeForSize(size int) (Scheme, error) {
	switch size {
	case 2048:
		return Scheme2K, nil
	case 4096:
		return Scheme4K, nil
	case 8192:
		return SchemeF8, nil
	case 16384:
		return SchemeF6, nil
	case 32768:
		return SchemeF4, nil
	default:
		return 0, fmt.Errorf("cartridge: no conventional scheme for a %d byte ROM; pass -scheme explicitly", size)
	}
}
