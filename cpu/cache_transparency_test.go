package cpu

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-test/deep"

	"github.com/atari2600-core/vcscore/memory"
)

// snapshot is everything a cached and an uncached execution of the
// same program must agree on after N steps.
type snapshot struct {
	A, X, Y, S, P uint8
	PC            uint16
	Cycle         uint64
	Mem           [3]uint8 // the three memory locations the program below touches
}

func snapshotOf(t *testing.T, p *Chip, bus *memory.Bus) snapshot {
	t.Helper()
	m0, err := bus.ReadByte(0x0020)
	if err != nil {
		t.Fatal(err)
	}
	m1, err := bus.ReadByte(0x0021)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := bus.ReadByte(0x0022)
	if err != nil {
		t.Fatal(err)
	}
	return snapshot{A: p.A, X: p.X, Y: p.Y, S: p.S, P: p.P, PC: p.PC, Cycle: p.Cycle, Mem: [3]uint8{m0, m1, m2}}
}

// runProgram steps a freshly powered-on CPU n times, handing it cache
// on each Step via newCacheForStep - either the same *Cache every time
// (the real, persistent cache) or a brand-new one each call (defeats
// caching entirely, standing in for "cache disabled").
func runProgram(t *testing.T, n int, newCacheForStep func() *Cache) snapshot {
	t.Helper()
	prog := []uint8{
		0xA9, 0x10, // LDA #$10
		0x85, 0x20, // STA $20
		0xA9, 0x22, // LDA #$22
		0x8D, 0x21, 0x00, // STA $0021
		0xA5, 0x20, // LDA $20
		0x69, 0x01, // ADC #1
		0x85, 0x22, // STA $22
		0xEA, 0xEA, 0xEA, 0xEA, 0xEA, // NOP padding: 7 + 5 = 12 instructions
	}
	bus := newFlatBus()
	for i, v := range prog {
		if err := bus.WriteByte(0x1000+uint16(i), v); err != nil {
			t.Fatal(err)
		}
	}
	if err := bus.WriteByte(RESET_VECTOR, 0x00); err != nil {
		t.Fatal(err)
	}
	if err := bus.WriteByte(RESET_VECTOR+1, 0x10); err != nil {
		t.Fatal(err)
	}
	p := New(NMOS)
	if err := p.PowerOn(bus); err != nil {
		t.Fatalf("PowerOn: %v", err)
	}
	for i := 0; i < n; i++ {
		if err := p.Step(bus, newCacheForStep()); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	return snapshotOf(t, p, bus)
}

// TestCacheTransparencyMatchesUncached runs the same program with the
// decode cache reused across steps and with a fresh cache forced every
// step (so nothing is ever reused), and asserts both executions reach
// identical CPU/memory state - the cache is purely an optimization,
// never observable.
func TestCacheTransparencyMatchesUncached(t *testing.T) {
	const steps = 12

	cached := NewCache()
	withCache := runProgram(t, steps, func() *Cache { return cached })
	withoutCache := runProgram(t, steps, func() *Cache { return NewCache() })

	if diff := deep.Equal(withCache, withoutCache); diff != nil {
		t.Errorf("cached vs uncached state diverged: %v\ncached:   %s\nuncached: %s",
			diff, spew.Sdump(withCache), spew.Sdump(withoutCache))
	}
}
