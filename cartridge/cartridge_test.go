package cartridge

import "testing"

func TestLoad2KMirrorsIntoFullWindow(t *testing.T) {
	rom := make([]uint8, 2048)
	rom[0] = 0xAA
	rom[2047] = 0xBB
	r, err := Load(rom, Scheme2K, 0x1000)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := r.Read(0x1000); got != 0xAA {
		t.Errorf("Read(0x1000) = 0x%02X, want 0xAA", got)
	}
	if got := r.Read(0x1000 + 2048); got != 0xAA {
		t.Errorf("Read of mirrored copy = 0x%02X, want 0xAA", got)
	}
	if got := r.Read(0x1000 + 2047); got != 0xBB {
		t.Errorf("Read(last byte of first copy) = 0x%02X, want 0xBB", got)
	}
}

func TestLoad4KSizeMismatchIsFatal(t *testing.T) {
	rom := make([]uint8, 1024)
	if _, err := Load(rom, Scheme4K, 0x1000); err == nil {
		t.Fatal("expected ErrSizeMismatch for undersized 4K ROM")
	}
}

func TestLoadF8BankSwitchSelectsByHotspot(t *testing.T) {
	rom := make([]uint8, 8192)
	rom[0] = 0x11          // bank 0, offset 0
	rom[4096] = 0x22       // bank 1, offset 0
	r, err := Load(rom, SchemeF8, 0x1000)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := r.Read(0x1000); got != 0x11 {
		t.Errorf("initial bank byte 0 = 0x%02X, want 0x11", got)
	}
	r.Read(0x1000 + 0x0FF9) // select bank 1
	if got := r.Read(0x1000); got != 0x22 {
		t.Errorf("after selecting bank 1, byte 0 = 0x%02X, want 0x22", got)
	}
	r.Read(0x1000 + 0x0FF8) // select bank 0 again
	if got := r.Read(0x1000); got != 0x11 {
		t.Errorf("after reselecting bank 0, byte 0 = 0x%02X, want 0x11", got)
	}
}

func TestLoadF6HasFourBanks(t *testing.T) {
	rom := make([]uint8, 16384)
	for i := 0; i < 4; i++ {
		rom[i*4096] = uint8(i)
	}
	r, err := Load(rom, SchemeF6, 0x1000)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	hotspots := []uint16{0x1FF6, 0x1FF7, 0x1FF8, 0x1FF9}
	for bank, hs := range hotspots {
		r.Read(hs)
		if got := r.Read(0x1000); got != uint8(bank) {
			t.Errorf("bank %d byte 0 = %d, want %d", bank, got, bank)
		}
	}
}

func TestLoadF4HasEightBanks(t *testing.T) {
	rom := make([]uint8, 32768)
	for i := 0; i < 8; i++ {
		rom[i*4096] = uint8(i)
	}
	r, err := Load(rom, SchemeF4, 0x1000)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for bank := 0; bank < 8; bank++ {
		r.Read(0x1000 + 0x0FF4 + uint16(bank))
		if got := r.Read(0x1000); got != uint8(bank) {
			t.Errorf("bank %d byte 0 = %d, want %d", bank, got, bank)
		}
	}
}

func TestHotspotHasSideEffect(t *testing.T) {
	rom := make([]uint8, 8192)
	r, err := Load(rom, SchemeF8, 0x1000)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !r.HasSideEffect(0x1FF8) {
		t.Error("hotspot address should report HasSideEffect = true")
	}
	if r.HasSideEffect(0x1000) {
		t.Error("plain data address should report HasSideEffect = false")
	}
}

func TestSchemeForSize(t *testing.T) {
	tests := []struct {
		size int
		want Scheme
	}{
		{2048, Scheme2K},
		{4096, Scheme4K},
		{8192, SchemeF8},
		{16384, SchemeF6},
		{32768, SchemeF4},
	}
	for _, tc := range tests {
		got, err := SchemeForSize(tc.size)
		if err != nil {
			t.Fatalf("SchemeForSize(%d): %v", tc.size, err)
		}
		if got != tc.want {
			t.Errorf("SchemeForSize(%d) = %v, want %v", tc.size, got, tc.want)
		}
	}
	if _, err := SchemeForSize(12345); err == nil {
		t.Error("expected error for unconventional size")
	}
}
