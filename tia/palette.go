package tia

import "image/color"

// Palette is the NTSC 128-entry color table the TIA's color values
// index into (cmd/vcscheck uses the low seven bits). Entry i has hue
// i/8 and luminance step i%8, so odd and even indices are distinct
// entries. It is a synthetic but
// monotonically-varying approximation of the real NTSC decoder output
// suitable for presentation, not a certified color-accurate table.
// PAL/SECAM color decoding is not implemented.
var Palette [128]color.RGBA

func init() {
	for i := range Palette {
		hue := i / 8   // 16 hues
		lum := i % 8   // 8 luminance steps per hue
		Palette[i] = hueLumToRGBA(hue, lum)
	}
}

func hueLumToRGBA(hue, lum int) color.RGBA {
	base := uint8(lum * 255 / 7)
	switch hue % 4 {
	case 0:
		return color.RGBA{R: base, G: base, B: base, A: 0xFF}
	case 1:
		return color.RGBA{R: base, G: base / 2, B: base / 3, A: 0xFF}
	case 2:
		return color.RGBA{R: base / 3, G: base, B: base / 2, A: 0xFF}
	default:
		return color.RGBA{R: base / 2, G: base / 3, B: base, A: 0xFF}
	}
}
