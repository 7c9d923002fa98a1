// Command vcscheck is a non-interactive smoke binary for the vcs
// core: it loads a cartridge image, runs a bounded number of
// instructions (or until a fatal fault), and can optionally dump the
// last completed frame as a PPM image. It has no stepping, no
// breakpoints, and no persistent run loop past -count - it exists to
// give the module a buildable entry point and exercise the wired
// dependencies with a thin main.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"log"
	"os"

	xdraw "golang.org/x/image/draw"

	"github.com/atari2600-core/vcscore/cartridge"
	"github.com/atari2600-core/vcscore/cpu"
	"github.com/atari2600-core/vcscore/tia"
	"github.com/atari2600-core/vcscore/vcs"
)

var (
	cartPath   = flag.String("cart", "", "path to the cartridge image to load")
	schemeFlag = flag.String("scheme", "", "bank-switch scheme: 2k, 4k, f8, f6, f4 (defaults to the conventional scheme for the file's size)")
	count      = flag.Int("count", 1_000_000, "number of CPU instructions to run before stopping")
	dumpFrame  = flag.String("dumpframe", "", "if set, write the last completed frame as a 2x-scaled PPM to this path")
	debug      = flag.Bool("debug", false, "emit per-instruction CPU/PIA/TIA debug lines")
)

func parseScheme(s string, romLen int) (cartridge.Scheme, error) {
	switch s {
	case "":
		return cartridge.SchemeForSize(romLen)
	case "2k":
		return cartridge.Scheme2K, nil
	case "4k":
		return cartridge.Scheme4K, nil
	case "f8":
		return cartridge.SchemeF8, nil
	case "f6":
		return cartridge.SchemeF6, nil
	case "f4":
		return cartridge.SchemeF4, nil
	default:
		return 0, fmt.Errorf("unknown -scheme %q (want 2k, 4k, f8, f6, or f4)", s)
	}
}

// probeHooks lets the sdlprobe build tag register an optional check
// without this file needing a build-tagged counterpart; the default
// build leaves it empty.
var probeHooks []func()

func main() {
	flag.Parse()
	for _, h := range probeHooks {
		h()
	}

	if *cartPath == "" {
		log.Fatal("vcscheck: -cart is required")
	}
	rom, err := os.ReadFile(*cartPath)
	if err != nil {
		log.Fatalf("vcscheck: reading cart: %v", err)
	}

	scheme, err := parseScheme(*schemeFlag, len(rom))
	if err != nil {
		log.Fatalf("vcscheck: %v", err)
	}

	var lastFrame tia.Frame
	frames := 0
	e, err := vcs.Init(&vcs.Def{
		ROM:    rom,
		Scheme: scheme,
		Debug:  *debug,
		FrameDone: func(f *tia.Frame) {
			lastFrame = *f
			frames++
		},
	})
	if err != nil {
		log.Fatalf("vcscheck: init: %v", err)
	}

	ran := 0
	exited := false
	for ; ran < *count; ran++ {
		if err := e.Step(); err != nil {
			if ff, ok := err.(*vcs.FatalFault); ok {
				fmt.Fprint(os.Stderr, ff.Dump)
				os.Exit(-1)
			}
			if _, ok := err.(cpu.ProgramExit); ok {
				exited = true
				break
			}
			log.Fatalf("vcscheck: step %d: %v", ran, err)
		}
	}
	if exited {
		fmt.Println("program exit: BRK with zero IRQ vector")
	}

	fmt.Printf("ran %d instructions, completed %d frames\n", ran, frames)

	if *dumpFrame != "" {
		if err := writePPM(*dumpFrame, &lastFrame); err != nil {
			log.Fatalf("vcscheck: dumping frame: %v", err)
		}
	}
}

// writePPM renders frame through tia.Palette into an image.NRGBA,
// scales it 2x with golang.org/x/image/draw for a more inspectable
// result, and writes a plain PPM (P6) file - no PNG/JPEG dependency
// needed for a one-off diagnostic dump.
func writePPM(path string, frame *tia.Frame) error {
	const w, h = 160, 192
	src := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := tia.Palette[frame.Pixels[y][x]&0x7F]
			draw.Draw(src, image.Rect(x, y, x+1, y+1), &image.Uniform{C: c}, image.Point{}, draw.Src)
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w*2, h*2))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "P6\n%d %d\n255\n", dst.Bounds().Dx(), dst.Bounds().Dy()); err != nil {
		return err
	}
	bounds := dst.Bounds()
	buf := make([]byte, 0, bounds.Dx()*bounds.Dy()*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			buf = append(buf, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}
	_, err = f.Write(buf)
	return err
}
