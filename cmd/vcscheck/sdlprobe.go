//go:build sdlprobe

package main

import (
	"flag"
	"log"

	"github.com/veandco/go-sdl2/sdl"
)

var sdlProbe = flag.Bool("sdlprobe", false, "when built with -tags sdlprobe, open and immediately close a window-less SDL context to prove presentation libraries are reachable from this build")

func init() {
	probeHooks = append(probeHooks, func() {
		if !*sdlProbe {
			return
		}
		if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
			log.Fatalf("vcscheck: sdl probe: %v", err)
		}
		defer sdl.Quit()
		log.Print("vcscheck: sdl probe ok")
	})
}
