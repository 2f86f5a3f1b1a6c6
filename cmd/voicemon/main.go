// Command voicemon plays an instrument and shows what every voice is doing.
// Notes come from a MIDI file, a MIDI input or the computer keyboard.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	polysampler "github.com/cbegin/polysampler-go"
	"github.com/cbegin/polysampler-go/internal/config"
	"github.com/cbegin/polysampler-go/internal/debug"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the MIDI driver
)

func main() {
	var (
		instrument = flag.String("instrument", "", "instrument yaml; defaults to the config's catalog")
		midiPath   = flag.String("file", "", "Standard MIDI File to loop while monitoring")
		inPort     = flag.String("in", "", "also play from the named MIDI input")
		backend    = flag.String("backend", "", "audio backend: ebiten|oto|null (default from config)")
		debugLog   = flag.String("debug-log", "", "write a debug log to this path")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if *debugLog != "" {
		if err := debug.Enable(*debugLog); err != nil {
			log.Fatal(err)
		}
		defer debug.Disable()
	}
	if *backend == "" {
		*backend = cfg.Backend
	}
	params := cfg.EngineParams()
	pl, err := polysampler.NewPlayer(params.SampleRate,
		polysampler.WithParams(params),
		polysampler.WithBackend(*backend),
		polysampler.WithLoopPlayback(true),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer pl.Stop()

	path := *instrument
	if path == "" {
		path = cfg.Catalog
	}
	if path, err = config.ExpandPath(path); err != nil {
		log.Fatal(err)
	}
	if path == "" {
		log.Fatal("no instrument: pass -instrument or set catalog in the config file")
	}
	in, err := pl.LoadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	for _, d := range in.Diagnostics {
		debug.Log("voicemon", "%s", d)
	}

	if *midiPath != "" {
		if err := pl.PlaySMF(*midiPath); err != nil {
			log.Fatal(err)
		}
	}
	if *inPort != "" {
		stop, err := pl.ListenMIDI(*inPort)
		if err != nil {
			log.Fatal(err)
		}
		defer stop()
	}

	title := fmt.Sprintf("voicemon  %s  %d regions", filepath.Base(path), in.Catalog.Len())
	p := tea.NewProgram(NewModel(pl, title), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
