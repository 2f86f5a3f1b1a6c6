package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	polysampler "github.com/cbegin/polysampler-go"
	"github.com/cbegin/polysampler-go/internal/config"
	"github.com/cbegin/polysampler-go/internal/debug"
	"github.com/cbegin/polysampler-go/internal/midiin"
	"github.com/cbegin/polysampler-go/internal/sequencer"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the MIDI driver
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ~/.config/polysampler/config.yaml)")
		instrument = flag.String("instrument", "", "instrument yaml; defaults to the config's catalog")
		midiPath   = flag.String("file", "", "Standard MIDI File to play")
		inPort     = flag.String("in", "", "play live from the named MIDI input")
		listPorts  = flag.Bool("list", false, "list MIDI inputs and exit")
		sampleRate = flag.Int("sample-rate", 0, "output sample rate (0 = from config)")
		backend    = flag.String("backend", "", "audio backend: ebiten|oto|null (default from config)")
		loop       = flag.Bool("loop", false, "loop playback; use with -loops to count then stop")
		loops      = flag.Int("loops", 3, "when -loop, stop after N loops (0 = loop forever)")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		transpose  = flag.Int("transpose", 0, "transpose in semitones")
		channel    = flag.Int("channel", midiin.AllChannels, "MIDI channel 1-16, or -1 for all")
		debugLog   = flag.String("debug-log", "", "write a debug log to this path")
	)
	flag.Parse()

	if *listPorts {
		for _, name := range midiin.Inputs() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if path := firstNonEmpty(*debugLog, cfg.DebugLog); path != "" {
		if p, err := config.ExpandPath(path); err == nil {
			if err := debug.Enable(p); err != nil {
				log.Fatal(err)
			}
		}
	}

	params := cfg.EngineParams()
	if *sampleRate > 0 {
		params.SampleRate = *sampleRate
	}
	pl, err := polysampler.NewPlayer(params.SampleRate,
		polysampler.WithParams(params),
		polysampler.WithBackend(firstNonEmpty(*backend, cfg.Backend)),
		polysampler.WithLoopPlayback(*loop),
	)
	if err != nil {
		log.Fatal(err)
	}
	pl.SetMasterVolume(*volume)
	pl.SetTranspose(*transpose)
	if *channel > 0 {
		pl.SetChannel(*channel - 1)
	}

	path, err := config.ExpandPath(firstNonEmpty(*instrument, cfg.Catalog))
	if err != nil {
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
		fmt.Fprintln(os.Stderr, "warning:", d)
	}

	if *inPort != "" {
		live(pl, *inPort)
		return
	}

	ch := pl.Watch()
	if *midiPath != "" {
		err = pl.PlaySMF(*midiPath)
	} else {
		err = pl.PlayScore(demoScore())
	}
	if err != nil {
		log.Fatal(err)
	}
	loopCount := 0
	for event := range ch {
		switch event.Kind {
		case polysampler.EventPlaybackEnded:
			fmt.Println("playback completed")
			goto done
		case polysampler.EventLoopCompleted:
			loopCount++
			fmt.Printf("loop %d completed\n", loopCount)
			if *loop && *loops > 0 && loopCount >= *loops {
				pl.Stop()
			}
		}
	}
done:
	pl.Wait()
	st := pl.Stats()
	fmt.Printf("blocks=%d steals=%d dropped=%d underruns=%d\n", st.Blocks, st.Steals, st.Dropped, st.Underruns)
}

func live(pl *polysampler.Player, port string) {
	stop, err := pl.ListenMIDI(port)
	if err != nil {
		log.Fatal(err)
	}
	defer stop()
	fmt.Printf("listening on %s, ctrl-c to quit\n", port)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	pl.Stop()
}

// demoScore is an arpeggio for trying an instrument without a MIDI file.
func demoScore() *sequencer.Score {
	var sc sequencer.Score
	for i, key := range []uint8{60, 64, 67, 71, 74, 77, 81} {
		sc.Note(float64(i)*0.25, 0.4, key, 100)
	}
	return &sc
}

func loadConfig(path string) (*config.Config, error) {
	if strings.TrimSpace(path) == "" {
		return config.Load()
	}
	p, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	return config.LoadFile(p)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
