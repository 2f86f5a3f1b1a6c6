// Command render_wav renders a MIDI file (or a test arpeggio) to a WAV file
// offline. Several instruments separated by commas are layered.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	polysampler "github.com/cbegin/polysampler-go"
	"github.com/cbegin/polysampler-go/internal/catalog"
	"github.com/cbegin/polysampler-go/internal/config"
	"github.com/cbegin/polysampler-go/internal/engine"
	"github.com/cbegin/polysampler-go/internal/midiin"
	"github.com/cbegin/polysampler-go/internal/sequencer"
)

func main() {
	var (
		configPath  = flag.String("config", "", "config file (default ~/.config/polysampler/config.yaml)")
		instruments = flag.String("instrument", "", "instrument yaml, or several separated by commas to layer")
		midiPath    = flag.String("file", "", "Standard MIDI File to render")
		outPath     = flag.String("out", "out.wav", "output WAV path")
		sampleRate  = flag.Int("sample-rate", 0, "output sample rate (0 = from config)")
		maxSeconds  = flag.Float64("max-seconds", 600, "stop rendering after this many seconds")
		transpose   = flag.Int("transpose", 0, "transpose in semitones")
		channel     = flag.Int("channel", midiin.AllChannels, "MIDI channel 1-16, or -1 for all")
	)
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatal(err)
	}
	params := cfg.EngineParams()
	if *sampleRate > 0 {
		params.SampleRate = *sampleRate
	}

	paths := splitPaths(firstNonEmpty(*instruments, cfg.Catalog))
	if len(paths) == 0 {
		log.Fatal("no instrument: pass -instrument or set catalog in the config file")
	}
	layers, err := loadLayers(paths, params)
	if err != nil {
		log.Fatal(err)
	}

	score, err := readScore(*midiPath, *channel)
	if err != nil {
		log.Fatal(err)
	}

	eng := sequencer.NewMultiEngine(layers...)
	seq := sequencer.NewWithOptions(score, eng, sequencer.Options{
		ReleaseTailFrames: eng.Params().SampleRate / 10,
		MasterTranspose:   *transpose,
	})
	limit := int(*maxSeconds * float64(params.SampleRate))
	block := make([]float32, eng.Params().BlockSize*2)
	var out []float32
	for frames := 0; frames < limit && !seq.Ended(); {
		n := min(len(block)/2, limit-frames)
		seq.Process(block[:n*2])
		out = append(out, block[:n*2]...)
		frames += n
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := polysampler.WriteWAV(f, out, params.SampleRate); err != nil {
		f.Close()
		log.Fatal(err)
	}
	if err := f.Close(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s: %.2fs, %d layer(s)\n", *outPath, float64(len(out)/2)/float64(params.SampleRate), len(layers))
}

// loadLayers reads every instrument in parallel and builds one engine each.
func loadLayers(paths []string, params engine.Params) ([]sequencer.Engine, error) {
	layers := make([]sequencer.Engine, len(paths))
	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			p, err := config.ExpandPath(path)
			if err != nil {
				return err
			}
			in, err := catalog.Load(p, catalog.Options{})
			if err != nil {
				return err
			}
			for _, d := range in.Diagnostics {
				fmt.Fprintf(os.Stderr, "%s: warning: %s\n", path, d)
			}
			synth, err := engine.New(params, in.Catalog)
			if err != nil {
				return err
			}
			layers[i] = synth
			return nil
		})
	}
	return layers, g.Wait()
}

func readScore(path string, channel int) (*sequencer.Score, error) {
	if path == "" {
		var sc sequencer.Score
		for i, key := range []uint8{48, 55, 60, 64, 67, 72} {
			sc.Note(float64(i)*0.3, 1.2, key, 96)
		}
		return &sc, nil
	}
	f := midiin.Omni
	if channel > 0 {
		f.Channel = channel - 1
	}
	return midiin.ReadSMFFiltered(path, f)
}

func splitPaths(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
