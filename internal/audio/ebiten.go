package audio

import (
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/pkg/errors"
)

// EbitenLatency is the output buffer requested from Ebiten. Ebiten's own
// default is tuned for games and adds audible delay to live playing.
const EbitenLatency = 20 * time.Millisecond

// EbitenPlayer plays through Ebiten's audio context.
type EbitenPlayer struct {
	mu      sync.Mutex
	player  *ebitaudio.Player
	reader  *StreamReader
	stopped bool
}

var (
	ebitenOnce       sync.Once
	ebitenContext    *ebitaudio.Context
	ebitenSampleRate int
)

// Ebiten allows one context per process, at one sample rate.
func sharedEbitenContext(sampleRate int) (*ebitaudio.Context, error) {
	ebitenOnce.Do(func() {
		ebitenSampleRate = sampleRate
		ebitenContext = ebitaudio.NewContext(sampleRate)
	})
	if ebitenSampleRate != sampleRate {
		return nil, errors.Errorf("ebiten audio already running at %d Hz (requested %d Hz)", ebitenSampleRate, sampleRate)
	}
	return ebitenContext, nil
}

func NewEbitenPlayer(sampleRate int, source SampleSource) (*EbitenPlayer, error) {
	ctx, err := sharedEbitenContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, errors.Wrap(err, "ebiten player")
	}
	pl.SetBufferSize(EbitenLatency)
	return &EbitenPlayer{player: pl, reader: reader}, nil
}

func (p *EbitenPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.player.Play()
	}
}

func (p *EbitenPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.player.Pause()
	}
}

func (p *EbitenPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.stopped && p.player.IsPlaying()
}

// Position is reported by Ebiten, which already subtracts what is still
// buffered.
func (p *EbitenPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return 0
	}
	return p.player.Position()
}

func (p *EbitenPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.stopped = true
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return errors.Wrap(err, "closing ebiten player")
	}
	return p.reader.Close()
}
