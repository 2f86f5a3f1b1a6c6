package audio

import (
	"io"
	"runtime"
	"sync"
	"time"
)

// NullPlayer pulls the source without a sound card, as fast as the source
// renders. Tests and headless hosts use it.
type NullPlayer struct {
	mu         sync.Mutex
	reader     *StreamReader
	sampleRate int
	playing    bool
	stopped    bool
	wake       *sync.Cond
	done       chan struct{}
}

const nullChunk = 1024 * bytesPerFrame

func NewNullPlayer(sampleRate int, source SampleSource) *NullPlayer {
	p := &NullPlayer{
		reader:     NewStreamReader(source),
		sampleRate: sampleRate,
		done:       make(chan struct{}),
	}
	p.wake = sync.NewCond(&p.mu)
	go p.run()
	return p
}

func (p *NullPlayer) run() {
	defer close(p.done)
	buf := make([]byte, nullChunk)
	for {
		p.mu.Lock()
		for !p.playing && !p.stopped {
			p.wake.Wait()
		}
		if p.stopped {
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		if _, err := p.reader.Read(buf); err == io.EOF {
			p.mu.Lock()
			p.playing = false
			p.mu.Unlock()
		}
		runtime.Gosched()
	}
}

func (p *NullPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	p.wake.Broadcast()
}

func (p *NullPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

func (p *NullPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *NullPlayer) Position() time.Duration {
	return framesToDuration(p.reader.Frames(), p.sampleRate)
}

// Stop ends the pull loop and waits for it to exit.
func (p *NullPlayer) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.wake.Broadcast()
	p.mu.Unlock()
	<-p.done
	return p.reader.Close()
}
