package midiin

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/polysampler-go/internal/sequencer"
)

// ReadSMF loads a Standard MIDI File as a score on every channel.
func ReadSMF(path string) (*sequencer.Score, error) {
	return ReadSMFFiltered(path, Omni)
}

// ReadSMFFiltered loads a Standard MIDI File keeping only what f accepts.
func ReadSMFFiltered(path string, f Filter) (*sequencer.Score, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening midi file")
	}
	defer fh.Close()
	sc, err := ReadSMFReader(fh, f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return sc, nil
}

// ReadSMFReader decodes an SMF stream. Times come from the file's tempo map,
// so tempo changes are honoured. The score's Duration is the time of the
// last event of any kind, including the end-of-track meta event.
func ReadSMFReader(r io.Reader, f Filter) (*sequencer.Score, error) {
	sc := &sequencer.Score{}
	var last int64
	tr := smf.ReadTracksFrom(r).Do(func(ev smf.TrackEvent) {
		last = max(last, ev.AbsMicroSeconds)
		if e, ok := f.Translate(midi.Message(ev.Message)); ok {
			sc.Add(float64(ev.AbsMicroSeconds)/1e6, e)
		}
	})
	if err := tr.Error(); err != nil {
		return nil, errors.Wrap(err, "decoding smf")
	}
	sc.Sort()
	sc.Duration = float64(last) / 1e6
	return sc, nil
}
