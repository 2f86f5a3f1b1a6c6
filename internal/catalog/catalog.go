// Package catalog loads instrument descriptions written in YAML into a
// region catalog. Samples are WAV files decoded with beep, or test tones
// synthesised on the spot for instruments that ship without audio.
package catalog

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gopxl/beep/wav"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/cbegin/polysampler-go/internal/debug"
	"github.com/cbegin/polysampler-go/internal/envelope"
	"github.com/cbegin/polysampler-go/internal/lfo"
	"github.com/cbegin/polysampler-go/internal/modkey"
	"github.com/cbegin/polysampler-go/internal/region"
	"github.com/cbegin/polysampler-go/internal/stream"
)

// File is the on-disk instrument description.
type File struct {
	Name       string            `yaml:"name"`
	SampleRate int               `yaml:"sample_rate,omitempty"` // for synthesised tones
	CCDefaults map[uint8]float64 `yaml:"cc_defaults,omitempty"`
	Regions    []RegionSpec      `yaml:"regions"`
}

// RegionSpec describes one region.
type RegionSpec struct {
	Name      string               `yaml:"name,omitempty"`
	Sample    string               `yaml:"sample,omitempty"`
	Tone      *ToneSpec            `yaml:"tone,omitempty"`
	Key       []uint8              `yaml:"key,flow,omitempty"`
	Velocity  []uint8              `yaml:"vel,flow,omitempty"`
	CC        map[uint8][]uint8    `yaml:"cc,omitempty"`
	Trigger   string               `yaml:"trigger,omitempty"` // attack | release
	Keycenter *uint8               `yaml:"keycenter,omitempty"`
	Keytrack  *float64             `yaml:"keytrack,omitempty"`
	VelTrack  *float64             `yaml:"amp_veltrack,omitempty"`
	Offset    int64                `yaml:"offset,omitempty"`
	Loop      []int64              `yaml:"loop,flow,omitempty"`
	Group     int                  `yaml:"group,omitempty"`
	OffBy     int                  `yaml:"off_by,omitempty"`
	Overlap   bool                 `yaml:"overlap,omitempty"`
	Filters   int                  `yaml:"filters,omitempty"`
	Params    map[string]float64   `yaml:"params,omitempty"`
	CCDefault map[uint8]float64    `yaml:"cc_defaults,omitempty"`
	AmpEG     *EnvelopeSpec        `yaml:"amp_eg,omitempty"`
	EGs       []EnvelopeSpec       `yaml:"envelopes,omitempty"`
	LFOs      []LFOSpec            `yaml:"lfos,omitempty"`
	Conns     []ConnectionSpec     `yaml:"connections,omitempty"`
	Ranges    map[string][]float64 `yaml:"ranges,omitempty"`
}

type ToneSpec struct {
	Kind    string  `yaml:"kind"`
	Freq    float64 `yaml:"freq"`
	Seconds float64 `yaml:"seconds"`
}

type EnvelopeSpec struct {
	Delay   float64 `yaml:"delay,omitempty"`
	Start   float64 `yaml:"start,omitempty"`
	Attack  float64 `yaml:"attack,omitempty"`
	Hold    float64 `yaml:"hold,omitempty"`
	Decay   float64 `yaml:"decay,omitempty"`
	Sustain float64 `yaml:"sustain"`
	Release float64 `yaml:"release,omitempty"`
}

type LFOSpec struct {
	Freq  float64 `yaml:"freq"`
	Wave  string  `yaml:"wave,omitempty"`
	Delay float64 `yaml:"delay,omitempty"`
	Phase float64 `yaml:"phase,omitempty"`
}

type ConnectionSpec struct {
	Source string  `yaml:"source"`
	Target string  `yaml:"target"`
	Curve  string  `yaml:"curve,omitempty"`
	Depth  float64 `yaml:"depth"`
	Step   float64 `yaml:"step,omitempty"`
}

// Options control loading.
type Options struct {
	// Dir resolves relative sample paths. Load sets it to the file's
	// directory when empty.
	Dir string
	// Progressive returns as soon as every sample is opened; decoding
	// continues in the background and voices may start on partly loaded
	// samples. Call Instrument.Wait to collect decode errors.
	Progressive bool
	Chunk       int
}

// Instrument is a loaded catalog.
type Instrument struct {
	Name        string
	Catalog     *region.Catalog
	Diagnostics []region.Diagnostic

	loads  *errgroup.Group
	cancel context.CancelFunc
}

// Wait blocks until every background sample load has finished.
func (in *Instrument) Wait() error {
	if in.loads == nil {
		return nil
	}
	return in.loads.Wait()
}

// Close cancels outstanding loads.
func (in *Instrument) Close() error {
	if in.cancel != nil {
		in.cancel()
	}
	return in.Wait()
}

// Load reads an instrument file.
func Load(path string, opts Options) (*Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading instrument")
	}
	if opts.Dir == "" {
		opts.Dir = filepath.Dir(path)
	}
	in, err := Parse(data, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "instrument %s", path)
	}
	return in, nil
}

// Parse builds an instrument from YAML.
func Parse(data []byte, opts Options) (*Instrument, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing yaml")
	}
	if len(f.Regions) == 0 {
		return nil, errors.New("no regions")
	}
	if f.SampleRate <= 0 {
		f.SampleRate = 48000
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	in := &Instrument{Name: f.Name, Catalog: region.NewCatalog(), loads: g, cancel: cancel}
	samples := map[string]*stream.Buffer{}

	for i := range f.Regions {
		spec := &f.Regions[i]
		r, err := buildRegion(i, spec, &f)
		if err != nil {
			cancel()
			g.Wait()
			return nil, errors.Wrapf(err, "region %d (%s)", i, spec.Name)
		}
		buf, err := loadSample(gctx, g, spec, &f, opts, samples)
		if err != nil {
			cancel()
			g.Wait()
			return nil, errors.Wrapf(err, "region %d (%s)", i, r.Name)
		}
		r.Sample = buf
		in.Catalog.Add(r)
	}

	diags, err := in.Catalog.Build()
	if err != nil {
		cancel()
		g.Wait()
		return nil, err
	}
	in.Diagnostics = diags
	for _, d := range diags {
		debug.Log("catalog", "%s", d)
	}
	debug.Log("catalog", "%q: %d regions, %d samples", f.Name, in.Catalog.Len(), len(samples))

	if !opts.Progressive {
		if err := g.Wait(); err != nil {
			cancel()
			return nil, err
		}
	}
	return in, nil
}

func buildRegion(i int, spec *RegionSpec, f *File) (*region.Region, error) {
	name := spec.Name
	if name == "" {
		name = "region" + strconv.Itoa(i)
	}
	r := region.New(i, name)
	var err error
	if r.Trigger.Key, err = parseRange(spec.Key, region.Full); err != nil {
		return nil, errors.Wrap(err, "key")
	}
	if r.Trigger.Velocity, err = parseRange(spec.Velocity, region.Full); err != nil {
		return nil, errors.Wrap(err, "vel")
	}
	if len(spec.CC) > 0 {
		r.Trigger.CC = make(map[uint8]region.Range, len(spec.CC))
		for cc, rng := range spec.CC {
			if r.Trigger.CC[cc], err = parseRange(rng, region.Full); err != nil {
				return nil, errors.Wrapf(err, "cc %d", cc)
			}
		}
	}
	switch strings.ToLower(spec.Trigger) {
	case "", "attack":
	case "release":
		r.Trigger.On = region.TriggerRelease
	default:
		return nil, errors.Errorf("unknown trigger %q", spec.Trigger)
	}
	if spec.Keycenter != nil {
		r.PitchKeycenter = *spec.Keycenter
	}
	if spec.Keytrack != nil {
		r.PitchKeytrack = *spec.Keytrack
	}
	if spec.VelTrack != nil {
		r.AmpVelTrack = min(max(*spec.VelTrack, 0), 1)
	}
	r.SampleOffset = spec.Offset
	r.Group, r.OffBy = spec.Group, spec.OffBy
	r.OverlapTriggers = spec.Overlap
	r.Filters = spec.Filters

	r.CCDefaults = map[uint8]float64{}
	for cc, v := range f.CCDefaults {
		r.CCDefaults[cc] = v
	}
	for cc, v := range spec.CCDefault {
		r.CCDefaults[cc] = v
	}

	if spec.AmpEG != nil {
		r.AmpEG = spec.AmpEG.params()
	}
	for _, e := range spec.EGs {
		r.Envelopes = append(r.Envelopes, e.params())
	}
	for _, l := range spec.LFOs {
		r.LFOs = append(r.LFOs, lfo.Params{Freq: l.Freq, Wave: lfo.ParseWave(l.Wave), Delay: l.Delay, Phase: l.Phase})
	}

	for name, v := range spec.Params {
		k, err := ParseKey(name)
		if err != nil {
			return nil, errors.Wrap(err, "params")
		}
		r.SetStatic(k, v)
	}
	for name, rng := range spec.Ranges {
		k, err := ParseKey(name)
		if err != nil {
			return nil, errors.Wrap(err, "ranges")
		}
		if len(rng) != 2 || rng[0] > rng[1] {
			return nil, errors.Errorf("range for %s must be [min, max]", name)
		}
		if r.Ranges == nil {
			r.Ranges = map[modkey.ModKey]modkey.Range{}
		}
		r.Ranges[k] = modkey.Range{Min: rng[0], Max: rng[1]}
	}
	for j, c := range spec.Conns {
		conn, err := c.connection()
		if err != nil {
			return nil, errors.Wrapf(err, "connection %d", j)
		}
		r.Connections = append(r.Connections, conn)
	}
	return r, nil
}

func (e EnvelopeSpec) params() envelope.Params {
	return envelope.Params{
		Delay:   e.Delay,
		Start:   e.Start,
		Attack:  e.Attack,
		Hold:    e.Hold,
		Decay:   e.Decay,
		Sustain: e.Sustain,
		Release: e.Release,
	}
}

func (c ConnectionSpec) connection() (modkey.Connection, error) {
	src, err := ParseKey(c.Source)
	if err != nil {
		return modkey.Connection{}, errors.Wrap(err, "source")
	}
	dst, err := ParseKey(c.Target)
	if err != nil {
		return modkey.Connection{}, errors.Wrap(err, "target")
	}
	curve, ok := modkey.ParseCurve(c.Curve)
	if !ok {
		return modkey.Connection{}, errors.Errorf("unknown curve %q", c.Curve)
	}
	return modkey.Connection{Source: src, Target: dst, Curve: curve, Depth: c.Depth, Step: c.Step}, nil
}

// ParseKey reads a ModKey written the way ModKey.String prints it:
// "Controller 7", "LFO {1}", "FilterCutoff" or "FilterCutoff {1}". The
// braces are optional.
func ParseKey(s string) (modkey.ModKey, error) {
	fields := strings.Fields(strings.NewReplacer("{", " ", "}", " ").Replace(s))
	if len(fields) == 0 || len(fields) > 2 {
		return modkey.ModKey{}, errors.Errorf("bad modulation key %q", s)
	}
	id, ok := modkey.ParseID(fields[0])
	if !ok {
		return modkey.ModKey{}, errors.Errorf("unknown modulation key %q", fields[0])
	}
	k := modkey.ModKey{ID: id}
	if len(fields) == 2 {
		n, err := strconv.ParseUint(fields[1], 10, 8)
		if err != nil || n > 127 {
			return modkey.ModKey{}, errors.Errorf("bad index in %q", s)
		}
		if id == modkey.Controller {
			k.CC = uint8(n)
		} else {
			k.N = uint8(n)
		}
	} else if id == modkey.Controller {
		return modkey.ModKey{}, errors.Errorf("%q needs a controller number", s)
	}
	return k, nil
}

func parseRange(v []uint8, def region.Range) (region.Range, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 1:
		v = []uint8{v[0], v[0]}
	case 2:
	default:
		return def, errors.Errorf("range %v must have one or two values", v)
	}
	if v[0] > v[1] || v[1] > 127 {
		return def, errors.Errorf("bad range %v", v)
	}
	return region.Range{Lo: v[0], Hi: v[1]}, nil
}

// loadSample binds the region's sample, sharing buffers between regions that
// name the same file.
func loadSample(ctx context.Context, g *errgroup.Group, spec *RegionSpec, f *File, opts Options, cache map[string]*stream.Buffer) (*stream.Buffer, error) {
	var buf *stream.Buffer
	switch {
	case spec.Sample != "" && spec.Tone != nil:
		return nil, errors.New("sample and tone are mutually exclusive")
	case spec.Tone != nil:
		t := spec.Tone
		secs := t.Seconds
		if secs <= 0 {
			secs = 1
		}
		kind := t.Kind
		if kind == "" {
			kind = stream.ToneSine
		}
		buf = stream.Synth(kind, kind+":"+strconv.FormatFloat(t.Freq, 'g', -1, 64), float64(f.SampleRate), int(math.Round(secs*float64(f.SampleRate))), t.Freq)
	case spec.Sample != "":
		path := spec.Sample
		if !filepath.IsAbs(path) {
			path = filepath.Join(opts.Dir, path)
		}
		if b, ok := cache[path]; ok {
			buf = b
			break
		}
		b, err := openWAV(ctx, g, path, opts.Chunk)
		if err != nil {
			return nil, err
		}
		cache[path] = b
		buf = b
	default:
		return nil, nil
	}
	if len(spec.Loop) == 2 {
		// the cached buffer is shared; loop points belong to this region
		buf = buf.WithLoop(spec.Loop[0], spec.Loop[1])
	}
	return buf, nil
}

// openWAV decodes the header now and streams the frames into the buffer on
// the error group.
func openWAV(ctx context.Context, g *errgroup.Group, path string, chunk int) (*stream.Buffer, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sample")
	}
	s, format, err := wav.Decode(fh)
	if err != nil {
		fh.Close()
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	buf := stream.NewBuffer(filepath.Base(path), float64(format.SampleRate), s.Len())
	g.Go(func() error {
		defer s.Close()
		if err := stream.Fill(ctx, buf, s, chunk); err != nil {
			return errors.Wrapf(err, "loading %s", path)
		}
		debug.Log("catalog", "loaded %s: %d frames at %d Hz", buf.Name, buf.Frames(), format.SampleRate)
		return nil
	})
	return buf, nil
}
