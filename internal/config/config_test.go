package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cbegin/polysampler-go/internal/audio"
)

func TestMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	got, want := cfg.EngineParams(), DefaultConfig().EngineParams()
	if got.SampleRate != want.SampleRate || got.MaxPolyphony != want.MaxPolyphony || got.MasterGain != want.MasterGain {
		t.Fatalf("params = %+v, want %+v", got, want)
	}
	if cfg.Backend != BackendEbiten {
		t.Fatalf("backend = %q", cfg.Backend)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "polyphony: 8\nbackend: oto\npolicy:\n  steal: true\n  protect_sustained: true\n  non_stealable_groups: [3]\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	p := cfg.EngineParams()
	if p.MaxPolyphony != 8 || p.SampleRate != 48000 || cfg.Backend != BackendOto {
		t.Fatalf("params = %+v backend=%s", p, cfg.Backend)
	}
	if !p.Policy.ProtectSustained || len(p.Policy.NonStealableGroups) != 1 || p.Policy.NonStealableGroups[0] != 3 {
		t.Fatalf("policy = %+v", p.Policy)
	}
}

func TestRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("backend: alsa\n"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error")
	}
}

func TestAcceptsEveryAudioBackend(t *testing.T) {
	for _, b := range []string{audio.BackendEbiten, audio.BackendOto, audio.BackendNull} {
		t.Run(b, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = b
			if err := cfg.Validate(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Polyphony = 12
	cfg.Catalog = "~/instruments/piano.yaml"
	if err := cfg.SaveFile(path); err != nil {
		t.Fatal(err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Polyphony != 12 || got.Catalog != cfg.Catalog {
		t.Fatalf("loaded %+v", got)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("POLY_TEST_DIR", "/tmp/x")
	got, err := ExpandPath("$POLY_TEST_DIR/a.yaml")
	if err != nil || got != "/tmp/x/a.yaml" {
		t.Fatalf("ExpandPath = %q, %v", got, err)
	}
}
