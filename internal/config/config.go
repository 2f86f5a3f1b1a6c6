// Package config reads and writes the user configuration file.
package config

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/cbegin/polysampler-go/internal/audio"
	"github.com/cbegin/polysampler-go/internal/engine"
	"github.com/cbegin/polysampler-go/internal/pool"
)

// Backend names, as understood by audio.Open.
const (
	BackendEbiten = audio.BackendEbiten
	BackendOto    = audio.BackendOto
	BackendNull   = audio.BackendNull
)

// PolicyConfig mirrors pool.Policy.
type PolicyConfig struct {
	Steal              bool  `yaml:"steal"`
	ProtectSustained   bool  `yaml:"protect_sustained,omitempty"`
	NonStealableGroups []int `yaml:"non_stealable_groups,flow,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	SampleRate       int          `yaml:"sample_rate"`
	BlockSize        int          `yaml:"block_size"`
	Polyphony        int          `yaml:"polyphony"`
	QueueSize        int          `yaml:"queue_size,omitempty"`
	MasterGain       float64      `yaml:"master_gain"`
	LimiterCeilingDB float64      `yaml:"limiter_ceiling_db,omitempty"`
	Backend          string       `yaml:"backend"`
	Policy           PolicyConfig `yaml:"policy"`
	// Catalog is the instrument loaded when a command is given none.
	Catalog  string `yaml:"catalog,omitempty"`
	DebugLog string `yaml:"debug_log,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	p := engine.DefaultParams()
	return &Config{
		SampleRate:       p.SampleRate,
		BlockSize:        p.BlockSize,
		Polyphony:        p.MaxPolyphony,
		QueueSize:        p.QueueSize,
		MasterGain:       p.MasterGain,
		LimiterCeilingDB: p.LimiterCeilingDB,
		Backend:          BackendEbiten,
		Policy:           PolicyConfig{Steal: p.Policy.Steal},
	}
}

// Dir returns the config directory path
func Dir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "locating home directory")
	}
	return filepath.Join(home, ".config", "polysampler"), nil
}

// Path returns the full path to config.yaml
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ExpandPath resolves a leading ~ and environment variables.
func ExpandPath(path string) (string, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return "", errors.Wrapf(err, "expanding %q", path)
	}
	return os.ExpandEnv(p), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file. Fields missing from the file keep their
// default values; a missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted silently.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendEbiten, BackendOto, BackendNull:
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if c.SampleRate < 0 || c.BlockSize < 0 || c.Polyphony < 0 {
		return errors.New("sample_rate, block_size and polyphony must not be negative")
	}
	return nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "writing %s", path)
}

// EngineParams converts the config to engine parameters.
func (c *Config) EngineParams() engine.Params {
	p := engine.DefaultParams()
	if c.SampleRate > 0 {
		p.SampleRate = c.SampleRate
	}
	if c.BlockSize > 0 {
		p.BlockSize = c.BlockSize
	}
	if c.Polyphony > 0 {
		p.MaxPolyphony = c.Polyphony
	}
	if c.QueueSize > 0 {
		p.QueueSize = c.QueueSize
	}
	p.MasterGain = c.MasterGain
	p.LimiterCeilingDB = c.LimiterCeilingDB
	p.Policy = pool.Policy{
		Steal:              c.Policy.Steal,
		ProtectSustained:   c.Policy.ProtectSustained,
		NonStealableGroups: c.Policy.NonStealableGroups,
	}
	return p
}
