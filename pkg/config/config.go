// Package config loads detection settings from YAML or TOML files and
// layers them over the ensemble defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/hed1ad/ghostml/pkg/ensemble"
)

const maxFileSize = 1 << 20

// ErrFormat is returned for config files with an unrecognized extension.
var ErrFormat = errors.New("unsupported config format, want .yaml, .yml or .toml")

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// File is the on-disk configuration. Unset fields keep their defaults.
type File struct {
	SensitivityScore     *float64           `yaml:"sensitivity_score" toml:"sensitivity_score"`
	MaxFractionAnomalies *float64           `yaml:"max_fraction_anomalies" toml:"max_fraction_anomalies"`
	NNeighbors           *int               `yaml:"n_neighbors" toml:"n_neighbors"`
	SensitivityFactors   map[string]float64 `yaml:"sensitivity_factors" toml:"sensitivity_factors"`

	Detectors       []string  `yaml:"detectors" toml:"detectors"`
	Anchor          string    `yaml:"anchor" toml:"anchor"`
	Workers         int       `yaml:"workers" toml:"workers"`
	DetectorTimeout *Duration `yaml:"detector_timeout" toml:"detector_timeout"`
	Seed            *int64    `yaml:"seed" toml:"seed"`

	LogLevel  string `yaml:"log_level" toml:"log_level"`
	LogFormat string `yaml:"log_format" toml:"log_format"`
}

// Load reads a config file, choosing the decoder by extension. Unknown keys
// are rejected.
func Load(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Size() > maxFileSize {
		return File{}, fmt.Errorf("config file too large: %s (%d bytes, max 1 MB)", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return File{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &f)
		if err != nil {
			return File{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return File{}, fmt.Errorf("%s: unknown keys %v", path, undecoded)
		}
	default:
		return File{}, fmt.Errorf("%s: %w", path, ErrFormat)
	}
	return f, nil
}

// Apply overlays the file's request parameters onto base. Sensitivity
// factors are merged per detector.
func (f File) Apply(base ensemble.Config) ensemble.Config {
	cfg := base.Clone()
	if f.SensitivityScore != nil {
		cfg.SensitivityScore = *f.SensitivityScore
	}
	if f.MaxFractionAnomalies != nil {
		cfg.MaxFractionAnomalies = *f.MaxFractionAnomalies
	}
	if f.NNeighbors != nil {
		cfg.NNeighbors = *f.NNeighbors
	}
	if cfg.SensitivityFactors == nil && len(f.SensitivityFactors) > 0 {
		cfg.SensitivityFactors = make(map[string]float64, len(f.SensitivityFactors))
	}
	for name, v := range f.SensitivityFactors {
		cfg.SensitivityFactors[name] = v
	}
	return cfg
}

// Options translates the pipeline settings into ensemble options.
func (f File) Options() ([]ensemble.Option, error) {
	var opts []ensemble.Option
	if len(f.Detectors) > 0 {
		reg, err := ensemble.Catalog().Select(f.Detectors...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ensemble.WithRegistry(reg))
	}
	if f.Anchor != "" {
		opts = append(opts, ensemble.WithAnchor(f.Anchor))
	}
	if f.Workers > 0 {
		opts = append(opts, ensemble.WithWorkers(f.Workers))
	}
	if f.DetectorTimeout != nil {
		opts = append(opts, ensemble.WithDetectorTimeout(time.Duration(*f.DetectorTimeout)))
	}
	if f.Seed != nil {
		opts = append(opts, ensemble.WithSeed(*f.Seed))
	}
	return opts, nil
}
