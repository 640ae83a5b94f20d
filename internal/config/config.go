// Package config loads run settings and per-species scaling parameter
// overrides from TOML or YAML files.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"seem/internal/scaling"
	"seem/internal/stand"
	"seem/pkg/taper"
)

// ErrUnsupportedFormat is returned for files that are neither TOML nor YAML.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Config holds everything a volume run needs beyond the tree list.
type Config struct {
	Units    stand.Units
	Policy   scaling.LogLengthPolicy
	Policies map[scaling.LogLengthPolicy]scaling.BuckingPolicy
	// Species holds full parameter sets for species with overrides; missing
	// keys in the file keep the species defaults.
	Species map[taper.Species]taper.ScalingParameters
}

// Default returns metric units, the forwarder policy and no overrides.
func Default() Config {
	c := Config{
		Units:    stand.Metric,
		Policy:   scaling.ForwarderLogs,
		Policies: make(map[scaling.LogLengthPolicy]scaling.BuckingPolicy),
		Species:  make(map[taper.Species]taper.ScalingParameters),
	}
	for _, p := range scaling.Policies {
		c.Policies[p] = scaling.DefaultBuckingPolicy(p)
	}
	return c
}

type policyFile struct {
	PreferredLogLength *float64 `toml:"preferred_log_length" yaml:"preferred_log_length"`
	Scribner           string   `toml:"scribner" yaml:"scribner"`
	MaximumLogs        *int     `toml:"maximum_logs" yaml:"maximum_logs"`
}

// Load reads a config file, choosing the decoder by extension (.toml,
// .yaml or .yml), and validates the result.
func Load(path string) (Config, error) {
	var (
		cfg Config
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		cfg, err = loadTOML(path)
	case ".yaml", ".yml":
		cfg, err = loadYAML(path)
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

type tomlFile struct {
	Units    string                    `toml:"units"`
	Policy   string                    `toml:"policy"`
	Policies map[string]policyFile     `toml:"policies"`
	Species  map[string]toml.Primitive `toml:"species"`
}

func loadTOML(path string) (Config, error) {
	var raw tomlFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg, err := settings(raw.Units, raw.Policy, raw.Policies)
	if err != nil {
		return Config{}, err
	}
	for code, prim := range raw.Species {
		species, err := taper.ParseSpecies(code)
		if err != nil {
			return Config{}, err
		}
		params := taper.DefaultScalingParameters(species)
		if err := meta.PrimitiveDecode(prim, &params); err != nil {
			return Config{}, fmt.Errorf("species %s: %w", species, err)
		}
		cfg.Species[species] = params
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		unknown := make([]string, len(undecoded))
		for i, key := range undecoded {
			unknown[i] = key.String()
		}
		return Config{}, fmt.Errorf("load config: unknown keys %s", strings.Join(unknown, ", "))
	}
	return cfg, nil
}

type yamlFile struct {
	Units    string                `yaml:"units"`
	Policy   string                `yaml:"policy"`
	Policies map[string]policyFile `yaml:"policies"`
	Species  map[string]yaml.Node  `yaml:"species"`
}

func loadYAML(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var raw yamlFile
	if err := dec.Decode(&raw); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg, err := settings(raw.Units, raw.Policy, raw.Policies)
	if err != nil {
		return Config{}, err
	}
	for code, node := range raw.Species {
		species, err := taper.ParseSpecies(code)
		if err != nil {
			return Config{}, err
		}
		params := taper.DefaultScalingParameters(species)
		if err := node.Decode(&params); err != nil {
			return Config{}, fmt.Errorf("species %s: %w", species, err)
		}
		cfg.Species[species] = params
	}
	return cfg, nil
}

// settings applies the format-independent top-level keys to Default.
func settings(units, policy string, policies map[string]policyFile) (Config, error) {
	cfg := Default()
	var err error
	if units != "" {
		if cfg.Units, err = stand.ParseUnits(units); err != nil {
			return Config{}, err
		}
	}
	if policy != "" {
		if cfg.Policy, err = scaling.ParseLogLengthPolicy(policy); err != nil {
			return Config{}, err
		}
	}
	for name, pf := range policies {
		p, err := scaling.ParseLogLengthPolicy(name)
		if err != nil {
			return Config{}, err
		}
		bucking := cfg.Policies[p]
		if pf.PreferredLogLength != nil {
			bucking.PreferredLogLength = *pf.PreferredLogLength
		}
		if pf.MaximumLogs != nil {
			bucking.MaximumLogs = *pf.MaximumLogs
		}
		if pf.Scribner != "" {
			if bucking.Scribner, err = scaling.ParseScribnerMode(pf.Scribner); err != nil {
				return Config{}, fmt.Errorf("policy %s: %w", p, err)
			}
		}
		cfg.Policies[p] = bucking
	}
	return cfg, nil
}

// Validate checks policy lengths and every species parameter override.
func (c Config) Validate() error {
	var errs []error
	for _, p := range scaling.Policies {
		bucking, ok := c.Policies[p]
		if !ok {
			continue
		}
		if !(bucking.PreferredLogLength > 0) {
			errs = append(errs, fmt.Errorf("policy %s: preferred_log_length must be positive", p))
		}
		if bucking.MaximumLogs < 0 {
			errs = append(errs, fmt.Errorf("policy %s: maximum_logs must not be negative", p))
		}
	}
	for _, species := range slices.Sorted(maps.Keys(c.Species)) {
		if err := c.Species[species].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("species %s: %w", species, err))
		}
	}
	return errors.Join(errs...)
}

// CatalogOptions turns the policy and species overrides into catalog
// options.
func (c Config) CatalogOptions() []scaling.CatalogOption {
	var opts []scaling.CatalogOption
	for p, bucking := range c.Policies {
		opts = append(opts, scaling.WithPolicy(p, bucking))
	}
	for species, params := range c.Species {
		opts = append(opts, scaling.WithParameters(species, params))
	}
	return opts
}
