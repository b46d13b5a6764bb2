package config

import (
	"fmt"

	"github.com/yndnr/diskcache-go/internal/infra/confloader"
)

// KeySource reports which layer set a configuration key.
type KeySource struct {
	Key    string            `json:"key" yaml:"key"`
	Source confloader.Source `json:"source" yaml:"source"`
}

// Load builds a Config from defaults, the YAML file at path (optional) and
// DISKCACHE_ environment variables. overrides, keyed by dotted path such as
// "cache.dir", win over everything and come from command-line flags.
func Load(path string, overrides map[string]any) (*Config, error) {
	cfg, _, err := LoadWithSources(path, overrides)
	return cfg, err
}

// LoadWithSources is Load that also reports the layer behind every key set
// outside the defaults.
func LoadWithSources(path string, overrides map[string]any) (*Config, []KeySource, error) {
	cfg := Default()

	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	keys := loader.Keys()
	sources := make([]KeySource, 0, len(keys))
	for _, k := range keys {
		sources = append(sources, KeySource{Key: k, Source: loader.Origin(k)})
	}
	return cfg, sources, nil
}
