package confloader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix of configuration environment variables.
const DefaultEnvPrefix = "DISKCACHE_"

// Source identifies the layer that set a configuration key.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlags   Source = "flags"
)

// Loader merges the configuration layers into a target struct.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any

	// origins maps each dotted key to the last layer that set it.
	origins map[string]Source
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file layer. An empty path skips it.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides sets the top layer, keyed by dotted path such as
// "cache.dir".
func WithOverrides(m map[string]any) Option {
	return func(l *Loader) { l.overrides = m }
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		origins:   make(map[string]Source),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load applies the file, environment and override layers in that order and
// unmarshals the result into target. Fields no layer sets keep the values
// target already holds, so callers pass a struct filled with defaults.
func (l *Loader) Load(target any) error {
	if err := l.loadFile(); err != nil {
		return err
	}
	if err := l.loadEnv(); err != nil {
		return err
	}
	if err := l.loadOverrides(); err != nil {
		return err
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func (l *Loader) loadFile() error {
	if l.filePath == "" {
		return nil
	}
	layer := koanf.New(".")
	if err := layer.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", l.filePath, err)
	}
	return l.merge(layer, SourceFile)
}

// loadEnv reads variables with the loader's prefix. The first underscore
// after the prefix separates the section from the key, so
// DISKCACHE_CACHE_MAX_SIZE sets cache.max_size.
func (l *Loader) loadEnv() error {
	layer := koanf.New(".")
	provider := env.Provider(l.envPrefix, ".", func(s string) string {
		return EnvKey(l.envPrefix, s)
	})
	if err := layer.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return l.merge(layer, SourceEnv)
}

func (l *Loader) loadOverrides() error {
	if len(l.overrides) == 0 {
		return nil
	}
	layer := koanf.New(".")
	if err := layer.Load(mapProvider(l.overrides), nil); err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}
	return l.merge(layer, SourceFlags)
}

func (l *Loader) merge(layer *koanf.Koanf, src Source) error {
	if err := l.k.Merge(layer); err != nil {
		return fmt.Errorf("merge %s layer: %w", src, err)
	}
	for _, key := range layer.Keys() {
		l.origins[key] = src
	}
	return nil
}

// Origin returns the layer that set key, or SourceDefault.
func (l *Loader) Origin(key string) Source {
	if src, ok := l.origins[key]; ok {
		return src
	}
	return SourceDefault
}

// Keys returns every key set by a layer, sorted.
func (l *Loader) Keys() []string {
	keys := make([]string, 0, len(l.origins))
	for k := range l.origins {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvKey maps an environment variable name to a dotted configuration key.
func EnvKey(prefix, name string) string {
	s := strings.ToLower(strings.TrimPrefix(name, prefix))
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return section
	}
	return section + "." + key
}
