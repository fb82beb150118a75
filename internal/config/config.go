// Package config holds soli's runtime configuration.
//
// Configuration lives in soli.yaml (or soli.yml / soli.toml) next to the
// scripts. Every field has a default, so a missing file is not an error;
// a file only needs the keys it overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the top-level soli.yaml configuration.
type Config struct {
	VM     VMConfig     `yaml:"vm" toml:"vm"`
	Log    LogConfig    `yaml:"log" toml:"log"`
	Cache  CacheConfig  `yaml:"cache" toml:"cache"`
	Server ServerConfig `yaml:"server" toml:"server"`

	// ImportPaths are searched, in order, for modules named by import
	// statements. Relative entries are resolved against Dir.
	ImportPaths []string `yaml:"import_paths" toml:"import_paths"`

	// Dir is the directory containing the config file (set at load time).
	Dir string `yaml:"-" toml:"-"`
}

// VMConfig bounds a single execution.
type VMConfig struct {
	// MaxFrames is the call depth at which StackOverflow is raised.
	MaxFrames int `yaml:"max_frames" toml:"max_frames"`

	// TimeoutMS cancels a run after this many milliseconds. 0 disables it.
	TimeoutMS int `yaml:"timeout_ms" toml:"timeout_ms"`

	// Echo copies print output to stdout in the CLI.
	Echo bool `yaml:"echo" toml:"echo"`
}

// LogConfig selects the zerolog level and writer.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // console or json
}

// CacheConfig controls the compiled-module cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Path is the SQLite database file. Relative paths are resolved
	// against Dir. Empty keeps the cache in memory only.
	Path string `yaml:"path" toml:"path"`

	// MemoryEntries is the size of the in-process LRU tier.
	MemoryEntries int `yaml:"memory_entries" toml:"memory_entries"`
}

// ServerConfig configures `soli serve`.
type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`

	// MaxSourceBytes rejects larger requests. 0 means unlimited.
	MaxSourceBytes int `yaml:"max_source_bytes" toml:"max_source_bytes"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		VM: VMConfig{
			MaxFrames: DefaultMaxFrames,
			TimeoutMS: DefaultTimeoutMS,
			Echo:      true,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Path:          DefaultCachePath,
			MemoryEntries: DefaultMemoryEntries,
		},
		Server: ServerConfig{
			Addr: DefaultServerAddr,
		},
	}
}

// Load reads a configuration file. The format follows the extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	cfg.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolving config directory: %w", err)
	}
	return cfg, nil
}

// Parse decodes configuration bytes over the defaults. The path argument
// picks the format (.toml, otherwise YAML) and appears in error messages.
func Parse(data []byte, path string) (*Config, error) {
	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfig searches for a config file starting from dir and walking up
// to parent directories. It returns "" and a nil error when none exists.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

// FindAndLoad loads the nearest config file above dir, or the defaults
// (with Dir set to dir) when there is none.
func FindAndLoad(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}
	if path == "" {
		cfg := Default()
		cfg.Dir, err = filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving directory: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

func (c *Config) validate(path string) error {
	if c.VM.MaxFrames <= 0 {
		return fmt.Errorf("%s: vm.max_frames must be positive, got %d", path, c.VM.MaxFrames)
	}
	if c.VM.TimeoutMS < 0 {
		return fmt.Errorf("%s: vm.timeout_ms must not be negative", path)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%s: log.level: %w", path, err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%s: log.format must be console or json, got %q", path, c.Log.Format)
	}
	if c.Cache.MemoryEntries < 0 {
		return fmt.Errorf("%s: cache.memory_entries must not be negative", path)
	}
	if c.Server.MaxSourceBytes < 0 {
		return fmt.Errorf("%s: server.max_source_bytes must not be negative", path)
	}
	return nil
}

// LogLevel returns the configured zerolog level.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// CachePath returns the absolute cache database path, or "" for a
// memory-only cache.
func (c *Config) CachePath() string {
	return c.resolve(c.Cache.Path)
}

// ResolvedImportPaths returns ImportPaths made absolute, with Dir itself
// appended as the last search root.
func (c *Config) ResolvedImportPaths() []string {
	paths := make([]string, 0, len(c.ImportPaths)+1)
	for _, p := range c.ImportPaths {
		paths = append(paths, c.resolve(p))
	}
	if c.Dir != "" {
		paths = append(paths, c.Dir)
	}
	return paths
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}
