// Package config loads the optional .rothrc.toml that backs persistent
// REPL preferences (spec's AMBIENT STACK expansion), grounded on
// lookbusy1344-arm_emulator's config package: a TOML-decoded struct with
// defaults applied before an optional file is overlaid on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the REPL's persistent preferences.
type Config struct {
	Backend  string `toml:"backend"`   // default --backend
	Debug    int    `toml:"debug"`     // default --debug level, 0-3
	NoColor  bool   `toml:"no_color"`  // default --no-color
	HistFile string `toml:"histfile"`  // readline history file path
}

// DefaultConfig returns the preferences used when no .rothrc.toml exists.
func DefaultConfig() *Config {
	return &Config{
		Backend:  "native",
		Debug:    0,
		NoColor:  false,
		HistFile: ".roth_history",
	}
}

// DefaultPath returns ~/.rothrc.toml, or ".rothrc.toml" if the home
// directory cannot be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rothrc.toml"
	}
	return filepath.Join(home, ".rothrc.toml")
}

// Load reads the config at DefaultPath, falling back to defaults if the
// file does not exist.
func Load() (*Config, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads the config at path, overlaying it on top of
// DefaultConfig. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// SaveTo writes cfg to path in TOML form, creating parent directories as
// needed.
func (c *Config) SaveTo(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}
