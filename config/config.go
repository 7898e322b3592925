// Package config handles pathfinder.toml runtime configuration.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "pathfinder.toml"

// DefaultReleasesURL is the release feed checked by the updater.
const DefaultReleasesURL = "https://api.github.com/repos/Arkhist/Hacknet-Pathfinder/releases"

// Config represents a pathfinder.toml configuration.
type Config struct {
	Logging Logging                   `toml:"logging"`
	Host    Host                      `toml:"host"`
	Updater Updater                   `toml:"updater"`
	Metrics Metrics                   `toml:"metrics"`
	Options map[string]map[string]any `toml:"options"`

	// Dir is the directory containing the pathfinder.toml file (set at load time).
	Dir string `toml:"-"`
}

// Logging configures the logger.
type Logging struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Host configures the reference host.
type Host struct {
	RAM int `toml:"ram"`
}

// Updater configures the release check.
type Updater struct {
	Enabled              bool   `toml:"enabled"`
	IncludePrereleases   bool   `toml:"include_prereleases"`
	LatestAcceptedUpdate string `toml:"latest_accepted_update"`
	CurrentVersion       string `toml:"current_version"`
	ReleasesURL          string `toml:"releases_url"`
}

// Metrics configures Prometheus export.
type Metrics struct {
	Namespace string `toml:"namespace"`
	Address   string `toml:"address"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults(toml.MetaData{})
	return c
}

// Load parses a pathfinder.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	c.applyDefaults(md)
	return &c, nil
}

// FindAndLoad walks up from startDir to find a pathfinder.toml file,
// then loads and returns the configuration. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults(md toml.MetaData) {
	if !md.IsDefined("updater", "enabled") {
		c.Updater.Enabled = true
	}
	if c.Updater.ReleasesURL == "" {
		c.Updater.ReleasesURL = DefaultReleasesURL
	}
	if c.Host.RAM == 0 {
		c.Host.RAM = 800
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "pathfinder"
	}
	if c.Options == nil {
		c.Options = make(map[string]map[string]any)
	}
}

// Path returns the file the configuration is saved to.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, FileName)
}

// Save writes the configuration back to its directory. A configuration
// without a directory is saved to the current directory.
func (c *Config) Save() error {
	if c.Dir == "" {
		dir, err := filepath.Abs(".")
		if err != nil {
			return err
		}
		c.Dir = dir
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode %s: %w", c.Path(), err)
	}
	if err := os.WriteFile(c.Path(), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.Path(), err)
	}
	return nil
}

// Option returns a persisted option value.
func (c *Config) Option(tab, key string) (any, bool) {
	v, ok := c.Options[tab][key]
	return v, ok
}

// Bool returns a persisted boolean option, or def when it is unset or not a
// boolean.
func (c *Config) Bool(tab, key string, def bool) bool {
	v, ok := c.Option(tab, key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// SetOption records an option value. It is written on the next Save.
func (c *Config) SetOption(tab, key string, v any) {
	if c.Options == nil {
		c.Options = make(map[string]map[string]any)
	}
	if c.Options[tab] == nil {
		c.Options[tab] = make(map[string]any)
	}
	c.Options[tab][key] = v
}
