// Package config handles loading and saving cladeview configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/cladeview/config.yaml
//   - Data:    ~/.local/share/cladeview/ (exported snapshots, databases)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dataset represents a registered observation dataset in the config.
type Dataset struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// PaletteConfig tunes color assignment.
type PaletteConfig struct {
	// RootOverrides maps root names to hex colors, taking precedence over
	// the built-in table.
	RootOverrides map[string]string `yaml:"root_overrides,omitempty"`
}

// ReportConfig holds terminal report preferences.
type ReportConfig struct {
	MaxDepth int    `yaml:"max_depth,omitempty"` // 0 = unlimited
	Bars     *bool  `yaml:"bars,omitempty"`      // prevalence bars (default on)
	Format   string `yaml:"format,omitempty"`    // tree, summary, json
	TopK     int    `yaml:"top_k,omitempty"`     // top lineages in summaries
}

// Config is the top-level configuration for cladeview.
type Config struct {
	Datasets    []Dataset     `yaml:"datasets,omitempty"`
	DefaultKind string        `yaml:"default_kind,omitempty"` // sample or internal
	Palette     PaletteConfig `yaml:"palette,omitempty"`
	Report      ReportConfig  `yaml:"report,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultKind: "sample",
		Report: ReportConfig{
			Format: "tree",
			TopK:   10,
		},
	}
}

// ConfigDir returns the XDG config directory for cladeview.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "cladeview")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cladeview")
}

// DataDir returns the XDG data directory for cladeview.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "cladeview")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "cladeview")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	// Expand ~ in dataset paths
	for i := range cfg.Datasets {
		cfg.Datasets[i].Path = expandHome(cfg.Datasets[i].Path)
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.DefaultKind {
	case "", "sample", "internal":
	default:
		return fmt.Errorf("invalid default_kind %q (want sample or internal)", c.DefaultKind)
	}
	switch c.Report.Format {
	case "", "tree", "summary", "json":
	default:
		return fmt.Errorf("invalid report format %q (want tree, summary, or json)", c.Report.Format)
	}
	for root, hex := range c.Palette.RootOverrides {
		if !validHexColor(hex) {
			return fmt.Errorf("invalid color %q for root %q (want #rrggbb)", hex, root)
		}
	}
	return nil
}

func validHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindDataset returns the dataset with the given name, or nil.
func (c Config) FindDataset(name string) *Dataset {
	for i := range c.Datasets {
		if strings.EqualFold(c.Datasets[i].Name, name) {
			return &c.Datasets[i]
		}
	}
	return nil
}

// ShowBars reports whether prevalence bars are enabled (default true).
func (c Config) ShowBars() bool {
	if c.Report.Bars == nil {
		return true
	}
	return *c.Report.Bars
}

// ResolvedPath returns the dataset path with ~ expanded.
func (d Dataset) ResolvedPath() string {
	return expandHome(d.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
