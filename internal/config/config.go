// Package config loads editor configuration from TOML or YAML files
// with environment variable overrides. A missing file is not an
// error; the zero configuration is usable and Default fills in the
// documented defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/inkwell/internal/engine/selection"
)

// Errors returned by configuration loading and validation.
var (
	// ErrUnknownFormat is returned for a config path with an
	// unrecognized extension.
	ErrUnknownFormat = errors.New("unknown config format")

	// ErrValidationFailed is returned when a loaded configuration
	// holds an out-of-range or unrecognized value.
	ErrValidationFailed = errors.New("config validation failed")
)

// ParseError describes a failure to parse a configuration file.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Relocation policy names accepted in configuration files.
const (
	RelocationPreviousSibling = "previous-sibling"
	RelocationParentStart     = "parent-start"
)

// Config is the full editor configuration.
type Config struct {
	Editor  EditorConfig  `toml:"editor" yaml:"editor"`
	History HistoryConfig `toml:"history" yaml:"history"`
	Render  RenderConfig  `toml:"render" yaml:"render"`
}

// EditorConfig holds selection and input behavior.
type EditorConfig struct {
	// Relocation selects where a selection endpoint lands when its
	// node is removed: previous-sibling or parent-start.
	Relocation string `toml:"relocation" yaml:"relocation"`

	// NormalizeInput applies NFC normalization to committed
	// composition text.
	NormalizeInput bool `toml:"normalize_input" yaml:"normalize_input"`
}

// HistoryConfig bounds the undo log.
type HistoryConfig struct {
	MaxEntries int `toml:"max_entries" yaml:"max_entries"`
}

// RenderConfig selects and extends the plugin set.
type RenderConfig struct {
	// Enabled restricts rendering to these element types. Empty
	// means every registered plugin is enabled.
	Enabled []string `toml:"enabled" yaml:"enabled"`

	// Plugins are Lua render plugins loaded at startup.
	Plugins []LuaPluginConfig `toml:"plugins" yaml:"plugins"`
}

// LuaPluginConfig names one Lua render plugin script.
type LuaPluginConfig struct {
	Type string `toml:"type" yaml:"type"`
	Path string `toml:"path" yaml:"path"`
}

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Editor: EditorConfig{
			Relocation:     RelocationPreviousSibling,
			NormalizeInput: true,
		},
		History: HistoryConfig{
			MaxEntries: 1000,
		},
	}
}

// Load reads the configuration at path, chosen by extension (.toml,
// .yaml, .yml), applies environment overrides, and validates. A
// missing file yields the defaults with environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Fall through to env overrides.
	case err != nil:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return &ParseError{Path: path, Message: err.Error(), Err: err}
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return &ParseError{Path: path, Message: err.Error(), Err: err}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	return nil
}

// applyEnv overlays INKWELL_-prefixed environment variables onto the
// configuration. Unset variables leave the loaded values alone.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("INKWELL_RELOCATION"); ok {
		c.Editor.Relocation = v
	}
	if v, ok := os.LookupEnv("INKWELL_NORMALIZE_INPUT"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Editor.NormalizeInput = b
		}
	}
	if v, ok := os.LookupEnv("INKWELL_HISTORY_MAX_ENTRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.History.MaxEntries = n
		}
	}
	if v, ok := os.LookupEnv("INKWELL_RENDER_ENABLED"); ok {
		c.Render.Enabled = splitList(v)
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Editor.Relocation {
	case "", RelocationPreviousSibling, RelocationParentStart:
	default:
		return fmt.Errorf("%w: editor.relocation %q", ErrValidationFailed, c.Editor.Relocation)
	}
	if c.History.MaxEntries < 0 {
		return fmt.Errorf("%w: history.max_entries %d", ErrValidationFailed, c.History.MaxEntries)
	}
	for _, p := range c.Render.Plugins {
		if p.Type == "" || p.Path == "" {
			return fmt.Errorf("%w: render plugin needs both type and path", ErrValidationFailed)
		}
	}
	return nil
}

// RelocationPolicy maps the configured name to the selection policy.
func (c *Config) RelocationPolicy() selection.RelocationPolicy {
	if c.Editor.Relocation == RelocationParentStart {
		return selection.RelocateParentStart
	}
	return selection.RelocatePreviousSibling
}
