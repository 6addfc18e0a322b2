// Package config loads accessor.yaml, which sets process-wide defaults for
// synthesis: error propagation, the reconstruction fallback and the
// diagnostics emitted while building and running synthesized callables.
//
//	throw_on_error: false
//	fallback: true
//	emit_log: true
//	trace: false
//	breakpoints: false
//	color: auto
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level accessor.yaml document.
type Config struct {
	// ThrowOnError makes entry points panic with the typed error instead of
	// logging it and returning it.
	ThrowOnError bool `yaml:"throw_on_error,omitempty"`

	// Fallback enables function-pointer reconstruction when a requested
	// invoker shape differs from the natural one.
	Fallback bool `yaml:"fallback,omitempty"`

	// EmitLog writes one line per emitted instruction to the log sink.
	EmitLog bool `yaml:"emit_log,omitempty"`

	// Trace compiles trace calls into the synthesized bodies.
	Trace bool `yaml:"trace,omitempty"`

	// Breakpoints adds a breakpoint marker before every traced instruction.
	// Only valid together with Trace.
	Breakpoints bool `yaml:"breakpoints,omitempty"`

	// Color is auto, always or never. Defaults to auto.
	Color string `yaml:"color,omitempty"`
}

// LoadConfig reads and parses an accessor.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses accessor.yaml content. path is only used in messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches dir and its parents for a config file. It returns ""
// and a nil error when none exists.
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
			return "", nil
		}
		dir = parent
	}
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) validate(path string) error {
	switch strings.ToLower(c.Color) {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("%s: color: unknown mode %q (want auto, always or never)", path, c.Color)
	}
	if c.Breakpoints && !c.Trace {
		return fmt.Errorf("%s: breakpoints requires trace: true", path)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Color == "" {
		c.Color = "auto"
	}
	c.Color = strings.ToLower(c.Color)
}
