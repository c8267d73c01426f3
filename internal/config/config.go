// Package config loads the YAML configuration of the svdimage command.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the command configuration. Flags given on the command line
// override the values read from the file.
type Config struct {
	Decomposition struct {
		// Mode is one of gray, rgb or yuv.
		Mode string `yaml:"mode"`
		// Method is one of lapack, jacobi or gram.
		Method    string  `yaml:"method"`
		MaxSweeps int     `yaml:"maxSweeps"`
		Tolerance float64 `yaml:"tolerance"`
		// MaxRank caps the approximation sequence, 0 keeps every rank.
		MaxRank int `yaml:"maxRank"`
	} `yaml:"decomposition"`

	Input struct {
		// MaxSide downscales larger images before decomposition, 0 disables it.
		MaxSide int `yaml:"maxSide"`
	} `yaml:"input"`

	Output struct {
		JPEGQuality int  `yaml:"jpegQuality"`
		Verbose     bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Decomposition.Mode = "rgb"
	cfg.Decomposition.Method = "lapack"
	cfg.Decomposition.MaxSweeps = 60
	cfg.Decomposition.Tolerance = 1e-12
	cfg.Input.MaxSide = 512
	cfg.Output.JPEGQuality = 90
	return cfg
}

// Validate reports values that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if c.Decomposition.MaxSweeps < 1 {
		errs = append(errs, fmt.Errorf("maxSweeps must be positive, got %d", c.Decomposition.MaxSweeps))
	}
	if c.Decomposition.Tolerance <= 0 || c.Decomposition.Tolerance >= 1 {
		errs = append(errs, fmt.Errorf("tolerance must be in (0, 1), got %g", c.Decomposition.Tolerance))
	}
	if c.Decomposition.MaxRank < 0 {
		errs = append(errs, fmt.Errorf("maxRank must not be negative, got %d", c.Decomposition.MaxRank))
	}
	if c.Input.MaxSide < 0 {
		errs = append(errs, fmt.Errorf("maxSide must not be negative, got %d", c.Input.MaxSide))
	}
	if q := c.Output.JPEGQuality; q < 1 || q > 100 {
		errs = append(errs, fmt.Errorf("jpegQuality must be in [1, 100], got %d", q))
	}
	return errors.Join(errs...)
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating the directory when needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
