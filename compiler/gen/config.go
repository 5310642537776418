package gen

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the generator configuration.
type Config struct {
	// Target is the directory the generated code is written to.
	Target string `yaml:"target"`

	// Package is the Go import path of the generated package.
	Package string `yaml:"package"`

	// Header is an optional file header prepended to every generated file.
	Header string `yaml:"header,omitempty"`

	// Features enables optional generator features by name.
	Features []string `yaml:"features,omitempty"`
}

// LoadConfig reads and validates a generator configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigError("path", path, err.Error())
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, NewConfigError("path", path, "invalid yaml: "+err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required configuration options.
func (c *Config) Validate() error {
	if c.Target == "" {
		return NewConfigError("target", nil, "missing target directory")
	}
	if c.Package == "" {
		return NewConfigError("package", nil, "missing package path")
	}
	return nil
}

// FeatureEnabled reports whether the named feature is enabled.
func (c *Config) FeatureEnabled(name string) bool {
	for _, f := range c.Features {
		if f == name {
			return true
		}
	}
	return false
}
