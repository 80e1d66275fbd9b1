// Package config loads the project's storyloom.yaml.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Service configures one external command boundary.
type Service struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout"` // minutes
}

// ReviewPolicy configures the consistency reviewer and the blocking rule.
type ReviewPolicy struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout"` // minutes
	// BlockBelow flags a chapter when its review score is below this value.
	// Critical issues flag regardless of score.
	BlockBelow int `yaml:"block-below"`
}

type Config struct {
	Name         string       `yaml:"name"`
	ArtifactsDir string       `yaml:"artifacts-dir"`
	Generator    Service      `yaml:"generator"`
	Review       ReviewPolicy `yaml:"review"`
	MaxSteps     int          `yaml:"max-steps"`
	Sequential   *bool        `yaml:"sequential"`
}

// SequentialDefault reports the configured sequential flag, defaulting true.
func (c *Config) SequentialDefault() bool {
	if c.Sequential == nil {
		return true
	}
	return *c.Sequential
}

// Load reads a YAML config file and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
