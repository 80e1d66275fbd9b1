package config

import (
	"fmt"
	"path/filepath"
)

// Validate checks the config for errors and sets defaults.
func Validate(cfg *Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("config: 'name' is required")
	}
	if cfg.Generator.Command == "" {
		return fmt.Errorf("config: 'generator.command' is required")
	}

	if cfg.ArtifactsDir == "" {
		cfg.ArtifactsDir = filepath.Join(".storyloom", "artifacts")
	}
	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = 10
	}
	if cfg.Generator.Timeout < 0 {
		return fmt.Errorf("config: generator.timeout must be >= 0")
	}
	if cfg.Review.Command == "" {
		cfg.Review.Command = cfg.Generator.Command
	}
	if cfg.Review.Timeout == 0 {
		cfg.Review.Timeout = 5
	}
	if cfg.Review.Timeout < 0 {
		return fmt.Errorf("config: review.timeout must be >= 0")
	}
	if cfg.Review.BlockBelow == 0 {
		cfg.Review.BlockBelow = 70
	}
	if cfg.Review.BlockBelow < 0 || cfg.Review.BlockBelow > 100 {
		return fmt.Errorf("config: review.block-below must be between 0 and 100")
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = 500
	}
	if cfg.MaxSteps < 0 {
		return fmt.Errorf("config: max-steps must be >= 0")
	}
	return nil
}
