// Package config loads interpreter settings from a YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable interpreter settings.
type Config struct {
	// StackSize is the operand stack capacity in value slots.
	StackSize int `yaml:"stack_size"`
	// MaxFrames bounds call nesting depth.
	MaxFrames int `yaml:"max_frames"`
	// Trace enables per-instruction execution tracing.
	Trace bool `yaml:"trace"`
	// Disassemble dumps compiled bytecode before running.
	Disassemble bool `yaml:"disassemble"`
}

// Default returns the settings used when no config file is given.
func Default() Config {
	return Config{
		StackSize: 256,
		MaxFrames: 64,
	}
}

// Load reads and validates a config file. Settings left out of the file
// keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the VM cannot honor.
func (c Config) Validate() error {
	if c.StackSize <= 0 {
		return fmt.Errorf("stack_size must be positive, got %d", c.StackSize)
	}
	if c.MaxFrames <= 0 {
		return fmt.Errorf("max_frames must be positive, got %d", c.MaxFrames)
	}
	return nil
}
