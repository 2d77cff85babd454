// Package config loads the YAML configuration for the prog shell and the
// scheduling core it drives.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/baiirun/programme/internal/mode"
)

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Mode    ModeConfig    `yaml:"mode"`
	Actor   ActorConfig   `yaml:"actor"`
	Project ProjectConfig `yaml:"project"`
	Limits  LimitsConfig  `yaml:"limits"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

type ModeConfig struct {
	Reduced bool `yaml:"reduced"`
}

type ActorConfig struct {
	ID string `yaml:"id"`
}

type ProjectConfig struct {
	Default string `yaml:"default"`
}

type LimitsConfig struct {
	Normal  mode.Limits `yaml:"normal"`
	Reduced mode.Limits `yaml:"reduced"`
}

// DefaultDir returns ~/.prog.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".prog"), nil
}

// DefaultPath returns ~/.prog/config.yaml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{
		Logging: LoggingConfig{Level: "info"},
		Project: ProjectConfig{Default: "default"},
		Limits: LimitsConfig{
			Normal:  mode.NormalLimits(),
			Reduced: mode.ReducedLimits(),
		},
	}
	if dir, err := DefaultDir(); err == nil {
		cfg.Storage.Path = filepath.Join(dir, "prog.db")
	}
	if user := os.Getenv("USER"); user != "" {
		cfg.Actor.ID = user
	} else {
		cfg.Actor.ID = "local"
	}
	return cfg
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects negative caps.
func (c Config) Validate() error {
	for name, l := range map[string]mode.Limits{"normal": c.Limits.Normal, "reduced": c.Limits.Reduced} {
		for field, v := range map[string]int{
			"max_tasks":          l.MaxTasks,
			"max_dependencies":   l.MaxDependencies,
			"max_constraints":    l.MaxConstraints,
			"max_undos":          l.MaxUndos,
			"max_phase_children": l.MaxPhaseChildren,
			"max_nesting_depth":  l.MaxNestingDepth,
			"max_holidays":       l.MaxHolidays,
			"undo_stack_size":    l.UndoStackSize,
		} {
			if v < 0 {
				return fmt.Errorf("limits.%s.%s must not be negative (got %d)", name, field, v)
			}
		}
	}
	return nil
}

// Save writes cfg to path atomically: temp file in the same directory,
// fsync, rename.
func Save(path string, cfg Config) error {
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prog-config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
