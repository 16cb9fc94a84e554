// Package config loads the optional user configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds user-tunable defaults. Command-line flags override these.
type Config struct {
	// Model is the default assistant model alias.
	Model string `yaml:"model"`
	// Theme selects a built-in color palette by name.
	Theme string `yaml:"theme"`
	// Language is the transcription language hint.
	Language string `yaml:"language"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Model:    "sonnet",
		Theme:    "default-dark",
		Language: "en",
	}
}

// DefaultPath is the conventional config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "claude-terminal", "config.yaml")
}

// Load reads the config at path, falling back to defaults when the file is
// absent. Unset fields keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Model == "" {
		cfg.Model = Default().Model
	}
	if cfg.Theme == "" {
		cfg.Theme = Default().Theme
	}
	return cfg, nil
}
