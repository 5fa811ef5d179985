package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// EnvConfig names a config file to use when --config is not given.
const EnvConfig = "DRONE_EXPLORER_CONFIG"

// Load builds the explorer config from Default, then the first config file
// found, then command-line flags, and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	path := ConfigPath()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// searchOrder lists where a config may live, most specific first: the
// environment override, a project file next to the models, a generic
// ./config.yaml, then the per-user file written by --write-config.
func searchOrder() []string {
	var paths []string
	if env := os.Getenv(EnvConfig); env != "" {
		paths = append(paths, env)
	}
	return append(paths,
		"./drone-explorer.yaml",
		"./config.yaml",
		UserConfigPath(),
	)
}

// findConfigFile returns the first existing file from searchOrder, or "".
func findConfigFile() string {
	for _, path := range searchOrder() {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// ConfigDir returns the per-user directory for explorer settings.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "DroneExplorer")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "DroneExplorer")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "drone-explorer")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "drone-explorer")
	}
}

// loadFromFile overlays the YAML at path onto cfg. Keys missing from the
// file keep their current values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
