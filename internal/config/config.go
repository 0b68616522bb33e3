package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFilename is looked up in the working directory.
const DefaultConfigFilename = ".ctxignore.yaml"

// Config holds the YAML configuration for the engine and its CLI.
type Config struct {
	Roots           []string        `yaml:"roots"`                    // Workspace roots
	LogLevel        string          `yaml:"log_level"`                // Logging level: debug, info, warn, error
	Exclude         []string        `yaml:"exclude,omitempty"`        // Glob patterns that are always excluded
	FilesExclude    map[string]bool `yaml:"files_exclude,omitempty"`  // Editor files.exclude setting
	SearchExclude   map[string]bool `yaml:"search_exclude,omitempty"` // Editor search.exclude setting
	Include         string          `yaml:"include"`                  // Include glob for bulk search
	UseIgnoreFiles  bool            `yaml:"use_ignore_files"`         // If true, bulk search also honors .gitignore
	CaseInsensitive bool            `yaml:"case_insensitive"`         // If true, paths are compared case-insensitively
	Debounce        time.Duration   `yaml:"debounce"`                 // Coalescing window for ignore-file events
	ReadTimeout     time.Duration   `yaml:"read_timeout"`             // Bound on a single ignore-file read
	Notifications   bool            `yaml:"notifications"`            // If true, send desktop notifications
	Daemonize       bool            `yaml:"daemonize"`                // If true, watch runs as a daemon
	Delay           time.Duration   `yaml:"delay"`                    // Time before checking newly created files
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Roots:    []string{"."},
		LogLevel: "info",
		Include:  "**/*",
	}
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}
	if cfg.Include == "" {
		cfg.Include = "**/*"
	}
	return cfg, nil
}

// SaveConfig writes cfg back to a YAML file.
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
