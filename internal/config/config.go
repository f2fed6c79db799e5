package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the optional treeforge configuration file.
type Config struct {
	// DefaultBranch is used when no union branch is supplied.
	DefaultBranch string `yaml:"default_branch"`

	// SubjectPrefix prefixes generated commit subjects.
	SubjectPrefix string `yaml:"subject_prefix"`

	// OSTreeBinary overrides the ostree binary used for store merges.
	OSTreeBinary string `yaml:"ostree_binary"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		SubjectPrefix: "treeforge",
	}
}

// Load reads the config file at path. A missing file is not an error;
// defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "treeforge"
	}

	return cfg, nil
}
