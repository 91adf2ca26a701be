// Package config loads the verso configuration from an optional YAML
// file plus environment overrides. Mains load .env via godotenv before
// calling Load; library code never reads the process environment except
// through the documented VERSO_* variables here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds everything the commands need to open the stores.
type Config struct {
	// StatePath is the root directory for all persistent state.
	StatePath string `yaml:"state_path"`

	Database struct {
		// File is the SQLite filename, relative to StatePath.
		File string `yaml:"file"`
	} `yaml:"database"`

	VectorIndex struct {
		// Path is the chromem persistence directory, relative to StatePath.
		Path string `yaml:"path"`
	} `yaml:"vector_index"`

	Ollama struct {
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"ollama"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{StatePath: "state"}
	cfg.Database.File = "verso.db"
	cfg.VectorIndex.Path = "vectors"
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.Model = "nomic-embed-text"
	return cfg
}

// Load reads the YAML file at path (missing file is fine) and applies
// environment overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// Env overrides
	if v := os.Getenv("VERSO_STATE_PATH"); v != "" {
		cfg.StatePath = v
	}
	if v := os.Getenv("VERSO_DB_FILE"); v != "" {
		cfg.Database.File = v
	}
	if v := os.Getenv("VERSO_VECTOR_PATH"); v != "" {
		cfg.VectorIndex.Path = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.Ollama.BaseURL = v
	}
	if v := os.Getenv("OLLAMA_EMBED_MODEL"); v != "" {
		cfg.Ollama.Model = v
	}

	return cfg, nil
}

// DatabasePath returns the absolute-ish path to the SQLite file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.StatePath, c.Database.File)
}

// VectorIndexPath returns the chromem persistence directory.
func (c *Config) VectorIndexPath() string {
	return filepath.Join(c.StatePath, c.VectorIndex.Path)
}
