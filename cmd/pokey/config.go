package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFileName = "pokey.yaml"

// Config holds settings for the registry commands.
// Loaded from pokey.yaml if present; command-line flags take precedence.
type Config struct {
	// Store selects the backend: "badger" (default) or "dynamodb".
	Store string `yaml:"store"`

	// DataDir is where BadgerDB stores data.
	DataDir string `yaml:"dataDir"`

	// Region and Endpoint configure the DynamoDB client.
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	// Table names for the DynamoDB backend.
	SchemasTable string `yaml:"schemasTable"`
	ConfigsTable string `yaml:"configsTable"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`
}

// LoadConfig searches for pokey.yaml starting from the current directory
// and walking up to the filesystem root. Returns empty config if not found.
func LoadConfig() (Config, error) {
	var cfg Config

	configPath := findConfigFile()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", configPath, err)
	}
	return cfg, nil
}

// findConfigFile searches for pokey.yaml walking up from current directory.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
