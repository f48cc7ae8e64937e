// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/ragex/internal/errors"
	"github.com/kraklabs/ragex/pkg/graph"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigDir  = ".cie"
	defaultConfigFile = "project.yaml"
	configVersion     = "1"
)

// Config represents the .cie/project.yaml configuration file.
type Config struct {
	Version   string         `yaml:"version"`
	ProjectID string         `yaml:"project_id"`
	Embedding Embedding      `yaml:"embedding"`
	Cache     Cache          `yaml:"cache"`
	Backup    Backup         `yaml:"backup"`
	Analysis  Analysis       `yaml:"analysis"`
	PageRank  PageRank       `yaml:"pagerank"`
	Vector    VectorSearch   `yaml:"vector_search"`
	Editor    EditorDefaults `yaml:"editor"`
	Roles     RolesConfig    `yaml:"roles,omitempty"`
}

// Embedding selects the embedding-model collaborator.
type Embedding struct {
	ModelID string `yaml:"model_id"` // mock, nomic, ollama, openai, llamacpp
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// Cache overrides the cache root Persistence writes under.
type Cache struct {
	Dir string `yaml:"dir,omitempty"`
}

// Backup tunes BackupVault retention.
type Backup struct {
	MaxPerFile int  `yaml:"max_backups_per_file"`
	Compress   bool `yaml:"compress_backups"`
}

// Analysis bounds directory traversal during ingestion.
type Analysis struct {
	ExcludePatterns []string `yaml:"exclude_patterns"`
	MaxDepth        int      `yaml:"max_depth,omitempty"`
}

// PageRank tunes GraphStore.PageRank.
type PageRank struct {
	Damping    float64 `yaml:"damping"`
	Iterations int     `yaml:"iters"`
	Tolerance  float64 `yaml:"tol"`
}

// VectorSearch sets default cutoffs for EmbeddingStore.Search.
type VectorSearch struct {
	Threshold float64 `yaml:"threshold"`
	Limit     int     `yaml:"limit"`
}

// EditorDefaults toggles Editor collaborator defaults.
type EditorDefaults struct {
	ValidateByDefault bool `yaml:"validate_by_default"`
	FormatByDefault   bool `yaml:"format_by_default"`
}

// RolesConfig contains custom role pattern definitions, used by
// pkg/embedding.MatchesRole to classify retrieval results.
type RolesConfig struct {
	Custom map[string]RolePattern `yaml:"custom"`
}

// RolePattern defines how to identify a role in code.
type RolePattern struct {
	FilePattern string `yaml:"file_pattern,omitempty"`
	NamePattern string `yaml:"name_pattern,omitempty"`
	CodePattern string `yaml:"code_pattern,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// DefaultConfig returns a config with sane defaults for a new project
// identified by projectID.
func DefaultConfig(projectID string) *Config {
	prOpts := graph.DefaultPageRankOptions()
	return &Config{
		Version:   configVersion,
		ProjectID: projectID,
		Embedding: Embedding{
			ModelID: getEnv("RAGEX_EMBEDDING_MODEL", "mock"),
			BaseURL: getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Model:   getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		},
		Backup: Backup{
			MaxPerFile: 10,
			Compress:   false,
		},
		Analysis: Analysis{
			ExcludePatterns: []string{
				"**/.git/**", "**/node_modules/**", "**/vendor/**",
				"**/dist/**", "**/build/**", "**/.venv/**", "**/__pycache__/**",
			},
		},
		PageRank: PageRank{
			Damping:    prOpts.Damping,
			Iterations: prOpts.MaxIters,
			Tolerance:  prOpts.Tolerance,
		},
		Vector: VectorSearch{
			Threshold: 0.0,
			Limit:     10,
		},
		Editor: EditorDefaults{
			ValidateByDefault: true,
			FormatByDefault:   false,
		},
	}
}

// LoadConfig loads configuration from the specified path or finds it
// automatically.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("RAGEX_CONFIG_PATH")
	}
	if configPath == "" {
		var err error
		configPath, err = findConfigFile()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // G304: path comes from user config or discovery
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot read configuration file",
			fmt.Sprintf("Failed to read %s", configPath),
			"Check file permissions and ensure the file exists",
			err,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfigError(
			"Invalid configuration format",
			"YAML parsing failed - the config file contains syntax errors",
			fmt.Sprintf("Edit %s to fix syntax errors, or run 'ragex init --force' to recreate", configPath),
			err,
		)
	}

	if cfg.Version != configVersion {
		return nil, errors.NewConfigError(
			"Unsupported configuration version",
			fmt.Sprintf("Config version '%s' is not supported (expected '%s')", cfg.Version, configVersion),
			"Run 'ragex init --force' to regenerate the configuration file",
			nil,
		)
	}

	cfg.applyEnvOverrides()
	return &cfg, nil
}

// SaveConfig writes cfg to configPath as YAML.
func SaveConfig(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.NewInternalError(
			"Cannot encode configuration",
			"YAML marshaling failed unexpectedly",
			"This is a bug. Please report it with your configuration details",
			err,
		)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.NewPermissionError(
			"Cannot create configuration directory",
			fmt.Sprintf("Permission denied creating %s", dir),
			"Check directory permissions or run with appropriate privileges",
			err,
		)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.NewPermissionError(
			"Cannot write configuration file",
			fmt.Sprintf("Permission denied writing to %s", configPath),
			"Check file permissions and ensure sufficient disk space",
			err,
		)
	}

	return nil
}

// ConfigPath returns <dir>/.cie/project.yaml.
func ConfigPath(dir string) string {
	return filepath.Join(dir, defaultConfigDir, defaultConfigFile)
}

// ConfigDir returns <dir>/.cie.
func ConfigDir(dir string) string {
	return filepath.Join(dir, defaultConfigDir)
}

// findConfigFile searches for .cie/project.yaml in the current and parent
// directories.
func findConfigFile() (string, error) {
	if configPath := os.Getenv("RAGEX_CONFIG_PATH"); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		return "", errors.NewConfigError(
			"Configuration file not found",
			fmt.Sprintf("RAGEX_CONFIG_PATH is set to '%s' but the file does not exist", configPath),
			"Fix the RAGEX_CONFIG_PATH environment variable or run 'ragex init' to create a config",
			nil,
		)
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", errors.NewInternalError(
			"Cannot access working directory",
			"Failed to determine current directory path",
			"Check system permissions and try again",
			err,
		)
	}

	for {
		configPath := ConfigPath(dir)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.NewConfigError(
		"Configuration not found",
		"No .cie/project.yaml file found in current directory or any parent directory",
		"Run 'ragex init' to create a new configuration",
		nil,
	)
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables take precedence over the file.
func (c *Config) applyEnvOverrides() {
	if id := os.Getenv("RAGEX_PROJECT_ID"); id != "" {
		c.ProjectID = id
	}
	if model := os.Getenv("RAGEX_EMBEDDING_MODEL"); model != "" {
		c.Embedding.ModelID = model
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Embedding.BaseURL = host
	}
	if model := os.Getenv("OLLAMA_EMBED_MODEL"); model != "" {
		c.Embedding.Model = model
	}
	if dir := os.Getenv("RAGEX_CACHE_DIR"); dir != "" {
		c.Cache.Dir = dir
	}
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
