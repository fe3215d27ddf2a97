/*
Copyright 2025 The Mechanic Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package config loads mechanic's configuration from the environment,
// optionally overlaid with a YAML config file.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config carries everything the orchestrator needs. Environment
// variables populate it first; values from an explicit config file
// override them.
type Config struct {
	// GitHubToken is a personal access token with repo scope.
	GitHubToken string `env:"GITHUB_TOKEN" yaml:"github_token"`
	// ClaudeAPIKey authenticates against the Anthropic API.
	ClaudeAPIKey string `env:"CLAUDE_API_KEY" yaml:"claude_api_key"`
	// Model selects the Claude model used by all agents.
	Model string `env:"MECHANIC_MODEL, default=claude-sonnet-4-20250514" yaml:"model"`
	// Identity is the git author and branch namespace.
	Identity string `env:"MECHANIC_IDENTITY, default=mechanic" yaml:"identity"`
	// StateFile is where the task ledger persists. Empty means
	// ~/.mechanic/state.json.
	StateFile string `env:"MECHANIC_STATE_FILE" yaml:"state_file"`
	// WebhookURL, when set, receives task completion notifications.
	WebhookURL string `env:"MECHANIC_WEBHOOK_URL" yaml:"webhook_url"`
	// MaxFixAttempts bounds the test-fix loop per task.
	MaxFixAttempts int `env:"MECHANIC_MAX_FIX_ATTEMPTS, default=3" yaml:"max_fix_attempts"`
	// TestTimeout bounds a single test command run.
	TestTimeout time.Duration `env:"MECHANIC_TEST_TIMEOUT, default=10m" yaml:"test_timeout"`
	// CloneTimeout bounds preparing a clone (clone, fetch, checkout).
	CloneTimeout time.Duration `env:"MECHANIC_CLONE_TIMEOUT, default=5m" yaml:"clone_timeout"`
}

// Load builds the configuration from the process environment and, when
// path is non-empty, overlays the YAML file at path on top.
func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		var file Config
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.overlay(&file)
	}

	if cfg.StateFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		cfg.StateFile = filepath.Join(home, ".mechanic", "state.json")
	}
	return &cfg, nil
}

// overlay copies the non-zero fields of file over c.
func (c *Config) overlay(file *Config) {
	if file.GitHubToken != "" {
		c.GitHubToken = file.GitHubToken
	}
	if file.ClaudeAPIKey != "" {
		c.ClaudeAPIKey = file.ClaudeAPIKey
	}
	if file.Model != "" {
		c.Model = file.Model
	}
	if file.Identity != "" {
		c.Identity = file.Identity
	}
	if file.StateFile != "" {
		c.StateFile = file.StateFile
	}
	if file.WebhookURL != "" {
		c.WebhookURL = file.WebhookURL
	}
	if file.MaxFixAttempts != 0 {
		c.MaxFixAttempts = file.MaxFixAttempts
	}
	if file.TestTimeout != 0 {
		c.TestTimeout = file.TestTimeout
	}
	if file.CloneTimeout != 0 {
		c.CloneTimeout = file.CloneTimeout
	}
}

// Validate checks that the credentials required for any task are set.
func (c *Config) Validate() error {
	if c.GitHubToken == "" {
		return errors.New("GITHUB_TOKEN is required")
	}
	if c.ClaudeAPIKey == "" {
		return errors.New("CLAUDE_API_KEY is required")
	}
	if c.MaxFixAttempts < 0 {
		return fmt.Errorf("max_fix_attempts cannot be negative, got %d", c.MaxFixAttempts)
	}
	return nil
}
