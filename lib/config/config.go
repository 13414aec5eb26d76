// Copyright 2026 The Sanctum Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the CLI's client configuration.
//
// Configuration comes from a single YAML file, located by (in order)
// the SANCTUM_CONFIG environment variable, the --config flag, or the
// conventional ~/.sanctum/config.yaml. A missing file is not an error;
// defaults apply. There is no layered discovery beyond this — the
// library API (vault.Options) takes the same values programmatically
// and never reads the file, so configuration stays explicit and
// injectable rather than ambient.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable that overrides the config
// file location.
const EnvVar = "SANCTUM_CONFIG"

// Config is the client configuration for the sanctum CLI.
type Config struct {
	// SocketPath is the Unix socket of the vault daemon.
	// Default: ~/.sanctum/vault.sock
	SocketPath string `yaml:"socket_path"`

	// Host and Port select a TCP connection instead of the Unix
	// socket when both are set.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// KeyDir is the directory holding agent signing keys.
	// Default: ~/.sanctum/keys
	KeyDir string `yaml:"key_dir"`

	// StateDir is the directory for local state (the lease journal).
	// Default: ~/.sanctum/state
	StateDir string `yaml:"state_dir"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		SocketPath: "~/.sanctum/vault.sock",
		KeyDir:     "~/.sanctum/keys",
		StateDir:   "~/.sanctum/state",
	}
}

// DefaultPath returns the conventional config file location, honoring
// the SANCTUM_CONFIG environment variable.
func DefaultPath() string {
	if fromEnv := os.Getenv(EnvVar); fromEnv != "" {
		return fromEnv
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".sanctum", "config.yaml")
}

// Load reads the config file at path, applying defaults for unset
// fields. A missing file yields the defaults with no error; a present
// but malformed file is an error.
func Load(path string) (Config, error) {
	configuration := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return configuration, nil
	}
	if err != nil {
		return configuration, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &configuration); err != nil {
		return configuration, fmt.Errorf("parsing config %s: %w", path, err)
	}

	defaults := Default()
	if configuration.SocketPath == "" {
		configuration.SocketPath = defaults.SocketPath
	}
	if configuration.KeyDir == "" {
		configuration.KeyDir = defaults.KeyDir
	}
	if configuration.StateDir == "" {
		configuration.StateDir = defaults.StateDir
	}
	return configuration, nil
}
