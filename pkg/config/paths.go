// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDirName is the config directory name under XDG_CONFIG_HOME.
const ConfigDirName = "mgit"

// ConfigFileName is the single config file's base name.
const ConfigFileName = "config.yaml"

// Paths resolves the engine's on-disk config location.
type Paths struct {
	// ConfigDir is the root config directory (~/.config/mgit).
	ConfigDir string

	// ConfigFile is the single config file path
	// (~/.config/mgit/config.yaml).
	ConfigFile string
}

// NewPaths resolves standard locations, honoring XDG_CONFIG_HOME via
// os.UserConfigDir and falling back to ~/.config otherwise.
func NewPaths() (*Paths, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configHome, ConfigDirName)
	return &Paths{
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, ConfigFileName),
	}, nil
}

// EnsureDir creates the config directory with owner-only permissions.
func (p *Paths) EnsureDir() error {
	if err := os.MkdirAll(p.ConfigDir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", p.ConfigDir, err)
	}
	return nil
}

// Exists reports whether the config file is present.
func (p *Paths) Exists() bool {
	info, err := os.Stat(p.ConfigFile)
	return err == nil && !info.IsDir()
}
