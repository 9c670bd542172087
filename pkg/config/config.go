// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package config implements the engine's Credential & Configuration Store:
// persistent named provider profiles plus a small set of global defaults,
// backed by a single human-editable YAML file under a per-user config
// directory.
//
// Grounded on the teacher's internal/config.Load/LoadDefault/env-override
// pattern (a flat, single-file config) rather than its own pkg/config's
// recursive multi-workspace tree, which this engine's flatter single-file
// schema does not need.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/steveant/mgit/internal/errs"
)

// Kind identifies a provider adapter variant.
type Kind string

const (
	KindAzureDevOps Kind = "azuredevops"
	KindGitHub      Kind = "github"
	KindBitbucket   Kind = "bitbucket"
	KindGitLab      Kind = "gitlab"
	KindGitea       Kind = "gitea"
)

// ProviderProfile is a named configuration binding for one provider
// connection. Secret is never serialized into non-config output; see
// Redact call sites in pkg/urlutil for how callers keep it out of logs.
type ProviderProfile struct {
	Name      string            `yaml:"-"`
	Kind      Kind              `yaml:"kind"`
	BaseURL   string            `yaml:"url"`
	User      string            `yaml:"user,omitempty"`
	Secret    string            `yaml:"token"`
	Workspace string            `yaml:"workspace,omitempty"`
	Default   bool              `yaml:"default,omitempty"`
	Extras    map[string]string `yaml:"extras,omitempty"`
}

// Global holds engine-wide defaults.
type Global struct {
	DefaultConcurrency int    `yaml:"default_concurrency"`
	DefaultUpdateMode  string `yaml:"default_update_mode"`
	DefaultProvider    string `yaml:"default_provider"`
}

// fileConfig is the on-disk YAML shape; Config adds the resolved file path
// and profile names (YAML maps don't preserve the profile's own key as a
// struct field).
type fileConfig struct {
	Global    Global                     `yaml:"global"`
	Providers map[string]ProviderProfile `yaml:"providers"`
}

// Config is a loaded, in-memory configuration. Safe for concurrent reads;
// SaveProfile, RemoveProfile and Set change only the in-memory value, and
// Save persists it.
type Config struct {
	Global    Global
	Providers map[string]ProviderProfile
}

// DefaultGlobal returns the engine's built-in defaults, used when a config
// file is absent or omits the global section.
func DefaultGlobal() Global {
	return Global{
		DefaultConcurrency: 4,
		DefaultUpdateMode:  "skip",
	}
}

// resolveSecret resolves `env:VAR`-form secrets from the process
// environment (§4.1 invariant ii).
func resolveSecret(raw string) (string, error) {
	if rest, ok := strings.CutPrefix(raw, "env:"); ok {
		val, ok := os.LookupEnv(rest)
		if !ok {
			return "", errs.New(errs.KindConfigError, "resolveSecret", "", fmt.Sprintf("environment variable %q is not set", rest), nil)
		}
		return val, nil
	}
	return raw, nil
}

// Load reads and parses the config file at path, resolving env: secret
// references. A missing global section gets DefaultGlobal() values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New(errs.KindConfigError, "Load", "", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, errs.New(errs.KindConfigError, "Load", "", "parse error", err)
	}

	if fc.Global.DefaultConcurrency == 0 {
		fc.Global.DefaultConcurrency = DefaultGlobal().DefaultConcurrency
	}
	if fc.Global.DefaultUpdateMode == "" {
		fc.Global.DefaultUpdateMode = DefaultGlobal().DefaultUpdateMode
	}

	cfg := &Config{Global: fc.Global, Providers: make(map[string]ProviderProfile, len(fc.Providers))}
	for name, profile := range fc.Providers {
		profile.Name = name
		secret, err := resolveSecret(profile.Secret)
		if err != nil {
			return nil, err
		}
		profile.Secret = secret
		cfg.Providers[name] = profile
	}
	return cfg, nil
}

// synthesizeFromEnv builds an in-memory default profile from legacy
// per-kind environment variables when no config file is present
// (§4.1 invariant iii).
func synthesizeFromEnv() *Config {
	cfg := &Config{Global: DefaultGlobal(), Providers: map[string]ProviderProfile{}}

	kinds := []Kind{KindAzureDevOps, KindGitHub, KindBitbucket, KindGitLab, KindGitea}
	for _, kind := range kinds {
		prefix := strings.ToUpper(string(kind))
		token := os.Getenv(prefix + "_TOKEN")
		if token == "" {
			continue
		}
		cfg.Providers[string(kind)] = ProviderProfile{
			Name:      string(kind),
			Kind:      kind,
			BaseURL:   os.Getenv(prefix + "_ORG_URL"),
			Secret:    token,
			Workspace: os.Getenv(prefix + "_WORKSPACE"),
			Default:   len(cfg.Providers) == 0,
		}
	}
	return cfg
}

// LoadDefault loads configuration from MGIT_CONFIG, then the standard XDG
// path, falling back to a synthetic environment-only config if no file
// exists anywhere.
func LoadDefault() (*Config, error) {
	if envPath := os.Getenv("MGIT_CONFIG"); envPath != "" {
		return Load(envPath)
	}

	paths, err := NewPaths()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(paths.ConfigFile); statErr == nil {
		return Load(paths.ConfigFile)
	}

	return synthesizeFromEnv(), nil
}

// ListProfiles returns all profiles, in no particular order.
func (c *Config) ListProfiles() []ProviderProfile {
	out := make([]ProviderProfile, 0, len(c.Providers))
	for _, p := range c.Providers {
		out = append(out, p)
	}
	return out
}

// LoadProfile returns the named profile.
func (c *Config) LoadProfile(name string) (ProviderProfile, error) {
	p, ok := c.Providers[name]
	if !ok {
		return ProviderProfile{}, errs.New(errs.KindProfileNotFound, "LoadProfile", "", name, nil)
	}
	return p, nil
}

// SaveProfile inserts or overwrites a profile by name.
func (c *Config) SaveProfile(profile ProviderProfile) {
	if c.Providers == nil {
		c.Providers = map[string]ProviderProfile{}
	}
	c.Providers[profile.Name] = profile
}

// RemoveProfile deletes a profile by name; a no-op if absent.
func (c *Config) RemoveProfile(name string) {
	delete(c.Providers, name)
}

// ResolveDefaultProfile returns the explicitly-marked default profile; if
// no profile is marked default, it falls back to the single profile of that
// kind, or to the single profile of any kind when kind is empty. Ambiguity
// (more than one candidate) or no match at all is an error.
func (c *Config) ResolveDefaultProfile(kind Kind) (ProviderProfile, error) {
	for _, p := range c.Providers {
		if p.Default {
			return p, nil
		}
	}

	var matches []ProviderProfile
	for _, p := range c.Providers {
		if kind == "" || p.Kind == kind {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return ProviderProfile{}, errs.New(errs.KindProfileNotFound, "ResolveDefaultProfile", "", string(kind), nil)
	case 1:
		return matches[0], nil
	default:
		return ProviderProfile{}, errs.New(errs.KindAmbiguousDefault, "ResolveDefaultProfile", "", string(kind), nil)
	}
}

// Get returns a global setting by key ("default_concurrency",
// "default_update_mode", "default_provider").
func (c *Config) Get(key string) (string, bool) {
	switch key {
	case "default_concurrency":
		return fmt.Sprintf("%d", c.Global.DefaultConcurrency), true
	case "default_update_mode":
		return c.Global.DefaultUpdateMode, true
	case "default_provider":
		return c.Global.DefaultProvider, true
	default:
		return "", false
	}
}

// Set assigns a global setting by key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "default_concurrency":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
			return errs.New(errs.KindConfigError, "Set", "", fmt.Sprintf("invalid default_concurrency %q", value), nil)
		}
		c.Global.DefaultConcurrency = n
	case "default_update_mode":
		if value != "skip" && value != "pull" && value != "force" {
			return errs.New(errs.KindConfigError, "Set", "", fmt.Sprintf("invalid default_update_mode %q", value), nil)
		}
		c.Global.DefaultUpdateMode = value
	case "default_provider":
		c.Global.DefaultProvider = value
	default:
		return errs.New(errs.KindConfigError, "Set", "", fmt.Sprintf("unknown global key %q", key), nil)
	}
	return nil
}

// Save atomically persists cfg to path: write to a sibling temp file, then
// rename over the destination, with owner-only permissions. Grounded on the
// teacher's manager.go WriteFile/0600 pattern, strengthened with a
// temp-file-then-rename step for atomicity the teacher itself did without.
func Save(path string, cfg *Config) error {
	fc := fileConfig{Global: cfg.Global, Providers: make(map[string]ProviderProfile, len(cfg.Providers))}
	for name, p := range cfg.Providers {
		fc.Providers[name] = p
	}

	data, err := yaml.Marshal(fc)
	if err != nil {
		return errs.New(errs.KindConfigError, "Save", "", "marshal error", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errs.New(errs.KindConfigError, "Save", "", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.New(errs.KindConfigError, "Save", "", path, err)
	}
	return nil
}
