// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package config implements the Credential & Configuration Store: a single
// YAML file holding global defaults and named provider profiles.
//
// # Usage
//
//	cfg, err := config.LoadDefault()
//	profile, err := cfg.ResolveDefaultProfile(config.KindGitHub)
package config
