// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package gitea implements the provider interface for Gitea.
//
// This package provides Gitea-specific API integration for repository
// operations including listing, cloning, and organization management.
//
// # Features
//
//   - Repository listing (org and user)
//   - Token validation
//   - Self-hosted instance support
//   - Pagination handling
//
// # Usage
//
//	p := gitea.NewProvider(profile)
//	pattern, _ := query.Parse("myorg")
//	for repo, err := range p.ListRepositories(ctx, pattern) {
//		...
//	}
package gitea
