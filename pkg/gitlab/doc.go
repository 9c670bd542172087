// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package gitlab implements the provider interface for GitLab.
//
// This package provides GitLab-specific API integration for repository
// operations including listing, cloning, and group management.
//
// # Features
//
//   - Repository listing (group projects)
//   - Subgroup projects included, their subgroup path matched by the
//     query's project segment
//   - Custom SSH port configuration
//   - Self-hosted instance support
//   - Token validation
//
// # Usage
//
//	p := gitlab.NewProvider(profile)
//	pattern, _ := query.Parse("mygroup/*/*")
//	for repo, err := range p.ListRepositories(ctx, pattern) {
//		...
//	}
package gitlab
