// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Package provider defines the polymorphic contract every hosting-provider
// adapter implements, plus the compile-time registry dispatching a
// config.Kind to its concrete constructor.
//
// Grounded on the teacher's pkg/provider.Provider interface shape, narrowed
// to the operations this engine's bulk/query/CLI layers actually need
// (Authenticate/TestConnection/ListOrganizations/ListRepositories/
// GetAuthenticatedCloneURL) instead of the teacher's broader sync-oriented
// surface.
package provider

import (
	"context"
	"iter"
	"time"

	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/query"
	"github.com/steveant/mgit/pkg/urlutil"
)

// Repository is a provider-agnostic view of one repository, immutable once
// constructed by an adapter during listing.
type Repository struct {
	Name          string
	CloneURL      string
	SSHURL        string
	DefaultBranch string
	IsPrivate     bool
	IsDisabled    bool
	Size          int64
	Description   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProviderKind  config.Kind
	Organization  string
	Project       string
	Metadata      map[string]string
}

// Organization is a semantic container one level above Repository: a GitHub
// org/user, a BitBucket workspace, or a fixed Azure DevOps organization.
type Organization struct {
	Name        string
	Description string
	URL         string
}

// Provider is the contract every adapter implements.
type Provider interface {
	// Kind returns the compile-time registry key this adapter was
	// constructed for.
	Kind() config.Kind

	// Authenticate performs whatever setup is needed before API calls can
	// be made (e.g. constructing an authenticated HTTP client). Adapters
	// that authenticate lazily on first call may treat this as a no-op.
	Authenticate(ctx context.Context) error

	// TestConnection makes one cheap authenticated call and classifies the
	// outcome as success, AuthError, or NetworkError (via internal/errs).
	TestConnection(ctx context.Context) error

	// ListOrganizations enumerates the organization-like containers visible
	// to the authenticated credential.
	ListOrganizations(ctx context.Context) ([]Organization, error)

	// ListRepositories performs hierarchical traversal per pattern and
	// yields matching repositories as a pull-based sequence; the second
	// yielded value is non-nil only on a terminal error, after which
	// iteration stops.
	ListRepositories(ctx context.Context, pattern query.Pattern) iter.Seq2[Repository, error]

	// GetAuthenticatedCloneURL embeds this adapter's credential into the
	// repository's clone URL.
	GetAuthenticatedCloneURL(repo Repository) (string, error)
}

// EmbedCredential is the shared helper every adapter's
// GetAuthenticatedCloneURL delegates to, bridging config.ProviderProfile's
// fields into pkg/urlutil's plain-string contract.
func EmbedCredential(repo Repository, profile config.ProviderProfile) (string, error) {
	return urlutil.EmbedCredential(repo.CloneURL, string(profile.Kind), profile.User, profile.Secret)
}
