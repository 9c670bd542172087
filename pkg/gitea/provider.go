// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package gitea

import (
	"context"
	"iter"
	"net/http"

	giteasdk "code.gitea.io/sdk/gitea"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/provider"
	"github.com/steveant/mgit/pkg/query"
	"github.com/steveant/mgit/pkg/ratelimit"
)

func init() {
	provider.Register(config.KindGitea, func(profile config.ProviderProfile) (provider.Provider, error) {
		return NewProvider(profile), nil
	})
}

// Provider implements provider.Provider for Gitea on top of
// code.gitea.io/sdk/gitea, completing what the teacher's repo carried as
// a stub. Gitea has no project layer, mirroring GitHub's flat
// org/repo hierarchy.
type Provider struct {
	profile config.ProviderProfile
	client  *giteasdk.Client

	rateLimiter *ratelimit.Limiter
}

// NewProvider constructs a Gitea adapter for profile.
func NewProvider(profile config.ProviderProfile) *Provider {
	return &Provider{profile: profile, rateLimiter: ratelimit.NewLimiter(1000)}
}

func (p *Provider) Kind() config.Kind { return config.KindGitea }

// Authenticate builds the Gitea client. Safe to call more than once.
func (p *Provider) Authenticate(ctx context.Context) error {
	// SetGiteaVersion pins the client to a known-compatible API surface and
	// skips the version-probe request NewClient otherwise issues.
	opts := []giteasdk.ClientOption{giteasdk.SetGiteaVersion("")}
	if p.profile.Secret != "" {
		opts = append(opts, giteasdk.SetToken(p.profile.Secret))
	}
	client, err := giteasdk.NewClient(p.profile.BaseURL, opts...)
	if err != nil {
		return errs.New(errs.KindConfigError, "Authenticate", p.profile.Name, "invalid base_url", err)
	}
	p.client = client
	return nil
}

// TestConnection makes one authenticated call against the current user.
func (p *Provider) TestConnection(ctx context.Context) error {
	if p.client == nil {
		if err := p.Authenticate(ctx); err != nil {
			return err
		}
	}
	_, resp, err := p.client.GetMyUserInfo()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return errs.New(errs.KindAuthError, "TestConnection", p.profile.Name, "", err)
		}
		return errs.New(errs.KindNetworkError, "TestConnection", p.profile.Name, "", err)
	}
	return nil
}

// ListOrganizations enumerates the authenticated user's visible orgs.
func (p *Provider) ListOrganizations(ctx context.Context) ([]provider.Organization, error) {
	if p.client == nil {
		if err := p.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	var out []provider.Organization
	opts := giteasdk.ListOrgsOptions{ListOptions: giteasdk.ListOptions{Page: 1, PageSize: 50}}
	for {
		orgs, resp, err := p.client.ListMyOrgs(opts)
		if err != nil {
			return nil, errs.New(errs.KindNetworkError, "ListOrganizations", p.profile.Name, "", err)
		}
		for _, o := range orgs {
			out = append(out, provider.Organization{Name: o.UserName, Description: o.Description})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// ListRepositories implements the flat org/repo hierarchy described in
// SPEC_FULL.md §4.4.5: no project layer, so pattern.Project must be "*"
// or "NONE".
func (p *Provider) ListRepositories(ctx context.Context, pattern query.Pattern) iter.Seq2[provider.Repository, error] {
	return func(yield func(provider.Repository, error) bool) {
		if p.client == nil {
			if err := p.Authenticate(ctx); err != nil {
				yield(provider.Repository{}, err)
				return
			}
		}
		if lit, ok := pattern.Project.Literal(); ok && lit != query.NoneLiteral {
			yield(provider.Repository{}, errs.New(errs.KindInvalidQuery, "ListRepositories", p.profile.Name, "gitea has no project layer; project segment must be * or NONE", nil))
			return
		}

		orgs, err := p.candidateOrgs(ctx, pattern)
		if err != nil {
			yield(provider.Repository{}, err)
			return
		}
		for _, org := range orgs {
			if !p.yieldOrgRepos(ctx, org, pattern, yield) {
				return
			}
		}
	}
}

func (p *Provider) candidateOrgs(ctx context.Context, pattern query.Pattern) ([]string, error) {
	if lit, ok := pattern.Org.Literal(); ok {
		return []string{lit}, nil
	}
	orgs, err := p.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, o := range orgs {
		if pattern.Org.Match(o.Name) {
			matched = append(matched, o.Name)
		}
	}
	return matched, nil
}

func (p *Provider) yieldOrgRepos(ctx context.Context, org string, pattern query.Pattern, yield func(provider.Repository, error) bool) bool {
	opts := giteasdk.ListOrgReposOptions{ListOptions: giteasdk.ListOptions{Page: 1, PageSize: 50}}
	for {
		repos, resp, err := p.client.ListOrgRepos(org, opts)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return p.yieldUserRepos(org, pattern, yield)
			}
			return yield(provider.Repository{}, errs.New(errs.KindNetworkError, "ListRepositories", org, "", err))
		}
		for _, r := range repos {
			if !pattern.Repo.Match(r.Name) {
				continue
			}
			if !yield(convertRepo(r, org), nil) {
				return false
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return true
		}
		opts.Page = resp.NextPage
	}
}

func (p *Provider) yieldUserRepos(user string, pattern query.Pattern, yield func(provider.Repository, error) bool) bool {
	opts := giteasdk.ListReposOptions{ListOptions: giteasdk.ListOptions{Page: 1, PageSize: 50}}
	for {
		repos, resp, err := p.client.ListUserRepos(user, opts)
		if err != nil {
			return yield(provider.Repository{}, errs.New(errs.KindNetworkError, "ListRepositories", user, "", err))
		}
		for _, r := range repos {
			if !pattern.Repo.Match(r.Name) {
				continue
			}
			if !yield(convertRepo(r, user), nil) {
				return false
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return true
		}
		opts.Page = resp.NextPage
	}
}

// GetAuthenticatedCloneURL delegates to the shared urlutil helper.
func (p *Provider) GetAuthenticatedCloneURL(repo provider.Repository) (string, error) {
	return provider.EmbedCredential(repo, p.profile)
}

func convertRepo(r *giteasdk.Repository, org string) provider.Repository {
	return provider.Repository{
		Name:          r.Name,
		CloneURL:      r.CloneURL,
		SSHURL:        r.SSHURL,
		DefaultBranch: r.DefaultBranch,
		IsPrivate:     r.Private,
		IsDisabled:    r.Archived,
		Size:          int64(r.Size),
		Description:   r.Description,
		CreatedAt:     r.Created,
		UpdatedAt:     r.Updated,
		ProviderKind:  config.KindGitea,
		Organization:  org,
	}
}
