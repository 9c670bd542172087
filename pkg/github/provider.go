// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package github

import (
	"context"
	"iter"
	"net/http"

	ghsdk "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/provider"
	"github.com/steveant/mgit/pkg/query"
	"github.com/steveant/mgit/pkg/ratelimit"
)

func init() {
	provider.Register(config.KindGitHub, func(profile config.ProviderProfile) (provider.Provider, error) {
		return NewProvider(profile), nil
	})
}

// Provider implements provider.Provider for GitHub, built directly on
// google/go-github/v66 and golang.org/x/oauth2, near-verbatim from the
// teacher's own GitHub adapter.
type Provider struct {
	profile     config.ProviderProfile
	client      *ghsdk.Client
	rateLimiter *ratelimit.Limiter
}

// NewProvider constructs a GitHub adapter for profile.
func NewProvider(profile config.ProviderProfile) *Provider {
	return &Provider{
		profile:     profile,
		rateLimiter: ratelimit.NewLimiter(5000),
	}
}

func (p *Provider) Kind() config.Kind { return config.KindGitHub }

// Authenticate builds the oauth2-backed client. Safe to call more than
// once; a later call replaces the client with a fresh token source.
func (p *Provider) Authenticate(ctx context.Context) error {
	var hc *http.Client
	if p.profile.Secret != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: p.profile.Secret})
		hc = oauth2.NewClient(ctx, ts)
	}

	client := ghsdk.NewClient(hc)
	if p.profile.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(p.profile.BaseURL, p.profile.BaseURL)
		if err != nil {
			return errs.New(errs.KindConfigError, "Authenticate", p.profile.Name, "invalid base_url", err)
		}
	}
	p.client = client
	return nil
}

// TestConnection makes one authenticated call against /user.
func (p *Provider) TestConnection(ctx context.Context) error {
	if p.client == nil {
		if err := p.Authenticate(ctx); err != nil {
			return err
		}
	}
	resp, err := p.roundTrip(func() (*ghsdk.Response, error) {
		_, r, e := p.client.Users.Get(ctx, "")
		return r, e
	})
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
	opts := &ghsdk.ListOptions{PerPage: 100}
	for {
		orgs, resp, err := p.client.Organizations.List(ctx, "", opts)
		if err != nil {
			return nil, errs.New(errs.KindNetworkError, "ListOrganizations", p.profile.Name, "", err)
		}
		for _, org := range orgs {
			out = append(out, provider.Organization{
				Name:        org.GetLogin(),
				Description: org.GetDescription(),
				URL:         org.GetHTMLURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// ListRepositories implements the hierarchy described in SPEC_FULL.md
// §4.4.2: no project layer, so pattern.Project must be "*" or "NONE".
func (p *Provider) ListRepositories(ctx context.Context, pattern query.Pattern) iter.Seq2[provider.Repository, error] {
	return func(yield func(provider.Repository, error) bool) {
		if p.client == nil {
			if err := p.Authenticate(ctx); err != nil {
				yield(provider.Repository{}, err)
				return
			}
		}
		if lit, ok := pattern.Project.Literal(); ok && lit != query.NoneLiteral {
			yield(provider.Repository{}, errs.New(errs.KindInvalidQuery, "ListRepositories", p.profile.Name, "github has no project layer; project segment must be * or NONE", nil))
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
	repos, err := p.listOrgOrUserRepos(ctx, org)
	if err != nil {
		return yield(provider.Repository{}, err)
	}
	for _, r := range repos {
		if !pattern.Repo.Match(r.GetName()) {
			continue
		}
		if !yield(convertRepo(r, org), nil) {
			return false
		}
	}
	return true
}

// listOrgOrUserRepos tries the org-repos endpoint first; on 404 it falls
// back to the user-repos endpoint, matching the teacher's
// ListOrganizationRepos/ListUserRepos split collapsed into one lookup.
func (p *Provider) listOrgOrUserRepos(ctx context.Context, org string) ([]*ghsdk.Repository, error) {
	var all []*ghsdk.Repository
	opts := &ghsdk.RepositoryListByOrgOptions{ListOptions: ghsdk.ListOptions{PerPage: 100}}
	for {
		repos, resp, err := p.client.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return p.listUserRepos(ctx, org)
			}
			return nil, errs.New(errs.KindNetworkError, "ListRepositories", org, "", err)
		}
		all = append(all, repos...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (p *Provider) listUserRepos(ctx context.Context, user string) ([]*ghsdk.Repository, error) {
	var all []*ghsdk.Repository
	opts := &ghsdk.RepositoryListOptions{ListOptions: ghsdk.ListOptions{PerPage: 100}, Type: "all"}
	for {
		repos, resp, err := p.client.Repositories.List(ctx, user, opts)
		if err != nil {
			return nil, errs.New(errs.KindNetworkError, "ListRepositories", user, "", err)
		}
		all = append(all, repos...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetAuthenticatedCloneURL delegates to the shared urlutil helper.
func (p *Provider) GetAuthenticatedCloneURL(repo provider.Repository) (string, error) {
	return provider.EmbedCredential(repo, p.profile)
}

// roundTrip is a thin adapter so callers can inspect the *ghsdk.Response's
// status code on error without every call site re-deriving it.
func (p *Provider) roundTrip(call func() (*ghsdk.Response, error)) (*ghsdk.Response, error) {
	resp, err := call()
	if resp != nil && resp.Response != nil {
		p.rateLimiter.UpdateFromHeaders(resp.Response)
	}
	return resp, err
}

func convertRepo(r *ghsdk.Repository, org string) provider.Repository {
	return provider.Repository{
		Name:          r.GetName(),
		CloneURL:      r.GetCloneURL(),
		SSHURL:        r.GetSSHURL(),
		DefaultBranch: r.GetDefaultBranch(),
		IsPrivate:     r.GetPrivate(),
		IsDisabled:    r.GetDisabled(),
		Size:          int64(r.GetSize()),
		Description:   r.GetDescription(),
		CreatedAt:     r.GetCreatedAt().Time,
		UpdatedAt:     r.GetUpdatedAt().Time,
		ProviderKind:  config.KindGitHub,
		Organization:  org,
	}
}
