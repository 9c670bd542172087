// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package gitlab

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xanzy/go-gitlab"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/provider"
	"github.com/steveant/mgit/pkg/query"
	"github.com/steveant/mgit/pkg/ratelimit"
)

func init() {
	provider.Register(config.KindGitLab, func(profile config.ProviderProfile) (provider.Provider, error) {
		return NewProvider(profile), nil
	})
}

// Provider implements provider.Provider for GitLab on top of
// xanzy/go-gitlab, near-verbatim from the teacher's own GitLab adapter.
// Groups take the place of organizations and projects the place of
// repositories; group and subgroup membership is flattened by
// IncludeSubGroups so the project segment always resolves against a
// single group path.
type Provider struct {
	profile config.ProviderProfile
	client  *gitlab.Client

	sshHost string // SSH hostname derived from profile.BaseURL
	sshPort int     // Custom SSH port from profile.Extras["ssh_port"], 0 means default 22

	rateLimiter *ratelimit.Limiter
}

// NewProvider constructs a GitLab adapter for profile.
func NewProvider(profile config.ProviderProfile) *Provider {
	p := &Provider{
		profile:     profile,
		rateLimiter: ratelimit.NewLimiter(2000),
	}
	if profile.BaseURL != "" {
		p.sshHost = extractHostFromURL(profile.BaseURL)
	}
	if raw, ok := profile.Extras["ssh_port"]; ok {
		if port, err := strconv.Atoi(raw); err == nil {
			p.sshPort = port
		}
	}
	return p
}

func (p *Provider) Kind() config.Kind { return config.KindGitLab }

// Authenticate builds the GitLab client. Safe to call more than once.
func (p *Provider) Authenticate(ctx context.Context) error {
	var client *gitlab.Client
	var err error
	if p.profile.BaseURL != "" {
		client, err = gitlab.NewClient(p.profile.Secret, gitlab.WithBaseURL(p.profile.BaseURL))
	} else {
		client, err = gitlab.NewClient(p.profile.Secret)
	}
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
	_, resp, err := p.client.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == 401 {
			return errs.New(errs.KindAuthError, "TestConnection", p.profile.Name, "", err)
		}
		return errs.New(errs.KindNetworkError, "TestConnection", p.profile.Name, "", err)
	}
	return nil
}

// ListOrganizations enumerates groups the authenticated user belongs to.
func (p *Provider) ListOrganizations(ctx context.Context) ([]provider.Organization, error) {
	if p.client == nil {
		if err := p.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	var out []provider.Organization
	opts := &gitlab.ListGroupsOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		groups, resp, err := p.client.Groups.ListGroups(opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, errs.New(errs.KindNetworkError, "ListOrganizations", p.profile.Name, "", err)
		}
		for _, g := range groups {
			out = append(out, provider.Organization{Name: g.Path, Description: g.Description, URL: g.WebURL})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// ListRepositories resolves org/project/repo against GitLab's
// group-then-project hierarchy: the org segment selects a group, the
// project segment is matched against GitLab's flattened subgroup path
// (IncludeSubGroups), and the repo segment filters project names within it.
func (p *Provider) ListRepositories(ctx context.Context, pattern query.Pattern) iter.Seq2[provider.Repository, error] {
	return func(yield func(provider.Repository, error) bool) {
		if p.client == nil {
			if err := p.Authenticate(ctx); err != nil {
				yield(provider.Repository{}, err)
				return
			}
		}

		groups, err := p.candidateGroups(ctx, pattern)
		if err != nil {
			yield(provider.Repository{}, err)
			return
		}
		for _, group := range groups {
			if !p.yieldGroupProjects(ctx, group, pattern, yield) {
				return
			}
		}
	}
}

func (p *Provider) candidateGroups(ctx context.Context, pattern query.Pattern) ([]string, error) {
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

func (p *Provider) yieldGroupProjects(ctx context.Context, group string, pattern query.Pattern, yield func(provider.Repository, error) bool) bool {
	opts := &gitlab.ListGroupProjectsOptions{
		ListOptions:      gitlab.ListOptions{PerPage: 100},
		IncludeSubGroups: gitlab.Ptr(true),
	}
	for {
		projects, resp, err := p.client.Groups.ListGroupProjects(group, opts, gitlab.WithContext(ctx))
		if err != nil {
			return yield(provider.Repository{}, errs.New(errs.KindNetworkError, "ListRepositories", group, "", err))
		}
		for _, proj := range projects {
			if !pattern.Project.Match(subgroupPath(proj, group)) {
				continue
			}
			if !pattern.Repo.Match(proj.Path) {
				continue
			}
			if !yield(p.convertProject(proj, group), nil) {
				return false
			}
		}
		if resp.NextPage == 0 {
			return true
		}
		opts.Page = resp.NextPage
	}
}

// subgroupPath returns the project's namespace path relative to group,
// the unit the project segment of a query matches against.
func subgroupPath(proj *gitlab.Project, group string) string {
	ns := strings.TrimPrefix(proj.Namespace.FullPath, group)
	ns = strings.Trim(ns, "/")
	if ns == "" {
		return query.NoneLiteral
	}
	return ns
}

// GetAuthenticatedCloneURL delegates to the shared urlutil helper.
func (p *Provider) GetAuthenticatedCloneURL(repo provider.Repository) (string, error) {
	return provider.EmbedCredential(repo, p.profile)
}

func (p *Provider) convertProject(project *gitlab.Project, group string) provider.Repository {
	var createdAt, updatedAt time.Time
	if project.CreatedAt != nil {
		createdAt = *project.CreatedAt
	}
	if project.LastActivityAt != nil {
		updatedAt = *project.LastActivityAt
	}

	sshURL := project.SSHURLToRepo
	if p.sshPort > 0 && p.sshHost != "" {
		sshURL = p.buildSSHURL(project.PathWithNamespace)
	}

	return provider.Repository{
		Name:          project.Path,
		CloneURL:      project.HTTPURLToRepo,
		SSHURL:        sshURL,
		DefaultBranch: project.DefaultBranch,
		IsPrivate:     project.Visibility != gitlab.PublicVisibility,
		IsDisabled:    project.Archived,
		Description:   project.Description,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		ProviderKind:  config.KindGitLab,
		Organization:  group,
		Project:       subgroupPath(project, group),
	}
}

// extractHostFromURL extracts hostname from the API base URL, e.g.
// "https://gitlab.example.com:8443" -> "gitlab.example.com".
func extractHostFromURL(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// buildSSHURL constructs an SSH clone URL for projectPath, overriding the
// port GitLab's API reports when a non-default ssh_port is configured.
// Format: ssh://git@host:port/path/to/repo.git
func (p *Provider) buildSSHURL(projectPath string) string {
	if p.sshHost == "" {
		return ""
	}
	if !strings.HasSuffix(projectPath, ".git") {
		projectPath += ".git"
	}
	if p.sshPort > 0 && p.sshPort != 22 {
		return fmt.Sprintf("ssh://git@%s:%d/%s", p.sshHost, p.sshPort, projectPath)
	}
	return fmt.Sprintf("git@%s:%s", p.sshHost, projectPath)
}
