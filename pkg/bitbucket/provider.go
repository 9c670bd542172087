// Package bitbucket implements the provider interface for BitBucket
// Cloud. The reference corpus's only BitBucket client
// (wbrefvem/go-bitbucket, via the go-gits reference file) is not
// available to import, so this adapter is a fresh implementation atop
// the shared hashicorp/go-retryablehttp client, following that file's
// "next"-URL cursor-pagination shape.
package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/provider"
	"github.com/steveant/mgit/pkg/query"
	"github.com/steveant/mgit/pkg/ratelimit"
)

const baseAPI = "https://api.bitbucket.org/2.0"

func init() {
	provider.Register(config.KindBitbucket, func(profile config.ProviderProfile) (provider.Provider, error) {
		return NewProvider(profile), nil
	})
}

// Provider implements provider.Provider for BitBucket Cloud. The
// hierarchy is workspace -> project (optional) -> repository.
type Provider struct {
	profile config.ProviderProfile
	client  *retryablehttp.Client

	rateLimiter *ratelimit.Limiter
}

// NewProvider constructs a BitBucket adapter for profile.
func NewProvider(profile config.ProviderProfile) *Provider {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.Logger = nil
	client.RetryMax = 3
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			return true, nil
		}
		return ratelimit.ShouldRetry(resp), nil
	}
	client.Backoff = func(_, _ time.Duration, attempt int, _ *http.Response) time.Duration {
		return ratelimit.CalculateBackoff(attempt)
	}
	return &Provider{profile: profile, client: client, rateLimiter: ratelimit.NewLimiter(1000)}
}

func (p *Provider) Kind() config.Kind { return config.KindBitbucket }

// Authenticate is a no-op: app-password Basic auth is sent on every
// request rather than exchanged for a session token up front.
func (p *Provider) Authenticate(ctx context.Context) error { return nil }

// TestConnection lists the authenticated user's workspaces.
func (p *Provider) TestConnection(ctx context.Context) error {
	_, err := p.get(ctx, p.baseURL()+"/workspaces?pagelen=1")
	return err
}

// baseURL returns profile.BaseURL if set (used in tests to redirect at
// an httptest.Server), otherwise BitBucket Cloud's public API root.
func (p *Provider) baseURL() string {
	if p.profile.BaseURL != "" {
		return p.profile.BaseURL
	}
	return baseAPI
}

type bbWorkspaceEntry struct {
	Workspace struct {
		Slug string `json:"slug"`
	} `json:"workspace"`
}

type bbPage struct {
	Values json.RawMessage `json:"values"`
	Next   string          `json:"next"`
}

// ListOrganizations lists the workspaces visible to the authenticated
// user; a workspace stands in for "organization" in the shared model.
func (p *Provider) ListOrganizations(ctx context.Context) ([]provider.Organization, error) {
	var out []provider.Organization
	url := p.baseURL() + "/workspaces"
	for url != "" {
		resp, err := p.get(ctx, url)
		if err != nil {
			return nil, err
		}
		var page bbPage
		if err := json.Unmarshal(resp, &page); err != nil {
			return nil, errs.New(errs.KindNetworkError, "ListOrganizations", p.profile.Name, "decoding workspace page", err)
		}
		var entries []bbWorkspaceEntry
		if err := json.Unmarshal(page.Values, &entries); err != nil {
			return nil, errs.New(errs.KindNetworkError, "ListOrganizations", p.profile.Name, "decoding workspace entries", err)
		}
		for _, e := range entries {
			out = append(out, provider.Organization{Name: e.Workspace.Slug})
		}
		url = page.Next
	}
	return out, nil
}

type bbRepository struct {
	Name    string `json:"name"`
	Project *struct {
		Key string `json:"key"`
	} `json:"project"`
	MainBranch struct {
		Name string `json:"name"`
	} `json:"mainbranch"`
	IsPrivate bool `json:"is_private"`
	Size      int64 `json:"size"`
	Links     struct {
		Clone []struct {
			Name string `json:"name"`
			Href string `json:"href"`
		} `json:"clone"`
	} `json:"links"`
}

func (r bbRepository) cloneURLs() (https, ssh string) {
	for _, l := range r.Links.Clone {
		switch l.Name {
		case "https":
			https = l.Href
		case "ssh":
			ssh = l.Href
		}
	}
	return
}

func (r bbRepository) projectKey() string {
	if r.Project == nil {
		return query.NoneLiteral
	}
	return r.Project.Key
}

// ListRepositories resolves workspace/projGlob/repoGlob. When projGlob
// is a single literal, the server-side project filter is used; NONE
// filters to repositories with no project. Otherwise results are
// listed and filtered client-side.
func (p *Provider) ListRepositories(ctx context.Context, pattern query.Pattern) iter.Seq2[provider.Repository, error] {
	return func(yield func(provider.Repository, error) bool) {
		workspaces, err := p.candidateWorkspaces(ctx, pattern)
		if err != nil {
			yield(provider.Repository{}, err)
			return
		}
		for _, ws := range workspaces {
			if !p.yieldWorkspaceRepos(ctx, ws, pattern, yield) {
				return
			}
		}
	}
}

// candidateWorkspaces resolves the workspace(s) a query runs against. A
// literal org segment always wins. Otherwise, a profile pinned to one
// workspace via --workspace scopes the search to it rather than
// enumerating every workspace the token can see; only a profile with no
// configured workspace falls back to listing and glob-filtering all of
// them.
func (p *Provider) candidateWorkspaces(ctx context.Context, pattern query.Pattern) ([]string, error) {
	if lit, ok := pattern.Org.Literal(); ok {
		return []string{lit}, nil
	}
	if p.profile.Workspace != "" && pattern.Org.Match(p.profile.Workspace) {
		return []string{p.profile.Workspace}, nil
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

func (p *Provider) yieldWorkspaceRepos(ctx context.Context, workspace string, pattern query.Pattern, yield func(provider.Repository, error) bool) bool {
	url := fmt.Sprintf("%s/repositories/%s?pagelen=100", p.baseURL(), workspace)
	if lit, ok := pattern.Project.Literal(); ok && lit != query.NoneLiteral {
		url += fmt.Sprintf("&q=%s", queryEscape(fmt.Sprintf(`project.key="%s"`, lit)))
	}

	for url != "" {
		resp, err := p.get(ctx, url)
		if err != nil {
			return yield(provider.Repository{}, err)
		}
		var page bbPage
		if jerr := json.Unmarshal(resp, &page); jerr != nil {
			return yield(provider.Repository{}, errs.New(errs.KindNetworkError, "ListRepositories", workspace, "decoding repository page", jerr))
		}
		var repos []bbRepository
		if jerr := json.Unmarshal(page.Values, &repos); jerr != nil {
			return yield(provider.Repository{}, errs.New(errs.KindNetworkError, "ListRepositories", workspace, "decoding repository entries", jerr))
		}
		for _, r := range repos {
			if !pattern.Project.Match(r.projectKey()) {
				continue
			}
			if !pattern.Repo.Match(r.Name) {
				continue
			}
			if !yield(convertRepo(r, workspace), nil) {
				return false
			}
		}
		url = page.Next
	}
	return true
}

// GetAuthenticatedCloneURL delegates to the shared urlutil helper.
func (p *Provider) GetAuthenticatedCloneURL(repo provider.Repository) (string, error) {
	return provider.EmbedCredential(repo, p.profile)
}

func convertRepo(r bbRepository, workspace string) provider.Repository {
	https, ssh := r.cloneURLs()
	return provider.Repository{
		Name:          r.Name,
		CloneURL:      https,
		SSHURL:        ssh,
		DefaultBranch: r.MainBranch.Name,
		IsPrivate:     r.IsPrivate,
		Size:          r.Size,
		ProviderKind:  config.KindBitbucket,
		Organization:  workspace,
		Project:       r.projectKey(),
	}
}

func queryEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			out = append(out, '%', '2', '2')
		case '=':
			out = append(out, '%', '3', 'D')
		case ' ':
			out = append(out, '%', '2', '0')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// get issues an authenticated GET against url using Basic auth with
// the profile's workspace-scoped app password, feeding response
// headers to the shared rate limiter.
func (p *Provider) get(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.KindNetworkError, "get", p.profile.Name, "", err)
	}
	req.SetBasicAuth(p.profile.User, p.profile.Secret)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.New(errs.KindNetworkError, "get", p.profile.Name, "", err)
	}
	defer resp.Body.Close()

	p.rateLimiter.UpdateFromHeaders(resp)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errs.New(errs.KindAuthError, "get", p.profile.Name, "", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.KindNetworkError, "get", p.profile.Name, "", fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.KindNetworkError, "get", p.profile.Name, "reading response body", err)
	}
	return body, nil
}
